package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/user"
)

func newUserCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Show or switch the active user and preferences",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the active user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			return printUser(cmd.OutOrStdout(), root, s.Users.Snapshot())
		},
	}

	set := &cobra.Command{
		Use:   "set <username>",
		Short: "Switch to another user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			snap, err := s.Users.SetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printUser(cmd.OutOrStdout(), root, snap)
		},
	}

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Forget the active user; preferences are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			return printUser(cmd.OutOrStdout(), root, s.Users.Logout(cmd.Context()))
		},
	}

	var (
		theme                            string
		voiceOn, notifications, autoRefr bool
	)
	prefs := &cobra.Command{
		Use:   "prefs",
		Short: "Show or update preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			var patch domain.PreferencesPatch
			flags := cmd.Flags()
			if flags.Changed("theme") {
				t, err := domain.ParseTheme(theme)
				if err != nil {
					return err
				}
				patch.Theme = &t
			}
			if flags.Changed("voice") {
				patch.VoiceEnabled = &voiceOn
			}
			if flags.Changed("notifications") {
				patch.Notifications = &notifications
			}
			if flags.Changed("auto-refresh") {
				patch.AutoRefresh = &autoRefr
			}

			p := s.Users.Preferences()
			if patch != (domain.PreferencesPatch{}) {
				if p, err = s.Users.UpdatePreferences(cmd.Context(), patch); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			if root.jsonOut {
				return printJSON(out, p)
			}
			fmt.Fprintf(out, "theme=%s voice=%t notifications=%t auto-refresh=%t\n", p.Theme, p.VoiceEnabled, p.Notifications, p.AutoRefresh)
			return nil
		},
	}
	prefs.Flags().StringVar(&theme, "theme", "", "light or dark")
	prefs.Flags().BoolVar(&voiceOn, "voice", true, "Enable voice commands")
	prefs.Flags().BoolVar(&notifications, "notifications", true, "Enable notifications")
	prefs.Flags().BoolVar(&autoRefr, "auto-refresh", true, "Refresh recommendations automatically")

	cmd.AddCommand(show, set, logout, prefs)
	return cmd
}

func printUser(w io.Writer, root *rootOptions, snap user.Snapshot) error {
	if root.jsonOut {
		return printJSON(w, snap)
	}
	if !snap.IsAuthenticated {
		fmt.Fprintln(w, "No user selected")
		return nil
	}
	fmt.Fprintf(w, "Current user: %s\n", snap.CurrentUser)
	return nil
}
