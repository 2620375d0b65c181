package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/voice"
)

type recordOptions struct {
	seconds int
	yes     bool
}

func newRecordCommand(root *rootOptions) *cobra.Command {
	opts := &recordOptions{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one spoken command and apply it to the wishlist",
		Long: `Record one utterance, send it to the backend for transcription and
intent extraction, then ask before committing the recognised change.
With --seconds 0 recording runs until Enter is pressed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecord(cmd, root, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.seconds, "seconds", "s", 5, "Recording length in seconds (0 = until Enter)")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Apply the recognised command without asking")
	return cmd
}

func runRecord(cmd *cobra.Command, root *rootOptions, opts *recordOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.Voice.Start(ctx); err != nil {
		return err
	}
	if opts.seconds > 0 {
		fmt.Fprintf(out, "Recording for %ds...\n", opts.seconds)
		if err := waitOrCancel(ctx, time.Duration(opts.seconds)*time.Second); err != nil {
			s.Voice.Reset()
			return err
		}
	} else {
		fmt.Fprintln(out, "Recording... press Enter to stop.")
		if _, err := in.ReadString('\n'); err != nil && err != io.EOF {
			s.Voice.Reset()
			return err
		}
	}

	fmt.Fprintln(out, "Processing...")
	snap, err := s.Voice.Stop(ctx)
	if err != nil {
		return err
	}
	if snap.Result == nil {
		return fmt.Errorf("no command recognised")
	}
	if !root.jsonOut {
		fmt.Fprintf(out, "Heard: %q\n", snap.Result.RecognizedText)
		it := snap.Result.Intent
		fmt.Fprintf(out, "Intent: %s %d x %s (%s)\n", it.Action, it.Quantity, it.Product, it.Category)
		if it.Action == domain.ActionAdd {
			printStock(ctx, out, s, it.Product)
		}
	}

	if !opts.yes && !askConfirm(out, in) {
		snap, err = s.Voice.Cancel()
		if err != nil {
			return err
		}
		return report(out, root, snap, "Cancelled.")
	}
	snap, err = s.Voice.Confirm(ctx)
	if err != nil {
		return err
	}
	return report(out, root, snap, snap.Message)
}

// printStock shows what the store holds of product before the user decides.
func printStock(ctx context.Context, out io.Writer, s *session, product string) {
	if err := s.Catalog.Load(ctx); err != nil {
		fmt.Fprintf(out, "Stock unknown: %s\n", domain.UserMessage(err))
		return
	}
	p, ok := s.Catalog.Find(product)
	if !ok {
		fmt.Fprintln(out, "Not in the store catalog")
		return
	}
	fmt.Fprintf(out, "In store: %d available at %.2f\n", p.Stock, p.Price)
}

func askConfirm(out io.Writer, in *bufio.Reader) bool {
	fmt.Fprint(out, "Apply? [y/N] ")
	line, _ := in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func report(out io.Writer, root *rootOptions, snap voice.Snapshot, msg string) error {
	if root.jsonOut {
		return printJSON(out, snap)
	}
	fmt.Fprintln(out, msg)
	return nil
}

func waitOrCancel(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
