// Package cmd is the voiceshop command line.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/app"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/config"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/logging"
)

type rootOptions struct {
	jsonOut bool
}

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "voiceshop",
		Short: "Voice-driven shopping assistant",
		Long: `voiceshop records spoken shopping commands, turns them into wishlist
changes through the shopping backend, and keeps the wishlist, recommendations
and store listing in sync for the active user.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print results as JSON")
	root.CompletionOptions.HiddenDefaultCmd = true

	root.AddCommand(
		newServeCommand(opts),
		newRecordCommand(opts),
		newWishlistCommand(opts),
		newRecommendationsCommand(opts),
		newStoreCommand(opts),
		newUserCommand(opts),
		newVersionCommand(),
	)
	return root
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// session is one built assistant plus its logger, scoped to a command run.
type session struct {
	*app.BuildResult
	logger *zap.Logger
}

func (s *session) Close() {
	if err := s.Cleanup(); err != nil {
		s.logger.Warn("cleanup failed", zap.Error(err))
	}
	_ = s.logger.Sync()
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, File: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	res, err := app.Build(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &session{BuildResult: res, logger: logger}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
