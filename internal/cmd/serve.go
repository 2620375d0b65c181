package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant daemon with the local control API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	s.Start(runCtx)

	httpServer := &http.Server{
		Addr:    s.Config.BindAddr,
		Handler: s.API.Router(),
	}
	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.Config.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	runCancel()
	// Websocket clients must be released before Shutdown can finish.
	s.Hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = httpServer.Close()
	}
	s.logger.Info("shutdown complete")
	return nil
}
