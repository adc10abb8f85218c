package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/temcen/gamepulse/internal/app"
	"github.com/temcen/gamepulse/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}

		application, err := app.New(cfg, nil)
		if err != nil {
			return err
		}
		logger := application.Logger()

		server := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           application.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go application.RefreshOnStart(ctx)

		serverErr := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()

		logger.WithField("port", cfg.Server.Port).Info("Server started")

		select {
		case <-ctx.Done():
		case err := <-serverErr:
			return err
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Server forced to shutdown")
		}
		if err := application.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Error during shutdown")
		}

		logger.Info("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
