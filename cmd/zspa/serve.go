package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpAdapter "github.com/0x-stone/zspa/pkg/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the agent in server mode, streaming each chat turn as Server-Sent Events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		seed, _ := cmd.Flags().GetString("seed")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger, seed)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := &http.Server{
			Addr: cfg.Server.Addr,
			Handler: httpAdapter.NewHandler(a.runtime,
				httpAdapter.WithLogger(logger),
				httpAdapter.WithMetrics(a.metrics.Handler()),
				httpAdapter.WithGraph(a.graph),
			),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting zspa server", "addr", srv.Addr, "store", cfg.Store.Driver, "persistence", cfg.Persistence.Driver)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			logger.Info("Start shutdown...", "timeout", cfg.Server.ShutdownTimeout)
		}

		// Give outstanding streams a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", cfg.Server.ShutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				logger.Error("Error killing server", "err", err)
			}
		}
		logger.Info("zspa server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.addr)")
	serveCmd.Flags().String("seed", "", "JSON file of fundraisers to load into the catalog")
}
