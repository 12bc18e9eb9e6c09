package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mr1hm/abandoned-explorer/internal/api"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the location API, the live stream and scheduled scrapes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		a, err := newApp(cfg, logger, appOptions{stream: true})
		if err != nil {
			return err
		}
		defer a.Close()

		logger.Info("server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Scheduled scrapes, if configured
		a.manager.Start(ctx)

		var scheduler api.Scheduler
		if cfg.Schedule.Enabled {
			scheduler = a.manager
		}

		gin.SetMode(gin.ReleaseMode)
		router := api.NewRouter(api.NewHandler(a.store, a.broadcaster, scheduler, logger), cfg.Server.RateLimit)

		srv := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		}
		// Ends open streams so Shutdown does not wait on them.
		srv.RegisterOnShutdown(a.broadcaster.Close)

		serveErr := make(chan error, 1)
		go func() {
			logger.Info("server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		var runErr error
		select {
		case <-quit:
		case runErr = <-serveErr:
			logger.Error("server error", "error", runErr)
		}

		logger.Info("shutting down...")

		cancel()
		a.manager.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}

		logger.Info("shutdown complete")
		return runErr
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "Host to listen on; overrides SERVER_HOST")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on; overrides SERVER_PORT")
	rootCmd.AddCommand(serveCmd)
}
