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

	"shopflow/internal/api"
	"shopflow/internal/config"
	"shopflow/internal/metrics"
	"shopflow/internal/queue"
	"shopflow/internal/service"
	"shopflow/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the background queue dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logger.Sync()
			if err := runServer(cfg()); err != nil {
				logger.Error("application startup failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func runServer(cfg *config.Config) error {
	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Background dispatcher drains the queue on a fixed interval
	observer := metrics.NewPrometheusObserver()
	dispatcher := queue.NewDispatcher(a.queueSvc, a.registry, a.notifier, observer,
		cfg.Workers.DispatchInterval, cfg.Workers.DispatchLimit)
	go func() {
		logger.Info("starting queue dispatcher")
		dispatcher.Run(ctx)
	}()

	authSvc := service.NewAuthService(a.rdb, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	r := api.RegisterRoutes(
		api.NewQueueHandler(a.queueSvc, cfg.Workers.StuckHorizon),
		api.NewProductHandler(a.productSvc),
		api.NewAuthHandler(authSvc),
		a.clientRepo,
		a.rdb,
		cfg.RateLimit.RequestsPerSecond,
		cfg.Server.Environment,
	)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown Signal Wait
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Signal the dispatcher to stop
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited properly")
	return nil
}
