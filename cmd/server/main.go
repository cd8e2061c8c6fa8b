package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/deepref-sh/deepref/internal/auth"
	"github.com/deepref-sh/deepref/internal/buildconfig"
	"github.com/deepref-sh/deepref/internal/env"
	"github.com/deepref-sh/deepref/internal/handlers"
	"github.com/deepref-sh/deepref/internal/svc"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

func main() {
	env.Initialize()
	auth.Initialize()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if dsn := env.SentryDSN(); dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:           dsn,
			Debug:         env.SentryDebug(),
			Environment:   env.SentryEnvironment(),
			Release:       buildconfig.Version(),
			EnableTracing: false,
		})
		if err != nil {
			logger.Fatal("failed to initialize sentry", zap.Error(err))
		}
		defer sentry.Flush(5 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := svc.NewDefault(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialize services", zap.Error(err))
	}
	defer registry.Shutdown()

	registry.GetJobsScheduler().Start()

	server := &http.Server{
		Addr: env.ListenAddr(),
		Handler: handlers.NewRouter(
			logger,
			registry.GetDbPool(),
			registry.GetMailer(),
			registry.GetCredentialsManager(),
			registry.GetSessionManager(),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("addr", env.ListenAddr()),
			zap.String("version", buildconfig.Version()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if delay := env.ServerShutdownDelayDuration(); delay != nil {
		// Give load balancers time to drain before the listener closes.
		time.Sleep(*delay)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown incomplete", zap.Error(err))
	}
}
