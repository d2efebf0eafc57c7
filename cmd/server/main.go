package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "accounting-engine/internal/adapters/web"
	"accounting-engine/internal/app"
	"accounting-engine/internal/config"
	"accounting-engine/internal/db"
	"accounting-engine/internal/lock"
	"accounting-engine/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.NewLogger(&config.Config{LogFormat: "text"}).Fatalf("config: %v", err)
	}
	logger := config.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
			logger.Fatalf("migrations: %v", err)
		}
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()

	locker, closeLocker, err := lock.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("posting lock: %v", err)
	}
	defer func() {
		if err := closeLocker(); err != nil {
			logger.WithError(err).Warn("failed to close posting lock client")
		}
	}()

	svc := app.NewAppService(postgres.New(pool), locker, logger, cfg.TxTimeout)
	handler := webAdapter.NewHandler(svc, logger, webAdapter.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		RequestBodyLimit: cfg.RequestBodyLimit,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.ServerPort).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}
