package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/go-redirects/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-redirects/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-redirects/pkg/config"
	"github.com/wadjakorntonsri/go-redirects/pkg/core/services"
	"github.com/wadjakorntonsri/go-redirects/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Log.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := repository.Open(ctx, cfg.StoreURL, cfg.RedisKeyPrefix)
	if err != nil {
		return err
	}
	defer store.Close()

	service := services.NewRedirectService(store)
	resolver := services.NewResolver(store)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.NewRouter(cfg, service, resolver),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("server shutdown failed", zap.Error(err))
	}

	// let pending click increments land before the store closes
	resolver.Wait()
	logger.Log.Info("server stopped")
	return nil
}
