package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"docassist-be/internal/bootstrap"
	"docassist-be/internal/config"
	"docassist-be/internal/pkg/logger"
	"docassist-be/internal/server"
	"docassist-be/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer sysLogger.Sync()

	// 2. Tracing
	shutdownTracer := tracer.InitTracer(cfg.Tracing)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, cfg, sysLogger)
	if err != nil {
		sysLogger.Error("BOOT", "Failed to bootstrap", map[string]interface{}{"error": err.Error()})
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer container.Close()

	// 4. Start Background Services
	container.StartConsumers(ctx)

	syncDone := make(chan struct{})
	if container.SyncService != nil {
		go func() {
			defer close(syncDone)
			if err := container.SyncService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				sysLogger.Error("SYNC", "Sync loop exited", map[string]interface{}{"error": err.Error()})
			}
		}()
	} else {
		close(syncDone)
	}

	// 5. Initialize and Run Server
	srv := server.New(ctx, cfg, container)
	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Run() }()

	select {
	case err := <-serverErr:
		sysLogger.Error("HTTP", "Server stopped", map[string]interface{}{"error": err.Error()})
		stop()
	case <-ctx.Done():
	}

	sysLogger.Info("BOOT", "Shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sysLogger.Warn("HTTP", "Graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	select {
	case <-syncDone:
	case <-shutdownCtx.Done():
		sysLogger.Warn("SYNC", "Sync pass still running at shutdown", nil)
	}
}
