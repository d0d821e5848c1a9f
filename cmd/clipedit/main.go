// Package main provides the entry point for the clipedit server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/maauso/clipedit/internal/bootstrap"
	"github.com/maauso/clipedit/internal/config"
	"github.com/maauso/clipedit/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting clipedit",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("workspace_dir", cfg.WorkspaceDir),
		slog.String("provider", cfg.Provider),
		slog.String("template_store", cfg.TemplateStore),
		slog.Int("history_capacity", cfg.HistoryCapacity),
		slog.Int("template_slots", cfg.TemplateSlots),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("failed to close dependencies", slog.String("error", err.Error()))
		}
	}()

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(deps.Editor, logger, server.WithUploader(deps.Uploader))
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	// Create HTTP server; the API is for the local UI only.
	srv := &http.Server{
		Addr:         net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Port)),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second, // Renders and exports run inside the request
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	// An active recording is persisted before the workspace goes away.
	if err := deps.Editor.StopRecording(ctx); err != nil {
		logger.Warn("failed to persist templates", slog.String("error", err.Error()))
	}
	if err := deps.Workspace.Purge(ctx); err != nil {
		logger.Warn("failed to purge workspace", slog.String("error", err.Error()))
	}

	logger.Info("server stopped gracefully")
	return nil
}
