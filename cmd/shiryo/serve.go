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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/loader"
	"github.com/hyperjump/shiryo/internal/server"
	"github.com/hyperjump/shiryo/internal/watcher"
	"github.com/hyperjump/shiryo/pkg/utils"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and folder watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(flags)
		},
	}
}

func runServe(flags *rootFlags) error {
	cfg, resolvedConfigPath, err := loadConfig(flags.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || flags.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("index_root", cfg.Storage.IndexRoot),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, modeFull)
	if err != nil {
		return err
	}
	defer components.Close()

	report, err := components.Manager.Recover(context.Background())
	if err != nil {
		return fmt.Errorf("recover index root: %w", err)
	}
	if len(report.Purged)+len(report.Restored) > 0 {
		logger.Info("recovered index root",
			zap.Strings("purged", report.Purged),
			zap.Strings("restored", report.Restored))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.Watch.Directories) > 0 {
		ld := loader.New(
			loader.WithLogger(logger),
			loader.WithExtensions(cfg.Watch.Extensions),
			loader.WithRecursive(cfg.Watch.RecursiveOrDefault()),
		)
		w := watcher.New(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			watcher.IngestInto(components.Manager, ld, cfg.Watch.TargetIndex, logger),
			watcher.WithLogger(logger),
		)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
		w.SyncExisting()
		logger.Info("watching directories",
			zap.Strings("directories", w.Directories()),
			zap.String("index", cfg.Watch.TargetIndex))
	}

	srv := server.NewServer(components.Manager, components.Retrieval, components.Loader, &cfg.Server, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}
