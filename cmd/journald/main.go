package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/learnjournal/journal/internal/app"
	"github.com/learnjournal/journal/internal/entries"
	entrieshttp "github.com/learnjournal/journal/internal/entries/http"
	"github.com/learnjournal/journal/internal/observability"
	"github.com/learnjournal/journal/internal/view"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	fs := afero.NewOsFs()
	repo := entries.NewFileRepository(fs, cfg.DataFile, logger)
	keys := entries.NewIdempotencyStore(fs, entries.KeysPath(cfg.DataFile), entries.DefaultIdempotencyTTL, logger)
	if removed, err := keys.Cleanup(ctx); err != nil {
		logger.Warn("clean up idempotency keys", slog.Any("error", err))
	} else if removed > 0 {
		logger.Info("expired idempotency keys removed", slog.Int("removed", removed))
	}
	service := entries.NewService(repo, entries.NewValidator()).WithIdempotency(keys)
	entriesHandler := entrieshttp.NewHandler(logger, service)
	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:    logger,
		Config:    cfg,
		Templates: templates,
		Entries:   entriesHandler,
		Metrics:   metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("data_file", cfg.DataFile))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
