package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"cardspend/internal/auth"
	"cardspend/internal/backend"
	"cardspend/internal/cache"
	"cardspend/internal/cli"
	"cardspend/internal/config"
	apphttp "cardspend/internal/http"
	applog "cardspend/internal/log"
	"cardspend/internal/services"
)

const (
	suggestCacheSize   = 1000
	suggestCacheTTL    = time.Minute
	cacheSweepInterval = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}

	factory := backend.NewFactory(logger)
	result, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	cleanups := []backend.CleanupFunc{result.Cleanup}
	defer func() {
		// Close in reverse order of creation.
		for i, j := 0, len(cleanups)-1; i < j; i, j = i+1, j-1 {
			cleanups[i], cleanups[j] = cleanups[j], cleanups[i]
		}
		if err := backend.Closers(cleanups...)(); err != nil {
			logger.Error("Cleanup failed", "error", err)
		}
	}()

	// A nil *amqp.Client must not leak into the interface.
	var events services.EventPublisher
	client, err := factory.CreatePublisher(ctx, backendCfg)
	switch {
	case err != nil:
		logger.Warn("AMQP unavailable, background events disabled", "error", err)
	case client != nil:
		events = client
		cleanups = append(cleanups, client.Close)
	default:
		logger.Info("AMQP disabled, background events will not be published")
	}

	secret := cfg.JWTSecret
	if strings.TrimSpace(secret) == "" {
		secret = uuid.NewString() + uuid.NewString()
		logger.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	store := result.Backend
	suggest := services.NewSuggestService(store, store, services.WithTrainingCache(suggestCacheSize, suggestCacheTTL))
	sweeper := cache.NewSweeper(logger)
	sweeper.Register(suggest.Cache())
	sweeper.Start(cacheSweepInterval)
	defer sweeper.Stop()

	memory := services.NewMemoryService(store, events)
	expenses := services.NewExpenseService(store, memory)
	categories := services.NewCategoryService(store)
	ingest := services.NewIngestService(store, events)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Auth:       auth.NewService(store, auth.NewTokens(secret, cfg.TokenTTL)),
		Categories: categories,
		Expenses:   expenses,
		Ingest:     ingest,
		Memory:     memory,
		Suggest:    suggest,
		State:      services.NewStateService(expenses, categories, memory, ingest),
		Ping:       store.Ping,
	}, apphttp.Options{
		CORSOrigin:         cfg.CORSOrigin,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		Logger:             logger,
	})

	serve := func(context.Context) error {
		logger.Info("Starting cardspend server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			applog.FieldOperation, applog.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
	return cli.Run(ctx, serve, srv.Shutdown)
}
