// Package cli provides the startup and shutdown helpers shared by the
// cardspend binaries.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"cardspend/internal/config"
	applog "cardspend/internal/log"
)

// ShutdownTimeout bounds graceful shutdown of every binary.
const ShutdownTimeout = 30 * time.Second

// SetupLogger builds the process logger for component at the given level
// name and installs it as the slog default. Unknown levels fall back to info.
func SetupLogger(component, level string) *applog.Logger {
	lvl, _ := config.ParseLogLevel(level)
	cfg := applog.DefaultConfig()
	cfg.Component = component
	cfg.Level = lvl
	cfg.Handler = nil

	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)
	}()
	return ctx, stop
}

// Run runs serve and stops it with shutdown once ctx is cancelled or serve
// returns. Shutdown gets a fresh context limited by ShutdownTimeout. A serve
// error other than context.Canceled wins over a shutdown error.
func Run(ctx context.Context, serve func(context.Context) error, shutdown func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	gctx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		return serve(gctx)
	})

	var shutdownErr error
	g.Go(func() error {
		<-gctx.Done()
		if shutdown == nil {
			return nil
		}
		shutdownCtx, stop := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer stop()
		shutdownErr = shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}
	return nil
}
