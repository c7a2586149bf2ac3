package main

import (
	"context"
	"errors"
	"os"

	"cardspend/internal/amqp"
	"cardspend/internal/backend"
	"cardspend/internal/cli"
	"cardspend/internal/config"
	applog "cardspend/internal/log"
	"cardspend/internal/services"
	"cardspend/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentWorker, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting cardspend-worker", applog.FieldOperation, applog.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Worker exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	if !backendCfg.Type.Persistent() {
		logger.Warn("Worker is using the memory backend; it cannot see data stored by the API process",
			"backend", backendCfg.Type.String())
		backendCfg.StateFile = ""
	}

	factory := backend.NewFactory(logger)
	result, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}

	exporter, err := factory.CreateExporter(ctx, backendCfg)
	if err != nil {
		_ = result.Cleanup()
		return err
	}

	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		_ = result.Cleanup()
		return err
	}
	defer func() {
		if err := backend.Closers(client.Close, result.Cleanup)(); err != nil {
			logger.Error("Cleanup failed", "error", err)
		}
	}()

	store := result.Backend
	expenses := services.NewExpenseService(store, nil)
	w := worker.New(store, expenses, exporter)

	consume := func(ctx context.Context) error {
		err := client.Consume(ctx, w.Handlers())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return cli.Run(ctx, consume, nil)
}
