package backend

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"cardspend/internal/amqp"
	applog "cardspend/internal/log"
	"cardspend/internal/sheets"
	gsheet "cardspend/internal/sheets/google"
	sheetsmem "cardspend/internal/sheets/memory"
	"cardspend/internal/storage/memory"
	"cardspend/internal/storage/postgres"
	"cardspend/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := sqlite.NewRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{Backend: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := postgres.NewRepository(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
	}

	f.logger.Info("Initialized Postgres backend")

	return &BackendResult{Backend: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	if config.StateFile == "" {
		f.logger.Info("Initialized memory backend without persistence")
		return &BackendResult{Backend: memory.NewWithDefaults(), Cleanup: func() error { return nil }}, nil
	}

	store, err := memory.Open(config.StateFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load state file: %w", err)
	}

	f.logger.Info("Initialized memory backend", "state_file", config.StateFile)

	cleanup := func() error {
		var result *multierror.Error
		if err := store.SaveTo(config.StateFile); err != nil {
			result = multierror.Append(result, fmt.Errorf("save state file: %w", err))
		} else {
			f.logger.Info("Saved local state", "state_file", config.StateFile)
		}
		if err := store.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		return result.ErrorOrNil()
	}

	return &BackendResult{Backend: store, Cleanup: cleanup}, nil
}

// CreatePublisher dials the broker when AMQP is configured.
func (f *DefaultFactory) CreatePublisher(ctx context.Context, config Config) (*amqp.Client, error) {
	if config.AMQPURL == "" {
		return nil, nil
	}

	client, err := amqp.NewClient(ctx, config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
	}

	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client, nil
}

// CreateExporter returns the Google Sheets exporter when a spreadsheet is
// configured and an in-process recorder otherwise.
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (sheets.ExpenseExporter, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.Info("No spreadsheet configured, recording exports in memory")
		return sheetsmem.New(), nil
	}

	client, err := gsheet.New(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets exporter", "sheet", config.GoogleSheetName)
	return client, nil
}

// Closers runs every cleanup, keeping going after failures, and returns
// their combined error.
func Closers(fns ...CleanupFunc) CleanupFunc {
	return func() error {
		var result *multierror.Error
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if err := fn(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result.ErrorOrNil()
	}
}
