// Package backend assembles the storage backend and the optional outbound
// integrations (event publisher, spreadsheet exporter) from configuration.
package backend

import (
	"context"

	"cardspend/internal/amqp"
	"cardspend/internal/sheets"
	"cardspend/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and its cleanup function.
// Cleanup flushes local state (memory backend) and closes connections.
type BackendResult struct {
	Backend storage.Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreatePublisher returns nil without error when no broker is configured.
	CreatePublisher(ctx context.Context, config Config) (*amqp.Client, error)
	// CreateExporter falls back to an in-process recorder when no spreadsheet is configured.
	CreateExporter(ctx context.Context, config Config) (sheets.ExpenseExporter, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	DatabaseURL string

	// Memory backend specific
	StateFile string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// Persistent reports whether data survives without an explicit save.
func (bt BackendType) Persistent() bool {
	return bt == SQLiteBackend || bt == PostgresBackend
}
