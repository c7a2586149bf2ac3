package worker

import (
	"context"
	"fmt"
	"log/slog"

	"cardspend/internal/amqp"
	"cardspend/internal/sheets"
	"cardspend/internal/storage"
)

// Backfiller labels uncategorized expenses that match a remembered description.
type Backfiller interface {
	Backfill(ctx context.Context, userID int64, description, category string) (int, error)
}

// Worker reacts to events published by the API.
type Worker struct {
	store    storage.ExpenseStore
	backfill Backfiller
	exporter sheets.ExpenseExporter
}

// New builds a worker. A nil exporter disables spreadsheet mirroring.
func New(store storage.ExpenseStore, backfill Backfiller, exporter sheets.ExpenseExporter) *Worker {
	return &Worker{store: store, backfill: backfill, exporter: exporter}
}

// Handlers wires the worker to an amqp consumer.
func (w *Worker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		MemoryUpdated:    w.HandleMemoryUpdated,
		ExpensesIngested: w.HandleExpensesIngested,
	}
}

// HandleMemoryUpdated applies a remembered category to the user's earlier
// uncategorized expenses with the same normalized description.
func (w *Worker) HandleMemoryUpdated(ctx context.Context, msg *amqp.MemoryUpdatedMessage) error {
	slog.InfoContext(ctx, "Processing memory update",
		"user_id", msg.UserID,
		"description", msg.Description)

	n, err := w.backfill.Backfill(ctx, msg.UserID, msg.Description, msg.Category)
	if err != nil {
		return fmt.Errorf("backfill categories: %w", err)
	}
	slog.InfoContext(ctx, "Memory update processed", "user_id", msg.UserID, "updated", n)
	return nil
}

// HandleExpensesIngested mirrors newly inserted expenses to the spreadsheet.
func (w *Worker) HandleExpensesIngested(ctx context.Context, msg *amqp.ExpensesIngestedMessage) error {
	if w.exporter == nil {
		slog.DebugContext(ctx, "No spreadsheet exporter configured, skipping ingest event",
			"count", len(msg.ExpenseIDs))
		return nil
	}
	if len(msg.ExpenseIDs) == 0 {
		return nil
	}

	expenses, err := w.store.GetExpenses(ctx, msg.ExpenseIDs)
	if err != nil {
		return fmt.Errorf("get expenses from storage: %w", err)
	}
	if len(expenses) < len(msg.ExpenseIDs) {
		slog.WarnContext(ctx, "Some ingested expenses no longer exist",
			"requested", len(msg.ExpenseIDs), "found", len(expenses))
	}
	if len(expenses) == 0 {
		return nil
	}

	ref, err := w.exporter.AppendExpenses(ctx, expenses)
	if err != nil {
		return fmt.Errorf("export expenses: %w", err)
	}
	slog.InfoContext(ctx, "Exported expenses", "count", len(expenses), "ref", ref)
	return nil
}
