package services

import (
	"context"
	"log/slog"
)

// EventPublisher announces committed changes to background workers.
// It is implemented by amqp.Client.
type EventPublisher interface {
	PublishMemoryUpdated(ctx context.Context, userID int64, description, category string) error
	PublishExpensesIngested(ctx context.Context, userID *int64, ids []int64) error
}

// publisher wraps an optional EventPublisher. Publishing is best effort: the
// change is already committed, so failures are logged and dropped.
type publisher struct {
	events EventPublisher
}

func (p publisher) memoryUpdated(ctx context.Context, userID int64, description, category string) {
	if p.events == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping memory event")
		return
	}
	if err := p.events.PublishMemoryUpdated(ctx, userID, description, category); err != nil {
		slog.ErrorContext(ctx, "Failed to publish memory event",
			"user_id", userID, "description", description, "error", err)
	}
}

func (p publisher) expensesIngested(ctx context.Context, userID *int64, ids []int64) {
	if len(ids) == 0 {
		return
	}
	if p.events == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping ingest event")
		return
	}
	if err := p.events.PublishExpensesIngested(ctx, userID, ids); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ingest event", "count", len(ids), "error", err)
	}
}
