package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cardspend/internal/core"
	"cardspend/internal/storage"
)

// ExpenseService serves a user's stored expenses.
type ExpenseService struct {
	store  storage.ExpenseStore
	memory *MemoryService
}

func NewExpenseService(store storage.ExpenseStore, memory *MemoryService) *ExpenseService {
	return &ExpenseService{store: store, memory: memory}
}

// List returns the user's expenses, newest first.
func (s *ExpenseService) List(ctx context.Context, userID int64) ([]core.Expense, error) {
	expenses, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	return expenses, nil
}

// Categorize labels one of the user's expenses and remembers the label for
// its description. It returns storage.ErrNotFound for expenses the user does
// not own.
func (s *ExpenseService) Categorize(ctx context.Context, userID, id int64, category string) (core.Expense, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return core.Expense{}, invalid("category required")
	}
	if err := s.store.SetExpenseCategory(ctx, userID, id, category); err != nil {
		return core.Expense{}, fmt.Errorf("categorize expense %d: %w", id, err)
	}

	found, err := s.store.GetExpenses(ctx, []int64{id})
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	if len(found) == 0 {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, storage.ErrNotFound)
	}
	e := found[0]

	if s.memory != nil {
		if err := s.memory.Remember(ctx, userID, e.Description, category); err != nil {
			return core.Expense{}, err
		}
	}
	return e, nil
}

// Backfill labels the user's uncategorized expenses whose normalized
// description equals description. It returns how many were labeled.
func (s *ExpenseService) Backfill(ctx context.Context, userID int64, description, category string) (int, error) {
	key := core.NormalizeDescription(description)
	if key == "" || strings.TrimSpace(category) == "" {
		return 0, nil
	}
	pending, err := s.store.ListUncategorized(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list uncategorized: %w", err)
	}

	updated := 0
	for _, e := range pending {
		if e.NormalizedDescription() != key {
			continue
		}
		if err := s.store.SetExpenseCategory(ctx, userID, e.ID, category); err != nil {
			return updated, fmt.Errorf("backfill expense %d: %w", e.ID, err)
		}
		updated++
	}
	if updated > 0 {
		slog.InfoContext(ctx, "Backfilled categories",
			"user_id", userID, "description", key, "category", category, "count", updated)
	}
	return updated, nil
}

// Summaries aggregates the user's expenses per month. A non-empty month
// ("YYYY-MM") restricts the result to that month.
func (s *ExpenseService) Summaries(ctx context.Context, userID int64, month string) ([]core.MonthSummary, error) {
	month = strings.TrimSpace(month)
	if month != "" {
		if _, err := time.Parse("2006-01", month); err != nil {
			return nil, invalid("month must be YYYY-MM")
		}
	}
	expenses, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	all := core.Summarize(expenses)
	if month == "" {
		return all, nil
	}
	for _, m := range all {
		if m.Month == month {
			return []core.MonthSummary{m}, nil
		}
	}
	return []core.MonthSummary{}, nil
}

// Summary returns the single month summary, or an empty one for a month
// without expenses.
func (s *ExpenseService) Summary(ctx context.Context, userID int64, month string) (core.MonthSummary, error) {
	if strings.TrimSpace(month) == "" {
		return core.MonthSummary{}, invalid("month required")
	}
	found, err := s.Summaries(ctx, userID, month)
	if err != nil {
		return core.MonthSummary{}, err
	}
	if len(found) == 0 {
		return core.MonthSummary{Month: strings.TrimSpace(month)}, nil
	}
	return found[0], nil
}
