package services

import (
	"context"
	"log/slog"
	"strings"

	"cardspend/internal/core"
	"cardspend/internal/storage"
)

// IngestResult reports what happened to a batch. Seen counts every row that
// was read; Inserted counts only rows that were new.
type IngestResult struct {
	Seen        int     `json:"seen"`
	Inserted    int     `json:"inserted"`
	Skipped     int     `json:"skipped"`
	InsertedIDs []int64 `json:"-"`
}

// IngestService turns statement rows into stored expenses.
type IngestService struct {
	backend storage.Backend
	pub     publisher
}

func NewIngestService(backend storage.Backend, events EventPublisher) *IngestService {
	return &IngestService{backend: backend, pub: publisher{events: events}}
}

// Ingest coerces, deduplicates and stores rows for owner (nil for ownerless
// uploads). The batch is all or nothing: any failure rolls back every row.
//
// For owned rows a category label is remembered for the row's normalized
// description, and a row without a label takes the remembered one if any.
func (s *IngestService) Ingest(ctx context.Context, owner *int64, rows []core.IngestRow) (IngestResult, error) {
	expenses := make([]core.Expense, 0, len(rows))
	for i, row := range rows {
		e, err := row.ToExpense(owner)
		if err != nil {
			return IngestResult{}, invalidWrap(err, "row %d", i+1)
		}
		expenses = append(expenses, e)
	}
	return s.IngestExpenses(ctx, owner, expenses)
}

// IngestExpenses stores already coerced expenses with the same rules as Ingest.
// Every expense is reassigned to owner.
func (s *IngestService) IngestExpenses(ctx context.Context, owner *int64, expenses []core.Expense) (IngestResult, error) {
	result := IngestResult{Seen: len(expenses)}
	for i := range expenses {
		expenses[i].Description = strings.TrimSpace(expenses[i].Description)
		expenses[i].Category = strings.TrimSpace(expenses[i].Category)
		if err := expenses[i].Validate(); err != nil {
			return IngestResult{}, invalidWrap(err, "row %d", i+1)
		}
	}

	var remembered []core.CategoryMemory
	err := s.backend.InTx(ctx, func(tx storage.Store) error {
		seen := make(map[core.ExpenseKey]bool, len(expenses))
		learned := make(map[string]int)
		for _, e := range expenses {
			e.ID = 0
			e.UserID = owner
			key := e.Key()
			if seen[key] {
				result.Skipped++
				continue
			}
			seen[key] = true

			exists, err := tx.ExpenseExists(ctx, key)
			if err != nil {
				return err
			}
			if exists {
				result.Skipped++
				continue
			}

			if owner != nil {
				if e.Category != "" {
					entry, err := memoryEntry(*owner, e.Description, e.Category)
					if err == nil {
						if err := tx.UpsertMemory(ctx, entry); err != nil {
							return err
						}
						if i, ok := learned[entry.Description]; ok {
							remembered[i] = entry
						} else {
							learned[entry.Description] = len(remembered)
							remembered = append(remembered, entry)
						}
					}
				} else if cat, found, err := recall(ctx, tx, *owner, e.Description); err != nil {
					return err
				} else if found {
					e.Category = cat
				}
			}

			id, err := tx.InsertExpense(ctx, e)
			if err != nil {
				return err
			}
			result.InsertedIDs = append(result.InsertedIDs, id)
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "Ingest rolled back", "rows", len(expenses), "error", err)
		return IngestResult{}, err
	}
	result.Inserted = len(result.InsertedIDs)

	slog.DebugContext(ctx, "Ingest committed",
		"seen", result.Seen,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"owned", owner != nil)

	for _, m := range remembered {
		s.pub.memoryUpdated(ctx, m.UserID, m.Description, m.Category)
	}
	s.pub.expensesIngested(ctx, owner, result.InsertedIDs)

	return result, nil
}
