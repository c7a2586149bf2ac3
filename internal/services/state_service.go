package services

import (
	"context"
	"log/slog"

	"cardspend/internal/localstate"
)

// ImportResult reports what an imported document changed.
type ImportResult struct {
	Inserted          int `json:"inserted"`
	Skipped           int `json:"skipped"`
	CategoriesCreated int `json:"categories_created"`
	Remembered        int `json:"remembered"`
}

// StateService moves a user's data in and out of the local state document.
type StateService struct {
	expenses   *ExpenseService
	categories *CategoryService
	memory     *MemoryService
	ingest     *IngestService
}

func NewStateService(expenses *ExpenseService, categories *CategoryService, memory *MemoryService, ingest *IngestService) *StateService {
	return &StateService{expenses: expenses, categories: categories, memory: memory, ingest: ingest}
}

func (s *StateService) Export(ctx context.Context, userID int64) (localstate.Document, error) {
	expenses, err := s.expenses.List(ctx, userID)
	if err != nil {
		return localstate.Document{}, err
	}
	categories, err := s.categories.List(ctx)
	if err != nil {
		return localstate.Document{}, err
	}
	entries, err := s.memory.Entries(ctx, userID)
	if err != nil {
		return localstate.Document{}, err
	}
	return localstate.Build(expenses, categories, entries), nil
}

// Import merges doc into the user's data. Expenses go through the regular
// ingest rules, so importing the same document twice inserts nothing new.
// The document's category memory is applied after the expenses, so it wins
// over whatever the expense labels taught.
func (s *StateService) Import(ctx context.Context, userID int64, doc localstate.Document) (ImportResult, error) {
	var result ImportResult

	created, err := s.categories.EnsureAll(ctx, doc.Categories)
	if err != nil {
		return result, err
	}
	result.CategoriesCreated = created

	owner := userID
	ingested, err := s.ingest.IngestExpenses(ctx, &owner, doc.Expenses())
	if err != nil {
		return result, err
	}
	result.Inserted = ingested.Inserted
	result.Skipped = ingested.Skipped

	for desc, cat := range doc.CategoryMemory {
		if err := s.memory.Remember(ctx, userID, desc, cat); err != nil {
			slog.WarnContext(ctx, "Skipping memory entry", "description", desc, "error", err)
			continue
		}
		result.Remembered++
	}
	return result, nil
}
