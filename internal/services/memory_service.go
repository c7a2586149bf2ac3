package services

import (
	"context"
	"fmt"
	"strings"

	"cardspend/internal/core"
	"cardspend/internal/storage"
)

// MemoryService remembers which category a user picked for a description.
// Entries are keyed by the normalized description, so every installment of
// a purchase shares one entry.
type MemoryService struct {
	store storage.MemoryStore
	pub   publisher
}

func NewMemoryService(store storage.MemoryStore, events EventPublisher) *MemoryService {
	return &MemoryService{store: store, pub: publisher{events: events}}
}

// Remember upserts (user, normalized description) -> category.
func (s *MemoryService) Remember(ctx context.Context, userID int64, description, category string) error {
	entry, err := memoryEntry(userID, description, category)
	if err != nil {
		return err
	}
	if err := s.store.UpsertMemory(ctx, entry); err != nil {
		return fmt.Errorf("remember category: %w", err)
	}
	s.pub.memoryUpdated(ctx, entry.UserID, entry.Description, entry.Category)
	return nil
}

// Recall returns the remembered category. A missing entry is not an error.
func (s *MemoryService) Recall(ctx context.Context, userID int64, description string) (string, bool, error) {
	return recall(ctx, s.store, userID, description)
}

// Entries lists every memory entry of the user.
func (s *MemoryService) Entries(ctx context.Context, userID int64) ([]core.CategoryMemory, error) {
	entries, err := s.store.ListMemory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list category memory: %w", err)
	}
	return entries, nil
}

// checkDescriptionLength rejects descriptions that could never be stored,
// before any normalization work is done on them.
func checkDescriptionLength(description string) error {
	if len(description) > core.MaxDescriptionLength {
		return invalidWrap(core.ErrDescriptionTooLong, "invalid description")
	}
	return nil
}

func memoryEntry(userID int64, description, category string) (core.CategoryMemory, error) {
	if err := checkDescriptionLength(description); err != nil {
		return core.CategoryMemory{}, err
	}
	key := core.NormalizeDescription(description)
	category = strings.TrimSpace(category)
	if key == "" || category == "" {
		return core.CategoryMemory{}, invalid("description and category are required")
	}
	return core.CategoryMemory{UserID: userID, Description: key, Category: category}, nil
}

func recall(ctx context.Context, store storage.MemoryStore, userID int64, description string) (string, bool, error) {
	if err := checkDescriptionLength(description); err != nil {
		return "", false, err
	}
	key := core.NormalizeDescription(description)
	if key == "" {
		return "", false, nil
	}
	category, found, err := store.GetMemory(ctx, userID, key)
	if err != nil {
		return "", false, fmt.Errorf("recall category: %w", err)
	}
	return category, found, nil
}
