package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cardspend/internal/core"
	"cardspend/internal/storage"
)

// CategoryService manages the global category list. Expenses carry category
// labels as free text, so deleting a category never touches them.
type CategoryService struct {
	store storage.CategoryStore
}

func NewCategoryService(store storage.CategoryStore) *CategoryService {
	return &CategoryService{store: store}
}

func (s *CategoryService) List(ctx context.Context) ([]core.Category, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if cats == nil {
		cats = []core.Category{}
	}
	return cats, nil
}

// Create returns storage.ErrConflict when the name already exists.
func (s *CategoryService) Create(ctx context.Context, name string) (core.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Category{}, invalid("category name required")
	}
	cat, err := s.store.CreateCategory(ctx, name)
	if errors.Is(err, storage.ErrConflict) {
		return core.Category{}, fmt.Errorf("category %q: %w", name, err)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return cat, nil
}

// EnsureAll creates every missing name and ignores the ones that exist.
func (s *CategoryService) EnsureAll(ctx context.Context, names []string) (int, error) {
	created := 0
	for _, name := range names {
		if _, err := s.Create(ctx, name); err != nil {
			if errors.Is(err, storage.ErrConflict) || errors.Is(err, ErrValidation) {
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *CategoryService) Delete(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.store.DeleteCategory(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	return deleted, nil
}
