// Package storage defines the persistence ports shared by every data backend.
package storage

import (
	"context"
	"errors"

	"cardspend/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type (
	UserStore interface {
		// CreateUser returns ErrConflict when the email is taken.
		CreateUser(ctx context.Context, email, passwordHash string) (core.User, error)
		// GetUserByEmail returns ErrNotFound for unknown emails.
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
	}

	CategoryStore interface {
		// ListCategories returns every category ordered by name.
		ListCategories(ctx context.Context) ([]core.Category, error)
		// CreateCategory returns ErrConflict when the name is taken.
		CreateCategory(ctx context.Context, name string) (core.Category, error)
		// DeleteCategory reports whether a row was removed. Expense labels are untouched.
		DeleteCategory(ctx context.Context, id int64) (bool, error)
	}

	ExpenseStore interface {
		ExpenseExists(ctx context.Context, key core.ExpenseKey) (bool, error)
		InsertExpense(ctx context.Context, e core.Expense) (int64, error)
		// ListExpenses returns the user's expenses, newest date first.
		ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error)
		GetExpenses(ctx context.Context, ids []int64) ([]core.Expense, error)
		// SetExpenseCategory returns ErrNotFound unless the expense belongs to userID.
		SetExpenseCategory(ctx context.Context, userID, id int64, category string) error
		ListUncategorized(ctx context.Context, userID int64) ([]core.Expense, error)
	}

	MemoryStore interface {
		// UpsertMemory inserts or overwrites the entry for (user, description).
		UpsertMemory(ctx context.Context, m core.CategoryMemory) error
		GetMemory(ctx context.Context, userID int64, description string) (string, bool, error)
		ListMemory(ctx context.Context, userID int64) ([]core.CategoryMemory, error)
	}

	// Store is the full set of operations available inside and outside a transaction.
	Store interface {
		UserStore
		CategoryStore
		ExpenseStore
		MemoryStore
	}

	// Backend is a Store with a lifecycle and transaction boundary.
	Backend interface {
		Store
		// InTx runs fn against a transactional view. Any error rolls back every write made through it.
		InTx(ctx context.Context, fn func(Store) error) error
		Ping(ctx context.Context) error
		Close() error
	}
)
