package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"cardspend/internal/core"
	"cardspend/internal/localstate"
	"cardspend/internal/storage"
	"cardspend/internal/storage/storagetest"
)

func TestMemoryBackend(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewBackend: func() (storage.Backend, error) { return New(), nil },
	})
}

func TestOpenSeedsDefaults(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	cats, err := s.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, len(localstate.DefaultCategories))
}

func TestSaveAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	s := New()
	u, err := s.CreateUser(ctx, "ana@example.com", "secret-hash")
	require.NoError(t, err)
	_, err = s.CreateCategory(ctx, "pet")
	require.NoError(t, err)
	_, err = s.InsertExpense(ctx, core.Expense{
		UserID: &u.ID, Description: "Pet shop 1/3", Amount: core.Money{Cents: 4500}, Date: core.NewDate(2024, 6, 1), Category: "pet",
	})
	require.NoError(t, err)
	require.NoError(t, s.UpsertMemory(ctx, core.CategoryMemory{UserID: u.ID, Description: "Pet shop", Category: "pet"}))
	require.NoError(t, s.SaveTo(path))

	reopened, err := Open(path)
	require.NoError(t, err)

	got, err := reopened.GetUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "secret-hash", got.PasswordHash)

	list, err := reopened.ListExpenses(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(4500), list[0].Amount.Cents)

	cat, found, err := reopened.GetMemory(ctx, u.ID, "Pet shop")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "pet", cat)

	next, err := reopened.CreateCategory(ctx, "casa")
	require.NoError(t, err)
	assert.Greater(t, next.ID, list[0].ID, "ids must keep increasing after reload")
}
