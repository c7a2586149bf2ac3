// Package storagetest holds the behaviour every storage.Backend must share.
package storagetest

import (
	"context"
	"errors"

	"github.com/stretchr/testify/suite"

	"cardspend/internal/core"
	"cardspend/internal/storage"
)

// Suite runs the backend contract. NewBackend is called before every test.
type Suite struct {
	suite.Suite
	NewBackend func() (storage.Backend, error)

	ctx     context.Context
	backend storage.Backend
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	b, err := s.NewBackend()
	s.Require().NoError(err, "failed to create backend")
	s.backend = b
}

func (s *Suite) TearDownTest() {
	if s.backend != nil {
		s.backend.Close()
	}
}

func (s *Suite) user(email string) int64 {
	u, err := s.backend.CreateUser(s.ctx, email, "hash")
	s.Require().NoError(err)
	return u.ID
}

func (s *Suite) expense(owner *int64, desc string, cents int64, date core.Date, category string) core.Expense {
	return core.Expense{UserID: owner, Description: desc, Amount: core.Money{Cents: cents}, Date: date, Category: category}
}

func (s *Suite) TestUsers() {
	u, err := s.backend.CreateUser(s.ctx, "ana@example.com", "h1")
	s.Require().NoError(err)
	s.NotZero(u.ID)

	_, err = s.backend.CreateUser(s.ctx, "ana@example.com", "h2")
	s.ErrorIs(err, storage.ErrConflict)

	got, err := s.backend.GetUserByEmail(s.ctx, "ana@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)
	s.Equal("h1", got.PasswordHash)

	_, err = s.backend.GetUserByEmail(s.ctx, "nobody@example.com")
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *Suite) TestCategories() {
	before, err := s.backend.ListCategories(s.ctx)
	s.Require().NoError(err)

	zoo, err := s.backend.CreateCategory(s.ctx, "zz-Zoo")
	s.Require().NoError(err)
	_, err = s.backend.CreateCategory(s.ctx, "aa-Aquarium")
	s.Require().NoError(err)

	_, err = s.backend.CreateCategory(s.ctx, "zz-Zoo")
	s.ErrorIs(err, storage.ErrConflict)

	list, err := s.backend.ListCategories(s.ctx)
	s.Require().NoError(err)
	s.Len(list, len(before)+2)
	for i := 1; i < len(list); i++ {
		s.LessOrEqual(list[i-1].Name, list[i].Name, "categories must be sorted by name")
	}

	deleted, err := s.backend.DeleteCategory(s.ctx, zoo.ID)
	s.Require().NoError(err)
	s.True(deleted)

	deleted, err = s.backend.DeleteCategory(s.ctx, zoo.ID)
	s.Require().NoError(err)
	s.False(deleted)
}

func (s *Suite) TestDeleteCategoryKeepsExpenseLabels() {
	uid := s.user("label@example.com")
	cat, err := s.backend.CreateCategory(s.ctx, "Streaming")
	s.Require().NoError(err)
	_, err = s.backend.InsertExpense(s.ctx, s.expense(&uid, "Netflix", 3990, core.NewDate(2024, 1, 5), "Streaming"))
	s.Require().NoError(err)

	_, err = s.backend.DeleteCategory(s.ctx, cat.ID)
	s.Require().NoError(err)

	list, err := s.backend.ListExpenses(s.ctx, uid)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("Streaming", list[0].Category)
}

func (s *Suite) TestExpenses() {
	uid := s.user("exp@example.com")
	other := s.user("other@example.com")

	older := s.expense(&uid, "Uber", 1550, core.NewDate(2024, 1, 2), "")
	newer := s.expense(&uid, "Market", 8000, core.NewDate(2024, 3, 9), "Food")
	id1, err := s.backend.InsertExpense(s.ctx, older)
	s.Require().NoError(err)
	id2, err := s.backend.InsertExpense(s.ctx, newer)
	s.Require().NoError(err)
	_, err = s.backend.InsertExpense(s.ctx, s.expense(&other, "Uber", 1550, core.NewDate(2024, 1, 2), ""))
	s.Require().NoError(err)

	exists, err := s.backend.ExpenseExists(s.ctx, older.Key())
	s.Require().NoError(err)
	s.True(exists)

	changed := older
	changed.Amount = core.Money{Cents: 1551}
	exists, err = s.backend.ExpenseExists(s.ctx, changed.Key())
	s.Require().NoError(err)
	s.False(exists)

	list, err := s.backend.ListExpenses(s.ctx, uid)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(id2, list[0].ID, "newest date first")
	s.Equal(id1, list[1].ID)
	s.Equal(int64(1550), list[1].Amount.Cents)
	s.Equal("2024-01-02", list[1].Date.String())
	s.Require().NotNil(list[1].UserID)
	s.Equal(uid, *list[1].UserID)

	uncategorized, err := s.backend.ListUncategorized(s.ctx, uid)
	s.Require().NoError(err)
	s.Require().Len(uncategorized, 1)
	s.Equal(id1, uncategorized[0].ID)

	s.Require().NoError(s.backend.SetExpenseCategory(s.ctx, uid, id1, "Transport"))
	err = s.backend.SetExpenseCategory(s.ctx, other, id1, "Hijack")
	s.ErrorIs(err, storage.ErrNotFound)

	got, err := s.backend.GetExpenses(s.ctx, []int64{id2, id1})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(id1, got[0].ID)
	s.Equal("Transport", got[0].Category)

	none, err := s.backend.GetExpenses(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *Suite) TestOwnerlessExpenses() {
	e := s.expense(nil, "Anonymous upload", 1000, core.NewDate(2024, 4, 1), "")
	exists, err := s.backend.ExpenseExists(s.ctx, e.Key())
	s.Require().NoError(err)
	s.False(exists)

	_, err = s.backend.InsertExpense(s.ctx, e)
	s.Require().NoError(err)

	exists, err = s.backend.ExpenseExists(s.ctx, e.Key())
	s.Require().NoError(err)
	s.True(exists)

	uid := s.user("owner@example.com")
	owned := e
	owned.UserID = &uid
	exists, err = s.backend.ExpenseExists(s.ctx, owned.Key())
	s.Require().NoError(err)
	s.False(exists, "ownerless rows must not collide with owned rows")
}

func (s *Suite) TestMemoryUpsert() {
	uid := s.user("mem@example.com")

	_, found, err := s.backend.GetMemory(s.ctx, uid, "Netflix")
	s.Require().NoError(err)
	s.False(found)

	s.Require().NoError(s.backend.UpsertMemory(s.ctx, core.CategoryMemory{UserID: uid, Description: "Netflix", Category: "Fun"}))
	s.Require().NoError(s.backend.UpsertMemory(s.ctx, core.CategoryMemory{UserID: uid, Description: "Netflix", Category: "Subscriptions"}))
	s.Require().NoError(s.backend.UpsertMemory(s.ctx, core.CategoryMemory{UserID: uid, Description: "Uber", Category: "Transport"}))

	cat, found, err := s.backend.GetMemory(s.ctx, uid, "Netflix")
	s.Require().NoError(err)
	s.True(found)
	s.Equal("Subscriptions", cat)

	all, err := s.backend.ListMemory(s.ctx, uid)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("Netflix", all[0].Description)
	s.Equal("Uber", all[1].Description)
}

var errAbort = errors.New("abort")

func (s *Suite) TestInTxRollsBack() {
	uid := s.user("tx@example.com")

	err := s.backend.InTx(s.ctx, func(tx storage.Store) error {
		if _, err := tx.InsertExpense(s.ctx, s.expense(&uid, "Doomed", 100, core.NewDate(2024, 5, 1), "")); err != nil {
			return err
		}
		if err := tx.UpsertMemory(s.ctx, core.CategoryMemory{UserID: uid, Description: "Doomed", Category: "X"}); err != nil {
			return err
		}
		return errAbort
	})
	s.ErrorIs(err, errAbort)

	list, err := s.backend.ListExpenses(s.ctx, uid)
	s.Require().NoError(err)
	s.Empty(list)

	_, found, err := s.backend.GetMemory(s.ctx, uid, "Doomed")
	s.Require().NoError(err)
	s.False(found)
}

func (s *Suite) TestInTxCommits() {
	uid := s.user("commit@example.com")

	err := s.backend.InTx(s.ctx, func(tx storage.Store) error {
		e := s.expense(&uid, "Kept", 100, core.NewDate(2024, 5, 1), "")
		if _, err := tx.InsertExpense(s.ctx, e); err != nil {
			return err
		}
		exists, err := tx.ExpenseExists(s.ctx, e.Key())
		if err != nil {
			return err
		}
		s.True(exists, "writes must be visible inside the transaction")
		return nil
	})
	s.Require().NoError(err)

	list, err := s.backend.ListExpenses(s.ctx, uid)
	s.Require().NoError(err)
	s.Len(list, 1)
}
