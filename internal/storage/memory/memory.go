// Package memory is the in-process data backend used by local-only mode.
// Its full content can be dumped to and restored from a JSON state file.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"cardspend/internal/core"
	"cardspend/internal/localstate"
	"cardspend/internal/storage"
)

type userRecord struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Snapshot is the persisted form of a Store.
type Snapshot struct {
	NextID     int64                 `json:"next_id"`
	Users      []userRecord          `json:"users"`
	Categories []core.Category       `json:"categories"`
	Expenses   []core.Expense        `json:"expenses"`
	Memory     []core.CategoryMemory `json:"memory"`
}

// data holds the state and implements storage.Store without locking.
type data struct {
	nextID     int64
	users      []userRecord
	categories []core.Category
	expenses   []core.Expense
	memory     map[int64]map[string]string
}

// Store guards data with a mutex. Transactions hold the lock for their whole
// duration and restore a copy of the state on error.
type Store struct {
	mu sync.Mutex
	d  *data
}

var _ storage.Backend = (*Store)(nil)

func New() *Store {
	return &Store{d: &data{memory: make(map[int64]map[string]string)}}
}

// NewWithDefaults returns a store seeded with the default category list.
func NewWithDefaults() *Store {
	s := New()
	for _, name := range localstate.DefaultCategories {
		_, _ = s.d.CreateCategory(context.Background(), name)
	}
	return s
}

// Open loads the store from path, seeding default categories when the file
// does not exist yet.
func Open(path string) (*Store, error) {
	var snap Snapshot
	found, err := localstate.Load(path, &snap)
	if err != nil {
		return nil, err
	}
	if !found {
		return NewWithDefaults(), nil
	}
	s := New()
	s.Restore(snap)
	return s, nil
}

// SaveTo persists the current state to path.
func (s *Store) SaveTo(path string) error {
	return localstate.Save(path, s.Dump())
}

func (s *Store) Dump() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		NextID:     s.d.nextID,
		Users:      append([]userRecord(nil), s.d.users...),
		Categories: append([]core.Category(nil), s.d.categories...),
		Expenses:   append([]core.Expense(nil), s.d.expenses...),
	}
	for uid, entries := range s.d.memory {
		for desc, cat := range entries {
			snap.Memory = append(snap.Memory, core.CategoryMemory{UserID: uid, Description: desc, Category: cat})
		}
	}
	sort.Slice(snap.Memory, func(i, j int) bool {
		if snap.Memory[i].UserID != snap.Memory[j].UserID {
			return snap.Memory[i].UserID < snap.Memory[j].UserID
		}
		return snap.Memory[i].Description < snap.Memory[j].Description
	})
	return snap
}

func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := &data{
		nextID:     snap.NextID,
		users:      append([]userRecord(nil), snap.Users...),
		categories: append([]core.Category(nil), snap.Categories...),
		expenses:   append([]core.Expense(nil), snap.Expenses...),
		memory:     make(map[int64]map[string]string),
	}
	for _, m := range snap.Memory {
		if d.memory[m.UserID] == nil {
			d.memory[m.UserID] = make(map[string]string)
		}
		d.memory[m.UserID][m.Description] = m.Category
	}
	s.d = d
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) InTx(ctx context.Context, fn func(storage.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.d.clone()
	if err := fn(s.d); err != nil {
		s.d = backup
		return err
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.CreateUser(ctx, email, passwordHash)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.GetUserByEmail(ctx, email)
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.ListCategories(ctx)
}

func (s *Store) CreateCategory(ctx context.Context, name string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.CreateCategory(ctx, name)
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.DeleteCategory(ctx, id)
}

func (s *Store) ExpenseExists(ctx context.Context, key core.ExpenseKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.ExpenseExists(ctx, key)
}

func (s *Store) InsertExpense(ctx context.Context, e core.Expense) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.InsertExpense(ctx, e)
}

func (s *Store) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.ListExpenses(ctx, userID)
}

func (s *Store) GetExpenses(ctx context.Context, ids []int64) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.GetExpenses(ctx, ids)
}

func (s *Store) SetExpenseCategory(ctx context.Context, userID, id int64, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.SetExpenseCategory(ctx, userID, id, category)
}

func (s *Store) ListUncategorized(ctx context.Context, userID int64) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.ListUncategorized(ctx, userID)
}

func (s *Store) UpsertMemory(ctx context.Context, m core.CategoryMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.UpsertMemory(ctx, m)
}

func (s *Store) GetMemory(ctx context.Context, userID int64, description string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.GetMemory(ctx, userID, description)
}

func (s *Store) ListMemory(ctx context.Context, userID int64) ([]core.CategoryMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.ListMemory(ctx, userID)
}

// data

func (d *data) clone() *data {
	c := &data{
		nextID:     d.nextID,
		users:      append([]userRecord(nil), d.users...),
		categories: append([]core.Category(nil), d.categories...),
		expenses:   append([]core.Expense(nil), d.expenses...),
		memory:     make(map[int64]map[string]string, len(d.memory)),
	}
	for uid, entries := range d.memory {
		m := make(map[string]string, len(entries))
		for k, v := range entries {
			m[k] = v
		}
		c.memory[uid] = m
	}
	return c
}

func (d *data) id() int64 {
	d.nextID++
	return d.nextID
}

func (d *data) CreateUser(_ context.Context, email, passwordHash string) (core.User, error) {
	for _, u := range d.users {
		if u.Email == email {
			return core.User{}, storage.ErrConflict
		}
	}
	u := userRecord{ID: d.id(), Email: email, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	d.users = append(d.users, u)
	return u.toCore(), nil
}

func (d *data) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	for _, u := range d.users {
		if u.Email == email {
			return u.toCore(), nil
		}
	}
	return core.User{}, storage.ErrNotFound
}

func (u userRecord) toCore() core.User {
	return core.User{ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash, CreatedAt: u.CreatedAt}
}

func (d *data) ListCategories(context.Context) ([]core.Category, error) {
	out := append([]core.Category(nil), d.categories...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *data) CreateCategory(_ context.Context, name string) (core.Category, error) {
	for _, c := range d.categories {
		if c.Name == name {
			return core.Category{}, storage.ErrConflict
		}
	}
	c := core.Category{ID: d.id(), Name: name}
	d.categories = append(d.categories, c)
	return c, nil
}

func (d *data) DeleteCategory(_ context.Context, id int64) (bool, error) {
	for i, c := range d.categories {
		if c.ID == id {
			d.categories = append(d.categories[:i:i], d.categories[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (d *data) ExpenseExists(_ context.Context, key core.ExpenseKey) (bool, error) {
	for _, e := range d.expenses {
		if e.Key() == key {
			return true, nil
		}
	}
	return false, nil
}

func (d *data) InsertExpense(_ context.Context, e core.Expense) (int64, error) {
	e.ID = d.id()
	if e.UserID != nil {
		uid := *e.UserID
		e.UserID = &uid
	}
	d.expenses = append(d.expenses, e)
	return e.ID, nil
}

func (d *data) ListExpenses(_ context.Context, userID int64) ([]core.Expense, error) {
	return d.filter(func(e core.Expense) bool { return ownedBy(e, userID) }), nil
}

func (d *data) GetExpenses(_ context.Context, ids []int64) ([]core.Expense, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := d.filter(func(e core.Expense) bool { return want[e.ID] })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *data) SetExpenseCategory(_ context.Context, userID, id int64, category string) error {
	for i := range d.expenses {
		if d.expenses[i].ID == id && ownedBy(d.expenses[i], userID) {
			d.expenses[i].Category = category
			return nil
		}
	}
	return storage.ErrNotFound
}

func (d *data) ListUncategorized(_ context.Context, userID int64) ([]core.Expense, error) {
	return d.filter(func(e core.Expense) bool {
		return ownedBy(e, userID) && strings.TrimSpace(e.Category) == ""
	}), nil
}

// filter returns matching expenses ordered by date then id, newest first.
func (d *data) filter(keep func(core.Expense) bool) []core.Expense {
	var out []core.Expense
	for _, e := range d.expenses {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func ownedBy(e core.Expense, userID int64) bool {
	return e.UserID != nil && *e.UserID == userID
}

func (d *data) UpsertMemory(_ context.Context, m core.CategoryMemory) error {
	if d.memory[m.UserID] == nil {
		d.memory[m.UserID] = make(map[string]string)
	}
	d.memory[m.UserID][m.Description] = m.Category
	return nil
}

func (d *data) GetMemory(_ context.Context, userID int64, description string) (string, bool, error) {
	cat, ok := d.memory[userID][description]
	return cat, ok, nil
}

func (d *data) ListMemory(_ context.Context, userID int64) ([]core.CategoryMemory, error) {
	var out []core.CategoryMemory
	for desc, cat := range d.memory[userID] {
		out = append(out, core.CategoryMemory{UserID: userID, Description: desc, Category: cat})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Description < out[j].Description })
	return out, nil
}
