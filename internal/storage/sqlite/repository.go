// Package sqlite is the embedded single-file data backend.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"

	"cardspend/internal/core"
	"cardspend/internal/storage"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const dsnPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repository struct {
	db *sql.DB
	q  querier
	tx bool
}

var _ storage.Backend = (*Repository)(nil)

func NewRepository(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := dbPath + dsnPragmas
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer keeps transactions from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dsn); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{db: db, q: db}, nil
}

func runMigrations(dsn string) error {
	// Separate connection: the migrate driver closes it when done.
	migrateDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}

	driver, err := migratesqlite.WithInstance(migrateDB, &migratesqlite.Config{})
	if err != nil {
		migrateDB.Close()
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	return storage.RunMigrations(migrationsFS, "migrations", "sqlite", driver)
}

func (r *Repository) Close() error {
	if r.db != nil && !r.tx {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InTx runs fn inside a single SQL transaction. Nested calls join the outer one.
func (r *Repository) InTx(ctx context.Context, fn func(storage.Store) error) error {
	if r.tx {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&Repository{db: r.db, q: tx, tx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Users

func (r *Repository) CreateUser(ctx context.Context, email, passwordHash string) (core.User, error) {
	now := time.Now().UTC()
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, created_at) VALUES (?, ?, ?)`,
		email, passwordHash, now.Format(time.RFC3339))
	if isUniqueViolation(err) {
		return core.User{}, storage.ErrConflict
	}
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user id: %w", err)
	}
	return core.User{ID: id, Email: email, PasswordHash: passwordHash, CreatedAt: now.Truncate(time.Second)}, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var (
		u       core.User
		created string
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, storage.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return u, nil
}

// Categories

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) CreateCategory(ctx context.Context, name string) (core.Category, error) {
	res, err := r.q.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
	if isUniqueViolation(err) {
		return core.Category{}, storage.ErrConflict
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	return core.Category{ID: id, Name: name}, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	return n > 0, nil
}

// Expenses

const expenseColumns = `id, user_id, description, amount_cents, date, category`

func (r *Repository) ExpenseExists(ctx context.Context, key core.ExpenseKey) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx,
		`SELECT 1 FROM expenses WHERE user_id IS ? AND description = ? AND amount_cents = ? AND date = ? LIMIT 1`,
		ownerArg(key.UserID), key.Description, key.Cents, key.Date).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check expense: %w", err)
	}
	return true, nil
}

func (r *Repository) InsertExpense(ctx context.Context, e core.Expense) (int64, error) {
	var owner any
	if e.UserID != nil {
		owner = *e.UserID
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO expenses (user_id, description, amount_cents, date, category) VALUES (?, ?, ?, ?, ?)`,
		owner, e.Description, e.Amount.Cents, e.Date.String(), nullString(e.Category))
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense id: %w", err)
	}
	return id, nil
}

func (r *Repository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? ORDER BY date DESC, id DESC`, userID)
}

func (r *Repository) GetExpenses(ctx context.Context, ids []int64) ([]core.Expense, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id IN (`+placeholders+`) ORDER BY id ASC`, args...)
}

func (r *Repository) SetExpenseCategory(ctx context.Context, userID, id int64, category string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE expenses SET category = ? WHERE id = ? AND user_id = ?`, nullString(category), id, userID)
	if err != nil {
		return fmt.Errorf("update expense category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update expense category: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repository) ListUncategorized(ctx context.Context, userID int64) ([]core.Expense, error) {
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? AND (category IS NULL OR category = '') ORDER BY date DESC, id DESC`,
		userID)
}

func (r *Repository) queryExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e        core.Expense
			owner    sql.NullInt64
			date     string
			category sql.NullString
		)
		if err := rows.Scan(&e.ID, &owner, &e.Description, &e.Amount.Cents, &date, &category); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if owner.Valid {
			uid := owner.Int64
			e.UserID = &uid
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("expense %d date %q: %w", e.ID, date, err)
		}
		e.Category = category.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Category memory

func (r *Repository) UpsertMemory(ctx context.Context, m core.CategoryMemory) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO expense_category_memory (user_id, description, category, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, description)
		DO UPDATE SET category = excluded.category, updated_at = excluded.updated_at`,
		m.UserID, m.Description, m.Category, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert category memory: %w", err)
	}
	return nil
}

func (r *Repository) GetMemory(ctx context.Context, userID int64, description string) (string, bool, error) {
	var category string
	err := r.q.QueryRowContext(ctx,
		`SELECT category FROM expense_category_memory WHERE user_id = ? AND description = ?`,
		userID, description).Scan(&category)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get category memory: %w", err)
	}
	return category, true, nil
}

func (r *Repository) ListMemory(ctx context.Context, userID int64) ([]core.CategoryMemory, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT user_id, description, category FROM expense_category_memory WHERE user_id = ? ORDER BY description ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list category memory: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryMemory
	for rows.Next() {
		var m core.CategoryMemory
		if err := rows.Scan(&m.UserID, &m.Description, &m.Category); err != nil {
			return nil, fmt.Errorf("scan category memory: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func ownerArg(uid int64) any {
	if uid == 0 {
		return nil
	}
	return uid
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
