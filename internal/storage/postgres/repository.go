// Package postgres is the server-backed data backend built on a pgx pool.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"cardspend/internal/core"
	"cardspend/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	pool *pgxpool.Pool
	q    querier
	tx   bool
}

var _ storage.Backend = (*Repository)(nil)

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	if err := runMigrations(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{pool: pool, q: pool}, nil
}

func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("create pgx migrate driver: %w", err)
	}

	return storage.RunMigrations(migrationsFS, "migrations", "pgx5", driver)
}

func (r *Repository) Close() error {
	if r.pool != nil && !r.tx {
		r.pool.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// InTx runs fn inside a single transaction. Nested calls join the outer one.
func (r *Repository) InTx(ctx context.Context, fn func(storage.Store) error) error {
	if r.tx {
		return fn(r)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&Repository{pool: r.pool, q: tx, tx: true})
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Users

func (r *Repository) CreateUser(ctx context.Context, email, passwordHash string) (core.User, error) {
	u := core.User{Email: email, PasswordHash: passwordHash}
	err := r.q.QueryRow(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id, created_at`,
		email, passwordHash).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return core.User{}, storage.ErrConflict
	}
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var u core.User
	err := r.q.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, storage.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Categories

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name FROM categories ORDER BY name ASC`)
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
	c := core.Category{Name: name}
	err := r.q.QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id`, name).Scan(&c.ID)
	if isUniqueViolation(err) {
		return core.Category{}, storage.ErrConflict
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Expenses

const expenseColumns = `id, user_id, description, (amount * 100)::bigint, to_char(date, 'YYYY-MM-DD'), category`

func (r *Repository) ExpenseExists(ctx context.Context, key core.ExpenseKey) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM expenses
			WHERE user_id IS NOT DISTINCT FROM $1
			  AND description = $2 AND amount = $3::numeric AND date = $4::date
		)`,
		ownerArg(key.UserID), key.Description, core.Money{Cents: key.Cents}.String(), key.Date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check expense: %w", err)
	}
	return exists, nil
}

func (r *Repository) InsertExpense(ctx context.Context, e core.Expense) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO expenses (user_id, description, amount, date, category)
		VALUES ($1, $2, $3::numeric, $4::date, $5)
		RETURNING id`,
		e.UserID, e.Description, e.Amount.String(), e.Date.String(), nullString(e.Category)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	return id, nil
}

func (r *Repository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = $1 ORDER BY date DESC, id DESC`, userID)
}

func (r *Repository) GetExpenses(ctx context.Context, ids []int64) ([]core.Expense, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ANY($1) ORDER BY id ASC`, ids)
}

func (r *Repository) SetExpenseCategory(ctx context.Context, userID, id int64, category string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE expenses SET category = $1 WHERE id = $2 AND user_id = $3`, nullString(category), id, userID)
	if err != nil {
		return fmt.Errorf("update expense category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repository) ListUncategorized(ctx context.Context, userID int64) ([]core.Expense, error) {
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = $1 AND (category IS NULL OR category = '') ORDER BY date DESC, id DESC`,
		userID)
}

func (r *Repository) queryExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e        core.Expense
			date     string
			category *string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Description, &e.Amount.Cents, &date, &category); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("expense %d date %q: %w", e.ID, date, err)
		}
		if category != nil {
			e.Category = *category
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Category memory

func (r *Repository) UpsertMemory(ctx context.Context, m core.CategoryMemory) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO expense_category_memory (user_id, description, category)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, description)
		DO UPDATE SET category = EXCLUDED.category, updated_at = now()`,
		m.UserID, m.Description, m.Category)
	if err != nil {
		return fmt.Errorf("upsert category memory: %w", err)
	}
	return nil
}

func (r *Repository) GetMemory(ctx context.Context, userID int64, description string) (string, bool, error) {
	var category string
	err := r.q.QueryRow(ctx,
		`SELECT category FROM expense_category_memory WHERE user_id = $1 AND description = $2`,
		userID, description).Scan(&category)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get category memory: %w", err)
	}
	return category, true, nil
}

func (r *Repository) ListMemory(ctx context.Context, userID int64) ([]core.CategoryMemory, error) {
	rows, err := r.q.Query(ctx,
		`SELECT user_id, description, category FROM expense_category_memory WHERE user_id = $1 ORDER BY description ASC`,
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

func ownerArg(uid int64) *int64 {
	if uid == 0 {
		return nil
	}
	return &uid
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
