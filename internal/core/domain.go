package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a calendar date.
const DateLayout = "2006-01-02"

// MaxDescriptionLength bounds a stored description.
const MaxDescriptionLength = 500

// UncategorizedLabel is the bucket for expenses without a category label.
const UncategorizedLabel = "Uncategorized"

type (
	// Date is a calendar date without a time component (UTC midnight).
	Date struct {
		time.Time
	}

	// Money is a fixed-point amount in cents.
	Money struct {
		Cents int64
	}

	User struct {
		ID           int64     `json:"id"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Category struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	// Expense is one card statement line. Category is a free-text label and
	// is not tied to a Category row.
	Expense struct {
		ID          int64  `json:"id"`
		UserID      *int64 `json:"user_id,omitempty"`
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
		Date        Date   `json:"date"`
		Category    string `json:"category,omitempty"`
	}

	// CategoryMemory maps a normalized description to the last category
	// a user picked for it.
	CategoryMemory struct {
		UserID      int64  `json:"user_id"`
		Description string `json:"description"`
		Category    string `json:"category"`
	}

	// IngestRow is a candidate expense before coercion. Title is accepted
	// as an alias of Description.
	IngestRow struct {
		Description string      `json:"description"`
		Title       string      `json:"title,omitempty"`
		Amount      AmountInput `json:"amount"`
		Date        string      `json:"date"`
		Category    string      `json:"category,omitempty"`
	}

	// ExpenseKey is the deduplication identity of an expense.
	ExpenseKey struct {
		UserID      int64
		Description string
		Cents       int64
		Date        string
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
)

var dateLayouts = []string{DateLayout, "02/01/2006"}

// ParseDate accepts "YYYY-MM-DD", "DD/MM/YYYY" and RFC 3339 timestamps,
// keeping only the calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if len(s) > len(DateLayout) && s[len(DateLayout)] == 'T' {
		s = s[:len(DateLayout)]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, ErrInvalidDate
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MonthKey returns the "YYYY-MM" bucket of the date.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (e Expense) Validate() error {
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if len(e.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// Key returns the deduplication identity. Ownerless expenses use user 0.
func (e Expense) Key() ExpenseKey {
	var uid int64
	if e.UserID != nil {
		uid = *e.UserID
	}
	return ExpenseKey{
		UserID:      uid,
		Description: e.Description,
		Cents:       e.Amount.Cents,
		Date:        e.Date.String(),
	}
}

// NormalizedDescription is the category memory key of the expense.
func (e Expense) NormalizedDescription() string {
	return NormalizeDescription(e.Description)
}

// ToExpense coerces the row into an expense owned by owner (nil for none).
func (r IngestRow) ToExpense(owner *int64) (Expense, error) {
	desc := strings.TrimSpace(r.Description)
	if desc == "" {
		desc = strings.TrimSpace(r.Title)
	}
	amount, err := ParseAmount(string(r.Amount))
	if err != nil {
		return Expense{}, fmt.Errorf("amount %q: %w", string(r.Amount), err)
	}
	date, err := ParseDate(r.Date)
	if err != nil {
		return Expense{}, fmt.Errorf("date %q: %w", r.Date, err)
	}
	e := Expense{
		UserID:      owner,
		Description: desc,
		Amount:      amount,
		Date:        date,
		Category:    strings.TrimSpace(r.Category),
	}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}
