package core

import (
	"errors"
	"strings"
	"testing"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-05-01", "2024-05-01", true},
		{"01/05/2024", "2024-05-01", true},
		{"2024-05-01T13:45:00Z", "2024-05-01", true},
		{" 2024-12-31 ", "2024-12-31", true},
		{"2024-13-01", "", false},
		{"yesterday", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.want {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got, err)
			}
		} else if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	ok := Expense{Description: "Uber", Amount: Money{Cents: 100}, Date: NewDate(2024, 1, 2)}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	noDate := ok
	noDate.Date = Date{}
	if err := noDate.Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}

	blank := ok
	blank.Description = "   "
	if err := blank.Validate(); !errors.Is(err, ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}

	long := ok
	long.Description = strings.Repeat("x", MaxDescriptionLength+1)
	if err := long.Validate(); !errors.Is(err, ErrDescriptionTooLong) {
		t.Fatalf("expected ErrDescriptionTooLong, got %v", err)
	}
}

func TestIngestRowToExpense(t *testing.T) {
	uid := int64(7)
	row := IngestRow{Title: " Netflix 2/12 ", Amount: "R$ 39.90", Date: "2024-03-10", Category: " Subscriptions "}
	e, err := row.ToExpense(&uid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Description != "Netflix 2/12" {
		t.Fatalf("title alias not applied: %q", e.Description)
	}
	if e.Amount.Cents != 3990 || e.Category != "Subscriptions" || *e.UserID != 7 {
		t.Fatalf("unexpected expense %+v", e)
	}
	if e.NormalizedDescription() != "Netflix" {
		t.Fatalf("unexpected normalized description %q", e.NormalizedDescription())
	}

	if _, err := (IngestRow{Description: "x", Amount: "n/a", Date: "2024-03-10"}).ToExpense(nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := (IngestRow{Description: "x", Amount: "1", Date: "soon"}).ToExpense(nil); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	if _, err := (IngestRow{Amount: "1", Date: "2024-03-10"}).ToExpense(nil); !errors.Is(err, ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
}

func TestExpenseKey(t *testing.T) {
	uid := int64(3)
	a := Expense{UserID: &uid, Description: "Uber", Amount: Money{Cents: 1500}, Date: NewDate(2024, 2, 1)}
	b := a
	b.Category = "Transport"
	if a.Key() != b.Key() {
		t.Fatalf("category must not be part of the key")
	}
	c := a
	c.UserID = nil
	if a.Key() == c.Key() {
		t.Fatalf("owner must be part of the key")
	}
}
