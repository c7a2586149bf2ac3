package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half away from zero
		{" 2.50 ", 250, true},
		{"R$ 49.90", 4990, true},
		{"$1,234.56", 123456, true},
		{"-35.9", -3590, true},
		{"0", 0, true},
		{".5", 50, true},
		{"12-3", 1200, true}, // leading number wins
		{"9999999999.99", MaxAmountCents, true},
		{"-9999999999.99", -MaxAmountCents, true},
		{"10000000000", 0, false},
		{"9999999999.995", 0, false}, // rounds past the limit
		{"abc", 0, false},
		{"-", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestAmountFromFloat(t *testing.T) {
	got, err := AmountFromFloat(19.99)
	if err != nil || got.Cents != 1999 {
		t.Fatalf("expected 1999, got %d (err=%v)", got.Cents, err)
	}
	if _, err := AmountFromFloat(mathInf()); err == nil {
		t.Fatalf("expected error for +Inf")
	}
	if _, err := AmountFromFloat(1e10); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for 1e10, got %v", err)
	}
}

func mathInf() float64 {
	var zero float64
	return 1 / zero
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:     "0.00",
		5:     "0.05",
		1234:  "12.34",
		-1250: "-12.50",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Fatalf("Money{%d}.String() = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	var v struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.5, "b": "R$ 3.10"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A.Cents != 1250 || v.B.Cents != 310 {
		t.Fatalf("unexpected cents a=%d b=%d", v.A.Cents, v.B.Cents)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"a":12.50,"b":3.10}` {
		t.Fatalf("unexpected json %s", out)
	}
}

func TestAmountInput(t *testing.T) {
	cases := []struct {
		raw  string
		want AmountInput
	}{
		{`12.30`, "12.30"},
		{`"12,30"`, "12,30"},
		{`null`, ""},
		{`-7`, "-7"},
	}
	for _, tc := range cases {
		var a AmountInput
		if err := json.Unmarshal([]byte(tc.raw), &a); err != nil {
			t.Fatalf("%s: %v", tc.raw, err)
		}
		if a != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.raw, a, tc.want)
		}
	}
	var a AmountInput
	if err := json.Unmarshal([]byte(`true`), &a); err == nil {
		t.Fatalf("expected error for boolean amount")
	}
}
