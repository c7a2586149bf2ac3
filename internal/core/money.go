// Package core provides money parsing and handling utilities.
//
// Amounts coming from card statements are free text ("R$ 1234.50", "-35.9",
// " 12 "). They are coerced into fixed-point cents using shopspring/decimal
// so that no float rounding leaks into stored values.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountCents is the largest magnitude every backend can store
// (NUMERIC(12,2) on Postgres): 9,999,999,999.99.
const MaxAmountCents = 999_999_999_999

var (
	// nonNumeric matches everything a statement may wrap around a number.
	nonNumeric = regexp.MustCompile(`[^\d.\-]`)
	// leadingNumber is the numeric prefix that survives stripping.
	leadingNumber = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
)

// ParseAmount coerces free text to Money.
//
// Every character other than digits, '.' and '-' is dropped, then the
// leading number is parsed and rounded half away from zero to two places.
// Negative values are refunds and are kept.
//
// Examples:
//
//	ParseAmount("R$ 12.34")  -> 1234
//	ParseAmount("-5")        -> -500
//	ParseAmount("1.005")     -> 101
//	ParseAmount("abc")       -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	cleaned := nonNumeric.ReplaceAllString(strings.TrimSpace(s), "")
	num := leadingNumber.FindString(cleaned)
	if num == "" {
		return Money{}, ErrInvalidAmount
	}
	num = strings.TrimSuffix(num, ".")
	if strings.HasPrefix(num, "-.") {
		num = "-0" + num[1:]
	} else if strings.HasPrefix(num, ".") {
		num = "0" + num
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return moneyFromDecimal(d)
}

// AmountFromFloat coerces a JSON number to Money.
func AmountFromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, ErrInvalidAmount
	}
	return moneyFromDecimal(decimal.NewFromFloat(f))
}

func moneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Round(2).Shift(2)
	if cents.Abs().GreaterThan(decimal.NewFromInt(MaxAmountCents)) {
		return Money{}, fmt.Errorf("%w: magnitude above %s", ErrInvalidAmount, Money{Cents: MaxAmountCents})
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Decimal returns the amount as a two-place decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two decimals, e.g. "-12.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float returns the amount as float64 for display and charting only.
func (m Money) Float() float64 {
	return m.Decimal().InexactFloat64()
}

// Add returns m+o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// MarshalJSON renders the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a string holding an amount.
func (m *Money) UnmarshalJSON(data []byte) error {
	var in AmountInput
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	parsed, err := ParseAmount(string(in))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// AmountInput is the raw text of an amount as received from a client.
// It decodes both JSON numbers and JSON strings without going through float64.
type AmountInput string

// UnmarshalJSON keeps the literal text of numbers and the content of strings.
func (a *AmountInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AmountInput(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return ErrInvalidAmount
		}
		*a = AmountInput(n.String())
	}
	return nil
}
