// Package money holds prices as whole centimes so totals never drift.
package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in centimes of the shop currency (MAD).
type Money int64

// Zero is the empty amount.
const Zero Money = 0

var errNegative = errors.New("amount cannot be negative")

// FromFloat converts a decimal amount (e.g. 149.9) to centimes, rounding half away from zero.
func FromFloat(amount float64) (Money, error) {
	if amount < 0 {
		return 0, errNegative
	}
	return Money(math.Round(amount * 100)), nil
}

// Parse reads "149.90", "149,90" or "149" as typed by operators and spreadsheets.
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	s = strings.TrimSuffix(strings.TrimSuffix(s, "MAD"), "DH")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromFloat(f)
}

// Float returns the decimal amount.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// String formats with two decimals, e.g. "149.90".
func (m Money) String() string {
	return strconv.FormatFloat(m.Float(), 'f', 2, 64)
}

// Mul multiplies by a quantity.
func (m Money) Mul(qty int) Money {
	return m * Money(qty)
}

// ApplyPercent returns the amount after a percentage discount, rounded to the centime.
// A percent outside (0, 100) leaves the amount unchanged.
func (m Money) ApplyPercent(percent float64) Money {
	if percent <= 0 || percent >= 100 {
		return m
	}
	return Money(math.Round(float64(m) * (100 - percent) / 100))
}

// MarshalJSON encodes the amount as a decimal number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*m = 0
		return nil
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
