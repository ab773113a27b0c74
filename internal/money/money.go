package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultScale is the number of fractional digits stored amounts carry.
const DefaultScale int32 = 2

// Rounding selects how a high-precision intermediate is brought down to the
// stored scale. Rounding happens only in Materialize; Add/Sub/Neg are exact.
type Rounding int

const (
	// RoundHalfUp rounds .5 away from zero (the default policy).
	RoundHalfUp Rounding = iota
	// RoundHalfEven rounds .5 to the nearest even digit.
	RoundHalfEven
)

// Money is a fixed-point monetary amount backed by an arbitrary-precision
// decimal. Values produced by the constructors and by Materialize are always
// at a fixed scale; arithmetic between such values never loses precision.
type Money struct {
	dec decimal.Decimal
}

// Zero returns the zero amount.
func Zero() Money {
	return Money{}
}

// FromMinorUnits builds an amount from integer minor units at DefaultScale,
// e.g. FromMinorUnits(135000) == 1350.00.
func FromMinorUnits(units int64) Money {
	return Money{dec: decimal.New(units, -DefaultScale)}
}

// Parse reads a decimal string. The value must not carry more fractional
// digits than the given scale; parsing never rounds.
func Parse(s string, scale int32) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if -d.Exponent() > scale {
		return Money{}, fmt.Errorf("amount %q exceeds scale %d", s, scale)
	}
	return Money{dec: d}, nil
}

// MustParse is Parse at DefaultScale, panicking on error. For constants and
// tests only.
func MustParse(s string) Money {
	m, err := Parse(s, DefaultScale)
	if err != nil {
		panic(err)
	}
	return m
}

// Materialize brings a high-precision intermediate down to the stored scale.
// This is the only place rounding is allowed to happen.
func Materialize(d decimal.Decimal, scale int32, r Rounding) Money {
	switch r {
	case RoundHalfEven:
		return Money{dec: d.RoundBank(scale)}
	default:
		return Money{dec: d.Round(scale)}
	}
}

// Decimal exposes the underlying decimal for high-precision computation.
func (m Money) Decimal() decimal.Decimal {
	return m.dec
}

// Add returns m + o. Exact.
func (m Money) Add(o Money) Money {
	return Money{dec: m.dec.Add(o.dec)}
}

// Sub returns m - o. Exact.
func (m Money) Sub(o Money) Money {
	return Money{dec: m.dec.Sub(o.dec)}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{dec: m.dec.Neg()}
}

// Abs returns the absolute value of m.
func (m Money) Abs() Money {
	return Money{dec: m.dec.Abs()}
}

// Cmp compares m to o: -1 if m < o, 0 if equal, +1 if m > o.
func (m Money) Cmp(o Money) int {
	return m.dec.Cmp(o.dec)
}

// Equal reports whether m and o are the same amount.
func (m Money) Equal(o Money) bool {
	return m.dec.Equal(o.dec)
}

// IsZero reports whether m is zero.
func (m Money) IsZero() bool {
	return m.dec.IsZero()
}

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool {
	return m.dec.IsPositive()
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool {
	return m.dec.IsNegative()
}

// StringFixed renders the amount with exactly scale fractional digits.
func (m Money) StringFixed(scale int32) string {
	return m.dec.StringFixed(scale)
}

func (m Money) String() string {
	return m.dec.StringFixed(DefaultScale)
}

// MarshalJSON renders the amount as a JSON number at DefaultScale.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.dec.StringFixed(DefaultScale)), nil
}

// UnmarshalJSON accepts a JSON number or numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	m.dec = d
	return nil
}

// Scan implements sql.Scanner so NUMERIC columns scan directly into Money.
func (m *Money) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	m.dec = d
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.dec.Value()
}
