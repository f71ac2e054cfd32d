package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// moneyScale is the number of fractional digits every amount carries.
const moneyScale = 2

// ErrInvalidAmount is returned when an input cannot be represented as money.
var ErrInvalidAmount = errors.New("invalid amount")

// Money is an exact fixed-point amount with two fractional digits, stored as a
// signed count of minor units (cents). It never passes through binary floating
// point: parsing, arithmetic and FX conversion all happen in integer or
// arbitrary-precision decimal space.
type Money struct {
	units int64
}

// NewMoney creates a Money from a signed count of minor units.
func NewMoney(units int64) Money {
	return Money{units: units}
}

// ParseMoney parses a decimal string, rounding half-up to two fractional
// digits. Returns ErrInvalidAmount for malformed input or amounts outside
// the int64 minor-unit range.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	units := d.Round(moneyScale).Shift(moneyScale)
	if !units.BigInt().IsInt64() {
		return Money{}, fmt.Errorf("%w: %q exceeds the representable range", ErrInvalidAmount, s)
	}
	return Money{units: units.IntPart()}, nil
}

// ParsePositiveMoney parses like ParseMoney and additionally requires the
// rounded result to be strictly positive.
func ParsePositiveMoney(s string) (Money, error) {
	m, err := ParseMoney(s)
	if err != nil {
		return Money{}, err
	}
	if !m.IsPositive() {
		return Money{}, fmt.Errorf("%w: must be > 0", ErrInvalidAmount)
	}
	return m, nil
}

// MoneyFromDecimal converts an arbitrary-precision decimal to Money,
// rounding half-up at two fractional digits.
func MoneyFromDecimal(d decimal.Decimal) Money {
	// decimal.Round rounds half away from zero, which is half-up for the
	// positive amounts money operations produce.
	return Money{units: d.Round(moneyScale).Shift(moneyScale).IntPart()}
}

// Units returns the signed count of minor units.
func (m Money) Units() int64 { return m.units }

// Decimal returns the amount as an arbitrary-precision decimal at scale 2.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.units, -moneyScale)
}

// Add returns m + other.
func (m Money) Add(other Money) Money { return Money{units: m.units + other.units} }

// Sub returns m - other.
func (m Money) Sub(other Money) Money { return Money{units: m.units - other.units} }

// Neg returns -m.
func (m Money) Neg() Money { return Money{units: -m.units} }

// Cmp compares two amounts: -1 if m < other, 0 if equal, +1 if m > other.
func (m Money) Cmp(other Money) int {
	switch {
	case m.units < other.units:
		return -1
	case m.units > other.units:
		return 1
	default:
		return 0
	}
}

// Equal reports whether two amounts are identical.
func (m Money) Equal(other Money) bool { return m.units == other.units }

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool { return m.units < other.units }

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool { return m.units > 0 }

// IsZero reports whether m == 0.
func (m Money) IsZero() bool { return m.units == 0 }

// MulRate multiplies by an FX rate at full precision, then rounds half-up to
// two fractional digits. The rounding happens exactly once, at this boundary.
func (m Money) MulRate(rate decimal.Decimal) Money {
	return MoneyFromDecimal(m.Decimal().Mul(rate))
}

// DivRate divides by an FX rate and rounds half-up to two fractional digits.
// The quotient is carried well past the money scale so the single rounding
// at two digits is decided by the exact quotient, not by an earlier one.
func (m Money) DivRate(rate decimal.Decimal) Money {
	return MoneyFromDecimal(m.Decimal().DivRound(rate, moneyScale+8))
}

// String formats the amount with exactly two fractional digits, e.g. "950.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(moneyScale)
}

// MarshalJSON renders the amount as a JSON number with two fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
