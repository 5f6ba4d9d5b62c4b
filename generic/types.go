/*
Package generic provides the domain-agnostic core of the tax engine.

PURPOSE:
  This package contains the money, time, band and audit primitives that every
  other package builds on. Nothing here knows about Income Tax, National
  Insurance or Capital Gains: a progressive band schedule is just an ordered
  list of ranges with rates, and an Amount is just an exact decimal sum of
  money.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: An exact sum of money with a currency unit (always GBP here)
  - Rate: A decimal fraction (0.20 = 20%)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal; float64 never touches a liability
  2. Immutability: Amount methods return new values
  3. Rounding happens once, at line-item level (RoundPenny), never mid-calculation

USAGE:
  salary := generic.GBP(75000)
  allowance := generic.MustGBP("12570")
  taxable := salary.Sub(allowance).NonNegative()

SEE ALSO:
  - bands.go: Progressive marginal band algorithm
  - trail.go: Audit trail of calculation steps
  - errors.go: Error taxonomy (input / rule / consistency / validation)
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Sum of money with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitGBP Unit = "GBP"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

// GBP returns a whole-pound amount.
func GBP(pounds int64) Amount {
	return Amount{Value: decimal.NewFromInt(pounds), Unit: UnitGBP}
}

// Pounds wraps an existing decimal as a GBP amount.
func Pounds(d decimal.Decimal) Amount {
	return Amount{Value: d, Unit: UnitGBP}
}

// ParseGBP parses a decimal string such as "1234.56".
func ParseGBP(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Pounds(d), nil
}

// MustGBP parses s or panics. Use for constants and tests.
func MustGBP(s string) Amount {
	a, err := ParseGBP(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ZeroGBP is the zero amount.
func ZeroGBP() Amount { return Amount{Value: decimal.Zero, Unit: UnitGBP} }

func (a Amount) Zero() Amount                      { return Amount{Value: decimal.Zero, Unit: a.unit()} }
func (a Amount) Add(b Amount) Amount               { return Amount{Value: a.Value.Add(b.Value), Unit: a.unit()} }
func (a Amount) Sub(b Amount) Amount               { return Amount{Value: a.Value.Sub(b.Value), Unit: a.unit()} }
func (a Amount) Mul(s decimal.Decimal) Amount      { return Amount{Value: a.Value.Mul(s), Unit: a.unit()} }
func (a Amount) Div(s decimal.Decimal) Amount      { return Amount{Value: a.Value.Div(s), Unit: a.unit()} }
func (a Amount) Neg() Amount                       { return Amount{Value: a.Value.Neg(), Unit: a.unit()} }
func (a Amount) IsNegative() bool                  { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                      { return a.Value.IsZero() }
func (a Amount) IsPositive() bool                  { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool               { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool         { return a.Value.GreaterThan(b.Value) }
func (a Amount) GreaterThanOrEqual(b Amount) bool  { return a.Value.GreaterThanOrEqual(b.Value) }
func (a Amount) LessThan(b Amount) bool            { return a.Value.LessThan(b.Value) }
func (a Amount) LessThanOrEqual(b Amount) bool     { return a.Value.LessThanOrEqual(b.Value) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func (a Amount) unit() Unit {
	if a.Unit == "" {
		return UnitGBP
	}
	return a.Unit
}

// NonNegative floors the amount at zero.
func (a Amount) NonNegative() Amount {
	if a.IsNegative() {
		return a.Zero()
	}
	return a
}

// RoundPenny truncates toward zero at two decimal places. Tax line items are
// rounded down to the penny, so a positive liability never rounds up.
func (a Amount) RoundPenny() Amount {
	return Amount{Value: a.Value.Truncate(2), Unit: a.unit()}
}

func (a Amount) String() string {
	return a.Value.StringFixed(2)
}

// MarshalJSON writes the value only; the unit is implied by the API contract.
func (a Amount) MarshalJSON() ([]byte, error) {
	return a.Value.MarshalJSON()
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if err := a.Value.UnmarshalJSON(data); err != nil {
		return err
	}
	a.Unit = UnitGBP
	return nil
}

// UnmarshalText lets rule data files (YAML) hold plain decimal literals.
func (a *Amount) UnmarshalText(text []byte) error {
	if err := a.Value.UnmarshalText(text); err != nil {
		return err
	}
	a.Unit = UnitGBP
	return nil
}

// MarshalText mirrors UnmarshalText so rule data round-trips through YAML.
func (a Amount) MarshalText() ([]byte, error) {
	return a.Value.MarshalText()
}

// Sum adds amounts together.
func Sum(amounts ...Amount) Amount {
	total := ZeroGBP()
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// RATES
// =============================================================================

// Rate is a decimal fraction: 0.2 means 20%.
type Rate = decimal.Decimal

// MustRate parses a rate literal or panics.
func MustRate(s string) Rate {
	return decimal.RequireFromString(s)
}

// Percent renders a rate as "20%".
func Percent(r Rate) string {
	return r.Mul(decimal.NewFromInt(100)).String() + "%"
}
