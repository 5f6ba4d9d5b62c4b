/*
bands.go - Progressive marginal band taxation

PURPOSE:
  Every band-based tax in the engine (Income Tax, dividend tax, CGT rate
  selection, Class 1/Class 4 NI) uses the same algorithm:

    liability = Σ over bands of overlap(slice, band) × rate

  No average-rate shortcuts: the exact band holding the last pound is part of
  the result, because marginal-rate reporting depends on it.

STACKING:
  Dividends and gains are taxed "on top" of other income. StackedTax taxes a
  slice [start, start+amount) instead of [0, amount), optionally with a
  different rate per band (dividend rates, CGT rates).

EXTENSION:
  Gift Aid and relief-at-source pension contributions extend the bands.
  Extend shifts every boundary above zero upward by the same amount; the
  first band keeps its zero lower bound and only gets wider.

EXAMPLE:
  bands 20% [0, 37700), 40% [37700, 125140), 45% [125140, ∞)
  Tax(62430) = 37700×0.20 + 24730×0.40 = 7540 + 9892 = 17432
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BAND
// =============================================================================

// Band is a contiguous range [Lower, Upper) taxed at one rate.
// Upper == nil means unbounded.
type Band struct {
	Name  string           `yaml:"name" json:"name"`
	Lower decimal.Decimal  `yaml:"lower" json:"lower"`
	Upper *decimal.Decimal `yaml:"upper,omitempty" json:"upper,omitempty"`
	Rate  decimal.Decimal  `yaml:"rate" json:"rate"`
}

func (b Band) Unbounded() bool { return b.Upper == nil }

// Width returns the band width, or nil for the unbounded band.
func (b Band) Width() *decimal.Decimal {
	if b.Upper == nil {
		return nil
	}
	w := b.Upper.Sub(b.Lower)
	return &w
}

// BandSchedule is an ordered, contiguous list of bands.
type BandSchedule []Band

// Validate checks the schedule invariants: starts at zero, contiguous,
// strictly increasing, exactly one unbounded band which is last, rates in [0,1].
func (s BandSchedule) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("band schedule is empty")
	}
	if !s[0].Lower.IsZero() {
		return fmt.Errorf("first band %q must start at 0, starts at %s", s[0].Name, s[0].Lower)
	}
	seen := make(map[string]bool, len(s))
	for i, b := range s {
		if b.Name == "" {
			return fmt.Errorf("band %d has no name", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate band name %q", b.Name)
		}
		seen[b.Name] = true
		if b.Rate.IsNegative() || b.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("band %q rate %s outside [0,1]", b.Name, b.Rate)
		}
		last := i == len(s)-1
		if b.Unbounded() != last {
			if last {
				return fmt.Errorf("top band %q must be unbounded", b.Name)
			}
			return fmt.Errorf("band %q is unbounded but is not the top band", b.Name)
		}
		if last {
			continue
		}
		if !b.Upper.GreaterThan(b.Lower) {
			return fmt.Errorf("band %q upper %s not above lower %s", b.Name, *b.Upper, b.Lower)
		}
		if !s[i+1].Lower.Equal(*b.Upper) {
			return fmt.Errorf("gap or overlap between %q and %q", b.Name, s[i+1].Name)
		}
	}
	return nil
}

// Names returns band names in order.
func (s BandSchedule) Names() []string {
	names := make([]string, len(s))
	for i, b := range s {
		names[i] = b.Name
	}
	return names
}

// Extend returns a copy with every boundary above zero raised by ext.
// A non-positive extension returns the schedule unchanged: bands never move down.
func (s BandSchedule) Extend(ext Amount) BandSchedule {
	out := make(BandSchedule, len(s))
	copy(out, s)
	if !ext.IsPositive() {
		return out
	}
	for i := range out {
		if i > 0 {
			out[i].Lower = out[i].Lower.Add(ext.Value)
		}
		if out[i].Upper != nil {
			up := out[i].Upper.Add(ext.Value)
			out[i].Upper = &up
		}
	}
	return out
}

// Threshold returns the lower bound of the named band.
func (s BandSchedule) Threshold(name string) (Amount, bool) {
	for _, b := range s {
		if b.Name == name {
			return Pounds(b.Lower), true
		}
	}
	return Amount{}, false
}

// BandAt returns the band containing the last pound of income ending at position.
// Position zero belongs to the first band.
func (s BandSchedule) BandAt(position Amount) Band {
	for _, b := range s {
		if b.Upper == nil || position.Value.LessThanOrEqual(*b.Upper) {
			return b
		}
	}
	return s[len(s)-1]
}

// =============================================================================
// TAX CALCULATION
// =============================================================================

// BandSlice is the portion of a taxed amount falling into one band.
type BandSlice struct {
	Band   string          `json:"band"`
	Rate   decimal.Decimal `json:"rate"`
	Amount Amount          `json:"amount"`
	Tax    Amount          `json:"tax"`
}

// BandResult is the outcome of taxing one slice of income.
type BandResult struct {
	Slices  []BandSlice     `json:"slices"`
	Taxed   Amount          `json:"taxed"`
	Tax     Amount          `json:"tax"`
	TopBand string          `json:"top_band"`
	TopRate decimal.Decimal `json:"top_rate"`
}

// RateTable overrides band rates by band name (dividend rates, CGT rates).
type RateTable map[string]decimal.Decimal

// Covers reports whether the table has a rate for every band in the schedule.
func (t RateTable) Covers(s BandSchedule) error {
	for _, b := range s {
		if _, ok := t[b.Name]; !ok {
			return fmt.Errorf("no rate for band %q", b.Name)
		}
	}
	return nil
}

// Tax taxes amount starting from zero at the schedule's own rates.
func (s BandSchedule) Tax(amount Amount) BandResult {
	return s.StackedTax(ZeroGBP(), amount, nil)
}

// StackedTax taxes the slice [start, start+amount). When rates is non-nil the
// rate for each band is looked up by name; bands missing from the table fall
// back to the schedule's own rate (RuleSet validation guarantees coverage).
func (s BandSchedule) StackedTax(start, amount Amount, rates RateTable) BandResult {
	result := BandResult{Taxed: ZeroGBP(), Tax: ZeroGBP()}
	start = start.NonNegative()
	end := start.Add(amount.NonNegative())

	top := s.BandAt(end)
	result.TopBand = top.Name
	result.TopRate = rateFor(top, rates)
	if !amount.IsPositive() {
		return result
	}

	for _, b := range s {
		lo := decimal.Max(b.Lower, start.Value)
		hi := end.Value
		if b.Upper != nil {
			hi = decimal.Min(*b.Upper, end.Value)
		}
		if !hi.GreaterThan(lo) {
			continue
		}
		overlap := Pounds(hi.Sub(lo))
		rate := rateFor(b, rates)
		tax := overlap.Mul(rate)
		result.Slices = append(result.Slices, BandSlice{
			Band:   b.Name,
			Rate:   rate,
			Amount: overlap,
			Tax:    tax,
		})
		result.Taxed = result.Taxed.Add(overlap)
		result.Tax = result.Tax.Add(tax)
	}
	return result
}

func rateFor(b Band, rates RateTable) decimal.Decimal {
	if rates != nil {
		if r, ok := rates[b.Name]; ok {
			return r
		}
	}
	return b.Rate
}
