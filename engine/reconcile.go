package engine

import (
	"github.com/shopspring/decimal"

	"github.com/warp/tax-engine/generic"
)

// =============================================================================
// RECONCILIATION
// =============================================================================

// reconcile re-derives every total from the computers' band slices instead of
// their reported totals and compares with the rounded line items. Any
// difference beyond one penny per line is an engine defect.
func reconcile(c computed, items []LineItem, total generic.Amount) error {
	// Stacking: each stacked computer must start where the previous one ended.
	if !c.dividends.Start.Equal(c.incomeTax.Position) {
		return &generic.ConsistencyError{Check: "dividend_stack_start", Expected: c.incomeTax.Position, Actual: c.dividends.Start}
	}
	if !c.cgt.Start.Equal(c.dividends.Position) {
		return &generic.ConsistencyError{Check: "gains_stack_start", Expected: c.dividends.Position, Actual: c.cgt.Start}
	}

	sum := generic.Sum(amounts(items)...)
	if !sum.Equal(total) {
		return &generic.ConsistencyError{Check: "total_liability", Expected: sum, Actual: total}
	}

	incomeTax := generic.Sum(
		sliceTax(c.incomeTax.Main),
		sliceTax(c.incomeTax.AllowanceCharge),
		sliceTax(c.dividends.Bands),
	).Sub(c.credit.Credit)
	ni := generic.Sum(sliceTax(c.ni.Class1), c.ni.Class2, sliceTax(c.ni.Class4))
	cgt := generic.Sum(
		sliceTax(c.cgt.BusinessAssetDisposal),
		sliceTax(c.cgt.Other),
		sliceTax(c.cgt.Residential),
	)

	checks := []struct {
		name        string
		independent generic.Amount
		group       string
	}{
		{GroupIncomeTax, incomeTax, GroupIncomeTax},
		{GroupNationalInsurance, ni, GroupNationalInsurance},
		{GroupCapitalGains, cgt, GroupCapitalGains},
	}
	for _, chk := range checks {
		reported := groupTotal(items, chk.group)
		tolerance := decimal.New(1, -2).Mul(decimal.NewFromInt(int64(groupSize(items, chk.group))))
		if reported.Value.Sub(chk.independent.Value).Abs().GreaterThan(tolerance) {
			return &generic.ConsistencyError{Check: chk.name, Expected: chk.independent, Actual: reported}
		}
	}
	return nil
}

func sliceTax(r generic.BandResult) generic.Amount {
	total := generic.ZeroGBP()
	for _, s := range r.Slices {
		total = total.Add(s.Amount.Mul(s.Rate))
	}
	return total
}

func amounts(items []LineItem) []generic.Amount {
	out := make([]generic.Amount, len(items))
	for i, li := range items {
		out[i] = li.Amount
	}
	return out
}

func groupSize(items []LineItem, group string) int {
	n := 0
	for _, li := range items {
		if li.Group == group {
			n++
		}
	}
	return n
}
