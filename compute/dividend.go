package compute

import (
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/ruleset"
)

type DividendResult struct {
	Dividends     generic.Amount     `json:"dividends"`
	AllowanceUsed generic.Amount     `json:"allowance_used"`
	Taxable       generic.Amount     `json:"taxable"`
	Start         generic.Amount     `json:"start"`
	Bands         generic.BandResult `json:"bands"`
	Tax           generic.Amount     `json:"tax"`
	// Position is where capital gains start stacking.
	Position generic.Amount `json:"position"`
}

// DividendTax taxes dividends above the dividend allowance at dividend rates,
// stacked on top of everything IncomeTax already placed on the bands.
func DividendTax(it IncomeTaxResult, rules *ruleset.RuleSet) DividendResult {
	r := DividendResult{
		Dividends: it.DividendsAfterAllowance,
		Start:     it.Position,
	}
	r.AllowanceUsed = rules.Dividends.Allowance.Min(r.Dividends)
	r.Taxable = r.Dividends.Sub(r.AllowanceUsed)
	r.Bands = it.Bands.StackedTax(r.Start, r.Taxable, rules.Dividends.Rates)
	r.Tax = r.Bands.Tax
	r.Position = r.Start.Add(r.Taxable)
	return r
}
