/*
Package compute holds the tax computers.

PURPOSE:
  Each computer is a pure function of aggregated income, resolved reliefs and
  a RuleSet. They share one algorithm, progressive marginal taxation over a
  BandSchedule, and differ only in which slice of income they tax and at which
  rates.

STACKING ORDER:
  Income is laid onto the (extended) bands bottom-up:

    0 ──── non-dividend taxable income ──── AA charge ──── dividends ──── gains ──▶
           IncomeTax                        IncomeTax     DividendTax    CapitalGainsTax

  Each computer that stacks takes the cumulative position reached by the
  previous one. Passing that position along is the orchestrator's job.

TAX REDUCERS:
  The rental finance-cost credit is not a deduction. It is computed after
  income tax and subtracted from it (FinanceCostCredit).

SEE ALSO:
  - generic/bands.go: BandSchedule.StackedTax
  - engine/orchestrator.go: sequencing
*/
package compute

import (
	"github.com/shopspring/decimal"

	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/income"
	"github.com/warp/tax-engine/relief"
	"github.com/warp/tax-engine/ruleset"
)

// =============================================================================
// INCOME TAX
// =============================================================================

// IncomeTaxResult covers non-dividend income and the annual allowance charge.
type IncomeTaxResult struct {
	TotalIncome       generic.Amount `json:"total_income"`
	NonDividendIncome generic.Amount `json:"non_dividend_income"`
	Dividends         generic.Amount `json:"dividends"`
	AdjustedNetIncome generic.Amount `json:"adjusted_net_income"`

	StandardAllowance    generic.Amount `json:"standard_allowance"`
	PersonalAllowance    generic.Amount `json:"personal_allowance"`
	AllowanceReduction   generic.Amount `json:"allowance_reduction"`
	AllowanceNonDividend generic.Amount `json:"allowance_non_dividend"`
	AllowanceDividend    generic.Amount `json:"allowance_dividend"`

	TaxableNonDividend generic.Amount `json:"taxable_non_dividend"`
	// DividendsAfterAllowance is dividends less any personal allowance set against them.
	DividendsAfterAllowance generic.Amount `json:"dividends_after_allowance"`

	BandExtension   generic.Amount       `json:"band_extension"`
	Bands           generic.BandSchedule `json:"-"`
	Main            generic.BandResult   `json:"main"`
	AllowanceCharge generic.BandResult   `json:"allowance_charge"`
	Tax             generic.Amount       `json:"tax"`
	ChargeTax       generic.Amount       `json:"charge_tax"`

	// Position is where dividends start stacking.
	Position     generic.Amount  `json:"position"`
	MarginalRate decimal.Decimal `json:"marginal_rate"`
	MarginalBand string          `json:"marginal_band"`
}

// IncomeTax tapers the personal allowance on adjusted net income, sets it
// against non-dividend income first, taxes the remainder on the extended bands
// and then taxes any pension annual allowance excess as the next slice.
func IncomeTax(p *income.IncomeProfile, reliefs *relief.ResolvedReliefs, rules *ruleset.RuleSet) IncomeTaxResult {
	it := rules.IncomeTax
	r := IncomeTaxResult{
		NonDividendIncome: p.NonDividendIncome().Add(reliefs.Property.Profit),
		Dividends:         p.Dividends,
	}
	r.TotalIncome = r.NonDividendIncome.Add(r.Dividends)
	r.AdjustedNetIncome = r.TotalIncome.
		Sub(reliefs.GiftAid.Gross).
		Sub(reliefs.Pension.RelievableGross).
		NonNegative()

	r.StandardAllowance = it.PersonalAllowance
	r.PersonalAllowance = TaperedAllowance(r.AdjustedNetIncome, rules)
	r.AllowanceReduction = it.PersonalAllowance.Sub(r.PersonalAllowance)

	r.AllowanceNonDividend = r.PersonalAllowance.Min(r.NonDividendIncome)
	r.AllowanceDividend = r.PersonalAllowance.Sub(r.AllowanceNonDividend).Min(r.Dividends)
	r.TaxableNonDividend = r.NonDividendIncome.Sub(r.AllowanceNonDividend)
	r.DividendsAfterAllowance = r.Dividends.Sub(r.AllowanceDividend)

	r.BandExtension = reliefs.BandExtension()
	r.Bands = it.Bands.Extend(r.BandExtension)
	r.Main = r.Bands.Tax(r.TaxableNonDividend)
	r.AllowanceCharge = r.Bands.StackedTax(r.TaxableNonDividend, reliefs.Pension.Excess, nil)
	r.Tax = r.Main.Tax
	r.ChargeTax = r.AllowanceCharge.Tax
	r.Position = r.TaxableNonDividend.Add(reliefs.Pension.Excess)

	if r.Position.IsPositive() {
		top := r.Bands.BandAt(r.Position)
		r.MarginalBand = top.Name
		r.MarginalRate = top.Rate
	} else {
		r.MarginalBand = "personal_allowance"
		r.MarginalRate = decimal.Zero
	}
	return r
}

// TaperedAllowance reduces the personal allowance by the taper rate for every
// pound of adjusted net income above the threshold, floored at zero.
func TaperedAllowance(adjustedNetIncome generic.Amount, rules *ruleset.RuleSet) generic.Amount {
	it := rules.IncomeTax
	excess := adjustedNetIncome.Sub(it.AllowanceTaperThreshold).NonNegative()
	return it.PersonalAllowance.Sub(excess.Mul(it.AllowanceTaperRate)).NonNegative()
}
