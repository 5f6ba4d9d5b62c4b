package compute

import (
	"github.com/shopspring/decimal"

	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/relief"
	"github.com/warp/tax-engine/ruleset"
)

// =============================================================================
// RENTAL PROFIT
// =============================================================================

type RentalResult struct {
	Method       relief.PropertyMethod `json:"method"`
	Receipts     generic.Amount        `json:"receipts"`
	Deduction    generic.Amount        `json:"deduction"`
	Profit       generic.Amount        `json:"profit"`
	FinanceCosts generic.Amount        `json:"finance_costs"`
	CreditRate   decimal.Decimal       `json:"credit_rate"`
	// CreditEntitlement is the reducer before it is limited by the taxpayer's
	// wider income and by the tax it is set against.
	CreditEntitlement generic.Amount `json:"credit_entitlement"`
}

// RentalProfit reports taxable rental profit and the finance-cost tax reducer
// it earns. Finance costs never reduce the profit itself.
func RentalProfit(reliefs *relief.ResolvedReliefs, rules *ruleset.RuleSet) RentalResult {
	pr := reliefs.Property
	r := RentalResult{
		Method:       pr.Method,
		Receipts:     pr.Receipts,
		Deduction:    pr.Deduction,
		Profit:       pr.Profit,
		FinanceCosts: pr.FinanceCosts,
		CreditRate:   rules.Property.FinanceCostCreditRate,
	}
	r.CreditEntitlement = pr.FinanceCosts.Min(pr.Profit).Mul(r.CreditRate)
	return r
}

// =============================================================================
// FINANCE-COST CREDIT - Applied after tax
// =============================================================================

type FinanceCreditResult struct {
	Entitlement generic.Amount `json:"entitlement"`
	IncomeLimit generic.Amount `json:"income_limit"`
	TaxLimit    generic.Amount `json:"tax_limit"`
	Credit      generic.Amount `json:"credit"`
	// UnusedCosts are finance costs that earned no credit this year.
	UnusedCosts generic.Amount `json:"unused_costs"`
}

// FinanceCostCredit limits the rental credit to the basic-rate value of
// adjusted total income above the personal allowance, then to the income tax
// it reduces. It can never produce a refund.
//
// The tax limit is the sum of the penny-rounded lines the credit is set
// against, so the rounded credit never exceeds them.
func FinanceCostCredit(rental RentalResult, it IncomeTaxResult, div DividendResult) FinanceCreditResult {
	r := FinanceCreditResult{Entitlement: rental.CreditEntitlement}
	aboveAllowance := it.AdjustedNetIncome.Sub(it.PersonalAllowance).NonNegative()
	r.IncomeLimit = aboveAllowance.Mul(rental.CreditRate)
	r.TaxLimit = it.Tax.RoundPenny().Add(div.Tax.RoundPenny())
	r.Credit = r.Entitlement.Min(r.IncomeLimit).Min(r.TaxLimit).NonNegative()

	r.UnusedCosts = rental.FinanceCosts
	if rental.CreditRate.IsPositive() {
		r.UnusedCosts = rental.FinanceCosts.Sub(r.Credit.Div(rental.CreditRate)).NonNegative()
	}
	return r
}
