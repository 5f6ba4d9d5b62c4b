/*
Package relief resolves the adjustments that sit between aggregated income and
the tax computers.

PURPOSE:
  Each resolver is a pure function of the IncomeProfile and RuleSet (plus the
  taxpayer's elections) that produces one field of ResolvedReliefs. Resolvers
  never compute tax. They widen bands, pick deduction methods, net losses and
  measure pension headroom.

RESOLUTION ORDER:
  1. Property    - rental profit is part of total income
  2. Gift Aid    - gross donation feeds adjusted net income
  3. Pension     - needs total income for the taper tests
  4. Capital loss

KEY CONCEPTS:
  - Band extension: relief-at-source raises every threshold above zero
  - Taper: the annual allowance shrinks before carry-forward is consumed
  - Tagged variant: PropertyRelief records which method produced the deduction

SEE ALSO:
  - generic/bands.go: BandSchedule.Extend
  - compute/: consumers of ResolvedReliefs
*/
package relief

import "github.com/warp/tax-engine/generic"

// =============================================================================
// GIFT AID
// =============================================================================

type GiftAidRelief struct {
	Net           generic.Amount `json:"net"`
	Gross         generic.Amount `json:"gross"`
	BandExtension generic.Amount `json:"band_extension"`
}

// =============================================================================
// PENSION
// =============================================================================

// CarryForwardUse is how much of one prior year's unused allowance was consumed.
type CarryForwardUse struct {
	TaxYear   generic.TaxYear `json:"tax_year"`
	Available generic.Amount  `json:"available"`
	Used      generic.Amount  `json:"used"`
}

type PensionRelief struct {
	PersonalNet     generic.Amount `json:"personal_net"`
	PersonalGross   generic.Amount `json:"personal_gross"`
	RelievableGross generic.Amount `json:"relievable_gross"`
	ReliefCap       generic.Amount `json:"relief_cap"`
	Employer        generic.Amount `json:"employer"`
	Contributions   generic.Amount `json:"contributions"`
	BandExtension   generic.Amount `json:"band_extension"`

	ThresholdIncome   generic.Amount `json:"threshold_income"`
	AdjustedIncome    generic.Amount `json:"adjusted_income"`
	StandardAllowance generic.Amount `json:"standard_allowance"`
	TaperedAllowance  generic.Amount `json:"tapered_allowance"`
	Tapered           bool           `json:"tapered"`

	CarryForward     []CarryForwardUse `json:"carry_forward"`
	CarryForwardUsed generic.Amount    `json:"carry_forward_used"`

	// UsableAllowance is the tapered allowance plus all available carry-forward.
	UsableAllowance generic.Amount `json:"usable_allowance"`
	Headroom        generic.Amount `json:"headroom"`
	Excess          generic.Amount `json:"excess"`
}

// =============================================================================
// PROPERTY - Tagged variant
// =============================================================================

type PropertyMethod string

const (
	PropertyNone      PropertyMethod = "none"
	PropertyAllowance PropertyMethod = "allowance"
	PropertyExpenses  PropertyMethod = "expenses"
)

// PropertyRelief is built by exactly one of two constructors: allowanceRelief
// or expensesRelief. Finance costs are creditable only on the expenses path.
type PropertyRelief struct {
	Method       PropertyMethod `json:"method"`
	Elected      bool           `json:"elected"`
	Receipts     generic.Amount `json:"receipts"`
	Deduction    generic.Amount `json:"deduction"`
	Profit       generic.Amount `json:"profit"`
	Loss         generic.Amount `json:"loss"`
	FinanceCosts generic.Amount `json:"finance_costs"`

	// AlternativeProfit is what the method not taken would have produced.
	AlternativeProfit generic.Amount `json:"alternative_profit"`
}

func allowanceRelief(receipts, allowance generic.Amount) PropertyRelief {
	deduction := allowance.Min(receipts)
	return PropertyRelief{
		Method:       PropertyAllowance,
		Receipts:     receipts,
		Deduction:    deduction,
		Profit:       receipts.Sub(deduction),
		Loss:         generic.ZeroGBP(),
		FinanceCosts: generic.ZeroGBP(),
	}
}

func expensesRelief(receipts, expenses, financeCosts generic.Amount) PropertyRelief {
	net := receipts.Sub(expenses)
	return PropertyRelief{
		Method:       PropertyExpenses,
		Receipts:     receipts,
		Deduction:    expenses,
		Profit:       net.NonNegative(),
		Loss:         net.Neg().NonNegative(),
		FinanceCosts: financeCosts,
	}
}

// =============================================================================
// CAPITAL LOSSES
// =============================================================================

// GainPools splits chargeable gains by the rate schedule they are taxed under.
type GainPools struct {
	BusinessAssetDisposal generic.Amount `json:"business_asset_disposal"`
	Other                 generic.Amount `json:"other"`
	Residential           generic.Amount `json:"residential"`
}

func (p GainPools) Total() generic.Amount {
	return generic.Sum(p.BusinessAssetDisposal, p.Other, p.Residential)
}

type CapitalLossRelief struct {
	Gains              GainPools      `json:"gains"`
	CurrentLosses      generic.Amount `json:"current_losses"`
	CurrentLossesUsed  generic.Amount `json:"current_losses_used"`
	BroughtForward     generic.Amount `json:"brought_forward"`
	BroughtForwardUsed generic.Amount `json:"brought_forward_used"`
	ExemptAmountUsed   generic.Amount `json:"exempt_amount_used"`
	CarriedForward     generic.Amount `json:"carried_forward"`
	Taxable            GainPools      `json:"taxable"`
	Allocation         LossAllocation `json:"allocation"`
}

// =============================================================================
// RESOLVED RELIEFS
// =============================================================================

// ResolvedReliefs is derived afresh every run and never persisted.
type ResolvedReliefs struct {
	GiftAid       GiftAidRelief     `json:"gift_aid"`
	Pension       PensionRelief     `json:"pension"`
	Property      PropertyRelief    `json:"property"`
	CapitalLosses CapitalLossRelief `json:"capital_losses"`
	Elections     Elections         `json:"-"`

	Notices []generic.Notice `json:"-"`
	Steps   []generic.Step   `json:"-"`
}

// BandExtension is the total upward shift of income-tax thresholds.
func (r *ResolvedReliefs) BandExtension() generic.Amount {
	return r.GiftAid.BandExtension.Add(r.Pension.BandExtension)
}
