package relief

import (
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/income"
	"github.com/warp/tax-engine/ruleset"
)

// Resolve runs every resolver in dependency order and collects their notices
// and audit steps.
func Resolve(p *income.IncomeProfile, rules *ruleset.RuleSet, el Elections) *ResolvedReliefs {
	r := &ResolvedReliefs{Elections: el}

	var notices []generic.Notice
	r.Property, notices = ResolveProperty(p, rules, el.PropertyIncome)
	r.Notices = append(r.Notices, notices...)
	r.Steps = append(r.Steps,
		generic.NewStep("property_deduction", r.Property.Deduction, string(r.Property.Method),
			"receipts", r.Property.Receipts, "elected", r.Property.Elected,
			"alternative_profit", r.Property.AlternativeProfit),
		generic.NewStep("rental_profit", r.Property.Profit, "", "loss", r.Property.Loss),
		generic.NewStep("rental_finance_costs", r.Property.FinanceCosts, "creditable at the finance-cost rate"),
	)

	r.GiftAid = ResolveGiftAid(p, rules)
	r.Steps = append(r.Steps,
		generic.NewStep("gift_aid_gross", r.GiftAid.Gross, "", "net", r.GiftAid.Net, "basic_rate", rules.GiftAid.BasicRate),
		generic.NewStep("gift_aid_band_extension", r.GiftAid.BandExtension, "gross - net"),
	)

	r.Pension, notices = ResolvePension(p, rules, r.Property, el.PensionCarryForward)
	r.Notices = append(r.Notices, notices...)
	r.Steps = append(r.Steps,
		generic.NewStep("pension_personal_gross", r.Pension.PersonalGross, "",
			"net", r.Pension.PersonalNet, "relief_cap", r.Pension.ReliefCap),
		generic.NewStep("pension_band_extension", r.Pension.BandExtension, "relievable gross personal contributions"),
		generic.NewStep("pension_tapered_allowance", r.Pension.TaperedAllowance, "",
			"threshold_income", r.Pension.ThresholdIncome, "adjusted_income", r.Pension.AdjustedIncome,
			"tapered", r.Pension.Tapered),
		generic.NewStep("pension_carry_forward_used", r.Pension.CarryForwardUsed, "oldest year first",
			"enabled", el.PensionCarryForward),
		generic.NewStep("pension_allowance_excess", r.Pension.Excess, "",
			"contributions", r.Pension.Contributions, "usable_allowance", r.Pension.UsableAllowance),
	)

	r.CapitalLosses, notices = ResolveCapitalLosses(p, rules, el.CGTLossAllocation)
	r.Notices = append(r.Notices, notices...)
	cl := r.CapitalLosses
	r.Steps = append(r.Steps,
		generic.NewStep("capital_gains", cl.Gains.Total(), ""),
		generic.NewStep("capital_losses_current_used", cl.CurrentLossesUsed, "", "available", cl.CurrentLosses),
		generic.NewStep("capital_losses_brought_forward_used", cl.BroughtForwardUsed, "", "available", cl.BroughtForward),
		generic.NewStep("annual_exempt_amount_used", cl.ExemptAmountUsed, "", "allocation", cl.Allocation),
		generic.NewStep("taxable_gains", cl.Taxable.Total(), "",
			"business_asset_disposal", cl.Taxable.BusinessAssetDisposal,
			"other", cl.Taxable.Other, "residential", cl.Taxable.Residential),
		generic.NewStep("capital_losses_carried_forward", cl.CarriedForward, ""),
	)
	return r
}
