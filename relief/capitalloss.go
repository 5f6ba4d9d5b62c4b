package relief

import (
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/income"
	"github.com/warp/tax-engine/ruleset"
)

// ResolveCapitalLosses nets losses against gains in statutory order:
//  1. current-year losses, in full
//  2. brought-forward losses, never reducing gains below the annual exempt amount
//  3. the annual exempt amount
//
// Gains never go negative. Whatever is left of either kind of loss carries forward.
func ResolveCapitalLosses(p *income.IncomeProfile, rules *ruleset.RuleSet, allocation LossAllocation) (CapitalLossRelief, []generic.Notice) {
	if allocation == "" {
		allocation = ResidentialFirst
	}
	rel := CapitalLossRelief{
		Gains:          GainPools{generic.ZeroGBP(), generic.ZeroGBP(), generic.ZeroGBP()},
		CurrentLosses:  generic.ZeroGBP(),
		BroughtForward: p.BroughtForwardLosses.NonNegative(),
		Allocation:     allocation,
	}
	for _, d := range p.Disposals {
		switch {
		case d.Exempt:
		case d.Gain.IsNegative():
			rel.CurrentLosses = rel.CurrentLosses.Add(d.Gain.Neg())
		case d.Residential:
			rel.Gains.Residential = rel.Gains.Residential.Add(d.Gain)
		case d.BusinessAssetDisposal:
			rel.Gains.BusinessAssetDisposal = rel.Gains.BusinessAssetDisposal.Add(d.Gain)
		default:
			rel.Gains.Other = rel.Gains.Other.Add(d.Gain)
		}
	}

	rel.Taxable = rel.Gains
	pools := rel.Taxable.ordered(allocation)

	rel.CurrentLossesUsed = offset(pools, rel.CurrentLosses)

	aea := rules.CapitalGains.AnnualExemptAmount
	roomAboveExempt := rel.Taxable.Total().Sub(aea).NonNegative()
	rel.BroughtForwardUsed = offset(pools, rel.BroughtForward.Min(roomAboveExempt))

	rel.ExemptAmountUsed = offset(pools, aea)

	rel.CarriedForward = rel.CurrentLosses.Sub(rel.CurrentLossesUsed).
		Add(rel.BroughtForward.Sub(rel.BroughtForwardUsed))

	var notices []generic.Notice
	if rel.CarriedForward.IsPositive() {
		notices = append(notices, generic.NewNotice(generic.NoticeCapitalLossesCarried, generic.NoticeInfo,
			rel.CarriedForward.Ptr(), "%s of capital losses remain unused and carry forward", rel.CarriedForward))
	}
	return rel, notices
}

// ordered returns the pools in the order losses are set against them.
// Business asset disposal gains already enjoy the lowest rate, so they are last.
func (p *GainPools) ordered(allocation LossAllocation) []*generic.Amount {
	if allocation == OtherFirst {
		return []*generic.Amount{&p.Other, &p.Residential, &p.BusinessAssetDisposal}
	}
	return []*generic.Amount{&p.Residential, &p.Other, &p.BusinessAssetDisposal}
}

// offset reduces pools in order by up to amount and returns what was used.
func offset(pools []*generic.Amount, amount generic.Amount) generic.Amount {
	used := generic.ZeroGBP()
	remaining := amount.NonNegative()
	for _, pool := range pools {
		if !remaining.IsPositive() {
			break
		}
		take := remaining.Min(*pool)
		*pool = pool.Sub(take)
		remaining = remaining.Sub(take)
		used = used.Add(take)
	}
	return used
}
