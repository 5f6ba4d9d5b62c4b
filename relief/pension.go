package relief

import (
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/income"
	"github.com/warp/tax-engine/ruleset"
)

// TotalIncome is every income figure that counts towards the personal
// allowance and pension taper tests.
func TotalIncome(p *income.IncomeProfile, property PropertyRelief) generic.Amount {
	return generic.Sum(p.NonDividendIncome(), property.Profit, p.Dividends)
}

// ResolvePension measures annual allowance headroom for relief-at-source
// contributions. The high-income taper is applied to the current year's
// allowance first; only then is unused allowance from prior years consumed,
// oldest year first. An excess is not an error: it is reported and charged.
func ResolvePension(p *income.IncomeProfile, rules *ruleset.RuleSet, property PropertyRelief, carryForward bool) (PensionRelief, []generic.Notice) {
	pr := rules.Pension
	var notices []generic.Notice

	rel := PensionRelief{
		PersonalNet: p.Pension.PersonalNet,
		Employer:    p.Pension.Employer,
	}
	rel.PersonalGross = grossUp(p.Pension.PersonalNet, rules.GiftAid.BasicRate)
	rel.ReliefCap = pr.ReliefFloor.Max(p.RelevantEarnings())
	rel.RelievableGross = rel.PersonalGross.Min(rel.ReliefCap)
	if rel.PersonalGross.GreaterThan(rel.ReliefCap) {
		unrelieved := rel.PersonalGross.Sub(rel.ReliefCap)
		notices = append(notices, generic.NewNotice(generic.NoticePensionReliefCapped, generic.NoticeWarning,
			unrelieved.Ptr(), "gross personal contributions exceed the %s relief cap; %s gets no tax relief", rel.ReliefCap, unrelieved))
	}
	rel.BandExtension = rel.RelievableGross
	rel.Contributions = rel.PersonalGross.Add(rel.Employer)

	// Taper
	total := TotalIncome(p, property)
	rel.ThresholdIncome = total.Sub(rel.RelievableGross).NonNegative()
	rel.AdjustedIncome = total.Add(rel.Employer)
	rel.StandardAllowance = pr.AnnualAllowance
	rel.TaperedAllowance = pr.AnnualAllowance
	if rel.ThresholdIncome.GreaterThan(pr.ThresholdIncome) && rel.AdjustedIncome.GreaterThan(pr.TaperAdjustedIncome) {
		reduction := rel.AdjustedIncome.Sub(pr.TaperAdjustedIncome).Mul(pr.TaperRate)
		rel.TaperedAllowance = pr.AnnualAllowance.Sub(reduction).Max(pr.MinimumTaperedAllowance)
		rel.Tapered = true
		notices = append(notices, generic.NewNotice(generic.NoticeAnnualAllowanceTapered, generic.NoticeInfo,
			rel.TaperedAllowance.Ptr(), "annual allowance tapered to %s on adjusted income of %s", rel.TaperedAllowance, rel.AdjustedIncome))
	}

	// Carry-forward, FIFO
	rel.CarryForwardUsed = generic.ZeroGBP()
	available := generic.ZeroGBP()
	need := rel.Contributions.Sub(rel.TaperedAllowance).NonNegative()
	if carryForward {
		for _, py := range p.Pension.PriorYears {
			use := CarryForwardUse{TaxYear: py.TaxYear, Available: py.Unused, Used: need.Min(py.Unused)}
			need = need.Sub(use.Used)
			available = available.Add(py.Unused)
			rel.CarryForwardUsed = rel.CarryForwardUsed.Add(use.Used)
			rel.CarryForward = append(rel.CarryForward, use)
		}
	}

	rel.UsableAllowance = rel.TaperedAllowance.Add(available)
	rel.Excess = rel.Contributions.Sub(rel.UsableAllowance).NonNegative()
	rel.Headroom = rel.UsableAllowance.Sub(rel.Contributions).NonNegative()
	if rel.Excess.IsPositive() {
		notices = append(notices, generic.NewNotice(generic.NoticePensionAllowanceExceeded, generic.NoticeWarning,
			rel.Excess.Ptr(), "contributions of %s exceed usable annual allowance of %s; %s is subject to the annual allowance charge",
			rel.Contributions, rel.UsableAllowance, rel.Excess))
	}
	return rel, notices
}
