package relief

import (
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/income"
	"github.com/warp/tax-engine/ruleset"
)

// ResolveProperty chooses between the flat property allowance and itemized
// expenses. With no election the lower taxable profit wins and ties go to
// expenses, which keep finance costs creditable. An election always wins,
// even when it costs the taxpayer money; that case is reported.
func ResolveProperty(p *income.IncomeProfile, rules *ruleset.RuleSet, elected PropertyMethod) (PropertyRelief, []generic.Notice) {
	r := p.Rental
	if r.GrossReceipts.IsZero() && r.AllowableExpenses.IsZero() && r.FinanceCosts.IsZero() {
		zero := generic.ZeroGBP()
		return PropertyRelief{
			Method: PropertyNone, Receipts: zero, Deduction: zero, Profit: zero,
			Loss: zero, FinanceCosts: zero, AlternativeProfit: zero,
		}, nil
	}

	byAllowance := allowanceRelief(r.GrossReceipts, rules.Property.Allowance)
	byExpenses := expensesRelief(r.GrossReceipts, r.AllowableExpenses, r.FinanceCosts)

	var chosen, other PropertyRelief
	switch elected {
	case PropertyAllowance:
		chosen, other = byAllowance, byExpenses
	case PropertyExpenses:
		chosen, other = byExpenses, byAllowance
	default:
		if byAllowance.Profit.LessThan(byExpenses.Profit) {
			chosen, other = byAllowance, byExpenses
		} else {
			chosen, other = byExpenses, byAllowance
		}
	}
	chosen.Elected = elected == PropertyAllowance || elected == PropertyExpenses
	chosen.AlternativeProfit = other.Profit

	var notices []generic.Notice
	if chosen.Elected && other.Profit.LessThan(chosen.Profit) {
		diff := chosen.Profit.Sub(other.Profit)
		notices = append(notices, generic.NewNotice(generic.NoticePropertyElectionOverrides, generic.NoticeWarning,
			diff.Ptr(), "elected %s method gives %s more taxable rental profit than %s", chosen.Method, diff, other.Method))
	}
	if chosen.Loss.IsPositive() {
		notices = append(notices, generic.NewNotice(generic.NoticePropertyLossCarried, generic.NoticeInfo,
			chosen.Loss.Ptr(), "rental loss of %s carried forward against future property profits", chosen.Loss))
	}
	return chosen, notices
}
