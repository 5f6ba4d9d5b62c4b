/*
Package validation performs post-computation bounds checks on a liability.

PURPOSE:
  Reconciliation proves the numbers add up. Validation proves they are
  plausible: nothing negative that should not be, no relief above its
  statutory cap, no effective rate above what the rate tables allow.

  Validation never corrects anything. Every failed check is collected and
  returned together in one ValidationError so the caller sees the full list.

  Warnings is the softer pass over a run that already validated: compliance
  and plausibility flags (Self Assessment filing, implausible expenses or
  rates) returned as warning notices. Thresholds come from the RuleSet.

SEE ALSO:
  - engine/orchestrator.go: runs Validate as the final stage
  - generic/errors.go: ValidationError
*/
package validation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/tax-engine/compute"
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/income"
	"github.com/warp/tax-engine/relief"
	"github.com/warp/tax-engine/ruleset"
)

// Line is a named, rounded liability.
type Line struct {
	Code      string
	Amount    generic.Amount
	MayReduce bool // tax reducers are negative by construction
}

// Input is everything the checks look at.
type Input struct {
	Rules         *ruleset.RuleSet
	Profile       *income.IncomeProfile // optional; Warnings skips profile checks without it
	Reliefs       *relief.ResolvedReliefs
	IncomeTax     compute.IncomeTaxResult
	Dividends     compute.DividendResult
	Credit        compute.FinanceCreditResult
	Lines         []Line
	Total         generic.Amount
	EffectiveRate decimal.Decimal
}

// Tolerance is added to the top combined rate before the effective-rate check.
var Tolerance = decimal.New(1, -2)

// Validate runs every check and returns a *generic.ValidationError listing all
// failures, or nil.
func Validate(in Input) error {
	var reasons []string
	fail := func(format string, args ...any) {
		reasons = append(reasons, fmt.Sprintf(format, args...))
	}

	for _, l := range in.Lines {
		if l.Amount.IsNegative() && !l.MayReduce {
			fail("%s is negative (%s)", l.Code, l.Amount)
		}
		if l.MayReduce && l.Amount.IsPositive() {
			fail("%s must reduce liability, got %s", l.Code, l.Amount)
		}
	}
	if in.Total.IsNegative() {
		fail("total liability is negative (%s)", in.Total)
	}

	ceiling := in.Rules.TopIncomeTaxRate().Add(in.Rules.TopNIRate()).Add(Tolerance)
	if in.EffectiveRate.GreaterThan(ceiling) {
		fail("effective rate %s exceeds ceiling %s", in.EffectiveRate.StringFixed(4), ceiling)
	}

	r := in.Reliefs
	if r.GiftAid.BandExtension.IsNegative() {
		fail("gift aid band extension is negative (%s)", r.GiftAid.BandExtension)
	}
	if r.Pension.RelievableGross.GreaterThan(r.Pension.ReliefCap) {
		fail("pension relief %s exceeds cap %s", r.Pension.RelievableGross, r.Pension.ReliefCap)
	}
	if r.Pension.TaperedAllowance.GreaterThan(in.Rules.Pension.AnnualAllowance) {
		fail("tapered annual allowance %s exceeds standard %s", r.Pension.TaperedAllowance, in.Rules.Pension.AnnualAllowance)
	}
	if r.Property.Deduction.GreaterThan(r.Property.Receipts) && r.Property.Method == relief.PropertyAllowance {
		fail("property allowance deduction %s exceeds receipts %s", r.Property.Deduction, r.Property.Receipts)
	}
	if r.Property.Deduction.GreaterThan(in.Rules.Property.Allowance) && r.Property.Method == relief.PropertyAllowance {
		fail("property allowance deduction %s exceeds allowance %s", r.Property.Deduction, in.Rules.Property.Allowance)
	}

	pa := in.IncomeTax.AllowanceNonDividend.Add(in.IncomeTax.AllowanceDividend)
	if pa.GreaterThan(in.Rules.IncomeTax.PersonalAllowance) {
		fail("personal allowance used %s exceeds %s", pa, in.Rules.IncomeTax.PersonalAllowance)
	}
	if in.Dividends.AllowanceUsed.GreaterThan(in.Rules.Dividends.Allowance) {
		fail("dividend allowance used %s exceeds %s", in.Dividends.AllowanceUsed, in.Rules.Dividends.Allowance)
	}
	if r.CapitalLosses.ExemptAmountUsed.GreaterThan(in.Rules.CapitalGains.AnnualExemptAmount) {
		fail("annual exempt amount used %s exceeds %s", r.CapitalLosses.ExemptAmountUsed, in.Rules.CapitalGains.AnnualExemptAmount)
	}
	if r.CapitalLosses.Taxable.Total().IsNegative() {
		fail("taxable gains are negative (%s)", r.CapitalLosses.Taxable.Total())
	}
	if in.Credit.Credit.GreaterThan(in.Credit.TaxLimit) {
		fail("finance cost credit %s exceeds income tax %s", in.Credit.Credit, in.Credit.TaxLimit)
	}

	if len(reasons) > 0 {
		return &generic.ValidationError{Reasons: reasons}
	}
	return nil
}

// =============================================================================
// WARNINGS
// =============================================================================

// Warnings returns the compliance and plausibility notices for a run. It
// never fails and never changes a figure.
func Warnings(in Input) []generic.Notice {
	var out []generic.Notice
	rep := in.Rules.Reporting

	if total := in.IncomeTax.TotalIncome; total.GreaterThan(rep.SelfAssessmentIncome) {
		out = append(out, generic.NewNotice(generic.NoticeSelfAssessmentRequired, generic.NoticeWarning,
			total.Ptr(), "income of %s is above %s: a Self Assessment return is required", total, rep.SelfAssessmentIncome))
	}

	if p := in.Profile; p != nil {
		if gross := p.Employment.Gross; gross.GreaterThan(rep.EmploymentIncomeCheck) {
			out = append(out, generic.NewNotice(generic.NoticeEmploymentIncomeHigh, generic.NoticeWarning,
				gross.Ptr(), "employment income of %s is unusually high, please verify", gross))
		}
		limit := p.Rental.GrossReceipts.Mul(rep.RentalExpenseRatio)
		if exp := p.Rental.AllowableExpenses; exp.GreaterThan(limit) {
			out = append(out, generic.NewNotice(generic.NoticeRentalExpensesHigh, generic.NoticeWarning,
				exp.Ptr(), "rental expenses of %s are high relative to receipts of %s", exp, p.Rental.GrossReceipts))
		}
	}

	if in.EffectiveRate.GreaterThan(rep.EffectiveRateWarning) {
		out = append(out, generic.NewNotice(generic.NoticeEffectiveRateHigh, generic.NoticeWarning,
			nil, "effective tax rate of %s is above %s", generic.Percent(in.EffectiveRate), generic.Percent(rep.EffectiveRateWarning)))
	}
	return out
}
