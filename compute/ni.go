package compute

import (
	"github.com/shopspring/decimal"

	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/income"
	"github.com/warp/tax-engine/ruleset"
)

// NIResult holds National Insurance by class. NI never touches income-tax bands.
type NIResult struct {
	Class1    generic.BandResult `json:"class1"`
	Class2    generic.Amount     `json:"class2"`
	Class2Due bool               `json:"class2_due"`
	Class4    generic.BandResult `json:"class4"`
}

func (n NIResult) Total() generic.Amount {
	return generic.Sum(n.Class1.Tax, n.Class2, n.Class4.Tax)
}

// NationalInsurance computes employee Class 1 on employment pay and Classes 2
// and 4 on trading profit.
func NationalInsurance(p *income.IncomeProfile, rules *ruleset.RuleSet) NIResult {
	ni := rules.NationalInsurance
	r := NIResult{
		Class1: rules.Class1Bands().Tax(p.Employment.Gross),
		Class4: rules.Class4Bands().Tax(p.SelfEmployment.Profit),
		Class2: generic.ZeroGBP(),
	}

	profit := p.SelfEmployment.Profit
	if profit.GreaterThanOrEqual(ni.Class2.SmallProfitsThreshold) &&
		profit.LessThanOrEqual(ni.Class2.UpperProfitsLimit) && profit.IsPositive() {
		r.Class2Due = true
		r.Class2 = ni.Class2.WeeklyRate.Mul(decimal.NewFromInt(ni.Class2.Weeks))
	}
	return r
}
