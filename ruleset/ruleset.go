/*
Package ruleset holds the numeric constants of each supported UK tax year.

PURPOSE:
  A RuleSet is data, not code: bands, rates, allowances and thresholds for one
  tax year. Supporting a new year means adding a YAML file under data/, never
  touching a computer or resolver.

LIFECYCLE:
  All embedded files are parsed and invariant-checked exactly once, on the
  first Load. A year is only published after its invariants pass. Load hands
  every caller its own deep copy, so a run can never mutate shared rules.

INVARIANTS (checked by Validate):
  - income-tax bands start at 0, are contiguous and increasing
  - exactly one unbounded band, and it is the top band
  - every rate table (dividend, CGT other/residential) covers every band
  - all rates within [0, 1]; thresholds ordered (PT <= UEL, SPT <= UPL, ...)

USAGE:
  rules, err := ruleset.Load("2024/25")
  if errors.Is(err, generic.ErrUnsupportedTaxYear) { ... }

SEE ALSO:
  - data/*.yaml: Per-year figures
  - generic/bands.go: BandSchedule used by every band-based computer
*/
package ruleset

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/tax-engine/generic"
	"gopkg.in/yaml.v3"
)

// DefaultTaxYear is the year used when configuration does not name one.
const DefaultTaxYear = "2024/25"

// =============================================================================
// RULESET
// =============================================================================

// RuleSet is the complete, immutable table of one tax year's constants.
type RuleSet struct {
	TaxYear           generic.TaxYear   `yaml:"-" json:"-"`
	Label             string            `yaml:"tax_year" json:"tax_year"`
	IncomeTax         IncomeTaxRules    `yaml:"income_tax" json:"income_tax"`
	Dividends         DividendRules     `yaml:"dividends" json:"dividends"`
	CapitalGains      CapitalGainsRules `yaml:"capital_gains" json:"capital_gains"`
	NationalInsurance NIRules           `yaml:"national_insurance" json:"national_insurance"`
	Property          PropertyRules     `yaml:"property" json:"property"`
	Pension           PensionRules      `yaml:"pension" json:"pension"`
	GiftAid           GiftAidRules      `yaml:"gift_aid" json:"gift_aid"`
	Reporting         ReportingRules    `yaml:"reporting" json:"reporting"`
}

type IncomeTaxRules struct {
	PersonalAllowance       generic.Amount       `yaml:"personal_allowance" json:"personal_allowance"`
	AllowanceTaperThreshold generic.Amount       `yaml:"allowance_taper_threshold" json:"allowance_taper_threshold"`
	AllowanceTaperRate      decimal.Decimal      `yaml:"allowance_taper_rate" json:"allowance_taper_rate"`
	Bands                   generic.BandSchedule `yaml:"bands" json:"bands"`
}

type DividendRules struct {
	Allowance generic.Amount    `yaml:"allowance" json:"allowance"`
	Rates     generic.RateTable `yaml:"rates" json:"rates"`
}

type CapitalGainsRules struct {
	AnnualExemptAmount        generic.Amount  `yaml:"annual_exempt_amount" json:"annual_exempt_amount"`
	BusinessAssetDisposalRate decimal.Decimal `yaml:"business_asset_disposal_rate" json:"business_asset_disposal_rate"`
	Rates                     CGTRates        `yaml:"rates" json:"rates"`
}

type CGTRates struct {
	Other       generic.RateTable `yaml:"other" json:"other"`
	Residential generic.RateTable `yaml:"residential" json:"residential"`
}

type NIRules struct {
	Class1 Class1Rules `yaml:"class1" json:"class1"`
	Class2 Class2Rules `yaml:"class2" json:"class2"`
	Class4 Class4Rules `yaml:"class4" json:"class4"`
}

type Class1Rules struct {
	PrimaryThreshold   generic.Amount  `yaml:"primary_threshold" json:"primary_threshold"`
	UpperEarningsLimit generic.Amount  `yaml:"upper_earnings_limit" json:"upper_earnings_limit"`
	MainRate           decimal.Decimal `yaml:"main_rate" json:"main_rate"`
	UpperRate          decimal.Decimal `yaml:"upper_rate" json:"upper_rate"`
}

type Class2Rules struct {
	WeeklyRate            generic.Amount `yaml:"weekly_rate" json:"weekly_rate"`
	Weeks                 int64          `yaml:"weeks" json:"weeks"`
	SmallProfitsThreshold generic.Amount `yaml:"small_profits_threshold" json:"small_profits_threshold"`
	UpperProfitsLimit     generic.Amount `yaml:"upper_profits_limit" json:"upper_profits_limit"`
}

type Class4Rules struct {
	LowerProfitsLimit generic.Amount  `yaml:"lower_profits_limit" json:"lower_profits_limit"`
	UpperProfitsLimit generic.Amount  `yaml:"upper_profits_limit" json:"upper_profits_limit"`
	MainRate          decimal.Decimal `yaml:"main_rate" json:"main_rate"`
	UpperRate         decimal.Decimal `yaml:"upper_rate" json:"upper_rate"`
}

type PropertyRules struct {
	Allowance             generic.Amount  `yaml:"allowance" json:"allowance"`
	FinanceCostCreditRate decimal.Decimal `yaml:"finance_cost_credit_rate" json:"finance_cost_credit_rate"`
}

type PensionRules struct {
	AnnualAllowance         generic.Amount            `yaml:"annual_allowance" json:"annual_allowance"`
	ThresholdIncome         generic.Amount            `yaml:"threshold_income" json:"threshold_income"`
	TaperAdjustedIncome     generic.Amount            `yaml:"taper_adjusted_income" json:"taper_adjusted_income"`
	TaperRate               decimal.Decimal           `yaml:"taper_rate" json:"taper_rate"`
	MinimumTaperedAllowance generic.Amount            `yaml:"minimum_tapered_allowance" json:"minimum_tapered_allowance"`
	ReliefFloor             generic.Amount            `yaml:"relief_floor" json:"relief_floor"`
	PriorAnnualAllowances   map[string]generic.Amount `yaml:"prior_annual_allowances" json:"prior_annual_allowances"`
}

type GiftAidRules struct {
	BasicRate decimal.Decimal `yaml:"basic_rate" json:"basic_rate"`
}

// ReportingRules are the thresholds behind the warnings attached to a
// summary. They never change a figure.
type ReportingRules struct {
	SelfAssessmentIncome  generic.Amount  `yaml:"self_assessment_income" json:"self_assessment_income"`
	EmploymentIncomeCheck generic.Amount  `yaml:"employment_income_check" json:"employment_income_check"`
	RentalExpenseRatio    decimal.Decimal `yaml:"rental_expense_ratio" json:"rental_expense_ratio"`
	EffectiveRateWarning  decimal.Decimal `yaml:"effective_rate_warning" json:"effective_rate_warning"`
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// New parses YAML rule data and verifies every invariant. It never returns a
// partially valid RuleSet.
func New(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, &generic.RuleError{Kind: generic.ErrMalformedRuleSet, Message: err.Error()}
	}
	year, err := generic.ParseTaxYear(rs.Label)
	if err != nil {
		return nil, &generic.RuleError{Kind: generic.ErrMalformedRuleSet, TaxYear: rs.Label, Message: err.Error()}
	}
	rs.TaxYear = year
	rs.Label = year.String()
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Validate checks the RuleSet invariants.
func (r *RuleSet) Validate() error {
	fail := func(format string, args ...any) error {
		return &generic.RuleError{
			Kind:    generic.ErrMalformedRuleSet,
			TaxYear: r.Label,
			Message: fmt.Sprintf(format, args...),
		}
	}

	bands := r.IncomeTax.Bands
	if err := bands.Validate(); err != nil {
		return fail("income_tax.bands: %v", err)
	}
	if err := r.Dividends.Rates.Covers(bands); err != nil {
		return fail("dividends.rates: %v", err)
	}
	if err := r.CapitalGains.Rates.Other.Covers(bands); err != nil {
		return fail("capital_gains.rates.other: %v", err)
	}
	if err := r.CapitalGains.Rates.Residential.Covers(bands); err != nil {
		return fail("capital_gains.rates.residential: %v", err)
	}

	rates := map[string]decimal.Decimal{
		"income_tax.allowance_taper_rate":            r.IncomeTax.AllowanceTaperRate,
		"capital_gains.business_asset_disposal_rate": r.CapitalGains.BusinessAssetDisposalRate,
		"national_insurance.class1.main_rate":        r.NationalInsurance.Class1.MainRate,
		"national_insurance.class1.upper_rate":       r.NationalInsurance.Class1.UpperRate,
		"national_insurance.class4.main_rate":        r.NationalInsurance.Class4.MainRate,
		"national_insurance.class4.upper_rate":       r.NationalInsurance.Class4.UpperRate,
		"property.finance_cost_credit_rate":          r.Property.FinanceCostCreditRate,
		"pension.taper_rate":                         r.Pension.TaperRate,
		"reporting.effective_rate_warning":           r.Reporting.EffectiveRateWarning,
	}
	for name, table := range map[string]generic.RateTable{
		"dividends.rates":                 r.Dividends.Rates,
		"capital_gains.rates.other":       r.CapitalGains.Rates.Other,
		"capital_gains.rates.residential": r.CapitalGains.Rates.Residential,
	} {
		for band, rate := range table {
			rates[name+"."+band] = rate
		}
	}
	one := decimal.NewFromInt(1)
	for name, rate := range rates {
		if rate.IsNegative() || rate.GreaterThan(one) {
			return fail("%s = %s outside [0,1]", name, rate)
		}
	}
	if !r.IncomeTax.AllowanceTaperRate.IsPositive() {
		return fail("income_tax.allowance_taper_rate must be positive")
	}
	if !r.GiftAid.BasicRate.IsPositive() || !r.GiftAid.BasicRate.LessThan(one) {
		return fail("gift_aid.basic_rate = %s outside (0,1)", r.GiftAid.BasicRate)
	}
	if !r.Reporting.RentalExpenseRatio.IsPositive() {
		return fail("reporting.rental_expense_ratio must be positive")
	}

	amounts := map[string]generic.Amount{
		"income_tax.personal_allowance":         r.IncomeTax.PersonalAllowance,
		"income_tax.allowance_taper_threshold":  r.IncomeTax.AllowanceTaperThreshold,
		"dividends.allowance":                   r.Dividends.Allowance,
		"capital_gains.annual_exempt_amount":    r.CapitalGains.AnnualExemptAmount,
		"national_insurance.class2.weekly_rate": r.NationalInsurance.Class2.WeeklyRate,
		"property.allowance":                    r.Property.Allowance,
		"pension.annual_allowance":              r.Pension.AnnualAllowance,
		"pension.minimum_tapered_allowance":     r.Pension.MinimumTaperedAllowance,
		"pension.relief_floor":                  r.Pension.ReliefFloor,
		"reporting.self_assessment_income":      r.Reporting.SelfAssessmentIncome,
		"reporting.employment_income_check":     r.Reporting.EmploymentIncomeCheck,
	}
	for name, a := range amounts {
		if a.IsNegative() {
			return fail("%s is negative", name)
		}
	}

	ni := r.NationalInsurance
	if ni.Class1.UpperEarningsLimit.LessThan(ni.Class1.PrimaryThreshold) {
		return fail("class1 upper earnings limit below primary threshold")
	}
	if ni.Class4.UpperProfitsLimit.LessThan(ni.Class4.LowerProfitsLimit) {
		return fail("class4 upper profits limit below lower profits limit")
	}
	if ni.Class2.UpperProfitsLimit.LessThan(ni.Class2.SmallProfitsThreshold) {
		return fail("class2 upper profits limit below small profits threshold")
	}
	if ni.Class2.Weeks <= 0 {
		return fail("class2 weeks must be positive")
	}
	if r.Pension.MinimumTaperedAllowance.GreaterThan(r.Pension.AnnualAllowance) {
		return fail("pension minimum tapered allowance exceeds annual allowance")
	}
	for year := range r.Pension.PriorAnnualAllowances {
		if _, err := generic.ParseTaxYear(year); err != nil {
			return fail("pension.prior_annual_allowances: %v", err)
		}
	}
	return nil
}

// =============================================================================
// DERIVED VIEWS
// =============================================================================

// Class1Bands expresses Class 1 primary contributions as a band schedule.
func (r *RuleSet) Class1Bands() generic.BandSchedule {
	c := r.NationalInsurance.Class1
	return thresholdBands("below_primary_threshold", "main", "upper",
		c.PrimaryThreshold, c.UpperEarningsLimit, c.MainRate, c.UpperRate)
}

// Class4Bands expresses Class 4 contributions as a band schedule.
func (r *RuleSet) Class4Bands() generic.BandSchedule {
	c := r.NationalInsurance.Class4
	return thresholdBands("below_lower_profits_limit", "main", "upper",
		c.LowerProfitsLimit, c.UpperProfitsLimit, c.MainRate, c.UpperRate)
}

func thresholdBands(nilName, mainName, upperName string, lower, upper generic.Amount, main, top decimal.Decimal) generic.BandSchedule {
	lo, hi := lower.Value, upper.Value
	return generic.BandSchedule{
		{Name: nilName, Lower: decimal.Zero, Upper: &lo, Rate: decimal.Zero},
		{Name: mainName, Lower: lo, Upper: &hi, Rate: main},
		{Name: upperName, Lower: hi, Rate: top},
	}
}

// TopIncomeTaxRate is the highest main income-tax band rate.
func (r *RuleSet) TopIncomeTaxRate() decimal.Decimal {
	top := decimal.Zero
	for _, b := range r.IncomeTax.Bands {
		top = decimal.Max(top, b.Rate)
	}
	return top
}

// TopNIRate is the highest percentage NI rate across Class 1 and Class 4.
func (r *RuleSet) TopNIRate() decimal.Decimal {
	ni := r.NationalInsurance
	return decimal.Max(ni.Class1.MainRate, ni.Class1.UpperRate, ni.Class4.MainRate, ni.Class4.UpperRate)
}

// BasicRate is the rate of the first income-tax band.
func (r *RuleSet) BasicRate() decimal.Decimal {
	return r.IncomeTax.Bands[0].Rate
}

// PriorAnnualAllowance returns the annual allowance recorded for an earlier year.
func (r *RuleSet) PriorAnnualAllowance(year generic.TaxYear) (generic.Amount, bool) {
	a, ok := r.Pension.PriorAnnualAllowances[year.String()]
	return a, ok
}

// clone returns a deep copy so callers cannot alias registry state.
func (r *RuleSet) clone() *RuleSet {
	c := *r
	c.IncomeTax.Bands = make(generic.BandSchedule, len(r.IncomeTax.Bands))
	for i, b := range r.IncomeTax.Bands {
		c.IncomeTax.Bands[i] = b
		if b.Upper != nil {
			up := *b.Upper
			c.IncomeTax.Bands[i].Upper = &up
		}
	}
	c.Dividends.Rates = cloneRates(r.Dividends.Rates)
	c.CapitalGains.Rates.Other = cloneRates(r.CapitalGains.Rates.Other)
	c.CapitalGains.Rates.Residential = cloneRates(r.CapitalGains.Rates.Residential)
	c.Pension.PriorAnnualAllowances = make(map[string]generic.Amount, len(r.Pension.PriorAnnualAllowances))
	for k, v := range r.Pension.PriorAnnualAllowances {
		c.Pension.PriorAnnualAllowances[k] = v
	}
	return &c
}

func cloneRates(t generic.RateTable) generic.RateTable {
	out := make(generic.RateTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
