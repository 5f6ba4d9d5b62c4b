package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/tax-engine/compute"
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/relief"
)

// =============================================================================
// LINE ITEMS
// =============================================================================

// Line item codes. The summary is keyed by these, never by position.
const (
	LineIncomeTax              = "income_tax"
	LinePensionAllowanceCharge = "pension_allowance_charge"
	LineDividendTax            = "dividend_tax"
	LineMortgageInterestCredit = "mortgage_interest_credit"
	LineNIClass1               = "ni_class1"
	LineNIClass2               = "ni_class2"
	LineNIClass4               = "ni_class4"
	LineCapitalGainsTax        = "capital_gains_tax"
)

// LineItem is one rounded liability. Only the mortgage interest credit may be negative.
type LineItem struct {
	Code   string         `json:"code"`
	Label  string         `json:"label"`
	Group  string         `json:"group"`
	Amount generic.Amount `json:"amount"`
}

const (
	GroupIncomeTax         = "income_tax"
	GroupNationalInsurance = "national_insurance"
	GroupCapitalGains      = "capital_gains"
)

// =============================================================================
// LIABILITY SUMMARY
// =============================================================================

type NationalInsurance struct {
	Class1 generic.Amount `json:"class1"`
	Class2 generic.Amount `json:"class2"`
	Class4 generic.Amount `json:"class4"`
	Total  generic.Amount `json:"total"`
}

// ReliefsClaimed lists every allowance and relief the run applied.
type ReliefsClaimed struct {
	PersonalAllowance       generic.Amount        `json:"personal_allowance"`
	GiftAidBandExtension    generic.Amount        `json:"gift_aid_band_extension"`
	PensionBandExtension    generic.Amount        `json:"pension_band_extension"`
	PensionCarryForwardUsed generic.Amount        `json:"pension_carry_forward_used"`
	PensionUsableAllowance  generic.Amount        `json:"pension_usable_allowance"`
	PensionExcess           generic.Amount        `json:"pension_excess"`
	PropertyMethod          relief.PropertyMethod `json:"property_method"`
	PropertyDeduction       generic.Amount        `json:"property_deduction"`
	FinanceCostCredit       generic.Amount        `json:"finance_cost_credit"`
	DividendAllowanceUsed   generic.Amount        `json:"dividend_allowance_used"`
	CapitalLossesUsed       generic.Amount        `json:"capital_losses_used"`
	AnnualExemptAmountUsed  generic.Amount        `json:"annual_exempt_amount_used"`
	CapitalLossesCarried    generic.Amount        `json:"capital_losses_carried_forward"`
}

// LiabilitySummary is the immutable result of one run.
type LiabilitySummary struct {
	RunID      string            `json:"run_id"`
	TaxYear    string            `json:"tax_year"`
	ComputedAt time.Time         `json:"computed_at"`
	Elections  map[string]string `json:"elections"`

	LineItems []LineItem `json:"line_items"`

	// IncomeTax folds non-dividend tax, the annual allowance charge, dividend
	// tax and the finance-cost credit.
	IncomeTax         generic.Amount    `json:"income_tax_total"`
	NationalInsurance NationalInsurance `json:"national_insurance"`
	CapitalGainsTax   generic.Amount    `json:"capital_gains_tax"`
	TotalLiability    generic.Amount    `json:"total_liability"`

	TaxDeducted generic.Amount `json:"tax_deducted"`
	BalanceDue  generic.Amount `json:"balance_due"`

	TotalIncome   generic.Amount  `json:"total_income"`
	TaxableIncome generic.Amount  `json:"taxable_income"`
	TaxableGains  generic.Amount  `json:"taxable_gains"`
	EffectiveRate decimal.Decimal `json:"effective_rate"`
	MarginalRate  decimal.Decimal `json:"marginal_rate"`
	MarginalBand  string          `json:"marginal_band"`

	Reliefs ReliefsClaimed   `json:"reliefs"`
	Trail   []generic.Step   `json:"trail"`
	Notices []generic.Notice `json:"notices"`
}

// Line returns the named line item amount, zero if absent.
func (s *LiabilitySummary) Line(code string) generic.Amount {
	for _, li := range s.LineItems {
		if li.Code == code {
			return li.Amount
		}
	}
	return generic.ZeroGBP()
}

// HasNotice reports whether a notice with the code was raised.
func (s *LiabilitySummary) HasNotice(code string) bool {
	for _, n := range s.Notices {
		if n.Code == code {
			return true
		}
	}
	return false
}

// =============================================================================
// COMPUTED - Raw computer outputs, kept for reconciliation and validation
// =============================================================================

type computed struct {
	rental    compute.RentalResult
	incomeTax compute.IncomeTaxResult
	dividends compute.DividendResult
	credit    compute.FinanceCreditResult
	ni        compute.NIResult
	cgt       compute.CGTResult
}

func lineItems(c computed) []LineItem {
	return []LineItem{
		{LineIncomeTax, "Income Tax", GroupIncomeTax, c.incomeTax.Tax.RoundPenny()},
		{LinePensionAllowanceCharge, "Pension annual allowance charge", GroupIncomeTax, c.incomeTax.ChargeTax.RoundPenny()},
		{LineDividendTax, "Dividend tax", GroupIncomeTax, c.dividends.Tax.RoundPenny()},
		{LineMortgageInterestCredit, "Finance cost tax reducer", GroupIncomeTax, c.credit.Credit.RoundPenny().Neg()},
		{LineNIClass1, "Class 1 National Insurance", GroupNationalInsurance, c.ni.Class1.Tax.RoundPenny()},
		{LineNIClass2, "Class 2 National Insurance", GroupNationalInsurance, c.ni.Class2.RoundPenny()},
		{LineNIClass4, "Class 4 National Insurance", GroupNationalInsurance, c.ni.Class4.Tax.RoundPenny()},
		{LineCapitalGainsTax, "Capital Gains Tax", GroupCapitalGains, c.cgt.Tax.RoundPenny()},
	}
}

func groupTotal(items []LineItem, group string) generic.Amount {
	total := generic.ZeroGBP()
	for _, li := range items {
		if li.Group == group {
			total = total.Add(li.Amount)
		}
	}
	return total
}
