/*
Package income normalizes a taxpayer's categorized records into per-type totals.

PURPOSE:
  The document-processing collaborator hands us heterogeneous records:
  several employments, several let properties, dividend vouchers, expense
  lines, disposals. The aggregator sums them into one IncomeProfile per run.
  It applies no allowance and no rate.

KEY CONCEPTS:
  - RawFigures: The records exactly as categorized upstream
  - IncomeProfile: Per-type totals, owned by one orchestrator run

RULES:
  - A declared stream without an amount fails with IncompleteIncomeData
  - A dated record outside the tax year fails with OutOfPeriodData
  - Negative amounts and unknown categories fail with MalformedInput
  - Nothing is defaulted or dropped silently

SEE ALSO:
  - aggregate.go: Aggregate()
  - factory/request.go: JSON -> RawFigures
*/
package income

import "github.com/warp/tax-engine/generic"

// =============================================================================
// RAW RECORDS
// =============================================================================

type StreamType string

const (
	StreamEmployment     StreamType = "employment"
	StreamSelfEmployment StreamType = "self_employment"
	StreamRental         StreamType = "rental"
	StreamDividend       StreamType = "dividend"
	StreamInterest       StreamType = "interest"
)

// IncomeStream is one declared source of income. A zero Date means the amount
// is a whole-year figure for the tax year being calculated.
type IncomeStream struct {
	Type        StreamType
	Source      string
	Amount      *generic.Amount
	TaxDeducted generic.Amount
	Date        generic.TimePoint
}

type ExpenseCategory string

const (
	ExpenseRental         ExpenseCategory = "rental"
	ExpenseRentalFinance  ExpenseCategory = "rental_finance_cost"
	ExpenseSelfEmployment ExpenseCategory = "self_employment"
)

type ExpenseEntry struct {
	Category    ExpenseCategory
	Description string
	Amount      *generic.Amount
	Date        generic.TimePoint
	Allowable   bool
}

// PensionRecord holds relief-at-source personal contributions (net of basic
// rate relief, as paid) and gross employer contributions.
type PensionRecord struct {
	PersonalNet generic.Amount
	Employer    generic.Amount
	PriorYears  []PriorPensionYear
}

// PriorPensionYear is one of the three preceding years available for
// carry-forward. A nil AnnualAllowance means "the standard allowance for that year".
type PriorPensionYear struct {
	TaxYear         string
	AnnualAllowance *generic.Amount
	Contributions   generic.Amount
}

type Donation struct {
	Charity string
	Amount  *generic.Amount
	Date    generic.TimePoint
}

type Disposal struct {
	Asset                 string
	Proceeds              *generic.Amount
	BaseCost              generic.Amount
	ImprovementCosts      generic.Amount
	DisposalCosts         generic.Amount
	Date                  generic.TimePoint
	Residential           bool
	PrivateResidence      bool
	BusinessAssetDisposal bool
}

// RawFigures is everything known about one taxpayer for one tax year.
type RawFigures struct {
	Streams              []IncomeStream
	Expenses             []ExpenseEntry
	Pension              PensionRecord
	GiftAid              []Donation
	Disposals            []Disposal
	BroughtForwardLosses generic.Amount
}

// =============================================================================
// AGGREGATED PROFILE
// =============================================================================

type EmploymentTotals struct {
	Gross       generic.Amount `json:"gross"`
	TaxDeducted generic.Amount `json:"tax_deducted"`
	Sources     int            `json:"sources"`
}

type SelfEmploymentTotals struct {
	Receipts           generic.Amount `json:"receipts"`
	Expenses           generic.Amount `json:"expenses"`
	DisallowedExpenses generic.Amount `json:"disallowed_expenses"`
	Profit             generic.Amount `json:"profit"`
	Loss               generic.Amount `json:"loss"`
}

type RentalTotals struct {
	GrossReceipts      generic.Amount `json:"gross_receipts"`
	AllowableExpenses  generic.Amount `json:"allowable_expenses"`
	FinanceCosts       generic.Amount `json:"finance_costs"`
	DisallowedExpenses generic.Amount `json:"disallowed_expenses"`
	Properties         int            `json:"properties"`
}

// DisposalGain is a disposal reduced to its chargeable gain (negative = loss).
type DisposalGain struct {
	Asset                 string         `json:"asset"`
	Gain                  generic.Amount `json:"gain"`
	Residential           bool           `json:"residential"`
	BusinessAssetDisposal bool           `json:"business_asset_disposal"`
	Exempt                bool           `json:"exempt"`
}

type PriorYearAllowance struct {
	TaxYear         generic.TaxYear `json:"tax_year"`
	AnnualAllowance generic.Amount  `json:"annual_allowance"`
	Contributions   generic.Amount  `json:"contributions"`
	Unused          generic.Amount  `json:"unused"`
}

type PensionContributions struct {
	PersonalNet generic.Amount       `json:"personal_net"`
	Employer    generic.Amount       `json:"employer"`
	PriorYears  []PriorYearAllowance `json:"prior_years"`
}

// IncomeProfile is built fresh per calculation and owned by one run.
type IncomeProfile struct {
	TaxYear              generic.TaxYear
	Employment           EmploymentTotals
	SelfEmployment       SelfEmploymentTotals
	Rental               RentalTotals
	Dividends            generic.Amount
	Interest             generic.Amount
	OtherTaxDeducted     generic.Amount
	Disposals            []DisposalGain
	Pension              PensionContributions
	GiftAidNet           generic.Amount
	BroughtForwardLosses generic.Amount

	Notices []generic.Notice
	Steps   []generic.Step
}

// NonDividendIncome is income taxed at main rates, before any rental relief
// is known: employment, trading profit and interest.
func (p *IncomeProfile) NonDividendIncome() generic.Amount {
	return generic.Sum(p.Employment.Gross, p.SelfEmployment.Profit, p.Interest)
}

// RelevantEarnings caps pension relief: employment pay plus trading profit.
func (p *IncomeProfile) RelevantEarnings() generic.Amount {
	return p.Employment.Gross.Add(p.SelfEmployment.Profit)
}

// TaxDeducted is all income tax already paid at source.
func (p *IncomeProfile) TaxDeducted() generic.Amount {
	return p.Employment.TaxDeducted.Add(p.OtherTaxDeducted)
}

// Gains returns positive chargeable gains and current-year losses.
func (p *IncomeProfile) Gains() (gains, losses generic.Amount) {
	gains, losses = generic.ZeroGBP(), generic.ZeroGBP()
	for _, d := range p.Disposals {
		if d.Exempt {
			continue
		}
		if d.Gain.IsNegative() {
			losses = losses.Add(d.Gain.Neg())
		} else {
			gains = gains.Add(d.Gain)
		}
	}
	return gains, losses
}
