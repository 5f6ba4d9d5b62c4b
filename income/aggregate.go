package income

import (
	"fmt"
	"sort"

	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/ruleset"
)

const stage = "aggregate"

// MaxCarryForwardYears is how far back unused pension allowance may come from.
const MaxCarryForwardYears = 3

// Aggregate sums raw records into an IncomeProfile for the RuleSet's tax year.
// It is side-effect-free and fails on the first invalid record.
func Aggregate(raw RawFigures, rules *ruleset.RuleSet) (*IncomeProfile, error) {
	a := &aggregator{
		period: rules.TaxYear.Period(),
		rules:  rules,
		profile: &IncomeProfile{
			TaxYear:              rules.TaxYear,
			Dividends:            generic.ZeroGBP(),
			Interest:             generic.ZeroGBP(),
			OtherTaxDeducted:     generic.ZeroGBP(),
			GiftAidNet:           generic.ZeroGBP(),
			BroughtForwardLosses: generic.ZeroGBP(),
			Employment:           EmploymentTotals{Gross: generic.ZeroGBP(), TaxDeducted: generic.ZeroGBP()},
			SelfEmployment: SelfEmploymentTotals{
				Receipts: generic.ZeroGBP(), Expenses: generic.ZeroGBP(), DisallowedExpenses: generic.ZeroGBP(),
				Profit: generic.ZeroGBP(), Loss: generic.ZeroGBP(),
			},
			Rental: RentalTotals{
				GrossReceipts: generic.ZeroGBP(), AllowableExpenses: generic.ZeroGBP(),
				FinanceCosts: generic.ZeroGBP(), DisallowedExpenses: generic.ZeroGBP(),
			},
		},
	}

	steps := []func(RawFigures) error{
		a.streams,
		a.expenses,
		a.pension,
		a.giftAid,
		a.disposals,
		a.losses,
	}
	for _, step := range steps {
		if err := step(raw); err != nil {
			return nil, err
		}
	}
	a.finish()
	return a.profile, nil
}

type aggregator struct {
	period  generic.Period
	rules   *ruleset.RuleSet
	profile *IncomeProfile
}

func (a *aggregator) streams(raw RawFigures) error {
	p := a.profile
	for i, s := range raw.Streams {
		field := fmt.Sprintf("streams[%d]", i)
		if s.Amount == nil {
			return generic.NewInputError(generic.ErrIncompleteIncomeData, field+".amount",
				"%s stream %q declared without an amount", s.Type, s.Source)
		}
		if err := a.checkAmount(field+".amount", *s.Amount); err != nil {
			return err
		}
		if err := a.checkAmount(field+".tax_deducted", s.TaxDeducted); err != nil {
			return err
		}
		if err := a.checkDate(field+".date", s.Date, false); err != nil {
			return err
		}

		amount := *s.Amount
		switch s.Type {
		case StreamEmployment:
			p.Employment.Gross = p.Employment.Gross.Add(amount)
			p.Employment.TaxDeducted = p.Employment.TaxDeducted.Add(s.TaxDeducted)
			p.Employment.Sources++
			continue
		case StreamSelfEmployment:
			p.SelfEmployment.Receipts = p.SelfEmployment.Receipts.Add(amount)
		case StreamRental:
			p.Rental.GrossReceipts = p.Rental.GrossReceipts.Add(amount)
			p.Rental.Properties++
		case StreamDividend:
			p.Dividends = p.Dividends.Add(amount)
		case StreamInterest:
			p.Interest = p.Interest.Add(amount)
		default:
			return generic.NewInputError(generic.ErrMalformedInput, field+".type", "unknown income type %q", s.Type)
		}
		p.OtherTaxDeducted = p.OtherTaxDeducted.Add(s.TaxDeducted)
	}
	return nil
}

func (a *aggregator) expenses(raw RawFigures) error {
	p := a.profile
	for i, e := range raw.Expenses {
		field := fmt.Sprintf("expenses[%d]", i)
		if e.Amount == nil {
			return generic.NewInputError(generic.ErrIncompleteIncomeData, field+".amount",
				"%s expense %q declared without an amount", e.Category, e.Description)
		}
		if err := a.checkAmount(field+".amount", *e.Amount); err != nil {
			return err
		}
		if err := a.checkDate(field+".date", e.Date, false); err != nil {
			return err
		}

		amount := *e.Amount
		switch e.Category {
		case ExpenseRental, ExpenseRentalFinance, ExpenseSelfEmployment:
		default:
			return generic.NewInputError(generic.ErrMalformedInput, field+".category", "unknown expense category %q", e.Category)
		}
		if !e.Allowable {
			if e.Category == ExpenseSelfEmployment {
				p.SelfEmployment.DisallowedExpenses = p.SelfEmployment.DisallowedExpenses.Add(amount)
			} else {
				p.Rental.DisallowedExpenses = p.Rental.DisallowedExpenses.Add(amount)
			}
			continue
		}
		switch e.Category {
		case ExpenseRental:
			p.Rental.AllowableExpenses = p.Rental.AllowableExpenses.Add(amount)
		case ExpenseRentalFinance:
			p.Rental.FinanceCosts = p.Rental.FinanceCosts.Add(amount)
		case ExpenseSelfEmployment:
			p.SelfEmployment.Expenses = p.SelfEmployment.Expenses.Add(amount)
		}
	}
	return nil
}

func (a *aggregator) pension(raw RawFigures) error {
	p := a.profile
	rec := raw.Pension
	if err := a.checkAmount("pension.personal_net", rec.PersonalNet); err != nil {
		return err
	}
	if err := a.checkAmount("pension.employer", rec.Employer); err != nil {
		return err
	}
	p.Pension.PersonalNet = orZero(rec.PersonalNet)
	p.Pension.Employer = orZero(rec.Employer)

	if len(rec.PriorYears) > MaxCarryForwardYears {
		return generic.NewInputError(generic.ErrMalformedInput, "pension.prior_years",
			"at most %d prior years may be carried forward, got %d", MaxCarryForwardYears, len(rec.PriorYears))
	}
	seen := make(map[generic.TaxYear]bool)
	for i, py := range rec.PriorYears {
		field := fmt.Sprintf("pension.prior_years[%d]", i)
		year, err := generic.ParseTaxYear(py.TaxYear)
		if err != nil {
			return generic.NewInputError(generic.ErrMalformedInput, field+".tax_year", "%v", err)
		}
		if year >= a.rules.TaxYear || year < a.rules.TaxYear.Previous(MaxCarryForwardYears) {
			return generic.NewInputError(generic.ErrOutOfPeriodData, field+".tax_year",
				"%s is not one of the %d years before %s", year, MaxCarryForwardYears, a.rules.TaxYear)
		}
		if seen[year] {
			return generic.NewInputError(generic.ErrMalformedInput, field+".tax_year", "%s listed twice", year)
		}
		seen[year] = true
		if err := a.checkAmount(field+".contributions", py.Contributions); err != nil {
			return err
		}

		var allowance generic.Amount
		if py.AnnualAllowance != nil {
			if err := a.checkAmount(field+".annual_allowance", *py.AnnualAllowance); err != nil {
				return err
			}
			allowance = *py.AnnualAllowance
		} else {
			std, ok := a.rules.PriorAnnualAllowance(year)
			if !ok {
				return generic.NewInputError(generic.ErrIncompleteIncomeData, field+".annual_allowance",
					"no annual allowance supplied and none on record for %s", year)
			}
			allowance = std
		}
		contributions := orZero(py.Contributions)
		p.Pension.PriorYears = append(p.Pension.PriorYears, PriorYearAllowance{
			TaxYear:         year,
			AnnualAllowance: allowance,
			Contributions:   contributions,
			Unused:          allowance.Sub(contributions).NonNegative(),
		})
	}
	sortPriorYears(p.Pension.PriorYears)
	return nil
}

func (a *aggregator) giftAid(raw RawFigures) error {
	for i, d := range raw.GiftAid {
		field := fmt.Sprintf("gift_aid[%d]", i)
		if d.Amount == nil {
			return generic.NewInputError(generic.ErrIncompleteIncomeData, field+".amount",
				"donation to %q declared without an amount", d.Charity)
		}
		if err := a.checkAmount(field+".amount", *d.Amount); err != nil {
			return err
		}
		if err := a.checkDate(field+".date", d.Date, false); err != nil {
			return err
		}
		a.profile.GiftAidNet = a.profile.GiftAidNet.Add(*d.Amount)
	}
	return nil
}

func (a *aggregator) disposals(raw RawFigures) error {
	for i, d := range raw.Disposals {
		field := fmt.Sprintf("disposals[%d]", i)
		if d.Proceeds == nil {
			return generic.NewInputError(generic.ErrIncompleteIncomeData, field+".proceeds",
				"disposal of %q declared without proceeds", d.Asset)
		}
		for _, c := range []struct {
			name string
			amt  generic.Amount
		}{
			{".proceeds", *d.Proceeds},
			{".base_cost", d.BaseCost},
			{".improvement_costs", d.ImprovementCosts},
			{".disposal_costs", d.DisposalCosts},
		} {
			if err := a.checkAmount(field+c.name, c.amt); err != nil {
				return err
			}
		}
		if err := a.checkDate(field+".date", d.Date, true); err != nil {
			return err
		}

		gain := d.Proceeds.Sub(orZero(d.BaseCost)).Sub(orZero(d.ImprovementCosts)).Sub(orZero(d.DisposalCosts))
		dg := DisposalGain{
			Asset:                 d.Asset,
			Gain:                  gain,
			Residential:           d.Residential,
			BusinessAssetDisposal: d.BusinessAssetDisposal && !d.Residential,
			Exempt:                d.PrivateResidence,
		}
		if dg.Exempt {
			// A main residence is wholly relieved; its loss is not allowable either.
			dg.Gain = generic.ZeroGBP()
		}
		a.profile.Disposals = append(a.profile.Disposals, dg)
		a.profile.Steps = append(a.profile.Steps, generic.NewStep("disposal_gain", dg.Gain, d.Asset,
			"proceeds", d.Proceeds, "base_cost", orZero(d.BaseCost),
			"improvement_costs", orZero(d.ImprovementCosts), "disposal_costs", orZero(d.DisposalCosts),
			"exempt", dg.Exempt))
	}
	return nil
}

func (a *aggregator) losses(raw RawFigures) error {
	if err := a.checkAmount("brought_forward_losses", raw.BroughtForwardLosses); err != nil {
		return err
	}
	a.profile.BroughtForwardLosses = orZero(raw.BroughtForwardLosses)
	return nil
}

func (a *aggregator) finish() {
	p := a.profile
	se := p.SelfEmployment.Receipts.Sub(p.SelfEmployment.Expenses)
	if se.IsNegative() {
		p.SelfEmployment.Loss = se.Neg()
		p.Notices = append(p.Notices, generic.NewNotice(generic.NoticeTradingLossUnrelieved, generic.NoticeWarning,
			p.SelfEmployment.Loss.Ptr(), "trading loss of %s is not relieved against other income in this calculation", p.SelfEmployment.Loss))
	}
	p.SelfEmployment.Profit = se.NonNegative()

	if p.Rental.DisallowedExpenses.IsPositive() {
		p.Notices = append(p.Notices, generic.NewNotice(generic.NoticeDisallowedExpenses, generic.NoticeInfo,
			p.Rental.DisallowedExpenses.Ptr(), "%s of rental expenses marked non-allowable were excluded", p.Rental.DisallowedExpenses))
	}
	if p.SelfEmployment.DisallowedExpenses.IsPositive() {
		p.Notices = append(p.Notices, generic.NewNotice(generic.NoticeDisallowedExpenses, generic.NoticeInfo,
			p.SelfEmployment.DisallowedExpenses.Ptr(), "%s of business expenses marked non-allowable were excluded",
			p.SelfEmployment.DisallowedExpenses))
	}

	p.Steps = append(p.Steps,
		generic.NewStep("employment_gross", p.Employment.Gross, "", "sources", p.Employment.Sources),
		generic.NewStep("self_employment_profit", p.SelfEmployment.Profit, "",
			"receipts", p.SelfEmployment.Receipts, "expenses", p.SelfEmployment.Expenses,
			"disallowed_expenses", p.SelfEmployment.DisallowedExpenses),
		generic.NewStep("rental_gross_receipts", p.Rental.GrossReceipts, "",
			"properties", p.Rental.Properties, "allowable_expenses", p.Rental.AllowableExpenses,
			"finance_costs", p.Rental.FinanceCosts, "disallowed_expenses", p.Rental.DisallowedExpenses),
		generic.NewStep("dividends", p.Dividends, ""),
		generic.NewStep("interest", p.Interest, ""),
		generic.NewStep("gift_aid_net", p.GiftAidNet, ""),
		generic.NewStep("pension_personal_net", p.Pension.PersonalNet, "", "employer", p.Pension.Employer),
	)
}

// =============================================================================
// CHECKS
// =============================================================================

func (a *aggregator) checkAmount(field string, amt generic.Amount) error {
	if amt.IsNegative() {
		return generic.NewInputError(generic.ErrMalformedInput, field, "amount %s is negative", amt)
	}
	return nil
}

func (a *aggregator) checkDate(field string, date generic.TimePoint, required bool) error {
	if date.IsZero() {
		if required {
			return generic.NewInputError(generic.ErrIncompleteIncomeData, field, "date is required")
		}
		return nil
	}
	if !a.period.Contains(date) {
		return generic.NewInputError(generic.ErrOutOfPeriodData, field,
			"%s is outside tax year %s %s", date, a.rules.TaxYear, a.period)
	}
	return nil
}

func orZero(a generic.Amount) generic.Amount {
	if a.Unit == "" {
		return generic.Pounds(a.Value)
	}
	return a
}

func sortPriorYears(years []PriorYearAllowance) {
	sort.Slice(years, func(i, j int) bool { return years[i].TaxYear < years[j].TaxYear })
}
