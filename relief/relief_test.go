package relief_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/income"
	"github.com/warp/tax-engine/relief"
	"github.com/warp/tax-engine/ruleset"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func gbp(v int64) *generic.Amount {
	a := generic.GBP(v)
	return &a
}

func rules2024() *ruleset.RuleSet { return ruleset.MustLoad("2024/25") }

func aggregate(t *testing.T, raw income.RawFigures) *income.IncomeProfile {
	t.Helper()
	p, err := income.Aggregate(raw, rules2024())
	require.NoError(t, err)
	return p
}

func employment(v int64) income.IncomeStream {
	return income.IncomeStream{Type: income.StreamEmployment, Source: "Employer", Amount: gbp(v)}
}

func assertAmount(t *testing.T, want string, got generic.Amount, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, generic.MustGBP(want).Equal(got), append([]any{"want %s, got %s", want, got}, msgAndArgs...)...)
}

func hasNotice(notices []generic.Notice, code string) bool {
	for _, n := range notices {
		if n.Code == code {
			return true
		}
	}
	return false
}

// =============================================================================
// ELECTIONS
// =============================================================================

func TestParseElections(t *testing.T) {
	el, err := relief.ParseElections(nil)
	require.NoError(t, err)
	assert.Equal(t, relief.DefaultElections(), el)
	assert.Equal(t, map[string]string{
		"property_income":       "auto",
		"pension_carry_forward": "on",
		"cgt_loss_allocation":   "residential_first",
	}, el.Map())

	el, err = relief.ParseElections(map[string]string{
		"Property_Income":       "ALLOWANCE",
		"pension_carry_forward": "off",
		"cgt_loss_allocation":   "other_first",
	})
	require.NoError(t, err)
	assert.Equal(t, relief.PropertyAllowance, el.PropertyIncome)
	assert.False(t, el.PensionCarryForward)
	assert.Equal(t, relief.OtherFirst, el.CGTLossAllocation)
}

func TestParseElections_Unknown(t *testing.T) {
	for _, raw := range []map[string]string{
		{"marriage_allowance": "on"},
		{"property_income": "both"},
	} {
		_, err := relief.ParseElections(raw)
		require.Error(t, err)
		assert.True(t, errors.Is(err, generic.ErrUnknownElection))

		var ie *generic.InputError
		require.True(t, errors.As(err, &ie))
		for k := range raw {
			assert.Equal(t, k, ie.Field)
		}
	}
}

func TestElectionOptions_Sorted(t *testing.T) {
	opts := relief.ElectionOptions()
	require.Len(t, opts, 3)
	assert.Equal(t, "cgt_loss_allocation", opts[0].Key)
	assert.Equal(t, "pension_carry_forward", opts[1].Key)
	assert.Equal(t, "property_income", opts[2].Key)
}

// =============================================================================
// GIFT AID
// =============================================================================

func TestResolveGiftAid_GrossesUpAtBasicRate(t *testing.T) {
	// GIVEN: 400 paid net to charity
	p := aggregate(t, income.RawFigures{GiftAid: []income.Donation{{Charity: "RNLI", Amount: gbp(400)}}})

	// WHEN
	ga := relief.ResolveGiftAid(p, rules2024())

	// THEN: 400 / 0.8 = 500 gross, bands move up by 100
	assertAmount(t, "500", ga.Gross)
	assertAmount(t, "100", ga.BandExtension)
}

func TestResolveGiftAid_NoDonations(t *testing.T) {
	ga := relief.ResolveGiftAid(aggregate(t, income.RawFigures{}), rules2024())
	assert.True(t, ga.BandExtension.IsZero())
}

// =============================================================================
// PROPERTY
// =============================================================================

func landlord(t *testing.T) *income.IncomeProfile {
	return aggregate(t, income.RawFigures{
		Streams: []income.IncomeStream{{Type: income.StreamRental, Amount: gbp(15000)}},
		Expenses: []income.ExpenseEntry{
			{Category: income.ExpenseRental, Amount: gbp(3000), Allowable: true},
			{Category: income.ExpenseRentalFinance, Amount: gbp(8000), Allowable: true},
		},
	})
}

func TestResolveProperty_AutoPicksLowerProfit(t *testing.T) {
	pr, notices := relief.ResolveProperty(landlord(t), rules2024(), "")

	assert.Equal(t, relief.PropertyExpenses, pr.Method)
	assert.False(t, pr.Elected)
	assertAmount(t, "12000", pr.Profit)
	assertAmount(t, "8000", pr.FinanceCosts)
	assertAmount(t, "14000", pr.AlternativeProfit)
	assert.Empty(t, notices)
}

func TestResolveProperty_ElectionOverridesAndIsReported(t *testing.T) {
	pr, notices := relief.ResolveProperty(landlord(t), rules2024(), relief.PropertyAllowance)

	assert.Equal(t, relief.PropertyAllowance, pr.Method)
	assert.True(t, pr.Elected)
	assertAmount(t, "14000", pr.Profit)
	// Finance costs are not creditable under the allowance.
	assert.True(t, pr.FinanceCosts.IsZero())
	require.True(t, hasNotice(notices, generic.NoticePropertyElectionOverrides))
	assertAmount(t, "2000", *notices[0].Amount)
}

func TestResolveProperty_TieGoesToExpenses(t *testing.T) {
	p := aggregate(t, income.RawFigures{
		Streams:  []income.IncomeStream{{Type: income.StreamRental, Amount: gbp(1000)}},
		Expenses: []income.ExpenseEntry{{Category: income.ExpenseRental, Amount: gbp(1000), Allowable: true}},
	})
	pr, _ := relief.ResolveProperty(p, rules2024(), "")
	assert.Equal(t, relief.PropertyExpenses, pr.Method)
	assert.True(t, pr.Profit.IsZero())
}

func TestResolveProperty_LossCarriedForward(t *testing.T) {
	p := aggregate(t, income.RawFigures{
		Streams:  []income.IncomeStream{{Type: income.StreamRental, Amount: gbp(5000)}},
		Expenses: []income.ExpenseEntry{{Category: income.ExpenseRental, Amount: gbp(7000), Allowable: true}},
	})
	pr, notices := relief.ResolveProperty(p, rules2024(), relief.PropertyExpenses)
	assert.True(t, pr.Profit.IsZero())
	assertAmount(t, "2000", pr.Loss)
	assert.True(t, hasNotice(notices, generic.NoticePropertyLossCarried))
}

func TestResolveProperty_NoRentalIsNone(t *testing.T) {
	pr, notices := relief.ResolveProperty(aggregate(t, income.RawFigures{}), rules2024(), "")
	assert.Equal(t, relief.PropertyNone, pr.Method)
	assert.True(t, pr.Profit.IsZero())
	assert.Empty(t, notices)
}

// =============================================================================
// PENSION
// =============================================================================

func TestResolvePension_CarryForwardOldestFirst(t *testing.T) {
	// GIVEN: 50,000 gross personal + 20,000 employer against a 60,000 allowance
	p := aggregate(t, income.RawFigures{
		Streams: []income.IncomeStream{employment(120000)},
		Pension: income.PensionRecord{
			PersonalNet: generic.GBP(40000),
			Employer:    generic.GBP(20000),
			PriorYears: []income.PriorPensionYear{
				{TaxYear: "2023/24", Contributions: generic.GBP(60000)},
				{TaxYear: "2022/23", Contributions: generic.GBP(35000)},
				{TaxYear: "2021/22", Contributions: generic.GBP(30000)},
			},
		},
	})
	none, _ := relief.ResolveProperty(p, rules2024(), "")

	// WHEN
	pr, notices := relief.ResolvePension(p, rules2024(), none, true)

	// THEN: the 10,000 shortfall comes entirely from 2021/22
	assertAmount(t, "50000", pr.PersonalGross)
	assertAmount(t, "50000", pr.BandExtension)
	assertAmount(t, "70000", pr.Contributions)
	assert.False(t, pr.Tapered)
	require.Len(t, pr.CarryForward, 3)
	assert.Equal(t, generic.TaxYear(2021), pr.CarryForward[0].TaxYear)
	assertAmount(t, "10000", pr.CarryForward[0].Used)
	assert.True(t, pr.CarryForward[1].Used.IsZero())
	assertAmount(t, "10000", pr.CarryForwardUsed)
	assertAmount(t, "75000", pr.UsableAllowance)
	assertAmount(t, "5000", pr.Headroom)
	assert.True(t, pr.Excess.IsZero())
	assert.Empty(t, notices)

	// AND: without carry-forward the same contributions are 10,000 over
	pr, notices = relief.ResolvePension(p, rules2024(), none, false)
	assertAmount(t, "10000", pr.Excess)
	assert.True(t, hasNotice(notices, generic.NoticePensionAllowanceExceeded))
}

func TestResolvePension_TaperAppliedBeforeCarryForward(t *testing.T) {
	cases := []struct {
		name    string
		salary  int64
		tapered string
	}{
		{"below threshold income", 190000, "60000"},
		{"partial taper", 300000, "35000"},
		{"floored at minimum", 400000, "10000"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := aggregate(t, income.RawFigures{
				Streams: []income.IncomeStream{employment(c.salary)},
				Pension: income.PensionRecord{Employer: generic.GBP(10000)},
			})
			none, _ := relief.ResolveProperty(p, rules2024(), "")

			pr, _ := relief.ResolvePension(p, rules2024(), none, true)

			assertAmount(t, c.tapered, pr.TaperedAllowance)
			assert.True(t, pr.Excess.IsZero())
		})
	}
}

func TestResolvePension_ReliefCappedAtEarnings(t *testing.T) {
	// GIVEN: 8,000 net (10,000 gross) against 6,000 of earnings
	p := aggregate(t, income.RawFigures{
		Streams: []income.IncomeStream{employment(6000)},
		Pension: income.PensionRecord{PersonalNet: generic.GBP(8000)},
	})
	none, _ := relief.ResolveProperty(p, rules2024(), "")

	pr, notices := relief.ResolvePension(p, rules2024(), none, true)

	assertAmount(t, "6000", pr.ReliefCap)
	assertAmount(t, "6000", pr.BandExtension)
	assert.True(t, hasNotice(notices, generic.NoticePensionReliefCapped))
}

// =============================================================================
// CAPITAL LOSSES
// =============================================================================

func disposals(t *testing.T, broughtForward int64) *income.IncomeProfile {
	day := generic.NewTimePoint(2024, time.October, 1)
	return aggregate(t, income.RawFigures{
		Disposals: []income.Disposal{
			{Asset: "Flat", Proceeds: gbp(220000), BaseCost: generic.GBP(200000), Residential: true, Date: day},
			{Asset: "Shares", Proceeds: gbp(20000), BaseCost: generic.GBP(10000), Date: day},
			{Asset: "Fund", Proceeds: gbp(5000), BaseCost: generic.GBP(10000), Date: day},
		},
		BroughtForwardLosses: generic.GBP(broughtForward),
	})
}

func TestResolveCapitalLosses_ResidentialFirst(t *testing.T) {
	// GIVEN: 20,000 residential, 10,000 other, 5,000 current loss, 30,000 brought forward
	cl, notices := relief.ResolveCapitalLosses(disposals(t, 30000), rules2024(), relief.ResidentialFirst)

	// THEN: brought-forward losses stop at the exempt amount, the rest carries
	assertAmount(t, "5000", cl.CurrentLossesUsed)
	assertAmount(t, "22000", cl.BroughtForwardUsed)
	assertAmount(t, "3000", cl.ExemptAmountUsed)
	assertAmount(t, "8000", cl.CarriedForward)
	assert.True(t, cl.Taxable.Total().IsZero())
	assert.True(t, hasNotice(notices, generic.NoticeCapitalLossesCarried))
}

func TestResolveCapitalLosses_AllocationOrder(t *testing.T) {
	res, _ := relief.ResolveCapitalLosses(disposals(t, 0), rules2024(), relief.ResidentialFirst)
	assertAmount(t, "12000", res.Taxable.Residential)
	assertAmount(t, "10000", res.Taxable.Other)

	oth, _ := relief.ResolveCapitalLosses(disposals(t, 0), rules2024(), relief.OtherFirst)
	assertAmount(t, "20000", oth.Taxable.Residential)
	assertAmount(t, "2000", oth.Taxable.Other)

	// Either way the same total is chargeable.
	assert.True(t, res.Taxable.Total().Equal(oth.Taxable.Total()))
}

func TestResolveCapitalLosses_NeverNegative(t *testing.T) {
	p := aggregate(t, income.RawFigures{
		Disposals: []income.Disposal{
			{Asset: "Shares", Proceeds: gbp(2000), BaseCost: generic.GBP(1000), Date: generic.NewTimePoint(2024, time.May, 1)},
		},
		BroughtForwardLosses: generic.GBP(5000),
	})

	cl, _ := relief.ResolveCapitalLosses(p, rules2024(), "")

	// 1,000 gain is inside the exempt amount: brought-forward losses are untouched
	assert.True(t, cl.BroughtForwardUsed.IsZero())
	assertAmount(t, "1000", cl.ExemptAmountUsed)
	assertAmount(t, "5000", cl.CarriedForward)
	assert.False(t, cl.Taxable.Other.IsNegative())
}

// =============================================================================
// RESOLVE
// =============================================================================

func TestResolve_BandExtensionCombinesGiftAidAndPension(t *testing.T) {
	p := aggregate(t, income.RawFigures{
		Streams: []income.IncomeStream{employment(60000)},
		GiftAid: []income.Donation{{Charity: "RNLI", Amount: gbp(400)}},
		Pension: income.PensionRecord{PersonalNet: generic.GBP(4000)},
	})

	r := relief.Resolve(p, rules2024(), relief.DefaultElections())

	assertAmount(t, "5100", r.BandExtension())
	assert.NotEmpty(t, r.Steps)
}
