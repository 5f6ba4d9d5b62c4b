package engine_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tax-engine/engine"
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/income"
	"github.com/warp/tax-engine/relief"
	"github.com/warp/tax-engine/ruleset"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var fixedNow = time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC)

func gbp(v int64) *generic.Amount {
	a := generic.GBP(v)
	return &a
}

func opts() []engine.Option {
	return []engine.Option{
		engine.WithClock(func() time.Time { return fixedNow }),
		engine.WithRunID(func() string { return "run-test" }),
	}
}

func calculate(t *testing.T, req engine.Request) *engine.LiabilitySummary {
	t.Helper()
	s, err := engine.Calculate(context.Background(), req, opts()...)
	require.NoError(t, err)
	return s
}

func assertAmount(t *testing.T, want string, got generic.Amount, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, generic.MustGBP(want).Equal(got), append([]any{"want %s, got %s", want, got}, msgAndArgs...)...)
}

func employee(salary, deducted int64) engine.Request {
	return engine.Request{
		Name:    "employee",
		TaxYear: "2024/25",
		Figures: income.RawFigures{Streams: []income.IncomeStream{{
			Type: income.StreamEmployment, Source: "Acme", Amount: gbp(salary), TaxDeducted: generic.GBP(deducted),
		}}},
	}
}

// =============================================================================
// END-TO-END
// =============================================================================

func TestCalculate_Employee75k(t *testing.T) {
	// GIVEN: 75,000 salary with PAYE of 17,432
	s := calculate(t, employee(75000, 17432))

	// THEN
	assert.Equal(t, "run-test", s.RunID)
	assert.Equal(t, "2024/25", s.TaxYear)
	assert.Equal(t, fixedNow, s.ComputedAt)
	assertAmount(t, "17432.00", s.Line(engine.LineIncomeTax))
	assertAmount(t, "3510.60", s.Line(engine.LineNIClass1))
	assertAmount(t, "20942.60", s.TotalLiability)
	assertAmount(t, "3510.60", s.BalanceDue)
	assert.Equal(t, "higher", s.MarginalBand)
	assert.Equal(t, "0.279235", s.EffectiveRate.String())
	assert.Empty(t, s.Notices)
	assert.Equal(t, "auto", s.Elections["property_income"])
}

func TestCalculate_Landlord(t *testing.T) {
	req := engine.Request{
		TaxYear: "2024/25",
		Figures: income.RawFigures{
			Streams: []income.IncomeStream{
				{Type: income.StreamEmployment, Amount: gbp(40000), TaxDeducted: generic.GBP(5486)},
				{Type: income.StreamRental, Amount: gbp(15000)},
			},
			Expenses: []income.ExpenseEntry{
				{Category: income.ExpenseRental, Amount: gbp(3000), Allowable: true},
				{Category: income.ExpenseRentalFinance, Amount: gbp(8000), Allowable: true},
			},
		},
	}

	s := calculate(t, req)

	assertAmount(t, "8232.00", s.Line(engine.LineIncomeTax))
	assertAmount(t, "-1600.00", s.Line(engine.LineMortgageInterestCredit))
	assertAmount(t, "2194.40", s.Line(engine.LineNIClass1))
	assertAmount(t, "8826.40", s.TotalLiability)
	assertAmount(t, "3340.40", s.BalanceDue)
	assert.Equal(t, relief.PropertyExpenses, s.Reliefs.PropertyMethod)
}

func TestCalculate_HighEarnerTaperNotice(t *testing.T) {
	s := calculate(t, employee(110000, 0))

	assertAmount(t, "33432.00", s.Line(engine.LineIncomeTax))
	assertAmount(t, "7570", s.Reliefs.PersonalAllowance)
	assert.True(t, s.HasNotice(generic.NoticePersonalAllowanceTapered))
	assert.True(t, s.HasNotice(generic.NoticeSelfAssessmentRequired))
	// 40% band, 60% effective marginal in the taper zone is not a band rate
	assert.Equal(t, "higher", s.MarginalBand)
}

func TestCalculate_PropertyElectionIsHonoured(t *testing.T) {
	req := engine.Request{
		TaxYear:   "2024/25",
		Elections: map[string]string{"property_income": "allowance"},
		Figures: income.RawFigures{
			Streams:  []income.IncomeStream{{Type: income.StreamRental, Amount: gbp(20000)}},
			Expenses: []income.ExpenseEntry{{Category: income.ExpenseRental, Amount: gbp(9000), Allowable: true}},
		},
	}

	s := calculate(t, req)

	assert.Equal(t, relief.PropertyAllowance, s.Reliefs.PropertyMethod)
	assert.True(t, s.HasNotice(generic.NoticePropertyElectionOverrides))
	assert.Equal(t, "allowance", s.Elections["property_income"])
}

func TestCalculate_CreditNeverExceedsRoundedTax(t *testing.T) {
	// GIVEN: tax lines whose unrounded sum truncates a penny higher than
	// the sum of the truncated lines, and a credit limited by that tax
	pennies := func(v string) *generic.Amount {
		a := generic.MustGBP(v)
		return &a
	}
	req := engine.Request{
		TaxYear:   "2024/25",
		Elections: map[string]string{"property_income": "expenses"},
		Figures: income.RawFigures{
			Streams: []income.IncomeStream{
				{Type: income.StreamRental, Amount: pennies("12670.04")},
				{Type: income.StreamDividend, Amount: pennies("600.09")},
			},
			Expenses: []income.ExpenseEntry{
				{Category: income.ExpenseRentalFinance, Amount: pennies("12670.04"), Allowable: true},
			},
		},
	}

	// WHEN
	s := calculate(t, req)

	// THEN: the credit wipes out the tax exactly, never below zero
	assertAmount(t, "20.00", s.Line(engine.LineIncomeTax))
	assertAmount(t, "8.75", s.Line(engine.LineDividendTax))
	assertAmount(t, "-28.75", s.Line(engine.LineMortgageInterestCredit))
	assertAmount(t, "0", s.IncomeTax)
	assertAmount(t, "0", s.TotalLiability)
}

func TestCalculate_TrailIsOrdered(t *testing.T) {
	s := calculate(t, employee(30000, 0))

	require.NotEmpty(t, s.Trail)
	for i, step := range s.Trail {
		assert.Equal(t, i+1, step.Seq)
	}
	assert.Equal(t, "aggregate", s.Trail[0].Stage)
	assert.Equal(t, "summary", s.Trail[len(s.Trail)-1].Stage)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestCalculate_Errors(t *testing.T) {
	cases := []struct {
		name string
		req  engine.Request
		kind error
	}{
		{"unsupported year", engine.Request{TaxYear: "2019/20"}, generic.ErrUnsupportedTaxYear},
		{"unknown election", engine.Request{Elections: map[string]string{"nope": "x"}}, generic.ErrUnknownElection},
		{"missing amount", engine.Request{Figures: income.RawFigures{
			Streams: []income.IncomeStream{{Type: income.StreamEmployment}},
		}}, generic.ErrIncompleteIncomeData},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s, err := engine.Calculate(context.Background(), c.req)
			assert.Nil(t, s)
			assert.True(t, errors.Is(err, c.kind), "got %v", err)
		})
	}
}

func TestCalculate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Calculate(ctx, employee(30000, 0))

	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// STAGES
// =============================================================================

func TestOrchestrator_RunOnlyOnce(t *testing.T) {
	o := engine.New(ruleset.MustLoad("2024/25"), relief.DefaultElections(), opts()...)
	assert.Equal(t, engine.StageCreated, o.Stage())

	_, err := o.Run(context.Background(), employee(30000, 0).Figures)
	require.NoError(t, err)
	assert.Equal(t, engine.StageValidated, o.Stage())
	assert.True(t, o.Stage().IsTerminal())

	_, err = o.Run(context.Background(), employee(30000, 0).Figures)
	assert.ErrorIs(t, err, generic.ErrInvalidStageTransition)
}

func TestOrchestrator_FailedRunCannotRestart(t *testing.T) {
	// GIVEN: a run rejected at aggregation
	o := engine.New(ruleset.MustLoad("2024/25"), relief.DefaultElections(), opts()...)
	missing := income.RawFigures{Streams: []income.IncomeStream{{Type: income.StreamEmployment}}}

	_, err := o.Run(context.Background(), missing)
	require.ErrorIs(t, err, generic.ErrIncompleteIncomeData)
	assert.Equal(t, engine.StageFailed, o.Stage())
	assert.True(t, o.Stage().IsTerminal())

	// WHEN: the same instance is driven again with good figures
	s, err := o.Run(context.Background(), employee(30000, 0).Figures)

	// THEN: it refuses; a new run needs a new orchestrator
	assert.ErrorIs(t, err, generic.ErrInvalidStageTransition)
	assert.Nil(t, s)
	assert.Equal(t, engine.StageFailed, o.Stage())
}

func TestOrchestrator_CancelledRunIsFailed(t *testing.T) {
	o := engine.New(ruleset.MustLoad("2024/25"), relief.DefaultElections(), opts()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx, employee(30000, 0).Figures)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "failed", o.Stage().String())
}

func TestTransition(t *testing.T) {
	st := engine.StageCreated
	require.NoError(t, engine.Transition(&st, engine.StageCreated, engine.StageAggregated))
	assert.Equal(t, "aggregated", st.String())

	// Skipping a stage
	err := engine.Transition(&st, engine.StageAggregated, engine.StageComputed)
	assert.ErrorIs(t, err, generic.ErrInvalidStageTransition)
	assert.Equal(t, engine.StageAggregated, st)

	// Wrong believed stage
	err = engine.Transition(&st, engine.StageCreated, engine.StageAggregated)
	assert.ErrorIs(t, err, generic.ErrInvalidStageTransition)

	// Nothing leaves a terminal stage
	done := engine.StageFailed
	err = engine.Transition(&done, engine.StageFailed, engine.StageFailed+1)
	assert.ErrorIs(t, err, generic.ErrInvalidStageTransition)
	validated := engine.StageValidated
	err = engine.Transition(&validated, engine.StageValidated, engine.StageFailed)
	assert.ErrorIs(t, err, generic.ErrInvalidStageTransition)
	assert.Equal(t, engine.StageValidated, validated)

	assert.Equal(t, "stage(42)", engine.Stage(42).String())
}

// =============================================================================
// BATCH
// =============================================================================

func TestRunBatch_IndependentAndOrdered(t *testing.T) {
	reqs := []engine.Request{
		employee(75000, 17432),
		{Name: "bad-year", TaxYear: "2001/02"},
		employee(20000, 0),
		{Name: "prior-year", TaxYear: "2023/24", Figures: employee(75000, 0).Figures},
	}

	results := engine.RunBatch(context.Background(), reqs, opts()...)

	require.Len(t, results, 4)
	require.NoError(t, results[0].Err)
	assertAmount(t, "20942.60", results[0].Summary.TotalLiability)
	assert.Equal(t, "bad-year", results[1].Name)
	assert.ErrorIs(t, results[1].Err, generic.ErrUnsupportedTaxYear)
	require.NoError(t, results[2].Err)
	assertAmount(t, "1486.00", results[2].Summary.Line(engine.LineIncomeTax))
	require.NoError(t, results[3].Err)
	assert.Equal(t, "2023/24", results[3].Summary.TaxYear)
}

func TestRunBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := engine.RunBatch(ctx, []engine.Request{employee(1, 0), employee(2, 0)})

	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.Nil(t, r.Summary)
	}
	assert.Empty(t, engine.RunBatch(context.Background(), nil))
}

// =============================================================================
// PROPERTIES - Seeded random taxpayers
// =============================================================================

func randomRequest(rng *rand.Rand) engine.Request {
	amt := func(max int64) *generic.Amount {
		a := generic.Pounds(generic.GBP(rng.Int63n(max)).Value.Add(generic.MustGBP("0.37").Value))
		return &a
	}
	day := func() generic.TimePoint {
		return generic.NewTimePoint(2024, time.April, 6).AddDays(rng.Intn(365))
	}

	var raw income.RawFigures
	for i := rng.Intn(3); i > 0; i-- {
		raw.Streams = append(raw.Streams, income.IncomeStream{Type: income.StreamEmployment, Amount: amt(150000)})
	}
	for _, typ := range []income.StreamType{income.StreamSelfEmployment, income.StreamRental, income.StreamDividend, income.StreamInterest} {
		if rng.Intn(2) == 0 {
			raw.Streams = append(raw.Streams, income.IncomeStream{Type: typ, Amount: amt(60000), Date: day()})
		}
	}
	for _, cat := range []income.ExpenseCategory{income.ExpenseRental, income.ExpenseRentalFinance, income.ExpenseSelfEmployment} {
		if rng.Intn(2) == 0 {
			raw.Expenses = append(raw.Expenses, income.ExpenseEntry{Category: cat, Amount: amt(15000), Allowable: rng.Intn(5) > 0})
		}
	}
	if rng.Intn(2) == 0 {
		raw.GiftAid = []income.Donation{{Charity: "c", Amount: amt(5000)}}
	}
	if rng.Intn(2) == 0 {
		raw.Pension.PersonalNet = *amt(40000)
		raw.Pension.Employer = *amt(40000)
		raw.Pension.PriorYears = []income.PriorPensionYear{{TaxYear: "2022/23", Contributions: *amt(50000)}}
	}
	for i := rng.Intn(3); i > 0; i-- {
		raw.Disposals = append(raw.Disposals, income.Disposal{
			Asset:                 fmt.Sprintf("asset-%d", i),
			Proceeds:              amt(80000),
			BaseCost:              *amt(60000),
			Date:                  day(),
			Residential:           rng.Intn(3) == 0,
			BusinessAssetDisposal: rng.Intn(4) == 0,
		})
	}
	raw.BroughtForwardLosses = *amt(10000)

	elections := map[string]string{
		"property_income":       []string{"auto", "allowance", "expenses"}[rng.Intn(3)],
		"pension_carry_forward": []string{"on", "off"}[rng.Intn(2)],
		"cgt_loss_allocation":   []string{"residential_first", "other_first"}[rng.Intn(2)],
	}
	return engine.Request{TaxYear: "2024/25", Elections: elections, Figures: raw}
}

func TestProperties_RandomTaxpayersReconcile(t *testing.T) {
	rng := rand.New(rand.NewSource(20240406))

	for i := 0; i < 300; i++ {
		req := randomRequest(rng)

		s, err := engine.Calculate(context.Background(), req, opts()...)
		require.NoError(t, err, "case %d", i)

		// Line items are pennies and sum exactly to the total.
		total := generic.ZeroGBP()
		for _, li := range s.LineItems {
			assert.True(t, li.Amount.Equal(li.Amount.RoundPenny()), "case %d: %s not in pennies", i, li.Code)
			if li.Code != engine.LineMortgageInterestCredit {
				assert.False(t, li.Amount.IsNegative(), "case %d: %s negative", i, li.Code)
			}
			total = total.Add(li.Amount)
		}
		assert.True(t, total.Equal(s.TotalLiability), "case %d", i)
		assert.False(t, s.TotalLiability.IsNegative(), "case %d", i)
		assert.True(t, s.BalanceDue.Equal(s.TotalLiability.Sub(s.TaxDeducted)), "case %d", i)

		// A run is a pure function of its request.
		again, err := engine.Calculate(context.Background(), req, opts()...)
		require.NoError(t, err)
		assert.Equal(t, s.LineItems, again.LineItems, "case %d", i)
	}
}

func TestProperties_MoreSalaryNeverLowersIncomeTax(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		salary := rng.Int63n(200000)
		low := calculate(t, employee(salary, 0))
		high := calculate(t, employee(salary+1+rng.Int63n(5000), 0))
		assert.True(t, high.Line(engine.LineIncomeTax).GreaterThanOrEqual(low.Line(engine.LineIncomeTax)),
			"salary %d", salary)
	}
}

func TestProperties_MoreGiftAidNeverRaisesLiability(t *testing.T) {
	rng := rand.New(rand.NewSource(1990))

	donor := func(salary, donation int64) *engine.LiabilitySummary {
		req := employee(salary, 0)
		req.Figures.GiftAid = []income.Donation{{Charity: "c", Amount: gbp(donation)}}
		return calculate(t, req)
	}

	for i := 0; i < 200; i++ {
		salary := 20000 + rng.Int63n(180000)
		donation := rng.Int63n(20000)
		more := donation + 1 + rng.Int63n(5000)

		low, high := donor(salary, donation), donor(salary, more)

		assert.True(t, high.Reliefs.GiftAidBandExtension.GreaterThan(low.Reliefs.GiftAidBandExtension),
			"salary %d: extension shrank from %s to %s", salary, low.Reliefs.GiftAidBandExtension, high.Reliefs.GiftAidBandExtension)
		assert.True(t, high.TotalLiability.LessThanOrEqual(low.TotalLiability),
			"salary %d, donation %d -> %d: liability rose from %s to %s", salary, donation, more, low.TotalLiability, high.TotalLiability)
	}
}
