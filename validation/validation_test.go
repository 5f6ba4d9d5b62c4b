package validation_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/income"
	"github.com/warp/tax-engine/relief"
	"github.com/warp/tax-engine/ruleset"
	"github.com/warp/tax-engine/validation"
)

func validInput() validation.Input {
	zero := generic.ZeroGBP()
	return validation.Input{
		Rules: ruleset.MustLoad("2024/25"),
		Reliefs: &relief.ResolvedReliefs{
			GiftAid: relief.GiftAidRelief{BandExtension: generic.GBP(100)},
			Pension: relief.PensionRelief{
				RelievableGross:  generic.GBP(5000),
				ReliefCap:        generic.GBP(75000),
				TaperedAllowance: generic.GBP(60000),
			},
			Property: relief.PropertyRelief{Method: relief.PropertyNone, Receipts: zero, Deduction: zero},
		},
		Lines: []validation.Line{
			{Code: "income_tax", Amount: generic.GBP(17432)},
			{Code: "mortgage_interest_credit", Amount: generic.GBP(-1600), MayReduce: true},
		},
		Total:         generic.GBP(15832),
		EffectiveRate: decimal.RequireFromString("0.21"),
	}
}

func TestValidate_Passes(t *testing.T) {
	assert.NoError(t, validation.Validate(validInput()))
}

func TestValidate_CollectsEveryFailure(t *testing.T) {
	// GIVEN: three independent problems
	in := validInput()
	in.Lines[0].Amount = generic.GBP(-1)
	in.EffectiveRate = decimal.RequireFromString("0.80")
	in.Reliefs.Pension.TaperedAllowance = generic.GBP(70000)

	// WHEN
	err := validation.Validate(in)

	// THEN: all three are reported together
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrValidationFailed))
	var ve *generic.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Reasons, 3)
	assert.Contains(t, ve.Reasons[0], "income_tax is negative")
}

func TestValidate_ReducerMustNotAdd(t *testing.T) {
	in := validInput()
	in.Lines[1].Amount = generic.GBP(10)

	err := validation.Validate(in)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "must reduce liability")
}

func TestValidate_PropertyAllowanceCap(t *testing.T) {
	in := validInput()
	in.Reliefs.Property = relief.PropertyRelief{
		Method:    relief.PropertyAllowance,
		Receipts:  generic.GBP(5000),
		Deduction: generic.GBP(1500),
	}

	err := validation.Validate(in)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds allowance")
}

// =============================================================================
// WARNINGS
// =============================================================================

func TestWarnings_NoneForOrdinaryRun(t *testing.T) {
	in := validInput()
	in.IncomeTax.TotalIncome = generic.GBP(75000)
	in.Profile = &income.IncomeProfile{
		Employment: income.EmploymentTotals{Gross: generic.GBP(75000)},
		Rental:     income.RentalTotals{GrossReceipts: generic.GBP(15000), AllowableExpenses: generic.GBP(3000)},
	}

	assert.Empty(t, validation.Warnings(in))
}

func TestWarnings_Thresholds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(in *validation.Input)
		want   string // empty: no warning
	}{
		{"income at the filing threshold", func(in *validation.Input) {
			in.IncomeTax.TotalIncome = generic.GBP(100000)
		}, ""},
		{"income above the filing threshold", func(in *validation.Input) {
			in.IncomeTax.TotalIncome = generic.MustGBP("100000.01")
		}, generic.NoticeSelfAssessmentRequired},
		{"very high employment income", func(in *validation.Input) {
			in.Profile.Employment.Gross = generic.GBP(1000001)
		}, generic.NoticeEmploymentIncomeHigh},
		{"rental expenses at 120% of receipts", func(in *validation.Input) {
			in.Profile.Rental = income.RentalTotals{GrossReceipts: generic.GBP(1000), AllowableExpenses: generic.GBP(1200)}
		}, ""},
		{"rental expenses above 120% of receipts", func(in *validation.Input) {
			in.Profile.Rental = income.RentalTotals{GrossReceipts: generic.GBP(1000), AllowableExpenses: generic.GBP(1201)}
		}, generic.NoticeRentalExpensesHigh},
		{"effective rate above 50%", func(in *validation.Input) {
			in.EffectiveRate = decimal.RequireFromString("0.5001")
		}, generic.NoticeEffectiveRateHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// GIVEN
			in := validInput()
			in.Profile = &income.IncomeProfile{}
			tc.mutate(&in)

			// WHEN
			got := validation.Warnings(in)

			// THEN
			if tc.want == "" {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tc.want, got[0].Code)
			assert.Equal(t, generic.NoticeWarning, got[0].Level)
		})
	}
}

func TestWarnings_WithoutProfile(t *testing.T) {
	in := validInput()
	in.IncomeTax.TotalIncome = generic.GBP(250000)

	got := validation.Warnings(in)

	require.Len(t, got, 1)
	assert.Equal(t, generic.NoticeSelfAssessmentRequired, got[0].Code)
	assert.True(t, got[0].Amount.Equal(generic.GBP(250000)))
}
