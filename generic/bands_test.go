package generic_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/tax-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func upper(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// incomeTaxBands is the 2024/25 rUK schedule applied after the Personal Allowance.
func incomeTaxBands() generic.BandSchedule {
	return generic.BandSchedule{
		{Name: "basic", Lower: decimal.Zero, Upper: upper("37700"), Rate: generic.MustRate("0.20")},
		{Name: "higher", Lower: decimal.RequireFromString("37700"), Upper: upper("125140"), Rate: generic.MustRate("0.40")},
		{Name: "additional", Lower: decimal.RequireFromString("125140"), Rate: generic.MustRate("0.45")},
	}
}

// =============================================================================
// TAX
// =============================================================================

func TestTax_WorkedExample(t *testing.T) {
	// GIVEN: 62,430 of taxable income (75,000 salary less a full allowance)
	bands := incomeTaxBands()

	// WHEN
	res := bands.Tax(generic.GBP(62430))

	// THEN: 37,700 at 20% + 24,730 at 40%
	if !res.Tax.Equal(generic.GBP(17432)) {
		t.Errorf("expected 17432 tax, got %s", res.Tax)
	}
	if res.TopBand != "higher" {
		t.Errorf("expected higher top band, got %s", res.TopBand)
	}
	if len(res.Slices) != 2 {
		t.Fatalf("expected 2 slices, got %d", len(res.Slices))
	}
	if !res.Slices[1].Amount.Equal(generic.GBP(24730)) {
		t.Errorf("expected 24730 in higher band, got %s", res.Slices[1].Amount)
	}
}

func TestTax_ExactBoundaryStaysInLowerBand(t *testing.T) {
	// GIVEN: income exactly at the basic rate limit
	res := incomeTaxBands().Tax(generic.GBP(37700))

	// THEN: the last pound is a basic rate pound
	if res.TopBand != "basic" {
		t.Errorf("expected basic top band at the boundary, got %s", res.TopBand)
	}
	if !res.Tax.Equal(generic.GBP(7540)) {
		t.Errorf("expected 7540, got %s", res.Tax)
	}
}

func TestTax_SlopeMatchesBandRate(t *testing.T) {
	bands := incomeTaxBands()
	eps := generic.MustGBP("0.01")

	// Every boundary: the pound below is taxed at the lower band's rate,
	// the pound above at the next band's, and inside a band the slope is flat.
	for i := 0; i < len(bands)-1; i++ {
		boundary := generic.Pounds(*bands[i].Upper)
		at := bands.Tax(boundary).Tax

		below := at.Sub(bands.Tax(boundary.Sub(eps)).Tax)
		if want := eps.Mul(bands[i].Rate); !below.Equal(want) {
			t.Errorf("%s: slope below %s = %s, want %s", bands[i].Name, boundary, below, want)
		}
		above := bands.Tax(boundary.Add(eps)).Tax.Sub(at)
		if want := eps.Mul(bands[i+1].Rate); !above.Equal(want) {
			t.Errorf("%s: slope above %s = %s, want %s", bands[i+1].Name, boundary, above, want)
		}
		inside := bands.Tax(boundary.Add(generic.GBP(1000))).Tax.Sub(bands.Tax(boundary.Add(generic.GBP(999))).Tax)
		if want := generic.GBP(1).Mul(bands[i+1].Rate); !inside.Equal(want) {
			t.Errorf("%s: slope inside band = %s, want %s", bands[i+1].Name, inside, want)
		}
	}
}

func TestTax_ZeroAmount(t *testing.T) {
	res := incomeTaxBands().Tax(generic.ZeroGBP())
	if !res.Tax.IsZero() || len(res.Slices) != 0 {
		t.Errorf("expected no tax and no slices, got %s / %d", res.Tax, len(res.Slices))
	}
	if res.TopBand != "basic" {
		t.Errorf("expected basic top band for zero income, got %s", res.TopBand)
	}
}

func TestTax_SumOfSlicesEqualsTaxed(t *testing.T) {
	bands := incomeTaxBands()
	for _, v := range []int64{1, 37699, 37701, 125140, 200000} {
		res := bands.Tax(generic.GBP(v))
		total := generic.ZeroGBP()
		for _, s := range res.Slices {
			total = total.Add(s.Amount)
		}
		if !total.Equal(generic.GBP(v)) || !res.Taxed.Equal(generic.GBP(v)) {
			t.Errorf("%d: slices sum to %s, taxed %s", v, total, res.Taxed)
		}
	}
}

// =============================================================================
// STACKED TAX
// =============================================================================

func TestStackedTax_DividendRatesOnTop(t *testing.T) {
	// GIVEN: 30,000 of other income already in the basic band
	rates := generic.RateTable{
		"basic":      generic.MustRate("0.0875"),
		"higher":     generic.MustRate("0.3375"),
		"additional": generic.MustRate("0.3935"),
	}

	// WHEN: 10,000 of dividends stack on top
	res := incomeTaxBands().StackedTax(generic.GBP(30000), generic.GBP(10000), rates)

	// THEN: 7,700 basic at 8.75% + 2,300 higher at 33.75%
	want := generic.MustGBP("673.75").Add(generic.MustGBP("776.25"))
	if !res.Tax.Equal(want) {
		t.Errorf("expected %s, got %s", want, res.Tax)
	}
	if !res.TopRate.Equal(generic.MustRate("0.3375")) {
		t.Errorf("expected top rate 0.3375, got %s", res.TopRate)
	}
}

func TestStackedTax_MissingRateFallsBack(t *testing.T) {
	rates := generic.RateTable{"basic": generic.MustRate("0.10")}
	res := incomeTaxBands().StackedTax(generic.GBP(37000), generic.GBP(1000), rates)

	// 700 at 10% + 300 at the schedule's own 40%
	if !res.Tax.Equal(generic.GBP(190)) {
		t.Errorf("expected 190, got %s", res.Tax)
	}
}

// =============================================================================
// EXTENSION + VALIDATION
// =============================================================================

func TestExtend_ShiftsBoundariesAboveZero(t *testing.T) {
	// GIVEN: a 500 grossed-up Gift Aid payment
	ext := incomeTaxBands().Extend(generic.GBP(500))

	if !ext[0].Lower.IsZero() {
		t.Errorf("first band must still start at zero, got %s", ext[0].Lower)
	}
	if !ext[0].Upper.Equal(decimal.NewFromInt(38200)) {
		t.Errorf("expected basic upper 38200, got %s", ext[0].Upper)
	}
	if !ext[2].Lower.Equal(decimal.NewFromInt(125640)) {
		t.Errorf("expected additional lower 125640, got %s", ext[2].Lower)
	}
	if err := ext.Validate(); err != nil {
		t.Errorf("extended schedule invalid: %v", err)
	}

	// AND: the original is untouched
	if !incomeTaxBands()[0].Upper.Equal(decimal.NewFromInt(37700)) {
		t.Error("extend mutated the source schedule")
	}
}

func TestExtend_NonPositiveIsNoop(t *testing.T) {
	ext := incomeTaxBands().Extend(generic.GBP(-100))
	if !ext[0].Upper.Equal(decimal.NewFromInt(37700)) {
		t.Errorf("negative extension moved bands: %s", ext[0].Upper)
	}
}

func TestBandSchedule_Validate(t *testing.T) {
	cases := map[string]generic.BandSchedule{
		"empty": {},
		"non-zero start": {
			{Name: "a", Lower: decimal.NewFromInt(1), Rate: generic.MustRate("0.2")},
		},
		"gap": {
			{Name: "a", Lower: decimal.Zero, Upper: upper("100"), Rate: generic.MustRate("0.2")},
			{Name: "b", Lower: decimal.NewFromInt(101), Rate: generic.MustRate("0.4")},
		},
		"bounded top": {
			{Name: "a", Lower: decimal.Zero, Upper: upper("100"), Rate: generic.MustRate("0.2")},
		},
		"rate above one": {
			{Name: "a", Lower: decimal.Zero, Rate: generic.MustRate("1.5")},
		},
		"duplicate name": {
			{Name: "a", Lower: decimal.Zero, Upper: upper("100"), Rate: generic.MustRate("0.2")},
			{Name: "a", Lower: decimal.NewFromInt(100), Rate: generic.MustRate("0.4")},
		},
	}
	for name, s := range cases {
		if err := s.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
	if err := incomeTaxBands().Validate(); err != nil {
		t.Errorf("valid schedule rejected: %v", err)
	}
}

func TestRoundPenny_Truncates(t *testing.T) {
	if got := generic.MustGBP("10.999").RoundPenny(); got.String() != "10.99" {
		t.Errorf("expected 10.99, got %s", got)
	}
	if got := generic.MustGBP("-1600.005").RoundPenny(); got.String() != "-1600.00" {
		t.Errorf("expected -1600.00, got %s", got)
	}
}
