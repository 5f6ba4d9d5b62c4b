package factory_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tax-engine/factory"
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/income"
)

const landlordJSON = `{
  "name": "landlord",
  "elections": {"property_income": "expenses"},
  "income": [
    {"type": "employment", "source": "Acme", "amount": 40000, "tax_deducted": "5486"},
    {"type": "rental", "source": "Flat", "amount": "15000", "date": "2024-09-30"}
  ],
  "expenses": [
    {"category": "rental", "amount": "3000"},
    {"category": "rental_finance_cost", "amount": "8000", "allowable": false}
  ],
  "pension": {"personal_net": "800", "prior_years": [{"tax_year": "2022/23", "contributions": "1000"}]},
  "disposals": [{"asset": "Shares", "proceeds": "20000", "date": "2024-11-02"}]
}`

func TestParse_Landlord(t *testing.T) {
	// GIVEN: a factory defaulting to 2024/25 with a carry-forward default
	f := factory.NewRequestFactory("2024/25", map[string]string{
		"pension_carry_forward": "off",
		"property_income":       "allowance",
	})

	// WHEN
	req, rj, err := f.Parse([]byte(landlordJSON))
	require.NoError(t, err)

	// THEN: the year is defaulted and request elections win over defaults
	assert.Equal(t, "landlord", req.Name)
	assert.Equal(t, "2024/25", req.TaxYear)
	assert.Equal(t, "expenses", req.Elections["property_income"])
	assert.Equal(t, "off", req.Elections["pension_carry_forward"])
	assert.Equal(t, "landlord", rj.Name)

	fig := req.Figures
	require.Len(t, fig.Streams, 2)
	assert.Equal(t, income.StreamEmployment, fig.Streams[0].Type)
	assert.True(t, fig.Streams[0].Amount.Equal(generic.GBP(40000)))
	assert.True(t, fig.Streams[0].TaxDeducted.Equal(generic.GBP(5486)))
	assert.Equal(t, "2024-09-30", fig.Streams[1].Date.String())

	require.Len(t, fig.Expenses, 2)
	assert.True(t, fig.Expenses[0].Allowable, "allowable defaults to true")
	assert.False(t, fig.Expenses[1].Allowable)

	assert.True(t, fig.Pension.PersonalNet.Equal(generic.GBP(800)))
	require.Len(t, fig.Pension.PriorYears, 1)
	assert.Nil(t, fig.Pension.PriorYears[0].AnnualAllowance)
	assert.True(t, fig.Disposals[0].BaseCost.IsZero())
}

func TestParse_MissingAmountStaysNil(t *testing.T) {
	f := factory.NewRequestFactory("2024/25", nil)

	req, _, err := f.Parse([]byte(`{"tax_year": "2023/24", "income": [{"type": "dividend"}]}`))

	require.NoError(t, err)
	assert.Equal(t, "2023/24", req.TaxYear)
	assert.Nil(t, req.Figures.Streams[0].Amount)
}

func TestParse_MalformedJSON(t *testing.T) {
	f := factory.NewRequestFactory("2024/25", nil)

	for _, doc := range []string{`{"income": [`, `{"income": [{"amount": "lots"}]}`, `{"income": [{"date": "30/09/2024"}]}`} {
		_, _, err := f.Parse([]byte(doc))
		assert.True(t, errors.Is(err, generic.ErrMalformedInput), "%s: %v", doc, err)
	}
}

func TestDecode_Reader(t *testing.T) {
	f := factory.NewRequestFactory("2024/25", nil)

	req, _, err := f.Decode(strings.NewReader(`{"income": [{"type": "interest", "amount": 12.5}]}`))

	require.NoError(t, err)
	assert.True(t, req.Figures.Streams[0].Amount.Equal(generic.MustGBP("12.50")))
	assert.Empty(t, req.Elections)
}
