/*
Package factory converts JSON calculation requests into engine requests.

PURPOSE:
  The document-processing collaborator and the HTTP/CLI surfaces all speak
  JSON. The factory turns that JSON into engine.Request without interpreting
  any tax rule: it only decodes, so every data problem is still reported by
  the aggregator with its field path.

JSON SCHEMA:
  {
    "name": "landlord-2024",
    "tax_year": "2024/25",
    "elections": {"property_income": "expenses"},
    "income": [
      {"type": "employment", "source": "Acme Ltd", "amount": "75000", "tax_deducted": "17432"},
      {"type": "rental", "source": "12 High St", "amount": "15000", "date": "2024-09-30"}
    ],
    "expenses": [
      {"category": "rental", "amount": "3000"},
      {"category": "rental_finance_cost", "amount": "8000", "description": "mortgage interest"}
    ],
    "pension": {
      "personal_net": "8000",
      "employer": "5000",
      "prior_years": [{"tax_year": "2021/22", "contributions": "12000"}]
    },
    "gift_aid": [{"charity": "Oxfam", "amount": "400"}],
    "disposals": [
      {"asset": "ACME shares", "proceeds": "20000", "base_cost": "8000",
       "date": "2024-11-02", "residential": false}
    ],
    "brought_forward_losses": "0"
  }

  Amounts may be JSON numbers or quoted decimals. A stream or disposal that
  omits its amount or proceeds decodes to nil and is rejected downstream as
  incomplete, never defaulted to zero.

SEE ALSO:
  - income/types.go: RawFigures
  - engine/batch.go: Request
*/
package factory

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/warp/tax-engine/engine"
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/income"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RequestJSON is the JSON representation of a calculation request.
type RequestJSON struct {
	Name                 string            `json:"name,omitempty"`
	TaxYear              string            `json:"tax_year,omitempty"`
	Elections            map[string]string `json:"elections,omitempty"`
	Income               []StreamJSON      `json:"income"`
	Expenses             []ExpenseJSON     `json:"expenses,omitempty"`
	Pension              *PensionJSON      `json:"pension,omitempty"`
	GiftAid              []DonationJSON    `json:"gift_aid,omitempty"`
	Disposals            []DisposalJSON    `json:"disposals,omitempty"`
	BroughtForwardLosses *generic.Amount   `json:"brought_forward_losses,omitempty"`
}

type StreamJSON struct {
	Type        string            `json:"type"`
	Source      string            `json:"source,omitempty"`
	Amount      *generic.Amount   `json:"amount"`
	TaxDeducted *generic.Amount   `json:"tax_deducted,omitempty"`
	Date        generic.TimePoint `json:"date,omitempty"`
}

type ExpenseJSON struct {
	Category    string            `json:"category"`
	Description string            `json:"description,omitempty"`
	Amount      *generic.Amount   `json:"amount"`
	Date        generic.TimePoint `json:"date,omitempty"`
	Allowable   *bool             `json:"allowable,omitempty"` // default true
}

type PensionJSON struct {
	PersonalNet *generic.Amount    `json:"personal_net,omitempty"`
	Employer    *generic.Amount    `json:"employer,omitempty"`
	PriorYears  []PriorPensionJSON `json:"prior_years,omitempty"`
}

type PriorPensionJSON struct {
	TaxYear         string          `json:"tax_year"`
	AnnualAllowance *generic.Amount `json:"annual_allowance,omitempty"`
	Contributions   *generic.Amount `json:"contributions,omitempty"`
}

type DonationJSON struct {
	Charity string            `json:"charity,omitempty"`
	Amount  *generic.Amount   `json:"amount"`
	Date    generic.TimePoint `json:"date,omitempty"`
}

type DisposalJSON struct {
	Asset                 string            `json:"asset"`
	Proceeds              *generic.Amount   `json:"proceeds"`
	BaseCost              *generic.Amount   `json:"base_cost,omitempty"`
	ImprovementCosts      *generic.Amount   `json:"improvement_costs,omitempty"`
	DisposalCosts         *generic.Amount   `json:"disposal_costs,omitempty"`
	Date                  generic.TimePoint `json:"date"`
	Residential           bool              `json:"residential,omitempty"`
	PrivateResidence      bool              `json:"private_residence,omitempty"`
	BusinessAssetDisposal bool              `json:"business_asset_disposal,omitempty"`
}

// =============================================================================
// REQUEST FACTORY
// =============================================================================

// RequestFactory converts JSON requests to engine requests.
type RequestFactory struct {
	// DefaultTaxYear fills requests that do not name a year.
	DefaultTaxYear string
	// DefaultElections are overlaid by the request's own elections.
	DefaultElections map[string]string
}

// NewRequestFactory creates a factory with the given defaults.
func NewRequestFactory(taxYear string, elections map[string]string) *RequestFactory {
	return &RequestFactory{DefaultTaxYear: taxYear, DefaultElections: elections}
}

// Parse decodes a JSON document into an engine.Request.
func (f *RequestFactory) Parse(data []byte) (engine.Request, RequestJSON, error) {
	var rj RequestJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return engine.Request{}, rj, fmt.Errorf("%w: request JSON: %v", generic.ErrMalformedInput, err)
	}
	return f.FromJSON(rj), rj, nil
}

// Decode reads one JSON request from r.
func (f *RequestFactory) Decode(r io.Reader) (engine.Request, RequestJSON, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return engine.Request{}, RequestJSON{}, fmt.Errorf("read request: %w", err)
	}
	return f.Parse(data)
}

// FromJSON converts RequestJSON to engine.Request.
func (f *RequestFactory) FromJSON(rj RequestJSON) engine.Request {
	req := engine.Request{
		Name:      rj.Name,
		TaxYear:   rj.TaxYear,
		Elections: make(map[string]string, len(f.DefaultElections)+len(rj.Elections)),
	}
	if req.TaxYear == "" {
		req.TaxYear = f.DefaultTaxYear
	}
	for k, v := range f.DefaultElections {
		req.Elections[k] = v
	}
	for k, v := range rj.Elections {
		req.Elections[k] = v
	}

	fig := &req.Figures
	for _, s := range rj.Income {
		fig.Streams = append(fig.Streams, income.IncomeStream{
			Type:        income.StreamType(s.Type),
			Source:      s.Source,
			Amount:      s.Amount,
			TaxDeducted: deref(s.TaxDeducted),
			Date:        s.Date,
		})
	}
	for _, e := range rj.Expenses {
		allowable := true
		if e.Allowable != nil {
			allowable = *e.Allowable
		}
		fig.Expenses = append(fig.Expenses, income.ExpenseEntry{
			Category:    income.ExpenseCategory(e.Category),
			Description: e.Description,
			Amount:      e.Amount,
			Date:        e.Date,
			Allowable:   allowable,
		})
	}
	if p := rj.Pension; p != nil {
		fig.Pension.PersonalNet = deref(p.PersonalNet)
		fig.Pension.Employer = deref(p.Employer)
		for _, py := range p.PriorYears {
			fig.Pension.PriorYears = append(fig.Pension.PriorYears, income.PriorPensionYear{
				TaxYear:         py.TaxYear,
				AnnualAllowance: py.AnnualAllowance,
				Contributions:   deref(py.Contributions),
			})
		}
	}
	for _, d := range rj.GiftAid {
		fig.GiftAid = append(fig.GiftAid, income.Donation{Charity: d.Charity, Amount: d.Amount, Date: d.Date})
	}
	for _, d := range rj.Disposals {
		fig.Disposals = append(fig.Disposals, income.Disposal{
			Asset:                 d.Asset,
			Proceeds:              d.Proceeds,
			BaseCost:              deref(d.BaseCost),
			ImprovementCosts:      deref(d.ImprovementCosts),
			DisposalCosts:         deref(d.DisposalCosts),
			Date:                  d.Date,
			Residential:           d.Residential,
			PrivateResidence:      d.PrivateResidence,
			BusinessAssetDisposal: d.BusinessAssetDisposal,
		})
	}
	fig.BroughtForwardLosses = deref(rj.BroughtForwardLosses)
	return req
}

func deref(a *generic.Amount) generic.Amount {
	if a == nil {
		return generic.ZeroGBP()
	}
	return *a
}
