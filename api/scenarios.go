/*
scenarios.go - Worked example calculations

PURPOSE:
  Provides ready-made calculation requests that exercise one area of the
  engine each. They double as documentation of the request format and as
  smoke tests for a deployed server.

AVAILABLE SCENARIOS:
  employee-75k:    PAYE employee at £75,000 (higher rate, Class 1 NI)
  landlord:        Employee with a mortgaged buy-to-let (expenses method, finance credit)
  gift-aid-donor:  Higher-rate employee donating £400 under Gift Aid
  high-earner:     £110,000 salary with a tapered personal allowance
  sole-trader:     Self-employed profit with Class 2 and Class 4 NI
  investor:        Salary, dividends, interest and a share disposal
  pension-saver:   Large personal and employer contributions with carry-forward

USAGE VIA API:
  GET  /api/scenarios/landlord        Request body
  POST /api/scenarios/landlord/run    Calculate it

USAGE VIA CLI:
  taxcalc scenarios
  taxcalc calculate --scenario landlord

ADDING NEW SCENARIOS:
  Append to 'scenarios' with an ID, description and request JSON. The JSON
  goes through the same factory as a client request.

SEE ALSO:
  - handlers.go: Calculate
  - factory/request.go: JSON schema
*/
package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// Scenario is a named example request.
type Scenario struct {
	ScenarioDTO
	JSON string
}

var scenarios = []Scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "employee-75k",
			Name:        "Employee on £75,000",
			Description: "Single PAYE employment into the higher rate band",
			Category:    "employment",
		},
		JSON: `{
  "name": "employee-75k",
  "tax_year": "2024/25",
  "income": [
    {"type": "employment", "source": "Acme Ltd", "amount": "75000", "tax_deducted": "17432"}
  ]
}`,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "landlord",
			Name:        "Employee with buy-to-let",
			Description: "Rental profit on the expenses method with a mortgage interest tax credit",
			Category:    "property",
		},
		JSON: `{
  "name": "landlord",
  "tax_year": "2024/25",
  "income": [
    {"type": "employment", "source": "Acme Ltd", "amount": "40000", "tax_deducted": "5486"},
    {"type": "rental", "source": "12 High Street", "amount": "15000", "date": "2025-03-31"}
  ],
  "expenses": [
    {"category": "rental", "description": "repairs and letting agent", "amount": "3000"},
    {"category": "rental_finance_cost", "description": "mortgage interest", "amount": "8000"}
  ]
}`,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "gift-aid-donor",
			Name:        "Gift Aid donor",
			Description: "Higher-rate employee whose donation extends the basic rate band",
			Category:    "employment",
		},
		JSON: `{
  "name": "gift-aid-donor",
  "tax_year": "2024/25",
  "income": [
    {"type": "employment", "source": "Acme Ltd", "amount": "60000"}
  ],
  "gift_aid": [
    {"charity": "Oxfam", "amount": "400", "date": "2024-12-01"}
  ]
}`,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "high-earner",
			Name:        "High earner",
			Description: "Adjusted net income above £100,000 tapers the personal allowance",
			Category:    "employment",
		},
		JSON: `{
  "name": "high-earner",
  "tax_year": "2024/25",
  "income": [
    {"type": "employment", "source": "Big Bank plc", "amount": "110000"}
  ]
}`,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "sole-trader",
			Name:        "Sole trader",
			Description: "Trading profit with Class 2 and Class 4 National Insurance",
			Category:    "self_employment",
		},
		JSON: `{
  "name": "sole-trader",
  "tax_year": "2024/25",
  "income": [
    {"type": "self_employment", "source": "Joinery", "amount": "30000"}
  ],
  "expenses": [
    {"category": "self_employment", "description": "materials", "amount": "5000"}
  ]
}`,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "investor",
			Name:        "Investor",
			Description: "Dividends and a share disposal stacked on top of a salary",
			Category:    "investment",
		},
		JSON: `{
  "name": "investor",
  "tax_year": "2024/25",
  "income": [
    {"type": "employment", "source": "Acme Ltd", "amount": "50000"},
    {"type": "dividend", "source": "FTSE tracker", "amount": "8000"},
    {"type": "interest", "source": "Savings account", "amount": "1000"}
  ],
  "disposals": [
    {"asset": "ACME shares", "proceeds": "30000", "base_cost": "10000",
     "disposal_costs": "0", "date": "2024-11-02"}
  ]
}`,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "pension-saver",
			Name:        "Pension saver",
			Description: "Contributions above the annual allowance absorbed by carry-forward",
			Category:    "pension",
		},
		JSON: `{
  "name": "pension-saver",
  "tax_year": "2024/25",
  "income": [
    {"type": "employment", "source": "Acme Ltd", "amount": "120000"}
  ],
  "pension": {
    "personal_net": "40000",
    "employer": "20000",
    "prior_years": [
      {"tax_year": "2021/22", "contributions": "30000"},
      {"tax_year": "2022/23", "contributions": "35000"},
      {"tax_year": "2023/24", "contributions": "60000"}
    ]
  },
  "elections": {"pension_carry_forward": "on"}
}`,
	},
}

// Scenarios lists the worked examples.
func Scenarios() []Scenario {
	return scenarios
}

// FindScenario returns the example with the id.
func FindScenario(id string) (Scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetScenario returns the scenario's request body.
func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	s, ok := FindScenario(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", nil)
		return
	}
	_, rj, err := h.Factory.Parse([]byte(s.JSON))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Scenario %s is malformed", s.ID), err)
		return
	}
	writeJSON(w, http.StatusOK, rj)
}

// RunScenario calculates a scenario exactly as if its JSON had been posted.
func (h *Handler) RunScenario(w http.ResponseWriter, r *http.Request) {
	s, ok := FindScenario(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", nil)
		return
	}
	req, _, err := h.Factory.Parse([]byte(s.JSON))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Scenario %s is malformed", s.ID), err)
		return
	}

	summary, runID, err := h.Execute(r.Context(), req, []byte(s.JSON))
	if err != nil {
		writeEngineError(w, runID, err)
		return
	}
	w.Header().Set("X-Run-ID", runID)
	writeJSON(w, http.StatusOK, summary)
}
