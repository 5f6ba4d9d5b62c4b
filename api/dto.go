/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication that are not already
  owned by another package. A calculation request body is exactly
  factory.RequestJSON and a successful calculation returns the
  engine.LiabilitySummary unchanged, so neither is redeclared here.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Runs:
    RunDTO, RunListResponse

  Rules:
    RuleSetResponse

  Batch:
    BatchRequest, BatchItemDTO

  Scenarios:
    ScenarioDTO

  Errors:
    ErrorResponse

SEE ALSO:
  - handlers.go: Uses these types
  - factory/request.go: RequestJSON
*/
package api

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/warp/tax-engine/factory"
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/relief"
	"github.com/warp/tax-engine/ruleset"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RunDTO is an archived run. Summary is the stored liability summary verbatim.
type RunDTO struct {
	ID             string          `json:"id"`
	Name           string          `json:"name,omitempty"`
	TaxYear        string          `json:"tax_year"`
	Status         string          `json:"status"`
	TotalLiability *generic.Amount `json:"total_liability,omitempty"`
	BalanceDue     *generic.Amount `json:"balance_due,omitempty"`
	ErrorKind      string          `json:"error_kind,omitempty"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      string          `json:"created_at"`
	Request        json.RawMessage `json:"request,omitempty"`
	Summary        json.RawMessage `json:"summary,omitempty"`
}

// RunListResponse wraps a run listing.
type RunListResponse struct {
	Runs  []RunDTO `json:"runs"`
	Count int      `json:"count"`
}

// RuleSetResponse publishes one tax year's constants.
type RuleSetResponse struct {
	TaxYear string           `json:"tax_year"`
	Slug    string           `json:"slug"`
	Rules   *ruleset.RuleSet `json:"rules"`
}

// ElectionsResponse lists the recognized elections.
type ElectionsResponse struct {
	Elections []relief.ElectionOption `json:"elections"`
}

// BatchRequest runs several independent calculations in one call.
type BatchRequest struct {
	Requests []factory.RequestJSON `json:"requests"`
}

// BatchItemDTO is one batch result, in request order.
type BatchItemDTO struct {
	Name    string         `json:"name,omitempty"`
	RunID   string         `json:"run_id,omitempty"`
	Status  string         `json:"status"`
	Summary any            `json:"summary,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"` // employment, property, investment, pension
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRunDTO(r generic.RunRecord, withBodies bool) RunDTO {
	dto := RunDTO{
		ID:             r.ID,
		Name:           r.Name,
		TaxYear:        r.TaxYear,
		Status:         r.Status,
		TotalLiability: r.TotalLiability,
		BalanceDue:     r.BalanceDue,
		ErrorKind:      r.ErrorKind,
		Error:          r.Error,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
	if withBodies {
		dto.Request = r.Request
		dto.Summary = r.Summary
	}
	return dto
}

func toRunDTOs(runs []generic.RunRecord) []RunDTO {
	dtos := make([]RunDTO, len(runs))
	for i, r := range runs {
		dtos[i] = toRunDTO(r, false)
	}
	return dtos
}
