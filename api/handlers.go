/*
handlers.go - HTTP API handlers for the tax engine

PURPOSE:
  Exposes the calculation engine via REST API. Handles HTTP request/response,
  JSON serialization, run archiving and metrics, and delegates every tax
  decision to the engine.

ENDPOINTS:
  Calculations:
    POST   /api/calculations           Run one calculation (body: factory.RequestJSON)
    POST   /api/calculations/batch     Run independent calculations in parallel
    GET    /api/calculations           List archived runs (?tax_year=&status=&limit=)
    GET    /api/calculations/{id}      Archived run with request and summary

  Rules:
    GET    /api/rulesets               Supported tax years
    GET    /api/rulesets/{year}        Constants for one year ("2024-25")
    GET    /api/elections              Recognized elections and their values

  Scenarios:
    GET    /api/scenarios              Worked example requests
    GET    /api/scenarios/{id}         One example request body
    POST   /api/scenarios/{id}/run     Run an example

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Run archive (optional; nil disables archiving)
  - Factory: JSON to engine.Request conversion with configured defaults
  - Logger: Passed to every orchestrator

REQUEST FLOW:
  1. Decode JSON (factory)
  2. Run the engine (engine.Calculate or engine.RunBatch)
  3. Record metrics
  4. Archive the request and its summary or error
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with a stable code and the offending field:
  - 400: Input errors (incomplete, out of period, malformed, unknown election)
  - 404: Unsupported tax year, unknown run or scenario
  - 422: Validation failed (reasons listed in details)
  - 500: Reconciliation mismatch, malformed rule data, internal errors

  An archive failure is logged and counted but never fails the calculation.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Worked examples
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/tax-engine/engine"
	"github.com/warp/tax-engine/factory"
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/metrics"
	"github.com/warp/tax-engine/relief"
	"github.com/warp/tax-engine/ruleset"
)

// MaxRequestBytes bounds a request body.
const MaxRequestBytes = 1 << 20

// MaxBatchSize bounds the number of requests in one batch call.
const MaxBatchSize = 100

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   generic.RunArchive
	Factory *factory.RequestFactory
	Logger  zerolog.Logger

	newID func() string
}

// NewHandler creates a new handler. store may be nil.
func NewHandler(store generic.RunArchive, f *factory.RequestFactory, logger zerolog.Logger) *Handler {
	if f == nil {
		f = factory.NewRequestFactory(ruleset.DefaultTaxYear, nil)
	}
	return &Handler{
		Store:   store,
		Factory: f,
		Logger:  logger.With().Str("component", "api").Logger(),
		newID:   uuid.NewString,
	}
}

// =============================================================================
// CALCULATION HANDLERS
// =============================================================================

// Calculate runs one calculation and returns its LiabilitySummary.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}
	req, _, err := h.Factory.Parse(body)
	if err != nil {
		writeEngineError(w, "", err)
		return
	}

	summary, runID, err := h.Execute(r.Context(), req, body)
	if err != nil {
		writeEngineError(w, runID, err)
		return
	}
	w.Header().Set("X-Run-ID", runID)
	writeJSON(w, http.StatusOK, summary)
}

// CalculateBatch runs independent calculations in parallel. The response
// always lists one item per request, in order; a failed item does not fail
// the batch.
func (h *Handler) CalculateBatch(w http.ResponseWriter, r *http.Request) {
	var batch BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBytes)).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(batch.Requests) == 0 {
		writeError(w, http.StatusBadRequest, "Batch has no requests", nil)
		return
	}
	if len(batch.Requests) > MaxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Batch exceeds %d requests", MaxBatchSize), nil)
		return
	}

	items := h.ExecuteBatch(r.Context(), batch.Requests)
	writeJSON(w, http.StatusOK, items)
}

// ListRuns returns archived runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusNotFound, "Run archive is disabled", nil)
		return
	}
	q := r.URL.Query()
	filter := generic.RunFilter{
		TaxYear: q.Get("tax_year"),
		Status:  q.Get("status"),
		Limit:   50,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}

	runs, err := h.Store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	dtos := toRunDTOs(runs)
	writeJSON(w, http.StatusOK, RunListResponse{Runs: dtos, Count: len(dtos)})
}

// GetRun returns one archived run including its request and summary.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusNotFound, "Run archive is disabled", nil)
		return
	}
	id := chi.URLParam(r, "id")

	run, err := h.Store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get run", err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(*run, true))
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// ListRuleSets returns the supported tax years.
func (h *Handler) ListRuleSets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tax_years": ruleset.Supported(),
		"default":   h.Factory.DefaultTaxYear,
	})
}

// GetRuleSet returns one year's constants.
func (h *Handler) GetRuleSet(w http.ResponseWriter, r *http.Request) {
	rules, err := ruleset.Load(chi.URLParam(r, "year"))
	if err != nil {
		writeEngineError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, RuleSetResponse{
		TaxYear: rules.TaxYear.String(),
		Slug:    rules.TaxYear.Slug(),
		Rules:   rules,
	})
}

// ListElections returns every recognized election.
func (h *Handler) ListElections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ElectionsResponse{Elections: relief.ElectionOptions()})
}

// Health reports liveness; with an archive it also pings the database.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unreachable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"tax_years": ruleset.Supported(),
	})
}

// =============================================================================
// EXECUTION
// =============================================================================

// Execute runs one request, records metrics and archives the outcome. The
// returned run id is set even when the calculation fails.
func (h *Handler) Execute(ctx context.Context, req engine.Request, body []byte) (*engine.LiabilitySummary, string, error) {
	runID := h.newID()
	start := time.Now()
	summary, err := engine.Calculate(ctx, req,
		engine.WithLogger(h.Logger),
		engine.WithRunID(func() string { return runID }),
	)

	var notices []generic.Notice
	if summary != nil {
		notices = summary.Notices
	}
	metrics.ObserveRun(req.TaxYear, time.Since(start), notices, err)
	h.archive(ctx, runID, req, body, summary, err)
	return summary, runID, err
}

// ExecuteBatch runs independent requests in parallel, then records metrics
// and archives each outcome. Items come back in request order.
func (h *Handler) ExecuteBatch(ctx context.Context, batch []factory.RequestJSON) []BatchItemDTO {
	reqs := make([]engine.Request, len(batch))
	for i, rj := range batch {
		reqs[i] = h.Factory.FromJSON(rj)
	}
	results := engine.RunBatch(ctx, reqs, engine.WithLogger(h.Logger))

	items := make([]BatchItemDTO, len(results))
	for i, res := range results {
		runID := h.newID()
		var notices []generic.Notice
		if res.Summary != nil {
			runID = res.Summary.RunID
			notices = res.Summary.Notices
		}
		metrics.CountRun(reqs[i].TaxYear, notices, res.Err)

		body, _ := json.Marshal(batch[i])
		h.archive(ctx, runID, reqs[i], body, res.Summary, res.Err)

		item := BatchItemDTO{Name: res.Name, RunID: runID, Status: runStatus(res.Err)}
		if res.Err != nil {
			resp := errorResponse(res.Err)
			item.Error = &resp
		} else {
			item.Summary = res.Summary
		}
		items[i] = item
	}
	return items
}

func (h *Handler) archive(ctx context.Context, runID string, req engine.Request, body []byte,
	summary *engine.LiabilitySummary, runErr error) {
	if h.Store == nil {
		return
	}
	rec := generic.RunRecord{
		ID:      runID,
		Name:    req.Name,
		TaxYear: req.TaxYear,
		Status:  runStatus(runErr),
		Request: body,
	}
	if summary != nil {
		data, err := json.Marshal(summary)
		if err != nil {
			h.archiveFailed(runID, err)
			return
		}
		rec.Summary = data
		rec.TaxYear = summary.TaxYear
		rec.TotalLiability = summary.TotalLiability.Ptr()
		rec.BalanceDue = summary.BalanceDue.Ptr()
		rec.CreatedAt = summary.ComputedAt
	}
	if runErr != nil {
		rec.ErrorKind = errorCode(runErr)
		rec.Error = runErr.Error()
	}
	if err := h.Store.SaveRun(ctx, rec); err != nil {
		h.archiveFailed(runID, err)
	}
}

func (h *Handler) archiveFailed(runID string, err error) {
	metrics.ArchiveErrors.Inc()
	h.Logger.Error().Err(err).Str("run_id", runID).Msg("failed to archive run")
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return generic.RunCompleted
	case generic.IsInputError(err), errors.Is(err, generic.ErrValidationFailed),
		errors.Is(err, generic.ErrUnsupportedTaxYear):
		return generic.RunRejected
	default:
		return generic.RunFailed
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, runID string, err error) {
	if runID != "" {
		w.Header().Set("X-Run-ID", runID)
	}
	writeJSON(w, errorStatus(err), errorResponse(err))
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, generic.ErrUnsupportedTaxYear):
		return http.StatusNotFound
	case generic.IsInputError(err):
		return http.StatusBadRequest
	case errors.Is(err, generic.ErrValidationFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error(), Code: errorCode(err)}
	var inErr *generic.InputError
	if errors.As(err, &inErr) {
		resp.Field = inErr.Field
	}
	var valErr *generic.ValidationError
	if errors.As(err, &valErr) {
		resp.Details = valErr.Reasons
	}
	return resp
}

// errorCode is the stable machine-readable name of an error kind.
func errorCode(err error) string {
	codes := []struct {
		kind error
		code string
	}{
		{generic.ErrIncompleteIncomeData, "incomplete_income_data"},
		{generic.ErrOutOfPeriodData, "out_of_period_data"},
		{generic.ErrMalformedInput, "malformed_input"},
		{generic.ErrUnknownElection, "unknown_election"},
		{generic.ErrUnsupportedTaxYear, "unsupported_tax_year"},
		{generic.ErrMalformedRuleSet, "malformed_rule_set"},
		{generic.ErrReconciliationMismatch, "reconciliation_mismatch"},
		{generic.ErrValidationFailed, "validation_failed"},
		{generic.ErrInvalidStageTransition, "invalid_stage_transition"},
	}
	for _, c := range codes {
		if errors.Is(err, c.kind) {
			return c.code
		}
	}
	return "internal"
}
