/*
errors.go - Centralized error types for the tax engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure the engine can raise falls into exactly one category, and
  callers decide what to do by category rather than by message.

ERROR CATEGORIES:
  1. Input errors       - incomplete, out-of-period or malformed figures, unknown
                          elections. The caller fixes the data; never retried.
  2. Rule errors        - unsupported tax year, malformed RuleSet. Configuration
                          defects; fatal.
  3. Consistency errors - reconciliation mismatch. An engine defect; the run halts
                          and no partial summary is returned.
  4. Validation errors  - post-computation checks failed.

  Non-fatal conditions are not errors at all: they are Notices attached to the
  summary (see notice.go).

USAGE:
  if errors.Is(err, generic.ErrOutOfPeriodData) {
      var inErr *generic.InputError
      errors.As(err, &inErr)
      log.Printf("bad field: %s", inErr.Field)
  }

SEE ALSO:
  - notice.go: PolicyNotice values
  - engine/orchestrator.go: Where each category is raised
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrIncompleteIncomeData is returned when a declared stream has no amount.
	ErrIncompleteIncomeData = errors.New("incomplete income data")

	// ErrOutOfPeriodData is returned when a dated record falls outside the tax year.
	ErrOutOfPeriodData = errors.New("out of period data")

	// ErrMalformedInput is returned for negative amounts, unknown categories and
	// other structurally invalid records.
	ErrMalformedInput = errors.New("malformed input")

	// ErrUnknownElection is returned for an unrecognized election key or value.
	ErrUnknownElection = errors.New("unknown election")

	// ErrUnsupportedTaxYear is returned when no RuleSet exists for the year.
	ErrUnsupportedTaxYear = errors.New("unsupported tax year")

	// ErrMalformedRuleSet is returned when RuleSet data violates its invariants.
	ErrMalformedRuleSet = errors.New("malformed rule set")

	// ErrReconciliationMismatch is returned when line items do not sum to the
	// independently computed per-type totals.
	ErrReconciliationMismatch = errors.New("reconciliation mismatch")

	// ErrValidationFailed is returned by the validation layer.
	ErrValidationFailed = errors.New("validation failed")

	// ErrInvalidStageTransition is returned when a run is driven out of order.
	ErrInvalidStageTransition = errors.New("invalid stage transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InputError identifies the offending field of a rejected input.
type InputError struct {
	Kind    error // one of the input sentinels above
	Field   string
	Message string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
}

func (e *InputError) Unwrap() error { return e.Kind }

// NewInputError builds an InputError with a formatted message.
func NewInputError(kind error, field, format string, args ...any) *InputError {
	return &InputError{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// RuleError is a configuration defect in tax-year data.
type RuleError struct {
	Kind    error
	TaxYear string
	Message string
}

func (e *RuleError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.TaxYear)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.TaxYear, e.Message)
}

func (e *RuleError) Unwrap() error { return e.Kind }

// ConsistencyError reports an internal reconciliation failure.
type ConsistencyError struct {
	Check    string
	Expected Amount
	Actual   Amount
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %s: expected %s, got %s",
		ErrReconciliationMismatch, e.Check, e.Expected, e.Actual)
}

func (e *ConsistencyError) Unwrap() error { return ErrReconciliationMismatch }

// ValidationError lists every failed post-computation check.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(e.Reasons, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsInputError returns true if the caller can fix the error by correcting data.
func IsInputError(err error) bool {
	return errors.Is(err, ErrIncompleteIncomeData) ||
		errors.Is(err, ErrOutOfPeriodData) ||
		errors.Is(err, ErrMalformedInput) ||
		errors.Is(err, ErrUnknownElection)
}

// IsRuleError returns true for tax-year configuration defects.
func IsRuleError(err error) bool {
	return errors.Is(err, ErrUnsupportedTaxYear) ||
		errors.Is(err, ErrMalformedRuleSet)
}

// IsConsistencyError returns true when the engine itself is at fault.
func IsConsistencyError(err error) bool {
	return errors.Is(err, ErrReconciliationMismatch) ||
		errors.Is(err, ErrInvalidStageTransition)
}
