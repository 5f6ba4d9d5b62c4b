package generic

import "fmt"

// =============================================================================
// NOTICE - Non-fatal conditions surfaced with the result
// =============================================================================

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// Notice codes. Downstream consumers key on these, never on Message.
const (
	NoticePensionAllowanceExceeded  = "pension_allowance_exceeded"
	NoticePensionReliefCapped       = "pension_relief_capped"
	NoticeCapitalLossesCarried      = "capital_losses_carried_forward"
	NoticePropertyLossCarried       = "property_loss_carried_forward"
	NoticeFinanceCostsCarried       = "finance_costs_carried_forward"
	NoticeTradingLossUnrelieved     = "trading_loss_unrelieved"
	NoticePersonalAllowanceTapered  = "personal_allowance_tapered"
	NoticeAnnualAllowanceTapered    = "annual_allowance_tapered"
	NoticeDisallowedExpenses        = "disallowed_expenses"
	NoticePropertyElectionOverrides = "property_election_overrides_cheaper_method"

	// Plausibility and compliance warnings raised after validation.
	NoticeSelfAssessmentRequired = "self_assessment_required"
	NoticeRentalExpensesHigh     = "rental_expenses_high"
	NoticeEffectiveRateHigh      = "effective_rate_high"
	NoticeEmploymentIncomeHigh   = "employment_income_high"
)

// Notice is a PolicyNotice: worth reporting, never a reason to stop.
type Notice struct {
	Code    string      `json:"code"`
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	Amount  *Amount     `json:"amount,omitempty"`
}

// NewNotice builds a notice with an optional amount.
func NewNotice(code string, level NoticeLevel, amount *Amount, format string, args ...any) Notice {
	return Notice{Code: code, Level: level, Amount: amount, Message: fmt.Sprintf(format, args...)}
}

// Ptr returns a pointer to a copy of the amount, for optional fields.
func (a Amount) Ptr() *Amount { return &a }
