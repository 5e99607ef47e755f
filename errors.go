package payments

import "fmt"

// PaymentError represents a payment-specific error
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	// ErrCodeUnauthenticated means no token was found; verification was
	// never attempted.
	ErrCodeUnauthenticated = "unauthenticated"

	// ErrCodePaymentRequired means a token was present but verification
	// returned invalid, or a requirement exists and no token was given.
	// The error Details carry the machine-readable requirement so a
	// client can acquire an acceptable token.
	ErrCodePaymentRequired = "payment_required"

	// ErrCodeHandlerError means the wrapped work raised; the terminal
	// state is Failed.
	ErrCodeHandlerError = "handler_error"

	// ErrCodeSettlementFailed means the settle call failed. Under the
	// propagate policy it surfaces as a billing-configuration error,
	// never conflated with handler errors.
	ErrCodeSettlementFailed = "settlement_failed"

	// ErrCodeNoPlanConfigured is a setup-time misconfiguration: the
	// requirement builder has no plan to charge against.
	ErrCodeNoPlanConfigured = "no_plan_configured"

	// ErrCodeTaskNotFound means no ledger entry exists for the given
	// work or correlation id.
	ErrCodeTaskNotFound = "task_not_found"
)

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewUnauthenticatedError reports a missing payment token. The
// requirement is attached so the client knows which plans would grant
// access, same as a payment-required error.
func NewUnauthenticatedError(requirement PaymentRequirement) *PaymentError {
	return &PaymentError{
		Code:    ErrCodeUnauthenticated,
		Message: "payment token is required",
		Details: map[string]interface{}{
			"requirement": requirement,
		},
	}
}

// NewPaymentRequiredError reports a failed or missing entitlement. The
// requirement is attached so the client can acquire an acceptable
// token.
func NewPaymentRequiredError(reason string, requirement PaymentRequirement) *PaymentError {
	if reason == "" {
		reason = "payment required"
	}
	return &PaymentError{
		Code:    ErrCodePaymentRequired,
		Message: reason,
		Details: map[string]interface{}{
			"requirement": requirement,
		},
	}
}

// NewSettlementError reports a failed settle call under the propagate
// policy.
func NewSettlementError(reason string, result *SettlementResult) *PaymentError {
	details := map[string]interface{}{}
	if result != nil {
		details["settlement"] = result
	}
	return &PaymentError{
		Code:    ErrCodeSettlementFailed,
		Message: reason,
		Details: details,
	}
}

// ErrorCode extracts the payment error code from err, or "" if err is
// not a PaymentError.
func ErrorCode(err error) string {
	if pe, ok := err.(*PaymentError); ok {
		return pe.Code
	}
	return ""
}
