package domain

import "fmt"

// Stable error codes surfaced to the transport layer.
const (
	CodeInsufficientCredit   = "INSUFFICIENT_CREDIT"
	CodeLedgerNotFound       = "LEDGER_NOT_FOUND"
	CodeValidationError      = "VALIDATION_ERROR"
	CodeConsumeCreditFailed  = "CONSUME_CREDIT_FAILED"
	CodeRefundCreditFailed   = "REFUND_CREDIT_FAILED"
	CodeAllocateCreditFailed = "ALLOCATE_CREDIT_FAILED"
	CodeAdjustCreditFailed   = "ADJUST_CREDIT_FAILED"
	CodeQueryFailed          = "QUERY_FAILED"
)

// Error carries a stable code for clients plus a free-form reason for
// diagnostics. Clients branch on Code, never on Reason.
type Error struct {
	Code    string
	Message string
	Reason  string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// NewError builds a domain error with the given code and message.
func NewError(code, message, reason string) *Error {
	return &Error{Code: code, Message: message, Reason: reason}
}

// NewLedgerNotFound reports a missing ledger on a non-allocating operation.
func NewLedgerNotFound(tenantID string) *Error {
	return &Error{
		Code:    CodeLedgerNotFound,
		Message: fmt.Sprintf("credit ledger not found for tenant %s", tenantID),
		Reason:  "tenant may not exist or ledger not initialized",
	}
}

// NewInsufficientCredit reports that the balance cannot cover the amount.
func NewInsufficientCredit(available, required fmt.Stringer) *Error {
	return &Error{
		Code:    CodeInsufficientCredit,
		Message: fmt.Sprintf("insufficient credits. required: %s, available: %s", required, available),
		Reason:  fmt.Sprintf("balance=%s, required=%s", available, required),
	}
}

// NewValidationError reports rejected input.
func NewValidationError(message string) *Error {
	return &Error{Code: CodeValidationError, Message: message}
}

// WrapFailure packages an unexpected lower-layer failure under a stable code.
func WrapFailure(code, message string, err error) *Error {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return &Error{Code: code, Message: message, Reason: reason}
}
