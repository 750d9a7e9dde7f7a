package domain

import "fmt"

// Stable error codes surfaced to the transport layer.
const (
	CodeInvoiceNotFound        = "INVOICE_NOT_FOUND"
	CodeInvalidInvoiceStatus   = "INVALID_INVOICE_STATUS"
	CodeInvoiceAlreadyExists   = "INVOICE_ALREADY_EXISTS"
	CodeCreateInvoiceFailed    = "CREATE_INVOICE_FAILED"
	CodeGenerateProformaFailed = "GENERATE_PROFORMA_FAILED"
)

// Error carries a stable code plus a free-form reason for diagnostics.
type Error struct {
	Code    string
	Message string
	Reason  string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// NewInvoiceNotFound reports a missing invoice.
func NewInvoiceNotFound(id string) *Error {
	return &Error{
		Code:    CodeInvoiceNotFound,
		Message: fmt.Sprintf("invoice %s not found", id),
	}
}

// NewInvalidInvoiceStatus reports a proforma request against a non-draft
// invoice.
func NewInvalidInvoiceStatus(status Status) *Error {
	return &Error{
		Code:    CodeInvalidInvoiceStatus,
		Message: fmt.Sprintf("proforma is only available for DRAFT invoices, current status is %s", status),
	}
}

// NewInvoiceAlreadyExists reports a duplicate invoice for a billing period.
func NewInvoiceAlreadyExists(tenantID string) *Error {
	return &Error{
		Code:    CodeInvoiceAlreadyExists,
		Message: fmt.Sprintf("invoice already exists for tenant %s in this billing period", tenantID),
	}
}

// WrapFailure packages an unexpected lower-layer failure under a stable code.
func WrapFailure(code, message string, err error) *Error {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return &Error{Code: code, Message: message, Reason: reason}
}
