package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	anomalydomain "github.com/smallbiznis/creditd/internal/anomaly/domain"
	invoicedomain "github.com/smallbiznis/creditd/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/creditd/internal/ledger/domain"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// statusForCode maps the stable error codes to HTTP statuses. Unknown codes
// surface as 500.
func statusForCode(code string) int {
	switch code {
	case ledgerdomain.CodeInsufficientCredit:
		return http.StatusPaymentRequired
	case ledgerdomain.CodeLedgerNotFound, invoicedomain.CodeInvoiceNotFound:
		return http.StatusNotFound
	case ledgerdomain.CodeValidationError:
		return http.StatusUnprocessableEntity
	case invoicedomain.CodeInvalidInvoiceStatus, invoicedomain.CodeInvoiceAlreadyExists:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := "INTERNAL_ERROR"
	message := "internal server error"

	var ledgerErr *ledgerdomain.Error
	var invoiceErr *invoicedomain.Error
	var anomalyErr *anomalydomain.Error
	switch {
	case errors.As(err, &ledgerErr):
		code, message = ledgerErr.Code, ledgerErr.Message
	case errors.As(err, &invoiceErr):
		code, message = invoiceErr.Code, invoiceErr.Message
	case errors.As(err, &anomalyErr):
		code, message = anomalyErr.Code, anomalyErr.Message
	}

	c.JSON(statusForCode(code), errorResponse{Error: errorPayload{
		Code:    code,
		Message: message,
	}})
}

func respondValidation(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: errorPayload{
		Code:    ledgerdomain.CodeValidationError,
		Message: message,
	}})
}
