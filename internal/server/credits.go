package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	ledgerdomain "github.com/smallbiznis/creditd/internal/ledger/domain"
)

type mutationRequest struct {
	TenantID       string          `json:"tenant_id"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
	ReferenceType  *string         `json:"reference_type,omitempty"`
	ReferenceID    *string         `json:"reference_id,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
}

func (r mutationRequest) command() ledgerdomain.MutationCommand {
	return ledgerdomain.MutationCommand{
		TenantID:       r.TenantID,
		Amount:         r.Amount,
		IdempotencyKey: r.IdempotencyKey,
		ReferenceType:  r.ReferenceType,
		ReferenceID:    r.ReferenceID,
		Metadata:       r.Metadata,
	}
}

func (s *Server) consumeCredits(c *gin.Context) {
	var req mutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "invalid request body: "+err.Error())
		return
	}

	resp, err := s.ledgerSvc.Consume(c.Request.Context(), req.command())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) refundCredits(c *gin.Context) {
	var req mutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "invalid request body: "+err.Error())
		return
	}

	resp, err := s.ledgerSvc.Refund(c.Request.Context(), req.command())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type estimateRequest struct {
	TaskID        *string  `json:"task_id,omitempty"`
	PipelineSteps []string `json:"pipeline_steps"`
}

func (s *Server) estimateCost(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "invalid request body: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, s.estimator.EstimateCost(req.PipelineSteps))
}

func (s *Server) getBalance(c *gin.Context) {
	resp, err := s.ledgerSvc.GetBalance(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listTransactions(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		respondValidation(c, "tenant_id query parameter is required")
		return
	}

	limit, err := parseIntParam(c, "limit", 0)
	if err != nil {
		respondValidation(c, "limit must be an integer")
		return
	}
	offset, err := parseIntParam(c, "offset", 0)
	if err != nil {
		respondValidation(c, "offset must be an integer")
		return
	}

	page, err := s.ledgerSvc.ListTransactions(c.Request.Context(), tenantID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func parseIntParam(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
