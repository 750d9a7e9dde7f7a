package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/creditd/internal/ledger/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// GetBalance returns the stored balance without touching the audit log.
func (s *Service) GetBalance(ctx context.Context, tenantID string) (*domain.BalanceResponse, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, domain.NewValidationError("tenant_id is required")
	}

	ledger, err := s.ledgers.GetByTenant(ctx, s.db, tenantID, false)
	if err != nil {
		return nil, domain.WrapFailure(domain.CodeQueryFailed, "failed to load ledger", err)
	}
	if ledger == nil {
		return nil, domain.NewLedgerNotFound(tenantID)
	}

	return &domain.BalanceResponse{
		TenantID:    ledger.TenantID,
		Balance:     ledger.Balance,
		LastUpdated: ledger.UpdatedAt,
	}, nil
}

// ListTransactions pages through the tenant's audit log, newest first. An
// unknown tenant yields an empty page rather than an error.
func (s *Service) ListTransactions(ctx context.Context, tenantID string, limit, offset int) (*domain.TransactionPage, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, domain.NewValidationError("tenant_id is required")
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	transactions, total, err := s.txs.GetByTenant(ctx, s.db, tenantID, limit, offset)
	if err != nil {
		return nil, domain.WrapFailure(domain.CodeQueryFailed, "failed to list transactions", err)
	}

	items := make([]domain.TransactionResponse, 0, len(transactions))
	for i := range transactions {
		items = append(items, *toResponse(&transactions[i]))
	}

	return &domain.TransactionPage{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}
