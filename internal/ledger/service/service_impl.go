// Package service implements the credit ledger command handlers.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/smallbiznis/creditd/internal/clock"
	"github.com/smallbiznis/creditd/internal/ledger/domain"
	"github.com/smallbiznis/creditd/internal/observability/metrics"
	"github.com/smallbiznis/creditd/pkg/db"
)

// maxRetries bounds the restart loop for idempotency-key insert races.
const maxRetries = 3

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Ledgers domain.LedgerRepository
	Txs     domain.TransactionRepository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	ledgers domain.LedgerRepository
	txs     domain.TransactionRepository
	metrics *metrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("ledger.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		ledgers: p.Ledgers,
		txs:     p.Txs,
		metrics: p.Metrics,
	}
}

// Consume debits credits from the tenant's ledger.
func (s *Service) Consume(ctx context.Context, cmd domain.MutationCommand) (*domain.TransactionResponse, error) {
	if err := validateMutation(cmd); err != nil {
		s.metrics.RecordLedgerOp("consume", "rejected")
		return nil, err
	}
	resp, err := s.apply(ctx, mutation{
		tenantID:        cmd.TenantID,
		transactionType: domain.TransactionTypeConsume,
		amount:          cmd.Amount,
		delta:           cmd.Amount.Neg(),
		idempotencyKey:  cmd.IdempotencyKey,
		referenceType:   cmd.ReferenceType,
		referenceID:     cmd.ReferenceID,
		metadata:        cmd.Metadata,
		failureCode:     domain.CodeConsumeCreditFailed,
	})
	s.record("consume", err)
	return resp, err
}

// Refund credits back a prior consumption. The link to the original
// transaction travels in reference fields and is not verified here.
func (s *Service) Refund(ctx context.Context, cmd domain.MutationCommand) (*domain.TransactionResponse, error) {
	if err := validateMutation(cmd); err != nil {
		s.metrics.RecordLedgerOp("refund", "rejected")
		return nil, err
	}
	resp, err := s.apply(ctx, mutation{
		tenantID:        cmd.TenantID,
		transactionType: domain.TransactionTypeRefund,
		amount:          cmd.Amount,
		delta:           cmd.Amount,
		idempotencyKey:  cmd.IdempotencyKey,
		referenceType:   cmd.ReferenceType,
		referenceID:     cmd.ReferenceID,
		metadata:        cmd.Metadata,
		failureCode:     domain.CodeRefundCreditFailed,
	})
	s.record("refund", err)
	return resp, err
}

// Allocate grants credits, creating the ledger on first use.
func (s *Service) Allocate(ctx context.Context, cmd domain.MutationCommand) (*domain.TransactionResponse, error) {
	if err := validateMutation(cmd); err != nil {
		s.metrics.RecordLedgerOp("allocate", "rejected")
		return nil, err
	}
	resp, err := s.apply(ctx, mutation{
		tenantID:        cmd.TenantID,
		transactionType: domain.TransactionTypeAllocate,
		amount:          cmd.Amount,
		delta:           cmd.Amount,
		idempotencyKey:  cmd.IdempotencyKey,
		referenceType:   cmd.ReferenceType,
		referenceID:     cmd.ReferenceID,
		metadata:        cmd.Metadata,
		createLedger:    true,
		failureCode:     domain.CodeAllocateCreditFailed,
	})
	s.record("allocate", err)
	return resp, err
}

// Adjust applies a signed operator correction. Not exposed over HTTP.
func (s *Service) Adjust(ctx context.Context, cmd domain.AdjustCommand) (*domain.TransactionResponse, error) {
	if strings.TrimSpace(cmd.TenantID) == "" {
		return nil, domain.NewValidationError("tenant_id is required")
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return nil, domain.NewValidationError("idempotency_key is required")
	}
	if cmd.SignedAmount.IsZero() {
		return nil, domain.NewValidationError("amount must be non-zero")
	}
	resp, err := s.apply(ctx, mutation{
		tenantID:        cmd.TenantID,
		transactionType: domain.TransactionTypeAdjust,
		amount:          cmd.SignedAmount,
		delta:           cmd.SignedAmount,
		idempotencyKey:  cmd.IdempotencyKey,
		referenceType:   cmd.ReferenceType,
		referenceID:     cmd.ReferenceID,
		metadata:        cmd.Metadata,
		failureCode:     domain.CodeAdjustCreditFailed,
	})
	s.record("adjust", err)
	return resp, err
}

// mutation is the normalized form of a ledger command. amount is what gets
// stored on the transaction row; delta is the signed balance movement.
type mutation struct {
	tenantID        string
	transactionType domain.TransactionType
	amount          decimal.Decimal
	delta           decimal.Decimal
	idempotencyKey  string
	referenceType   *string
	referenceID     *string
	metadata        map[string]any
	createLedger    bool
	failureCode     string
}

// apply runs the command protocol: idempotency pre-check, locked ledger read,
// balance math, transaction insert, balance update. A duplicate-key error on
// the insert means another request with the same key won the race; the loop
// restarts and the pre-check returns the winner's row.
func (s *Service) apply(ctx context.Context, m mutation) (*domain.TransactionResponse, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, retry, err := s.applyOnce(ctx, m)
		if err == nil {
			return resp, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		s.log.Warn("idempotency key race, retrying",
			zap.String("tenant_id", m.tenantID),
			zap.String("idempotency_key", m.idempotencyKey),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, domain.WrapFailure(m.failureCode, "transaction conflict not resolved", lastErr)
}

func (s *Service) applyOnce(ctx context.Context, m mutation) (*domain.TransactionResponse, bool, error) {
	var resp *domain.TransactionResponse

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.txs.GetByIdempotencyKey(ctx, tx, m.idempotencyKey)
		if err != nil {
			return domain.WrapFailure(m.failureCode, "failed to check idempotency key", err)
		}
		if existing != nil {
			resp = toResponse(existing)
			return nil
		}

		ledger, err := s.ledgers.GetByTenant(ctx, tx, m.tenantID, true)
		if err != nil {
			return domain.WrapFailure(m.failureCode, "failed to load ledger", err)
		}
		if ledger == nil {
			if !m.createLedger {
				return domain.NewLedgerNotFound(m.tenantID)
			}
			ledger = &domain.CreditLedger{
				ID:        s.genID.Generate(),
				TenantID:  m.tenantID,
				Balance:   decimal.Zero,
				CreatedAt: s.clock.Now(),
				UpdatedAt: s.clock.Now(),
			}
			if err := s.ledgers.Create(ctx, tx, ledger); err != nil {
				if db.IsDuplicateKeyErr(err) {
					// Concurrent first allocation created the row.
					ledger, err = s.ledgers.GetByTenant(ctx, tx, m.tenantID, true)
					if err != nil || ledger == nil {
						return domain.WrapFailure(m.failureCode, "failed to re-read ledger after create race", err)
					}
				} else {
					return domain.WrapFailure(m.failureCode, "failed to create ledger", err)
				}
			}
		}

		balanceBefore := ledger.Balance
		balanceAfter := balanceBefore.Add(m.delta)
		if balanceAfter.IsNegative() {
			return domain.NewInsufficientCredit(balanceBefore, m.delta.Neg())
		}

		transaction := &domain.CreditTransaction{
			ID:              s.genID.Generate(),
			TenantID:        m.tenantID,
			LedgerID:        ledger.ID,
			TransactionType: m.transactionType,
			Amount:          m.amount,
			BalanceBefore:   balanceBefore,
			BalanceAfter:    balanceAfter,
			ReferenceType:   m.referenceType,
			ReferenceID:     m.referenceID,
			IdempotencyKey:  m.idempotencyKey,
			Metadata:        datatypes.JSONMap(m.metadata),
			CreatedAt:       s.clock.Now(),
		}
		if err := s.txs.Create(ctx, tx, transaction); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errRetry{cause: err}
			}
			return domain.WrapFailure(m.failureCode, "failed to write transaction", err)
		}

		if err := s.ledgers.UpdateBalance(ctx, tx, ledger.ID, balanceAfter); err != nil {
			return domain.WrapFailure(m.failureCode, "failed to update balance", err)
		}

		resp = toResponse(transaction)
		return nil
	})
	if err != nil {
		var retryErr errRetry
		if errors.As(err, &retryErr) {
			return nil, true, retryErr.cause
		}
		return nil, false, err
	}
	return resp, false, nil
}

// errRetry aborts the surrounding transaction so the command loop can start
// over from the idempotency pre-check.
type errRetry struct{ cause error }

func (e errRetry) Error() string { return "idempotency key race: " + e.cause.Error() }

func validateMutation(cmd domain.MutationCommand) error {
	if strings.TrimSpace(cmd.TenantID) == "" {
		return domain.NewValidationError("tenant_id is required")
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return domain.NewValidationError("idempotency_key is required")
	}
	if !cmd.Amount.IsPositive() {
		return domain.NewValidationError("amount must be greater than zero")
	}
	return nil
}

func toResponse(t *domain.CreditTransaction) *domain.TransactionResponse {
	return &domain.TransactionResponse{
		TransactionID:   t.ID,
		TenantID:        t.TenantID,
		TransactionType: t.TransactionType,
		Amount:          t.Amount,
		BalanceBefore:   t.BalanceBefore,
		BalanceAfter:    t.BalanceAfter,
		ReferenceType:   t.ReferenceType,
		ReferenceID:     t.ReferenceID,
		IdempotencyKey:  t.IdempotencyKey,
		CreatedAt:       t.CreatedAt,
	}
}

func (s *Service) record(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		if derr, ok := err.(*domain.Error); ok {
			switch derr.Code {
			case domain.CodeInsufficientCredit:
				outcome = "insufficient"
			case domain.CodeValidationError:
				outcome = "rejected"
			case domain.CodeLedgerNotFound:
				outcome = "not_found"
			}
		}
	}
	s.metrics.RecordLedgerOp(operation, outcome)
}
