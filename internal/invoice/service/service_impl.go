// Package service implements invoice creation and proforma rendering.
package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/creditd/internal/clock"
	"github.com/smallbiznis/creditd/internal/invoice/domain"
	"github.com/smallbiznis/creditd/internal/invoice/render"
	"github.com/smallbiznis/creditd/pkg/db"
)

// numberRetries bounds the invoice-number collision loop. The number is read
// with a MAX scan outside any serialisable boundary, so concurrent creators
// can collide on the unique constraint.
const numberRetries = 3

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Invoices domain.Repository
	Renderer render.Renderer
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	invoices domain.Repository
	renderer render.Renderer
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		invoices: p.Invoices,
		renderer: p.Renderer,
	}
}

func (s *Service) CreateInvoice(ctx context.Context, cmd domain.CreateInvoiceCommand) (*domain.CreateInvoiceResult, error) {
	if strings.TrimSpace(cmd.TenantID) == "" {
		return nil, domain.WrapFailure(domain.CodeCreateInvoiceFailed, "tenant_id is required", nil)
	}
	if !cmd.PeriodEnd.After(cmd.PeriodStart) {
		return nil, domain.WrapFailure(domain.CodeCreateInvoiceFailed, "billing period end must be after start", nil)
	}
	currency := cmd.Currency
	if currency == "" {
		currency = "USD"
	}

	var lastErr error
	for attempt := 0; attempt < numberRetries; attempt++ {
		result, err := s.createOnce(ctx, cmd, currency)
		if err == nil {
			return result, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			if _, ok := err.(*domain.Error); ok {
				return nil, err
			}
			return nil, domain.WrapFailure(domain.CodeCreateInvoiceFailed, "failed to create invoice", err)
		}
		lastErr = err
		s.log.Warn("invoice number collision, retrying",
			zap.String("tenant_id", cmd.TenantID),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, domain.WrapFailure(domain.CodeCreateInvoiceFailed, "invoice number collision not resolved", lastErr)
}

func (s *Service) createOnce(ctx context.Context, cmd domain.CreateInvoiceCommand, currency string) (*domain.CreateInvoiceResult, error) {
	var result *domain.CreateInvoiceResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.invoices.ExistsForPeriod(ctx, tx, cmd.TenantID, cmd.PeriodStart, cmd.PeriodEnd)
		if err != nil {
			return domain.WrapFailure(domain.CodeCreateInvoiceFailed, "failed to check billing period", err)
		}
		if exists {
			// Idempotency lane, not an error.
			result = &domain.CreateInvoiceResult{Created: false}
			return nil
		}

		number, err := s.invoices.NextInvoiceNumber(ctx, tx, s.clock.Now().Year())
		if err != nil {
			return domain.WrapFailure(domain.CodeCreateInvoiceFailed, "failed to generate invoice number", err)
		}

		invoiceID := s.genID.Generate()
		total := decimal.Zero
		lines := make([]domain.InvoiceLine, 0, len(cmd.Lines))
		for _, item := range cmd.Lines {
			lineTotal := item.Quantity.Mul(item.UnitPrice)
			total = total.Add(lineTotal)
			lines = append(lines, domain.InvoiceLine{
				ID:          s.genID.Generate(),
				InvoiceID:   invoiceID,
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				TotalPrice:  lineTotal,
				CreatedAt:   s.clock.Now(),
			})
		}

		invoice := &domain.Invoice{
			ID:                 invoiceID,
			TenantID:           cmd.TenantID,
			InvoiceNumber:      number,
			Status:             domain.StatusDraft,
			TotalAmount:        total,
			Currency:           currency,
			BillingPeriodStart: cmd.PeriodStart,
			BillingPeriodEnd:   cmd.PeriodEnd,
			CreatedAt:          s.clock.Now(),
			UpdatedAt:          s.clock.Now(),
			Lines:              lines,
		}
		if err := s.invoices.Create(ctx, tx, invoice); err != nil {
			return err
		}

		result = &domain.CreateInvoiceResult{Created: true, Invoice: invoice}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) GetInvoice(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.invoices.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, domain.WrapFailure(domain.CodeGenerateProformaFailed, "failed to load invoice", err)
	}
	if invoice == nil {
		return nil, domain.NewInvoiceNotFound(id.String())
	}
	return invoice, nil
}

func (s *Service) ListInvoices(ctx context.Context, tenantID string, status domain.Status, limit, offset int) ([]domain.Invoice, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.invoices.GetByTenant(ctx, s.db, tenantID, status, limit, offset)
}

func (s *Service) GenerateProforma(ctx context.Context, id snowflake.ID) (*domain.ProformaResponse, error) {
	pdf, invoice, err := s.renderDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.ProformaResponse{
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		TenantID:      invoice.TenantID,
		Status:        invoice.Status,
		TotalAmount:   invoice.TotalAmount,
		Currency:      invoice.Currency,
		PeriodStart:   invoice.BillingPeriodStart,
		PeriodEnd:     invoice.BillingPeriodEnd,
		PDFBase64:     base64.StdEncoding.EncodeToString(pdf),
	}, nil
}

func (s *Service) GenerateProformaPDF(ctx context.Context, id snowflake.ID) ([]byte, string, error) {
	pdf, invoice, err := s.renderDraft(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return pdf, fmt.Sprintf("proforma_%s.pdf", invoice.InvoiceNumber), nil
}

func (s *Service) renderDraft(ctx context.Context, id snowflake.ID) ([]byte, *domain.Invoice, error) {
	invoice, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if invoice.Status != domain.StatusDraft {
		return nil, nil, domain.NewInvalidInvoiceStatus(invoice.Status)
	}

	pdf, err := s.renderer.RenderProforma(invoice)
	if err != nil {
		return nil, nil, domain.WrapFailure(domain.CodeGenerateProformaFailed, "failed to render proforma", err)
	}
	return pdf, invoice, nil
}
