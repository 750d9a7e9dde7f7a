package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/creditd/internal/clock"
	"github.com/smallbiznis/creditd/internal/invoice/domain"
	"github.com/smallbiznis/creditd/internal/invoice/repository"
)

type stubRenderer struct {
	err error
}

func (r *stubRenderer) RenderProforma(invoice *domain.Invoice) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.7 stub " + invoice.InvoiceNumber), nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Invoice{}, &domain.InvoiceLine{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)),
		Invoices: repository.NewRepository(),
		Renderer: &stubRenderer{},
	})
	return svc.(*Service), db
}

func period() (time.Time, time.Time) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC)
	return start, end
}

func TestCreateInvoice_DraftWithLines(t *testing.T) {
	svc, db := newTestService(t)
	start, end := period()

	result, err := svc.CreateInvoice(context.Background(), domain.CreateInvoiceCommand{
		TenantID:    "tenant-a",
		PeriodStart: start,
		PeriodEnd:   end,
		Lines: []domain.LineItem{{
			Description: "Monthly credit allocation - starter",
			Quantity:    decimal.RequireFromString("10000"),
			UnitPrice:   decimal.RequireFromString("0.01"),
		}},
	})
	require.NoError(t, err)
	require.True(t, result.Created)
	assert.Equal(t, domain.StatusDraft, result.Invoice.Status)
	assert.Equal(t, "INV-2026-000001", result.Invoice.InvoiceNumber)
	assert.Equal(t, "USD", result.Invoice.Currency)
	assert.True(t, result.Invoice.TotalAmount.Equal(decimal.RequireFromString("100")))

	var lines []domain.InvoiceLine
	require.NoError(t, db.Find(&lines).Error)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].TotalPrice.Equal(decimal.RequireFromString("100")))
}

func TestCreateInvoice_ExistingPeriodIsSuccessLane(t *testing.T) {
	svc, _ := newTestService(t)
	start, end := period()
	ctx := context.Background()

	cmd := domain.CreateInvoiceCommand{
		TenantID:    "tenant-a",
		PeriodStart: start,
		PeriodEnd:   end,
		Lines: []domain.LineItem{{
			Description: "credits",
			Quantity:    decimal.RequireFromString("100"),
			UnitPrice:   decimal.RequireFromString("1"),
		}},
	}
	first, err := svc.CreateInvoice(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := svc.CreateInvoice(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Nil(t, second.Invoice)
}

func TestCreateInvoice_SequentialNumbers(t *testing.T) {
	svc, _ := newTestService(t)
	start, end := period()
	ctx := context.Background()

	for i, tenant := range []string{"tenant-a", "tenant-b", "tenant-c"} {
		result, err := svc.CreateInvoice(ctx, domain.CreateInvoiceCommand{
			TenantID:    tenant,
			PeriodStart: start,
			PeriodEnd:   end,
		})
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("INV-2026-%06d", i+1), result.Invoice.InvoiceNumber)
	}
}

func TestGenerateProforma_DraftOnly(t *testing.T) {
	svc, db := newTestService(t)
	start, end := period()
	ctx := context.Background()

	result, err := svc.CreateInvoice(ctx, domain.CreateInvoiceCommand{
		TenantID:    "tenant-a",
		PeriodStart: start,
		PeriodEnd:   end,
		Lines: []domain.LineItem{{
			Description: "credits",
			Quantity:    decimal.RequireFromString("5000"),
			UnitPrice:   decimal.RequireFromString("0.01"),
		}},
	})
	require.NoError(t, err)

	proforma, err := svc.GenerateProforma(ctx, result.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Invoice.InvoiceNumber, proforma.InvoiceNumber)

	raw, err := base64.StdEncoding.DecodeString(proforma.PDFBase64)
	require.NoError(t, err)
	assert.True(t, len(raw) > 4 && string(raw[:5]) == "%PDF-")

	pdf, filename, err := svc.GenerateProformaPDF(ctx, result.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "proforma_"+result.Invoice.InvoiceNumber+".pdf", filename)
	assert.Equal(t, "%PDF-", string(pdf[:5]))

	// Issued invoices have no proforma.
	require.NoError(t, db.Model(&domain.Invoice{}).
		Where("id = ?", result.Invoice.ID).
		Update("status", domain.StatusIssued).Error)

	_, err = svc.GenerateProforma(ctx, result.Invoice.ID)
	require.Error(t, err)
	derr, ok := err.(*domain.Error)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvalidInvoiceStatus, derr.Code)
}

func TestGenerateProforma_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	node, _ := snowflake.NewNode(2)
	_, err := svc.GenerateProforma(context.Background(), node.Generate())
	require.Error(t, err)
	derr, ok := err.(*domain.Error)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvoiceNotFound, derr.Code)
}
