// Package repository provides the gorm-backed invoice persistence.
package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/smallbiznis/creditd/internal/invoice/domain"
)

var Module = fx.Module("invoice.repository",
	fx.Provide(NewRepository),
)

type repository struct{}

func NewRepository() domain.Repository {
	return &repository{}
}

func (r *repository) Create(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) GetByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoices []domain.Invoice
	if err := db.WithContext(ctx).Preload("Lines").
		Where("id = ?", id).Find(&invoices).Error; err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}
	return &invoices[0], nil
}

func (r *repository) GetByTenant(ctx context.Context, db *gorm.DB, tenantID string, status domain.Status, limit, offset int) ([]domain.Invoice, int64, error) {
	scope := db.WithContext(ctx).Model(&domain.Invoice{}).Where("tenant_id = ?", tenantID)
	if status != "" {
		scope = scope.Where("status = ?", status)
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []domain.Invoice
	if err := scope.Preload("Lines").
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *repository) GetByInvoiceNumber(ctx context.Context, db *gorm.DB, number string) (*domain.Invoice, error) {
	var invoices []domain.Invoice
	if err := db.WithContext(ctx).Preload("Lines").
		Where("invoice_number = ?", number).Find(&invoices).Error; err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}
	return &invoices[0], nil
}

func (r *repository) ExistsForPeriod(ctx context.Context, db *gorm.DB, tenantID string, start, end time.Time) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM invoices
		WHERE tenant_id = ?
		  AND billing_period_start = ?
		  AND billing_period_end = ?`,
		tenantID, start, end).
		Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) NextInvoiceNumber(ctx context.Context, db *gorm.DB, year int) (string, error) {
	prefix := fmt.Sprintf("INV-%d-", year)

	var max *string
	if err := db.WithContext(ctx).Raw(`
		SELECT MAX(invoice_number) FROM invoices
		WHERE invoice_number LIKE ?`, prefix+"%").
		Scan(&max).Error; err != nil {
		return "", err
	}

	next := 1
	if max != nil {
		suffix := strings.TrimPrefix(*max, prefix)
		n, err := strconv.Atoi(suffix)
		if err != nil {
			return "", fmt.Errorf("malformed invoice number %q: %w", *max, err)
		}
		next = n + 1
	}
	return fmt.Sprintf("%s%06d", prefix, next), nil
}
