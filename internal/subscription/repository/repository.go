// Package repository provides the gorm-backed subscription reads.
package repository

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/smallbiznis/creditd/internal/subscription/domain"
)

var Module = fx.Module("subscription.repository",
	fx.Provide(NewRepository),
)

type repository struct{}

func NewRepository() domain.Repository {
	return &repository{}
}

func (r *repository) ListActive(ctx context.Context, db *gorm.DB) ([]domain.Subscription, error) {
	var subscriptions []domain.Subscription
	if err := db.WithContext(ctx).Raw(`
		SELECT id, tenant_id, status, plan_name, monthly_credits,
		       start_date, end_date, created_at, updated_at
		FROM subscriptions
		WHERE status = ?
		ORDER BY tenant_id`, domain.StatusActive).
		Scan(&subscriptions).Error; err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repository) GetByTenant(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.Subscription, error) {
	var subscriptions []domain.Subscription
	if err := db.WithContext(ctx).Raw(`
		SELECT id, tenant_id, status, plan_name, monthly_credits,
		       start_date, end_date, created_at, updated_at
		FROM subscriptions
		WHERE tenant_id = ?
		ORDER BY created_at DESC`, tenantID).
		Scan(&subscriptions).Error; err != nil {
		return nil, err
	}
	return subscriptions, nil
}
