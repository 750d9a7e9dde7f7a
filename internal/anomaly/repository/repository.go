// Package repository provides the gorm-backed anomaly persistence.
package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/smallbiznis/creditd/internal/anomaly/domain"
)

var Module = fx.Module("anomaly.repository",
	fx.Provide(NewRepository),
)

type repository struct{}

func NewRepository() domain.Repository {
	return &repository{}
}

func (r *repository) Create(ctx context.Context, db *gorm.DB, anomaly *domain.UsageAnomaly) error {
	return db.WithContext(ctx).Create(anomaly).Error
}

func (r *repository) ExistsForTenantPeriod(ctx context.Context, db *gorm.DB, tenantID string, start, end time.Time) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM usage_anomalies
		WHERE tenant_id = ?
		  AND period_start = ?
		  AND period_end = ?`,
		tenantID, start, end).
		Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) MarkNotified(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(`
		UPDATE usage_anomalies SET notified_at = ? WHERE id = ?`, at, id).Error
}

func (r *repository) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, resolvedBy *string, at time.Time) error {
	if status == domain.StatusResolved || status == domain.StatusFalsePositive {
		return db.WithContext(ctx).Exec(`
			UPDATE usage_anomalies
			SET status = ?, resolved_at = ?, resolved_by = ?
			WHERE id = ?`, status, at, resolvedBy, id).Error
	}
	return db.WithContext(ctx).Exec(`
		UPDATE usage_anomalies SET status = ? WHERE id = ?`, status, id).Error
}

func (r *repository) GetByStatus(ctx context.Context, db *gorm.DB, status domain.Status) ([]domain.UsageAnomaly, error) {
	var anomalies []domain.UsageAnomaly
	if err := db.WithContext(ctx).Raw(`
		SELECT * FROM usage_anomalies
		WHERE status = ?
		ORDER BY detected_at DESC`, status).
		Scan(&anomalies).Error; err != nil {
		return nil, err
	}
	return anomalies, nil
}

func (r *repository) GetByTenant(ctx context.Context, db *gorm.DB, tenantID string, limit, offset int) ([]domain.UsageAnomaly, int64, error) {
	var total int64
	if err := db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM usage_anomalies WHERE tenant_id = ?`, tenantID).
		Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	var anomalies []domain.UsageAnomaly
	if err := db.WithContext(ctx).Raw(`
		SELECT * FROM usage_anomalies
		WHERE tenant_id = ?
		ORDER BY detected_at DESC, id DESC
		LIMIT ? OFFSET ?`, tenantID, limit, offset).
		Scan(&anomalies).Error; err != nil {
		return nil, 0, err
	}
	return anomalies, total, nil
}
