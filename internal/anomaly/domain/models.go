// Package domain contains the usage anomaly entities and contracts.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Type classifies the detection rule that fired.
type Type string

const (
	TypeHourlyThreshold Type = "HOURLY_THRESHOLD"
	TypeDailyThreshold  Type = "DAILY_THRESHOLD"
	TypeSpike           Type = "SPIKE"
	TypePattern         Type = "PATTERN"
)

// Status is the triage state. Status is the only mutable field after
// creation.
type Status string

const (
	StatusDetected      Status = "DETECTED"
	StatusAcknowledged  Status = "ACKNOWLEDGED"
	StatusResolved      Status = "RESOLVED"
	StatusFalsePositive Status = "FALSE_POSITIVE"
)

// UsageAnomaly records one threshold breach. At most one anomaly exists per
// (tenant_id, period_start, period_end); the detector's pre-check enforces
// this, not the schema.
type UsageAnomaly struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	TenantID       string            `gorm:"type:text;not null;index:ix_usage_anomalies_tenant_detected,priority:1"`
	AnomalyType    Type              `gorm:"type:text;not null"`
	Status         Status            `gorm:"type:text;not null;index"`
	ThresholdValue decimal.Decimal   `gorm:"type:decimal(18,6);not null"`
	ActualValue    decimal.Decimal   `gorm:"type:decimal(18,6);not null"`
	PeriodStart    time.Time         `gorm:"not null"`
	PeriodEnd      time.Time         `gorm:"not null"`
	Description    string            `gorm:"type:text;not null"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	DetectedAt     time.Time         `gorm:"not null;index:ix_usage_anomalies_tenant_detected,priority:2"`
	NotifiedAt     *time.Time
	ResolvedAt     *time.Time
	ResolvedBy     *string `gorm:"type:text"`
}

// TableName sets the database table name.
func (UsageAnomaly) TableName() string { return "usage_anomalies" }

// Repository persists anomalies. Only Status and the resolution fields are
// ever updated after insert.
type Repository interface {
	Create(ctx context.Context, db *gorm.DB, anomaly *UsageAnomaly) error
	ExistsForTenantPeriod(ctx context.Context, db *gorm.DB, tenantID string, start, end time.Time) (bool, error)
	MarkNotified(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, resolvedBy *string, at time.Time) error
	GetByStatus(ctx context.Context, db *gorm.DB, status Status) ([]UsageAnomaly, error)
	GetByTenant(ctx context.Context, db *gorm.DB, tenantID string, limit, offset int) ([]UsageAnomaly, int64, error)
}
