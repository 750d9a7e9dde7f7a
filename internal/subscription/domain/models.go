// Package domain contains the subscription entity consumed by the allocator.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Status is the subscription lifecycle state.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// Subscription assigns a plan to a tenant. The monthly allocator reads
// ACTIVE rows only.
type Subscription struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	TenantID       string          `gorm:"type:text;not null;index"`
	Status         Status          `gorm:"type:text;not null;index"`
	PlanName       string          `gorm:"type:text;not null"`
	MonthlyCredits decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	StartDate      time.Time       `gorm:"not null"`
	EndDate        *time.Time
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// Repository reads subscriptions for the allocation run.
type Repository interface {
	ListActive(ctx context.Context, db *gorm.DB) ([]Subscription, error)
	GetByTenant(ctx context.Context, db *gorm.DB, tenantID string) ([]Subscription, error)
}
