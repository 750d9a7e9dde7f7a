package detector

import (
	"context"
	"errors"
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

	"github.com/smallbiznis/creditd/internal/anomaly/domain"
	anomalyrepo "github.com/smallbiznis/creditd/internal/anomaly/repository"
	"github.com/smallbiznis/creditd/internal/clock"
	ledgerdomain "github.com/smallbiznis/creditd/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/creditd/internal/ledger/repository"
)

type captureNotifier struct {
	notified []string
	err      error
}

func (n *captureNotifier) Notify(_ context.Context, anomaly *domain.UsageAnomaly) error {
	if n.err != nil {
		return n.err
	}
	n.notified = append(n.notified, anomaly.TenantID)
	return nil
}

func newTestDetector(t *testing.T) (*Detector, *gorm.DB, *captureNotifier, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ledgerdomain.CreditTransaction{}, &domain.UsageAnomaly{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	notifier := &captureNotifier{}
	fake := clock.NewFakeClock(time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC))

	d := NewDetector(DetectorParam{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     fake,
		Anomalies: anomalyrepo.NewRepository(),
		Txs:       ledgerrepo.NewTransactionRepository(),
		Notifier:  notifier,
	})
	return d, db, notifier, fake
}

var seedNode, _ = snowflake.NewNode(2)

func seedConsumption(t *testing.T, db *gorm.DB, tenant string, amount string, at time.Time) {
	t.Helper()
	node := seedNode
	require.NoError(t, db.Create(&ledgerdomain.CreditTransaction{
		ID:              node.Generate(),
		TenantID:        tenant,
		LedgerID:        node.Generate(),
		TransactionType: ledgerdomain.TransactionTypeConsume,
		Amount:          decimal.RequireFromString(amount),
		IdempotencyKey:  fmt.Sprintf("%s-%s-%d", tenant, amount, at.UnixNano()),
		CreatedAt:       at,
	}).Error)
}

func TestDetect_CreatesAnomalyAboveThreshold(t *testing.T) {
	d, db, notifier, _ := newTestDetector(t)

	// Default window is 09:00..10:00 given a 10:30 clock.
	inWindow := time.Date(2026, 3, 15, 9, 20, 0, 0, time.UTC)
	seedConsumption(t, db, "hot-tenant", "80", inWindow)
	seedConsumption(t, db, "hot-tenant", "30", inWindow.Add(10*time.Minute))
	seedConsumption(t, db, "calm-tenant", "5", inWindow)

	result, err := d.Detect(context.Background(), Params{
		Threshold:   decimal.RequireFromString("100"),
		AnomalyType: domain.TypeHourlyThreshold,
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC), result.PeriodStart)
	assert.Equal(t, time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC), result.PeriodEnd)
	assert.Equal(t, 2, result.TenantsChecked)
	require.Equal(t, 1, result.AnomaliesFound)

	anomaly := result.Anomalies[0]
	assert.Equal(t, "hot-tenant", anomaly.TenantID)
	assert.Equal(t, domain.StatusDetected, anomaly.Status)
	assert.Equal(t, domain.TypeHourlyThreshold, anomaly.AnomalyType)
	assert.True(t, anomaly.ActualValue.Equal(decimal.RequireFromString("110")))
	assert.True(t, anomaly.ThresholdValue.Equal(decimal.RequireFromString("100")))

	assert.Equal(t, []string{"hot-tenant"}, notifier.notified)

	var stored domain.UsageAnomaly
	require.NoError(t, db.First(&stored, "tenant_id = ?", "hot-tenant").Error)
	require.NotNil(t, stored.NotifiedAt)
}

func TestDetect_DedupPerTenantPeriod(t *testing.T) {
	d, db, _, _ := newTestDetector(t)

	inWindow := time.Date(2026, 3, 15, 9, 20, 0, 0, time.UTC)
	seedConsumption(t, db, "hot-tenant", "500", inWindow)

	params := Params{
		Threshold:   decimal.RequireFromString("100"),
		AnomalyType: domain.TypeHourlyThreshold,
	}
	first, err := d.Detect(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 1, first.AnomaliesFound)

	second, err := d.Detect(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 0, second.AnomaliesFound)

	var count int64
	require.NoError(t, db.Model(&domain.UsageAnomaly{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDetect_ZeroBreachesIsClean(t *testing.T) {
	d, _, notifier, _ := newTestDetector(t)

	result, err := d.Detect(context.Background(), Params{
		Threshold:   decimal.RequireFromString("100"),
		AnomalyType: domain.TypeHourlyThreshold,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.TenantsChecked)
	assert.Equal(t, 0, result.AnomaliesFound)
	assert.Empty(t, notifier.notified)
}

func TestDetect_FailedNotificationLeavesAnomalyUnnotified(t *testing.T) {
	d, db, notifier, _ := newTestDetector(t)
	notifier.err = errors.New("webhook down")

	inWindow := time.Date(2026, 3, 15, 9, 20, 0, 0, time.UTC)
	seedConsumption(t, db, "hot-tenant", "500", inWindow)

	result, err := d.Detect(context.Background(), Params{
		Threshold:   decimal.RequireFromString("100"),
		AnomalyType: domain.TypeHourlyThreshold,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.AnomaliesFound)
	assert.Equal(t, 0, result.NotifiedCount)

	var stored domain.UsageAnomaly
	require.NoError(t, db.First(&stored, "tenant_id = ?", "hot-tenant").Error)
	assert.Nil(t, stored.NotifiedAt)
}

func TestDetect_ExplicitWindow(t *testing.T) {
	d, db, _, _ := newTestDetector(t)

	dayStart := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	seedConsumption(t, db, "tenant-a", "300", dayStart.Add(3*time.Hour))
	seedConsumption(t, db, "tenant-a", "300", dayStart.Add(20*time.Hour))

	result, err := d.Detect(context.Background(), Params{
		PeriodStart: dayStart,
		PeriodEnd:   dayStart.Add(24 * time.Hour),
		Threshold:   decimal.RequireFromString("500"),
		AnomalyType: domain.TypeDailyThreshold,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.AnomaliesFound)
	assert.Equal(t, domain.TypeDailyThreshold, result.Anomalies[0].AnomalyType)
	assert.True(t, result.Anomalies[0].ActualValue.Equal(decimal.RequireFromString("600")))
}
