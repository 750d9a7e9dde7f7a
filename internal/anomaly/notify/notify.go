// Package notify fans anomaly alerts out to the configured channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/creditd/internal/anomaly/domain"
)

// Notifier delivers one anomaly alert. A nil return marks the anomaly as
// notified.
type Notifier interface {
	Notify(ctx context.Context, anomaly *domain.UsageAnomaly) error
}

// LogNotifier writes the alert to the service log. It never fails.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("anomaly.notify")}
}

func (n *LogNotifier) Notify(_ context.Context, anomaly *domain.UsageAnomaly) error {
	n.log.Warn("usage anomaly detected",
		zap.String("tenant_id", anomaly.TenantID),
		zap.String("anomaly_type", string(anomaly.AnomalyType)),
		zap.String("threshold", anomaly.ThresholdValue.String()),
		zap.String("actual", anomaly.ActualValue.String()),
		zap.Time("period_start", anomaly.PeriodStart),
		zap.Time("period_end", anomaly.PeriodEnd),
	)
	return nil
}

// WebhookNotifier posts the alert as JSON to a configured endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	TenantID    string    `json:"tenant_id"`
	AnomalyType string    `json:"anomaly_type"`
	Threshold   string    `json:"threshold_value"`
	Actual      string    `json:"actual_value"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Description string    `json:"description"`
	DetectedAt  time.Time `json:"detected_at"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, anomaly *domain.UsageAnomaly) error {
	body, err := json.Marshal(webhookPayload{
		TenantID:    anomaly.TenantID,
		AnomalyType: string(anomaly.AnomalyType),
		Threshold:   anomaly.ThresholdValue.String(),
		Actual:      anomaly.ActualValue.String(),
		PeriodStart: anomaly.PeriodStart,
		PeriodEnd:   anomaly.PeriodEnd,
		Description: anomaly.Description,
		DetectedAt:  anomaly.DetectedAt,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Composite delivers through every channel; the alert counts as delivered
// only when all channels succeed.
type Composite struct {
	notifiers []Notifier
}

func NewComposite(notifiers ...Notifier) *Composite {
	return &Composite{notifiers: notifiers}
}

func (n *Composite) Notify(ctx context.Context, anomaly *domain.UsageAnomaly) error {
	for _, notifier := range n.notifiers {
		if err := notifier.Notify(ctx, anomaly); err != nil {
			return err
		}
	}
	return nil
}
