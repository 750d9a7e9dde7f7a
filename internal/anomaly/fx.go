package anomaly

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/creditd/internal/anomaly/detector"
	"github.com/smallbiznis/creditd/internal/anomaly/notify"
	"github.com/smallbiznis/creditd/internal/anomaly/repository"
	"github.com/smallbiznis/creditd/internal/config"
)

var Module = fx.Module("anomaly",
	repository.Module,
	fx.Provide(func(cfg config.Config, log *zap.Logger) notify.Notifier {
		notifiers := []notify.Notifier{notify.NewLogNotifier(log)}
		if cfg.Anomaly.NotificationWebhook != "" {
			notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Anomaly.NotificationWebhook))
		}
		return notify.NewComposite(notifiers...)
	}),
	fx.Provide(detector.NewDetector),
)
