// Package notifier delivers triggered alerts to their owners.
package notifier

import (
	"context"
	"log/slog"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"
)

// LogNotifier writes one structured line per triggered alert.
type LogNotifier struct {
	logger *slog.Logger
}

var _ port.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, alert model.Alert) error {
	n.logger.InfoContext(ctx, "price alert",
		"alert_id", alert.ID,
		"portfolio", alert.PortfolioID,
		"symbol", alert.Symbol,
		"direction", alert.Direction,
		"target", alert.TargetPrice.String(),
	)
	return nil
}
