// Package notifier delivers tenant-facing messages and trade alerts.
package notifier

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/types"
)

// Notifier is the outbound notification port.
type Notifier interface {
	SendMessage(ctx context.Context, tenantID string, text string) error
	SendTradeAlert(ctx context.Context, alert types.TradeAlert) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) SendMessage(_ context.Context, tenantID string, text string) error {
	n.logger.Info("Notification", zap.String("tenant", tenantID), zap.String("text", text))

	return nil
}

func (n *LogNotifier) SendTradeAlert(_ context.Context, alert types.TradeAlert) error {
	fields := []zap.Field{
		zap.String("tenant", alert.TenantID),
		zap.String("config_id", alert.ConfigID),
		zap.String("symbol", alert.Symbol),
		zap.String("action", string(alert.Action)),
		zap.String("side", string(alert.Side)),
		zap.Float64("price", alert.Price),
		zap.Float64("amount", alert.Amount),
		zap.String("reason", alert.Reason),
		zap.Bool("dry_run", alert.DryRun),
	}

	if alert.PnL.IsSome() {
		fields = append(fields, zap.String("pnl", alert.PnL.Unwrap().StringFixed(2)))
	}

	n.logger.Info("Trade alert", fields...)

	return nil
}

// Multi fans a notification out to every notifier. One failing notifier does not
// stop delivery to the rest; their errors are joined.
type Multi []Notifier

func (m Multi) SendMessage(ctx context.Context, tenantID string, text string) error {
	var errs []error

	for _, n := range m {
		if err := n.SendMessage(ctx, tenantID, text); err != nil {
			errs = append(errs, err)
		}
	}

	return stderrors.Join(errs...)
}

func (m Multi) SendTradeAlert(ctx context.Context, alert types.TradeAlert) error {
	var errs []error

	for _, n := range m {
		if err := n.SendTradeAlert(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}

	return stderrors.Join(errs...)
}

// FormatTradeAlert renders an alert as one line of text.
func FormatTradeAlert(alert types.TradeAlert) string {
	mode := "LIVE"
	if alert.DryRun {
		mode = "DRY-RUN"
	}

	text := fmt.Sprintf("[%s] %s %s %s %.6g @ %.8g (%s/%s)",
		mode, alert.Action, alert.Side, alert.Symbol, alert.Amount, alert.Price, alert.TenantID, alert.ConfigID)

	if alert.PnL.IsSome() {
		text += " pnl=" + alert.PnL.Unwrap().StringFixed(2)
	}

	if alert.Reason != "" {
		text += " reason=" + alert.Reason
	}

	return text
}
