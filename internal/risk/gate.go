// Package risk decides whether a worker may open a new position.
package risk

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/persistence"
)

type DenyReason string

const (
	ReasonNone             DenyReason = ""
	ReasonDailyLossLimit   DenyReason = "daily_loss_limit"
	ReasonMaxTradeNotional DenyReason = "max_trade_notional"
	ReasonMaxOpenPositions DenyReason = "max_open_positions"
	ReasonCheckUnavailable DenyReason = "risk_check_unavailable"
)

// Decision is a business outcome, never an error.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision {
	return Decision{Allowed: true, Reason: ReasonNone}
}

func deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Gate runs the ordered pre-trade checks against the tenant's risk profile.
type Gate struct {
	store persistence.Store
	log   *logger.Logger
	// failOpen allows trading when a limit lookup itself fails.
	failOpen bool
	now      func() time.Time
}

type Option func(*Gate)

// WithFailOpen switches the policy applied when the store cannot be read.
func WithFailOpen(failOpen bool) Option {
	return func(g *Gate) {
		g.failOpen = failOpen
	}
}

// WithClock overrides the time source used for "today".
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// NewGate creates a fail-closed gate unless WithFailOpen(true) is given.
func NewGate(store persistence.Store, log *logger.Logger, opts ...Option) *Gate {
	g := &Gate{
		store:    store,
		log:      log,
		failOpen: false,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// CheckCanOpen evaluates, in order: daily realized loss, single trade notional,
// and concurrently open positions. Absent limits never deny.
func (g *Gate) CheckCanOpen(ctx context.Context, notional float64, tenantID string) Decision {
	profile, err := g.store.GetRiskProfile(ctx, tenantID)
	if err != nil {
		return g.onLookupError("risk profile", tenantID, err)
	}

	if profile.DailyLossLimit.IsSome() {
		pnl, err := g.store.DailyRealizedPnL(ctx, tenantID, g.now())
		if err != nil {
			return g.onLookupError("daily realized pnl", tenantID, err)
		}

		limit := profile.DailyLossLimit.Unwrap()
		if pnl.InexactFloat64() <= -limit {
			g.log.Info("Risk check denied",
				zap.String("tenant", tenantID),
				zap.String("reason", string(ReasonDailyLossLimit)),
				zap.String("daily_pnl", pnl.String()),
				zap.Float64("limit", limit),
			)

			return deny(ReasonDailyLossLimit)
		}
	}

	if profile.MaxTradeNotional.IsSome() && notional > profile.MaxTradeNotional.Unwrap() {
		g.log.Info("Risk check denied",
			zap.String("tenant", tenantID),
			zap.String("reason", string(ReasonMaxTradeNotional)),
			zap.Float64("notional", notional),
			zap.Float64("limit", profile.MaxTradeNotional.Unwrap()),
		)

		return deny(ReasonMaxTradeNotional)
	}

	if profile.MaxOpenPositions.IsSome() {
		open, err := g.store.CountOpenPositions(ctx, tenantID)
		if err != nil {
			return g.onLookupError("open positions", tenantID, err)
		}

		if open >= profile.MaxOpenPositions.Unwrap() {
			g.log.Info("Risk check denied",
				zap.String("tenant", tenantID),
				zap.String("reason", string(ReasonMaxOpenPositions)),
				zap.Int("open_positions", open),
				zap.Int("limit", profile.MaxOpenPositions.Unwrap()),
			)

			return deny(ReasonMaxOpenPositions)
		}
	}

	return allow()
}

func (g *Gate) onLookupError(what, tenantID string, err error) Decision {
	g.log.Warn("Risk check lookup failed",
		zap.String("tenant", tenantID),
		zap.String("lookup", what),
		zap.Bool("fail_open", g.failOpen),
		zap.Error(err),
	)

	if g.failOpen {
		return allow()
	}

	return deny(ReasonCheckUnavailable)
}
