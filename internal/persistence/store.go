// Package persistence defines the storage port used by workers and its implementations.
package persistence

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-fleet/internal/types"
)

// Store is the persistence port. Rows are last-write-wins; implementations must be
// safe for concurrent use by many workers.
type Store interface {
	// GetStrategyConfig returns ErrCodeDataNotFound when the config does not exist.
	GetStrategyConfig(ctx context.Context, tenantID, configID string) (types.StrategyConfig, error)
	SaveStrategyConfig(ctx context.Context, tenantID, configID string, cfg types.StrategyConfig) error

	// GetRiskProfile returns an empty (permissive) profile when none is stored.
	GetRiskProfile(ctx context.Context, tenantID string) (types.RiskProfile, error)
	SaveRiskProfile(ctx context.Context, tenantID string, profile types.RiskProfile) error

	AppendTrade(ctx context.Context, record types.TradeRecord) error
	ListTrades(ctx context.Context, key types.WorkerKey) ([]types.TradeRecord, error)
	// DailyRealizedPnL sums the realized PnL of the tenant's trades on the UTC day containing day.
	DailyRealizedPnL(ctx context.Context, tenantID string, day time.Time) (decimal.Decimal, error)
	// CountOpenPositions counts the tenant's shadows with a position start time.
	CountOpenPositions(ctx context.Context, tenantID string) (int, error)

	// GetPositionShadow returns an empty shadow when none is stored.
	GetPositionShadow(ctx context.Context, key types.WorkerKey) (types.PositionShadow, error)
	SavePositionShadow(ctx context.Context, key types.WorkerKey, shadow types.PositionShadow) error

	RegisterOpenOrder(ctx context.Context, key types.WorkerKey, symbol, orderID string) error
	RemoveOpenOrder(ctx context.Context, key types.WorkerKey, orderID string) error
	// ListOwnedOrderIDs returns the ids of orders placed by any worker of the tenant on symbol.
	ListOwnedOrderIDs(ctx context.Context, tenantID, symbol string) ([]string, error)

	// HasTradingEntitlement returns true for tenants without an entitlement record.
	HasTradingEntitlement(ctx context.Context, tenantID string) (bool, error)
	SetTradingEntitlement(ctx context.Context, tenantID string, active bool) error

	// GetExchangeCredentials returns ErrCodeCredentialsMissing when nothing is stored.
	GetExchangeCredentials(ctx context.Context, tenantID, exchange string) (types.Credentials, error)
	SaveExchangeCredentials(ctx context.Context, tenantID, exchange string, creds types.Credentials) error

	Close() error
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)

	return start, start.Add(24 * time.Hour)
}
