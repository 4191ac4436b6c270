package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

type TradeAction string

const (
	TradeActionOpen  TradeAction = "OPEN"
	TradeActionClose TradeAction = "CLOSE"
)

const (
	ExitReasonSignal      = "signal_reversal"
	ExitReasonStrategy    = "strategy_exit"
	ExitReasonEntitlement = "entitlement_lapsed"
	// ExitReasonExternal marks a position closed outside the worker, e.g. by a
	// take-profit or stop-loss trigger resting on the exchange.
	ExitReasonExternal = "external_close"
)

// TradeRecord is one entry of the persisted trade log.
type TradeRecord struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	ConfigID    string          `json:"config_id"`
	Symbol      string          `json:"symbol"`
	Side        PositionSide    `json:"side"`
	Action      TradeAction     `json:"action"`
	OrderID     string          `json:"order_id"`
	Price       float64         `json:"price"`
	Amount      float64         `json:"amount"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Reason      string          `json:"reason"`
	DryRun      bool            `json:"dry_run"`
	At          time.Time       `json:"at"`
}

// TradeAlert is the structured notification sent for entries and exits.
type TradeAlert struct {
	TenantID string                           `json:"tenant_id"`
	ConfigID string                           `json:"config_id"`
	Symbol   string                           `json:"symbol"`
	Action   TradeAction                      `json:"action"`
	Side     PositionSide                     `json:"side"`
	Price    float64                          `json:"price"`
	Amount   float64                          `json:"amount"`
	PnL      optional.Option[decimal.Decimal] `json:"pnl"`
	Reason   string                           `json:"reason"`
	DryRun   bool                             `json:"dry_run"`
}
