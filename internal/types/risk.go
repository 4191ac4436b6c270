package types

import "github.com/moznion/go-optional"

// RiskProfile holds per-tenant limits. A None limit means no limit.
type RiskProfile struct {
	// DailyLossLimit is a positive amount; trading stops when today's realized PnL <= -DailyLossLimit.
	DailyLossLimit   optional.Option[float64] `json:"daily_loss_limit"`
	MaxTradeNotional optional.Option[float64] `json:"max_trade_notional"`
	MaxOpenPositions optional.Option[int]     `json:"max_open_positions"`
}
