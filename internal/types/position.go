package types

import (
	"time"

	"github.com/moznion/go-optional"
)

type PositionSide string

const (
	PositionSideNone  PositionSide = "NONE"
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// EntrySide returns the order side that opens a position of this side.
func (p PositionSide) EntrySide() OrderSide {
	if p == PositionSideShort {
		return OrderSideSell
	}

	return OrderSideBuy
}

// Direction is +1 for long, -1 for short and 0 otherwise.
func (p PositionSide) Direction() float64 {
	switch p {
	case PositionSideLong:
		return 1
	case PositionSideShort:
		return -1
	default:
		return 0
	}
}

// Position is the exchange-side truth for one symbol.
type Position struct {
	Symbol     string                     `json:"symbol"`
	Side       PositionSide               `json:"side"`
	Size       float64                    `json:"size"`
	EntryPrice float64                    `json:"entry_price"`
	OpenedAt   optional.Option[time.Time] `json:"opened_at"`
}

// IsFlat reports whether there is no open position.
func (p Position) IsFlat() bool {
	return p.Side == PositionSideNone || p.Size == 0
}

// UnrealizedPnL returns the mark-to-market PnL at price.
func (p Position) UnrealizedPnL(price float64) float64 {
	if p.IsFlat() {
		return 0
	}

	return (price - p.EntryPrice) * p.Size * p.Side.Direction()
}

// ROI returns the unrealized return on margin at price for the given leverage.
func (p Position) ROI(price float64, leverage int) float64 {
	if p.IsFlat() || p.EntryPrice == 0 {
		return 0
	}

	if leverage < 1 {
		leverage = 1
	}

	margin := p.EntryPrice * p.Size / float64(leverage)

	return p.UnrealizedPnL(price) / margin
}

// PositionShadow is the locally persisted bookkeeping that survives restarts.
type PositionShadow struct {
	PositionStartTime optional.Option[time.Time] `json:"position_start_time"`
	ActiveOrderID     optional.Option[string]    `json:"active_order_id"`
}
