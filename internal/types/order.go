package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

type OrderSide string

type OrderKind string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

const (
	OrderKindMarket OrderKind = "market"
	OrderKindLimit  OrderKind = "limit"
)

// Opposite returns the side that closes a position opened with s.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}

	return OrderSideBuy
}

// OrderRequest is the input of Exchange.CreateOrder.
type OrderRequest struct {
	Symbol string    `yaml:"symbol" json:"symbol" validate:"required"`
	Kind   OrderKind `yaml:"kind" json:"kind" validate:"required,oneof=market limit"`
	Side   OrderSide `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	// Amount is the base asset quantity.
	Amount float64 `yaml:"amount" json:"amount" validate:"required,gt=0"`
	// Price is required for limit orders.
	Price optional.Option[float64] `yaml:"price" json:"price"`
	// TakeProfitPct is converted to a trigger price by the exchange.
	TakeProfitPct optional.Option[float64] `yaml:"take_profit_pct" json:"take_profit_pct"`
	// StopLossPct is converted to a trigger price by the exchange.
	StopLossPct optional.Option[float64] `yaml:"stop_loss_pct" json:"stop_loss_pct"`
}

// Validate validates the OrderRequest struct.
func (r *OrderRequest) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order request", err)
	}

	if r.Kind == OrderKindLimit && (r.Price.IsNone() || r.Price.Unwrap() <= 0) {
		return errors.New(errors.ErrCodeInvalidOrder, "limit order requires a positive price")
	}

	if r.TakeProfitPct.IsSome() && r.TakeProfitPct.Unwrap() <= 0 {
		return errors.New(errors.ErrCodeInvalidTakeProfit, "take profit percentage must be positive")
	}

	if r.StopLossPct.IsSome() && (r.StopLossPct.Unwrap() <= 0 || r.StopLossPct.Unwrap() >= 1) {
		return errors.New(errors.ErrCodeInvalidStopLoss, "stop loss percentage must be in (0, 1)")
	}

	return nil
}

// PendingOrder is an entry or exit order between submission and fill, cancel or timeout.
type PendingOrder struct {
	ID          string    `json:"id"`
	Side        OrderSide `json:"side"`
	Kind        OrderKind `json:"kind"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// OpenOrder is an order resting on the exchange.
type OpenOrder struct {
	ID     string    `json:"id"`
	Symbol string    `json:"symbol"`
	Side   OrderSide `json:"side"`
	Kind   OrderKind `json:"kind"`
	Price  float64   `json:"price"`
	Amount float64   `json:"amount"`
	// ReduceOnly marks protective orders (take profit / stop loss) attached to a position.
	ReduceOnly bool      `json:"reduce_only"`
	CreatedAt  time.Time `json:"created_at"`
}
