package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// RateLimitedExchange waits on a token bucket before every call to the wrapped exchange.
type RateLimitedExchange struct {
	inner   Exchange
	limiter *rate.Limiter
}

// NewRateLimitedExchange wraps inner with a limiter of perSecond calls and the given burst.
// A non-positive perSecond disables limiting.
func NewRateLimitedExchange(inner Exchange, perSecond float64, burst int) *RateLimitedExchange {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	if burst < 1 {
		burst = 1
	}

	return &RateLimitedExchange{inner: inner, limiter: rate.NewLimiter(limit, burst)}
}

// Unwrap returns the wrapped exchange.
func (r *RateLimitedExchange) Unwrap() Exchange {
	return r.inner
}

func (r *RateLimitedExchange) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeExchangeUnavailable, "rate limiter wait aborted", err)
	}

	return nil
}

func (r *RateLimitedExchange) FetchOHLCV(ctx context.Context, symbol string, timeframe types.Timeframe, limit int) ([]types.Candle, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}

	return r.inner.FetchOHLCV(ctx, symbol, timeframe, limit)
}

func (r *RateLimitedExchange) FetchPosition(ctx context.Context, symbol string) (types.Position, error) {
	if err := r.wait(ctx); err != nil {
		return types.Position{}, err
	}

	return r.inner.FetchPosition(ctx, symbol)
}

func (r *RateLimitedExchange) FetchBalance(ctx context.Context) (types.Balance, error) {
	if err := r.wait(ctx); err != nil {
		return types.Balance{}, err
	}

	return r.inner.FetchBalance(ctx)
}

func (r *RateLimitedExchange) CreateOrder(ctx context.Context, req types.OrderRequest) (string, error) {
	if err := r.wait(ctx); err != nil {
		return "", err
	}

	return r.inner.CreateOrder(ctx, req)
}

func (r *RateLimitedExchange) CancelOrder(ctx context.Context, orderID string, symbol string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}

	return r.inner.CancelOrder(ctx, orderID, symbol)
}

func (r *RateLimitedExchange) FetchOpenOrders(ctx context.Context, symbol string) ([]types.OpenOrder, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}

	return r.inner.FetchOpenOrders(ctx, symbol)
}

func (r *RateLimitedExchange) ClosePosition(ctx context.Context, symbol string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}

	return r.inner.ClosePosition(ctx, symbol)
}

func (r *RateLimitedExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := r.wait(ctx); err != nil {
		return err
	}

	return r.inner.SetLeverage(ctx, symbol, leverage)
}

// FetchRealizedPnL forwards to the wrapped exchange when it supports realized PnL.
func (r *RateLimitedExchange) FetchRealizedPnL(ctx context.Context, symbol string, since time.Time) (decimal.Decimal, error) {
	reader, ok := r.inner.(RealizedPnLReader)
	if !ok {
		return decimal.Zero, errors.New(errors.ErrCodeUnsupportedExchange, "exchange does not report realized PnL")
	}

	if err := r.wait(ctx); err != nil {
		return decimal.Zero, err
	}

	return reader.FetchRealizedPnL(ctx, symbol, since)
}
