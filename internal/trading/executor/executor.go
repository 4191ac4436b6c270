// Package executor places and closes positions for one worker and keeps the
// persisted shadow state, trade log and notifications in step with the exchange.
package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-fleet/internal/exchange"
	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/notifier"
	"github.com/rxtech-lab/argo-fleet/internal/persistence"
	"github.com/rxtech-lab/argo-fleet/internal/telemetry"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/internal/utils"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// Entry is the outcome of a successful Open.
type Entry struct {
	OrderID string
	Side    types.PositionSide
	Price   float64
	Amount  float64
	// Pending is set for limit entries that have not filled yet.
	Pending optional.Option[types.PendingOrder]
}

// Executor submits orders for a single worker. Shadow fields are written only
// after the exchange confirmed the placement or closure.
type Executor struct {
	key      types.WorkerKey
	config   types.StrategyConfig
	exchange exchange.Exchange
	store    persistence.Store
	notifier notifier.Notifier
	metrics  *telemetry.Metrics
	logger   *logger.Logger
	clock    func() time.Time
}

type Option func(*Executor)

func WithClock(clock func() time.Time) Option {
	return func(e *Executor) {
		e.clock = clock
	}
}

func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(e *Executor) {
		e.metrics = metrics
	}
}

func NewExecutor(
	key types.WorkerKey,
	config types.StrategyConfig,
	ex exchange.Exchange,
	store persistence.Store,
	notify notifier.Notifier,
	log *logger.Logger,
	opts ...Option,
) *Executor {
	e := &Executor{
		key:      key,
		config:   config,
		exchange: ex,
		store:    store,
		notifier: notify,
		logger:   log,
		clock:    time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Open submits an entry for side sized from the configured trade size and leverage.
// Market entries persist position_start_time; limit entries persist active_order_id
// and are reported through Entry.Pending.
func (e *Executor) Open(ctx context.Context, side types.PositionSide, price float64) (Entry, error) {
	amount := utils.EntryQuantity(e.config.TradeSize, e.config.Leverage, price)
	if amount <= 0 {
		return Entry{}, errors.Newf(errors.ErrCodeInvalidOrder, "cannot size entry at price %f", price)
	}

	req := types.OrderRequest{
		Symbol: e.config.Symbol,
		Kind:   e.config.EntryKind(),
		Side:   side.EntrySide(),
		Amount: amount,
	}

	if req.Kind == types.OrderKindLimit {
		req.Price = optional.Some(price)
	}

	if e.config.TakeProfitPct > 0 {
		req.TakeProfitPct = optional.Some(e.config.TakeProfitPct)
	}

	if e.config.StopLossPct > 0 {
		req.StopLossPct = optional.Some(e.config.StopLossPct)
	}

	orderID, err := e.exchange.CreateOrder(ctx, req)
	if err != nil && orderID == "" {
		e.metrics.RecordOrder(ctx, e.key, types.TradeActionOpen, false)

		return Entry{}, err
	}

	if err != nil {
		// entry filled but protective orders were rejected
		e.logger.Error("Entry placed without protection", zap.String("order_id", orderID), zap.Error(err))
		e.notifyMessage(ctx, "Entry "+orderID+" on "+e.config.Symbol+" has no take-profit/stop-loss: "+err.Error())
	}

	e.metrics.RecordOrder(ctx, e.key, types.TradeActionOpen, true)

	entry := Entry{OrderID: orderID, Side: side, Price: price, Amount: amount}
	now := e.clock()

	if req.Kind == types.OrderKindLimit {
		pending := types.PendingOrder{ID: orderID, Side: req.Side, Kind: req.Kind, SubmittedAt: now}
		entry.Pending = optional.Some(pending)

		if err := e.store.RegisterOpenOrder(ctx, e.key, e.config.Symbol, orderID); err != nil {
			return entry, errors.Wrap(errors.ErrCodePersistenceFailed, "failed to register open order", err)
		}

		if err := e.updateShadow(ctx, func(s *types.PositionShadow) {
			s.ActiveOrderID = optional.Some(orderID)
		}); err != nil {
			return entry, err
		}

		e.logger.Info("Limit entry submitted",
			zap.String("order_id", orderID),
			zap.String("side", string(side)),
			zap.Float64("price", price),
			zap.Float64("amount", amount),
		)

		return entry, nil
	}

	return entry, e.recordOpen(ctx, entry, now)
}

// ConfirmFill records a limit entry that left the open-order list while a position appeared.
func (e *Executor) ConfirmFill(ctx context.Context, pending types.PendingOrder, position types.Position) error {
	now := e.clock()

	if err := e.store.RemoveOpenOrder(ctx, e.key, pending.ID); err != nil {
		e.logger.Warn("Failed to unregister filled order", zap.String("order_id", pending.ID), zap.Error(err))
	}

	side := types.PositionSideLong
	if pending.Side == types.OrderSideSell {
		side = types.PositionSideShort
	}

	return e.recordOpen(ctx, Entry{
		OrderID: pending.ID,
		Side:    side,
		Price:   position.EntryPrice,
		Amount:  position.Size,
	}, now)
}

// CancelPending cancels a resting entry and clears the shadow pointer.
func (e *Executor) CancelPending(ctx context.Context, pending types.PendingOrder) error {
	if err := e.exchange.CancelOrder(ctx, pending.ID, e.config.Symbol); err != nil {
		return err
	}

	e.logger.Info("Pending entry cancelled", zap.String("order_id", pending.ID))

	return e.ForgetPending(ctx, pending.ID)
}

// ForgetPending clears bookkeeping for an order that is no longer open.
func (e *Executor) ForgetPending(ctx context.Context, orderID string) error {
	if err := e.store.RemoveOpenOrder(ctx, e.key, orderID); err != nil {
		e.logger.Warn("Failed to unregister order", zap.String("order_id", orderID), zap.Error(err))
	}

	return e.updateShadow(ctx, func(s *types.PositionShadow) {
		if s.ActiveOrderID.IsSome() && s.ActiveOrderID.Unwrap() == orderID {
			s.ActiveOrderID = optional.None[string]()
		}
	})
}

// Close exits the whole position at market, reads back realized PnL when the
// exchange supports it and clears position_start_time.
func (e *Executor) Close(ctx context.Context, position types.Position, price float64, reason string) (decimal.Decimal, error) {
	shadow, err := e.store.GetPositionShadow(ctx, e.key)
	if err != nil {
		e.logger.Warn("Failed to read position shadow before exit", zap.Error(err))
	}

	if err := e.exchange.ClosePosition(ctx, e.config.Symbol); err != nil {
		e.metrics.RecordOrder(ctx, e.key, types.TradeActionClose, false)

		return decimal.Zero, err
	}

	e.metrics.RecordOrder(ctx, e.key, types.TradeActionClose, true)

	since := e.clock().Add(-24 * time.Hour)

	switch {
	case position.OpenedAt.IsSome():
		since = position.OpenedAt.Unwrap()
	case shadow.PositionStartTime.IsSome():
		since = shadow.PositionStartTime.Unwrap()
	}

	pnl := e.realizedPnL(ctx, position, price, since)

	return pnl, e.recordClose(ctx, position, price, pnl, reason)
}

// RecordExternalClose books a position that disappeared on the exchange while the
// shadow still marked it open, e.g. a take-profit or stop-loss trigger fired.
// last is the position seen on the previous tick; it supplies the side and size.
func (e *Executor) RecordExternalClose(ctx context.Context, last types.Position, shadow types.PositionShadow, price float64) error {
	since := e.clock().Add(-24 * time.Hour)
	if shadow.PositionStartTime.IsSome() {
		since = shadow.PositionStartTime.Unwrap()
	}

	last.Symbol = e.config.Symbol
	pnl := e.realizedPnL(ctx, last, price, since)

	return e.recordClose(ctx, last, price, pnl, types.ExitReasonExternal)
}

// AdoptPosition marks an exchange position that has no shadow, e.g. a limit
// entry that filled while the process was down. No trade is recorded.
func (e *Executor) AdoptPosition(ctx context.Context, position types.Position) error {
	start := e.clock()
	if position.OpenedAt.IsSome() {
		start = position.OpenedAt.Unwrap()
	}

	e.logger.Info("Adopting untracked position",
		zap.String("side", string(position.Side)),
		zap.Float64("size", position.Size),
		zap.Float64("entry_price", position.EntryPrice),
	)

	return e.updateShadow(ctx, func(s *types.PositionShadow) {
		s.PositionStartTime = optional.Some(start)
	})
}

func (e *Executor) realizedPnL(ctx context.Context, position types.Position, price float64, since time.Time) decimal.Decimal {
	estimate := decimal.NewFromFloat(position.UnrealizedPnL(price))

	reader, ok := e.exchange.(exchange.RealizedPnLReader)
	if !ok {
		return estimate
	}

	pnl, err := reader.FetchRealizedPnL(ctx, e.config.Symbol, since)
	if err != nil {
		e.logger.Warn("Realized PnL read-back failed, using estimate", zap.Error(err))

		return estimate
	}

	return pnl
}

func (e *Executor) recordOpen(ctx context.Context, entry Entry, at time.Time) error {
	if err := e.updateShadow(ctx, func(s *types.PositionShadow) {
		s.PositionStartTime = optional.Some(at)
		if s.ActiveOrderID.IsSome() && s.ActiveOrderID.Unwrap() == entry.OrderID {
			s.ActiveOrderID = optional.None[string]()
		}
	}); err != nil {
		return err
	}

	record := types.TradeRecord{
		ID:          uuid.NewString(),
		TenantID:    e.key.TenantID,
		ConfigID:    e.key.ConfigID,
		Symbol:      e.config.Symbol,
		Side:        entry.Side,
		Action:      types.TradeActionOpen,
		OrderID:     entry.OrderID,
		Price:       entry.Price,
		Amount:      entry.Amount,
		RealizedPnL: decimal.Zero,
		DryRun:      e.config.DryRun,
		At:          at,
	}

	if err := e.store.AppendTrade(ctx, record); err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to append trade", err)
	}

	e.logger.Info("Position opened",
		zap.String("order_id", entry.OrderID),
		zap.String("side", string(entry.Side)),
		zap.Float64("price", entry.Price),
		zap.Float64("amount", entry.Amount),
	)

	e.notifyAlert(ctx, types.TradeAlert{
		TenantID: e.key.TenantID,
		ConfigID: e.key.ConfigID,
		Symbol:   e.config.Symbol,
		Action:   types.TradeActionOpen,
		Side:     entry.Side,
		Price:    entry.Price,
		Amount:   entry.Amount,
		PnL:      optional.None[decimal.Decimal](),
		DryRun:   e.config.DryRun,
	})

	return nil
}

func (e *Executor) recordClose(ctx context.Context, position types.Position, price float64, pnl decimal.Decimal, reason string) error {
	now := e.clock()

	if err := e.updateShadow(ctx, func(s *types.PositionShadow) {
		s.PositionStartTime = optional.None[time.Time]()
	}); err != nil {
		return err
	}

	record := types.TradeRecord{
		ID:          uuid.NewString(),
		TenantID:    e.key.TenantID,
		ConfigID:    e.key.ConfigID,
		Symbol:      e.config.Symbol,
		Side:        position.Side,
		Action:      types.TradeActionClose,
		Price:       price,
		Amount:      position.Size,
		RealizedPnL: pnl,
		Reason:      reason,
		DryRun:      e.config.DryRun,
		At:          now,
	}

	if err := e.store.AppendTrade(ctx, record); err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to append trade", err)
	}

	e.logger.Info("Position closed",
		zap.String("side", string(position.Side)),
		zap.Float64("price", price),
		zap.String("pnl", pnl.StringFixed(4)),
		zap.String("reason", reason),
	)

	e.notifyAlert(ctx, types.TradeAlert{
		TenantID: e.key.TenantID,
		ConfigID: e.key.ConfigID,
		Symbol:   e.config.Symbol,
		Action:   types.TradeActionClose,
		Side:     position.Side,
		Price:    price,
		Amount:   position.Size,
		PnL:      optional.Some(pnl),
		Reason:   reason,
		DryRun:   e.config.DryRun,
	})

	return nil
}

func (e *Executor) updateShadow(ctx context.Context, mutate func(*types.PositionShadow)) error {
	shadow, err := e.store.GetPositionShadow(ctx, e.key)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to read position shadow", err)
	}

	mutate(&shadow)

	if err := e.store.SavePositionShadow(ctx, e.key, shadow); err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to save position shadow", err)
	}

	return nil
}

func (e *Executor) notifyAlert(ctx context.Context, alert types.TradeAlert) {
	if err := e.notifier.SendTradeAlert(ctx, alert); err != nil {
		e.logger.Warn("Failed to send trade alert", zap.Error(err))
	}
}

func (e *Executor) notifyMessage(ctx context.Context, text string) {
	if err := e.notifier.SendMessage(ctx, e.key.TenantID, text); err != nil {
		e.logger.Warn("Failed to send notification", zap.Error(err))
	}
}
