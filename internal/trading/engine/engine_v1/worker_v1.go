package engine_v1

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-fleet/internal/circuit"
	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/notifier"
	"github.com/rxtech-lab/argo-fleet/internal/risk"
	"github.com/rxtech-lab/argo-fleet/internal/strategy"
	"github.com/rxtech-lab/argo-fleet/internal/trading/engine"
	"github.com/rxtech-lab/argo-fleet/internal/trading/executor"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// WorkerV1 implements engine.TradingEngine as a polling control loop. All
// mutable fields are owned by the goroutine running Run; other goroutines only
// read the published snapshot.
type WorkerV1 struct {
	key      types.WorkerKey
	config   types.StrategyConfig
	settings engine.Config
	deps     engine.Dependencies
	log      *logger.Logger
	tail     *logger.LogTail
	breaker  *circuit.Breaker
	executor *executor.Executor
	pause    *PauseGate
	hook     *tradeHook
	hookTick func(engine.RuntimeSnapshot)
	backoff  *backoff.ExponentialBackOff

	snapshot atomic.Pointer[engine.RuntimeSnapshot]
	alive    atomic.Bool

	loopDelay    time.Duration
	candleLimit  int
	entitleEvery int

	state       engine.State
	reconciled  bool
	lapsed      bool
	pending     optional.Option[types.PendingOrder]
	ticks       int64
	evaluations int64
	position    types.Position
	price       float64
	lastSignal  types.Signal
	realized    decimal.Decimal
	errorCount  int
	lastErrorAt time.Time
	lastError   string
	startedAt   time.Time
}

// tradeHook forwards trade alerts to the OnTrade callback before notifying.
type tradeHook struct {
	notifier.Notifier
	onTrade func(types.TradeAlert)
}

func (h *tradeHook) SendTradeAlert(ctx context.Context, alert types.TradeAlert) error {
	if h.onTrade != nil {
		h.onTrade(alert)
	}

	return h.Notifier.SendTradeAlert(ctx, alert)
}

// NewWorkerV1 wires a worker for one (tenant, config) pair. Exchange, Strategy
// and Store are required; everything else falls back to a default.
func NewWorkerV1(key types.WorkerKey, config types.StrategyConfig, settings engine.Config, deps engine.Dependencies) (*WorkerV1, error) {
	if deps.Exchange == nil || deps.Strategy == nil || deps.Store == nil {
		return nil, errors.New(errors.ErrCodeWorkerStartFailed, "exchange, strategy and store are required")
	}

	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}

	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	if deps.Sleep == nil {
		deps.Sleep = engine.SleepContext
	}

	if deps.Notifier == nil {
		deps.Notifier = notifier.NewLogNotifier(deps.Logger)
	}

	if deps.Gate == nil {
		deps.Gate = risk.NewGate(deps.Store, deps.Logger)
	}

	if settings.LogTailSize <= 0 {
		settings.LogTailSize = engine.DefaultConfig().LogTailSize
	}

	if settings.NotifyEvery <= 0 {
		settings.NotifyEvery = engine.DefaultConfig().NotifyEvery
	}

	tail := logger.NewLogTail(settings.LogTailSize)
	log := deps.Logger.ForWorker(key, tail)

	w := &WorkerV1{
		key:          key,
		config:       config,
		settings:     settings,
		deps:         deps,
		log:          log,
		tail:         tail,
		pause:        NewPauseGate(),
		hook:         &tradeHook{Notifier: deps.Notifier},
		loopDelay:    settings.LoopDelay(config.Timeframe),
		candleLimit:  strategy.CandleLimit(config.Params),
		entitleEvery: settings.EntitlementEvery(config.Timeframe),
		state:        engine.StateInit,
		pending:      optional.None[types.PendingOrder](),
		realized:     decimal.Zero,
	}

	w.breaker = circuit.NewBreaker(settings.Circuit,
		circuit.WithClock(deps.Clock),
		circuit.WithOnOpen(func() {
			w.log.Warn("Circuit opened", zap.Duration("cooldown", settings.Circuit.Cooldown))
			deps.Metrics.RecordCircuitOpen(context.Background(), key)
		}),
	)

	w.executor = executor.NewExecutor(key, config, deps.Exchange, deps.Store, w.hook, log,
		executor.WithClock(deps.Clock),
		executor.WithMetrics(deps.Metrics),
	)

	w.backoff = backoff.NewExponentialBackOff()
	w.backoff.InitialInterval = settings.ErrorBackoffBase
	w.backoff.Multiplier = 2
	w.backoff.RandomizationFactor = 0
	w.backoff.MaxInterval = settings.ErrorBackoffMax
	w.backoff.Reset()

	w.publish()

	return w, nil
}

// Key implements engine.TradingEngine.
func (w *WorkerV1) Key() types.WorkerKey {
	return w.key
}

// Pause implements engine.TradingEngine.
func (w *WorkerV1) Pause() {
	w.pause.Pause()
	w.log.Info("Worker paused")
}

// Resume implements engine.TradingEngine.
func (w *WorkerV1) Resume() {
	w.pause.Resume()
	w.log.Info("Worker resumed")
}

// Snapshot implements engine.TradingEngine.
func (w *WorkerV1) Snapshot() engine.RuntimeSnapshot {
	var snap engine.RuntimeSnapshot
	if p := w.snapshot.Load(); p != nil {
		snap = *p
	}

	snap.Paused = w.pause.Paused()
	snap.Alive = w.alive.Load()
	snap.Logs = w.tail.Lines()

	return snap
}

// Run implements engine.TradingEngine.
func (w *WorkerV1) Run(ctx context.Context, callbacks engine.Callbacks) (err error) {
	w.alive.Store(true)
	w.startedAt = w.deps.Clock()

	if callbacks.OnTrade != nil {
		w.hook.onTrade = *callbacks.OnTrade
	}

	if callbacks.OnTick != nil {
		w.hookTick = *callbacks.OnTick
	}

	defer func() {
		w.state = engine.StateStopped
		w.alive.Store(false)
		w.publish()

		if err != nil {
			stopped := *w.snapshot.Load()
			stopped.StoppedWithErr = err.Error()
			w.snapshot.Store(&stopped)
		}

		w.log.Info("Worker stopped", zap.Error(err))

		if callbacks.OnStop != nil {
			(*callbacks.OnStop)(w.key, err)
		}
	}()

	w.log.Info("Worker started",
		zap.String("symbol", w.config.Symbol),
		zap.String("timeframe", string(w.config.Timeframe)),
		zap.String("strategy", w.config.StrategyName),
		zap.Bool("dry_run", w.config.DryRun),
		zap.Duration("loop_delay", w.loopDelay),
	)

	if err := w.deps.Exchange.SetLeverage(ctx, w.config.Symbol, w.config.Leverage); err != nil {
		w.log.Warn("Failed to set leverage", zap.Int("leverage", w.config.Leverage), zap.Error(err))
	}

	w.state = engine.StateConnected
	w.publish()

	for {
		if ctx.Err() != nil {
			return nil
		}

		delay, tickErr := w.Tick(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if tickErr != nil {
			if errors.HasCode(tickErr, errors.ErrCodeEntitlementLapsed) {
				return nil
			}

			if errors.IsFatal(tickErr) {
				w.deps.Metrics.RecordError(ctx, w.key, true)
				w.log.Error("Worker stopped by fatal error", zap.Error(tickErr))
				w.notifyMessage(ctx, fmt.Sprintf("Worker %s stopped: %v", w.key, tickErr))

				return tickErr
			}

			delay = w.onError(ctx, tickErr)
		}

		if w.deps.Sleep(ctx, delay) != nil {
			return nil
		}
	}
}

// Tick runs one iteration of the loop and returns how long to sleep before the
// next one. Only errors that need the backoff path or stop the worker are returned.
func (w *WorkerV1) Tick(ctx context.Context) (delay time.Duration, err error) {
	if w.pause.Wait(ctx) != nil {
		return 0, nil
	}

	w.ticks++

	if !w.breaker.Allow() {
		w.publish()

		remaining := w.breaker.RemainingCooldown()
		if remaining <= 0 {
			remaining = w.loopDelay
		}

		return remaining, nil
	}

	resolved := false

	defer func() {
		if r := recover(); r != nil {
			if !resolved {
				w.breaker.RecordFailure()
			}

			err = errors.Newf(errors.ErrCodeInvariantViolation, "worker %s panicked: %v", w.key, r)
		}
	}()

	if !w.reconciled {
		if err := w.Reconcile(ctx); err != nil {
			resolved = true
			w.breaker.RecordFailure()
			w.log.Warn("Reconciliation failed", zap.Error(err))
			w.lastError = err.Error()
			w.publish()

			return w.loopDelay, nil
		}
	}

	candles, err := w.deps.Exchange.FetchOHLCV(ctx, w.config.Symbol, w.config.Timeframe, w.candleLimit)
	if err == nil && len(candles) == 0 {
		err = errors.Newf(errors.ErrCodeMarketDataMissing, "no candles for %s", w.config.Symbol)
	}

	if err != nil {
		resolved = true

		return w.transientFailure("Failed to fetch candles", err), nil
	}

	position, err := w.deps.Exchange.FetchPosition(ctx, w.config.Symbol)
	if err != nil {
		resolved = true

		return w.transientFailure("Failed to fetch position", err), nil
	}

	resolved = true
	w.breaker.RecordSuccess()

	last := w.position
	w.position = position
	w.price = types.LastClose(candles)

	if w.lapsed {
		return 0, w.stopForEntitlement(ctx, position)
	}

	if w.pending.IsSome() {
		if waiting := w.trackPending(ctx, position); waiting {
			return w.finishTick(ctx), nil
		}
	}

	signal, err := strategy.SafeGenerateSignal(w.deps.Strategy, candles)
	if err != nil {
		return 0, err
	}

	w.lastSignal = signal

	w.evaluations++
	if (w.evaluations-1)%int64(w.entitleEvery) == 0 {
		if lapsed := w.entitlementLapsed(ctx); lapsed {
			return 0, w.stopForEntitlement(ctx, position)
		}
	}

	shadow, err := w.deps.Store.GetPositionShadow(ctx, w.key)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodePersistenceFailed, "failed to read position shadow", err)
	}

	if position.IsFlat() {
		if shadow.PositionStartTime.IsSome() {
			if err := w.executor.RecordExternalClose(ctx, last, shadow, w.price); err != nil {
				return 0, err
			}
		}

		w.state = engine.StateFlat

		if signal.IsDirectional() {
			if err := w.enter(ctx, signal.PositionSide()); err != nil {
				return 0, err
			}
		}

		return w.finishTick(ctx), nil
	}

	w.state = engine.StateInPosition

	if shadow.PositionStartTime.IsNone() {
		if err := w.executor.AdoptPosition(ctx, position); err != nil {
			return 0, err
		}
	}

	switch {
	case signal.Opposes(position.Side):
		w.exit(ctx, position, types.ExitReasonSignal)
	default:
		if advisor, ok := w.deps.Strategy.(strategy.ExitAdvisor); ok {
			if shouldExit, reason := advisor.ShouldExit(position, candles); shouldExit {
				if reason == "" {
					reason = types.ExitReasonStrategy
				}

				w.exit(ctx, position, reason)
			}
		}
	}

	return w.finishTick(ctx), nil
}

// Reconcile aligns the shadow order pointer with the exchange's open orders and
// cancels orphaned entries on the symbol. Running it twice without an exchange
// change leaves the same pointer.
func (w *WorkerV1) Reconcile(ctx context.Context) error {
	shadow, err := w.deps.Store.GetPositionShadow(ctx, w.key)
	if err != nil {
		return errors.Wrap(errors.ErrCodeReconciliationFailed, "failed to read position shadow", err)
	}

	orders, err := w.deps.Exchange.FetchOpenOrders(ctx, w.config.Symbol)
	if err != nil {
		return errors.Wrap(errors.ErrCodeReconciliationFailed, "failed to list open orders", err)
	}

	owned, err := w.deps.Store.ListOwnedOrderIDs(ctx, w.key.TenantID, w.config.Symbol)
	if err != nil {
		return errors.Wrap(errors.ErrCodeReconciliationFailed, "failed to list owned orders", err)
	}

	ownedSet := make(map[string]struct{}, len(owned))
	for _, id := range owned {
		ownedSet[id] = struct{}{}
	}

	activeID := ""
	if shadow.ActiveOrderID.IsSome() {
		activeID = shadow.ActiveOrderID.Unwrap()
	}

	w.pending = optional.None[types.PendingOrder]()

	for _, order := range orders {
		if order.ID == activeID {
			w.pending = optional.Some(types.PendingOrder{
				ID:          order.ID,
				Side:        order.Side,
				Kind:        order.Kind,
				SubmittedAt: order.CreatedAt,
			})

			continue
		}

		if order.ReduceOnly {
			continue
		}

		if _, ok := ownedSet[order.ID]; ok {
			continue
		}

		if err := w.deps.Exchange.CancelOrder(ctx, order.ID, w.config.Symbol); err != nil {
			w.log.Warn("Failed to cancel orphan order", zap.String("order_id", order.ID), zap.Error(err))

			continue
		}

		w.log.Info("Cancelled orphan order", zap.String("order_id", order.ID))
	}

	if activeID != "" && w.pending.IsNone() {
		w.log.Info("Clearing stale order pointer", zap.String("order_id", activeID))

		if err := w.executor.ForgetPending(ctx, activeID); err != nil {
			return errors.Wrap(errors.ErrCodeReconciliationFailed, "failed to clear stale order pointer", err)
		}
	}

	if w.pending.IsSome() {
		w.log.Info("Resumed tracking pending order", zap.String("order_id", activeID))
	}

	w.reconciled = true

	return nil
}

// trackPending resolves the pending limit entry. It reports true while the
// order is still resting, in which case the rest of the tick is skipped.
func (w *WorkerV1) trackPending(ctx context.Context, position types.Position) bool {
	pending := w.pending.Unwrap()

	orders, err := w.deps.Exchange.FetchOpenOrders(ctx, w.config.Symbol)
	if err != nil {
		w.log.Warn("Failed to list open orders", zap.Error(err))
		w.state = engine.StateEntering

		return true
	}

	open := false

	for _, order := range orders {
		if order.ID == pending.ID {
			open = true

			break
		}
	}

	if open {
		timeout := w.config.LimitOrderTimeout
		if timeout > 0 && w.deps.Clock().Sub(pending.SubmittedAt) >= timeout {
			if err := w.executor.CancelPending(ctx, pending); err != nil {
				w.log.Warn("Failed to cancel timed out entry", zap.String("order_id", pending.ID), zap.Error(err))
				w.state = engine.StateEntering

				return true
			}

			w.pending = optional.None[types.PendingOrder]()
			w.state = engine.StateFlat

			return false
		}

		w.state = engine.StateEntering

		return true
	}

	w.pending = optional.None[types.PendingOrder]()

	if position.IsFlat() {
		w.log.Info("Pending entry left the book without a position", zap.String("order_id", pending.ID))

		if err := w.executor.ForgetPending(ctx, pending.ID); err != nil {
			w.log.Warn("Failed to clear pending order", zap.Error(err))
		}

		return false
	}

	if err := w.executor.ConfirmFill(ctx, pending, position); err != nil {
		w.log.Warn("Failed to record filled entry", zap.Error(err))
	}

	return false
}

func (w *WorkerV1) enter(ctx context.Context, side types.PositionSide) error {
	notional := w.config.TradeSize * float64(max(w.config.Leverage, 1))

	decision := w.deps.Gate.CheckCanOpen(ctx, notional, w.key.TenantID)
	if !decision.Allowed {
		w.log.Info("Entry denied by risk gate", zap.String("reason", string(decision.Reason)))
		w.deps.Metrics.RecordRiskDenial(ctx, w.key, string(decision.Reason))

		return nil
	}

	w.state = engine.StateEntering

	entry, err := w.executor.Open(ctx, side, w.price)
	if err != nil && entry.OrderID == "" {
		// rejections are routine and carry no circuit penalty
		w.log.Warn("Entry rejected", zap.String("side", string(side)), zap.Error(err))
		w.state = engine.StateFlat

		return nil
	}

	if entry.Pending.IsSome() {
		w.pending = entry.Pending
	} else {
		w.state = engine.StateInPosition
	}

	return err
}

func (w *WorkerV1) exit(ctx context.Context, position types.Position, reason string) error {
	w.state = engine.StateExiting

	pnl, err := w.executor.Close(ctx, position, w.price, reason)
	if err != nil {
		w.log.Warn("Exit failed", zap.String("reason", reason), zap.Error(err))
		w.state = engine.StateInPosition

		return err
	}

	w.realized = w.realized.Add(pnl)
	w.position = types.Position{Symbol: w.config.Symbol, Side: types.PositionSideNone}
	w.state = engine.StateFlat

	return nil
}

func (w *WorkerV1) entitlementLapsed(ctx context.Context) bool {
	entitled, err := w.deps.Store.HasTradingEntitlement(ctx, w.key.TenantID)
	if err != nil {
		w.log.Warn("Entitlement check failed", zap.Error(err))

		return false
	}

	return !entitled
}

// stopForEntitlement force-closes the position and ends the loop. A failed close
// keeps the worker alive on the error backoff path; every following tick retries
// the close without re-checking the entitlement.
func (w *WorkerV1) stopForEntitlement(ctx context.Context, position types.Position) error {
	w.lapsed = true
	w.log.Warn("Trading entitlement lapsed, stopping worker")

	if !position.IsFlat() {
		if err := w.exit(ctx, position, types.ExitReasonEntitlement); err != nil {
			return errors.Wrapf(errors.ErrCodeOrderFailed, err,
				"entitlement lapsed for tenant %s but closing the %s position failed", w.key.TenantID, w.config.Symbol)
		}
	}

	w.notifyMessage(ctx, fmt.Sprintf("Trading entitlement lapsed: worker %s on %s closed its position and stopped.",
		w.key, w.config.Symbol))

	return errors.Newf(errors.ErrCodeEntitlementLapsed, "entitlement lapsed for tenant %s", w.key.TenantID)
}

// transientFailure counts an I/O failure against the breaker and skips the tick.
func (w *WorkerV1) transientFailure(msg string, err error) time.Duration {
	w.breaker.RecordFailure()
	w.lastError = err.Error()
	w.log.Warn(msg, zap.Error(err), zap.String("circuit", string(w.breaker.State())))
	w.publish()

	return w.loopDelay
}

// onError applies the error backoff: doubling per occurrence, capped, with the
// counter reset after a quiet period.
func (w *WorkerV1) onError(ctx context.Context, err error) time.Duration {
	now := w.deps.Clock()
	if !w.lastErrorAt.IsZero() && now.Sub(w.lastErrorAt) > w.settings.ErrorResetAfter {
		w.errorCount = 0
		w.backoff.Reset()
	}

	w.errorCount++
	w.lastErrorAt = now
	w.lastError = err.Error()

	delay := w.backoff.NextBackOff()
	if delay == backoff.Stop || delay > w.settings.ErrorBackoffMax {
		delay = w.settings.ErrorBackoffMax
	}

	w.deps.Metrics.RecordError(ctx, w.key, false)
	w.log.Error("Tick failed",
		zap.Error(err),
		zap.Int("error_count", w.errorCount),
		zap.Duration("backoff", delay),
	)

	if w.errorCount == 1 || w.errorCount%w.settings.NotifyEvery == 0 {
		w.notifyMessage(ctx, fmt.Sprintf("Worker %s error #%d: %v", w.key, w.errorCount, err))
	}

	w.publish()

	return delay
}

func (w *WorkerV1) finishTick(ctx context.Context) time.Duration {
	snap := w.publish()
	w.deps.Metrics.RecordTick(ctx, w.key)

	if w.hookTick != nil {
		w.hookTick(snap)
	}

	return w.loopDelay
}

func (w *WorkerV1) publish() engine.RuntimeSnapshot {
	snap := engine.RuntimeSnapshot{
		Key:          w.key,
		Config:       w.config,
		State:        w.state,
		Circuit:      w.breaker.State(),
		Position:     w.position,
		PendingOrder: w.pending,
		LastSignal:   w.lastSignal,
		CurrentPrice: w.price,
		PnL:          decimal.NewFromFloat(w.position.UnrealizedPnL(w.price)),
		ROI:          w.position.ROI(w.price, w.config.Leverage),
		RealizedPnL:  w.realized,
		TakeProfit:   optional.None[float64](),
		StopLoss:     optional.None[float64](),
		Ticks:        w.ticks,
		ErrorCount:   w.errorCount,
		LastError:    w.lastError,
		StartedAt:    w.startedAt,
		UpdatedAt:    w.deps.Clock(),
	}

	if !w.position.IsFlat() {
		dir := w.position.Side.Direction()

		if w.config.TakeProfitPct > 0 {
			snap.TakeProfit = optional.Some(w.position.EntryPrice * (1 + dir*w.config.TakeProfitPct))
		}

		if w.config.StopLossPct > 0 {
			snap.StopLoss = optional.Some(w.position.EntryPrice * (1 - dir*w.config.StopLossPct))
		}
	}

	w.snapshot.Store(&snap)

	return snap
}

func (w *WorkerV1) notifyMessage(ctx context.Context, text string) {
	if err := w.deps.Notifier.SendMessage(ctx, w.key.TenantID, text); err != nil {
		w.log.Warn("Failed to send notification", zap.Error(err))
	}
}
