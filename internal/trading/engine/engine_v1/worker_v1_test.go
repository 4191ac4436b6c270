package engine_v1

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/rxtech-lab/argo-fleet/internal/circuit"
	"github.com/rxtech-lab/argo-fleet/internal/exchange"
	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/notifier"
	"github.com/rxtech-lab/argo-fleet/internal/persistence"
	"github.com/rxtech-lab/argo-fleet/internal/strategy"
	"github.com/rxtech-lab/argo-fleet/internal/trading/engine"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/mocks"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

type WorkerV1TestSuite struct {
	suite.Suite
	ctrl  *gomock.Controller
	ctx   context.Context
	store *persistence.MemoryStore
	key   types.WorkerKey
	start time.Time
	now   time.Time
}

func TestWorkerV1Suite(t *testing.T) {
	suite.Run(t, new(WorkerV1TestSuite))
}

func (suite *WorkerV1TestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.ctx = context.Background()
	suite.store = persistence.NewMemoryStore()
	suite.key = types.NewWorkerKey("alice", "")
	suite.start = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	suite.now = suite.start.Add(48 * time.Hour)
}

func (suite *WorkerV1TestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func (suite *WorkerV1TestSuite) strategyConfig() types.StrategyConfig {
	return types.StrategyConfig{
		Symbol:       "BTC/USDT",
		Timeframe:    types.Timeframe1h,
		TradeSize:    100,
		StrategyName: strategy.DipBuyerName,
		Params:       map[string]any{"period": 20, "dip_pct": 0.03},
		DryRun:       true,
		Exchange:     "paper",
		Leverage:     1,
	}
}

func (suite *WorkerV1TestSuite) settings() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Circuit = circuit.Config{FailureThreshold: 3, Window: 60 * time.Second, Cooldown: 120 * time.Second}

	return cfg
}

func (suite *WorkerV1TestSuite) worker(cfg types.StrategyConfig, ex exchange.Exchange, strat strategy.Strategy, notify notifier.Notifier) *WorkerV1 {
	w, err := NewWorkerV1(suite.key, cfg, suite.settings(), engine.Dependencies{
		Exchange: ex,
		Strategy: strat,
		Store:    suite.store,
		Notifier: notify,
		Logger:   logger.NewNop(),
		Clock:    func() time.Time { return suite.now },
		Sleep:    func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	})
	suite.Require().NoError(err)

	return w
}

func (suite *WorkerV1TestSuite) dipBuyer() strategy.Strategy {
	strat, err := strategy.NewDipBuyer(map[string]any{"period": 20, "dip_pct": 0.03})
	suite.Require().NoError(err)

	return strat
}

func (suite *WorkerV1TestSuite) candles() []types.Candle {
	return mocks.FlatThenDrop(suite.start, time.Hour, 3, 100, 0)
}

func (suite *WorkerV1TestSuite) trades() []types.TradeRecord {
	trades, err := suite.store.ListTrades(suite.ctx, suite.key)
	suite.Require().NoError(err)

	return trades
}

func (suite *WorkerV1TestSuite) shadow() types.PositionShadow {
	shadow, err := suite.store.GetPositionShadow(suite.ctx, suite.key)
	suite.Require().NoError(err)

	return shadow
}

func (suite *WorkerV1TestSuite) TestNewWorkerRequiresPorts() {
	_, err := NewWorkerV1(suite.key, suite.strategyConfig(), suite.settings(), engine.Dependencies{Store: suite.store})
	suite.Error(err)
	suite.Equal(errors.ErrCodeWorkerStartFailed, errors.GetCode(err))
}

// A dry-run dip buyer fed a flat series with one manufactured dip opens exactly once.
func (suite *WorkerV1TestSuite) TestDipBuyerDryRunOpensOnce() {
	source := mocks.NewReplaySource(mocks.FlatThenDrop(suite.start, time.Hour, 25, 100, 5), 25)
	paper := exchange.NewPaperExchange(source, exchange.WithPaperClock(func() time.Time { return suite.now }))
	w := suite.worker(suite.strategyConfig(), paper, suite.dipBuyer(), notifier.NewLogNotifier(logger.NewNop()))

	_, err := w.Tick(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(engine.StateFlat, w.Snapshot().State)
	suite.Empty(suite.trades())

	suite.Require().True(source.Advance())

	for i := 0; i < 3; i++ {
		_, err = w.Tick(suite.ctx)
		suite.Require().NoError(err)
	}

	trades := suite.trades()
	suite.Require().Len(trades, 1)
	suite.Equal(types.TradeActionOpen, trades[0].Action)
	suite.Equal(types.PositionSideLong, trades[0].Side)
	suite.True(trades[0].DryRun)
	suite.True(suite.shadow().PositionStartTime.IsSome())

	snap := w.Snapshot()
	suite.Equal(engine.StateInPosition, snap.State)
	suite.Equal(types.PositionSideLong, snap.Position.Side)
	suite.Equal(95.0, snap.CurrentPrice)
	suite.Equal(int64(4), snap.Ticks)
}

// Three consecutive fetch failures open the breaker and the next tick does no I/O.
func (suite *WorkerV1TestSuite) TestBreakerOpensAndNextTickSkipsExchange() {
	ex := mocks.NewMockExchange(suite.ctrl)
	strat := mocks.NewMockStrategy(suite.ctrl)

	ex.EXPECT().FetchOpenOrders(gomock.Any(), "BTC/USDT").Return(nil, nil).Times(1)
	ex.EXPECT().FetchOHLCV(gomock.Any(), "BTC/USDT", types.Timeframe1h, gomock.Any()).
		Return(nil, errors.New(errors.ErrCodeExchangeUnavailable, "timeout")).Times(3)

	w := suite.worker(suite.strategyConfig(), ex, strat, notifier.NewLogNotifier(logger.NewNop()))

	for i := 0; i < 3; i++ {
		delay, err := w.Tick(suite.ctx)
		suite.Require().NoError(err)
		suite.Equal(60*time.Second, delay)
	}

	suite.Equal(circuit.StateOpen, w.Snapshot().Circuit)

	delay, err := w.Tick(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(120*time.Second, delay)
	suite.Equal(circuit.StateOpen, w.Snapshot().Circuit)
}

func (suite *WorkerV1TestSuite) TestBreakerHalfOpenTrialCloses() {
	ex := mocks.NewMockExchange(suite.ctrl)
	strat := mocks.NewMockStrategy(suite.ctrl)

	ex.EXPECT().FetchOpenOrders(gomock.Any(), "BTC/USDT").Return(nil, nil).Times(1)
	gomock.InOrder(
		ex.EXPECT().FetchOHLCV(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, stderrors.New("boom")).Times(3),
		ex.EXPECT().FetchOHLCV(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(suite.candles(), nil),
	)
	ex.EXPECT().FetchPosition(gomock.Any(), "BTC/USDT").Return(types.Position{Side: types.PositionSideNone}, nil)
	strat.EXPECT().GenerateSignal(gomock.Any()).Return(types.Signal{Action: types.SignalHold}, nil)

	w := suite.worker(suite.strategyConfig(), ex, strat, notifier.NewLogNotifier(logger.NewNop()))

	for i := 0; i < 3; i++ {
		_, err := w.Tick(suite.ctx)
		suite.Require().NoError(err)
	}

	suite.now = suite.now.Add(121 * time.Second)

	_, err := w.Tick(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(circuit.StateClosed, w.Snapshot().Circuit)
}

func (suite *WorkerV1TestSuite) TestReconcileIsIdempotent() {
	other := types.NewWorkerKey("alice", "eth")
	suite.Require().NoError(suite.store.RegisterOpenOrder(suite.ctx, suite.key, "BTC/USDT", "a1"))
	suite.Require().NoError(suite.store.RegisterOpenOrder(suite.ctx, other, "BTC/USDT", "o2"))
	suite.Require().NoError(suite.store.SavePositionShadow(suite.ctx, suite.key, types.PositionShadow{
		ActiveOrderID: optional.Some("a1"),
	}))

	created := suite.now.Add(-time.Minute)
	orders := []types.OpenOrder{
		{ID: "a1", Symbol: "BTC/USDT", Side: types.OrderSideBuy, Kind: types.OrderKindLimit, Price: 99, CreatedAt: created},
		{ID: "tp", Symbol: "BTC/USDT", Side: types.OrderSideSell, ReduceOnly: true},
		{ID: "o2", Symbol: "BTC/USDT", Side: types.OrderSideBuy, Kind: types.OrderKindLimit},
		{ID: "x", Symbol: "BTC/USDT", Side: types.OrderSideSell, Kind: types.OrderKindLimit},
	}

	ex := mocks.NewMockExchange(suite.ctrl)
	ex.EXPECT().FetchOpenOrders(gomock.Any(), "BTC/USDT").Return(orders, nil).Times(2)
	ex.EXPECT().CancelOrder(gomock.Any(), "x", "BTC/USDT").Return(nil).Times(2)

	w := suite.worker(suite.strategyConfig(), ex, mocks.NewMockStrategy(suite.ctrl), notifier.NewLogNotifier(logger.NewNop()))

	suite.Require().NoError(w.Reconcile(suite.ctx))
	first := suite.shadow().ActiveOrderID
	suite.Require().True(w.pending.IsSome())
	suite.Equal(created, w.pending.Unwrap().SubmittedAt)

	suite.Require().NoError(w.Reconcile(suite.ctx))
	second := suite.shadow().ActiveOrderID

	suite.Equal(first, second)
	suite.Equal("a1", second.Unwrap())
	suite.Equal("a1", w.pending.Unwrap().ID)
}

func (suite *WorkerV1TestSuite) TestReconcileClearsStalePointer() {
	suite.Require().NoError(suite.store.RegisterOpenOrder(suite.ctx, suite.key, "BTC/USDT", "gone"))
	suite.Require().NoError(suite.store.SavePositionShadow(suite.ctx, suite.key, types.PositionShadow{
		ActiveOrderID: optional.Some("gone"),
	}))

	ex := mocks.NewMockExchange(suite.ctrl)
	ex.EXPECT().FetchOpenOrders(gomock.Any(), "BTC/USDT").Return(nil, nil).Times(2)

	w := suite.worker(suite.strategyConfig(), ex, mocks.NewMockStrategy(suite.ctrl), notifier.NewLogNotifier(logger.NewNop()))

	suite.Require().NoError(w.Reconcile(suite.ctx))
	suite.True(suite.shadow().ActiveOrderID.IsNone())
	suite.True(w.pending.IsNone())

	owned, err := suite.store.ListOwnedOrderIDs(suite.ctx, "alice", "BTC/USDT")
	suite.Require().NoError(err)
	suite.Empty(owned)

	suite.Require().NoError(w.Reconcile(suite.ctx))
	suite.True(suite.shadow().ActiveOrderID.IsNone())
}

func (suite *WorkerV1TestSuite) TestReconcileFailureCountsAgainstBreaker() {
	ex := mocks.NewMockExchange(suite.ctrl)
	ex.EXPECT().FetchOpenOrders(gomock.Any(), "BTC/USDT").Return(nil, stderrors.New("down")).Times(3)

	w := suite.worker(suite.strategyConfig(), ex, mocks.NewMockStrategy(suite.ctrl), notifier.NewLogNotifier(logger.NewNop()))

	for i := 0; i < 3; i++ {
		_, err := w.Tick(suite.ctx)
		suite.Require().NoError(err)
	}

	suite.Equal(circuit.StateOpen, w.Snapshot().Circuit)
	suite.Contains(w.Snapshot().LastError, "down")
}

func (suite *WorkerV1TestSuite) TestOpposingSignalClosesPosition() {
	suite.Require().NoError(suite.store.SavePositionShadow(suite.ctx, suite.key, types.PositionShadow{
		PositionStartTime: optional.Some(suite.now.Add(-time.Hour)),
	}))

	ex := mocks.NewMockExchange(suite.ctrl)
	strat := mocks.NewMockStrategy(suite.ctrl)
	notify := mocks.NewMockNotifier(suite.ctrl)

	ex.EXPECT().FetchOpenOrders(gomock.Any(), "BTC/USDT").Return(nil, nil)
	ex.EXPECT().FetchOHLCV(gomock.Any(), "BTC/USDT", types.Timeframe1h, gomock.Any()).Return(suite.candles(), nil)
	ex.EXPECT().FetchPosition(gomock.Any(), "BTC/USDT").Return(types.Position{
		Symbol: "BTC/USDT", Side: types.PositionSideLong, Size: 2, EntryPrice: 90,
	}, nil)
	strat.EXPECT().GenerateSignal(gomock.Any()).Return(types.Signal{Action: types.SignalShort}, nil)
	ex.EXPECT().ClosePosition(gomock.Any(), "BTC/USDT").Return(nil)
	notify.EXPECT().SendTradeAlert(gomock.Any(), gomock.Any()).Return(nil)

	w := suite.worker(suite.strategyConfig(), ex, strat, notify)

	_, err := w.Tick(suite.ctx)
	suite.Require().NoError(err)

	trades := suite.trades()
	suite.Require().Len(trades, 1)
	suite.Equal(types.TradeActionClose, trades[0].Action)
	suite.Equal(types.ExitReasonSignal, trades[0].Reason)
	suite.Equal("20", trades[0].RealizedPnL.String())
	suite.True(suite.shadow().PositionStartTime.IsNone())

	snap := w.Snapshot()
	suite.Equal(engine.StateFlat, snap.State)
	suite.Equal("20", snap.RealizedPnL.String())
}

func (suite *WorkerV1TestSuite) TestHoldInPositionOnlyUpdatesTelemetry() {
	cfg := suite.strategyConfig()
	cfg.Leverage = 2
	cfg.TakeProfitPct = 0.1
	cfg.StopLossPct = 0.05

	suite.Require().NoError(suite.store.SavePositionShadow(suite.ctx, suite.key, types.PositionShadow{
		PositionStartTime: optional.Some(suite.now.Add(-time.Hour)),
	}))

	ex := mocks.NewMockExchange(suite.ctrl)
	strat := mocks.NewMockStrategy(suite.ctrl)

	ex.EXPECT().FetchOpenOrders(gomock.Any(), "BTC/USDT").Return(nil, nil)
	ex.EXPECT().FetchOHLCV(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.candles(), nil)
	ex.EXPECT().FetchPosition(gomock.Any(), "BTC/USDT").Return(types.Position{
		Symbol: "BTC/USDT", Side: types.PositionSideShort, Size: 1, EntryPrice: 110,
	}, nil)
	strat.EXPECT().GenerateSignal(gomock.Any()).Return(types.Signal{Action: types.SignalShort, Score: 0.7}, nil)

	w := suite.worker(cfg, ex, strat, mocks.NewMockNotifier(suite.ctrl))

	_, err := w.Tick(suite.ctx)
	suite.Require().NoError(err)

	snap := w.Snapshot()
	suite.Equal(engine.StateInPosition, snap.State)
	suite.Equal("10", snap.PnL.String())
	suite.InDelta(10.0/55.0, snap.ROI, 1e-9)
	suite.InDelta(99.0, snap.TakeProfit.Unwrap(), 1e-9)
	suite.InDelta(115.5, snap.StopLoss.Unwrap(), 1e-9)
	suite.Empty(suite.trades())
}

func (suite *WorkerV1TestSuite) TestExternalCloseIsBooked() {
	suite.Require().NoError(suite.store.SavePositionShadow(suite.ctx, suite.key, types.PositionShadow{
		PositionStartTime: optional.Some(suite.now.Add(-time.Hour)),
	}))

	ex := mocks.NewMockExchange(suite.ctrl)
	strat := mocks.NewMockStrategy(suite.ctrl)
	notify := mocks.NewMockNotifier(suite.ctrl)

	ex.EXPECT().FetchOpenOrders(gomock.Any(), "BTC/USDT").Return(nil, nil)
	ex.EXPECT().FetchOHLCV(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.candles(), nil).Times(2)
	gomock.InOrder(
		ex.EXPECT().FetchPosition(gomock.Any(), "BTC/USDT").Return(types.Position{
			Symbol: "BTC/USDT", Side: types.PositionSideLong, Size: 3, EntryPrice: 100,
		}, nil),
		ex.EXPECT().FetchPosition(gomock.Any(), "BTC/USDT").Return(types.Position{Side: types.PositionSideNone}, nil),
	)
	strat.EXPECT().GenerateSignal(gomock.Any()).Return(types.Signal{Action: types.SignalHold}, nil).Times(2)
	notify.EXPECT().SendTradeAlert(gomock.Any(), gomock.Any()).Return(nil)

	w := suite.worker(suite.strategyConfig(), ex, strat, notify)

	_, err := w.Tick(suite.ctx)
	suite.Require().NoError(err)
	suite.Empty(suite.trades())

	_, err = w.Tick(suite.ctx)
	suite.Require().NoError(err)

	trades := suite.trades()
	suite.Require().Len(trades, 1)
	suite.Equal(types.ExitReasonExternal, trades[0].Reason)
	suite.Equal(types.PositionSideLong, trades[0].Side)
	suite.Equal(3.0, trades[0].Amount)
	suite.True(suite.shadow().PositionStartTime.IsNone())
	suite.Equal(engine.StateFlat, w.Snapshot().State)
}

func (suite *WorkerV1TestSuite) TestRiskDenialSkipsEntry() {
	suite.Require().NoError(suite.store.SaveRiskProfile(suite.ctx, "alice", types.RiskProfile{
		MaxTradeNotional: optional.Some(50.0),
	}))

	ex := mocks.NewMockExchange(suite.ctrl)
	strat := mocks.NewMockStrategy(suite.ctrl)

	ex.EXPECT().FetchOpenOrders(gomock.Any(), "BTC/USDT").Return(nil, nil)
	ex.EXPECT().FetchOHLCV(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.candles(), nil)
	ex.EXPECT().FetchPosition(gomock.Any(), "BTC/USDT").Return(types.Position{Side: types.PositionSideNone}, nil)
	strat.EXPECT().GenerateSignal(gomock.Any()).Return(types.Signal{Action: types.SignalLong}, nil)

	w := suite.worker(suite.strategyConfig(), ex, strat, mocks.NewMockNotifier(suite.ctrl))

	delay, err := w.Tick(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(60*time.Second, delay)
	suite.Equal(engine.StateFlat, w.Snapshot().State)
	suite.Empty(suite.trades())
}

func (suite *WorkerV1TestSuite) TestRejectedEntryIsNotAnError() {
	ex := mocks.NewMockExchange(suite.ctrl)
	strat := mocks.NewMockStrategy(suite.ctrl)

	ex.EXPECT().FetchOpenOrders(gomock.Any(), "BTC/USDT").Return(nil, nil)
	ex.EXPECT().FetchOHLCV(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.candles(), nil)
	ex.EXPECT().FetchPosition(gomock.Any(), "BTC/USDT").Return(types.Position{Side: types.PositionSideNone}, nil)
	strat.EXPECT().GenerateSignal(gomock.Any()).Return(types.Signal{Action: types.SignalShort}, nil)
	ex.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return("", errors.New(errors.ErrCodeOrderFailed, "insufficient margin"))

	w := suite.worker(suite.strategyConfig(), ex, strat, mocks.NewMockNotifier(suite.ctrl))

	_, err := w.Tick(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(engine.StateFlat, w.Snapshot().State)
	suite.Equal(circuit.StateClosed, w.Snapshot().Circuit)
}

func (suite *WorkerV1TestSuite) TestEntitlementLapseClosesAndStops() {
	suite.Require().NoError(suite.store.SetTradingEntitlement(suite.ctx, "alice", false))

	ex := mocks.NewMockExchange(suite.ctrl)
	strat := mocks.NewMockStrategy(suite.ctrl)
	notify := mocks.NewMockNotifier(suite.ctrl)

	ex.EXPECT().FetchOpenOrders(gomock.Any(), "BTC/USDT").Return(nil, nil)
	ex.EXPECT().FetchOHLCV(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.candles(), nil)
	ex.EXPECT().FetchPosition(gomock.Any(), "BTC/USDT").Return(types.Position{
		Symbol: "BTC/USDT", Side: types.PositionSideLong, Size: 1, EntryPrice: 100,
	}, nil)
	strat.EXPECT().GenerateSignal(gomock.Any()).Return(types.Signal{Action: types.SignalHold}, nil)
	ex.EXPECT().ClosePosition(gomock.Any(), "BTC/USDT").Return(nil)
	notify.EXPECT().SendTradeAlert(gomock.Any(), gomock.Any()).Return(nil)
	notify.EXPECT().SendMessage(gomock.Any(), "alice", gomock.Any()).Return(nil)

	w := suite.worker(suite.strategyConfig(), ex, strat, notify)

	_, err := w.Tick(suite.ctx)
	suite.Error(err)
	suite.Equal(errors.ErrCodeEntitlementLapsed, errors.GetCode(err))

	trades := suite.trades()
	suite.Require().Len(trades, 1)
	suite.Equal(types.ExitReasonEntitlement, trades[0].Reason)
}

func (suite *WorkerV1TestSuite) TestEntitlementLapseRetriesFailedClose() {
	suite.Require().NoError(suite.store.SetTradingEntitlement(suite.ctx, "alice", false))

	ex := mocks.NewMockExchange(suite.ctrl)
	strat := mocks.NewMockStrategy(suite.ctrl)
	notify := mocks.NewMockNotifier(suite.ctrl)

	long := types.Position{Symbol: "BTC/USDT", Side: types.PositionSideLong, Size: 1, EntryPrice: 100}

	ex.EXPECT().FetchOpenOrders(gomock.Any(), "BTC/USDT").Return(nil, nil)
	ex.EXPECT().FetchOHLCV(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.candles(), nil).Times(2)
	ex.EXPECT().FetchPosition(gomock.Any(), "BTC/USDT").Return(long, nil).Times(2)
	// the signal is only consulted on the tick that detects the lapse
	strat.EXPECT().GenerateSignal(gomock.Any()).Return(types.Signal{Action: types.SignalHold}, nil).Times(1)

	gomock.InOrder(
		ex.EXPECT().ClosePosition(gomock.Any(), "BTC/USDT").Return(stderrors.New("rate limited")),
		ex.EXPECT().ClosePosition(gomock.Any(), "BTC/USDT").Return(nil),
	)
	notify.EXPECT().SendTradeAlert(gomock.Any(), gomock.Any()).Return(nil)
	notify.EXPECT().SendMessage(gomock.Any(), "alice", gomock.Any()).Return(nil).Times(1)

	w := suite.worker(suite.strategyConfig(), ex, strat, notify)

	_, err := w.Tick(suite.ctx)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeOrderFailed, errors.GetCode(err))
	suite.Contains(err.Error(), "rate limited")
	suite.False(errors.IsFatal(err))
	suite.Empty(suite.trades())
	suite.Equal(engine.StateInPosition, w.Snapshot().State)

	_, err = w.Tick(suite.ctx)
	suite.Equal(errors.ErrCodeEntitlementLapsed, errors.GetCode(err))

	trades := suite.trades()
	suite.Require().Len(trades, 1)
	suite.Equal(types.ExitReasonEntitlement, trades[0].Reason)
}

func (suite *WorkerV1TestSuite) TestEntitlementCheckedEveryKEvaluations() {
	settings := suite.settings()
	settings.EntitlementInterval = 3 * time.Minute
	settings.LoopDelayOverride = time.Minute

	store := mocks.NewMockStore(suite.ctrl)
	ex := mocks.NewMockExchange(suite.ctrl)
	strat := mocks.NewMockStrategy(suite.ctrl)

	store.EXPECT().GetPositionShadow(gomock.Any(), suite.key).Return(types.PositionShadow{}, nil).AnyTimes()
	store.EXPECT().ListOwnedOrderIDs(gomock.Any(), "alice", "BTC/USDT").Return(nil, nil)
	store.EXPECT().HasTradingEntitlement(gomock.Any(), "alice").Return(true, nil).Times(2)
	ex.EXPECT().FetchOpenOrders(gomock.Any(), "BTC/USDT").Return(nil, nil)
	ex.EXPECT().FetchOHLCV(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.candles(), nil).Times(4)
	ex.EXPECT().FetchPosition(gomock.Any(), "BTC/USDT").Return(types.Position{Side: types.PositionSideNone}, nil).Times(4)
	strat.EXPECT().GenerateSignal(gomock.Any()).Return(types.Signal{Action: types.SignalHold}, nil).Times(4)

	w, err := NewWorkerV1(suite.key, suite.strategyConfig(), settings, engine.Dependencies{
		Exchange: ex,
		Strategy: strat,
		Store:    store,
		Notifier: notifier.NewLogNotifier(logger.NewNop()),
		Clock:    func() time.Time { return suite.now },
	})
	suite.Require().NoError(err)

	for i := 0; i < 4; i++ {
		delay, err := w.Tick(suite.ctx)
		suite.Require().NoError(err)
		suite.Equal(time.Minute, delay)
	}
}

func (suite *WorkerV1TestSuite) TestLimitEntryFillsOnLaterBar() {
	series := mocks.FlatThenDrop(suite.start, time.Hour, 25, 100, 5)
	series = append(series, types.Candle{
		Time: suite.start.Add(26 * time.Hour), Open: 95, High: 97, Low: 94, Close: 96, Volume: 1000,
	})

	source := mocks.NewReplaySource(series, 26)
	paper := exchange.NewPaperExchange(source, exchange.WithPaperClock(func() time.Time { return suite.now }))

	cfg := suite.strategyConfig()
	cfg.EntryOrderKind = types.OrderKindLimit
	cfg.LimitOrderTimeout = 3 * time.Hour

	w := suite.worker(cfg, paper, suite.dipBuyer(), notifier.NewLogNotifier(logger.NewNop()))

	_, err := w.Tick(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().True(w.pending.IsSome())
	suite.Equal(w.pending.Unwrap().ID, suite.shadow().ActiveOrderID.Unwrap())
	suite.Empty(suite.trades())

	_, err = w.Tick(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(engine.StateEntering, w.Snapshot().State)

	suite.Require().True(source.Advance())

	_, err = w.Tick(suite.ctx)
	suite.Require().NoError(err)
	suite.True(w.pending.IsNone())

	trades := suite.trades()
	suite.Require().Len(trades, 1)
	suite.Equal(types.TradeActionOpen, trades[0].Action)
	suite.Equal(95.0, trades[0].Price)

	shadow := suite.shadow()
	suite.True(shadow.ActiveOrderID.IsNone())
	suite.True(shadow.PositionStartTime.IsSome())
	suite.Equal(engine.StateInPosition, w.Snapshot().State)
}

func (suite *WorkerV1TestSuite) TestLimitEntryTimesOut() {
	source := mocks.NewReplaySource(mocks.FlatThenDrop(suite.start, time.Hour, 25, 100, 5), 26)
	paper := exchange.NewPaperExchange(source, exchange.WithPaperClock(func() time.Time { return suite.now }))

	cfg := suite.strategyConfig()
	cfg.EntryOrderKind = types.OrderKindLimit
	cfg.LimitOrderTimeout = time.Hour

	w := suite.worker(cfg, paper, suite.dipBuyer(), notifier.NewLogNotifier(logger.NewNop()))

	_, err := w.Tick(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().True(w.pending.IsSome())
	first := w.pending.Unwrap().ID

	suite.now = suite.now.Add(2 * time.Hour)

	// the stale entry is cancelled and the still-active dip places a fresh one
	_, err = w.Tick(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().True(w.pending.IsSome())
	suite.NotEqual(first, w.pending.Unwrap().ID)

	open, err := paper.FetchOpenOrders(suite.ctx, "BTC/USDT")
	suite.Require().NoError(err)
	suite.Len(open, 1)
}

func (suite *WorkerV1TestSuite) TestErrorBackoffDoublesAndResets() {
	notify := mocks.NewMockNotifier(suite.ctrl)
	notify.EXPECT().SendMessage(gomock.Any(), "alice", gomock.Any()).Return(nil).Times(3)

	w := suite.worker(suite.strategyConfig(), mocks.NewMockExchange(suite.ctrl), mocks.NewMockStrategy(suite.ctrl), notify)

	expected := []time.Duration{10, 20, 40, 80, 160, 300, 300}
	for _, want := range expected {
		suite.now = suite.now.Add(time.Second)
		got := w.onError(suite.ctx, stderrors.New("transient"))
		suite.InDelta(float64(want*time.Second), float64(got), float64(time.Millisecond))
	}

	suite.Equal(7, w.Snapshot().ErrorCount)

	suite.now = suite.now.Add(601 * time.Second)
	got := w.onError(suite.ctx, stderrors.New("transient"))
	suite.InDelta(float64(10*time.Second), float64(got), float64(time.Millisecond))
	suite.Equal(1, w.Snapshot().ErrorCount)
}

func (suite *WorkerV1TestSuite) TestRunStopsOnStrategyPanic() {
	ex := mocks.NewMockExchange(suite.ctrl)
	strat := mocks.NewMockStrategy(suite.ctrl)
	notify := mocks.NewMockNotifier(suite.ctrl)

	ex.EXPECT().SetLeverage(gomock.Any(), "BTC/USDT", 1).Return(nil)
	ex.EXPECT().FetchOpenOrders(gomock.Any(), "BTC/USDT").Return(nil, nil)
	ex.EXPECT().FetchOHLCV(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(suite.candles(), nil)
	ex.EXPECT().FetchPosition(gomock.Any(), "BTC/USDT").Return(types.Position{Side: types.PositionSideNone}, nil)
	strat.EXPECT().Name().Return("broken").AnyTimes()
	strat.EXPECT().GenerateSignal(gomock.Any()).DoAndReturn(func([]types.Candle) (types.Signal, error) {
		panic("index out of range")
	})
	notify.EXPECT().SendMessage(gomock.Any(), "alice", gomock.Any()).Return(nil)

	w := suite.worker(suite.strategyConfig(), ex, strat, notify)

	var stoppedWith error

	onStop := engine.OnStopCallback(func(_ types.WorkerKey, err error) {
		stoppedWith = err
	})

	err := w.Run(suite.ctx, engine.Callbacks{OnStop: &onStop})
	suite.Error(err)
	suite.True(errors.IsFatal(err))
	suite.Equal(err, stoppedWith)

	snap := w.Snapshot()
	suite.False(snap.Alive)
	suite.Equal(engine.StateStopped, snap.State)
	suite.NotEmpty(snap.StoppedWithErr)
}

func (suite *WorkerV1TestSuite) TestRunExitsWhenContextCancelled() {
	source := mocks.NewReplaySource(mocks.FlatThenDrop(suite.start, time.Hour, 25, 100, 5), 25)
	paper := exchange.NewPaperExchange(source, exchange.WithPaperClock(func() time.Time { return suite.now }))

	ctx, cancel := context.WithCancel(suite.ctx)
	defer cancel()

	sleeps := 0
	w, err := NewWorkerV1(suite.key, suite.strategyConfig(), suite.settings(), engine.Dependencies{
		Exchange: paper,
		Strategy: suite.dipBuyer(),
		Store:    suite.store,
		Clock:    func() time.Time { return suite.now },
		Sleep: func(ctx context.Context, _ time.Duration) error {
			sleeps++
			source.Advance()

			if sleeps == 3 {
				cancel()
			}

			return ctx.Err()
		},
	})
	suite.Require().NoError(err)

	var ticks, opens atomic.Int32

	onTick := engine.OnTickCallback(func(engine.RuntimeSnapshot) { ticks.Add(1) })
	onTrade := engine.OnTradeCallback(func(alert types.TradeAlert) {
		if alert.Action == types.TradeActionOpen {
			opens.Add(1)
		}
	})

	suite.Require().NoError(w.Run(ctx, engine.Callbacks{OnTick: &onTick, OnTrade: &onTrade}))
	suite.Equal(int32(3), ticks.Load())
	suite.Equal(int32(1), opens.Load())
	suite.False(w.Snapshot().Alive)
}

func (suite *WorkerV1TestSuite) TestStopInterruptsPausedWorker() {
	ex := mocks.NewMockExchange(suite.ctrl)
	ex.EXPECT().SetLeverage(gomock.Any(), "BTC/USDT", 1).Return(nil)

	w := suite.worker(suite.strategyConfig(), ex, mocks.NewMockStrategy(suite.ctrl), notifier.NewLogNotifier(logger.NewNop()))
	w.Pause()

	ctx, cancel := context.WithCancel(suite.ctx)
	done := make(chan error, 1)

	go func() {
		done <- w.Run(ctx, engine.Callbacks{})
	}()

	suite.Eventually(func() bool { return w.Snapshot().Alive }, time.Second, 5*time.Millisecond)
	suite.True(w.Snapshot().Paused)

	cancel()

	select {
	case err := <-done:
		suite.NoError(err)
	case <-time.After(time.Second):
		suite.Fail("paused worker did not stop")
	}
}
