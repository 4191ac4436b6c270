// Package backtest evaluates a strategy over a historical candle series in a
// single vectorized pass.
package backtest

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/rxtech-lab/argo-fleet/internal/commission_fee"
	"github.com/rxtech-lab/argo-fleet/internal/strategy"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

const (
	ExitReasonSignal     = "exit_signal"
	ExitReasonStopLoss   = "stop_loss"
	ExitReasonTakeProfit = "take_profit"
	// ExitReasonEndOfData closes a position still open on the last bar at its close.
	ExitReasonEndOfData = "end_of_data"
)

// Config holds the account model of a backtest.
type Config struct {
	Symbol          string          `yaml:"symbol" json:"symbol"`
	Timeframe       types.Timeframe `yaml:"timeframe" json:"timeframe"`
	StartingBalance float64         `yaml:"starting_balance" json:"starting_balance" validate:"gt=0"`
	// PositionFraction is the share of the balance committed per entry.
	PositionFraction float64 `yaml:"position_fraction" json:"position_fraction" validate:"gt=0,lte=1"`
	// TakeProfitPct and StopLossPct are fractions of the entry price. Zero disables them.
	TakeProfitPct float64               `yaml:"take_profit_pct" json:"take_profit_pct" validate:"gte=0"`
	StopLossPct   float64               `yaml:"stop_loss_pct" json:"stop_loss_pct" validate:"gte=0,lt=1"`
	Broker        commission_fee.Broker `yaml:"broker" json:"broker"`
}

// DefaultConfig returns a 10,000 quote balance, full allocation and Binance futures taker fees.
func DefaultConfig() Config {
	return Config{
		StartingBalance:  10000,
		PositionFraction: 1,
		Broker:           commission_fee.BrokerBinanceFutures,
	}
}

// Result is the outcome of one backtest.
type Result struct {
	Trades []types.BacktestTrade `json:"trades"`
	Stats  types.BacktestStats   `json:"stats"`
}

// Evaluator runs backtests. It holds no per-run state and is safe for concurrent use.
type Evaluator struct {
	config Config
	fee    commission_fee.CommissionFee
	now    func() time.Time
}

type Option func(*Evaluator)

// WithClock sets the clock used for the stats timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// WithCommissionFee overrides the fee model chosen by Config.Broker.
func WithCommissionFee(fee commission_fee.CommissionFee) Option {
	return func(e *Evaluator) {
		e.fee = fee
	}
}

func NewEvaluator(config Config, opts ...Option) *Evaluator {
	if config.StartingBalance <= 0 {
		config.StartingBalance = DefaultConfig().StartingBalance
	}

	if config.PositionFraction <= 0 || config.PositionFraction > 1 {
		config.PositionFraction = DefaultConfig().PositionFraction
	}

	e := &Evaluator{
		config: config,
		fee:    commission_fee.GetCommissionFeeHandler(config.Broker),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Evaluator) Config() Config {
	return e.config
}

type openTrade struct {
	index    int
	price    float64
	size     float64
	fee      float64
	stopLoss float64
	target   float64
}

// Run precomputes the strategy's indicator and enter/exit columns over candles
// and walks them once. Positions are long only. While flat, enter opens a
// position at the bar's close; while in a position, checked in this order,
// exit closes at the close, a low at or below the stop-loss closes at the
// stop-loss price, and a high at or above the take-profit closes at the
// take-profit price. A bar reaching both levels therefore resolves to the
// stop-loss. Trades are always closed on a bar after the one they opened on.
func (e *Evaluator) Run(strat strategy.Strategy, params map[string]any, candles []types.Candle) (Result, error) {
	if len(candles) == 0 {
		return Result{}, errors.New(errors.ErrCodeInsufficientData, "no candles to backtest")
	}

	frame := strategy.NewFrame(candles)
	if err := strategy.Populate(strat, frame); err != nil {
		return Result{}, err
	}

	balance := e.config.StartingBalance
	trades := make([]types.BacktestTrade, 0)

	var position *openTrade

	closeAt := func(i int, price float64, reason string) {
		exitFee := e.fee.Calculate(position.size, price)
		pnl := (price-position.price)*position.size - position.fee - exitFee
		balance += pnl

		trades = append(trades, types.BacktestTrade{
			EntryTime:  frame.Time[position.index],
			ExitTime:   frame.Time[i],
			Side:       types.PositionSideLong,
			EntryPrice: position.price,
			ExitPrice:  price,
			Size:       position.size,
			EntryFee:   position.fee,
			ExitFee:    exitFee,
			PnL:        pnl,
			Reason:     reason,
			Bars:       i - position.index,
		})
		position = nil
	}

	for i := 0; i < frame.Len(); i++ {
		if position == nil {
			if !frame.Enter[i] {
				continue
			}

			price := frame.Close[i]
			if price <= 0 || balance <= 0 {
				continue
			}

			size := balance * e.config.PositionFraction / price
			position = &openTrade{
				index: i,
				price: price,
				size:  size,
				fee:   e.fee.Calculate(size, price),
			}

			if e.config.StopLossPct > 0 {
				position.stopLoss = price * (1 - e.config.StopLossPct)
			}

			if e.config.TakeProfitPct > 0 {
				position.target = price * (1 + e.config.TakeProfitPct)
			}

			continue
		}

		switch {
		case frame.Exit[i]:
			closeAt(i, frame.Close[i], ExitReasonSignal)
		case position.stopLoss > 0 && frame.Low[i] <= position.stopLoss:
			closeAt(i, position.stopLoss, ExitReasonStopLoss)
		case position.target > 0 && frame.High[i] >= position.target:
			closeAt(i, position.target, ExitReasonTakeProfit)
		}
	}

	if position != nil {
		last := frame.Len() - 1
		if last > position.index {
			closeAt(last, frame.Close[last], ExitReasonEndOfData)
		} else {
			// opened on the last bar; nothing to evaluate it against
			position = nil
		}
	}

	stats := e.summarize(strat.Name(), params, frame, trades, balance)

	return Result{Trades: trades, Stats: stats}, nil
}

func (e *Evaluator) summarize(name string, params map[string]any, frame *strategy.Frame, trades []types.BacktestTrade, final float64) types.BacktestStats {
	start := e.config.StartingBalance

	stats := types.BacktestStats{
		ID:              uuid.NewString(),
		Timestamp:       e.now(),
		Symbol:          e.config.Symbol,
		Timeframe:       e.config.Timeframe,
		Strategy:        name,
		Params:          params,
		Bars:            frame.Len(),
		StartingBalance: start,
		FinalBalance:    final,
		TotalReturn:     (final - start) / start,
	}

	if n := frame.Len(); n > 0 && frame.Close[0] > 0 {
		stats.BuyAndHoldReturn = frame.Close[n-1]/frame.Close[0] - 1
	}

	if len(trades) == 0 {
		return stats
	}

	equity := start
	peak := start
	minBars := math.MaxInt
	totalBars := 0

	stats.TradePnl.MaximumLoss = math.Inf(1)
	stats.TradePnl.MaximumProfit = math.Inf(-1)

	for _, t := range trades {
		stats.TradeResult.NumberOfTrades++

		switch {
		case t.PnL > 0:
			stats.TradeResult.NumberOfWinningTrades++
		case t.PnL < 0:
			stats.TradeResult.NumberOfLosingTrades++
		}

		stats.TradePnl.RealizedPnL += t.PnL
		stats.TradePnl.TotalFees += t.EntryFee + t.ExitFee
		stats.TradePnl.MaximumLoss = math.Min(stats.TradePnl.MaximumLoss, t.PnL)
		stats.TradePnl.MaximumProfit = math.Max(stats.TradePnl.MaximumProfit, t.PnL)

		equity += t.PnL
		peak = math.Max(peak, equity)

		if peak > 0 {
			stats.TradeResult.MaxDrawdown = math.Max(stats.TradeResult.MaxDrawdown, (peak-equity)/peak)
		}

		minBars = min(minBars, t.Bars)
		stats.HoldingBars.Max = max(stats.HoldingBars.Max, t.Bars)
		totalBars += t.Bars
	}

	stats.TradeResult.WinRate = float64(stats.TradeResult.NumberOfWinningTrades) / float64(len(trades))
	stats.HoldingBars.Min = minBars
	stats.HoldingBars.Avg = float64(totalBars) / float64(len(trades))

	return stats
}
