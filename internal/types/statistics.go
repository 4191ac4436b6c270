package types

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// BacktestTrade is one round trip of a backtest.
type BacktestTrade struct {
	EntryTime  time.Time    `yaml:"entry_time" json:"entry_time"`
	ExitTime   time.Time    `yaml:"exit_time" json:"exit_time"`
	Side       PositionSide `yaml:"side" json:"side"`
	EntryPrice float64      `yaml:"entry_price" json:"entry_price"`
	ExitPrice  float64      `yaml:"exit_price" json:"exit_price"`
	Size       float64      `yaml:"size" json:"size"`
	EntryFee   float64      `yaml:"entry_fee" json:"entry_fee"`
	ExitFee    float64      `yaml:"exit_fee" json:"exit_fee"`
	// PnL is net of both fees.
	PnL    float64 `yaml:"pnl" json:"pnl"`
	Reason string  `yaml:"reason" json:"reason"`
	// Bars is the number of bars the position was held.
	Bars int `yaml:"bars" json:"bars"`
}

type TradeHoldingBars struct {
	Min int     `yaml:"min" json:"min"`
	Max int     `yaml:"max" json:"max"`
	Avg float64 `yaml:"avg" json:"avg"`
}

type TradePnl struct {
	// RealizedPnL sums the net PnL of every trade.
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl"`
	TotalFees   float64 `yaml:"total_fees" json:"total_fees"`
	// MaximumLoss is the worst single trade.
	MaximumLoss float64 `yaml:"maximum_loss" json:"maximum_loss"`
	// MaximumProfit is the best single trade.
	MaximumProfit float64 `yaml:"maximum_profit" json:"maximum_profit"`
}

type TradeResult struct {
	NumberOfTrades        int     `yaml:"number_of_trades" json:"number_of_trades"`
	NumberOfWinningTrades int     `yaml:"number_of_winning_trades" json:"number_of_winning_trades"`
	NumberOfLosingTrades  int     `yaml:"number_of_losing_trades" json:"number_of_losing_trades"`
	WinRate               float64 `yaml:"win_rate" json:"win_rate"`
	// MaxDrawdown is the largest peak-to-trough fall of the balance, as a fraction.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
}

// BacktestStats summarises one backtest run.
type BacktestStats struct {
	ID              string         `yaml:"id" json:"id"`
	Timestamp       time.Time      `yaml:"timestamp" json:"timestamp"`
	Symbol          string         `yaml:"symbol" json:"symbol"`
	Timeframe       Timeframe      `yaml:"timeframe" json:"timeframe"`
	Strategy        string         `yaml:"strategy" json:"strategy"`
	Params          map[string]any `yaml:"params" json:"params"`
	Bars            int            `yaml:"bars" json:"bars"`
	StartingBalance float64        `yaml:"starting_balance" json:"starting_balance"`
	FinalBalance    float64        `yaml:"final_balance" json:"final_balance"`
	// TotalReturn is (final - starting) / starting.
	TotalReturn      float64          `yaml:"total_return" json:"total_return"`
	BuyAndHoldReturn float64          `yaml:"buy_and_hold_return" json:"buy_and_hold_return"`
	TradeResult      TradeResult      `yaml:"trade_result" json:"trade_result"`
	TradePnl         TradePnl         `yaml:"trade_pnl" json:"trade_pnl"`
	HoldingBars      TradeHoldingBars `yaml:"holding_bars" json:"holding_bars"`
}

// WriteBacktestStats writes stats as a YAML list.
func WriteBacktestStats(path string, stats []BacktestStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestFailed, "failed to marshal backtest stats", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(errors.ErrCodeBacktestFailed, err, "failed to write backtest stats to %s", path)
	}

	return nil
}
