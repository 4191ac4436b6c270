package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// DefaultConfigID is the config id used when a tenant runs a single unconfigured worker.
const DefaultConfigID = "default"

// WorkerKey identifies a worker slot in the registry.
type WorkerKey struct {
	TenantID string `json:"tenant_id"`
	ConfigID string `json:"config_id"`
}

// NewWorkerKey builds a key, falling back to DefaultConfigID when configID is empty.
func NewWorkerKey(tenantID, configID string) WorkerKey {
	if configID == "" {
		configID = DefaultConfigID
	}

	return WorkerKey{TenantID: tenantID, ConfigID: configID}
}

func (k WorkerKey) String() string {
	return fmt.Sprintf("%s/%s", k.TenantID, k.ConfigID)
}

// StrategyConfig is the immutable configuration of one worker.
// Percentages are expressed as fractions (0.02 = 2%); zero disables take-profit or stop-loss.
type StrategyConfig struct {
	Symbol       string         `yaml:"symbol" json:"symbol" jsonschema:"description=Trading pair such as BTC/USDT" validate:"required"`
	Timeframe    Timeframe      `yaml:"timeframe" json:"timeframe" validate:"required,oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 8h 12h 1d"`
	TradeSize    float64        `yaml:"trade_size" json:"trade_size" jsonschema:"description=Order amount in quote currency" validate:"required,gt=0"`
	StrategyName string         `yaml:"strategy" json:"strategy" validate:"required"`
	Params       map[string]any `yaml:"params" json:"params"`
	DryRun       bool           `yaml:"dry_run" json:"dry_run"`
	Exchange     string         `yaml:"exchange" json:"exchange" validate:"required"`
	Leverage     int            `yaml:"leverage" json:"leverage" validate:"gte=1,lte=125"`
	// TakeProfitPct is the take profit distance from entry. Zero disables it.
	TakeProfitPct float64 `yaml:"take_profit_pct" json:"take_profit_pct" validate:"gte=0,lt=10"`
	// StopLossPct is the stop loss distance from entry. Zero disables it.
	StopLossPct       float64       `yaml:"stop_loss_pct" json:"stop_loss_pct" validate:"gte=0,lt=1"`
	EntryOrderKind    OrderKind     `yaml:"entry_order_kind" json:"entry_order_kind" validate:"omitempty,oneof=market limit"`
	LimitOrderTimeout time.Duration `yaml:"limit_order_timeout" json:"limit_order_timeout"`
}

// Validate validates the StrategyConfig struct.
func (c *StrategyConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid strategy config", err)
	}

	return nil
}

// EntryKind returns the entry order kind, defaulting to market.
func (c StrategyConfig) EntryKind() OrderKind {
	if c.EntryOrderKind == "" {
		return OrderKindMarket
	}

	return c.EntryOrderKind
}

// StrategyConfigUpdate is a partial update. Fields that are None are left unchanged.
type StrategyConfigUpdate struct {
	Symbol        optional.Option[string]         `json:"symbol"`
	Timeframe     optional.Option[Timeframe]      `json:"timeframe"`
	TradeSize     optional.Option[float64]        `json:"trade_size"`
	StrategyName  optional.Option[string]         `json:"strategy"`
	Params        optional.Option[map[string]any] `json:"params"`
	DryRun        optional.Option[bool]           `json:"dry_run"`
	Exchange      optional.Option[string]         `json:"exchange"`
	Leverage      optional.Option[int]            `json:"leverage"`
	TakeProfitPct optional.Option[float64]        `json:"take_profit_pct"`
	StopLossPct   optional.Option[float64]        `json:"stop_loss_pct"`
}

// Apply returns a copy of cfg with every Some field of u applied.
func (u StrategyConfigUpdate) Apply(cfg StrategyConfig) StrategyConfig {
	out := cfg

	if u.Symbol.IsSome() {
		out.Symbol = u.Symbol.Unwrap()
	}

	if u.Timeframe.IsSome() {
		out.Timeframe = u.Timeframe.Unwrap()
	}

	if u.TradeSize.IsSome() {
		out.TradeSize = u.TradeSize.Unwrap()
	}

	if u.StrategyName.IsSome() {
		out.StrategyName = u.StrategyName.Unwrap()
	}

	if u.Params.IsSome() {
		out.Params = u.Params.Unwrap()
	}

	if u.DryRun.IsSome() {
		out.DryRun = u.DryRun.Unwrap()
	}

	if u.Exchange.IsSome() {
		out.Exchange = u.Exchange.Unwrap()
	}

	if u.Leverage.IsSome() {
		out.Leverage = u.Leverage.Unwrap()
	}

	if u.TakeProfitPct.IsSome() {
		out.TakeProfitPct = u.TakeProfitPct.Unwrap()
	}

	if u.StopLossPct.IsSome() {
		out.StopLossPct = u.StopLossPct.Unwrap()
	}

	return out
}
