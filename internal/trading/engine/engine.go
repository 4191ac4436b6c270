package engine

import (
	"context"
	"math"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-fleet/internal/circuit"
	"github.com/rxtech-lab/argo-fleet/internal/exchange"
	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/notifier"
	"github.com/rxtech-lab/argo-fleet/internal/persistence"
	"github.com/rxtech-lab/argo-fleet/internal/risk"
	"github.com/rxtech-lab/argo-fleet/internal/strategy"
	"github.com/rxtech-lab/argo-fleet/internal/telemetry"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	pkgstrategy "github.com/rxtech-lab/argo-fleet/pkg/strategy"
)

// State is the position axis of a worker's control loop.
type State string

const (
	StateInit       State = "INIT"
	StateConnected  State = "CONNECTED"
	StateFlat       State = "FLAT"
	StateEntering   State = "ENTERING"
	StateInPosition State = "IN_POSITION"
	StateExiting    State = "EXITING"
	StateStopped    State = "STOPPED"
)

// RuntimeSnapshot is an immutable view of a worker's in-memory state. It is
// rebuilt by the worker once per tick and never persisted.
type RuntimeSnapshot struct {
	Key          types.WorkerKey                     `json:"key"`
	Config       types.StrategyConfig                `json:"config"`
	State        State                               `json:"state"`
	Circuit      circuit.State                       `json:"circuit"`
	Paused       bool                                `json:"paused"`
	Alive        bool                                `json:"alive"`
	Position     types.Position                      `json:"position"`
	PendingOrder optional.Option[types.PendingOrder] `json:"pending_order"`
	LastSignal   types.Signal                        `json:"last_signal"`
	CurrentPrice float64                             `json:"current_price"`
	// PnL is the unrealized PnL of the open position.
	PnL            decimal.Decimal          `json:"pnl"`
	ROI            float64                  `json:"roi"`
	RealizedPnL    decimal.Decimal          `json:"realized_pnl"`
	TakeProfit     optional.Option[float64] `json:"take_profit_price"`
	StopLoss       optional.Option[float64] `json:"stop_loss_price"`
	Ticks          int64                    `json:"ticks"`
	ErrorCount     int                      `json:"error_count"`
	LastError      string                   `json:"last_error,omitempty"`
	StartedAt      time.Time                `json:"started_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
	Logs           []string                 `json:"logs,omitempty"`
	StoppedWithErr string                   `json:"stopped_with_error,omitempty"`
}

// OnTickCallback is called after every evaluated tick with the published snapshot.
type OnTickCallback func(snapshot RuntimeSnapshot)

// OnTradeCallback is called for every entry and exit the worker books.
type OnTradeCallback func(alert types.TradeAlert)

// OnStopCallback is called when the loop exits (always called via defer).
type OnStopCallback func(key types.WorkerKey, err error)

// Callbacks holds the optional lifecycle hooks of a worker.
// All fields are pointers - nil means no callback will be invoked.
type Callbacks struct {
	OnTick  *OnTickCallback
	OnTrade *OnTradeCallback
	OnStop  *OnStopCallback
}

// Config holds the loop tuning shared by every worker of a process.
type Config struct {
	// ErrorBackoffBase is the first sleep after a transient error. It doubles per occurrence.
	ErrorBackoffBase time.Duration `json:"error_backoff_base" yaml:"error_backoff_base" jsonschema:"description=First backoff after a transient error,default=10s"`
	// ErrorBackoffMax caps the error backoff.
	ErrorBackoffMax time.Duration `json:"error_backoff_max" yaml:"error_backoff_max" jsonschema:"description=Backoff cap,default=5m"`
	// ErrorResetAfter resets the error counter when no error happened for this long.
	ErrorResetAfter time.Duration `json:"error_reset_after" yaml:"error_reset_after" jsonschema:"description=Quiet period that resets the error counter,default=10m"`
	// EntitlementInterval is converted to a tick count using the loop delay.
	EntitlementInterval time.Duration `json:"entitlement_interval" yaml:"entitlement_interval" jsonschema:"description=How often the trading entitlement is re-checked,default=5m"`
	// LoopDelayOverride replaces the per-timeframe table when set.
	LoopDelayOverride time.Duration  `json:"loop_delay_override" yaml:"loop_delay_override" jsonschema:"description=Fixed inter-tick delay"`
	LogTailSize       int            `json:"log_tail_size" yaml:"log_tail_size" jsonschema:"description=Number of log lines kept per worker,default=200"`
	Circuit           circuit.Config `json:"circuit" yaml:"circuit"`
	// NotifyEvery sends an error notification on the first error and every n-th after it.
	NotifyEvery int `json:"notify_every" yaml:"notify_every" jsonschema:"default=5"`
}

// DefaultConfig returns the loop tuning used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		ErrorBackoffBase:    10 * time.Second,
		ErrorBackoffMax:     300 * time.Second,
		ErrorResetAfter:     600 * time.Second,
		EntitlementInterval: 5 * time.Minute,
		LoopDelayOverride:   0,
		LogTailSize:         200,
		Circuit:             circuit.DefaultConfig(),
		NotifyEvery:         5,
	}
}

// GetConfigSchema returns the JSON schema for Config.
func GetConfigSchema() (string, error) {
	return pkgstrategy.ToJSONSchema(&Config{}) //nolint:exhaustruct // Empty config for schema generation
}

const defaultLoopDelay = 60 * time.Second

var loopDelays = map[types.Timeframe]time.Duration{
	types.Timeframe1m:  10 * time.Second,
	types.Timeframe3m:  15 * time.Second,
	types.Timeframe5m:  20 * time.Second,
	types.Timeframe15m: 30 * time.Second,
	types.Timeframe30m: 45 * time.Second,
	types.Timeframe1h:  60 * time.Second,
	types.Timeframe2h:  120 * time.Second,
	types.Timeframe4h:  120 * time.Second,
	types.Timeframe6h:  180 * time.Second,
	types.Timeframe8h:  180 * time.Second,
	types.Timeframe12h: 180 * time.Second,
	types.Timeframe1d:  300 * time.Second,
}

// LoopDelay returns the inter-tick sleep for a timeframe.
func (c Config) LoopDelay(tf types.Timeframe) time.Duration {
	if c.LoopDelayOverride > 0 {
		return c.LoopDelayOverride
	}

	if d, ok := loopDelays[tf]; ok {
		return d
	}

	return defaultLoopDelay
}

// EntitlementEvery converts the entitlement interval into a tick count, at least 1.
func (c Config) EntitlementEvery(tf types.Timeframe) int {
	delay := c.LoopDelay(tf)
	if c.EntitlementInterval <= 0 || delay <= 0 {
		return 1
	}

	n := int(math.Ceil(float64(c.EntitlementInterval) / float64(delay)))
	if n < 1 {
		return 1
	}

	return n
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Dependencies are the collaborators injected into a worker at construction.
type Dependencies struct {
	Exchange exchange.Exchange
	Strategy strategy.Strategy
	Store    persistence.Store
	Notifier notifier.Notifier
	Gate     *risk.Gate
	// Logger is the process logger; the worker derives its own sink from it.
	Logger  *logger.Logger
	Metrics *telemetry.Metrics
	Clock   func() time.Time
	Sleep   Sleeper
}

// TradingEngine is one worker's control loop.
type TradingEngine interface {
	// Key returns the registry slot of the worker.
	Key() types.WorkerKey

	// Run reconciles state with the exchange and loops until ctx is cancelled,
	// the entitlement lapses or a fatal error occurs. Only fatal errors are returned.
	Run(ctx context.Context, callbacks Callbacks) error

	// Pause blocks the loop at its next tick boundary.
	Pause()

	// Resume releases a paused loop.
	Resume()

	// Snapshot returns the latest published runtime state.
	Snapshot() RuntimeSnapshot
}
