package registry

import (
	"context"

	"github.com/rxtech-lab/argo-fleet/internal/exchange"
	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/notifier"
	"github.com/rxtech-lab/argo-fleet/internal/persistence"
	"github.com/rxtech-lab/argo-fleet/internal/risk"
	"github.com/rxtech-lab/argo-fleet/internal/strategy"
	"github.com/rxtech-lab/argo-fleet/internal/telemetry"
	"github.com/rxtech-lab/argo-fleet/internal/trading/engine"
	"github.com/rxtech-lab/argo-fleet/internal/trading/engine/engine_v1"
	"github.com/rxtech-lab/argo-fleet/internal/types"
)

// EngineDeps are the process-wide collaborators shared by every worker.
type EngineDeps struct {
	Clients    *exchange.ClientCache
	Strategies *strategy.Registry
	Store      persistence.Store
	Notifier   notifier.Notifier
	Gate       *risk.Gate
	Logger     *logger.Logger
	Metrics    *telemetry.Metrics
	Settings   engine.Config
}

// NewEngineFactory returns a Factory that builds a WorkerV1 from the shared dependencies.
func NewEngineFactory(deps EngineDeps) Factory {
	return func(ctx context.Context, key types.WorkerKey, config types.StrategyConfig) (engine.TradingEngine, error) {
		client, err := deps.Clients.Get(ctx, key.TenantID, config.Exchange, config.DryRun)
		if err != nil {
			return nil, err
		}

		strat, err := deps.Strategies.Create(config.StrategyName, config.Params)
		if err != nil {
			return nil, err
		}

		return engine_v1.NewWorkerV1(key, config, deps.Settings, engine.Dependencies{
			Exchange: client,
			Strategy: strat,
			Store:    deps.Store,
			Notifier: deps.Notifier,
			Gate:     deps.Gate,
			Logger:   deps.Logger,
			Metrics:  deps.Metrics,
		})
	}
}
