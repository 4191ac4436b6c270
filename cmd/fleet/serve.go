package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-fleet/internal/circuit"
	"github.com/rxtech-lab/argo-fleet/internal/commission_fee"
	"github.com/rxtech-lab/argo-fleet/internal/config"
	"github.com/rxtech-lab/argo-fleet/internal/exchange"
	"github.com/rxtech-lab/argo-fleet/internal/jobs"
	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/notifier"
	"github.com/rxtech-lab/argo-fleet/internal/optimize"
	"github.com/rxtech-lab/argo-fleet/internal/persistence"
	"github.com/rxtech-lab/argo-fleet/internal/registry"
	"github.com/rxtech-lab/argo-fleet/internal/risk"
	"github.com/rxtech-lab/argo-fleet/internal/server"
	"github.com/rxtech-lab/argo-fleet/internal/strategy"
	"github.com/rxtech-lab/argo-fleet/internal/telemetry"
	"github.com/rxtech-lab/argo-fleet/internal/trading/engine"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

const shutdownGrace = 30 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the worker fleet and its HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the fleet config `FILE`",
				Sources: cli.EnvVars("FLEET_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "Directory search jobs may read candle files from",
				Value: "data",
			},
		},
		Action: serveAction,
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		cfg := config.Default()

		return cfg, cfg.Validate()
	}

	return config.Load(path)
}

// engineSettings maps the process config onto the per-worker loop settings.
func engineSettings(cfg config.Config) engine.Config {
	settings := engine.DefaultConfig()
	settings.ErrorBackoffBase = cfg.Engine.ErrorBackoffBase
	settings.ErrorBackoffMax = cfg.Engine.ErrorBackoffMax
	settings.ErrorResetAfter = cfg.Engine.ErrorResetAfter
	settings.EntitlementInterval = cfg.Engine.EntitlementInterval
	settings.LoopDelayOverride = cfg.Engine.LoopDelayOverride
	settings.LogTailSize = cfg.Engine.LogTailSize
	settings.Circuit = circuit.Config{
		FailureThreshold: cfg.Circuit.FailureThreshold,
		Window:           cfg.Circuit.Window,
		Cooldown:         cfg.Circuit.Cooldown,
	}

	return settings
}

func openStore(cfg config.PersistenceConfig, log *logger.Logger) (persistence.Store, error) {
	switch cfg.Driver {
	case "duckdb":
		return persistence.NewDuckDBStore(cfg.DSN, log)
	case "memory", "":
		return persistence.NewMemoryStore(), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown persistence driver %s", cfg.Driver)
	}
}

func buildNotifier(cfg config.NotifierConfig, log *logger.Logger) notifier.Notifier {
	multi := notifier.Multi{notifier.NewLogNotifier(log)}
	if cfg.WebhookURL != "" {
		multi = append(multi, notifier.NewWebhookNotifier(cfg.WebhookURL, cfg.Timeout))
	}

	return multi
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}

	log, err := logger.NewLoggerWithLevel(level)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to create logger", err)
	}
	defer log.Sync() //nolint:errcheck

	provider, shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}

	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	metrics, err := telemetry.NewMetrics(provider)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.Persistence, log)
	if err != nil {
		return err
	}
	defer store.Close()

	strategies := strategy.NewDefaultRegistry()
	clients := exchange.NewClientCache(store, log,
		exchange.WithPaperStartingBalance(cfg.Exchange.PaperBalance),
		exchange.WithCachePaperFee(commission_fee.GetCommissionFeeHandler(cfg.Exchange.Broker)),
		exchange.WithTestnet(cfg.Exchange.Binance.Testnet),
		exchange.WithRateLimit(cfg.Exchange.RateLimitPerSecond, cfg.Exchange.Burst),
	)

	factory := registry.NewEngineFactory(registry.EngineDeps{
		Clients:    clients,
		Strategies: strategies,
		Store:      store,
		Notifier:   buildNotifier(cfg.Notifier, log),
		Gate:       risk.NewGate(store, log, risk.WithFailOpen(cfg.Risk.FailOpen)),
		Logger:     log,
		Metrics:    metrics,
		Settings:   engineSettings(cfg),
	})

	reg := registry.NewRegistry(factory, store, log,
		registry.WithBaseContext(ctx),
		registry.WithStopTimeout(cfg.Engine.StopTimeout),
		registry.WithMetrics(metrics),
		registry.WithOnStop(func(key types.WorkerKey, err error) {
			if err != nil {
				log.Error("Worker stopped with error", zap.String("worker", key.String()), zap.Error(err))
			}
		}),
	)

	dispatcher := jobs.NewDispatcher(log, jobs.WithBufferSize(cfg.Jobs.ProgressBuffer))
	defer dispatcher.Close()

	searcher := optimize.NewSearcher(strategies, log, optimize.WithMetrics(metrics))

	for _, w := range cfg.Workers {
		key, err := reg.Start(ctx, w.Tenant, w.Strategy, w.ConfigID)
		if err != nil {
			log.Error("Failed to start configured worker", zap.String("worker", key.String()), zap.Error(err))

			continue
		}

		log.Info("Started configured worker", zap.String("worker", key.String()))
	}

	srv := server.New(reg, dispatcher, searcher, log,
		server.WithDataDir(cmd.String("data")),
		server.WithSearchParallelism(cfg.Jobs.SearchParallelism),
		server.WithDefaultMaxTrials(cfg.Jobs.DefaultSearchTrial),
	)

	serveErr := srv.ListenAndServe(ctx, cfg.Server.Listen)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := reg.Shutdown(shutdownCtx); err != nil {
		log.Error("Worker shutdown did not finish", zap.Error(err))
	}

	return serveErr
}
