package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-fleet/internal/backtest"
	"github.com/rxtech-lab/argo-fleet/internal/optimize"
	"github.com/rxtech-lab/argo-fleet/internal/strategy"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

func optimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Search a strategy's parameter space over a candle file",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "YAML search `FILE` (strategy, space, fixed, max_trials, seed, backtest)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Parquet or CSV candle `FILE`",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "parallelism",
				Usage: "Concurrent trials; overrides the config file",
			},
			&cli.IntFlag{
				Name:  "top",
				Usage: "Number of ranked trials to print",
				Value: 10,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the result to `FILE` instead of stdout",
			},
		}, windowFlags()...),
		Action: optimizeAction,
	}
}

func loadSearchConfig(path string) (optimize.Config, error) {
	cfg := optimize.Config{Backtest: backtest.DefaultConfig()}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read %s", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		if errors.HasCode(err, errors.ErrCodeInvalidRange) {
			return cfg, err
		}

		return cfg, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse %s", path)
	}

	return cfg, nil
}

func optimizeAction(ctx context.Context, cmd *cli.Command) error {
	log, err := cliLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	cfg, err := loadSearchConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	if cmd.IsSet("parallelism") {
		cfg.Parallelism = int(cmd.Int("parallelism"))
	}

	candles, err := backtest.LoadCandles(ctx, cmd.String("data"), timestampOption(cmd, "start"), timestampOption(cmd, "end"), log)
	if err != nil {
		return err
	}

	searcher := optimize.NewSearcher(strategy.NewDefaultRegistry(), log)

	out, err := runJob(ctx, log, optimize.JobName, searcher.Job(cfg, candles))
	if err != nil {
		return err
	}

	result, ok := out.(optimize.Result)
	if !ok {
		return errors.Newf(errors.ErrCodeInvariantViolation, "unexpected search result %T", out)
	}

	log.Info("Search finished",
		zap.String("strategy", cfg.Strategy),
		zap.Int("candidates", result.Total),
		zap.Int("skipped", result.Skipped),
	)

	if top := int(cmd.Int("top")); top > 0 && len(result.Ranked) > top {
		result.Ranked = result.Ranked[:top]
	}

	return writeOutput(cmd.String("output"), result)
}
