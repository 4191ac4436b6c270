package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/moznion/go-optional"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-fleet/internal/backtest"
	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/internal/strategy"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

func windowFlags() []cli.Flag {
	return []cli.Flag{
		&cli.TimestampFlag{
			Name:   "start",
			Usage:  "Only use candles at or after `DATE`",
			Config: cli.TimestampConfig{Layouts: []string{time.DateOnly, time.RFC3339}},
		},
		&cli.TimestampFlag{
			Name:   "end",
			Usage:  "Only use candles at or before `DATE`",
			Config: cli.TimestampConfig{Layouts: []string{time.DateOnly, time.RFC3339}},
		},
	}
}

func timestampOption(cmd *cli.Command, name string) optional.Option[time.Time] {
	if !cmd.IsSet(name) {
		return optional.None[time.Time]()
	}

	return optional.Some(cmd.Timestamp(name).UTC())
}

func cliLogger(cmd *cli.Command) (*logger.Logger, error) {
	log, err := logger.NewLoggerWithLevel(cmd.String("log-level"))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to create logger", err)
	}

	return log, nil
}

// writeOutput writes v as indented JSON to path, or to stdout when path is empty.
func writeOutput(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeUnknown, "failed to encode output", err)
	}

	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)

		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(errors.ErrCodeUnknown, err, "failed to write %s", path)
	}

	return nil
}

func backtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "Backtest one strategy configuration over a candle file",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Parquet or CSV candle `FILE`",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "strategy",
				Aliases:  []string{"s"},
				Usage:    "Registered strategy name",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "params",
				Usage: "Strategy parameters as a JSON object",
				Value: "{}",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML `FILE` with backtest settings (balance, fees, stop-loss, take-profit)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the result to `FILE` instead of stdout",
			},
		}, windowFlags()...),
		Action: backtestAction,
	}
}

func loadBacktestConfig(path string) (backtest.Config, error) {
	cfg := backtest.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read %s", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse %s", path)
	}

	return cfg, nil
}

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	log, err := cliLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	var params map[string]any
	if err := json.Unmarshal([]byte(cmd.String("params")), &params); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "params must be a JSON object", err)
	}

	cfg, err := loadBacktestConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	strat, err := strategy.NewDefaultRegistry().Create(cmd.String("strategy"), params)
	if err != nil {
		return err
	}

	candles, err := backtest.LoadCandles(ctx, cmd.String("data"), timestampOption(cmd, "start"), timestampOption(cmd, "end"), log)
	if err != nil {
		return err
	}

	result, err := backtest.NewEvaluator(cfg).Run(strat, params, candles)
	if err != nil {
		return err
	}

	return writeOutput(cmd.String("output"), result)
}
