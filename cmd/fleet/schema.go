package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/argo-fleet/internal/config"
	"github.com/rxtech-lab/argo-fleet/internal/strategy"
	"github.com/rxtech-lab/argo-fleet/internal/trading/engine"
	"github.com/rxtech-lab/argo-fleet/pkg/marketdata"
)

func printSchema(generate func() (string, error)) cli.ActionFunc {
	return func(_ context.Context, _ *cli.Command) error {
		schema, err := generate()
		if err != nil {
			return err
		}

		fmt.Println(schema)

		return nil
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print JSON schemas for config files and strategy parameters",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Fleet process config",
				Action: printSchema(func() (string, error) {
					cfg := config.Default()

					return cfg.GenerateSchemaJSON()
				}),
			},
			{
				Name:   "engine",
				Usage:  "Per-worker loop settings",
				Action: printSchema(engine.GetConfigSchema),
			},
			{
				Name:   "download",
				Usage:  "Market data download request",
				Action: printSchema(marketdata.GetDownloadSchema),
			},
			{
				Name:      "strategy",
				Usage:     "Parameters of a registered strategy",
				ArgsUsage: "NAME",
				Action: func(_ context.Context, cmd *cli.Command) error {
					registry := strategy.NewDefaultRegistry()

					name := cmd.Args().First()
					if name == "" {
						for _, n := range registry.Names() {
							d, _ := registry.Describe(n)
							fmt.Printf("%-16s %s\n", n, d.Description)
						}

						return nil
					}

					schema, err := registry.ParamsSchema(name)
					if err != nil {
						return err
					}

					fmt.Println(schema)

					return nil
				},
			},
		},
	}
}
