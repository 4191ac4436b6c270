package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/argo-fleet/internal/version"
)

func main() {
	cmd := &cli.Command{
		Name:    "fleet",
		Usage:   "Run and research trading workers for many tenants",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("FLEET_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			backtestCommand(),
			optimizeCommand(),
			downloadCommand(),
			schemaCommand(),
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(_ context.Context, _ *cli.Command) error {
					fmt.Println(version.GetVersion())

					return nil
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
