package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-fleet/pkg/marketdata"
	"github.com/rxtech-lab/argo-fleet/pkg/marketdata/provider"
)

func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download historical candles into a parquet file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "symbol",
				Aliases:  []string{"t"},
				Usage:    "Ticker or trading pair",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "timeframe",
				Usage: "Bar size (1m ... 1d)",
				Value: "1h",
			},
			&cli.StringFlag{
				Name:     "start",
				Aliases:  []string{"s"},
				Usage:    "Start in `YYYY-MM-DD` or RFC3339 format",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End in `YYYY-MM-DD` or RFC3339 format. Defaults to today.",
				Value:   time.Now().UTC().Format(time.DateOnly),
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("Data provider (%s)", strings.Join(marketdata.GetSupportedProviders(), ", ")),
				Value:   string(provider.ProviderBinance),
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Output directory",
				Value:   "data",
			},
		},
		Action: downloadAction,
	}
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	log, err := cliLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	req := marketdata.DownloadRequest{
		Symbol:    cmd.String("symbol"),
		Timeframe: cmd.String("timeframe"),
		Start:     cmd.String("start"),
		End:       cmd.String("end"),
		APIKey:    os.Getenv("POLYGON_API_KEY"),
	}

	params, err := req.Params()
	if err != nil {
		return err
	}

	bar := newBar(os.Stderr, "downloading "+params.Symbol)

	client, err := marketdata.NewClient(marketdata.ClientConfig{
		Provider:      provider.ProviderType(cmd.String("provider")),
		DataPath:      cmd.String("data"),
		PolygonAPIKey: req.APIKey,
	}, func(current, total float64, _ string) {
		if total > 0 && int64(total) != bar.GetMax64() {
			bar.ChangeMax64(int64(total))
		}

		_ = bar.Set64(int64(current))
	})
	if err != nil {
		return err
	}

	result, err := client.Download(ctx, params)

	_ = bar.Finish()

	if err != nil {
		return err
	}

	log.Info("Download completed", zap.String("path", result.Path), zap.Int("rows", result.Rows))

	return nil
}
