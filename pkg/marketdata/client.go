// Package marketdata downloads historical candles and stores them as parquet
// files that the backtest and search commands read.
package marketdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
	"github.com/rxtech-lab/argo-fleet/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-fleet/pkg/marketdata/writer"
)

// ClientConfig configures where candles come from and where files go.
type ClientConfig struct {
	Provider      provider.ProviderType `validate:"required,oneof=polygon binance"`
	DataPath      string                `validate:"required"`
	PolygonAPIKey string                `validate:"required_if=Provider polygon"`
}

// DownloadParams selects the bars to download.
type DownloadParams struct {
	Symbol    string          `validate:"required"`
	Timeframe types.Timeframe `validate:"required,oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 8h 12h 1d"`
	Start     time.Time       `validate:"required"`
	End       time.Time       `validate:"required,gtfield=Start"`
}

// DownloadResult describes a finished download.
type DownloadResult struct {
	Path string
	Rows int
}

type Client struct {
	provider   provider.Provider
	config     ClientConfig
	validate   *validator.Validate
	onProgress provider.OnDownloadProgress
}

func NewClient(config ClientConfig, onProgress provider.OnDownloadProgress) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid market data client configuration", err)
	}

	p, err := provider.NewMarketDataProvider(config.Provider, config.PolygonAPIKey)
	if err != nil {
		return nil, err
	}

	return &Client{provider: p, config: config, validate: validate, onProgress: onProgress}, nil
}

// NewClientWithProvider uses p instead of building one from config.Provider.
func NewClientWithProvider(config ClientConfig, p provider.Provider, onProgress provider.OnDownloadProgress) *Client {
	return &Client{provider: p, config: config, validate: validator.New(), onProgress: onProgress}
}

// Download fetches the requested bars and writes them to
// DataPath/SYMBOL_START_END_TIMEFRAME.parquet.
func (c *Client) Download(ctx context.Context, params DownloadParams) (DownloadResult, error) {
	if err := c.validate.Struct(params); err != nil {
		return DownloadResult{}, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid download parameters", err)
	}

	if err := os.MkdirAll(c.config.DataPath, 0o755); err != nil {
		return DownloadResult{}, errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to create %s", c.config.DataPath)
	}

	w := writer.NewParquetWriter(params.Symbol, filepath.Join(c.config.DataPath, OutputFileName(params)))
	if err := w.Initialize(); err != nil {
		return DownloadResult{}, err
	}
	defer w.Close()

	req := provider.Request{
		Symbol:    params.Symbol,
		Timeframe: params.Timeframe,
		Start:     params.Start,
		End:       params.End,
	}

	for candle, err := range c.provider.Fetch(ctx, req, c.onProgress) {
		if err != nil {
			return DownloadResult{}, err
		}

		if err := w.Write(candle); err != nil {
			return DownloadResult{}, err
		}
	}

	if err := ctx.Err(); err != nil {
		return DownloadResult{}, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "download cancelled", err)
	}

	if w.Rows() == 0 {
		return DownloadResult{}, errors.Newf(errors.ErrCodeInsufficientData, "no %s bars for %s in range", params.Timeframe, params.Symbol)
	}

	path, err := w.Finalize()
	if err != nil {
		return DownloadResult{}, err
	}

	return DownloadResult{Path: path, Rows: w.Rows()}, nil
}

// OutputFileName is the file name Download writes for params.
func OutputFileName(params DownloadParams) string {
	symbol := strings.NewReplacer("/", "", ":", "", " ", "").Replace(strings.ToUpper(params.Symbol))

	return fmt.Sprintf("%s_%s_%s_%s.parquet",
		symbol,
		params.Start.Format("2006-01-02"),
		params.End.Format("2006-01-02"),
		params.Timeframe)
}

// Params parses the request's dates into DownloadParams.
func (r DownloadRequest) Params() (DownloadParams, error) {
	if err := validator.New().Struct(r); err != nil {
		return DownloadParams{}, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid download request", err)
	}

	start, err := parseDate(r.Start)
	if err != nil {
		return DownloadParams{}, err
	}

	end, err := parseDate(r.End)
	if err != nil {
		return DownloadParams{}, err
	}

	return DownloadParams{
		Symbol:    r.Symbol,
		Timeframe: types.Timeframe(r.Timeframe),
		Start:     start,
		End:       end,
	}, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, errors.Newf(errors.ErrCodeInvalidParameter, "invalid date %q, expected RFC3339 or YYYY-MM-DD", value)
}
