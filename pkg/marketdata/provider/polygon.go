package provider

import (
	"context"
	"fmt"
	"iter"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

const polygonPageLimit = 50000

// PolygonAggsIterator is satisfied by the client's aggregate iterator.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient is the subset of the REST client used here.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
}

type polygonClientAdapter struct {
	client *polygon.Client
}

func (a *polygonClientAdapter) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return a.client.ListAggs(ctx, params, options...)
}

// PolygonClient reads aggregate bars from Polygon.io.
type PolygonClient struct {
	api PolygonAPIClient
}

func NewPolygonClient(apiKey string) (*PolygonClient, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon api key is required")
	}

	return &PolygonClient{api: &polygonClientAdapter{client: polygon.New(apiKey)}}, nil
}

// NewPolygonClientWithAPI is used by tests to inject a fake API.
func NewPolygonClientWithAPI(api PolygonAPIClient) *PolygonClient {
	return &PolygonClient{api: api}
}

func (c *PolygonClient) Fetch(ctx context.Context, req Request, onProgress OnDownloadProgress) iter.Seq2[types.Candle, error] {
	return func(yield func(types.Candle, error) bool) {
		multiplier, timespan, err := polygonTimespan(req.Timeframe)
		if err != nil {
			yield(types.Candle{}, err)

			return
		}

		//nolint:exhaustruct // third-party struct with many optional fields
		params := models.ListAggsParams{
			Ticker:     req.Symbol,
			Multiplier: multiplier,
			Timespan:   timespan,
			From:       models.Millis(req.Start),
			To:         models.Millis(req.End),
		}.WithLimit(polygonPageLimit)

		aggs := c.api.ListAggs(ctx, params)
		span := req.End.Sub(req.Start).Seconds()
		processed := 0

		for aggs.Next() {
			agg := aggs.Item()
			at := time.Time(agg.Timestamp).UTC()

			candle := types.Candle{
				Time:   at,
				Open:   agg.Open,
				High:   agg.High,
				Low:    agg.Low,
				Close:  agg.Close,
				Volume: agg.Volume,
			}

			if !yield(candle, nil) {
				return
			}

			processed++
			if processed%1000 == 0 {
				report(onProgress, at.Sub(req.Start).Seconds(), span, fmt.Sprintf("Downloading %s", req.Symbol))
			}
		}

		if err := aggs.Err(); err != nil {
			yield(types.Candle{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to list %s aggregates", req.Symbol))

			return
		}

		report(onProgress, span, span, fmt.Sprintf("Downloaded %d bars of %s", processed, req.Symbol))
	}
}

// polygonTimespan converts an exchange timeframe such as "4h" into a multiplier and unit.
func polygonTimespan(tf types.Timeframe) (int, models.Timespan, error) {
	switch tf {
	case types.Timeframe1m:
		return 1, models.Minute, nil
	case types.Timeframe3m:
		return 3, models.Minute, nil
	case types.Timeframe5m:
		return 5, models.Minute, nil
	case types.Timeframe15m:
		return 15, models.Minute, nil
	case types.Timeframe30m:
		return 30, models.Minute, nil
	case types.Timeframe1h:
		return 1, models.Hour, nil
	case types.Timeframe2h:
		return 2, models.Hour, nil
	case types.Timeframe4h:
		return 4, models.Hour, nil
	case types.Timeframe6h:
		return 6, models.Hour, nil
	case types.Timeframe8h:
		return 8, models.Hour, nil
	case types.Timeframe12h:
		return 12, models.Hour, nil
	case types.Timeframe1d:
		return 1, models.Day, nil
	default:
		return 0, "", errors.Newf(errors.ErrCodeInvalidTimeframe, "unsupported timeframe %s", tf)
	}
}
