package provider

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"github.com/rxtech-lab/argo-fleet/internal/exchange"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// binancePageSize is the largest page the klines endpoint returns.
const binancePageSize = 1000

// BinanceKlinesService is the subset of the klines service used here.
type BinanceKlinesService interface {
	Symbol(symbol string) BinanceKlinesService
	Interval(interval string) BinanceKlinesService
	StartTime(startTime int64) BinanceKlinesService
	EndTime(endTime int64) BinanceKlinesService
	Limit(limit int) BinanceKlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// BinanceAPIClient creates klines services.
type BinanceAPIClient interface {
	NewKlinesService() BinanceKlinesService
}

type binanceKlinesAdapter struct {
	svc *binance.KlinesService
}

func (a *binanceKlinesAdapter) Symbol(symbol string) BinanceKlinesService {
	a.svc = a.svc.Symbol(symbol)

	return a
}

func (a *binanceKlinesAdapter) Interval(interval string) BinanceKlinesService {
	a.svc = a.svc.Interval(interval)

	return a
}

func (a *binanceKlinesAdapter) StartTime(startTime int64) BinanceKlinesService {
	a.svc = a.svc.StartTime(startTime)

	return a
}

func (a *binanceKlinesAdapter) EndTime(endTime int64) BinanceKlinesService {
	a.svc = a.svc.EndTime(endTime)

	return a
}

func (a *binanceKlinesAdapter) Limit(limit int) BinanceKlinesService {
	a.svc = a.svc.Limit(limit)

	return a
}

func (a *binanceKlinesAdapter) Do(ctx context.Context) ([]*binance.Kline, error) {
	return a.svc.Do(ctx)
}

type binanceClientAdapter struct {
	client *binance.Client
}

func (a *binanceClientAdapter) NewKlinesService() BinanceKlinesService {
	return &binanceKlinesAdapter{svc: a.client.NewKlinesService()}
}

// BinanceClient reads public spot klines. No credentials are needed.
type BinanceClient struct {
	api BinanceAPIClient
}

func NewBinanceClient() *BinanceClient {
	return &BinanceClient{api: &binanceClientAdapter{client: binance.NewClient("", "")}}
}

// NewBinanceClientWithAPI is used by tests to inject a fake API.
func NewBinanceClientWithAPI(api BinanceAPIClient) *BinanceClient {
	return &BinanceClient{api: api}
}

// Fetch pages through klines, restarting each page one millisecond after the
// close time of the previous page's last bar.
func (c *BinanceClient) Fetch(ctx context.Context, req Request, onProgress OnDownloadProgress) iter.Seq2[types.Candle, error] {
	return func(yield func(types.Candle, error) bool) {
		if _, ok := req.Timeframe.Duration(); !ok {
			yield(types.Candle{}, errors.Newf(errors.ErrCodeInvalidTimeframe, "unsupported timeframe %s", req.Timeframe))

			return
		}

		symbol := exchange.NormalizeSymbol(req.Symbol)
		startMillis := req.Start.UnixMilli()
		endMillis := req.End.UnixMilli()
		current := startMillis

		for current <= endMillis {
			klines, err := c.api.NewKlinesService().
				Symbol(symbol).
				Interval(string(req.Timeframe)).
				StartTime(current).
				EndTime(endMillis).
				Limit(binancePageSize).
				Do(ctx)
			if err != nil {
				yield(types.Candle{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch %s klines from Binance", symbol))

				return
			}

			for _, k := range klines {
				candle, err := klineToCandle(k)
				if err != nil {
					yield(types.Candle{}, err)

					return
				}

				if !yield(candle, nil) {
					return
				}
			}

			report(onProgress, float64(current-startMillis), float64(endMillis-startMillis),
				fmt.Sprintf("Downloading %s klines from Binance", symbol))

			if len(klines) < binancePageSize {
				return
			}

			current = klines[len(klines)-1].CloseTime + 1
		}
	}
}

func klineToCandle(k *binance.Kline) (types.Candle, error) {
	values := make([]float64, 5)

	for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.Candle{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid kline value %q", raw)
		}

		values[i] = v
	}

	return types.Candle{
		Time:   time.UnixMilli(k.OpenTime).UTC(),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
