// Package provider downloads historical OHLCV bars from market data vendors.
package provider

import (
	"context"
	"iter"
	"time"

	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// ProviderType names a market data vendor.
type ProviderType string

const (
	ProviderPolygon ProviderType = "polygon"
	ProviderBinance ProviderType = "binance"
)

// OnDownloadProgress reports progress in provider-specific units.
type OnDownloadProgress = func(current float64, total float64, message string)

// Request selects the bars to fetch. End is inclusive.
type Request struct {
	Symbol    string          `validate:"required"`
	Timeframe types.Timeframe `validate:"required"`
	Start     time.Time       `validate:"required"`
	End       time.Time       `validate:"required,gtfield=Start"`
}

type Provider interface {
	// Fetch yields bars oldest first. Cancel ctx to stop early. A yielded error
	// ends the sequence.
	Fetch(ctx context.Context, req Request, onProgress OnDownloadProgress) iter.Seq2[types.Candle, error]
}

// NewMarketDataProvider creates a provider. Polygon requires an API key in apiKey.
func NewMarketDataProvider(providerType ProviderType, apiKey string) (Provider, error) {
	switch providerType {
	case ProviderBinance:
		return NewBinanceClient(), nil
	case ProviderPolygon:
		return NewPolygonClient(apiKey)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", providerType)
	}
}

// Collect drains seq into a slice.
func Collect(seq iter.Seq2[types.Candle, error]) ([]types.Candle, error) {
	var candles []types.Candle

	for candle, err := range seq {
		if err != nil {
			return candles, err
		}

		candles = append(candles, candle)
	}

	return candles, nil
}

func report(onProgress OnDownloadProgress, current, total float64, message string) {
	if onProgress != nil {
		onProgress(current, total, message)
	}
}
