package marketdata

import (
	"slices"

	"github.com/rxtech-lab/argo-fleet/pkg/errors"
	"github.com/rxtech-lab/argo-fleet/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-fleet/pkg/strategy"
)

// ProviderInfo contains metadata about a market data provider.
type ProviderInfo struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	RequiresAuth bool   `json:"requiresAuth"`
}

// DownloadRequest is the user-facing form of DownloadParams, used for the
// download schema and by the CLI.
type DownloadRequest struct {
	Symbol    string `json:"symbol" jsonschema:"title=Symbol,description=Ticker or trading pair (e.g. SPY or BTC/USDT)" validate:"required"`
	Timeframe string `json:"timeframe" jsonschema:"title=Timeframe,enum=1m,enum=3m,enum=5m,enum=15m,enum=30m,enum=1h,enum=2h,enum=4h,enum=6h,enum=8h,enum=12h,enum=1d" validate:"required"`
	Start     string `json:"start" jsonschema:"title=Start,description=RFC3339 or YYYY-MM-DD,format=date-time" validate:"required"`
	End       string `json:"end" jsonschema:"title=End,description=RFC3339 or YYYY-MM-DD,format=date-time" validate:"required"`
	APIKey    string `json:"apiKey,omitempty" jsonschema:"title=API Key,description=Required by polygon"`
}

var providerRegistry = map[provider.ProviderType]ProviderInfo{
	provider.ProviderPolygon: {
		Name:         string(provider.ProviderPolygon),
		DisplayName:  "Polygon.io",
		Description:  "US stock market aggregates",
		RequiresAuth: true,
	},
	provider.ProviderBinance: {
		Name:         string(provider.ProviderBinance),
		DisplayName:  "Binance",
		Description:  "Public spot klines for crypto pairs",
		RequiresAuth: false,
	},
}

// GetSupportedProviders returns the provider names in sorted order.
func GetSupportedProviders() []string {
	names := make([]string, 0, len(providerRegistry))
	for p := range providerRegistry {
		names = append(names, string(p))
	}

	slices.Sort(names)

	return names
}

func GetProviderInfo(name string) (ProviderInfo, error) {
	info, ok := providerRegistry[provider.ProviderType(name)]
	if !ok {
		return ProviderInfo{}, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", name)
	}

	return info, nil
}

// GetDownloadSchema returns the JSON schema of DownloadRequest.
func GetDownloadSchema() (string, error) {
	return strategy.ToJSONSchema(DownloadRequest{})
}
