package exchange

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// Exchange is the port every worker trades through. Implementations must be safe
// for use by one worker at a time; the ClientCache hands out one instance per key.
type Exchange interface {
	// FetchOHLCV returns up to limit candles ordered oldest first.
	FetchOHLCV(ctx context.Context, symbol string, timeframe types.Timeframe, limit int) ([]types.Candle, error)
	// FetchPosition returns the current position. A flat position is not an error.
	FetchPosition(ctx context.Context, symbol string) (types.Position, error)
	FetchBalance(ctx context.Context) (types.Balance, error)
	// CreateOrder submits an order and returns the exchange order id.
	// TakeProfitPct and StopLossPct are converted to trigger prices by the implementation.
	CreateOrder(ctx context.Context, req types.OrderRequest) (string, error)
	CancelOrder(ctx context.Context, orderID string, symbol string) error
	FetchOpenOrders(ctx context.Context, symbol string) ([]types.OpenOrder, error)
	// ClosePosition closes the whole position at market. Closing a flat position is a no-op.
	ClosePosition(ctx context.Context, symbol string) error
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

// RealizedPnLReader is implemented by exchanges that can report realized PnL.
type RealizedPnLReader interface {
	FetchRealizedPnL(ctx context.Context, symbol string, since time.Time) (decimal.Decimal, error)
}

// CandleSource supplies market data to simulated exchanges.
type CandleSource interface {
	FetchOHLCV(ctx context.Context, symbol string, timeframe types.Timeframe, limit int) ([]types.Candle, error)
}

type Kind string

const (
	KindPaper          Kind = "paper"
	KindBinanceFutures Kind = "binance"
)

type KindInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	// RequiresCredentials is false for simulated exchanges.
	RequiresCredentials bool `json:"requiresCredentials"`
}

var kindRegistry = map[Kind]KindInfo{
	KindPaper: {
		Name:                string(KindPaper),
		DisplayName:         "Paper",
		Description:         "Simulated futures account filled against public market data",
		RequiresCredentials: false,
	},
	KindBinanceFutures: {
		Name:                string(KindBinanceFutures),
		DisplayName:         "Binance USDⓈ-M Futures",
		Description:         "Binance perpetual futures, live or testnet depending on credentials",
		RequiresCredentials: true,
	},
}

// SupportedExchanges returns the registered exchange names in sorted order.
func SupportedExchanges() []string {
	names := make([]string, 0, len(kindRegistry))
	for kind := range kindRegistry {
		names = append(names, string(kind))
	}

	sort.Strings(names)

	return names
}

// GetKindInfo returns metadata for an exchange name.
func GetKindInfo(name string) (KindInfo, error) {
	info, ok := kindRegistry[Kind(strings.ToLower(name))]
	if !ok {
		return KindInfo{}, errors.Newf(errors.ErrCodeUnsupportedExchange, "unsupported exchange: %s", name)
	}

	return info, nil
}

// NormalizeSymbol converts unified symbols such as "BTC/USDT" or "BTC/USDT:USDT" to "BTCUSDT".
func NormalizeSymbol(symbol string) string {
	if idx := strings.Index(symbol, ":"); idx >= 0 {
		symbol = symbol[:idx]
	}

	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}
