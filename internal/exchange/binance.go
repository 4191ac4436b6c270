package exchange

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/internal/utils"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

const (
	// BinanceQuantityPrecision is a fallback lot size precision (0.001 BTC).
	// Symbol-specific LOT_SIZE filters from exchange info should replace it per symbol.
	BinanceQuantityPrecision = 3
	// BinancePricePrecision is a fallback tick precision for trigger prices.
	BinancePricePrecision = 2
	binanceQuoteAsset     = "USDT"
	incomeTypeRealizedPnL = "REALIZED_PNL"
)

// futuresOrder carries the parameters of one futures order submission.
type futuresOrder struct {
	symbol        string
	side          futures.SideType
	orderType     futures.OrderType
	quantity      string
	price         string
	stopPrice     string
	closePosition bool
	reduceOnly    bool
}

// futuresClient abstracts the go-binance futures client for testing.
type futuresClient interface {
	Klines(ctx context.Context, symbol string, interval string, limit int) ([]*futures.Kline, error)
	PositionRisk(ctx context.Context, symbol string) ([]*futures.PositionRisk, error)
	Balances(ctx context.Context) ([]*futures.Balance, error)
	CreateOrder(ctx context.Context, order futuresOrder) (*futures.CreateOrderResponse, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	OpenOrders(ctx context.Context, symbol string) ([]*futures.Order, error)
	ChangeLeverage(ctx context.Context, symbol string, leverage int) error
	IncomeHistory(ctx context.Context, symbol string, incomeType string, startTime int64) ([]*futures.IncomeHistory, error)
}

// realFuturesClient wraps the actual futures.Client.
type realFuturesClient struct {
	client *futures.Client
}

func (r *realFuturesClient) Klines(ctx context.Context, symbol string, interval string, limit int) ([]*futures.Kline, error) {
	return r.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
}

func (r *realFuturesClient) PositionRisk(ctx context.Context, symbol string) ([]*futures.PositionRisk, error) {
	return r.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
}

func (r *realFuturesClient) Balances(ctx context.Context) ([]*futures.Balance, error) {
	return r.client.NewGetBalanceService().Do(ctx)
}

func (r *realFuturesClient) CreateOrder(ctx context.Context, order futuresOrder) (*futures.CreateOrderResponse, error) {
	service := r.client.NewCreateOrderService().
		Symbol(order.symbol).
		Side(order.side).
		Type(order.orderType)

	if order.quantity != "" {
		service = service.Quantity(order.quantity)
	}

	if order.price != "" {
		service = service.Price(order.price).TimeInForce(futures.TimeInForceTypeGTC)
	}

	if order.stopPrice != "" {
		service = service.StopPrice(order.stopPrice)
	}

	if order.closePosition {
		service = service.ClosePosition(true)
	}

	if order.reduceOnly {
		service = service.ReduceOnly(true)
	}

	return service.Do(ctx)
}

func (r *realFuturesClient) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	_, err := r.client.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)

	return err
}

func (r *realFuturesClient) OpenOrders(ctx context.Context, symbol string) ([]*futures.Order, error) {
	return r.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
}

func (r *realFuturesClient) ChangeLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := r.client.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)

	return err
}

func (r *realFuturesClient) IncomeHistory(ctx context.Context, symbol string, incomeType string, startTime int64) ([]*futures.IncomeHistory, error) {
	return r.client.NewGetIncomeHistoryService().
		Symbol(symbol).
		IncomeType(incomeType).
		StartTime(startTime).
		Do(ctx)
}

// BinanceExchange implements Exchange on Binance USDⓈ-M futures.
// Unified symbols are normalized, so "BTC/USDT" trades BTCUSDT.
type BinanceExchange struct {
	client            futuresClient
	quantityPrecision int
	pricePrecision    int
}

// NewBinanceExchange creates a futures exchange for the given credentials.
// Empty credentials are enough for public market data.
func NewBinanceExchange(creds types.Credentials) *BinanceExchange {
	if creds.Testnet {
		futures.UseTestnet = true
	}

	return newBinanceExchangeWithClient(&realFuturesClient{client: futures.NewClient(creds.APIKey, creds.APISecret)})
}

// NewBinanceCandleSource returns an unauthenticated futures client usable as a CandleSource.
func NewBinanceCandleSource() CandleSource {
	return NewBinanceExchange(types.Credentials{})
}

func newBinanceExchangeWithClient(client futuresClient) *BinanceExchange {
	return &BinanceExchange{
		client:            client,
		quantityPrecision: BinanceQuantityPrecision,
		pricePrecision:    BinancePricePrecision,
	}
}

func (b *BinanceExchange) FetchOHLCV(ctx context.Context, symbol string, timeframe types.Timeframe, limit int) ([]types.Candle, error) {
	if !timeframe.IsValid() {
		return nil, errors.Newf(errors.ErrCodeInvalidTimeframe, "unsupported timeframe: %s", timeframe)
	}

	klines, err := b.client.Klines(ctx, NormalizeSymbol(symbol), string(timeframe), limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch klines from Binance", err)
	}

	candles := make([]types.Candle, 0, len(klines))

	for _, k := range klines {
		candle, err := klineToCandle(k)
		if err != nil {
			return nil, err
		}

		candles = append(candles, candle)
	}

	return candles, nil
}

func (b *BinanceExchange) FetchPosition(ctx context.Context, symbol string) (types.Position, error) {
	risks, err := b.client.PositionRisk(ctx, NormalizeSymbol(symbol))
	if err != nil {
		return types.Position{}, errors.Wrap(errors.ErrCodeExchangeUnavailable, "failed to fetch position from Binance", err)
	}

	flat := types.Position{Symbol: symbol, Side: types.PositionSideNone}

	for _, risk := range risks {
		amount := parseFloat(risk.PositionAmt)
		if amount == 0 {
			continue
		}

		side := types.PositionSideLong
		if amount < 0 {
			side = types.PositionSideShort
		}

		return types.Position{
			Symbol:     symbol,
			Side:       side,
			Size:       math.Abs(amount),
			EntryPrice: parseFloat(risk.EntryPrice),
		}, nil
	}

	return flat, nil
}

func (b *BinanceExchange) FetchBalance(ctx context.Context) (types.Balance, error) {
	balances, err := b.client.Balances(ctx)
	if err != nil {
		return types.Balance{}, errors.Wrap(errors.ErrCodeExchangeUnavailable, "failed to fetch balance from Binance", err)
	}

	for _, balance := range balances {
		if balance.Asset != binanceQuoteAsset {
			continue
		}

		return types.Balance{
			Asset:     balance.Asset,
			Total:     parseFloat(balance.Balance),
			Available: parseFloat(balance.AvailableBalance),
		}, nil
	}

	return types.Balance{Asset: binanceQuoteAsset}, nil
}

// CreateOrder places the entry order and, when requested, reduce-only
// STOP_MARKET / TAKE_PROFIT_MARKET orders that close the whole position.
func (b *BinanceExchange) CreateOrder(ctx context.Context, req types.OrderRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	symbol := NormalizeSymbol(req.Symbol)

	quantity := utils.RoundToDecimalPrecision(req.Amount, b.quantityPrecision)
	if quantity <= 0 {
		return "", errors.Newf(errors.ErrCodeInvalidOrder,
			"order quantity %.8f is too small after rounding to %d decimal places", req.Amount, b.quantityPrecision)
	}

	entry := futuresOrder{
		symbol:    symbol,
		side:      toFuturesSide(req.Side),
		orderType: futures.OrderTypeMarket,
		quantity:  strconv.FormatFloat(quantity, 'f', b.quantityPrecision, 64),
	}

	if req.Kind == types.OrderKindLimit {
		entry.orderType = futures.OrderTypeLimit
		entry.price = b.formatPrice(req.Price.Unwrap())
	}

	resp, err := b.client.CreateOrder(ctx, entry)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeOrderFailed, "failed to place order on Binance", err)
	}

	if req.TakeProfitPct.IsSome() || req.StopLossPct.IsSome() {
		if err := b.placeProtection(ctx, req, symbol); err != nil {
			return strconv.FormatInt(resp.OrderID, 10), err
		}
	}

	return strconv.FormatInt(resp.OrderID, 10), nil
}

func (b *BinanceExchange) placeProtection(ctx context.Context, req types.OrderRequest, symbol string) error {
	reference, err := b.referencePrice(ctx, req)
	if err != nil {
		return err
	}

	direction := sideDirection(req.Side)
	exitSide := toFuturesSide(req.Side.Opposite())

	if req.StopLossPct.IsSome() {
		_, err := b.client.CreateOrder(ctx, futuresOrder{
			symbol:        symbol,
			side:          exitSide,
			orderType:     futures.OrderTypeStopMarket,
			stopPrice:     b.formatPrice(reference * (1 - direction*req.StopLossPct.Unwrap())),
			closePosition: true,
		})
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidStopLoss, "failed to place stop loss on Binance", err)
		}
	}

	if req.TakeProfitPct.IsSome() {
		_, err := b.client.CreateOrder(ctx, futuresOrder{
			symbol:        symbol,
			side:          exitSide,
			orderType:     futures.OrderTypeTakeProfitMarket,
			stopPrice:     b.formatPrice(reference * (1 + direction*req.TakeProfitPct.Unwrap())),
			closePosition: true,
		})
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidTakeProfit, "failed to place take profit on Binance", err)
		}
	}

	return nil
}

func (b *BinanceExchange) referencePrice(ctx context.Context, req types.OrderRequest) (float64, error) {
	if req.Kind == types.OrderKindLimit {
		return req.Price.Unwrap(), nil
	}

	candles, err := b.FetchOHLCV(ctx, req.Symbol, types.Timeframe1m, 1)
	if err != nil {
		return 0, err
	}

	if len(candles) == 0 {
		return 0, errors.Newf(errors.ErrCodeMarketDataMissing, "no reference price for %s", req.Symbol)
	}

	return types.LastClose(candles), nil
}

func (b *BinanceExchange) CancelOrder(ctx context.Context, orderID string, symbol string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid order id %q", orderID)
	}

	if err := b.client.CancelOrder(ctx, NormalizeSymbol(symbol), id); err != nil {
		return errors.Wrap(errors.ErrCodeCancelFailed, "failed to cancel order on Binance", err)
	}

	return nil
}

func (b *BinanceExchange) FetchOpenOrders(ctx context.Context, symbol string) ([]types.OpenOrder, error) {
	orders, err := b.client.OpenOrders(ctx, NormalizeSymbol(symbol))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExchangeUnavailable, "failed to list open orders on Binance", err)
	}

	out := make([]types.OpenOrder, 0, len(orders))

	for _, o := range orders {
		kind := types.OrderKindLimit
		if o.Type != futures.OrderTypeLimit {
			kind = types.OrderKindMarket
		}

		side := types.OrderSideBuy
		if o.Side == futures.SideTypeSell {
			side = types.OrderSideSell
		}

		price := parseFloat(o.Price)
		if price == 0 {
			price = parseFloat(o.StopPrice)
		}

		out = append(out, types.OpenOrder{
			ID:         strconv.FormatInt(o.OrderID, 10),
			Symbol:     symbol,
			Side:       side,
			Kind:       kind,
			Price:      price,
			Amount:     parseFloat(o.OrigQuantity),
			ReduceOnly: o.ReduceOnly || o.ClosePosition,
			CreatedAt:  time.UnixMilli(o.Time),
		})
	}

	return out, nil
}

func (b *BinanceExchange) ClosePosition(ctx context.Context, symbol string) error {
	pos, err := b.FetchPosition(ctx, symbol)
	if err != nil {
		return err
	}

	if pos.IsFlat() {
		return nil
	}

	_, err = b.client.CreateOrder(ctx, futuresOrder{
		symbol:     NormalizeSymbol(symbol),
		side:       toFuturesSide(pos.Side.EntrySide().Opposite()),
		orderType:  futures.OrderTypeMarket,
		quantity:   strconv.FormatFloat(pos.Size, 'f', -1, 64),
		reduceOnly: true,
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeOrderFailed, "failed to close position on Binance", err)
	}

	return nil
}

func (b *BinanceExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := b.client.ChangeLeverage(ctx, NormalizeSymbol(symbol), leverage); err != nil {
		return errors.Wrap(errors.ErrCodeExchangeUnavailable, "failed to change leverage on Binance", err)
	}

	return nil
}

// FetchRealizedPnL sums REALIZED_PNL income entries since the given time.
func (b *BinanceExchange) FetchRealizedPnL(ctx context.Context, symbol string, since time.Time) (decimal.Decimal, error) {
	incomes, err := b.client.IncomeHistory(ctx, NormalizeSymbol(symbol), incomeTypeRealizedPnL, since.UnixMilli())
	if err != nil {
		return decimal.Zero, errors.Wrap(errors.ErrCodeExchangeUnavailable, "failed to fetch income history from Binance", err)
	}

	total := decimal.Zero

	for _, income := range incomes {
		value, err := decimal.NewFromString(income.Income)
		if err != nil {
			continue
		}

		total = total.Add(value)
	}

	return total, nil
}

func (b *BinanceExchange) formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', b.pricePrecision, 64)
}

func klineToCandle(k *futures.Kline) (types.Candle, error) {
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

func toFuturesSide(side types.OrderSide) futures.SideType {
	if side == types.OrderSideSell {
		return futures.SideTypeSell
	}

	return futures.SideTypeBuy
}

func parseFloat(raw string) float64 {
	v, _ := strconv.ParseFloat(raw, 64)

	return v
}
