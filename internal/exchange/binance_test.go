package exchange

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// fakeFuturesClient records submitted orders and returns canned responses.
type fakeFuturesClient struct {
	klines      []*futures.Kline
	positions   []*futures.PositionRisk
	balances    []*futures.Balance
	openOrders  []*futures.Order
	incomes     []*futures.IncomeHistory
	err         error
	orders      []futuresOrder
	cancelled   []int64
	leverage    int
	nextOrderID int64
	lastSymbol  string
}

func (f *fakeFuturesClient) Klines(_ context.Context, symbol string, _ string, _ int) ([]*futures.Kline, error) {
	f.lastSymbol = symbol

	return f.klines, f.err
}

func (f *fakeFuturesClient) PositionRisk(_ context.Context, symbol string) ([]*futures.PositionRisk, error) {
	f.lastSymbol = symbol

	return f.positions, f.err
}

func (f *fakeFuturesClient) Balances(_ context.Context) ([]*futures.Balance, error) {
	return f.balances, f.err
}

func (f *fakeFuturesClient) CreateOrder(_ context.Context, order futuresOrder) (*futures.CreateOrderResponse, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.orders = append(f.orders, order)
	f.nextOrderID++

	return &futures.CreateOrderResponse{OrderID: f.nextOrderID}, nil
}

func (f *fakeFuturesClient) CancelOrder(_ context.Context, _ string, orderID int64) error {
	f.cancelled = append(f.cancelled, orderID)

	return f.err
}

func (f *fakeFuturesClient) OpenOrders(_ context.Context, _ string) ([]*futures.Order, error) {
	return f.openOrders, f.err
}

func (f *fakeFuturesClient) ChangeLeverage(_ context.Context, _ string, leverage int) error {
	f.leverage = leverage

	return f.err
}

func (f *fakeFuturesClient) IncomeHistory(_ context.Context, _ string, _ string, _ int64) ([]*futures.IncomeHistory, error) {
	return f.incomes, f.err
}

type BinanceExchangeTestSuite struct {
	suite.Suite
	ctx    context.Context
	client *fakeFuturesClient
	ex     *BinanceExchange
}

func TestBinanceExchangeSuite(t *testing.T) {
	suite.Run(t, new(BinanceExchangeTestSuite))
}

func (s *BinanceExchangeTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.client = &fakeFuturesClient{
		klines: []*futures.Kline{
			{OpenTime: 1700000000000, Open: "100", High: "110", Low: "90", Close: "105", Volume: "12.5"},
		},
	}
	s.ex = newBinanceExchangeWithClient(s.client)
}

func (s *BinanceExchangeTestSuite) TestFetchOHLCV() {
	candles, err := s.ex.FetchOHLCV(s.ctx, "BTC/USDT", types.Timeframe1h, 10)
	s.Require().NoError(err)
	s.Require().Len(candles, 1)
	s.Equal("BTCUSDT", s.client.lastSymbol)
	s.Equal(105.0, candles[0].Close)
	s.Equal(12.5, candles[0].Volume)
	s.Equal(time.UnixMilli(1700000000000).UTC(), candles[0].Time)
}

func (s *BinanceExchangeTestSuite) TestFetchOHLCVErrors() {
	_, err := s.ex.FetchOHLCV(s.ctx, "BTC/USDT", types.Timeframe("7m"), 10)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidTimeframe))

	s.client.klines = []*futures.Kline{{Open: "x"}}
	_, err = s.ex.FetchOHLCV(s.ctx, "BTC/USDT", types.Timeframe1h, 10)
	s.True(errors.HasCode(err, errors.ErrCodeMarketDataParseFailed))

	s.client.err = stderrors.New("timeout")
	_, err = s.ex.FetchOHLCV(s.ctx, "BTC/USDT", types.Timeframe1h, 10)
	s.True(errors.HasCode(err, errors.ErrCodeMarketDataFetchFailed))
}

func (s *BinanceExchangeTestSuite) TestFetchPosition() {
	tests := []struct {
		name     string
		risks    []*futures.PositionRisk
		side     types.PositionSide
		size     float64
		entry    float64
		expected bool
	}{
		{name: "flat", risks: []*futures.PositionRisk{{PositionAmt: "0"}}, side: types.PositionSideNone},
		{name: "long", risks: []*futures.PositionRisk{{PositionAmt: "0.5", EntryPrice: "30000"}}, side: types.PositionSideLong, size: 0.5, entry: 30000},
		{name: "short", risks: []*futures.PositionRisk{{PositionAmt: "-2", EntryPrice: "150"}}, side: types.PositionSideShort, size: 2, entry: 150},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			s.client.positions = tc.risks
			pos, err := s.ex.FetchPosition(s.ctx, "BTC/USDT")
			s.Require().NoError(err)
			s.Equal(tc.side, pos.Side)
			s.Equal(tc.size, pos.Size)
			s.Equal(tc.entry, pos.EntryPrice)
		})
	}
}

func (s *BinanceExchangeTestSuite) TestFetchBalancePicksQuoteAsset() {
	s.client.balances = []*futures.Balance{
		{Asset: "BNB", Balance: "1", AvailableBalance: "1"},
		{Asset: "USDT", Balance: "1000.5", AvailableBalance: "800"},
	}

	balance, err := s.ex.FetchBalance(s.ctx)
	s.Require().NoError(err)
	s.Equal("USDT", balance.Asset)
	s.Equal(1000.5, balance.Total)
	s.Equal(800.0, balance.Available)
}

func (s *BinanceExchangeTestSuite) TestCreateMarketOrderWithProtection() {
	id, err := s.ex.CreateOrder(s.ctx, types.OrderRequest{
		Symbol:        "BTC/USDT",
		Kind:          types.OrderKindMarket,
		Side:          types.OrderSideBuy,
		Amount:        0.12345,
		TakeProfitPct: optional.Some(0.1),
		StopLossPct:   optional.Some(0.05),
	})
	s.Require().NoError(err)
	s.Equal("1", id)
	s.Require().Len(s.client.orders, 3)

	entry := s.client.orders[0]
	s.Equal(futures.OrderTypeMarket, entry.orderType)
	s.Equal(futures.SideTypeBuy, entry.side)
	s.Equal("0.123", entry.quantity)

	stop := s.client.orders[1]
	s.Equal(futures.OrderTypeStopMarket, stop.orderType)
	s.Equal(futures.SideTypeSell, stop.side)
	s.Equal("99.75", stop.stopPrice)
	s.True(stop.closePosition)

	target := s.client.orders[2]
	s.Equal(futures.OrderTypeTakeProfitMarket, target.orderType)
	s.Equal("115.50", target.stopPrice)
}

func (s *BinanceExchangeTestSuite) TestCreateLimitOrder() {
	_, err := s.ex.CreateOrder(s.ctx, types.OrderRequest{
		Symbol: "ETH/USDT",
		Kind:   types.OrderKindLimit,
		Side:   types.OrderSideSell,
		Amount: 1,
		Price:  optional.Some(2500.0),
	})
	s.Require().NoError(err)
	s.Require().Len(s.client.orders, 1)
	s.Equal(futures.OrderTypeLimit, s.client.orders[0].orderType)
	s.Equal("ETHUSDT", s.client.orders[0].symbol)
	s.Equal("2500.00", s.client.orders[0].price)
}

func (s *BinanceExchangeTestSuite) TestCreateOrderRejectsDustQuantity() {
	_, err := s.ex.CreateOrder(s.ctx, types.OrderRequest{
		Symbol: "BTC/USDT",
		Kind:   types.OrderKindMarket,
		Side:   types.OrderSideBuy,
		Amount: 0.0001,
	})
	s.True(errors.HasCode(err, errors.ErrCodeInvalidOrder))
	s.Empty(s.client.orders)
}

func (s *BinanceExchangeTestSuite) TestCancelOrder() {
	s.Require().NoError(s.ex.CancelOrder(s.ctx, "42", "BTC/USDT"))
	s.Equal([]int64{42}, s.client.cancelled)

	err := s.ex.CancelOrder(s.ctx, "not-a-number", "BTC/USDT")
	s.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (s *BinanceExchangeTestSuite) TestFetchOpenOrdersMarksProtection() {
	s.client.openOrders = []*futures.Order{
		{OrderID: 7, Type: futures.OrderTypeLimit, Side: futures.SideTypeBuy, Price: "99", OrigQuantity: "1", Time: 1700000000000},
		{OrderID: 8, Type: futures.OrderTypeStopMarket, Side: futures.SideTypeSell, Price: "0", StopPrice: "95", ClosePosition: true},
	}

	orders, err := s.ex.FetchOpenOrders(s.ctx, "BTC/USDT")
	s.Require().NoError(err)
	s.Require().Len(orders, 2)
	s.Equal("7", orders[0].ID)
	s.Equal(types.OrderKindLimit, orders[0].Kind)
	s.False(orders[0].ReduceOnly)
	s.Equal(95.0, orders[1].Price)
	s.True(orders[1].ReduceOnly)
}

func (s *BinanceExchangeTestSuite) TestClosePosition() {
	s.client.positions = []*futures.PositionRisk{{PositionAmt: "-0.5", EntryPrice: "100"}}

	s.Require().NoError(s.ex.ClosePosition(s.ctx, "BTC/USDT"))
	s.Require().Len(s.client.orders, 1)
	s.Equal(futures.SideTypeBuy, s.client.orders[0].side)
	s.True(s.client.orders[0].reduceOnly)
	s.Equal("0.5", s.client.orders[0].quantity)

	s.client.positions = nil
	s.client.orders = nil
	s.Require().NoError(s.ex.ClosePosition(s.ctx, "BTC/USDT"))
	s.Empty(s.client.orders)
}

func (s *BinanceExchangeTestSuite) TestSetLeverageAndRealizedPnL() {
	s.Require().NoError(s.ex.SetLeverage(s.ctx, "BTC/USDT", 10))
	s.Equal(10, s.client.leverage)

	s.client.incomes = []*futures.IncomeHistory{
		{Income: "12.5", IncomeType: "REALIZED_PNL"},
		{Income: "-2.25", IncomeType: "REALIZED_PNL"},
	}

	pnl, err := s.ex.FetchRealizedPnL(s.ctx, "BTC/USDT", time.Now())
	s.Require().NoError(err)
	s.Equal("10.25", pnl.String())
}

func (s *BinanceExchangeTestSuite) TestNormalizeSymbol() {
	s.Equal("BTCUSDT", NormalizeSymbol("BTC/USDT"))
	s.Equal("BTCUSDT", NormalizeSymbol("btc/usdt:USDT"))
	s.Equal("ETHUSDT", NormalizeSymbol("ETHUSDT"))
}
