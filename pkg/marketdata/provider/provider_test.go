package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-fleet/internal/types"
	pkgerrors "github.com/rxtech-lab/argo-fleet/pkg/errors"
)

type klinesCall struct {
	symbol   string
	interval string
	start    int64
	end      int64
	limit    int
}

type mockBinanceAPIClient struct {
	pages [][]*binance.Kline
	errs  []error
	calls []klinesCall
}

func (m *mockBinanceAPIClient) NewKlinesService() BinanceKlinesService {
	return &mockBinanceKlinesService{client: m}
}

type mockBinanceKlinesService struct {
	client *mockBinanceAPIClient
	call   klinesCall
}

func (s *mockBinanceKlinesService) Symbol(symbol string) BinanceKlinesService {
	s.call.symbol = symbol

	return s
}

func (s *mockBinanceKlinesService) Interval(interval string) BinanceKlinesService {
	s.call.interval = interval

	return s
}

func (s *mockBinanceKlinesService) StartTime(startTime int64) BinanceKlinesService {
	s.call.start = startTime

	return s
}

func (s *mockBinanceKlinesService) EndTime(endTime int64) BinanceKlinesService {
	s.call.end = endTime

	return s
}

func (s *mockBinanceKlinesService) Limit(limit int) BinanceKlinesService {
	s.call.limit = limit

	return s
}

func (s *mockBinanceKlinesService) Do(context.Context) ([]*binance.Kline, error) {
	n := len(s.client.calls)
	s.client.calls = append(s.client.calls, s.call)

	if n < len(s.client.errs) && s.client.errs[n] != nil {
		return nil, s.client.errs[n]
	}

	if n < len(s.client.pages) {
		return s.client.pages[n], nil
	}

	return nil, nil
}

type mockPolygonAPIClient struct {
	iterator PolygonAggsIterator
	params   *models.ListAggsParams
}

func (m *mockPolygonAPIClient) ListAggs(_ context.Context, params *models.ListAggsParams, _ ...models.RequestOption) PolygonAggsIterator {
	m.params = params

	return m.iterator
}

type mockPolygonIterator struct {
	aggs  []models.Agg
	index int
	err   error
}

func (m *mockPolygonIterator) Next() bool {
	if m.index < len(m.aggs) {
		m.index++

		return true
	}

	return false
}

func (m *mockPolygonIterator) Item() models.Agg {
	return m.aggs[m.index-1]
}

func (m *mockPolygonIterator) Err() error {
	return m.err
}

type ProviderTestSuite struct {
	suite.Suite
	start time.Time
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, new(ProviderTestSuite))
}

func (suite *ProviderTestSuite) SetupTest() {
	suite.start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *ProviderTestSuite) klines(from time.Time, n int) []*binance.Kline {
	out := make([]*binance.Kline, n)
	for i := range out {
		open := from.Add(time.Duration(i) * time.Hour)
		price := fmt.Sprintf("%d", 100+i)
		out[i] = &binance.Kline{
			OpenTime:  open.UnixMilli(),
			CloseTime: open.Add(time.Hour).UnixMilli() - 1,
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    "10",
		}
	}

	return out
}

func (suite *ProviderTestSuite) TestBinancePaginates() {
	first := suite.klines(suite.start, binancePageSize)
	secondStart := suite.start.Add(binancePageSize * time.Hour)
	api := &mockBinanceAPIClient{pages: [][]*binance.Kline{first, suite.klines(secondStart, 3)}}

	var progress int

	client := NewBinanceClientWithAPI(api)
	candles, err := Collect(client.Fetch(context.Background(), Request{
		Symbol:    "BTC/USDT",
		Timeframe: types.Timeframe1h,
		Start:     suite.start,
		End:       suite.start.Add(2000 * time.Hour),
	}, func(float64, float64, string) { progress++ }))
	suite.Require().NoError(err)

	suite.Len(candles, binancePageSize+3)
	suite.Require().Len(api.calls, 2)
	suite.Equal("BTCUSDT", api.calls[0].symbol)
	suite.Equal("1h", api.calls[0].interval)
	suite.Equal(binancePageSize, api.calls[0].limit)
	suite.Equal(first[len(first)-1].CloseTime+1, api.calls[1].start)
	suite.Equal(suite.start, candles[0].Time)
	suite.Equal(100.0, candles[0].Close)
	suite.Equal(2, progress)
}

func (suite *ProviderTestSuite) TestBinanceFetchError() {
	api := &mockBinanceAPIClient{errs: []error{errors.New("rate limited")}}

	_, err := Collect(NewBinanceClientWithAPI(api).Fetch(context.Background(), Request{
		Symbol: "BTCUSDT", Timeframe: types.Timeframe1h, Start: suite.start, End: suite.start.Add(time.Hour),
	}, nil))
	suite.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeMarketDataFetchFailed))
}

func (suite *ProviderTestSuite) TestBinanceInvalidValue() {
	bad := suite.klines(suite.start, 1)
	bad[0].Close = "n/a"
	api := &mockBinanceAPIClient{pages: [][]*binance.Kline{bad}}

	_, err := Collect(NewBinanceClientWithAPI(api).Fetch(context.Background(), Request{
		Symbol: "BTCUSDT", Timeframe: types.Timeframe1h, Start: suite.start, End: suite.start.Add(time.Hour),
	}, nil))
	suite.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeMarketDataParseFailed))
}

func (suite *ProviderTestSuite) TestBinanceStopsWhenConsumerBreaks() {
	api := &mockBinanceAPIClient{pages: [][]*binance.Kline{suite.klines(suite.start, 5)}}

	seen := 0
	for _, err := range NewBinanceClientWithAPI(api).Fetch(context.Background(), Request{
		Symbol: "BTCUSDT", Timeframe: types.Timeframe1h, Start: suite.start, End: suite.start.Add(5 * time.Hour),
	}, nil) {
		suite.Require().NoError(err)

		seen++
		if seen == 2 {
			break
		}
	}

	suite.Equal(2, seen)
}

func (suite *ProviderTestSuite) TestPolygonFetch() {
	it := &mockPolygonIterator{aggs: []models.Agg{
		{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100, Timestamp: models.Millis(suite.start)},
		{Open: 1.5, High: 3, Low: 1, Close: 2.5, Volume: 200, Timestamp: models.Millis(suite.start.Add(4 * time.Hour))},
	}}
	api := &mockPolygonAPIClient{iterator: it}

	candles, err := Collect(NewPolygonClientWithAPI(api).Fetch(context.Background(), Request{
		Symbol: "SPY", Timeframe: types.Timeframe4h, Start: suite.start, End: suite.start.Add(48 * time.Hour),
	}, nil))
	suite.Require().NoError(err)
	suite.Require().Len(candles, 2)
	suite.Equal(2.5, candles[1].Close)
	suite.Equal(suite.start.Add(4*time.Hour), candles[1].Time)

	suite.Equal("SPY", api.params.Ticker)
	suite.Equal(4, api.params.Multiplier)
	suite.Equal(models.Hour, api.params.Timespan)
}

func (suite *ProviderTestSuite) TestPolygonIteratorError() {
	api := &mockPolygonAPIClient{iterator: &mockPolygonIterator{err: errors.New("unauthorized")}}

	_, err := Collect(NewPolygonClientWithAPI(api).Fetch(context.Background(), Request{
		Symbol: "SPY", Timeframe: types.Timeframe1d, Start: suite.start, End: suite.start.Add(48 * time.Hour),
	}, nil))
	suite.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeMarketDataFetchFailed))
}

func (suite *ProviderTestSuite) TestPolygonTimespan() {
	tests := []struct {
		tf         types.Timeframe
		multiplier int
		timespan   models.Timespan
		wantErr    bool
	}{
		{tf: types.Timeframe15m, multiplier: 15, timespan: models.Minute},
		{tf: types.Timeframe12h, multiplier: 12, timespan: models.Hour},
		{tf: types.Timeframe1d, multiplier: 1, timespan: models.Day},
		{tf: types.Timeframe("1w"), wantErr: true},
	}

	for _, tc := range tests {
		suite.Run(string(tc.tf), func() {
			multiplier, timespan, err := polygonTimespan(tc.tf)
			if tc.wantErr {
				suite.Error(err)

				return
			}

			suite.NoError(err)
			suite.Equal(tc.multiplier, multiplier)
			suite.Equal(tc.timespan, timespan)
		})
	}
}

func (suite *ProviderTestSuite) TestNewMarketDataProvider() {
	p, err := NewMarketDataProvider(ProviderBinance, "")
	suite.NoError(err)
	suite.IsType(&BinanceClient{}, p)

	_, err = NewMarketDataProvider(ProviderPolygon, "")
	suite.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeMissingParameter))

	p, err = NewMarketDataProvider(ProviderPolygon, "key")
	suite.NoError(err)
	suite.IsType(&PolygonClient{}, p)

	_, err = NewMarketDataProvider("yahoo", "")
	suite.True(pkgerrors.HasCode(err, pkgerrors.ErrCodeInvalidProvider))
}
