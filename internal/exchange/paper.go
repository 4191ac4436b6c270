package exchange

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-fleet/internal/commission_fee"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

const (
	DefaultPaperBalance = 10000.0
	paperAsset          = "USDT"
	// quantities below this are treated as zero
	sizeEpsilon = 1e-12
)

type paperPosition struct {
	direction  float64
	size       float64
	entry      float64
	openedAt   time.Time
	markedBar  time.Time
	takeProfit optional.Option[float64]
	stopLoss   optional.Option[float64]
}

type paperOrder struct {
	id            string
	symbol        string
	side          types.OrderSide
	price         float64
	amount        float64
	takeProfitPct optional.Option[float64]
	stopLossPct   optional.Option[float64]
	createdAt     time.Time
	createdBar    time.Time
}

type realizedEntry struct {
	symbol string
	at     time.Time
	pnl    decimal.Decimal
}

// PaperExchange simulates a futures account. Market orders fill instantly at the
// latest close seen from its CandleSource, limit orders rest until a newer bar
// crosses their price, and take-profit/stop-loss triggers are settled on
// FetchPosition against the latest bar with stop-loss winning ties.
type PaperExchange struct {
	mu        sync.Mutex
	source    CandleSource
	fee       commission_fee.CommissionFee
	cash      decimal.Decimal
	leverage  map[string]int
	positions map[string]*paperPosition
	orders    map[string]*paperOrder
	lastBar   map[string]types.Candle
	realized  []realizedEntry
	clock     func() time.Time
}

type PaperOption func(*PaperExchange)

func WithPaperBalance(amount float64) PaperOption {
	return func(p *PaperExchange) {
		p.cash = decimal.NewFromFloat(amount)
	}
}

func WithPaperFee(fee commission_fee.CommissionFee) PaperOption {
	return func(p *PaperExchange) {
		p.fee = fee
	}
}

func WithPaperClock(clock func() time.Time) PaperOption {
	return func(p *PaperExchange) {
		p.clock = clock
	}
}

// NewPaperExchange creates a paper account backed by source. The default fee model
// is the Binance futures taker rate, the same one the backtest evaluator charges.
func NewPaperExchange(source CandleSource, opts ...PaperOption) *PaperExchange {
	p := &PaperExchange{
		source:    source,
		fee:       commission_fee.GetCommissionFeeHandler(commission_fee.BrokerBinanceFutures),
		cash:      decimal.NewFromFloat(DefaultPaperBalance),
		leverage:  make(map[string]int),
		positions: make(map[string]*paperPosition),
		orders:    make(map[string]*paperOrder),
		lastBar:   make(map[string]types.Candle),
		clock:     time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *PaperExchange) FetchOHLCV(ctx context.Context, symbol string, timeframe types.Timeframe, limit int) ([]types.Candle, error) {
	candles, err := p.source.FetchOHLCV(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}

	if len(candles) > 0 {
		p.mu.Lock()
		last := candles[len(candles)-1]
		if prev, ok := p.lastBar[symbol]; !ok || !last.Time.Before(prev.Time) {
			p.lastBar[symbol] = last
		}
		p.mu.Unlock()
	}

	return candles, nil
}

func (p *PaperExchange) FetchPosition(_ context.Context, symbol string) (types.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.settle(symbol)

	pos, ok := p.positions[symbol]
	if !ok {
		return types.Position{Symbol: symbol, Side: types.PositionSideNone}, nil
	}

	side := types.PositionSideLong
	if pos.direction < 0 {
		side = types.PositionSideShort
	}

	return types.Position{
		Symbol:     symbol,
		Side:       side,
		Size:       pos.size,
		EntryPrice: pos.entry,
		OpenedAt:   optional.Some(pos.openedAt),
	}, nil
}

func (p *PaperExchange) FetchBalance(_ context.Context) (types.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := p.cash
	used := decimal.Zero

	for symbol, pos := range p.positions {
		if bar, ok := p.lastBar[symbol]; ok {
			total = total.Add(decimal.NewFromFloat((bar.Close - pos.entry) * pos.size * pos.direction))
		}

		used = used.Add(decimal.NewFromFloat(pos.entry * pos.size / float64(p.leverageFor(symbol))))
	}

	return types.Balance{
		Asset:     paperAsset,
		Total:     total.InexactFloat64(),
		Available: p.cash.Sub(used).InexactFloat64(),
	}, nil
}

func (p *PaperExchange) CreateOrder(ctx context.Context, req types.OrderRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	if req.Kind == types.OrderKindLimit {
		return p.restLimitOrder(req), nil
	}

	price, err := p.markPrice(ctx, req.Symbol)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkMargin(req.Symbol, req.Side, req.Amount, price); err != nil {
		return "", err
	}

	p.fill(req.Symbol, req.Side, req.Amount, price, p.lastBar[req.Symbol].Time)
	p.attachTriggers(req.Symbol, req.Side, price, req.TakeProfitPct, req.StopLossPct)

	return uuid.NewString(), nil
}

func (p *PaperExchange) CancelOrder(_ context.Context, orderID string, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok || order.symbol != symbol {
		return errors.Newf(errors.ErrCodeCancelFailed, "order %s not found on %s", orderID, symbol)
	}

	delete(p.orders, orderID)

	return nil
}

func (p *PaperExchange) FetchOpenOrders(_ context.Context, symbol string) ([]types.OpenOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.settle(symbol)

	out := make([]types.OpenOrder, 0)

	for _, o := range p.orders {
		if o.symbol != symbol {
			continue
		}

		out = append(out, types.OpenOrder{
			ID:        o.id,
			Symbol:    o.symbol,
			Side:      o.side,
			Kind:      types.OrderKindLimit,
			Price:     o.price,
			Amount:    o.amount,
			CreatedAt: o.createdAt,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}

		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func (p *PaperExchange) ClosePosition(ctx context.Context, symbol string) error {
	p.mu.Lock()
	_, open := p.positions[symbol]
	p.mu.Unlock()

	if !open {
		return nil
	}

	price, err := p.markPrice(ctx, symbol)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return nil
	}

	side := types.OrderSideSell
	if pos.direction < 0 {
		side = types.OrderSideBuy
	}

	p.fill(symbol, side, pos.size, price, p.lastBar[symbol].Time)

	return nil
}

func (p *PaperExchange) SetLeverage(_ context.Context, symbol string, leverage int) error {
	if leverage < 1 || leverage > 125 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "leverage must be between 1 and 125, got %d", leverage)
	}

	p.mu.Lock()
	p.leverage[symbol] = leverage
	p.mu.Unlock()

	return nil
}

// FetchRealizedPnL sums realized PnL on symbol since the given time, before fees.
func (p *PaperExchange) FetchRealizedPnL(_ context.Context, symbol string, since time.Time) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := decimal.Zero

	for _, entry := range p.realized {
		if entry.symbol == symbol && !entry.at.Before(since) {
			total = total.Add(entry.pnl)
		}
	}

	return total, nil
}

func (p *PaperExchange) restLimitOrder(req types.OrderRequest) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := uuid.NewString()
	p.orders[id] = &paperOrder{
		id:            id,
		symbol:        req.Symbol,
		side:          req.Side,
		price:         req.Price.Unwrap(),
		amount:        req.Amount,
		takeProfitPct: req.TakeProfitPct,
		stopLossPct:   req.StopLossPct,
		createdAt:     p.clock(),
		createdBar:    p.lastBar[req.Symbol].Time,
	}

	return id
}

func (p *PaperExchange) markPrice(ctx context.Context, symbol string) (float64, error) {
	p.mu.Lock()
	bar, ok := p.lastBar[symbol]
	p.mu.Unlock()

	if ok {
		return bar.Close, nil
	}

	candles, err := p.FetchOHLCV(ctx, symbol, types.Timeframe1m, 1)
	if err != nil {
		return 0, err
	}

	if len(candles) == 0 {
		return 0, errors.Newf(errors.ErrCodeMarketDataMissing, "no price available for %s", symbol)
	}

	return types.LastClose(candles), nil
}

// checkMargin rejects orders that would increase exposure beyond available margin.
// Must be called with p.mu held.
func (p *PaperExchange) checkMargin(symbol string, side types.OrderSide, amount float64, price float64) error {
	dir := sideDirection(side)
	if pos, ok := p.positions[symbol]; ok && pos.direction != dir && amount <= pos.size+sizeEpsilon {
		return nil
	}

	used := decimal.Zero
	for sym, pos := range p.positions {
		used = used.Add(decimal.NewFromFloat(pos.entry * pos.size / float64(p.leverageFor(sym))))
	}

	required := decimal.NewFromFloat(amount*price/float64(p.leverageFor(symbol)) + p.fee.Calculate(amount, price))
	if required.GreaterThan(p.cash.Sub(used)) {
		return errors.Newf(errors.ErrCodeOrderFailed, "insufficient margin: required %s, available %s",
			required.StringFixed(2), p.cash.Sub(used).StringFixed(2))
	}

	return nil
}

// fill applies a fill to the position book. Must be called with p.mu held.
func (p *PaperExchange) fill(symbol string, side types.OrderSide, amount float64, price float64, barTime time.Time) {
	dir := sideDirection(side)
	p.cash = p.cash.Sub(decimal.NewFromFloat(p.fee.Calculate(amount, price)))

	pos, ok := p.positions[symbol]
	if !ok {
		p.positions[symbol] = &paperPosition{
			direction: dir,
			size:      amount,
			entry:     price,
			openedAt:  p.clock(),
			markedBar: barTime,
		}

		return
	}

	if pos.direction == dir {
		pos.entry = (pos.entry*pos.size + price*amount) / (pos.size + amount)
		pos.size += amount

		return
	}

	closing := math.Min(amount, pos.size)
	pnl := decimal.NewFromFloat((price - pos.entry) * closing * pos.direction)
	p.cash = p.cash.Add(pnl)
	p.realized = append(p.realized, realizedEntry{symbol: symbol, at: p.clock(), pnl: pnl})

	pos.size -= closing
	if pos.size <= sizeEpsilon {
		delete(p.positions, symbol)
	}

	if remaining := amount - closing; remaining > sizeEpsilon {
		p.positions[symbol] = &paperPosition{
			direction: dir,
			size:      remaining,
			entry:     price,
			openedAt:  p.clock(),
			markedBar: barTime,
		}
	}
}

// attachTriggers sets take-profit and stop-loss prices relative to the fill price
// when the fill left a position on the ordered side. Must be called with p.mu held.
func (p *PaperExchange) attachTriggers(symbol string, side types.OrderSide, price float64,
	takeProfitPct optional.Option[float64], stopLossPct optional.Option[float64],
) {
	pos, ok := p.positions[symbol]
	if !ok || pos.direction != sideDirection(side) {
		return
	}

	if takeProfitPct.IsSome() {
		pos.takeProfit = optional.Some(price * (1 + pos.direction*takeProfitPct.Unwrap()))
	}

	if stopLossPct.IsSome() {
		pos.stopLoss = optional.Some(price * (1 - pos.direction*stopLossPct.Unwrap()))
	}
}

// settle fills resting limit orders and triggers against the latest bar.
// Only bars newer than the order or position are considered. Must be called with p.mu held.
func (p *PaperExchange) settle(symbol string) {
	bar, ok := p.lastBar[symbol]
	if !ok {
		return
	}

	ids := make([]string, 0, len(p.orders))
	for id := range p.orders {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		o := p.orders[id]
		if o.symbol != symbol || !bar.Time.After(o.createdBar) {
			continue
		}

		crossed := (o.side == types.OrderSideBuy && bar.Low <= o.price) ||
			(o.side == types.OrderSideSell && bar.High >= o.price)
		if !crossed {
			continue
		}

		delete(p.orders, id)
		p.fill(symbol, o.side, o.amount, o.price, bar.Time)
		p.attachTriggers(symbol, o.side, o.price, o.takeProfitPct, o.stopLossPct)
	}

	pos, ok := p.positions[symbol]
	if !ok || !bar.Time.After(pos.markedBar) {
		return
	}

	exitSide := types.OrderSideSell
	if pos.direction < 0 {
		exitSide = types.OrderSideBuy
	}

	if pos.stopLoss.IsSome() {
		sl := pos.stopLoss.Unwrap()
		if (pos.direction > 0 && bar.Low <= sl) || (pos.direction < 0 && bar.High >= sl) {
			p.fill(symbol, exitSide, pos.size, sl, bar.Time)

			return
		}
	}

	if pos.takeProfit.IsSome() {
		tp := pos.takeProfit.Unwrap()
		if (pos.direction > 0 && bar.High >= tp) || (pos.direction < 0 && bar.Low <= tp) {
			p.fill(symbol, exitSide, pos.size, tp, bar.Time)

			return
		}
	}

	pos.markedBar = bar.Time
}

func (p *PaperExchange) leverageFor(symbol string) int {
	if lev, ok := p.leverage[symbol]; ok {
		return lev
	}

	return 1
}

func sideDirection(side types.OrderSide) float64 {
	if side == types.OrderSideSell {
		return -1
	}

	return 1
}
