package mocks

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-fleet/internal/types"
)

// DataGenerator generates candle series for tests and benchmarks.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how candles are generated.
type GeneratorConfig struct {
	StartTime time.Time
	Interval  time.Duration
	Count     int
	// InitialPrice is the first open.
	InitialPrice float64
	// Volatility controls price movement (0.01 = 1% per bar)
	Volatility float64
	// Trend is the total drift across the series
	Trend          float64
	VolumeBase     float64
	VolumeVariance float64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		StartTime:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:       time.Hour,
		Count:          10000,
		InitialPrice:   100.0,
		Volatility:     0.002,
		Trend:          0.0,
		VolumeBase:     10000,
		VolumeVariance: 0.3,
	}
}

// Generate follows a geometric Brownian motion.
func (g *DataGenerator) Generate(config GeneratorConfig) []types.Candle {
	data := make([]types.Candle, config.Count)
	currentPrice := config.InitialPrice
	currentTime := config.StartTime

	for i := 0; i < config.Count; i++ {
		open := currentPrice
		priceChange := g.rng.NormFloat64() * config.Volatility
		drift := config.Trend / float64(config.Count)

		close := open * (1 + priceChange + drift)
		if close <= 0 {
			close = open * 0.99
		}

		highExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)
		lowExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)

		high := math.Max(open, close) + highExtension
		low := math.Min(open, close) - lowExtension
		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		volumeVariation := 1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance
		volume := config.VolumeBase * volumeVariation
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		data[i] = types.Candle{
			Time:   currentTime,
			Open:   roundToDecimals(open, 4),
			High:   roundToDecimals(high, 4),
			Low:    roundToDecimals(low, 4),
			Close:  roundToDecimals(close, 4),
			Volume: roundToDecimals(volume, 2),
		}

		currentPrice = close
		currentTime = currentTime.Add(config.Interval)
	}

	return data
}

// Generate10K is a convenience function to generate 10,000 candles
// with default settings for benchmarking.
func Generate10K() []types.Candle {
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Count = 10000

	return gen.Generate(config)
}

// TriangleWave returns count candles whose close oscillates linearly between
// low and high with the given period in bars. Each bar's high and low extend
// by spread around the open/close range.
func TriangleWave(start time.Time, interval time.Duration, count, period int, low, high, spread float64) []types.Candle {
	data := make([]types.Candle, count)
	half := float64(period) / 2
	price := func(i int) float64 {
		phase := math.Mod(float64(i), float64(period))
		if phase <= half {
			return low + (high-low)*phase/half
		}

		return high - (high-low)*(phase-half)/half
	}

	for i := 0; i < count; i++ {
		open := price(i)
		if i > 0 {
			open = data[i-1].Close
		}

		close := price(i)
		data[i] = types.Candle{
			Time:   start.Add(time.Duration(i) * interval),
			Open:   open,
			High:   math.Max(open, close) + spread,
			Low:    math.Min(open, close) - spread,
			Close:  close,
			Volume: 1000,
		}
	}

	return data
}

// FlatThenDrop returns count flat candles at price followed by a single bar
// that closes dropPct percent lower.
func FlatThenDrop(start time.Time, interval time.Duration, count int, price, dropPct float64) []types.Candle {
	data := make([]types.Candle, 0, count+1)
	for i := 0; i < count; i++ {
		data = append(data, types.Candle{
			Time: start.Add(time.Duration(i) * interval), Open: price, High: price, Low: price, Close: price, Volume: 1000,
		})
	}

	dropped := price * (1 - dropPct/100)
	data = append(data, types.Candle{
		Time: start.Add(time.Duration(count) * interval), Open: price, High: price, Low: dropped, Close: dropped, Volume: 1000,
	})

	return data
}

// ReplaySource serves a fixed candle series as if it were live. Each call to
// Advance exposes one more bar; FetchOHLCV returns the newest limit bars seen
// so far.
type ReplaySource struct {
	mu      sync.Mutex
	candles []types.Candle
	cursor  int
	calls   int
}

// NewReplaySource exposes the first visible candles immediately.
func NewReplaySource(candles []types.Candle, visible int) *ReplaySource {
	if visible > len(candles) {
		visible = len(candles)
	}

	return &ReplaySource{candles: candles, cursor: visible}
}

// FetchOHLCV implements exchange.CandleSource.
func (r *ReplaySource) FetchOHLCV(_ context.Context, _ string, _ types.Timeframe, limit int) ([]types.Candle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	end := r.cursor
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}

	out := make([]types.Candle, end-start)
	copy(out, r.candles[start:end])

	return out, nil
}

// Advance exposes the next bar. It returns false once the series is exhausted.
func (r *ReplaySource) Advance() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cursor >= len(r.candles) {
		return false
	}

	r.cursor++

	return true
}

// Calls returns how many times FetchOHLCV has been called.
func (r *ReplaySource) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls
}

func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))

	return math.Round(val*pow) / pow
}
