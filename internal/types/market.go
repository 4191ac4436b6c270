package types

import "time"

// Timeframe is a candle interval in exchange notation.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe3m  Timeframe = "3m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe2h  Timeframe = "2h"
	Timeframe4h  Timeframe = "4h"
	Timeframe6h  Timeframe = "6h"
	Timeframe8h  Timeframe = "8h"
	Timeframe12h Timeframe = "12h"
	Timeframe1d  Timeframe = "1d"
)

var timeframeDurations = map[Timeframe]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe3m:  3 * time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe30m: 30 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe2h:  2 * time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe6h:  6 * time.Hour,
	Timeframe8h:  8 * time.Hour,
	Timeframe12h: 12 * time.Hour,
	Timeframe1d:  24 * time.Hour,
}

// Duration returns the bar length, or false if the timeframe is unknown.
func (t Timeframe) Duration() (time.Duration, bool) {
	d, ok := timeframeDurations[t]

	return d, ok
}

// IsValid reports whether t is a supported timeframe.
func (t Timeframe) IsValid() bool {
	_, ok := timeframeDurations[t]

	return ok
}

// Candle is one OHLCV bar.
type Candle struct {
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// LastClose returns the close of the newest candle, or 0 for an empty series.
func LastClose(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}

	return candles[len(candles)-1].Close
}
