package mocks

import (
	"context"
	"testing"
	"time"
)

func TestDataGenerator_Generate(t *testing.T) {
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Count = 100

	data := gen.Generate(config)

	if len(data) != 100 {
		t.Errorf("expected 100 candles, got %d", len(data))
	}

	for i := 1; i < len(data); i++ {
		if !data[i].Time.After(data[i-1].Time) {
			t.Errorf("candles not in chronological order at index %d", i)
		}
	}

	for i, d := range data {
		if d.Open <= 0 || d.High <= 0 || d.Low <= 0 || d.Close <= 0 {
			t.Errorf("invalid OHLC values at index %d: O=%f H=%f L=%f C=%f",
				i, d.Open, d.High, d.Low, d.Close)
		}

		if d.High < d.Low {
			t.Errorf("High < Low at index %d: H=%f L=%f", i, d.High, d.Low)
		}
	}

	for i := 1; i < len(data); i++ {
		if got := data[i].Time.Sub(data[i-1].Time); got != config.Interval {
			t.Errorf("unexpected interval at index %d: expected %v, got %v", i, config.Interval, got)
		}
	}
}

func TestDataGenerator_Reproducibility(t *testing.T) {
	config := DefaultConfig()
	config.Count = 10

	data1 := NewDataGenerator(42).Generate(config)
	data2 := NewDataGenerator(42).Generate(config)

	for i := range data1 {
		if data1[i].Close != data2[i].Close {
			t.Errorf("data not reproducible at index %d: got %f and %f", i, data1[i].Close, data2[i].Close)
		}
	}
}

func TestDataGenerator_Different_Seeds(t *testing.T) {
	config := DefaultConfig()
	config.Count = 10

	data1 := NewDataGenerator(42).Generate(config)
	data2 := NewDataGenerator(123).Generate(config)

	sameCount := 0
	for i := range data1 {
		if data1[i].Close == data2[i].Close {
			sameCount++
		}
	}

	if sameCount == len(data1) {
		t.Error("different seeds produced identical data")
	}
}

func TestGenerate10K(t *testing.T) {
	data := Generate10K()

	if len(data) != 10000 {
		t.Errorf("expected 10000 candles, got %d", len(data))
	}
}

func TestTriangleWave(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := TriangleWave(start, time.Hour, 41, 20, 90, 110, 0.5)

	if data[0].Close != 90 {
		t.Errorf("expected first close 90, got %f", data[0].Close)
	}

	if data[10].Close != 110 {
		t.Errorf("expected peak close 110 at bar 10, got %f", data[10].Close)
	}

	if data[20].Close != 90 {
		t.Errorf("expected trough close 90 at bar 20, got %f", data[20].Close)
	}

	if data[5].High != data[5].Close+0.5 {
		t.Errorf("expected high to extend by spread, got %f", data[5].High)
	}
}

func TestReplaySource(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := NewReplaySource(FlatThenDrop(start, time.Hour, 5, 100, 4), 3)

	got, err := src.FetchOHLCV(context.Background(), "BTC/USDT", "1h", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 2 || !got[1].Time.Equal(start.Add(2*time.Hour)) {
		t.Errorf("expected the two newest visible bars, got %+v", got)
	}

	for src.Advance() {
	}

	got, _ = src.FetchOHLCV(context.Background(), "BTC/USDT", "1h", 0)
	if len(got) != 6 || got[5].Close != 96 {
		t.Errorf("expected full series ending in the drop bar, got %+v", got)
	}

	if src.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", src.Calls())
	}
}
