package strategy

import (
	"math"

	"github.com/rxtech-lab/argo-fleet/internal/indicator"
	"github.com/rxtech-lab/argo-fleet/internal/types"
)

const SMACrossoverName = "sma_crossover"

type SMACrossoverParams struct {
	FastPeriod int `json:"fast_period" jsonschema:"title=Fast Period,description=Period of the fast moving average,minimum=1,default=10" validate:"gte=1"`
	SlowPeriod int `json:"slow_period" jsonschema:"title=Slow Period,description=Period of the slow moving average,minimum=2,default=30" validate:"gte=2"`
}

// SMACrossover trades crosses of two simple moving averages.
type SMACrossover struct {
	params SMACrossoverParams
}

var _ Strategy = (*SMACrossover)(nil)

func NewSMACrossover(params map[string]any) (Strategy, error) {
	p := SMACrossoverParams{FastPeriod: 10, SlowPeriod: 30}
	if err := decodeParams(SMACrossoverName, params, &p); err != nil {
		return nil, err
	}

	if p.FastPeriod >= p.SlowPeriod {
		return nil, invalidParams(SMACrossoverName, "fast_period (%d) must be below slow_period (%d)", p.FastPeriod, p.SlowPeriod)
	}

	return &SMACrossover{params: p}, nil
}

func (s *SMACrossover) Name() string {
	return SMACrossoverName
}

func (s *SMACrossover) CalculateIndicators(frame *Frame) error {
	fast, err := indicator.SMA(frame.Close, s.params.FastPeriod)
	if err != nil {
		return err
	}

	slow, err := indicator.SMA(frame.Close, s.params.SlowPeriod)
	if err != nil {
		return err
	}

	if err := frame.SetColumn("sma_fast", fast); err != nil {
		return err
	}

	return frame.SetColumn("sma_slow", slow)
}

func (s *SMACrossover) PopulateEnter(frame *Frame) error {
	fast, slow, err := s.columns(frame)
	if err != nil {
		return err
	}

	for i := range frame.Enter {
		frame.Enter[i] = indicator.CrossAbove(fast, slow, i)
	}

	return nil
}

func (s *SMACrossover) PopulateExit(frame *Frame) error {
	fast, slow, err := s.columns(frame)
	if err != nil {
		return err
	}

	for i := range frame.Exit {
		frame.Exit[i] = indicator.CrossBelow(fast, slow, i)
	}

	return nil
}

func (s *SMACrossover) GenerateSignal(candles []types.Candle) (types.Signal, error) {
	frame := NewFrame(candles)
	if err := Populate(s, frame); err != nil {
		return types.Signal{}, err
	}

	fast := frame.LastValue("sma_fast")
	slow := frame.LastValue("sma_slow")

	score := 0.0
	if !math.IsNaN(fast) && !math.IsNaN(slow) && slow != 0 {
		score = (fast - slow) / slow
	}

	details := map[string]any{
		"sma_fast": finiteOrZero(fast),
		"sma_slow": finiteOrZero(slow),
	}

	return signalFromFrame(frame, false, score, details), nil
}

func (s *SMACrossover) columns(frame *Frame) ([]float64, []float64, error) {
	fast, err := frame.MustColumn("sma_fast")
	if err != nil {
		return nil, nil, err
	}

	slow, err := frame.MustColumn("sma_slow")
	if err != nil {
		return nil, nil, err
	}

	return fast, slow, nil
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return v
}
