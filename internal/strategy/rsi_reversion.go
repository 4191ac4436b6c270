package strategy

import (
	"math"

	"github.com/rxtech-lab/argo-fleet/internal/indicator"
	"github.com/rxtech-lab/argo-fleet/internal/types"
)

const RSIReversionName = "rsi_reversion"

type RSIReversionParams struct {
	RSIPeriod  int     `json:"rsi_period" jsonschema:"title=RSI Period,minimum=2,default=14" validate:"gte=2"`
	Oversold   float64 `json:"oversold" jsonschema:"title=Oversold Level,minimum=0,maximum=100,default=30" validate:"gt=0,lt=100"`
	Overbought float64 `json:"overbought" jsonschema:"title=Overbought Level,minimum=0,maximum=100,default=70" validate:"gt=0,lt=100"`
}

// RSIReversion goes long on oversold readings and short on overbought ones.
type RSIReversion struct {
	params RSIReversionParams
}

var _ Strategy = (*RSIReversion)(nil)

func NewRSIReversion(params map[string]any) (Strategy, error) {
	p := RSIReversionParams{RSIPeriod: 14, Oversold: 30, Overbought: 70}
	if err := decodeParams(RSIReversionName, params, &p); err != nil {
		return nil, err
	}

	if p.Oversold >= p.Overbought {
		return nil, invalidParams(RSIReversionName, "oversold (%.2f) must be below overbought (%.2f)", p.Oversold, p.Overbought)
	}

	return &RSIReversion{params: p}, nil
}

func (s *RSIReversion) Name() string {
	return RSIReversionName
}

func (s *RSIReversion) CalculateIndicators(frame *Frame) error {
	rsi, err := indicator.RSI(frame.Close, s.params.RSIPeriod)
	if err != nil {
		return err
	}

	return frame.SetColumn("rsi", rsi)
}

func (s *RSIReversion) PopulateEnter(frame *Frame) error {
	rsi, err := frame.MustColumn("rsi")
	if err != nil {
		return err
	}

	for i, v := range rsi {
		frame.Enter[i] = !math.IsNaN(v) && v < s.params.Oversold
	}

	return nil
}

func (s *RSIReversion) PopulateExit(frame *Frame) error {
	rsi, err := frame.MustColumn("rsi")
	if err != nil {
		return err
	}

	for i, v := range rsi {
		frame.Exit[i] = !math.IsNaN(v) && v > s.params.Overbought
	}

	return nil
}

func (s *RSIReversion) GenerateSignal(candles []types.Candle) (types.Signal, error) {
	frame := NewFrame(candles)
	if err := Populate(s, frame); err != nil {
		return types.Signal{}, err
	}

	rsi := frame.LastValue("rsi")

	score := 0.0
	if !math.IsNaN(rsi) {
		score = (50 - rsi) / 50
	}

	return signalFromFrame(frame, false, score, map[string]any{"rsi": finiteOrZero(rsi)}), nil
}
