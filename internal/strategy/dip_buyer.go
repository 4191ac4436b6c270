package strategy

import (
	"math"

	"github.com/rxtech-lab/argo-fleet/internal/indicator"
	"github.com/rxtech-lab/argo-fleet/internal/types"
)

const DipBuyerName = "dip_buyer"

const (
	exitReasonMeanReverted = "mean_reverted"
	exitReasonMaxHold      = "max_hold"
)

type DipBuyerParams struct {
	Period int     `json:"period" jsonschema:"title=Period,description=Moving average period,minimum=2,default=20" validate:"gte=2"`
	DipPct float64 `json:"dip_pct" jsonschema:"title=Dip Percentage,description=Distance below the average that counts as a dip,default=0.03" validate:"gt=0,lt=1"`
	// MaxHoldBars closes a position after this many bars. Zero disables it.
	MaxHoldBars int `json:"max_hold_bars" jsonschema:"title=Max Hold Bars,minimum=0,default=0" validate:"gte=0"`
}

// DipBuyer is a long-only mean reversion strategy. It never emits short signals;
// its exits come from ShouldExit.
type DipBuyer struct {
	params DipBuyerParams
}

var (
	_ Strategy    = (*DipBuyer)(nil)
	_ ExitAdvisor = (*DipBuyer)(nil)
)

func NewDipBuyer(params map[string]any) (Strategy, error) {
	p := DipBuyerParams{Period: 20, DipPct: 0.03, MaxHoldBars: 0}
	if err := decodeParams(DipBuyerName, params, &p); err != nil {
		return nil, err
	}

	return &DipBuyer{params: p}, nil
}

func (s *DipBuyer) Name() string {
	return DipBuyerName
}

func (s *DipBuyer) CalculateIndicators(frame *Frame) error {
	sma, err := indicator.SMA(frame.Close, s.params.Period)
	if err != nil {
		return err
	}

	return frame.SetColumn("sma", sma)
}

func (s *DipBuyer) PopulateEnter(frame *Frame) error {
	sma, err := frame.MustColumn("sma")
	if err != nil {
		return err
	}

	for i, avg := range sma {
		frame.Enter[i] = !math.IsNaN(avg) && frame.Close[i] < avg*(1-s.params.DipPct)
	}

	return nil
}

func (s *DipBuyer) PopulateExit(frame *Frame) error {
	sma, err := frame.MustColumn("sma")
	if err != nil {
		return err
	}

	for i, avg := range sma {
		frame.Exit[i] = !math.IsNaN(avg) && frame.Close[i] >= avg
	}

	return nil
}

func (s *DipBuyer) GenerateSignal(candles []types.Candle) (types.Signal, error) {
	frame := NewFrame(candles)
	if err := Populate(s, frame); err != nil {
		return types.Signal{}, err
	}

	sma := frame.LastValue("sma")

	score := 0.0
	if !math.IsNaN(sma) && sma != 0 {
		score = (sma - types.LastClose(candles)) / sma
	}

	return signalFromFrame(frame, true, score, map[string]any{"sma": finiteOrZero(sma)}), nil
}

func (s *DipBuyer) ShouldExit(position types.Position, candles []types.Candle) (bool, string) {
	if position.IsFlat() || len(candles) == 0 {
		return false, ""
	}

	if s.params.MaxHoldBars > 0 && position.OpenedAt.IsSome() {
		openedAt := position.OpenedAt.Unwrap()
		held := 0

		for _, c := range candles {
			if c.Time.After(openedAt) {
				held++
			}
		}

		if held >= s.params.MaxHoldBars {
			return true, exitReasonMaxHold
		}
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	sma, err := indicator.SMA(closes, s.params.Period)
	if err != nil {
		return false, ""
	}

	last := sma[len(sma)-1]
	if !math.IsNaN(last) && closes[len(closes)-1] >= last {
		return true, exitReasonMeanReverted
	}

	return false, ""
}
