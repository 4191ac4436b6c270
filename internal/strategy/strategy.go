// Package strategy defines the strategy port consumed by live workers and the
// vectorized evaluator, together with the built-in strategies.
package strategy

import (
	"fmt"

	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// Strategy turns candles into trading decisions. Implementations are stateless
// between calls so one instance can serve a live worker or a backtest.
type Strategy interface {
	// Name returns the registry name of the strategy.
	Name() string
	// GenerateSignal evaluates the newest candle of the series.
	GenerateSignal(candles []types.Candle) (types.Signal, error)
	// CalculateIndicators adds the strategy's indicator columns to frame.
	CalculateIndicators(frame *Frame) error
	// PopulateEnter fills frame.Enter. Indicators must already be calculated.
	PopulateEnter(frame *Frame) error
	// PopulateExit fills frame.Exit. Indicators must already be calculated.
	PopulateExit(frame *Frame) error
}

// ExitAdvisor is implemented by strategies that have exits beyond signal reversal.
type ExitAdvisor interface {
	// ShouldExit reports whether the open position should be closed, and why.
	ShouldExit(position types.Position, candles []types.Candle) (bool, string)
}

// Populate runs the vectorized pipeline on frame.
func Populate(s Strategy, frame *Frame) error {
	if err := s.CalculateIndicators(frame); err != nil {
		return err
	}

	if err := s.PopulateEnter(frame); err != nil {
		return err
	}

	return s.PopulateExit(frame)
}

// SafeGenerateSignal calls GenerateSignal and converts a panic into a fatal
// strategy runtime error.
func SafeGenerateSignal(s Strategy, candles []types.Candle) (signal types.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeStrategyRuntimeError, "strategy %s panicked: %v", s.Name(), r)
		}
	}()

	return s.GenerateSignal(candles)
}

// signalFromFrame maps the last row of a populated frame to a signal.
// enter maps to long; exit maps to short unless longOnly is set.
func signalFromFrame(frame *Frame, longOnly bool, score float64, details map[string]any) types.Signal {
	signal := types.Signal{
		Action:  types.SignalHold,
		Score:   score,
		Details: details,
	}

	n := frame.Len()
	if n == 0 {
		return signal
	}

	signal.Time = frame.Time[n-1]

	switch {
	case frame.Enter[n-1]:
		signal.Action = types.SignalLong
	case frame.Exit[n-1] && !longOnly:
		signal.Action = types.SignalShort
	}

	return signal
}

func invalidParams(name string, format string, args ...any) error {
	return errors.Newf(errors.ErrCodeInvalidParameter, "%s: %s", name, fmt.Sprintf(format, args...))
}
