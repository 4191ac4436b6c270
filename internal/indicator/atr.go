package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// ATR returns the average true range with Wilder's smoothing.
func ATR(high, low, close []float64, period int) ([]float64, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	if len(high) != len(low) || len(low) != len(close) {
		return nil, errors.New(errors.ErrCodeIndicatorCalculation, "high, low and close must have the same length")
	}

	n := len(close)
	out := nanSeries(n)

	if n < period {
		return out, nil
	}

	tr := make([]float64, n)
	for i := range close {
		if i == 0 {
			tr[i] = high[i] - low[i]

			continue
		}

		tr[i] = math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-close[i-1]), math.Abs(low[i]-close[i-1])))
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += tr[i]
	}

	atr := sum / float64(period)
	out[period-1] = atr

	for i := period; i < n; i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}

	return out, nil
}
