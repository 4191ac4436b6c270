// Package indicator computes indicator columns over a whole series in one pass.
// Warm-up positions are NaN.
package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}

func validatePeriod(period int) error {
	if period < 1 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "period must be positive, got %d", period)
	}

	return nil
}

// CrossAbove reports whether a crossed above b at index i.
func CrossAbove(a, b []float64, i int) bool {
	if i < 1 || i >= len(a) || i >= len(b) {
		return false
	}

	if anyNaN(a[i-1], a[i], b[i-1], b[i]) {
		return false
	}

	return a[i-1] <= b[i-1] && a[i] > b[i]
}

// CrossBelow reports whether a crossed below b at index i.
func CrossBelow(a, b []float64, i int) bool {
	if i < 1 || i >= len(a) || i >= len(b) {
		return false
	}

	if anyNaN(a[i-1], a[i], b[i-1], b[i]) {
		return false
	}

	return a[i-1] >= b[i-1] && a[i] < b[i]
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}

	return false
}
