package strategy

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

const (
	baseCandleLimit = 100
	maxCandleLimit  = 1000
)

var periodLikeNames = []string{"period", "window", "length", "lookback", "span"}

// decodeParams decodes a loosely typed parameter map into the typed params struct
// pointed to by out, keeping the defaults already set in out, and validates it.
// Unknown keys are rejected.
func decodeParams(name string, params map[string]any, out any) error {
	if len(params) > 0 {
		raw, err := json.Marshal(params)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "%s: cannot encode parameters", name)
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()

		if err := dec.Decode(out); err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "%s: invalid parameters", name)
		}
	}

	if err := validator.New().Struct(out); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "%s: invalid parameters", name)
	}

	return nil
}

// CandleLimit returns how many candles a live worker fetches: a base of 100 plus
// the largest period-like numeric parameter, capped at 1000.
func CandleLimit(params map[string]any) int {
	largest := 0.0

	for key, value := range params {
		if !isPeriodLike(key) {
			continue
		}

		v, ok := toFloat(value)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}

		if v > largest {
			largest = v
		}
	}

	// clamp before converting so huge values cannot overflow int
	largest = math.Min(math.Ceil(largest), maxCandleLimit)

	return min(baseCandleLimit+int(largest), maxCandleLimit)
}

func isPeriodLike(key string) bool {
	lower := strings.ToLower(key)
	for _, name := range periodLikeNames {
		if strings.Contains(lower, name) {
			return true
		}
	}

	return false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()

		return f, err == nil
	default:
		return 0, false
	}
}
