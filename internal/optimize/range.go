// Package optimize searches strategy parameter spaces by running backtests.
package optimize

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// floatRangeSteps is how many intervals a [min,max] float range is split into.
const floatRangeSteps = 10

// maxRangeValues bounds the size of one expanded range.
const maxRangeValues = 10000

// ParamRange is the set of values one parameter may take.
//
// Accepted forms:
//
//	[10, 30]          integers 10..30 step 1
//	[0.01, 0.05]      floats split into 10 steps
//	[10, 30, 5]       10, 15, 20, 25, 30
//	["a", "b", 3]     enumerated set (any list that is not 2 or 3 numbers)
//	{values: [1, 2]}  enumerated set, for lists of 2 or 3 numbers
//	7                 a single fixed value
type ParamRange struct {
	values []any
}

// Values returns the expanded values in ascending or declared order.
func (r ParamRange) Values() []any {
	return slices.Clone(r.values)
}

func (r ParamRange) Len() int {
	return len(r.values)
}

// Enumerate builds a range from an explicit set.
func Enumerate(values ...any) ParamRange {
	return ParamRange{values: slices.Clone(values)}
}

// NewParamRange interprets raw as described on ParamRange.
func NewParamRange(raw any) (ParamRange, error) {
	switch v := raw.(type) {
	case []any:
		return fromList(v)
	case map[string]any:
		values, ok := v["values"].([]any)
		if !ok || len(v) != 1 {
			return ParamRange{}, errors.New(errors.ErrCodeInvalidRange, "object ranges must have exactly one key, values, holding a list")
		}

		if len(values) == 0 {
			return ParamRange{}, errors.New(errors.ErrCodeInvalidRange, "empty value list")
		}

		return Enumerate(values...), nil
	case nil:
		return ParamRange{}, errors.New(errors.ErrCodeInvalidRange, "range is empty")
	default:
		return Enumerate(v), nil
	}
}

func fromList(list []any) (ParamRange, error) {
	if len(list) == 0 {
		return ParamRange{}, errors.New(errors.ErrCodeInvalidRange, "empty value list")
	}

	nums, ok := numbers(list)
	if !ok || (len(nums) != 2 && len(nums) != 3) {
		return Enumerate(list...), nil
	}

	lo, hi := nums[0], nums[1]
	if lo > hi {
		return ParamRange{}, errors.Newf(errors.ErrCodeInvalidRange, "range min %v is greater than max %v", lo, hi)
	}

	integral := allIntegral(nums)

	var step float64

	switch {
	case len(nums) == 3:
		step = nums[2]
		if step <= 0 {
			return ParamRange{}, errors.Newf(errors.ErrCodeInvalidRange, "range step must be positive, got %v", step)
		}
	case integral:
		step = 1
	default:
		step = (hi - lo) / floatRangeSteps
		if step == 0 {
			return Enumerate(lo), nil
		}
	}

	if (hi-lo)/step > maxRangeValues {
		return ParamRange{}, errors.Newf(errors.ErrCodeInvalidRange, "range [%v, %v] step %v expands to more than %d values", lo, hi, step, maxRangeValues)
	}

	var values []any

	for k := 0; ; k++ {
		v := lo + float64(k)*step
		if v > hi+step*1e-9 {
			break
		}

		if integral {
			values = append(values, int(math.Round(v)))
		} else {
			values = append(values, roundFloat(v))
		}
	}

	return ParamRange{values: values}, nil
}

func numbers(list []any) ([]float64, bool) {
	out := make([]float64, len(list))

	for i, item := range list {
		switch v := item.(type) {
		case int:
			out[i] = float64(v)
		case int64:
			out[i] = float64(v)
		case float64:
			out[i] = v
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return nil, false
			}

			out[i] = f
		default:
			return nil, false
		}

		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return nil, false
		}
	}

	return out, true
}

func allIntegral(nums []float64) bool {
	for _, n := range nums {
		if n != math.Trunc(n) {
			return false
		}
	}

	return true
}

func roundFloat(v float64) float64 {
	f, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 10, 64), 64)

	return f
}

func (r *ParamRange) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRange, "invalid range", err)
	}

	parsed, err := NewParamRange(raw)
	if err != nil {
		return err
	}

	*r = parsed

	return nil
}

func (r *ParamRange) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRange, "invalid range", err)
	}

	parsed, err := NewParamRange(raw)
	if err != nil {
		return err
	}

	*r = parsed

	return nil
}

// Space maps parameter names to their ranges.
type Space map[string]ParamRange

// ParseSpace reads a space from YAML or JSON.
func ParseSpace(data []byte) (Space, error) {
	var space Space
	if err := yaml.Unmarshal(data, &space); err != nil {
		if errors.HasCode(err, errors.ErrCodeInvalidRange) {
			return nil, err
		}

		return nil, errors.Wrap(errors.ErrCodeInvalidRange, "invalid parameter space", err)
	}

	if len(space) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidRange, "parameter space is empty")
	}

	return space, nil
}

// Names returns the parameter names in sorted order.
func (s Space) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// GridSize returns the number of distinct candidates, saturating at math.MaxInt.
func (s Space) GridSize() int {
	size := 1

	for _, r := range s {
		n := r.Len()
		if n == 0 {
			return 0
		}

		if size > math.MaxInt/n {
			return math.MaxInt
		}

		size *= n
	}

	return size
}
