package strategy

import (
	"math"
	"sort"
	"time"

	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// Frame is a columnar view of a candle series with indicator columns and
// boolean enter/exit series.
type Frame struct {
	Time    []time.Time
	Open    []float64
	High    []float64
	Low     []float64
	Close   []float64
	Volume  []float64
	Enter   []bool
	Exit    []bool
	columns map[string][]float64
}

// NewFrame converts candles (oldest first) into a frame.
func NewFrame(candles []types.Candle) *Frame {
	n := len(candles)
	f := &Frame{
		Time:    make([]time.Time, n),
		Open:    make([]float64, n),
		High:    make([]float64, n),
		Low:     make([]float64, n),
		Close:   make([]float64, n),
		Volume:  make([]float64, n),
		Enter:   make([]bool, n),
		Exit:    make([]bool, n),
		columns: make(map[string][]float64),
	}

	for i, c := range candles {
		f.Time[i] = c.Time
		f.Open[i] = c.Open
		f.High[i] = c.High
		f.Low[i] = c.Low
		f.Close[i] = c.Close
		f.Volume[i] = c.Volume
	}

	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Close)
}

// SetColumn stores an indicator column. Its length must match the frame.
func (f *Frame) SetColumn(name string, values []float64) error {
	if len(values) != f.Len() {
		return errors.Newf(errors.ErrCodeIndicatorCalculation,
			"column %s has %d rows, frame has %d", name, len(values), f.Len())
	}

	f.columns[name] = values

	return nil
}

// Column returns an indicator column.
func (f *Frame) Column(name string) ([]float64, bool) {
	values, ok := f.columns[name]

	return values, ok
}

// MustColumn returns a column or an error naming the missing column.
func (f *Frame) MustColumn(name string) ([]float64, error) {
	values, ok := f.columns[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeIndicatorCalculation, "column %s has not been calculated", name)
	}

	return values, nil
}

// Columns returns the column names in sorted order.
func (f *Frame) Columns() []string {
	names := make([]string, 0, len(f.columns))
	for name := range f.columns {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// LastValue returns the newest value of a column, NaN when absent.
func (f *Frame) LastValue(name string) float64 {
	values, ok := f.columns[name]
	if !ok || len(values) == 0 {
		return math.NaN()
	}

	return values[len(values)-1]
}
