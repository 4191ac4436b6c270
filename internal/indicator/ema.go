package indicator

// EMA returns the exponential moving average seeded with the SMA of the first
// period values, using alpha = 2/(period+1).
func EMA(values []float64, period int) ([]float64, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	out := nanSeries(len(values))
	if len(values) < period {
		return out, nil
	}

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}

	ema := seed / float64(period)
	out[period-1] = ema
	alpha := 2.0 / float64(period+1)

	for i := period; i < len(values); i++ {
		ema = values[i]*alpha + ema*(1-alpha)
		out[i] = ema
	}

	return out, nil
}
