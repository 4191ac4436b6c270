package indicator

// RSI returns the relative strength index with Wilder's smoothing.
func RSI(values []float64, period int) ([]float64, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	out := nanSeries(len(values))
	if len(values) <= period {
		return out, nil
	}

	avgGain, avgLoss := 0.0, 0.0

	for i := 1; i <= period; i++ {
		gain, loss := change(values[i-1], values[i])
		avgGain += gain
		avgLoss += loss
	}

	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		gain, loss := change(values[i-1], values[i])
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}

	return out, nil
}

func change(prev, cur float64) (float64, float64) {
	d := cur - prev
	if d > 0 {
		return d, 0
	}

	return 0, -d
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss

	return 100 - (100 / (1 + rs))
}
