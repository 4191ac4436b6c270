package commission_fee

import "math"

// TakerCommissionFee charges a flat rate on traded notional.
type TakerCommissionFee struct {
	Rate float64
}

func NewTakerCommissionFee(rate float64) *TakerCommissionFee {
	return &TakerCommissionFee{Rate: rate}
}

func (f *TakerCommissionFee) Calculate(quantity float64, price float64) float64 {
	return math.Abs(quantity*price) * f.Rate
}
