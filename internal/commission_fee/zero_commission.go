package commission_fee

type ZeroCommissionFee struct{}

func NewZeroCommissionFee() *ZeroCommissionFee {
	return &ZeroCommissionFee{}
}

func (f *ZeroCommissionFee) Calculate(quantity float64, price float64) float64 {
	return 0
}
