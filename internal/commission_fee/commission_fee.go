package commission_fee

// CommissionFee is shared by the paper exchange and the backtest evaluator so that
// simulated fills and backtests charge identical fees.
type CommissionFee interface {
	// Calculate returns the fee in quote currency for a fill of quantity at price.
	Calculate(quantity float64, price float64) float64
}

type Broker string

const (
	BrokerBinanceFutures Broker = "binance_futures"
	BrokerZero           Broker = "zero_commission"
)

// DefaultTakerRate is the Binance USDⓈ-M futures taker fee.
const DefaultTakerRate = 0.0005

var AllBrokers = []any{
	BrokerBinanceFutures,
	BrokerZero,
}

func GetCommissionFeeHandler(broker Broker) CommissionFee {
	switch broker {
	case BrokerBinanceFutures:
		return NewTakerCommissionFee(DefaultTakerRate)
	case BrokerZero:
		return NewZeroCommissionFee()
	default:
		return NewZeroCommissionFee()
	}
}
