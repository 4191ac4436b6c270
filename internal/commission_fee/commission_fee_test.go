package commission_fee

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type CommissionFeeTestSuite struct {
	suite.Suite
}

func TestCommissionFeeSuite(t *testing.T) {
	suite.Run(t, new(CommissionFeeTestSuite))
}

func (suite *CommissionFeeTestSuite) TestTakerCommissionFee() {
	fee := NewTakerCommissionFee(0.001)

	tests := []struct {
		name     string
		quantity float64
		price    float64
		expected float64
	}{
		{"zero quantity", 0, 100, 0},
		{"one unit", 1, 100, 0.1},
		{"fractional", 0.5, 30000, 15},
		{"short side uses absolute notional", -2, 50, 0.1},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.InDelta(tc.expected, fee.Calculate(tc.quantity, tc.price), 1e-9)
		})
	}
}

func (suite *CommissionFeeTestSuite) TestGetCommissionFeeHandler() {
	tests := []struct {
		name     string
		broker   Broker
		expected float64
	}{
		{name: "binance futures", broker: BrokerBinanceFutures, expected: 1000 * DefaultTakerRate},
		{name: "zero commission", broker: BrokerZero, expected: 0},
		{name: "unknown broker defaults to zero", broker: Broker("unknown"), expected: 0},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			handler := GetCommissionFeeHandler(tc.broker)
			suite.NotNil(handler)
			suite.InDelta(tc.expected, handler.Calculate(10, 100), 1e-9)
		})
	}
}

func (suite *CommissionFeeTestSuite) TestAllBrokers() {
	suite.Len(AllBrokers, 2)
	suite.Contains(AllBrokers, BrokerBinanceFutures)
	suite.Contains(AllBrokers, BrokerZero)
}
