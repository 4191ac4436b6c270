package utils

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-fleet/internal/commission_fee"
)

type UtilsTestSuite struct {
	suite.Suite
}

func TestUtilsTestSuite(t *testing.T) {
	suite.Run(t, new(UtilsTestSuite))
}

func (suite *UtilsTestSuite) TestCalculateMaxQuantity() {
	tests := []struct {
		name          string
		budget        float64
		price         float64
		commissionFee commission_fee.CommissionFee
		expected      float64
	}{
		{"no commission", 1000, 100, commission_fee.NewZeroCommissionFee(), 10},
		{"zero budget", 0, 100, commission_fee.NewTakerCommissionFee(0.001), 0},
		{"zero price", 1000, 0, commission_fee.NewTakerCommissionFee(0.001), 0},
		{"budget less than price", 50, 100, commission_fee.NewZeroCommissionFee(), 0.5},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.InDelta(tc.expected, CalculateMaxQuantity(tc.budget, tc.price, tc.commissionFee), 1e-9)
		})
	}
}

func (suite *UtilsTestSuite) TestCalculateMaxQuantityFitsFee() {
	fee := commission_fee.NewTakerCommissionFee(0.001)
	qty := CalculateMaxQuantity(1000, 100, fee)

	suite.Less(qty, 10.0)
	suite.LessOrEqual(qty*100+fee.Calculate(qty, 100), 1000.0+1e-9)
}

func (suite *UtilsTestSuite) TestRoundToDecimalPrecision() {
	suite.Equal(1.234, RoundToDecimalPrecision(1.23456, 3))
	suite.Equal(1.0, RoundToDecimalPrecision(1.9, 0))
	suite.Equal(0.0, RoundToDecimalPrecision(0.0009, 3))
}

func (suite *UtilsTestSuite) TestCalculateOrderQuantityByPercentage() {
	qty := CalculateOrderQuantityByPercentage(1000, 100, commission_fee.NewZeroCommissionFee(), 0.5)
	suite.InDelta(5.0, qty, 1e-9)
}

func (suite *UtilsTestSuite) TestEntryQuantity() {
	suite.InDelta(0.02, EntryQuantity(100, 10, 50000), 1e-12)
	suite.InDelta(0.002, EntryQuantity(100, 0, 50000), 1e-12)
	suite.Equal(0.0, EntryQuantity(100, 5, 0))
}
