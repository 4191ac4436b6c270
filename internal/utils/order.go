package utils

import (
	"math"

	"github.com/rxtech-lab/argo-fleet/internal/commission_fee"
)

// CalculateMaxQuantity returns the largest quantity whose notional plus fee fits in budget.
func CalculateMaxQuantity(budget float64, price float64, commissionFee commission_fee.CommissionFee) float64 {
	if price <= 0 || budget <= 0 {
		return 0
	}

	maxQty := budget / price

	// converges in a couple of rounds for proportional fees
	for i := 0; i < 10; i++ {
		totalCost := maxQty*price + commissionFee.Calculate(maxQty, price)
		if totalCost <= budget {
			break
		}

		maxQty *= budget / totalCost
	}

	return maxQty
}

// RoundToDecimalPrecision rounds quantity down to the given number of decimals.
func RoundToDecimalPrecision(quantity float64, decimalPrecision int) float64 {
	multiplier := math.Pow10(decimalPrecision)

	return math.Floor(quantity*multiplier) / multiplier
}

// CalculateOrderQuantityByPercentage sizes an order from a fraction of balance, fees included.
func CalculateOrderQuantityByPercentage(balance float64, price float64, commissionFee commission_fee.CommissionFee, percentage float64) float64 {
	return CalculateMaxQuantity(balance*percentage, price, commissionFee)
}

// EntryQuantity converts a quote-currency trade size into a base quantity at price, scaled by leverage.
func EntryQuantity(tradeSize float64, leverage int, price float64) float64 {
	if price <= 0 || tradeSize <= 0 {
		return 0
	}

	if leverage < 1 {
		leverage = 1
	}

	return tradeSize * float64(leverage) / price
}
