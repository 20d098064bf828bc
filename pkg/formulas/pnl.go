package formulas

// PnL returns the absolute profit or loss for a position.
func PnL(quantity, avgCost, currentPrice float64) float64 {
	return quantity * (currentPrice - avgCost)
}

// PnLPercent returns profit or loss relative to cost basis, in percent.
// A zero cost basis yields 0, not a division error.
func PnLPercent(costBasis, currentValue float64) float64 {
	if costBasis == 0 {
		return 0
	}
	return (currentValue - costBasis) / costBasis * 100
}

// AllocationPercent returns a position's share of the whole portfolio, in
// percent. An empty portfolio yields 0.
func AllocationPercent(positionValue, totalValue float64) float64 {
	if totalValue == 0 {
		return 0
	}
	return positionValue / totalValue * 100
}
