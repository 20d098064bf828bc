package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-9)
}

func TestCalculateReturns(t *testing.T) {
	returns := CalculateReturns([]float64{100, 110, 99})
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)

	assert.Empty(t, CalculateReturns([]float64{100}))
}

func TestCalculateReturnsSkipsZeroPrice(t *testing.T) {
	returns := CalculateReturns([]float64{0, 100})
	require.Len(t, returns, 1)
	assert.Equal(t, 0.0, returns[0])
}

func TestPnL(t *testing.T) {
	assert.InDelta(t, 500.0, PnL(0.5, 50000, 51000), 1e-9)
	assert.InDelta(t, -500.0, PnL(0.5, 51000, 50000), 1e-9)
}

func TestPnLPercentZeroGuard(t *testing.T) {
	assert.Equal(t, 0.0, PnLPercent(0, 1000))
	assert.InDelta(t, 10.0, PnLPercent(1000, 1100), 1e-9)
	assert.InDelta(t, -10.0, PnLPercent(1000, 900), 1e-9)
}

func TestAllocationPercentZeroGuard(t *testing.T) {
	assert.Equal(t, 0.0, AllocationPercent(100, 0))
	assert.InDelta(t, 25.0, AllocationPercent(250, 1000), 1e-9)
}

func TestVolatility(t *testing.T) {
	assert.Equal(t, 0.0, Volatility(nil))
	// Constant returns carry no volatility
	assert.InDelta(t, 0.0, Volatility([]float64{0.1, 0.1, 0.1}), 1e-9)
	assert.Greater(t, Volatility([]float64{0.1, -0.2, 0.05}), 0.0)
}
