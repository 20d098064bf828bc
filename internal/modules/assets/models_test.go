package assets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyWithPrices(prices ...float64) *History {
	h := &History{AssetID: "bitcoin", Range: "7", Source: SourceLive}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range prices {
		h.Points = append(h.Points, PricePoint{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Price:     p,
		})
	}
	return h
}

func TestSmoothedAveragesOverWindow(t *testing.T) {
	h := historyWithPrices(10, 20, 30, 40, 50)

	s := h.Smoothed(3)
	require.Len(t, s.Points, 3)
	assert.Equal(t, 3, s.SmoothWindow)

	// Each output point averages the window ending at it
	assert.InDelta(t, 20, s.Points[0].Price, 1e-9)
	assert.InDelta(t, 30, s.Points[1].Price, 1e-9)
	assert.InDelta(t, 40, s.Points[2].Price, 1e-9)

	// Timestamps stay aligned with the window's last sample
	assert.Equal(t, h.Points[2].Timestamp, s.Points[0].Timestamp)
	assert.Equal(t, h.Points[4].Timestamp, s.Points[2].Timestamp)
}

func TestSmoothedLeavesOriginalUntouched(t *testing.T) {
	h := historyWithPrices(10, 20, 30, 40)

	_ = h.Smoothed(2)

	require.Len(t, h.Points, 4)
	assert.Equal(t, 0, h.SmoothWindow)
	assert.Equal(t, 10.0, h.Points[0].Price)
}

func TestWithStatsSummarizesSeries(t *testing.T) {
	h := historyWithPrices(10, 20, 30, 40, 50)

	s := h.WithStats()
	require.NotNil(t, s.Stats)
	assert.InDelta(t, 30, s.Stats.MeanPrice, 1e-9)
	assert.InDelta(t, 10, s.Stats.MinPrice, 1e-9)
	assert.InDelta(t, 50, s.Stats.MaxPrice, 1e-9)
	assert.InDelta(t, 400, s.Stats.PeriodReturnPct, 1e-9)
	assert.Greater(t, s.Stats.Volatility, 0.0)

	// The original stays unannotated
	assert.Nil(t, h.Stats)
}

func TestWithStatsNeedsTwoPoints(t *testing.T) {
	h := historyWithPrices(10)
	assert.Same(t, h, h.WithStats())
	assert.Nil(t, h.Stats)
}

func TestSmoothedCarriesStats(t *testing.T) {
	h := historyWithPrices(10, 20, 30, 40, 50).WithStats()

	s := h.Smoothed(3)
	require.NotNil(t, s.Stats)
	// Stats keep describing the raw series
	assert.InDelta(t, 10, s.Stats.MinPrice, 1e-9)
	assert.InDelta(t, 50, s.Stats.MaxPrice, 1e-9)
}

func TestSmoothedDegenerateWindows(t *testing.T) {
	h := historyWithPrices(10, 20, 30)

	assert.Same(t, h, h.Smoothed(0))
	assert.Same(t, h, h.Smoothed(1))
	// Window larger than the series
	assert.Same(t, h, h.Smoothed(4))
}
