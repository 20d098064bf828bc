// Package assets provides the tracked asset catalog and the quote oracle
// that every other module prices against.
package assets

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/coincart/coincart/pkg/formulas"
)

// Price sources, recorded on every quote so callers can tell live data
// from fallbacks.
const (
	SourceLive   = "live"   // Fetched from the upstream API on this request
	SourceCache  = "cache"  // Served from a fresh cache entry
	SourceStale  = "stale"  // Expired cache entry, upstream unreachable
	SourceSample = "sample" // Built-in sample data, nothing else available
)

// Asset is a tracked asset with its latest quote.
type Asset struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	Image        string    `json:"image,omitempty"`
	CurrentPrice float64   `json:"currentPrice"`
	ChangePct24h float64   `json:"changePct24h"`
	MarketCap    float64   `json:"marketCap,omitempty"`
	Volume24h    float64   `json:"volume24h,omitempty"`
	High24h      float64   `json:"high24h,omitempty"`
	Low24h       float64   `json:"low24h,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Source       string    `json:"source"`
}

// PricePoint is one sample in an asset's price history.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// History is an asset's price series over a named range.
type History struct {
	AssetID      string       `json:"assetId"`
	Range        string       `json:"range"`
	Points       []PricePoint `json:"points"`
	Source       string       `json:"source"`
	SmoothWindow int          `json:"smoothWindow,omitempty"`
	Stats        *SeriesStats `json:"stats,omitempty"`
}

// SeriesStats summarizes a price series for chart headers.
type SeriesStats struct {
	MeanPrice       float64 `json:"meanPrice"`
	MinPrice        float64 `json:"minPrice"`
	MaxPrice        float64 `json:"maxPrice"`
	PeriodReturnPct float64 `json:"periodReturnPct"`
	Volatility      float64 `json:"volatility"`
}

// WithStats returns a copy annotated with summary statistics over the raw
// series: mean/min/max price, return over the whole range and annualized
// volatility of the point-to-point returns. Fewer than two points carry no
// stats.
func (h *History) WithStats() *History {
	if len(h.Points) < 2 {
		return h
	}

	closes := make([]float64, len(h.Points))
	for i, p := range h.Points {
		closes[i] = p.Price
	}

	out := *h
	out.Stats = &SeriesStats{
		MeanPrice:       formulas.Mean(closes),
		MinPrice:        floats.Min(closes),
		MaxPrice:        floats.Max(closes),
		PeriodReturnPct: formulas.PnLPercent(closes[0], closes[len(closes)-1]),
		Volatility:      formulas.Volatility(formulas.CalculateReturns(closes)),
	}
	return &out
}

// Smoothed returns a copy with prices replaced by a simple moving average
// over window points. The warm-up prefix without a full window is dropped.
// A window the series cannot fill returns the history unchanged.
func (h *History) Smoothed(window int) *History {
	if window <= 1 || len(h.Points) < window {
		return h
	}

	closes := make([]float64, len(h.Points))
	for i, p := range h.Points {
		closes[i] = p.Price
	}
	sma := formulas.SMASeries(closes, window)
	if sma == nil {
		return h
	}

	points := make([]PricePoint, 0, len(h.Points)-window+1)
	for i := window - 1; i < len(h.Points); i++ {
		points = append(points, PricePoint{Timestamp: h.Points[i].Timestamp, Price: sma[i]})
	}

	out := *h
	out.Points = points
	out.SmoothWindow = window
	return &out
}
