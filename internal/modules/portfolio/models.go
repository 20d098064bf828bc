// Package portfolio tracks holdings and computes portfolio valuation.
package portfolio

import "time"

// Position is one holding: how much of an asset the user owns and what it
// cost on average.
type Position struct {
	UserID          string    `json:"userId"`
	AssetID         string    `json:"assetId"`
	Symbol          string    `json:"symbol"`
	Quantity        float64   `json:"quantity"`
	AvgCost         float64   `json:"avgCost"`
	FirstPurchaseAt time.Time `json:"firstPurchaseDate"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Holding is a position enriched with live valuation.
type Holding struct {
	AssetID         string    `json:"assetId"`
	Symbol          string    `json:"symbol"`
	Name            string    `json:"name,omitempty"`
	Quantity        float64   `json:"quantity"`
	AvgCost         float64   `json:"avgCost"`
	FirstPurchaseAt time.Time `json:"firstPurchaseDate"`
	CurrentPrice    float64   `json:"currentPrice"`
	PriceSource     string    `json:"priceSource"`
	CostBasis       float64   `json:"costBasis"`
	CurrentValue    float64   `json:"currentValue"`
	PnL             float64   `json:"pnl"`
	PnLPercent      float64   `json:"pnlPercent"`
	AllocationPct   float64   `json:"allocationPct"`
}

// Summary is the whole-portfolio valuation.
type Summary struct {
	UserID         string    `json:"userId"`
	Holdings       []Holding `json:"holdings"`
	TotalCostBasis float64   `json:"totalCostBasis"`
	TotalValue     float64   `json:"totalValue"`
	TotalPnL       float64   `json:"totalPnl"`
	TotalPnLPct    float64   `json:"totalPnlPct"`
	ComputedAt     time.Time `json:"computedAt"`
}

// PerformerRef points at a holding by asset with its P&L percent.
type PerformerRef struct {
	AssetID    string  `json:"assetId"`
	Symbol     string  `json:"symbol"`
	PnLPercent float64 `json:"pnlPercent"`
}

// Performance is the best/worst performer view of the portfolio.
type Performance struct {
	UserID string        `json:"userId"`
	Best   *PerformerRef `json:"best,omitempty"`
	Worst  *PerformerRef `json:"worst,omitempty"`
}
