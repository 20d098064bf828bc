// Package cart manages per-user shopping carts of asset purchases.
package cart

import "time"

// Item is one asset line in a cart. PriceAtAdd is the quote seen when the
// item was last added; execution always uses the live price at checkout.
type Item struct {
	AssetID    string    `json:"assetId"`
	Symbol     string    `json:"symbol"`
	Quantity   float64   `json:"quantity"`
	PriceAtAdd float64   `json:"priceAtAdd"`
	AddedAt    time.Time `json:"addedAt"`
}

// Totals summarizes a cart at both add-time and current prices.
type Totals struct {
	ItemCount    int     `json:"itemCount"`
	TotalAtAdd   float64 `json:"totalAtAdd"`
	TotalCurrent float64 `json:"totalCurrent"`
}

// Cart is a user's full cart with totals.
type Cart struct {
	UserID    string    `json:"userId"`
	Items     []Item    `json:"items"`
	Totals    Totals    `json:"totals"`
	UpdatedAt time.Time `json:"updatedAt"`
}
