// Package trading executes cart checkouts and sells, and keeps the
// append-only transaction ledger.
package trading

import "time"

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Transaction is one executed trade. Ledger rows are append-only; a
// transaction is never updated or deleted after it is written.
type Transaction struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	AssetID    string    `json:"assetId"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Total      float64   `json:"total"`
	ExecutedAt time.Time `json:"executedAt"`

	// Unledgered marks a trade whose position committed but whose ledger
	// append failed. The flag exists only in responses; it is never stored.
	Unledgered bool `json:"unledgered,omitempty"`
}

// SkippedItem records a cart line that checkout could not execute.
type SkippedItem struct {
	AssetID string `json:"assetId"`
	Symbol  string `json:"symbol"`
	Reason  string `json:"reason"`
}

// CheckoutSummary reports what a checkout actually did.
type CheckoutSummary struct {
	UserID     string        `json:"userId"`
	Executed   []Transaction `json:"executed"`
	Skipped    []SkippedItem `json:"skipped"`
	TotalSpent float64       `json:"totalSpent"`
	ExecutedAt time.Time     `json:"executedAt"`
}

// TransactionPage is one page of ledger history, newest first.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	Page         int           `json:"page"`
	PageSize     int           `json:"pageSize"`
	TotalCount   int           `json:"totalCount"`
	HasMore      bool          `json:"hasMore"`
}
