package clientdata

import "time"

// Tables in cache.db.
const (
	TableQuotes  = "quotes"
	TableHistory = "history"
)

// Cache keys. Quote entries use KeyAllAssets for the full market listing
// and KeyAsset(id) for single-asset detail; history entries use
// KeyHistory(id, range).
const KeyAllAssets = "all"

// KeyAsset returns the cache key for a single asset's quote.
func KeyAsset(assetID string) string {
	return "asset:" + assetID
}

// KeyHistory returns the cache key for an asset's price history over a range.
func KeyHistory(assetID, rng string) string {
	return "history:" + assetID + ":" + rng
}

// TTLHistory is the expiry for historical price series. History for a
// closed interval does not change, but ranges anchored on "now" drift,
// so an hour is the ceiling.
const TTLHistory = time.Hour
