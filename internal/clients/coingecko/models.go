package coingecko

// MarketCoin is a single entry from the /coins/markets listing.
type MarketCoin struct {
	ID             string  `json:"id"`
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	Image          string  `json:"image"`
	CurrentPrice   float64 `json:"current_price"`
	MarketCap      float64 `json:"market_cap"`
	MarketCapRank  int     `json:"market_cap_rank"`
	TotalVolume    float64 `json:"total_volume"`
	High24h        float64 `json:"high_24h"`
	Low24h         float64 `json:"low_24h"`
	PriceChange24h float64 `json:"price_change_24h"`
	ChangePct24h   float64 `json:"price_change_percentage_24h"`
	LastUpdated    string  `json:"last_updated"`
}

// MarketChart is the response from /coins/{id}/market_chart.
// Each inner slice is [timestamp_ms, value].
type MarketChart struct {
	Prices       [][2]float64 `json:"prices"`
	MarketCaps   [][2]float64 `json:"market_caps"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}
