package assets

import (
	"math"
	"time"
)

// sampleQuotes are the last-resort quotes served when both the upstream API
// and the cache are empty. Prices are plausible but fixed; the Source field
// makes clear they are not live.
var sampleQuotes = []Asset{
	{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: 64000, Volume24h: 35e9},
	{ID: "ethereum", Symbol: "eth", Name: "Ethereum", CurrentPrice: 3100, Volume24h: 18e9},
	{ID: "solana", Symbol: "sol", Name: "Solana", CurrentPrice: 150, Volume24h: 4e9},
	{ID: "cardano", Symbol: "ada", Name: "Cardano", CurrentPrice: 0.45, Volume24h: 600e6},
	{ID: "dogecoin", Symbol: "doge", Name: "Dogecoin", CurrentPrice: 0.12, Volume24h: 900e6},
	{ID: "ripple", Symbol: "xrp", Name: "XRP", CurrentPrice: 0.55, Volume24h: 1800e6},
	{ID: "polkadot", Symbol: "dot", Name: "Polkadot", CurrentPrice: 6.5, Volume24h: 250e6},
	{ID: "chainlink", Symbol: "link", Name: "Chainlink", CurrentPrice: 14, Volume24h: 500e6},
}

// sampleAssets returns a copy of the sample quote set stamped with now.
func sampleAssets(now time.Time) []Asset {
	out := make([]Asset, len(sampleQuotes))
	copy(out, sampleQuotes)
	for i := range out {
		out[i].UpdatedAt = now
		out[i].Source = SourceSample
	}
	return out
}

// sampleAsset returns the sample quote for a single asset, or nil when the
// asset is not in the sample set.
func sampleAsset(id string, now time.Time) *Asset {
	for _, a := range sampleQuotes {
		if a.ID == id {
			a.UpdatedAt = now
			a.Source = SourceSample
			return &a
		}
	}
	return nil
}

// sampleHistory synthesizes a deterministic price series around the sample
// quote so history charts render even fully offline.
func sampleHistory(id, rng string, now time.Time) *History {
	base := sampleAsset(id, now)
	if base == nil {
		return nil
	}

	points := 48
	step := rangeStep(rng)

	h := &History{
		AssetID: id,
		Range:   rng,
		Points:  make([]PricePoint, 0, points),
		Source:  SourceSample,
	}
	for i := points - 1; i >= 0; i-- {
		ts := now.Add(-time.Duration(i) * step)
		// Gentle sine wobble, +/-2% around the sample price.
		wobble := 1 + 0.02*math.Sin(float64(i)/5)
		h.Points = append(h.Points, PricePoint{
			Timestamp: ts,
			Price:     base.CurrentPrice * wobble,
		})
	}
	return h
}

// rangeStep maps a history range to the spacing between synthetic points.
func rangeStep(rng string) time.Duration {
	switch rng {
	case "1":
		return 30 * time.Minute
	case "7":
		return 3 * time.Hour + 30*time.Minute
	case "30":
		return 15 * time.Hour
	case "90":
		return 45 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}
