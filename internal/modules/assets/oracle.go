package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/coincart/coincart/internal/clientdata"
	"github.com/coincart/coincart/internal/clients/coingecko"
	"github.com/coincart/coincart/internal/events"
)

// MarketClient is the upstream market data API surface the oracle needs.
type MarketClient interface {
	GetMarkets(ctx context.Context, ids []string) ([]coingecko.MarketCoin, error)
	GetMarketChart(ctx context.Context, id, days string) (*coingecko.MarketChart, error)
}

// ErrAssetNotFound is returned when an asset cannot be resolved through any
// price tier. Handlers match it with errors.Is.
var ErrAssetNotFound = errors.New("asset not found")

// validRanges are the accepted history range values, in upstream format
// (days, or "max").
var validRanges = map[string]bool{
	"1": true, "7": true, "30": true, "90": true, "365": true, "max": true,
}

// Oracle answers every price question in the system. Quotes resolve through
// a 4-tier fallback:
//  1. Fresh cache entry (within TTL)
//  2. Upstream API (result cached)
//  3. Stale cache entry (expired, but upstream is down)
//  4. Built-in sample data
type Oracle struct {
	cache  *clientdata.Repository
	client MarketClient
	bus    *events.Bus
	ttl    time.Duration
	log    zerolog.Logger
}

// NewOracle creates a new quote oracle. ttl must already be clamped by config.
func NewOracle(cache *clientdata.Repository, client MarketClient, bus *events.Bus, ttl time.Duration, log zerolog.Logger) *Oracle {
	return &Oracle{
		cache:  cache,
		client: client,
		bus:    bus,
		ttl:    ttl,
		log:    log.With().Str("component", "oracle").Logger(),
	}
}

// TTL returns the configured quote TTL.
func (o *Oracle) TTL() time.Duration {
	return o.ttl
}

// GetAssets returns the full tracked asset listing with latest quotes.
func (o *Oracle) GetAssets(ctx context.Context) ([]Asset, error) {
	// Tier 1: fresh cache
	if raw, err := o.cache.GetIfFresh(clientdata.TableQuotes, clientdata.KeyAllAssets); err == nil && raw != nil {
		var cached []Asset
		if err := json.Unmarshal(raw, &cached); err == nil {
			for i := range cached {
				cached[i].Source = SourceCache
			}
			return cached, nil
		}
	}

	// Tier 2: upstream API
	assets, err := o.fetchAndCacheAll(ctx)
	if err == nil {
		return assets, nil
	}
	o.log.Warn().Err(err).Msg("Upstream quote fetch failed, trying stale cache")

	// Tier 3: stale cache
	if raw, updatedAt, cerr := o.cache.Get(clientdata.TableQuotes, clientdata.KeyAllAssets); cerr == nil && raw != nil {
		var cached []Asset
		if jerr := json.Unmarshal(raw, &cached); jerr == nil {
			for i := range cached {
				cached[i].Source = SourceStale
				cached[i].UpdatedAt = updatedAt
			}
			o.log.Warn().
				Time("updated_at", updatedAt).
				Msg("Serving stale quotes (upstream unreachable)")
			return cached, nil
		}
	}

	// Tier 4: sample data
	o.log.Warn().Msg("Serving sample quotes (no cache, upstream unreachable)")
	return sampleAssets(time.Now()), nil
}

// GetAsset returns a single asset's latest quote.
func (o *Oracle) GetAsset(ctx context.Context, id string) (*Asset, error) {
	if id == "" {
		return nil, fmt.Errorf("asset id is required")
	}

	key := clientdata.KeyAsset(id)

	// Tier 1: fresh cache
	if raw, err := o.cache.GetIfFresh(clientdata.TableQuotes, key); err == nil && raw != nil {
		var cached Asset
		if err := json.Unmarshal(raw, &cached); err == nil {
			cached.Source = SourceCache
			return &cached, nil
		}
	}

	// Tier 2: upstream API
	coins, err := o.client.GetMarkets(ctx, []string{id})
	if err == nil && len(coins) > 0 {
		asset := fromMarketCoin(coins[0], SourceLive, time.Now())
		if cerr := o.cache.Store(clientdata.TableQuotes, key, asset, o.ttl); cerr != nil {
			o.log.Warn().Err(cerr).Str("asset", id).Msg("Failed to cache quote")
		}
		return &asset, nil
	}
	if err != nil {
		o.log.Warn().Err(err).Str("asset", id).Msg("Upstream quote fetch failed, trying stale cache")
	}

	// Tier 3: stale cache
	if raw, updatedAt, cerr := o.cache.Get(clientdata.TableQuotes, key); cerr == nil && raw != nil {
		var cached Asset
		if jerr := json.Unmarshal(raw, &cached); jerr == nil {
			cached.Source = SourceStale
			cached.UpdatedAt = updatedAt
			return &cached, nil
		}
	}

	// Tier 4: sample data
	if sample := sampleAsset(id, time.Now()); sample != nil {
		return sample, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrAssetNotFound, id)
}

// CurrentPrice returns the latest price for an asset and the source it came
// from. A zero price with a nil error never happens; unpriceable assets
// return an error.
func (o *Oracle) CurrentPrice(ctx context.Context, id string) (float64, string, error) {
	asset, err := o.GetAsset(ctx, id)
	if err != nil {
		return 0, "", err
	}
	if asset.CurrentPrice <= 0 {
		return 0, "", fmt.Errorf("no valid price for asset %q", id)
	}
	return asset.CurrentPrice, asset.Source, nil
}

// GetHistory returns an asset's price series over a named range.
func (o *Oracle) GetHistory(ctx context.Context, id, rng string) (*History, error) {
	if id == "" {
		return nil, fmt.Errorf("asset id is required")
	}
	if rng == "" {
		rng = "7"
	}
	if !validRanges[rng] {
		return nil, fmt.Errorf("invalid history range %q", rng)
	}

	key := clientdata.KeyHistory(id, rng)

	// Tier 1: fresh cache
	if raw, err := o.cache.GetIfFresh(clientdata.TableHistory, key); err == nil && raw != nil {
		var cached History
		if err := json.Unmarshal(raw, &cached); err == nil {
			cached.Source = SourceCache
			return &cached, nil
		}
	}

	// Tier 2: upstream API
	chart, err := o.client.GetMarketChart(ctx, id, rng)
	if err == nil {
		h := &History{
			AssetID: id,
			Range:   rng,
			Points:  make([]PricePoint, 0, len(chart.Prices)),
			Source:  SourceLive,
		}
		for _, p := range chart.Prices {
			h.Points = append(h.Points, PricePoint{
				Timestamp: time.UnixMilli(int64(p[0])),
				Price:     p[1],
			})
		}
		if cerr := o.cache.Store(clientdata.TableHistory, key, h, clientdata.TTLHistory); cerr != nil {
			o.log.Warn().Err(cerr).Str("asset", id).Msg("Failed to cache history")
		}
		return h, nil
	}
	o.log.Warn().Err(err).Str("asset", id).Str("range", rng).Msg("Upstream history fetch failed, trying stale cache")

	// Tier 3: stale cache
	if raw, _, cerr := o.cache.Get(clientdata.TableHistory, key); cerr == nil && raw != nil {
		var cached History
		if jerr := json.Unmarshal(raw, &cached); jerr == nil {
			cached.Source = SourceStale
			return &cached, nil
		}
	}

	// Tier 4: sample data
	if sample := sampleHistory(id, rng, time.Now()); sample != nil {
		return sample, nil
	}

	return nil, fmt.Errorf("no history available for asset %q", id)
}

// SyncQuotes refreshes the cached market listing from the upstream API.
// Run on a schedule so interactive requests mostly hit tier 1.
func (o *Oracle) SyncQuotes(ctx context.Context) error {
	assets, err := o.fetchAndCacheAll(ctx)
	if err != nil {
		return fmt.Errorf("quote sync failed: %w", err)
	}

	o.log.Info().Int("count", len(assets)).Msg("Quote sync completed")
	return nil
}

// UpdateQuote patches the cached quote for one asset with a price from the
// live stream, keeping REST responses consistent with websocket pushes.
func (o *Oracle) UpdateQuote(id string, price float64, at time.Time) {
	if id == "" || price <= 0 {
		return
	}

	key := clientdata.KeyAsset(id)

	asset := Asset{ID: id, Symbol: id, CurrentPrice: price, UpdatedAt: at, Source: SourceLive}
	if raw, _, err := o.cache.Get(clientdata.TableQuotes, key); err == nil && raw != nil {
		var cached Asset
		if jerr := json.Unmarshal(raw, &cached); jerr == nil {
			cached.CurrentPrice = price
			cached.UpdatedAt = at
			cached.Source = SourceLive
			asset = cached
		}
	}

	if err := o.cache.Store(clientdata.TableQuotes, key, asset, o.ttl); err != nil {
		o.log.Warn().Err(err).Str("asset", id).Msg("Failed to apply stream price to cache")
	}
}

// fetchAndCacheAll pulls the full listing from upstream and caches both the
// listing and each individual asset.
func (o *Oracle) fetchAndCacheAll(ctx context.Context) ([]Asset, error) {
	coins, err := o.client.GetMarkets(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(coins) == 0 {
		return nil, fmt.Errorf("upstream returned no assets")
	}

	now := time.Now()
	assets := make([]Asset, 0, len(coins))
	for _, c := range coins {
		asset := fromMarketCoin(c, SourceLive, now)
		assets = append(assets, asset)

		if err := o.cache.Store(clientdata.TableQuotes, clientdata.KeyAsset(asset.ID), asset, o.ttl); err != nil {
			o.log.Warn().Err(err).Str("asset", asset.ID).Msg("Failed to cache quote")
		}
	}

	if err := o.cache.Store(clientdata.TableQuotes, clientdata.KeyAllAssets, assets, o.ttl); err != nil {
		o.log.Warn().Err(err).Msg("Failed to cache quote listing")
	}

	if o.bus != nil {
		for _, a := range assets {
			o.bus.Emit(events.PriceUpdated, "assets", map[string]interface{}{
				"assetId": a.ID,
				"price":   a.CurrentPrice,
			})
		}
	}

	return assets, nil
}

// fromMarketCoin converts an upstream listing entry to an Asset.
func fromMarketCoin(c coingecko.MarketCoin, source string, now time.Time) Asset {
	return Asset{
		ID:           c.ID,
		Symbol:       c.Symbol,
		Name:         c.Name,
		Image:        c.Image,
		CurrentPrice: c.CurrentPrice,
		ChangePct24h: c.ChangePct24h,
		MarketCap:    c.MarketCap,
		Volume24h:    c.TotalVolume,
		High24h:      c.High24h,
		Low24h:       c.Low24h,
		UpdatedAt:    now,
		Source:       source,
	}
}
