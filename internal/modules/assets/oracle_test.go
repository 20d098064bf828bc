package assets

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coincart/coincart/internal/clientdata"
	"github.com/coincart/coincart/internal/clients/coingecko"
	internaltesting "github.com/coincart/coincart/internal/testing"
)

// fakeMarketClient lets tests script upstream behavior per call.
type fakeMarketClient struct {
	marketsCalls int
	markets      func() ([]coingecko.MarketCoin, error)
	chart        func() (*coingecko.MarketChart, error)
}

func (f *fakeMarketClient) GetMarkets(ctx context.Context, ids []string) ([]coingecko.MarketCoin, error) {
	f.marketsCalls++
	if f.markets == nil {
		return nil, fmt.Errorf("no markets scripted")
	}
	return f.markets()
}

func (f *fakeMarketClient) GetMarketChart(ctx context.Context, id, days string) (*coingecko.MarketChart, error) {
	if f.chart == nil {
		return nil, fmt.Errorf("no chart scripted")
	}
	return f.chart()
}

func newTestOracle(t *testing.T, client MarketClient, ttl time.Duration) (*Oracle, func()) {
	t.Helper()
	db, cleanup := internaltesting.NewTestDB(t, "cache")
	cache := clientdata.NewRepository(db.Conn())
	return NewOracle(cache, client, nil, ttl, zerolog.Nop()), cleanup
}

func TestGetAssetsFetchesUpstreamThenServesCache(t *testing.T) {
	client := &fakeMarketClient{
		markets: func() ([]coingecko.MarketCoin, error) {
			return []coingecko.MarketCoin{
				{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: 64000, TotalVolume: 35e9},
			}, nil
		},
	}
	oracle, cleanup := newTestOracle(t, client, 30*time.Second)
	defer cleanup()

	// First call hits upstream
	assets, err := oracle.GetAssets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, SourceLive, assets[0].Source)
	assert.Equal(t, 35e9, assets[0].Volume24h)
	assert.Equal(t, 1, client.marketsCalls)

	// Second call within TTL is served from cache
	assets, err = oracle.GetAssets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, SourceCache, assets[0].Source)
	assert.Equal(t, 64000.0, assets[0].CurrentPrice)
	assert.Equal(t, 35e9, assets[0].Volume24h)
	assert.Equal(t, 1, client.marketsCalls)
}

func TestGetAssetsServesStaleCacheWhenUpstreamDown(t *testing.T) {
	client := &fakeMarketClient{
		markets: func() ([]coingecko.MarketCoin, error) {
			return []coingecko.MarketCoin{
				{ID: "ethereum", Symbol: "eth", Name: "Ethereum", CurrentPrice: 3100},
			}, nil
		},
	}
	// Tiny TTL so the cached entry expires immediately
	oracle, cleanup := newTestOracle(t, client, time.Nanosecond)
	defer cleanup()

	_, err := oracle.GetAssets(context.Background())
	require.NoError(t, err)

	time.Sleep(time.Second + 50*time.Millisecond) // expires_at has second resolution
	client.markets = func() ([]coingecko.MarketCoin, error) {
		return nil, fmt.Errorf("upstream down")
	}

	assets, err := oracle.GetAssets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, SourceStale, assets[0].Source)
	assert.Equal(t, 3100.0, assets[0].CurrentPrice)
}

func TestGetAssetsFallsBackToSampleData(t *testing.T) {
	client := &fakeMarketClient{
		markets: func() ([]coingecko.MarketCoin, error) {
			return nil, fmt.Errorf("upstream down")
		},
	}
	oracle, cleanup := newTestOracle(t, client, 30*time.Second)
	defer cleanup()

	assets, err := oracle.GetAssets(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, assets)
	for _, a := range assets {
		assert.Equal(t, SourceSample, a.Source)
		assert.Greater(t, a.CurrentPrice, 0.0)
	}
}

func TestGetAssetSingle(t *testing.T) {
	client := &fakeMarketClient{
		markets: func() ([]coingecko.MarketCoin, error) {
			return []coingecko.MarketCoin{
				{ID: "solana", Symbol: "sol", Name: "Solana", CurrentPrice: 150},
			}, nil
		},
	}
	oracle, cleanup := newTestOracle(t, client, 30*time.Second)
	defer cleanup()

	asset, err := oracle.GetAsset(context.Background(), "solana")
	require.NoError(t, err)
	assert.Equal(t, "solana", asset.ID)
	assert.Equal(t, SourceLive, asset.Source)

	// Cached on the second read
	asset, err = oracle.GetAsset(context.Background(), "solana")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, asset.Source)
}

func TestGetAssetUnknownWithoutSample(t *testing.T) {
	client := &fakeMarketClient{
		markets: func() ([]coingecko.MarketCoin, error) {
			return nil, fmt.Errorf("upstream down")
		},
	}
	oracle, cleanup := newTestOracle(t, client, 30*time.Second)
	defer cleanup()

	_, err := oracle.GetAsset(context.Background(), "no-such-asset")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestCurrentPriceRejectsZero(t *testing.T) {
	client := &fakeMarketClient{
		markets: func() ([]coingecko.MarketCoin, error) {
			return []coingecko.MarketCoin{
				{ID: "deadcoin", Symbol: "dead", Name: "Dead Coin", CurrentPrice: 0},
			}, nil
		},
	}
	oracle, cleanup := newTestOracle(t, client, 30*time.Second)
	defer cleanup()

	_, _, err := oracle.CurrentPrice(context.Background(), "deadcoin")
	assert.Error(t, err)
}

func TestGetHistoryValidatesRange(t *testing.T) {
	oracle, cleanup := newTestOracle(t, &fakeMarketClient{}, 30*time.Second)
	defer cleanup()

	_, err := oracle.GetHistory(context.Background(), "bitcoin", "13")
	assert.Error(t, err)
}

func TestGetHistoryFetchesAndCaches(t *testing.T) {
	client := &fakeMarketClient{
		chart: func() (*coingecko.MarketChart, error) {
			return &coingecko.MarketChart{
				Prices: [][2]float64{{1700000000000, 64000}, {1700003600000, 64100}},
			}, nil
		},
	}
	oracle, cleanup := newTestOracle(t, client, 30*time.Second)
	defer cleanup()

	h, err := oracle.GetHistory(context.Background(), "bitcoin", "7")
	require.NoError(t, err)
	require.Len(t, h.Points, 2)
	assert.Equal(t, SourceLive, h.Source)
	assert.Equal(t, 64000.0, h.Points[0].Price)

	client.chart = func() (*coingecko.MarketChart, error) {
		return nil, fmt.Errorf("upstream down")
	}

	h, err = oracle.GetHistory(context.Background(), "bitcoin", "7")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, h.Source)
	require.Len(t, h.Points, 2)
}

func TestUpdateQuotePatchesCachedPrice(t *testing.T) {
	client := &fakeMarketClient{
		markets: func() ([]coingecko.MarketCoin, error) {
			return []coingecko.MarketCoin{
				{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: 64000},
			}, nil
		},
	}
	oracle, cleanup := newTestOracle(t, client, 30*time.Second)
	defer cleanup()

	_, err := oracle.GetAsset(context.Background(), "bitcoin")
	require.NoError(t, err)

	oracle.UpdateQuote("bitcoin", 65000, time.Now())

	asset, err := oracle.GetAsset(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 65000.0, asset.CurrentPrice)
	assert.Equal(t, "Bitcoin", asset.Name)
}
