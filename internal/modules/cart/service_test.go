package cart

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
	"github.com/coincart/coincart/internal/modules/assets"
	internaltesting "github.com/coincart/coincart/internal/testing"
)

// scriptedMarket serves per-asset prices keyed by coin ID.
type scriptedMarket struct {
	prices map[string]float64
}

func (s *scriptedMarket) GetMarkets(ctx context.Context, ids []string) ([]coingecko.MarketCoin, error) {
	var coins []coingecko.MarketCoin
	for _, id := range ids {
		if price, ok := s.prices[id]; ok {
			coins = append(coins, coingecko.MarketCoin{ID: id, Symbol: id, Name: id, CurrentPrice: price})
		}
	}
	if len(ids) == 0 {
		for id, price := range s.prices {
			coins = append(coins, coingecko.MarketCoin{ID: id, Symbol: id, Name: id, CurrentPrice: price})
		}
	}
	if len(coins) == 0 {
		return nil, fmt.Errorf("no such assets")
	}
	return coins, nil
}

func (s *scriptedMarket) GetMarketChart(ctx context.Context, id, days string) (*coingecko.MarketChart, error) {
	return nil, fmt.Errorf("not scripted")
}

func newCartFixture(t *testing.T, prices map[string]float64) (*Service, func()) {
	t.Helper()

	portfolioDB, cleanupPortfolio := internaltesting.NewTestDB(t, "portfolio")
	cacheDB, cleanupCache := internaltesting.NewTestDB(t, "cache")

	oracle := assets.NewOracle(
		clientdata.NewRepository(cacheDB.Conn()),
		&scriptedMarket{prices: prices},
		nil,
		10*time.Second,
		zerolog.Nop(),
	)

	service := NewService(NewRepository(portfolioDB.Conn()), oracle, nil, zerolog.Nop())

	return service, func() {
		cleanupCache()
		cleanupPortfolio()
	}
}

func TestAddItemValidatesQuantity(t *testing.T) {
	service, cleanup := newCartFixture(t, map[string]float64{"bitcoin": 64000})
	defer cleanup()

	_, err := service.AddItem(context.Background(), "alice", "bitcoin", 0)
	assert.Error(t, err)

	_, err = service.AddItem(context.Background(), "alice", "bitcoin", -1)
	assert.Error(t, err)
}

func TestAddItemRecordsAddTimePrice(t *testing.T) {
	service, cleanup := newCartFixture(t, map[string]float64{"bitcoin": 64000})
	defer cleanup()

	c, err := service.AddItem(context.Background(), "alice", "bitcoin", 0.5)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 0.5, c.Items[0].Quantity)
	assert.Equal(t, 64000.0, c.Items[0].PriceAtAdd)
	assert.Equal(t, 1, c.Totals.ItemCount)
	assert.InDelta(t, 32000.0, c.Totals.TotalAtAdd, 1e-9)
	assert.InDelta(t, 32000.0, c.Totals.TotalCurrent, 1e-9)
}

func TestAddItemMergesExistingLine(t *testing.T) {
	service, cleanup := newCartFixture(t, map[string]float64{"bitcoin": 64000})
	defer cleanup()

	_, err := service.AddItem(context.Background(), "alice", "bitcoin", 0.5)
	require.NoError(t, err)

	c, err := service.AddItem(context.Background(), "alice", "bitcoin", 0.3)
	require.NoError(t, err)

	// One merged line, not two
	require.Len(t, c.Items, 1)
	assert.InDelta(t, 0.8, c.Items[0].Quantity, 1e-9)
}

func TestAddItemRejectsUnknownAsset(t *testing.T) {
	service, cleanup := newCartFixture(t, map[string]float64{"bitcoin": 64000})
	defer cleanup()

	_, err := service.AddItem(context.Background(), "alice", "no-such-asset", 1)
	assert.Error(t, err)
}

func TestUpdateItem(t *testing.T) {
	service, cleanup := newCartFixture(t, map[string]float64{"bitcoin": 64000})
	defer cleanup()

	_, err := service.AddItem(context.Background(), "alice", "bitcoin", 0.5)
	require.NoError(t, err)

	c, err := service.UpdateItem(context.Background(), "alice", "bitcoin", 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, c.Items[0].Quantity)

	_, err = service.UpdateItem(context.Background(), "alice", "bitcoin", 0)
	assert.Error(t, err)

	_, err = service.UpdateItem(context.Background(), "alice", "ethereum", 1)
	assert.Error(t, err)
}

func TestRemoveAndClear(t *testing.T) {
	service, cleanup := newCartFixture(t, map[string]float64{"bitcoin": 64000, "solana": 150})
	defer cleanup()

	_, err := service.AddItem(context.Background(), "alice", "bitcoin", 1)
	require.NoError(t, err)
	_, err = service.AddItem(context.Background(), "alice", "solana", 2)
	require.NoError(t, err)

	c, err := service.RemoveItem(context.Background(), "alice", "bitcoin")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "solana", c.Items[0].AssetID)

	require.NoError(t, service.Clear(context.Background(), "alice"))

	// Clearing an already empty cart succeeds
	require.NoError(t, service.Clear(context.Background(), "alice"))

	c, err = service.GetCart(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Zero(t, c.Totals.ItemCount)
}

func TestCartsAreIsolatedPerUser(t *testing.T) {
	service, cleanup := newCartFixture(t, map[string]float64{"bitcoin": 64000})
	defer cleanup()

	_, err := service.AddItem(context.Background(), "alice", "bitcoin", 1)
	require.NoError(t, err)

	c, err := service.GetCart(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}
