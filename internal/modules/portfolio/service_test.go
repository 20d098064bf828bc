package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coincart/coincart/internal/database"
	"github.com/coincart/coincart/internal/modules/assets"
	internaltesting "github.com/coincart/coincart/internal/testing"
)

// fakeQuotes serves quotes from a map; missing assets are unpriceable.
type fakeQuotes struct {
	prices map[string]float64
}

func (f *fakeQuotes) GetAsset(ctx context.Context, assetID string) (*assets.Asset, error) {
	price, ok := f.prices[assetID]
	if !ok {
		return nil, fmt.Errorf("unknown asset %q", assetID)
	}
	return &assets.Asset{
		ID:           assetID,
		Symbol:       assetID,
		Name:         assetID,
		CurrentPrice: price,
		UpdatedAt:    time.Now(),
		Source:       assets.SourceLive,
	}, nil
}

func seedPosition(t *testing.T, db *sql.DB, repo *PositionRepository, pos Position) {
	t.Helper()
	err := database.WithTransaction(db, func(tx *sql.Tx) error {
		return repo.UpsertTx(tx, pos)
	})
	require.NoError(t, err)
}

func newPortfolioFixture(t *testing.T, prices map[string]float64) (*Service, *PositionRepository, *sql.DB, func()) {
	t.Helper()
	db, cleanup := internaltesting.NewTestDB(t, "portfolio")
	repo := NewPositionRepository(db.Conn())
	service := NewService(repo, &fakeQuotes{prices: prices}, zerolog.Nop())
	return service, repo, db.Conn(), cleanup
}

func TestGetSummaryEmptyPortfolio(t *testing.T) {
	service, _, _, cleanup := newPortfolioFixture(t, nil)
	defer cleanup()

	summary, err := service.GetSummary(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, summary.Holdings)
	assert.Zero(t, summary.TotalValue)
	assert.Zero(t, summary.TotalCostBasis)
	assert.Zero(t, summary.TotalPnL)
	assert.Zero(t, summary.TotalPnLPct)
}

func TestGetSummaryValuation(t *testing.T) {
	service, repo, db, cleanup := newPortfolioFixture(t, map[string]float64{
		"bitcoin":  60000,
		"ethereum": 3000,
	})
	defer cleanup()

	seedPosition(t, db, repo, Position{UserID: "alice", AssetID: "bitcoin", Symbol: "btc", Quantity: 0.5, AvgCost: 50000})
	seedPosition(t, db, repo, Position{UserID: "alice", AssetID: "ethereum", Symbol: "eth", Quantity: 10, AvgCost: 3500})

	summary, err := service.GetSummary(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, summary.Holdings, 2)

	// bitcoin: cost 25000, value 30000, pnl +5000 (+20%)
	// ethereum: cost 35000, value 30000, pnl -5000 (~-14.29%)
	assert.InDelta(t, 60000.0, summary.TotalCostBasis, 1e-9)
	assert.InDelta(t, 60000.0, summary.TotalValue, 1e-9)
	assert.InDelta(t, 0.0, summary.TotalPnL, 1e-9)

	var btc, eth *Holding
	for i := range summary.Holdings {
		switch summary.Holdings[i].AssetID {
		case "bitcoin":
			btc = &summary.Holdings[i]
		case "ethereum":
			eth = &summary.Holdings[i]
		}
	}
	require.NotNil(t, btc)
	require.NotNil(t, eth)

	assert.InDelta(t, 5000.0, btc.PnL, 1e-9)
	assert.InDelta(t, 20.0, btc.PnLPercent, 1e-9)
	assert.InDelta(t, -5000.0, eth.PnL, 1e-9)
	assert.InDelta(t, -100.0/7.0, eth.PnLPercent, 1e-6)

	// Allocations sum to ~100%
	assert.InDelta(t, 100.0, btc.AllocationPct+eth.AllocationPct, 1e-6)
}

func TestGetSummaryUnpriceableHoldingValuedAtCost(t *testing.T) {
	service, repo, db, cleanup := newPortfolioFixture(t, map[string]float64{})
	defer cleanup()

	seedPosition(t, db, repo, Position{UserID: "alice", AssetID: "deadcoin", Symbol: "dead", Quantity: 100, AvgCost: 2})

	summary, err := service.GetSummary(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, summary.Holdings, 1)

	h := summary.Holdings[0]
	assert.Equal(t, "cost", h.PriceSource)
	assert.InDelta(t, 200.0, h.CurrentValue, 1e-9)
	assert.Zero(t, h.PnL)
	assert.Zero(t, h.PnLPercent)
}

func TestGetPerformance(t *testing.T) {
	service, repo, db, cleanup := newPortfolioFixture(t, map[string]float64{
		"bitcoin":  60000, // +20%
		"ethereum": 3000,  // ~-14%
		"solana":   100,   // 0%
	})
	defer cleanup()

	seedPosition(t, db, repo, Position{UserID: "alice", AssetID: "bitcoin", Symbol: "btc", Quantity: 0.5, AvgCost: 50000})
	seedPosition(t, db, repo, Position{UserID: "alice", AssetID: "ethereum", Symbol: "eth", Quantity: 10, AvgCost: 3500})
	seedPosition(t, db, repo, Position{UserID: "alice", AssetID: "solana", Symbol: "sol", Quantity: 5, AvgCost: 100})

	perf, err := service.GetPerformance(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, perf.Best)
	require.NotNil(t, perf.Worst)
	assert.Equal(t, "bitcoin", perf.Best.AssetID)
	assert.Equal(t, "ethereum", perf.Worst.AssetID)
}

func TestGetPerformanceEmptyPortfolio(t *testing.T) {
	service, _, _, cleanup := newPortfolioFixture(t, nil)
	defer cleanup()

	perf, err := service.GetPerformance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, perf.Best)
	assert.Nil(t, perf.Worst)
}

func TestGetPerformanceSingleHolding(t *testing.T) {
	service, repo, db, cleanup := newPortfolioFixture(t, map[string]float64{"bitcoin": 60000})
	defer cleanup()

	seedPosition(t, db, repo, Position{UserID: "alice", AssetID: "bitcoin", Symbol: "btc", Quantity: 1, AvgCost: 50000})

	perf, err := service.GetPerformance(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, perf.Best)
	require.NotNil(t, perf.Worst)
	assert.Equal(t, perf.Best.AssetID, perf.Worst.AssetID)
}

func TestGetHolding(t *testing.T) {
	service, repo, db, cleanup := newPortfolioFixture(t, map[string]float64{"bitcoin": 60000})
	defer cleanup()

	seedPosition(t, db, repo, Position{UserID: "alice", AssetID: "bitcoin", Symbol: "btc", Quantity: 1, AvgCost: 50000})

	h, err := service.GetHolding(context.Background(), "alice", "bitcoin")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.InDelta(t, 10000.0, h.PnL, 1e-9)

	h, err = service.GetHolding(context.Background(), "alice", "ethereum")
	require.NoError(t, err)
	assert.Nil(t, h)
}
