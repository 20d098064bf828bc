package portfolio

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/coincart/coincart/internal/modules/assets"
	"github.com/coincart/coincart/pkg/formulas"
)

// QuoteSource answers quote lookups during valuation.
type QuoteSource interface {
	GetAsset(ctx context.Context, assetID string) (*assets.Asset, error)
}

// Service computes portfolio valuation from positions and live quotes.
type Service struct {
	positionRepo *PositionRepository
	quotes       QuoteSource
	log          zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(positionRepo *PositionRepository, quotes QuoteSource, log zerolog.Logger) *Service {
	return &Service{
		positionRepo: positionRepo,
		quotes:       quotes,
		log:          log.With().Str("service", "portfolio").Logger(),
	}
}

// GetSummary values every holding at current prices. A holding whose asset
// cannot be priced right now is valued at its own average cost, which pins
// its P&L to zero instead of inventing a gain or loss.
func (s *Service) GetSummary(ctx context.Context, userID string) (*Summary, error) {
	positions, err := s.positionRepo.GetAll(userID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		UserID:     userID,
		Holdings:   make([]Holding, 0, len(positions)),
		ComputedAt: time.Now(),
	}

	for _, pos := range positions {
		h := Holding{
			AssetID:         pos.AssetID,
			Symbol:          pos.Symbol,
			Quantity:        pos.Quantity,
			AvgCost:         pos.AvgCost,
			FirstPurchaseAt: pos.FirstPurchaseAt,
			CostBasis:       pos.Quantity * pos.AvgCost,
		}

		asset, aerr := s.quotes.GetAsset(ctx, pos.AssetID)
		if aerr != nil || asset.CurrentPrice <= 0 {
			s.log.Warn().Str("asset", pos.AssetID).Msg("No current price for holding, valuing at cost")
			h.CurrentPrice = pos.AvgCost
			h.PriceSource = "cost"
		} else {
			h.CurrentPrice = asset.CurrentPrice
			h.PriceSource = asset.Source
			h.Name = asset.Name
		}

		h.CurrentValue = pos.Quantity * h.CurrentPrice
		h.PnL = formulas.PnL(pos.Quantity, pos.AvgCost, h.CurrentPrice)
		h.PnLPercent = formulas.PnLPercent(h.CostBasis, h.CurrentValue)

		summary.TotalCostBasis += h.CostBasis
		summary.TotalValue += h.CurrentValue
		summary.Holdings = append(summary.Holdings, h)
	}

	summary.TotalPnL = summary.TotalValue - summary.TotalCostBasis
	summary.TotalPnLPct = formulas.PnLPercent(summary.TotalCostBasis, summary.TotalValue)

	// Allocations need the final total; they sum to ~100% modulo float
	// rounding, and to 0 for an empty portfolio
	for i := range summary.Holdings {
		summary.Holdings[i].AllocationPct = formulas.AllocationPercent(
			summary.Holdings[i].CurrentValue, summary.TotalValue)
	}

	return summary, nil
}

// GetHolding values a single position. Returns nil when the user holds
// none of the asset.
func (s *Service) GetHolding(ctx context.Context, userID, assetID string) (*Holding, error) {
	summary, err := s.GetSummary(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range summary.Holdings {
		if summary.Holdings[i].AssetID == assetID {
			return &summary.Holdings[i], nil
		}
	}
	return nil, nil
}

// GetPerformance returns the best and worst performer by P&L percent.
// Both are absent for an empty portfolio; with a single holding they are
// the same asset.
func (s *Service) GetPerformance(ctx context.Context, userID string) (*Performance, error) {
	summary, err := s.GetSummary(ctx, userID)
	if err != nil {
		return nil, err
	}

	perf := &Performance{UserID: userID}
	if len(summary.Holdings) == 0 {
		return perf, nil
	}

	best := summary.Holdings[0]
	worst := summary.Holdings[0]
	for _, h := range summary.Holdings[1:] {
		if h.PnLPercent > best.PnLPercent {
			best = h
		}
		if h.PnLPercent < worst.PnLPercent {
			worst = h
		}
	}

	perf.Best = &PerformerRef{AssetID: best.AssetID, Symbol: best.Symbol, PnLPercent: best.PnLPercent}
	perf.Worst = &PerformerRef{AssetID: worst.AssetID, Symbol: worst.Symbol, PnLPercent: worst.PnLPercent}
	return perf, nil
}
