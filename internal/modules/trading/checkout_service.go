package trading

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/coincart/coincart/internal/config"
	"github.com/coincart/coincart/internal/database"
	"github.com/coincart/coincart/internal/events"
	"github.com/coincart/coincart/internal/modules/cart"
	"github.com/coincart/coincart/internal/modules/portfolio"
)

// PriceSource answers price questions at execution time.
type PriceSource interface {
	CurrentPrice(ctx context.Context, assetID string) (float64, string, error)
}

// CheckoutService executes carts against live prices and maintains positions
// and the ledger. All trades for one user are serialized through a per-user
// lock, so two concurrent checkouts cannot double-execute a cart.
type CheckoutService struct {
	portfolioDB  *sql.DB
	cartRepo     *cart.Repository
	positionRepo *portfolio.PositionRepository
	ledgerRepo   *TransactionRepository
	prices       PriceSource
	bus          *events.Bus
	policy       config.CheckoutPolicy
	locks        *userLocks
	log          zerolog.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	portfolioDB *sql.DB,
	cartRepo *cart.Repository,
	positionRepo *portfolio.PositionRepository,
	ledgerRepo *TransactionRepository,
	prices PriceSource,
	bus *events.Bus,
	policy config.CheckoutPolicy,
	log zerolog.Logger,
) *CheckoutService {
	return &CheckoutService{
		portfolioDB:  portfolioDB,
		cartRepo:     cartRepo,
		positionRepo: positionRepo,
		ledgerRepo:   ledgerRepo,
		prices:       prices,
		bus:          bus,
		policy:       policy,
		locks:        newUserLocks(),
		log:          log.With().Str("service", "checkout").Logger(),
	}
}

// pricedItem is a cart line with its resolved execution price.
type pricedItem struct {
	item  cart.Item
	price float64
}

// Checkout executes every line of the user's cart at current prices.
//
// Under the skip policy, lines that cannot be priced are skipped and reported
// in the summary; everything else executes and the cart is cleared entirely,
// skipped lines included. Under the abort policy, one unpriceable line fails
// the whole checkout and nothing changes.
func (s *CheckoutService) Checkout(ctx context.Context, userID string) (*CheckoutSummary, error) {
	lock := s.locks.get(userID)
	lock.Lock()
	defer lock.Unlock()

	items, err := s.cartRepo.GetItems(userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	// Resolve every price before touching any state
	var priced []pricedItem
	var skipped []SkippedItem
	for _, item := range items {
		price, source, perr := s.prices.CurrentPrice(ctx, item.AssetID)
		if perr != nil {
			if s.policy == config.CheckoutAbort {
				return nil, fmt.Errorf("cannot price %s, checkout aborted: %w", item.AssetID, perr)
			}
			s.log.Warn().Err(perr).Str("asset", item.AssetID).Msg("Skipping unpriceable cart line")
			skipped = append(skipped, SkippedItem{
				AssetID: item.AssetID,
				Symbol:  item.Symbol,
				Reason:  perr.Error(),
			})
			continue
		}
		s.log.Debug().
			Str("asset", item.AssetID).
			Float64("price", price).
			Str("source", source).
			Msg("Priced cart line")
		priced = append(priced, pricedItem{item: item, price: price})
	}

	now := time.Now()
	summary := &CheckoutSummary{
		UserID:     userID,
		Executed:   []Transaction{},
		Skipped:    skipped,
		ExecutedAt: now,
	}
	if summary.Skipped == nil {
		summary.Skipped = []SkippedItem{}
	}
	err = database.WithTransaction(s.portfolioDB, func(tx *sql.Tx) error {
		for _, p := range priced {
			if err := s.applyBuyTx(tx, userID, p.item, p.price, now); err != nil {
				return err
			}
		}
		// The whole cart empties on checkout, skipped lines included; the
		// summary is the caller's record of what did not execute
		return s.cartRepo.ClearTx(tx, userID)
	})
	if err != nil {
		return nil, err
	}

	// Ledger rows are appended after the portfolio commit. The ledger lives
	// in its own database, so this cannot share the transaction above; a
	// failed append is logged loudly rather than unwinding the positions,
	// and the trade stays in the summary marked unledgered so the caller's
	// record still matches the portfolio mutation.
	totalSpent := decimal.Zero
	for _, p := range priced {
		txn := Transaction{
			ID:         uuid.NewString(),
			UserID:     userID,
			AssetID:    p.item.AssetID,
			Symbol:     p.item.Symbol,
			Side:       SideBuy,
			Quantity:   p.item.Quantity,
			Price:      p.price,
			Total:      decimal.NewFromFloat(p.item.Quantity).Mul(decimal.NewFromFloat(p.price)).InexactFloat64(),
			ExecutedAt: now,
		}
		if err := s.ledgerRepo.Insert(txn); err != nil {
			s.log.Error().Err(err).Str("asset", txn.AssetID).Msg("Failed to append ledger row for executed trade")
			txn.Unledgered = true
		}
		summary.Executed = append(summary.Executed, txn)
		totalSpent = totalSpent.Add(decimal.NewFromFloat(txn.Total))

		if s.bus != nil {
			s.bus.Emit(events.TradeExecuted, "trading", map[string]interface{}{
				"userId":   userID,
				"assetId":  txn.AssetID,
				"side":     string(txn.Side),
				"quantity": txn.Quantity,
				"price":    txn.Price,
			})
		}
	}
	summary.TotalSpent = totalSpent.InexactFloat64()

	if s.bus != nil {
		s.bus.Emit(events.CheckoutComplete, "trading", map[string]interface{}{
			"userId":   userID,
			"executed": len(summary.Executed),
			"skipped":  len(summary.Skipped),
			"total":    summary.TotalSpent,
		})
	}

	s.log.Info().
		Str("user", userID).
		Int("executed", len(summary.Executed)).
		Int("skipped", len(summary.Skipped)).
		Float64("total", summary.TotalSpent).
		Msg("Checkout completed")

	return summary, nil
}

// applyBuyTx folds one executed buy into the user's position using a
// weighted average cost basis:
//
//	newAvg = (oldQty*oldAvg + qty*price) / (oldQty + qty)
//
// Decimal arithmetic keeps repeated merges from accumulating float drift.
func (s *CheckoutService) applyBuyTx(tx *sql.Tx, userID string, item cart.Item, price float64, now time.Time) error {
	existing, err := s.positionRepo.GetTx(tx, userID, item.AssetID)
	if err != nil {
		return err
	}

	qty := decimal.NewFromFloat(item.Quantity)
	px := decimal.NewFromFloat(price)

	newQty := qty
	newAvg := px
	firstPurchase := now
	if existing != nil {
		oldQty := decimal.NewFromFloat(existing.Quantity)
		oldAvg := decimal.NewFromFloat(existing.AvgCost)

		newQty = oldQty.Add(qty)
		newAvg = oldQty.Mul(oldAvg).Add(qty.Mul(px)).Div(newQty)
		firstPurchase = existing.FirstPurchaseAt
	}

	return s.positionRepo.UpsertTx(tx, portfolio.Position{
		UserID:          userID,
		AssetID:         item.AssetID,
		Symbol:          item.Symbol,
		Quantity:        newQty.InexactFloat64(),
		AvgCost:         newAvg.InexactFloat64(),
		FirstPurchaseAt: firstPurchase,
		UpdatedAt:       now,
	})
}

// Sell disposes of quantity units of a holding at the current price. The
// average cost never changes on a sell; selling the full quantity removes
// the position. Overselling is rejected.
func (s *CheckoutService) Sell(ctx context.Context, userID, assetID string, quantity float64) (*Transaction, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w, got %v", ErrInvalidQuantity, quantity)
	}

	lock := s.locks.get(userID)
	lock.Lock()
	defer lock.Unlock()

	pos, err := s.positionRepo.Get(userID, assetID)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPosition, assetID)
	}

	held := decimal.NewFromFloat(pos.Quantity)
	qty := decimal.NewFromFloat(quantity)
	if qty.GreaterThan(held) {
		return nil, fmt.Errorf("%w: %v of %s requested, %v held", ErrOversell, quantity, assetID, pos.Quantity)
	}

	price, source, err := s.prices.CurrentPrice(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("cannot price %s for sell: %w", assetID, err)
	}

	now := time.Now()
	remaining := held.Sub(qty)
	closed := remaining.IsZero()

	err = database.WithTransaction(s.portfolioDB, func(tx *sql.Tx) error {
		if closed {
			return s.positionRepo.DeleteTx(tx, userID, assetID)
		}
		return s.positionRepo.UpsertTx(tx, portfolio.Position{
			UserID:          userID,
			AssetID:         assetID,
			Symbol:          pos.Symbol,
			Quantity:        remaining.InexactFloat64(),
			AvgCost:         pos.AvgCost,
			FirstPurchaseAt: pos.FirstPurchaseAt,
			UpdatedAt:       now,
		})
	})
	if err != nil {
		return nil, err
	}

	txn := Transaction{
		ID:         uuid.NewString(),
		UserID:     userID,
		AssetID:    assetID,
		Symbol:     pos.Symbol,
		Side:       SideSell,
		Quantity:   quantity,
		Price:      price,
		Total:      qty.Mul(decimal.NewFromFloat(price)).InexactFloat64(),
		ExecutedAt: now,
	}
	if err := s.ledgerRepo.Insert(txn); err != nil {
		s.log.Error().Err(err).Str("asset", assetID).Msg("Failed to append ledger row for sell")
		txn.Unledgered = true
	}

	if s.bus != nil {
		s.bus.Emit(events.TradeExecuted, "trading", map[string]interface{}{
			"userId":   userID,
			"assetId":  assetID,
			"side":     string(SideSell),
			"quantity": quantity,
			"price":    price,
			"source":   source,
		})
		if closed {
			s.bus.Emit(events.PositionClosed, "trading", map[string]interface{}{
				"userId":  userID,
				"assetId": assetID,
			})
		}
	}

	s.log.Info().
		Str("user", userID).
		Str("asset", assetID).
		Float64("quantity", quantity).
		Float64("price", price).
		Bool("closed", closed).
		Msg("Sell executed")

	return &txn, nil
}

// History returns one page of the user's ledger, newest first.
func (s *CheckoutService) History(userID string, page, pageSize int) (*TransactionPage, error) {
	return s.ledgerRepo.GetPage(userID, page, pageSize)
}
