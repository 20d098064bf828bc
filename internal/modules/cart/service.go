package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/coincart/coincart/internal/events"
	"github.com/coincart/coincart/internal/modules/assets"
)

// Service implements cart business rules: quantity validation, merge-on-add
// and totals at current prices.
type Service struct {
	repo   *Repository
	oracle *assets.Oracle
	bus    *events.Bus
	log    zerolog.Logger
}

// NewService creates a new cart service
func NewService(repo *Repository, oracle *assets.Oracle, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		oracle: oracle,
		bus:    bus,
		log:    log.With().Str("service", "cart").Logger(),
	}
}

// AddItem adds quantity units of an asset to the user's cart. Adding an
// asset already in the cart merges quantities into the existing line and
// refreshes its add-time price to the current quote.
func (s *Service) AddItem(ctx context.Context, userID, assetID string, quantity float64) (*Cart, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %v", quantity)
	}

	asset, err := s.oracle.GetAsset(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("cannot add unknown asset to cart: %w", err)
	}
	if asset.CurrentPrice <= 0 {
		return nil, fmt.Errorf("asset %s has no valid price", assetID)
	}

	// The repository merges quantities when the asset is already in the cart
	item := Item{
		AssetID:    asset.ID,
		Symbol:     asset.Symbol,
		Quantity:   quantity,
		PriceAtAdd: asset.CurrentPrice,
		AddedAt:    time.Now(),
	}
	if err := s.repo.UpsertItem(userID, item); err != nil {
		return nil, err
	}

	if s.bus != nil {
		s.bus.Emit(events.CartUpdated, "cart", map[string]interface{}{
			"userId":  userID,
			"assetId": assetID,
			"action":  "add",
		})
	}

	return s.GetCart(ctx, userID)
}

// UpdateItem sets the quantity of an existing cart line.
func (s *Service) UpdateItem(ctx context.Context, userID, assetID string, quantity float64) (*Cart, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %v", quantity)
	}

	if err := s.repo.UpdateQuantity(userID, assetID, quantity); err != nil {
		return nil, err
	}

	if s.bus != nil {
		s.bus.Emit(events.CartUpdated, "cart", map[string]interface{}{
			"userId":  userID,
			"assetId": assetID,
			"action":  "update",
		})
	}

	return s.GetCart(ctx, userID)
}

// RemoveItem deletes one line from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, assetID string) (*Cart, error) {
	if err := s.repo.RemoveItem(userID, assetID); err != nil {
		return nil, err
	}

	if s.bus != nil {
		s.bus.Emit(events.CartUpdated, "cart", map[string]interface{}{
			"userId":  userID,
			"assetId": assetID,
			"action":  "remove",
		})
	}

	return s.GetCart(ctx, userID)
}

// Clear empties the cart. Clearing an empty cart succeeds.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.repo.Clear(userID); err != nil {
		return err
	}

	if s.bus != nil {
		s.bus.Emit(events.CartUpdated, "cart", map[string]interface{}{
			"userId": userID,
			"action": "clear",
		})
	}

	return nil
}

// GetCart returns the cart with totals. TotalCurrent uses live quotes; a
// line whose asset cannot be priced right now falls back to its add-time
// price so the total stays meaningful.
func (s *Service) GetCart(ctx context.Context, userID string) (*Cart, error) {
	items, err := s.repo.GetItems(userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Item{}
	}

	updatedAt, err := s.repo.UpdatedAt(userID)
	if err != nil {
		return nil, err
	}

	c := &Cart{
		UserID:    userID,
		Items:     items,
		UpdatedAt: updatedAt,
	}

	for _, item := range items {
		c.Totals.ItemCount++
		c.Totals.TotalAtAdd += item.Quantity * item.PriceAtAdd

		price, _, err := s.oracle.CurrentPrice(ctx, item.AssetID)
		if err != nil {
			s.log.Warn().Err(err).Str("asset", item.AssetID).Msg("No current price for cart line, using add-time price")
			price = item.PriceAtAdd
		}
		c.Totals.TotalCurrent += item.Quantity * price
	}

	return c, nil
}
