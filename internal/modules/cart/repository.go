package cart

import (
	"database/sql"
	"fmt"
	"time"
)

// Repository provides cart persistence over portfolio.db.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new cart repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetItems returns all items in a user's cart, oldest first.
func (r *Repository) GetItems(userID string) ([]Item, error) {
	rows, err := r.db.Query(`
		SELECT asset_id, symbol, quantity, price_at_add, added_at
		FROM cart_items
		WHERE user_id = ?
		ORDER BY added_at ASC, asset_id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var addedAt int64
		if err := rows.Scan(&item.AssetID, &item.Symbol, &item.Quantity, &item.PriceAtAdd, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		item.AddedAt = time.Unix(addedAt, 0)
		items = append(items, item)
	}

	return items, rows.Err()
}

// UpsertItem inserts a cart item and touches the cart row. An existing line
// for the same asset merges in a single statement: quantities add up and the
// add-time price refreshes to the incoming one.
func (r *Repository) UpsertItem(userID string, item Item) error {
	now := time.Now().Unix()

	if _, err := r.db.Exec(`
		INSERT INTO carts (user_id, updated_at) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET updated_at = excluded.updated_at`,
		userID, now); err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}

	if _, err := r.db.Exec(`
		INSERT INTO cart_items (user_id, asset_id, symbol, quantity, price_at_add, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, asset_id) DO UPDATE SET
			symbol = excluded.symbol,
			quantity = cart_items.quantity + excluded.quantity,
			price_at_add = excluded.price_at_add`,
		userID, item.AssetID, item.Symbol, item.Quantity, item.PriceAtAdd, item.AddedAt.Unix()); err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}

	return nil
}

// UpdateQuantity sets a cart item's quantity. Returns sql.ErrNoRows via a
// wrapped error when the item does not exist.
func (r *Repository) UpdateQuantity(userID, assetID string, quantity float64) error {
	result, err := r.db.Exec(`
		UPDATE cart_items SET quantity = ? WHERE user_id = ? AND asset_id = ?`,
		quantity, userID, assetID)
	if err != nil {
		return fmt.Errorf("failed to update cart item quantity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("cart item %s not found: %w", assetID, sql.ErrNoRows)
	}

	return r.touch(userID)
}

// RemoveItem deletes one item from the cart.
func (r *Repository) RemoveItem(userID, assetID string) error {
	result, err := r.db.Exec(`
		DELETE FROM cart_items WHERE user_id = ? AND asset_id = ?`, userID, assetID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("cart item %s not found: %w", assetID, sql.ErrNoRows)
	}

	return r.touch(userID)
}

// Clear empties a user's cart. Clearing an already empty cart is not an error.
func (r *Repository) Clear(userID string) error {
	if _, err := r.db.Exec(`DELETE FROM cart_items WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return r.touch(userID)
}

// ClearTx empties a user's cart inside an existing transaction.
func (r *Repository) ClearTx(tx *sql.Tx, userID string) error {
	if _, err := tx.Exec(`DELETE FROM cart_items WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO carts (user_id, updated_at) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET updated_at = excluded.updated_at`,
		userID, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}
	return nil
}

// UpdatedAt returns the cart's last modification time, or zero time for a
// cart that has never been touched.
func (r *Repository) UpdatedAt(userID string) (time.Time, error) {
	var updatedAt int64
	err := r.db.QueryRow(`SELECT updated_at FROM carts WHERE user_id = ?`, userID).Scan(&updatedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get cart updated_at: %w", err)
	}
	return time.Unix(updatedAt, 0), nil
}

func (r *Repository) touch(userID string) error {
	if _, err := r.db.Exec(`
		INSERT INTO carts (user_id, updated_at) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET updated_at = excluded.updated_at`,
		userID, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}
	return nil
}
