package portfolio

import (
	"database/sql"
	"fmt"
	"time"
)

// PositionRepository provides position persistence over portfolio.db.
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// GetAll returns all of a user's positions, largest cost basis first.
func (r *PositionRepository) GetAll(userID string) ([]Position, error) {
	rows, err := r.db.Query(`
		SELECT user_id, asset_id, symbol, quantity, avg_cost, first_purchase_at, updated_at
		FROM positions
		WHERE user_id = ?
		ORDER BY quantity * avg_cost DESC, asset_id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *pos)
	}

	return positions, rows.Err()
}

// Get returns one position, or nil if the user holds none of the asset.
func (r *PositionRepository) Get(userID, assetID string) (*Position, error) {
	row := r.db.QueryRow(`
		SELECT user_id, asset_id, symbol, quantity, avg_cost, first_purchase_at, updated_at
		FROM positions
		WHERE user_id = ? AND asset_id = ?`, userID, assetID)

	pos, err := scanPositionRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return pos, err
}

// GetTx reads one position inside an existing transaction.
func (r *PositionRepository) GetTx(tx *sql.Tx, userID, assetID string) (*Position, error) {
	row := tx.QueryRow(`
		SELECT user_id, asset_id, symbol, quantity, avg_cost, first_purchase_at, updated_at
		FROM positions
		WHERE user_id = ? AND asset_id = ?`, userID, assetID)

	pos, err := scanPositionRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return pos, err
}

// UpsertTx writes a position inside an existing transaction. The first
// purchase date is set on insert and never overwritten.
func (r *PositionRepository) UpsertTx(tx *sql.Tx, pos Position) error {
	_, err := tx.Exec(`
		INSERT INTO positions (user_id, asset_id, symbol, quantity, avg_cost, first_purchase_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, asset_id) DO UPDATE SET
			symbol = excluded.symbol,
			quantity = excluded.quantity,
			avg_cost = excluded.avg_cost,
			updated_at = excluded.updated_at`,
		pos.UserID, pos.AssetID, pos.Symbol, pos.Quantity, pos.AvgCost,
		pos.FirstPurchaseAt.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}
	return nil
}

// DeleteTx removes a position inside an existing transaction. Used when a
// sell brings the quantity to zero.
func (r *PositionRepository) DeleteTx(tx *sql.Tx, userID, assetID string) error {
	if _, err := tx.Exec(`
		DELETE FROM positions WHERE user_id = ? AND asset_id = ?`, userID, assetID); err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(s rowScanner) (*Position, error) {
	var pos Position
	var firstPurchaseAt, updatedAt int64
	if err := s.Scan(&pos.UserID, &pos.AssetID, &pos.Symbol, &pos.Quantity, &pos.AvgCost, &firstPurchaseAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan position: %w", err)
	}
	pos.FirstPurchaseAt = time.Unix(firstPurchaseAt, 0)
	pos.UpdatedAt = time.Unix(updatedAt, 0)
	return &pos, nil
}

func scanPositionRow(row *sql.Row) (*Position, error) {
	var pos Position
	var firstPurchaseAt, updatedAt int64
	err := row.Scan(&pos.UserID, &pos.AssetID, &pos.Symbol, &pos.Quantity, &pos.AvgCost, &firstPurchaseAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan position: %w", err)
	}
	pos.FirstPurchaseAt = time.Unix(firstPurchaseAt, 0)
	pos.UpdatedAt = time.Unix(updatedAt, 0)
	return &pos, nil
}
