package trading

import (
	"database/sql"
	"fmt"
	"time"
)

// Pagination bounds for ledger queries.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TransactionRepository provides the append-only ledger over ledger.db.
// There are deliberately no update or delete methods.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Insert appends one transaction to the ledger.
func (r *TransactionRepository) Insert(txn Transaction) error {
	_, err := r.db.Exec(`
		INSERT INTO transactions (id, user_id, asset_id, symbol, side, quantity, price, total, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.UserID, txn.AssetID, txn.Symbol, string(txn.Side),
		txn.Quantity, txn.Price, txn.Total, txn.ExecutedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetPage returns one page of a user's history, newest first. Rows sharing a
// timestamp come back in reverse insertion order; the table is append-only,
// so rowid grows monotonically and makes a stable tiebreak. Page numbers
// start at 1; out-of-range values are clamped rather than rejected.
func (r *TransactionRepository) GetPage(userID string, page, pageSize int) (*TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	var total int
	if err := r.db.QueryRow(`
		SELECT COUNT(*) FROM transactions WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	offset := (page - 1) * pageSize

	rows, err := r.db.Query(`
		SELECT id, user_id, asset_id, symbol, side, quantity, price, total, executed_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY executed_at DESC, rowid DESC
		LIMIT ? OFFSET ?`, userID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []Transaction{}
	for rows.Next() {
		var txn Transaction
		var side string
		var executedAt int64
		if err := rows.Scan(&txn.ID, &txn.UserID, &txn.AssetID, &txn.Symbol, &side,
			&txn.Quantity, &txn.Price, &txn.Total, &executedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Side = Side(side)
		txn.ExecutedAt = time.UnixMilli(executedAt)
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &TransactionPage{
		Transactions: transactions,
		Page:         page,
		PageSize:     pageSize,
		TotalCount:   total,
		HasMore:      offset+len(transactions) < total,
	}, nil
}

// CountForUser returns the total number of ledger rows for a user.
func (r *TransactionRepository) CountForUser(userID string) (int, error) {
	var count int
	if err := r.db.QueryRow(`
		SELECT COUNT(*) FROM transactions WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}
