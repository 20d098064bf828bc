package trading

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaltesting "github.com/coincart/coincart/internal/testing"
)

func seedLedger(t *testing.T, repo *TransactionRepository, userID string, n int) {
	t.Helper()
	base := time.Now().Add(-time.Duration(n) * time.Minute)
	for i := 0; i < n; i++ {
		err := repo.Insert(Transaction{
			ID:         uuid.NewString(),
			UserID:     userID,
			AssetID:    fmt.Sprintf("asset-%d", i),
			Symbol:     fmt.Sprintf("a%d", i),
			Side:       SideBuy,
			Quantity:   1,
			Price:      float64(100 + i),
			Total:      float64(100 + i),
			ExecutedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
}

func TestGetPageNewestFirst(t *testing.T) {
	db, cleanup := internaltesting.NewTestDB(t, "ledger")
	defer cleanup()
	repo := NewTransactionRepository(db.Conn())

	seedLedger(t, repo, "alice", 5)

	page, err := repo.GetPage("alice", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 5)
	assert.Equal(t, 5, page.TotalCount)
	assert.False(t, page.HasMore)

	// Newest row first
	assert.Equal(t, "asset-4", page.Transactions[0].AssetID)
	assert.Equal(t, "asset-0", page.Transactions[4].AssetID)
}

func TestGetPageSameInstantKeepsInsertionOrder(t *testing.T) {
	db, cleanup := internaltesting.NewTestDB(t, "ledger")
	defer cleanup()
	repo := NewTransactionRepository(db.Conn())

	// One checkout stamps every row with the same time
	at := time.Now()
	for i := 0; i < 3; i++ {
		err := repo.Insert(Transaction{
			ID:         uuid.NewString(),
			UserID:     "alice",
			AssetID:    fmt.Sprintf("asset-%d", i),
			Symbol:     fmt.Sprintf("a%d", i),
			Side:       SideBuy,
			Quantity:   1,
			Price:      100,
			Total:      100,
			ExecutedAt: at,
		})
		require.NoError(t, err)
	}

	page, err := repo.GetPage("alice", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 3)

	// Tied timestamps come back in reverse insertion order, not id order
	assert.Equal(t, "asset-2", page.Transactions[0].AssetID)
	assert.Equal(t, "asset-1", page.Transactions[1].AssetID)
	assert.Equal(t, "asset-0", page.Transactions[2].AssetID)
}

func TestGetPagePagination(t *testing.T) {
	db, cleanup := internaltesting.NewTestDB(t, "ledger")
	defer cleanup()
	repo := NewTransactionRepository(db.Conn())

	seedLedger(t, repo, "alice", 25)

	page, err := repo.GetPage("alice", 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 10)
	assert.True(t, page.HasMore)

	page, err = repo.GetPage("alice", 3, 10)
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 5)
	assert.False(t, page.HasMore)

	// Past the end: empty page, no error
	page, err = repo.GetPage("alice", 4, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Transactions)
	assert.False(t, page.HasMore)
}

func TestGetPageClampsArguments(t *testing.T) {
	db, cleanup := internaltesting.NewTestDB(t, "ledger")
	defer cleanup()
	repo := NewTransactionRepository(db.Conn())

	seedLedger(t, repo, "alice", 3)

	// Page < 1 clamps to 1, pageSize <= 0 to the default, huge to the max
	page, err := repo.GetPage("alice", 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	page, err = repo.GetPage("alice", 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.PageSize)
}

func TestGetPageScopedToUser(t *testing.T) {
	db, cleanup := internaltesting.NewTestDB(t, "ledger")
	defer cleanup()
	repo := NewTransactionRepository(db.Conn())

	seedLedger(t, repo, "alice", 3)
	seedLedger(t, repo, "bob", 2)

	page, err := repo.GetPage("alice", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)

	page, err = repo.GetPage("bob", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
}
