package tasknode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject(t *testing.T) {
	tx := makeTx(t, txOptions{
		hash:        "PROJ1",
		account:     "rSender",
		destination: "rDest",
		fee:         "12",
		result:      TxResultSuccess,
		amount:      "10",
		closeTime:   "2025-01-20T16:58:17",
		memos:       []map[string]any{hexMemo("task_request", "text", "data")},
	})

	memoData, err := BuildMemo(tx)
	require.NoError(t, err)

	projected, err := Project(tx, memoData)
	require.NoError(t, err)

	assert.Equal(t, "PROJ1", projected.Hash)
	assert.Equal(t, int64(1000), projected.LedgerIndex)
	assert.Equal(t, "rSender", projected.Account)
	assert.Equal(t, "rDest", projected.Destination)
	assert.Equal(t, "12", projected.Fee)
	assert.Equal(t, "Payment", projected.TransactionType)
	assert.Equal(t, int64(1), projected.Sequence)
	assert.Equal(t, TxResultSuccess, projected.TransactionResult)
	assert.Equal(t, "task_request", projected.MemoType)
	assert.Equal(t, "data", projected.MemoData)
	assert.True(t, projected.HasMemos)
	assert.Equal(t, 10.0, projected.DeliveredAmount)
	assert.Equal(t, "2025-01-20", projected.SimpleDate)
	assert.True(t, projected.Validated)
}

func TestProject_NoMemo(t *testing.T) {
	tx := makeTx(t, txOptions{
		hash:        "PROJ2",
		account:     "rSender",
		destination: "rDest",
		result:      TxResultSuccess,
		closeTime:   "2025-01-20T16:58:17",
	})

	projected, err := Project(tx, nil)
	require.NoError(t, err)

	assert.False(t, projected.HasMemos)
	assert.Empty(t, projected.MemoType)
	// Delivered amount defaults to 0 when absent.
	assert.Equal(t, 0.0, projected.DeliveredAmount)
}

func TestProject_NoCloseTime(t *testing.T) {
	tx := makeTx(t, txOptions{
		hash:        "PROJ3",
		account:     "rSender",
		destination: "rDest",
		result:      TxResultSuccess,
	})

	projected, err := Project(tx, nil)
	require.NoError(t, err)

	assert.Nil(t, projected.Timestamp)
	assert.Empty(t, projected.SimpleDate)
}
