package tasknode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
	"github.com/postfiatorg/tasknode/internal/tasknode/store/memorystore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcessor(t *testing.T) (*Processor, *memorystore.MemoryStore) {
	t.Helper()
	st := memorystore.New()
	return NewProcessor(st, discardLogger()), st
}

func TestProcessTransaction_Scenario(t *testing.T) {
	ctx := context.Background()
	sut, st := newTestProcessor(t)

	tx := makeTx(t, txOptions{
		hash:        "ABC123",
		account:     "rSender",
		destination: "rDest",
		fee:         "12",
		result:      TxResultSuccess,
		amount:      "10",
		closeTime:   "2025-01-20T16:58:17",
		memos:       []map[string]any{hexMemo("task_request", "text", "please do the thing")},
	})

	require.NoError(t, sut.ProcessTransaction(ctx, tx))

	memoData, err := st.GetMemo(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "task_request", memoData.MemoType)
	assert.Equal(t, "text", memoData.MemoFormat)
	assert.Equal(t, "please do the thing", memoData.MemoData)
	require.NotNil(t, memoData.PFTAmount)
	assert.Equal(t, 10.0, *memoData.PFTAmount)

	senderBalance, err := st.GetBalance(ctx, "rSender")
	require.NoError(t, err)
	assert.Equal(t, -10.0, senderBalance)

	destBalance, err := st.GetBalance(ctx, "rDest")
	require.NoError(t, err)
	assert.Equal(t, 10.0, destBalance)

	holder, err := st.GetHolder(ctx, "rDest")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", holder.LastTxHash)
}

func TestProcessTransaction_IdempotentRedelivery(t *testing.T) {
	ctx := context.Background()
	sut, st := newTestProcessor(t)

	tx := makeTx(t, txOptions{
		hash:        "DUP1",
		account:     "rSender",
		destination: "rDest",
		result:      TxResultSuccess,
		amount:      "25",
		closeTime:   "2025-01-20T10:00:00",
		memos:       []map[string]any{hexMemo("task_request", "text", "data")},
	})

	require.NoError(t, sut.ProcessTransaction(ctx, tx))
	require.NoError(t, sut.ProcessTransaction(ctx, tx))
	require.NoError(t, sut.ProcessTransaction(ctx, tx))

	senderBalance, err := st.GetBalance(ctx, "rSender")
	require.NoError(t, err)
	assert.Equal(t, -25.0, senderBalance)

	destBalance, err := st.GetBalance(ctx, "rDest")
	require.NoError(t, err)
	assert.Equal(t, 25.0, destBalance)

	memoData, err := st.GetMemo(ctx, "DUP1")
	require.NoError(t, err)
	assert.Equal(t, "data", memoData.MemoData)
}

func TestProcessTransaction_SelfTransferNetsZero(t *testing.T) {
	ctx := context.Background()
	sut, st := newTestProcessor(t)

	tx := makeTx(t, txOptions{
		hash:        "SELF1",
		account:     "rSame",
		destination: "rSame",
		result:      TxResultSuccess,
		amount:      "42",
		closeTime:   "2025-01-20T10:00:00",
		memos:       []map[string]any{hexMemo("t", "f", "d")},
	})

	require.NoError(t, sut.ProcessTransaction(ctx, tx))

	balance, err := st.GetBalance(ctx, "rSame")
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance)

	// Both row operations applied; the holder row exists.
	holder, err := st.GetHolder(ctx, "rSame")
	require.NoError(t, err)
	assert.Equal(t, "SELF1", holder.LastTxHash)
}

func TestProcessTransaction_ZeroAmountLeavesNoFootprint(t *testing.T) {
	ctx := context.Background()
	sut, st := newTestProcessor(t)

	tx := makeTx(t, txOptions{
		hash:        "ZERO1",
		account:     "rSender",
		destination: "rDest",
		result:      TxResultSuccess,
		amount:      "0",
		closeTime:   "2025-01-20T10:00:00",
		memos:       []map[string]any{hexMemo("t", "f", "d")},
	})

	require.NoError(t, sut.ProcessTransaction(ctx, tx))

	_, err := st.GetHolder(ctx, "rSender")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetHolder(ctx, "rDest")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProcessTransaction_FailedResultNoBalance(t *testing.T) {
	ctx := context.Background()
	sut, st := newTestProcessor(t)

	tx := makeTx(t, txOptions{
		hash:        "FAIL1",
		account:     "rSender",
		destination: "rDest",
		result:      "tecUNFUNDED_PAYMENT",
		amount:      "10",
		closeTime:   "2025-01-20T10:00:00",
		memos:       []map[string]any{hexMemo("t", "f", "d")},
	})

	require.NoError(t, sut.ProcessTransaction(ctx, tx))

	// Memo materializes regardless of the result code.
	memoData, err := st.GetMemo(ctx, "FAIL1")
	require.NoError(t, err)
	assert.Equal(t, "tecUNFUNDED_PAYMENT", memoData.TransactionResult)

	balance, err := st.GetBalance(ctx, "rSender")
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance)
}

// A transaction whose result flips to success after its memo was first
// materialized gets its memo fields refreshed but never its balance effect.
// This reproduces the source system's first-insertion-only balance trigger.
func TestProcessTransaction_ResultFlipDoesNotReapplyBalance(t *testing.T) {
	ctx := context.Background()
	sut, st := newTestProcessor(t)

	pending := makeTx(t, txOptions{
		hash:        "FLIP1",
		account:     "rSender",
		destination: "rDest",
		result:      "tecPATH_DRY",
		amount:      "10",
		closeTime:   "2025-01-20T10:00:00",
		memos:       []map[string]any{hexMemo("t", "f", "d")},
	})
	require.NoError(t, sut.ProcessTransaction(ctx, pending))

	succeeded := makeTx(t, txOptions{
		hash:        "FLIP1",
		account:     "rSender",
		destination: "rDest",
		result:      TxResultSuccess,
		amount:      "10",
		closeTime:   "2025-01-20T10:00:00",
		memos:       []map[string]any{hexMemo("t", "f", "d")},
	})
	require.NoError(t, sut.ProcessTransaction(ctx, succeeded))

	memoData, err := st.GetMemo(ctx, "FLIP1")
	require.NoError(t, err)
	assert.Equal(t, TxResultSuccess, memoData.TransactionResult)

	balance, err := st.GetBalance(ctx, "rSender")
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance)
}

func TestProcessTransaction_NoMemosNoMaterialization(t *testing.T) {
	ctx := context.Background()
	sut, st := newTestProcessor(t)

	tx := makeTx(t, txOptions{
		hash:        "PLAIN1",
		account:     "rSender",
		destination: "rDest",
		result:      TxResultSuccess,
		amount:      "10",
		closeTime:   "2025-01-20T10:00:00",
	})

	require.NoError(t, sut.ProcessTransaction(ctx, tx))

	_, err := st.GetMemo(ctx, "PLAIN1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.GetTransaction(ctx, "PLAIN1")
	require.NoError(t, err)
}

// A redelivery that lost its memos does not retract the earlier
// materialized memo.
func TestProcessTransaction_MemolessRedeliveryKeepsMemo(t *testing.T) {
	ctx := context.Background()
	sut, st := newTestProcessor(t)

	withMemo := makeTx(t, txOptions{
		hash:        "KEEP1",
		account:     "rSender",
		destination: "rDest",
		result:      TxResultSuccess,
		amount:      "5",
		closeTime:   "2025-01-20T10:00:00",
		memos:       []map[string]any{hexMemo("t", "f", "d")},
	})
	require.NoError(t, sut.ProcessTransaction(ctx, withMemo))

	withoutMemo := makeTx(t, txOptions{
		hash:        "KEEP1",
		account:     "rSender",
		destination: "rDest",
		result:      TxResultSuccess,
		amount:      "5",
		closeTime:   "2025-01-20T10:00:00",
	})
	require.NoError(t, sut.ProcessTransaction(ctx, withoutMemo))

	memoData, err := st.GetMemo(ctx, "KEEP1")
	require.NoError(t, err)
	assert.Equal(t, "d", memoData.MemoData)
}

func TestProcessTransaction_DecodeFailureKeepsRawTransaction(t *testing.T) {
	ctx := context.Background()
	sut, st := newTestProcessor(t)

	tx := makeTx(t, txOptions{
		hash:        "BAD1",
		account:     "rSender",
		destination: "rDest",
		result:      TxResultSuccess,
		amount:      "10",
		closeTime:   "2025-01-20T10:00:00",
		memos:       []map[string]any{{"MemoType": "definitely not hex"}},
	})

	err := sut.ProcessTransaction(ctx, tx)
	assert.ErrorIs(t, err, ErrInvalidMemo)

	_, err = st.GetTransaction(ctx, "BAD1")
	require.NoError(t, err)

	_, err = st.GetMemo(ctx, "BAD1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	balance, err := st.GetBalance(ctx, "rSender")
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance)
}

// Purge cascades the memo row but leaves applied balance deltas in place;
// there is no reversal path short of reprocessing history.
func TestPurgeTransaction_NoBalanceReversal(t *testing.T) {
	ctx := context.Background()
	sut, st := newTestProcessor(t)

	tx := makeTx(t, txOptions{
		hash:        "PURGE1",
		account:     "rSender",
		destination: "rDest",
		result:      TxResultSuccess,
		amount:      "7",
		closeTime:   "2025-01-20T10:00:00",
		memos:       []map[string]any{hexMemo("t", "f", "d")},
	})
	require.NoError(t, sut.ProcessTransaction(ctx, tx))
	require.NoError(t, sut.RecordReview(ctx, &store.ReviewData{Hash: "PURGE1", Processed: true, RuleName: "memo_match"}))

	require.NoError(t, sut.PurgeTransaction(ctx, "PURGE1"))

	_, err := st.GetTransaction(ctx, "PURGE1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetMemo(ctx, "PURGE1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The review record is not part of the cascade.
	review, err := st.GetReview(ctx, "PURGE1")
	require.NoError(t, err)
	assert.Equal(t, "memo_match", review.RuleName)

	balance, err := st.GetBalance(ctx, "rDest")
	require.NoError(t, err)
	assert.Equal(t, 7.0, balance)
}

func TestProcessTransaction_BalanceInvariant(t *testing.T) {
	ctx := context.Background()
	sut, st := newTestProcessor(t)

	transfers := []struct {
		hash   string
		from   string
		to     string
		amount string
		result string
	}{
		{"T1", "rAlice", "rBob", "10", TxResultSuccess},
		{"T2", "rBob", "rCarol", "4", TxResultSuccess},
		{"T3", "rCarol", "rAlice", "1", TxResultSuccess},
		{"T4", "rAlice", "rCarol", "100", "tecUNFUNDED_PAYMENT"},
		{"T5", "rBob", "rAlice", "2", TxResultSuccess},
	}

	for i, transfer := range transfers {
		tx := makeTx(t, txOptions{
			hash:        transfer.hash,
			account:     transfer.from,
			destination: transfer.to,
			result:      transfer.result,
			amount:      transfer.amount,
			closeTime:   "2025-01-20T10:00:00",
			memos:       []map[string]any{hexMemo("t", "f", "d")},
		})
		require.NoError(t, sut.ProcessTransaction(ctx, tx), "transfer %d", i)
	}

	// rAlice: -10 +1 +2 = -7; rBob: +10 -4 -2 = 4; rCarol: +4 -1 = 3
	for account, expected := range map[string]float64{
		"rAlice": -7,
		"rBob":   4,
		"rCarol": 3,
	} {
		balance, err := st.GetBalance(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, expected, balance, "account %s", account)
	}
}

func TestProcessTransaction_UnknownAccountBalanceDefaultsToZero(t *testing.T) {
	ctx := context.Background()
	_, st := newTestProcessor(t)

	balance, err := st.GetBalance(ctx, "rNeverSeen")
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance)
}

func TestRecordReview(t *testing.T) {
	ctx := context.Background()
	sut, st := newTestProcessor(t)

	review := &store.ReviewData{
		Hash:           "REV1",
		Processed:      true,
		RuleName:       "memo_match",
		ResponseTxHash: "RESP1",
		Notes:          "auto-matched",
	}
	require.NoError(t, sut.RecordReview(ctx, review))

	stored, err := st.GetReview(ctx, "REV1")
	require.NoError(t, err)
	assert.True(t, stored.Processed)
	assert.Equal(t, "memo_match", stored.RuleName)
	assert.False(t, stored.ReviewedAt.IsZero())

	// Upsert: a second write overwrites.
	review.Notes = "revised"
	require.NoError(t, sut.RecordReview(ctx, review))
	stored, err = st.GetReview(ctx, "REV1")
	require.NoError(t, err)
	assert.Equal(t, "revised", stored.Notes)
}

func TestProcessTransaction_StoreErrorPropagates(t *testing.T) {
	ctx := context.Background()
	failing := &failingStore{MemoryStore: memorystore.New()}
	sut := NewProcessor(failing, discardLogger())

	tx := makeTx(t, txOptions{
		hash:        "ERR1",
		account:     "rSender",
		destination: "rDest",
		result:      TxResultSuccess,
		amount:      "10",
		closeTime:   "2025-01-20T10:00:00",
		memos:       []map[string]any{hexMemo("t", "f", "d")},
	})

	err := sut.ProcessTransaction(ctx, tx)
	assert.ErrorIs(t, err, errApplyFailed)
}

var errApplyFailed = errors.New("apply failed")

type failingStore struct {
	*memorystore.MemoryStore
}

func (f *failingStore) ApplyTransfer(_ context.Context, _ *store.TransferDelta) error {
	return errApplyFailed
}
