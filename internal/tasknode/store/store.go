package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("key could not be found")
	ErrFailedToOpenDB   = errors.New("failed to open DB")
	ErrUnknownDBMode    = errors.New("unknown db mode")
	ErrTransferConflict = errors.New("balance update lost a conflict with a concurrent transfer")
)

// TransactionData is one raw ledger transaction as delivered by the listener.
// Meta and TxJSON hold the transaction's execution-result and body payloads
// as opaque JSON.
type TransactionData struct {
	Hash         string
	LedgerIndex  int64
	CloseTimeISO string
	Meta         json.RawMessage
	TxJSON       json.RawMessage
	Validated    bool
}

// MemoData is the materialized first memo of a transaction, keyed 1:1 with
// the raw transaction. PFTAmount and XRPFee are nil when zero or absent.
type MemoData struct {
	Hash              string
	Account           string
	Destination       string
	PFTAmount         *float64
	XRPFee            *float64
	MemoFormat        string
	MemoType          string
	MemoData          string
	Timestamp         time.Time
	TransactionResult string
}

// HolderData is one account's running PFT balance.
type HolderData struct {
	Account     string
	Balance     float64
	LastUpdated time.Time
	LastTxHash  string
}

// TransferDelta is one successful transfer to fold into the balance ledger.
// An empty Account or Destination means that side of the transfer is absent
// and must be skipped.
type TransferDelta struct {
	Account     string
	Destination string
	Amount      float64
	Timestamp   time.Time
	Hash        string
}

type ReviewData struct {
	Hash           string
	Processed      bool
	RuleName       string
	ResponseTxHash string
	Notes          string
	ReviewedAt     time.Time
}

// EnrichedReview joins a review record with the reviewed transaction's memo.
// Memo is nil when the transaction never materialized one.
type EnrichedReview struct {
	Review ReviewData
	Memo   *MemoData
}

type AuthorizedAddress struct {
	Address          string
	IsAuthorized     bool
	AuthorizedAt     time.Time
	DeauthorizedAt   *time.Time
	AuthSource       string
	AuthSourceUserID string
	FlagType         string
	FlagExpiresAt    *time.Time
}

// MemoFilter narrows ListMemos. Zero-valued fields do not filter. MemoFormat
// distinguishes nil (any) from a pointer to a value, including the empty
// string, because materialized memo fields default to "". MemoDataLike is a
// SQL LIKE pattern over memo_data; it participates in row selection before
// Limit is applied.
type MemoFilter struct {
	Account           string
	Destination       string
	MemoType          string
	MemoFormat        *string
	MemoDataLike      *string
	TransactionResult string
	After             *time.Time
	From              *time.Time
	To                *time.Time
	Limit             int
}

// TasknodeStore is the durable state behind the transaction core. Every
// method is one atomic unit; ApplyTransfer in particular must apply both the
// sender and destination row operations inside a single transaction, and
// concurrent transfers touching the same account must serialize.
//
// ListMemos returns rows ordered by ascending timestamp, ties broken by
// hash, so callers relying on first-response-wins get a stable order.
type TasknodeStore interface {
	UpsertTransaction(ctx context.Context, tx *TransactionData) error
	GetTransaction(ctx context.Context, hash string) (*TransactionData, error)
	// DeleteTransaction is the administrative purge. It cascades to the
	// materialized memo but never reverses balance deltas already applied.
	DeleteTransaction(ctx context.Context, hash string) error

	// UpsertMemo reports whether the memo row was newly inserted as opposed
	// to overwritten, which the balance ledger keys off.
	UpsertMemo(ctx context.Context, memo *MemoData) (inserted bool, err error)
	GetMemo(ctx context.Context, hash string) (*MemoData, error)
	ListMemos(ctx context.Context, filter MemoFilter) ([]*MemoData, error)

	GetBalance(ctx context.Context, account string) (float64, error)
	GetHolder(ctx context.Context, account string) (*HolderData, error)
	ApplyTransfer(ctx context.Context, transfer *TransferDelta) error

	UpsertReview(ctx context.Context, review *ReviewData) error
	GetReview(ctx context.Context, hash string) (*ReviewData, error)
	ListEnrichedReviews(ctx context.Context, limit int) ([]*EnrichedReview, error)

	UpsertAuthorization(ctx context.Context, address *AuthorizedAddress) error
	GetAuthorization(ctx context.Context, address string) (*AuthorizedAddress, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
