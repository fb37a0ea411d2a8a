package tasknode

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

// ProjectedTransaction is the read-optimized view of a raw transaction
// joined with its materialized memo. It is computed on query and never
// stored, so it cannot go stale against its sources.
type ProjectedTransaction struct {
	Hash               string     `json:"hash"`
	LedgerIndex        int64      `json:"ledger_index"`
	Account            string     `json:"account"`
	Destination        string     `json:"destination"`
	Fee                string     `json:"fee"`
	Flags              float64    `json:"flags"`
	LastLedgerSequence int64      `json:"last_ledger_sequence"`
	Sequence           int64      `json:"sequence"`
	TransactionType    string     `json:"transaction_type"`
	MemoFormat         string     `json:"memo_format"`
	MemoType           string     `json:"memo_type"`
	MemoData           string     `json:"memo_data"`
	TransactionResult  string     `json:"transaction_result"`
	HasMemos           bool       `json:"has_memos"`
	Timestamp          *time.Time `json:"timestamp,omitempty"`
	DeliveredAmount    float64    `json:"delivered_amount"`
	SimpleDate         string     `json:"simple_date,omitempty"`
	Validated          bool       `json:"validated"`
}

// Project derives the projection for one raw transaction. The memo argument
// is the transaction's materialized memo and may be nil.
func Project(tx *store.TransactionData, memoData *store.MemoData) (*ProjectedTransaction, error) {
	var body transactionBody
	if err := json.Unmarshal(tx.TxJSON, &body); err != nil {
		return nil, errors.Join(ErrInvalidPayload, fmt.Errorf("hash %s: tx body: %w", tx.Hash, err))
	}

	var meta transactionMeta
	if len(tx.Meta) > 0 {
		if err := json.Unmarshal(tx.Meta, &meta); err != nil {
			return nil, errors.Join(ErrInvalidPayload, fmt.Errorf("hash %s: tx meta: %w", tx.Hash, err))
		}
	}

	projected := &ProjectedTransaction{
		Hash:               tx.Hash,
		LedgerIndex:        tx.LedgerIndex,
		Account:            body.Account,
		Destination:        body.Destination,
		Fee:                body.Fee,
		Flags:              body.Flags,
		LastLedgerSequence: body.LastLedgerSequence,
		Sequence:           body.Sequence,
		TransactionType:    body.TransactionType,
		TransactionResult:  meta.TransactionResult,
		HasMemos:           len(body.Memos) > 0,
		Validated:          tx.Validated,
	}

	if amount := parseDeliveredAmount(meta.DeliveredAmount); amount != nil {
		projected.DeliveredAmount = *amount
	}

	if memoData != nil {
		projected.MemoFormat = memoData.MemoFormat
		projected.MemoType = memoData.MemoType
		projected.MemoData = memoData.MemoData
	}

	timestamp, err := parseCloseTime(tx.CloseTimeISO)
	if err != nil {
		return nil, err
	}
	if !timestamp.IsZero() {
		projected.Timestamp = &timestamp
		projected.SimpleDate = timestamp.Format("2006-01-02")
	}

	return projected, nil
}
