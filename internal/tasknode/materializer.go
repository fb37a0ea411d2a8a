package tasknode

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/postfiatorg/tasknode/internal/memo"
	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

// TxResultSuccess is the ledger's result code for a successfully applied
// transaction. Only transactions carrying it affect balances.
const TxResultSuccess = "tesSUCCESS"

// dropsPerXRP converts the ledger-reported fee, denominated in drops.
const dropsPerXRP = 1_000_000

var (
	ErrInvalidPayload   = errors.New("transaction payload could not be parsed")
	ErrInvalidMemo      = errors.New("memo fields could not be decoded")
	ErrInvalidCloseTime = errors.New("close time could not be parsed")
)

var closeTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

type transactionBody struct {
	Account            string        `json:"Account"`
	Destination        string        `json:"Destination"`
	Fee                string        `json:"Fee"`
	Flags              float64       `json:"Flags"`
	LastLedgerSequence int64         `json:"LastLedgerSequence"`
	Sequence           int64         `json:"Sequence"`
	TransactionType    string        `json:"TransactionType"`
	Memos              []memoWrapper `json:"Memos"`
}

type memoWrapper struct {
	Memo memoFields `json:"Memo"`
}

type memoFields struct {
	MemoFormat *string `json:"MemoFormat"`
	MemoType   *string `json:"MemoType"`
	MemoData   *string `json:"MemoData"`
}

type transactionMeta struct {
	TransactionResult string          `json:"TransactionResult"`
	DeliveredAmount   json.RawMessage `json:"delivered_amount"`
}

type deliveredAmount struct {
	Value json.Number `json:"value"`
}

// BuildMemo derives the materialized memo record from a raw transaction. It
// returns nil when the transaction body carries no memo entries. Only the
// first memo entry is materialized; the rest are ignored.
func BuildMemo(tx *store.TransactionData) (*store.MemoData, error) {
	var body transactionBody
	if err := json.Unmarshal(tx.TxJSON, &body); err != nil {
		return nil, errors.Join(ErrInvalidPayload, fmt.Errorf("hash %s: tx body: %w", tx.Hash, err))
	}

	if len(body.Memos) == 0 {
		return nil, nil
	}

	var meta transactionMeta
	if len(tx.Meta) > 0 {
		if err := json.Unmarshal(tx.Meta, &meta); err != nil {
			return nil, errors.Join(ErrInvalidPayload, fmt.Errorf("hash %s: tx meta: %w", tx.Hash, err))
		}
	}

	first := body.Memos[0].Memo

	memoFormat, err := memo.Decode(first.MemoFormat)
	if err != nil {
		return nil, errors.Join(ErrInvalidMemo, err)
	}
	memoType, err := memo.Decode(first.MemoType)
	if err != nil {
		return nil, errors.Join(ErrInvalidMemo, err)
	}
	memoData, err := memo.Decode(first.MemoData)
	if err != nil {
		return nil, errors.Join(ErrInvalidMemo, err)
	}

	fee, err := parseFee(body.Fee)
	if err != nil {
		return nil, err
	}

	timestamp, err := parseCloseTime(tx.CloseTimeISO)
	if err != nil {
		return nil, err
	}

	return &store.MemoData{
		Hash:              tx.Hash,
		Account:           body.Account,
		Destination:       body.Destination,
		PFTAmount:         parseDeliveredAmount(meta.DeliveredAmount),
		XRPFee:            fee,
		MemoFormat:        memoFormat,
		MemoType:          memoType,
		MemoData:          memoData,
		Timestamp:         timestamp,
		TransactionResult: meta.TransactionResult,
	}, nil
}

// parseDeliveredAmount reads the token amount out of the metadata's
// delivered_amount object. Native-currency deliveries arrive as a plain
// string instead of an object and yield no amount, as does a zero value:
// zero-amount transfers are not tracked as transfers.
func parseDeliveredAmount(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}

	var delivered deliveredAmount
	if err := json.Unmarshal(raw, &delivered); err != nil {
		return nil
	}
	if delivered.Value == "" {
		return nil
	}

	value, err := delivered.Value.Float64()
	if err != nil || value == 0 {
		return nil
	}

	return &value
}

func parseFee(fee string) (*float64, error) {
	if fee == "" {
		return nil, nil
	}

	drops, err := strconv.ParseFloat(fee, 64)
	if err != nil {
		return nil, errors.Join(ErrInvalidPayload, fmt.Errorf("fee %q: %w", fee, err))
	}
	if drops == 0 {
		return nil, nil
	}

	xrp := drops / dropsPerXRP
	return &xrp, nil
}

func parseCloseTime(closeTime string) (time.Time, error) {
	if closeTime == "" {
		return time.Time{}, nil
	}

	var lastErr error
	for _, layout := range closeTimeLayouts {
		t, err := time.Parse(layout, closeTime)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, errors.Join(ErrInvalidCloseTime, lastErr)
}
