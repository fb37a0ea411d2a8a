package postgresql

import (
	"database/sql"
	"time"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

type memoRow struct {
	hash              string
	account           sql.NullString
	destination       sql.NullString
	pftAmount         sql.NullFloat64
	xrpFee            sql.NullFloat64
	memoFormat        string
	memoType          string
	memoData          string
	datetime          sql.NullTime
	transactionResult sql.NullString
}

func (r *memoRow) scanArgs() []any {
	return []any{
		&r.hash,
		&r.account,
		&r.destination,
		&r.pftAmount,
		&r.xrpFee,
		&r.memoFormat,
		&r.memoType,
		&r.memoData,
		&r.datetime,
		&r.transactionResult,
	}
}

func (r *memoRow) toMemoData() *store.MemoData {
	memo := &store.MemoData{
		Hash:       r.hash,
		MemoFormat: r.memoFormat,
		MemoType:   r.memoType,
		MemoData:   r.memoData,
	}
	if r.account.Valid {
		memo.Account = r.account.String
	}
	if r.destination.Valid {
		memo.Destination = r.destination.String
	}
	if r.pftAmount.Valid {
		amount := r.pftAmount.Float64
		memo.PFTAmount = &amount
	}
	if r.xrpFee.Valid {
		fee := r.xrpFee.Float64
		memo.XRPFee = &fee
	}
	if r.datetime.Valid {
		memo.Timestamp = r.datetime.Time.UTC()
	}
	if r.transactionResult.Valid {
		memo.TransactionResult = r.transactionResult.String
	}
	return memo
}

const memoColumns = `
		 hash
		,account
		,destination
		,pft_amount
		,xrp_fee
		,memo_format
		,memo_type
		,memo_data
		,datetime
		,transaction_result`
