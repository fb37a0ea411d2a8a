package postgresql

import (
	"context"
	"database/sql"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

// UpsertMemo writes a materialized memo and reports whether the row was
// newly created. The RETURNING (xmax = 0) clause is true only for rows
// created by this statement, which keeps insert-vs-update detection atomic
// under concurrent duplicate deliveries of the same hash.
func (p *PostgreSQL) UpsertMemo(ctx context.Context, memo *store.MemoData) (bool, error) {
	q := `
		INSERT INTO transaction_memos (
			 hash
			,account
			,destination
			,pft_amount
			,xrp_fee
			,memo_format
			,memo_type
			,memo_data
			,datetime
			,transaction_result
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (hash) DO UPDATE SET
			 account = EXCLUDED.account
			,destination = EXCLUDED.destination
			,pft_amount = EXCLUDED.pft_amount
			,xrp_fee = EXCLUDED.xrp_fee
			,memo_format = EXCLUDED.memo_format
			,memo_type = EXCLUDED.memo_type
			,memo_data = EXCLUDED.memo_data
			,datetime = EXCLUDED.datetime
			,transaction_result = EXCLUDED.transaction_result
		RETURNING (xmax = 0);
	`

	var inserted bool
	err := p.db.QueryRowContext(ctx, q,
		memo.Hash,
		nullString(memo.Account),
		nullString(memo.Destination),
		nullFloat(memo.PFTAmount),
		nullFloat(memo.XRPFee),
		memo.MemoFormat,
		memo.MemoType,
		memo.MemoData,
		nullTime(memo.Timestamp),
		nullString(memo.TransactionResult),
	).Scan(&inserted)
	if err != nil {
		return false, err
	}

	return inserted, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
