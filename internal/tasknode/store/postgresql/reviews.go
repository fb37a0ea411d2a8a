package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

func (p *PostgreSQL) UpsertReview(ctx context.Context, review *store.ReviewData) error {
	q := `
		INSERT INTO transaction_processing_results (hash, processed, rule_name, response_tx_hash, notes, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO UPDATE SET
			 processed = EXCLUDED.processed
			,rule_name = EXCLUDED.rule_name
			,response_tx_hash = EXCLUDED.response_tx_hash
			,notes = EXCLUDED.notes
			,reviewed_at = EXCLUDED.reviewed_at;
	`

	_, err := p.db.ExecContext(ctx, q,
		review.Hash,
		review.Processed,
		nullString(review.RuleName),
		nullString(review.ResponseTxHash),
		nullString(review.Notes),
		nullTime(review.ReviewedAt),
	)
	return err
}

func (p *PostgreSQL) GetReview(ctx context.Context, hash string) (*store.ReviewData, error) {
	q := `
		SELECT
		 hash
		,processed
		,rule_name
		,response_tx_hash
		,notes
		,reviewed_at
		FROM transaction_processing_results WHERE hash = $1;
	`

	row := p.db.QueryRowContext(ctx, q, hash)

	review, err := scanReview(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	return review, nil
}

// ListEnrichedReviews is the enriched-review projection: review records
// joined with the reviewed transaction's memo, computed at query time.
func (p *PostgreSQL) ListEnrichedReviews(ctx context.Context, limit int) ([]*store.EnrichedReview, error) {
	q := `
		SELECT
		 r.hash
		,r.processed
		,r.rule_name
		,r.response_tx_hash
		,r.notes
		,r.reviewed_at
		,m.hash
		,m.account
		,m.destination
		,m.pft_amount
		,m.xrp_fee
		,COALESCE(m.memo_format, '')
		,COALESCE(m.memo_type, '')
		,COALESCE(m.memo_data, '')
		,m.datetime
		,m.transaction_result
		FROM transaction_processing_results r
		LEFT JOIN transaction_memos m ON r.hash = m.hash
		ORDER BY r.reviewed_at ASC, r.hash ASC
	`
	var args []any
	if limit > 0 {
		q += " LIMIT $1"
		args = append(args, limit)
	}
	q += ";"

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*store.EnrichedReview
	for rows.Next() {
		var review store.ReviewData
		var ruleName, responseTxHash, notes sql.NullString
		var reviewedAt sql.NullTime

		var memoHash sql.NullString
		var m memoRow

		err = rows.Scan(
			&review.Hash,
			&review.Processed,
			&ruleName,
			&responseTxHash,
			&notes,
			&reviewedAt,
			&memoHash,
			&m.account,
			&m.destination,
			&m.pftAmount,
			&m.xrpFee,
			&m.memoFormat,
			&m.memoType,
			&m.memoData,
			&m.datetime,
			&m.transactionResult,
		)
		if err != nil {
			return nil, err
		}

		review.RuleName = ruleName.String
		review.ResponseTxHash = responseTxHash.String
		review.Notes = notes.String
		if reviewedAt.Valid {
			review.ReviewedAt = reviewedAt.Time.UTC()
		}

		enriched := &store.EnrichedReview{Review: review}
		if memoHash.Valid {
			m.hash = memoHash.String
			enriched.Memo = m.toMemoData()
		}
		result = append(result, enriched)
	}

	return result, rows.Err()
}

func scanReview(row *sql.Row) (*store.ReviewData, error) {
	review := &store.ReviewData{}
	var ruleName, responseTxHash, notes sql.NullString
	var reviewedAt sql.NullTime

	err := row.Scan(
		&review.Hash,
		&review.Processed,
		&ruleName,
		&responseTxHash,
		&notes,
		&reviewedAt,
	)
	if err != nil {
		return nil, err
	}

	review.RuleName = ruleName.String
	review.ResponseTxHash = responseTxHash.String
	review.Notes = notes.String
	if reviewedAt.Valid {
		review.ReviewedAt = reviewedAt.Time.UTC()
	}

	return review, nil
}
