package postgresql

import (
	"context"
	"fmt"
	"strings"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

// ListMemos scans materialized memos with optional predicates, ordered by
// ascending timestamp with hash as the tie break.
func (p *PostgreSQL) ListMemos(ctx context.Context, filter store.MemoFilter) ([]*store.MemoData, error) {
	var predicates []string
	var args []any

	addPredicate := func(condition string, value any) {
		args = append(args, value)
		predicates = append(predicates, fmt.Sprintf(condition, len(args)))
	}

	if filter.Account != "" {
		addPredicate("account = $%d", filter.Account)
	}
	if filter.Destination != "" {
		addPredicate("destination = $%d", filter.Destination)
	}
	if filter.MemoType != "" {
		addPredicate("memo_type = $%d", filter.MemoType)
	}
	if filter.MemoFormat != nil {
		addPredicate("memo_format = $%d", *filter.MemoFormat)
	}
	if filter.MemoDataLike != nil {
		addPredicate("memo_data LIKE $%d", *filter.MemoDataLike)
	}
	if filter.TransactionResult != "" {
		addPredicate("transaction_result = $%d", filter.TransactionResult)
	}
	if filter.After != nil {
		addPredicate("datetime > $%d", *filter.After)
	}
	if filter.From != nil {
		addPredicate("datetime >= $%d", *filter.From)
	}
	if filter.To != nil {
		addPredicate("datetime <= $%d", *filter.To)
	}

	q := `SELECT` + memoColumns + `
		FROM transaction_memos`
	if len(predicates) > 0 {
		q += "\n\t\tWHERE " + strings.Join(predicates, " AND ")
	}
	q += "\n\t\tORDER BY datetime ASC, hash ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf("\n\t\tLIMIT $%d", len(args))
	}
	q += ";"

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memos []*store.MemoData
	for rows.Next() {
		var row memoRow
		if err = rows.Scan(row.scanArgs()...); err != nil {
			return nil, err
		}
		memos = append(memos, row.toMemoData())
	}

	return memos, rows.Err()
}
