package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

func (p *PostgreSQL) GetMemo(ctx context.Context, hash string) (*store.MemoData, error) {
	q := `SELECT` + memoColumns + `
		FROM transaction_memos WHERE hash = $1;`

	var row memoRow
	err := p.db.QueryRowContext(ctx, q, hash).Scan(row.scanArgs()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	return row.toMemoData(), nil
}
