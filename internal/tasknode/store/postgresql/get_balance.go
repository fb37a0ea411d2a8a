package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

// GetBalance returns an account's current PFT balance, 0 for accounts that
// never appeared in a transfer.
func (p *PostgreSQL) GetBalance(ctx context.Context, account string) (float64, error) {
	q := `SELECT balance FROM pft_holders WHERE account = $1;`

	var balance float64
	err := p.db.QueryRowContext(ctx, q, account).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}

	return balance, nil
}

func (p *PostgreSQL) GetHolder(ctx context.Context, account string) (*store.HolderData, error) {
	q := `
		SELECT
		 account
		,balance
		,last_updated
		,last_tx_hash
		FROM pft_holders WHERE account = $1;
	`

	holder := &store.HolderData{}
	var lastUpdated sql.NullTime
	var lastTxHash sql.NullString

	err := p.db.QueryRowContext(ctx, q, account).Scan(
		&holder.Account,
		&holder.Balance,
		&lastUpdated,
		&lastTxHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if lastUpdated.Valid {
		holder.LastUpdated = lastUpdated.Time.UTC()
	}
	if lastTxHash.Valid {
		holder.LastTxHash = lastTxHash.String
	}

	return holder, nil
}
