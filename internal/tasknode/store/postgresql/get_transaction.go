package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

func (p *PostgreSQL) GetTransaction(ctx context.Context, hash string) (*store.TransactionData, error) {
	q := `
		SELECT
		 hash
		,ledger_index
		,close_time_iso
		,meta
		,tx_json
		,validated
		FROM postfiat_tx_cache WHERE hash = $1;
	`

	data := &store.TransactionData{}

	var ledgerIndex sql.NullInt64
	var closeTimeISO sql.NullString
	var meta sql.NullString
	var txJSON sql.NullString
	var validated sql.NullBool

	err := p.db.QueryRowContext(ctx, q, hash).Scan(
		&data.Hash,
		&ledgerIndex,
		&closeTimeISO,
		&meta,
		&txJSON,
		&validated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if ledgerIndex.Valid {
		data.LedgerIndex = ledgerIndex.Int64
	}
	if closeTimeISO.Valid {
		data.CloseTimeISO = closeTimeISO.String
	}
	if meta.Valid {
		data.Meta = json.RawMessage(meta.String)
	}
	if txJSON.Valid {
		data.TxJSON = json.RawMessage(txJSON.String)
	}
	if validated.Valid {
		data.Validated = validated.Bool
	}

	return data, nil
}
