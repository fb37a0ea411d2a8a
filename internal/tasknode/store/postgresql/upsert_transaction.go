package postgresql

import (
	"context"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

// UpsertTransaction writes a raw transaction, last-write-wins on all
// non-key fields when the listener redelivers a hash.
func (p *PostgreSQL) UpsertTransaction(ctx context.Context, tx *store.TransactionData) error {
	q := `
		INSERT INTO postfiat_tx_cache (hash, ledger_index, close_time_iso, meta, tx_json, validated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO UPDATE SET
			 ledger_index = EXCLUDED.ledger_index
			,close_time_iso = EXCLUDED.close_time_iso
			,meta = EXCLUDED.meta
			,tx_json = EXCLUDED.tx_json
			,validated = EXCLUDED.validated;
	`

	_, err := p.db.ExecContext(ctx, q,
		tx.Hash,
		tx.LedgerIndex,
		tx.CloseTimeISO,
		string(tx.Meta),
		string(tx.TxJSON),
		tx.Validated,
	)
	return err
}
