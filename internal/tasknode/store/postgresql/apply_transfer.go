package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

const transferMaxRetries = 5

// ApplyTransfer folds one successful transfer into pft_holders. Both the
// sender debit and the destination credit run in a single transaction:
// either both balance rows move or neither does. Each side is a single
// relative upsert, so a self-transfer touches the same row twice and nets
// to zero. Serialization and deadlock failures (opposite lock ordering
// between two concurrent transfers) are retried with capped exponential
// backoff before surfacing as a conflict.
func (p *PostgreSQL) ApplyTransfer(ctx context.Context, transfer *store.TransferDelta) error {
	operation := func() error {
		err := p.applyTransferOnce(ctx, transfer)
		if err != nil && !isSerializationFailure(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), transferMaxRetries), ctx)

	err := backoff.Retry(operation, policy)
	if err != nil && isSerializationFailure(err) {
		return errors.Join(store.ErrTransferConflict, err)
	}
	return err
}

func (p *PostgreSQL) applyTransferOnce(ctx context.Context, transfer *store.TransferDelta) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint: errcheck

	if transfer.Account != "" {
		if err = applyDelta(ctx, tx, transfer.Account, -transfer.Amount, transfer); err != nil {
			return err
		}
	}
	if transfer.Destination != "" {
		if err = applyDelta(ctx, tx, transfer.Destination, transfer.Amount, transfer); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// applyDelta moves one holder row by delta in a single statement. The
// balance update is relative to the stored row, never to a value read
// earlier in the transaction: a concurrent transfer that creates or moves
// the row between our statements cannot be overwritten with a stale
// absolute balance.
func applyDelta(ctx context.Context, tx *sql.Tx, account string, delta float64, transfer *store.TransferDelta) error {
	q := `
		INSERT INTO pft_holders (account, balance, last_updated, last_tx_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account) DO UPDATE SET
			 balance = pft_holders.balance + EXCLUDED.balance
			,last_updated = EXCLUDED.last_updated
			,last_tx_hash = EXCLUDED.last_tx_hash;
	`

	_, err := tx.ExecContext(ctx, q, account, delta, transfer.Timestamp, transfer.Hash)
	return err
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}
