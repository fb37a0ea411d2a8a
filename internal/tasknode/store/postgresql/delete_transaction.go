package postgresql

import (
	"context"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

// DeleteTransaction is the administrative purge. The memo row goes with it
// via ON DELETE CASCADE; balance deltas already applied stay in place.
func (p *PostgreSQL) DeleteTransaction(ctx context.Context, hash string) error {
	q := `DELETE FROM postfiat_tx_cache WHERE hash = $1;`

	res, err := p.db.ExecContext(ctx, q, hash)
	if err != nil {
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return store.ErrNotFound
	}

	return nil
}
