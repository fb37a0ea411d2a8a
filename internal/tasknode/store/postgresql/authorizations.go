package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

func (p *PostgreSQL) UpsertAuthorization(ctx context.Context, address *store.AuthorizedAddress) error {
	q := `
		INSERT INTO authorized_addresses (
			 address
			,is_authorized
			,authorized_at
			,deauthorized_at
			,auth_source
			,auth_source_user_id
			,flag_type
			,flag_expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (address) DO UPDATE SET
			 is_authorized = EXCLUDED.is_authorized
			,authorized_at = EXCLUDED.authorized_at
			,deauthorized_at = EXCLUDED.deauthorized_at
			,auth_source = EXCLUDED.auth_source
			,auth_source_user_id = EXCLUDED.auth_source_user_id
			,flag_type = EXCLUDED.flag_type
			,flag_expires_at = EXCLUDED.flag_expires_at;
	`

	_, err := p.db.ExecContext(ctx, q,
		address.Address,
		address.IsAuthorized,
		nullTime(address.AuthorizedAt),
		nullTimePtr(address.DeauthorizedAt),
		nullString(address.AuthSource),
		nullString(address.AuthSourceUserID),
		nullString(address.FlagType),
		nullTimePtr(address.FlagExpiresAt),
	)
	return err
}

func (p *PostgreSQL) GetAuthorization(ctx context.Context, address string) (*store.AuthorizedAddress, error) {
	q := `
		SELECT
		 address
		,is_authorized
		,authorized_at
		,deauthorized_at
		,auth_source
		,auth_source_user_id
		,flag_type
		,flag_expires_at
		FROM authorized_addresses WHERE address = $1;
	`

	auth := &store.AuthorizedAddress{}
	var authorizedAt, deauthorizedAt, flagExpiresAt sql.NullTime
	var authSource, authSourceUserID, flagType sql.NullString

	err := p.db.QueryRowContext(ctx, q, address).Scan(
		&auth.Address,
		&auth.IsAuthorized,
		&authorizedAt,
		&deauthorizedAt,
		&authSource,
		&authSourceUserID,
		&flagType,
		&flagExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if authorizedAt.Valid {
		auth.AuthorizedAt = authorizedAt.Time.UTC()
	}
	if deauthorizedAt.Valid {
		t := deauthorizedAt.Time.UTC()
		auth.DeauthorizedAt = &t
	}
	auth.AuthSource = authSource.String
	auth.AuthSourceUserID = authSourceUserID.String
	auth.FlagType = flagType.String
	if flagExpiresAt.Valid {
		t := flagExpiresAt.Time.UTC()
		auth.FlagExpiresAt = &t
	}

	return auth, nil
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
