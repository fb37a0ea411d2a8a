package postgresql

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq" // nolint: revive // required for postgres driver

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

const postgresDriverName = "postgres"

type PostgreSQL struct {
	db *sql.DB
}

func New(dbInfo string, idleConns int, maxOpenConns int) (*PostgreSQL, error) {
	db, err := sql.Open(postgresDriverName, dbInfo)
	if err != nil {
		return nil, errors.Join(store.ErrFailedToOpenDB, err)
	}
	db.SetMaxIdleConns(idleConns)
	db.SetMaxOpenConns(maxOpenConns)

	return &PostgreSQL{db: db}, nil
}

func (p *PostgreSQL) Ping(ctx context.Context) error {
	_, err := p.db.QueryContext(ctx, "SELECT 1;")
	return err
}

func (p *PostgreSQL) Close(_ context.Context) error {
	return p.db.Close()
}
