package sqlstore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/4xmen/peyvand/internal/store"
)

// PgxPool is the subset of a Postgres connection pool the store uses.
// It is implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// NewPostgres returns a store backed by pool. Closing the store closes the pool.
func NewPostgres(pool PgxPool) *Store {
	return &Store{dialect: Postgres, exec: pgxExecutor{pool: pool}}
}

type pgxExecutor struct {
	pool PgxPool
}

func (e pgxExecutor) query(ctx context.Context, t *Table, q Query) ([]store.Document, error) {
	rows, err := e.pool.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		doc, err := decodeRow(t, values)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (e pgxExecutor) exec(ctx context.Context, q Query) (int64, error) {
	tag, err := e.pool.Exec(ctx, q.SQL, q.Args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (e pgxExecutor) close() error {
	e.pool.Close()
	return nil
}
