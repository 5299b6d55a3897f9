package sqlstore

import (
	"context"
	"database/sql"

	"github.com/4xmen/peyvand/internal/store"
)

// NewSQLite returns a store backed by db, which must already carry the
// schema from the sqlite migrations. Closing the store closes db.
func NewSQLite(db *sql.DB) *Store {
	return &Store{dialect: SQLite, exec: sqlExecutor{db: db}}
}

type sqlExecutor struct {
	db *sql.DB
}

func (e sqlExecutor) query(ctx context.Context, t *Table, q Query) ([]store.Document, error) {
	rows, err := e.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]any, len(t.Columns))
	ptrs := make([]any, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var docs []store.Document
	for rows.Next() {
		clear(values)
		if err := rows.Scan(ptrs...); err != nil {
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

func (e sqlExecutor) exec(ctx context.Context, q Query) (int64, error) {
	res, err := e.db.ExecContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (e sqlExecutor) close() error {
	return e.db.Close()
}
