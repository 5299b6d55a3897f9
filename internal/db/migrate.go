package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/4xmen/peyvand/internal/db/migrations"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) goose() (goose.Dialect, error) {
	switch d {
	case DialectPostgres:
		return goose.DialectPostgres, nil
	case DialectSQLite:
		return goose.DialectSQLite3, nil
	}
	return "", fmt.Errorf("unknown dialect %q", d)
}

func provider(conn *sql.DB, d Dialect) (*goose.Provider, error) {
	gd, err := d.goose()
	if err != nil {
		return nil, err
	}
	fsys, err := fs.Sub(migrations.FS, string(d))
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(gd, conn, fsys)
}

// Migrate runs all pending migrations for dialect d.
func Migrate(ctx context.Context, conn *sql.DB, d Dialect) error {
	p, err := provider(conn, d)
	if err != nil {
		return err
	}
	_, err = p.Up(ctx)
	return err
}

// Version reports the latest applied migration version.
func Version(ctx context.Context, conn *sql.DB, d Dialect) (int64, error) {
	p, err := provider(conn, d)
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}
