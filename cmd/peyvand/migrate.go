package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/4xmen/peyvand/internal/db"
	"github.com/4xmen/peyvand/pkg/config"
)

type migrateOptions struct {
	Dialect db.Dialect
	DSN     string
}

func parseMigrateArgs(cfg *config.Config, args []string) (migrateOptions, error) {
	if len(args) > 0 {
		return migrateOptions{}, fmt.Errorf("unknown migrate argument: %s", args[0])
	}
	switch {
	case cfg.DatabaseURL != "":
		return migrateOptions{Dialect: db.DialectPostgres, DSN: cfg.DatabaseURL}, nil
	case cfg.DatabasePath != "":
		return migrateOptions{Dialect: db.DialectSQLite, DSN: cfg.DatabasePath}, nil
	}
	return migrateOptions{}, fmt.Errorf("no relational database configured (set DATABASE_URL or DATABASE_PATH)")
}

func runMigrate(cfg *config.Config, out io.Writer, args []string) error {
	opts, err := parseMigrateArgs(cfg, args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var conn *sql.DB
	switch opts.Dialect {
	case db.DialectPostgres:
		if err := db.MigratePostgres(ctx, opts.DSN); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		if conn, err = sql.Open("pgx", opts.DSN); err != nil {
			return err
		}
	case db.DialectSQLite:
		// OpenSQLite applies pending migrations itself
		if conn, err = db.OpenSQLite(ctx, opts.DSN); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	defer conn.Close()

	version, err := db.Version(ctx, conn, opts.Dialect)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	fmt.Fprintf(out, "%s schema at version %d\n", opts.Dialect, version)
	return nil
}
