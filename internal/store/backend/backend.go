// Package backend picks the document store implementation from configuration.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/4xmen/peyvand/internal/db"
	"github.com/4xmen/peyvand/internal/store"
	"github.com/4xmen/peyvand/internal/store/memory"
	"github.com/4xmen/peyvand/internal/store/mongostore"
	"github.com/4xmen/peyvand/internal/store/sqlstore"
	"github.com/4xmen/peyvand/pkg/config"
)

type opener struct {
	name string
	set  func(*config.Config) bool
	open func(context.Context, *config.Config, *zap.Logger) (store.Store, error)
}

var openers = []opener{
	{"postgres", func(c *config.Config) bool { return c.DatabaseURL != "" }, openPostgres},
	{"sqlite", func(c *config.Config) bool { return c.DatabasePath != "" }, openSQLite},
	{"mongo", func(c *config.Config) bool { return c.MongoURL != "" }, openMongo},
}

// Open tries each configured backend in priority order, relational first,
// and falls back to the in-memory store when none can be reached. Startup
// never fails because a backend is down.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) store.Store {
	for _, o := range openers {
		if !o.set(cfg) {
			continue
		}
		octx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		s, err := o.open(octx, cfg, logger)
		cancel()
		if err != nil {
			logger.Warn("store backend unavailable, trying next",
				zap.String("backend", o.name), zap.Error(err))
			continue
		}
		logger.Info("store backend selected", zap.String("backend", s.Backend()))
		return s
	}
	logger.Warn("no persistent store reachable, messages will not survive a restart",
		zap.String("backend", "memory"))
	return memory.New()
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if err := db.MigratePostgres(ctx, cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	pool, err := db.OpenPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	return sqlstore.NewPostgres(pool), nil
}

func openSQLite(ctx context.Context, cfg *config.Config, _ *zap.Logger) (store.Store, error) {
	conn, err := db.OpenSQLite(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return sqlstore.NewSQLite(conn), nil
}

func openMongo(ctx context.Context, cfg *config.Config, _ *zap.Logger) (store.Store, error) {
	return mongostore.Connect(ctx, cfg.MongoURL, cfg.DBName)
}
