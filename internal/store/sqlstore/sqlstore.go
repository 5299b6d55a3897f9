// Package sqlstore implements the document store over a relational database.
// Each collection maps to a table from Catalog; filters, sorts and updates
// are translated to parameterized SQL for PostgreSQL or SQLite.
package sqlstore

import (
	"context"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/store"
)

// executor runs translated queries against one driver.
type executor interface {
	query(ctx context.Context, t *Table, q Query) ([]store.Document, error)
	exec(ctx context.Context, q Query) (int64, error)
	close() error
}

type Store struct {
	dialect Dialect
	exec    executor
}

func (s *Store) Collection(name string) store.Collection {
	t, ok := Catalog[name]
	if !ok {
		return unknownCollection(name)
	}
	return &Collection{s: s, t: t}
}

func (s *Store) Backend() string { return s.dialect.Name }

func (s *Store) Close(context.Context) error { return s.exec.close() }

type Collection struct {
	s *Store
	t *Table
}

func (c *Collection) op(name string) string {
	return c.s.dialect.Name + " " + name + " " + c.t.Name
}

func (c *Collection) FindOne(ctx context.Context, filter store.Match) (store.Document, error) {
	q, err := SelectQuery(c.s.dialect, c.t, filter, nil, 1)
	if err != nil {
		return nil, err
	}
	docs, err := c.s.exec.query(ctx, c.t, q)
	if err != nil {
		return nil, errs.Unavailable(c.op("find_one"), err)
	}
	if len(docs) == 0 {
		return nil, errs.ErrNotFound
	}
	return docs[0], nil
}

func (c *Collection) Find(_ context.Context, filter store.Filter) store.Cursor {
	return store.NewCursor(func(ctx context.Context, order *store.Order, limit int) ([]store.Document, error) {
		q, err := SelectQuery(c.s.dialect, c.t, filter, order, limit)
		if err != nil {
			return nil, err
		}
		docs, err := c.s.exec.query(ctx, c.t, q)
		if err != nil {
			return nil, errs.Unavailable(c.op("find"), err)
		}
		return docs, nil
	})
}

func (c *Collection) InsertOne(ctx context.Context, doc store.Document) error {
	q, err := InsertQuery(c.s.dialect, c.t, doc)
	if err != nil {
		return err
	}
	if _, err := c.s.exec.exec(ctx, q); err != nil {
		return errs.Unavailable(c.op("insert_one"), err)
	}
	return nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter store.Match, set store.Set) (int64, error) {
	q, err := UpdateQuery(c.s.dialect, c.t, filter, set)
	if err != nil {
		return 0, err
	}
	n, err := c.s.exec.exec(ctx, q)
	if err != nil {
		return 0, errs.Unavailable(c.op("update_one"), err)
	}
	return n, nil
}

// unknownCollection rejects every operation on a name missing from Catalog.
type unknownCollection string

func (u unknownCollection) err() error {
	return errs.Invalid("unknown collection %q", string(u))
}

func (u unknownCollection) FindOne(context.Context, store.Match) (store.Document, error) {
	return nil, u.err()
}

func (u unknownCollection) Find(context.Context, store.Filter) store.Cursor {
	return store.ErrCursor(u.err())
}

func (u unknownCollection) InsertOne(context.Context, store.Document) error { return u.err() }

func (u unknownCollection) UpdateOne(context.Context, store.Match, store.Set) (int64, error) {
	return 0, u.err()
}
