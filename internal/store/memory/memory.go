// Package memory is the volatile document store backend. Every query scans
// the whole collection.
package memory

import (
	"context"
	"sync"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/store"
)

type Store struct {
	mu          sync.Mutex
	collections map[string]*Collection
}

func New() *Store {
	return &Store{collections: make(map[string]*Collection)}
}

func (s *Store) Collection(name string) store.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &Collection{}
		s.collections[name] = c
	}
	return c
}

func (s *Store) Backend() string { return "memory" }

func (s *Store) Close(context.Context) error { return nil }

// Collection keeps documents in insertion order.
type Collection struct {
	mu   sync.RWMutex
	docs []store.Document
}

func (c *Collection) FindOne(ctx context.Context, filter store.Match) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable("memory find_one", err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, doc := range c.docs {
		if filter.Matches(doc) {
			return doc.Clone(), nil
		}
	}
	return nil, errs.ErrNotFound
}

func (c *Collection) Find(_ context.Context, filter store.Filter) store.Cursor {
	return store.NewCursor(func(ctx context.Context, order *store.Order, limit int) ([]store.Document, error) {
		if err := ctx.Err(); err != nil {
			return nil, errs.Unavailable("memory find", err)
		}
		c.mu.RLock()
		var out []store.Document
		for _, doc := range c.docs {
			if filter.Matches(doc) {
				out = append(out, doc.Clone())
			}
		}
		c.mu.RUnlock()

		if order != nil {
			store.SortDocuments(out, order.Field, order.Dir)
		}
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return out, nil
	})
}

func (c *Collection) InsertOne(ctx context.Context, doc store.Document) error {
	if err := ctx.Err(); err != nil {
		return errs.Unavailable("memory insert_one", err)
	}
	c.mu.Lock()
	c.docs = append(c.docs, store.NormalizeDocument(doc))
	c.mu.Unlock()
	return nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter store.Match, set store.Set) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errs.Unavailable("memory update_one", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range c.docs {
		if !filter.Matches(doc) {
			continue
		}
		for k, v := range set {
			if n := store.Normalize(v); n != nil {
				doc[k] = n
			} else {
				delete(doc, k)
			}
		}
		return 1, nil
	}
	return 0, nil
}

