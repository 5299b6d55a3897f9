package store

import "context"

// Order is the sort applied to a cursor.
type Order struct {
	Field string
	Dir   Direction
}

// Loader runs a query. order is nil when the cursor was not sorted;
// limit <= 0 means unbounded.
type Loader func(ctx context.Context, order *Order, limit int) ([]Document, error)

type cursor struct {
	load   Loader
	order  *Order
	docs   []Document
	pos    int
	loaded bool
	err    error
}

// NewCursor returns a Cursor that defers running load until it is read.
func NewCursor(load Loader) Cursor {
	return &cursor{load: load}
}

// ErrCursor returns a Cursor that fails with err when read.
func ErrCursor(err error) Cursor {
	return &cursor{loaded: true, err: err}
}

func (c *cursor) Sort(field string, dir Direction) Cursor {
	c.order = &Order{Field: field, Dir: dir}
	return c
}

func (c *cursor) ToList(ctx context.Context, limit int) ([]Document, error) {
	if c.loaded {
		if c.err != nil {
			return nil, c.err
		}
		rest := c.docs[c.pos:]
		if limit > 0 && len(rest) > limit {
			rest = rest[:limit]
		}
		c.pos += len(rest)
		return rest, nil
	}
	c.loaded = true
	docs, err := c.load(ctx, c.order, limit)
	if err != nil {
		c.err = err
		return nil, err
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

func (c *cursor) Next(ctx context.Context) bool {
	if !c.loaded {
		c.loaded = true
		c.docs, c.err = c.load(ctx, c.order, 0)
	}
	if c.err != nil || c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *cursor) Document() Document {
	if c.pos == 0 || c.pos > len(c.docs) {
		return nil
	}
	return c.docs[c.pos-1]
}

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close(context.Context) error {
	c.docs = nil
	c.pos = 0
	c.loaded = true
	return nil
}
