// Package store defines the document store abstraction shared by every
// persistence backend: equality and disjunctive filters, field-set updates,
// sort and limit, with identical semantics whether documents live in memory,
// in a relational database or in MongoDB.
package store

import "context"

// Collection names.
const (
	Users             = "users"
	Messages          = "messages"
	Friends           = "friends"
	PushSubscriptions = "push_subscriptions"
)

// Document is a flat record keyed by field name. Values are normalized to
// string, bool, int64, float64, []any or map[string]any; see Normalize.
type Document map[string]any

// Set lists the fields an update assigns.
type Set map[string]any

// Direction orders a cursor.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Cursor is a lazily evaluated query result. Sort must be called before the
// cursor is read. It can be drained once, either with ToList or with Next.
type Cursor interface {
	Sort(field string, dir Direction) Cursor

	// ToList returns up to limit documents; limit <= 0 means unbounded.
	ToList(ctx context.Context, limit int) ([]Document, error)

	// Next advances to the next document. It returns false when the results
	// are exhausted or an error occurred; check Err afterwards.
	Next(ctx context.Context) bool
	Document() Document
	Err() error
	Close(ctx context.Context) error
}

type Collection interface {
	// FindOne returns the first document matching every term, or errs.ErrNotFound.
	FindOne(ctx context.Context, filter Match) (Document, error)

	Find(ctx context.Context, filter Filter) Cursor

	// InsertOne stores the document as given. The store never generates ids.
	InsertOne(ctx context.Context, doc Document) error

	// UpdateOne applies set to the first document matching filter and
	// returns how many documents matched (0 or 1). No match is not an error.
	UpdateOne(ctx context.Context, filter Match, set Set) (int64, error)
}

type Store interface {
	Collection(name string) Collection
	// Backend names the implementation ("memory", "postgres", "sqlite", "mongo").
	Backend() string
	Close(ctx context.Context) error
}
