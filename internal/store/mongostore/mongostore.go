// Package mongostore implements the document store on MongoDB. The
// collection-level _id is internal to the backend and never returned.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/store"
)

// insertion order tiebreak; driver-generated ObjectIDs increase per process
var byID = bson.E{Key: "_id", Value: 1}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and pings the primary before returning.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

func (s *Store) Collection(name string) store.Collection {
	return &Collection{c: s.db.Collection(name)}
}

func (s *Store) Backend() string { return "mongo" }

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type Collection struct {
	c *mongo.Collection
}

func (c *Collection) op(name string) string {
	return "mongo " + name + " " + c.c.Name()
}

func (c *Collection) FindOne(ctx context.Context, filter store.Match) (store.Document, error) {
	f, err := matchFilter(filter)
	if err != nil {
		return nil, err
	}
	var raw bson.M
	err = c.c.FindOne(ctx, f, options.FindOne().SetSort(bson.D{byID})).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, errs.Unavailable(c.op("find_one"), err)
	}
	return fromBSON(raw), nil
}

func (c *Collection) Find(_ context.Context, filter store.Filter) store.Cursor {
	f, err := Filter(filter)
	if err != nil {
		return store.ErrCursor(err)
	}
	return store.NewCursor(func(ctx context.Context, order *store.Order, limit int) ([]store.Document, error) {
		opts := options.Find().SetSort(sortSpec(order))
		if limit > 0 {
			opts.SetLimit(int64(limit))
		}
		cur, err := c.c.Find(ctx, f, opts)
		if err != nil {
			return nil, errs.Unavailable(c.op("find"), err)
		}
		var raws []bson.M
		if err := cur.All(ctx, &raws); err != nil {
			return nil, errs.Unavailable(c.op("find"), err)
		}
		docs := make([]store.Document, len(raws))
		for i, raw := range raws {
			docs[i] = fromBSON(raw)
		}
		return docs, nil
	})
}

func (c *Collection) InsertOne(ctx context.Context, doc store.Document) error {
	d := store.NormalizeDocument(doc)
	for k := range d {
		if err := checkField(k); err != nil {
			return err
		}
	}
	if _, err := c.c.InsertOne(ctx, bson.M(d)); err != nil {
		return errs.Unavailable(c.op("insert_one"), err)
	}
	return nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter store.Match, set store.Set) (int64, error) {
	if len(set) == 0 {
		return 0, errs.Invalid("empty update")
	}
	f, err := matchFilter(filter)
	if err != nil {
		return 0, err
	}
	fields := bson.M{}
	for k, v := range set {
		if err := checkField(k); err != nil {
			return 0, err
		}
		fields[k] = store.Normalize(v)
	}
	res, err := c.c.UpdateOne(ctx, f, bson.D{{Key: "$set", Value: fields}}, firstMatch())
	if err != nil {
		return 0, errs.Unavailable(c.op("update_one"), err)
	}
	return res.MatchedCount, nil
}

// firstMatch makes update_one touch the earliest inserted match, the same
// document FindOne returns.
func firstMatch() *options.UpdateOneOptionsBuilder {
	return options.UpdateOne().SetSort(bson.D{byID})
}

// Filter translates a store filter into a MongoDB query document.
func Filter(f store.Filter) (bson.D, error) {
	switch f := f.(type) {
	case nil:
		return bson.D{}, nil
	case store.Match:
		return matchFilter(f)
	case store.AnyOf:
		if len(f) == 0 {
			return bson.D{{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}}}, nil
		}
		or := make(bson.A, len(f))
		for i, m := range f {
			d, err := matchFilter(m)
			if err != nil {
				return nil, err
			}
			or[i] = d
		}
		return bson.D{{Key: "$or", Value: or}}, nil
	}
	return nil, errs.Invalid("unsupported filter %T", f)
}

func matchFilter(m store.Match) (bson.D, error) {
	d := make(bson.D, 0, len(m))
	for _, t := range m {
		if err := checkField(t.Field); err != nil {
			return nil, err
		}
		// a nil value matches both null and missing fields
		d = append(d, bson.E{Key: t.Field, Value: store.Normalize(t.Value)})
	}
	return d, nil
}

func sortSpec(order *store.Order) bson.D {
	if order == nil {
		return bson.D{byID}
	}
	dir := 1
	if order.Dir == store.Descending {
		dir = -1
	}
	return bson.D{{Key: order.Field, Value: dir}, byID}
}

func checkField(name string) error {
	if name == "" || name == "_id" || strings.HasPrefix(name, "$") || strings.Contains(name, ".") {
		return errs.Invalid("invalid field name %q", name)
	}
	return nil
}

func fromBSON(raw bson.M) store.Document {
	doc := make(store.Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		if v = fromBSONValue(v); v != nil {
			doc[k] = v
		}
	}
	return doc
}

func fromBSONValue(v any) any {
	switch v := v.(type) {
	case bson.M:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = fromBSONValue(e)
		}
		return m
	case bson.D:
		m := make(map[string]any, len(v))
		for _, e := range v {
			m[e.Key] = fromBSONValue(e.Value)
		}
		return m
	case bson.A:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = fromBSONValue(e)
		}
		return out
	case bson.DateTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	case bson.Null:
		return nil
	}
	return store.Normalize(v)
}
