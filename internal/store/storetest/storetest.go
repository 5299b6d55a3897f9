// Package storetest is a conformance suite every store backend must pass.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/store"
)

// Run exercises s against the shared store semantics. open must return an
// empty store for each call.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"RoundTrip", testRoundTrip},
		{"FindOneNotFound", testFindOneNotFound},
		{"FindOneFirstInserted", testFindOneFirstInserted},
		{"FindAnyOf", testFindAnyOf},
		{"EmptyAnyOfMatchesNothing", testEmptyAnyOf},
		{"SortStableAndLimit", testSortStableAndLimit},
		{"SortMissingFieldAsEmpty", testSortMissingField},
		{"SortMissingNumberFirst", testSortMissingNumber},
		{"NilMatchesAbsent", testNilMatchesAbsent},
		{"UpdateFirstMatchOnly", testUpdateFirstMatchOnly},
		{"UpdateNoMatch", testUpdateNoMatch},
		{"UpdateReactions", testUpdateReactions},
		{"Iterate", testIterate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { s.Close(context.Background()) })
			tt.fn(t, s)
		})
	}
}

func message(id, from, to, ts string) store.Document {
	return store.Document{
		"id":            id,
		"from_user_id":  from,
		"from_username": "name-" + from,
		"to_user_id":    to,
		"message":       "msg " + id,
		"timestamp":     ts,
		"read":          false,
		"deleted":       false,
		"reactions":     map[string]any{},
	}
}

func insert(t *testing.T, c store.Collection, docs ...store.Document) {
	t.Helper()
	for _, d := range docs {
		require.NoError(t, c.InsertOne(context.Background(), d))
	}
}

func ids(docs []store.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.String("id")
	}
	return out
}

func testRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := s.Collection(store.Messages)
	doc := message("m1", "a", "b", "2024-01-01T00:00:00.000000Z")
	doc["reactions"] = map[string]any{"👍": []any{"b"}}
	doc["type"] = "call-log"
	doc["call_status"] = "missed"
	doc["duration"] = int64(42)
	insert(t, c, doc)

	got, err := c.FindOne(ctx, store.Where(store.Eq("id", "m1")))
	require.NoError(t, err)
	assert.Equal(t, store.NormalizeDocument(doc), got)
}

func testFindOneNotFound(t *testing.T, s store.Store) {
	_, err := s.Collection(store.Users).FindOne(context.Background(), store.Where(store.Eq("username", "ghost")))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func testFindOneFirstInserted(t *testing.T, s store.Store) {
	c := s.Collection(store.Messages)
	insert(t, c,
		message("m2", "a", "b", "2024-01-02T00:00:00Z"),
		message("m1", "a", "b", "2024-01-01T00:00:00Z"),
	)
	got, err := c.FindOne(context.Background(), store.Where(store.Eq("from_user_id", "a")))
	require.NoError(t, err)
	assert.Equal(t, "m2", got.String("id"))
}

func testFindAnyOf(t *testing.T, s store.Store) {
	c := s.Collection(store.Messages)
	insert(t, c,
		message("1", "a", "b", "2024-01-01T00:00:01Z"),
		message("2", "b", "a", "2024-01-01T00:00:02Z"),
		message("3", "a", "c", "2024-01-01T00:00:03Z"),
		message("4", "c", "b", "2024-01-01T00:00:04Z"),
	)
	docs, err := c.Find(context.Background(), store.AnyOf{
		store.Where(store.Eq("from_user_id", "a"), store.Eq("to_user_id", "b")),
		store.Where(store.Eq("from_user_id", "b"), store.Eq("to_user_id", "a")),
	}).Sort("timestamp", store.Ascending).ToList(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(docs))
}

func testEmptyAnyOf(t *testing.T, s store.Store) {
	c := s.Collection(store.Messages)
	insert(t, c, message("1", "a", "b", "2024-01-01T00:00:00Z"))
	docs, err := c.Find(context.Background(), store.AnyOf{}).ToList(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func testSortStableAndLimit(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := s.Collection(store.Messages)
	for i, ts := range []string{"b", "a", "b", "c", "a"} {
		insert(t, c, message(fmt.Sprint(i), "a", "b", ts))
	}

	docs, err := c.Find(ctx, store.Match{}).Sort("timestamp", store.Ascending).ToList(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "4", "0", "2", "3"}, ids(docs))

	docs, err = c.Find(ctx, store.Match{}).Sort("timestamp", store.Descending).ToList(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "0", "2"}, ids(docs))

	docs, err = c.Find(ctx, store.Where(store.Eq("from_user_id", "a"))).ToList(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, ids(docs), "unsorted results keep insertion order")
}

func testSortMissingField(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := s.Collection(store.Messages)
	edited := message("1", "a", "b", "t")
	edited["edited_at"] = "2024-01-01T00:00:00Z"
	insert(t, c, edited, message("2", "a", "b", "t"))

	docs, err := c.Find(ctx, store.Match{}).Sort("edited_at", store.Ascending).ToList(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, ids(docs))
	_, ok := docs[0]["edited_at"]
	assert.False(t, ok, "absent fields stay absent")
}

func testSortMissingNumber(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := s.Collection(store.Messages)
	call := message("1", "a", "b", "t")
	call["duration"] = 5
	insert(t, c, call, message("2", "a", "b", "t"))

	docs, err := c.Find(ctx, store.Match{}).Sort("duration", store.Ascending).ToList(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, ids(docs))

	docs, err = c.Find(ctx, store.Match{}).Sort("duration", store.Descending).ToList(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(docs))
}

func testNilMatchesAbsent(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := s.Collection(store.Messages)
	edited := message("1", "a", "b", "t")
	edited["edited_at"] = "2024-01-01T00:00:00Z"
	insert(t, c, edited, message("2", "a", "b", "t"))

	docs, err := c.Find(ctx, store.Where(store.Eq("edited_at", nil))).ToList(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(docs))
}

func testUpdateFirstMatchOnly(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := s.Collection(store.Messages)
	insert(t, c,
		message("1", "a", "b", "t1"),
		message("2", "a", "b", "t2"),
	)

	n, err := c.UpdateOne(ctx, store.Where(store.Eq("to_user_id", "b"), store.Eq("read", false)), store.Set{"read": true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	unread, err := c.Find(ctx, store.Where(store.Eq("read", false))).ToList(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(unread))
}

func testUpdateNoMatch(t *testing.T, s store.Store) {
	n, err := s.Collection(store.Messages).UpdateOne(context.Background(),
		store.Where(store.Eq("id", "missing")), store.Set{"deleted": true})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testUpdateReactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := s.Collection(store.Messages)
	insert(t, c, message("1", "a", "b", "t"))

	reactions := map[string][]string{"❤️": {"a", "b"}}
	n, err := c.UpdateOne(ctx, store.Where(store.Eq("id", "1")), store.Set{
		"reactions": reactions,
		"message":   "edited",
		"edited_at": "2024-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := c.FindOne(ctx, store.Where(store.Eq("id", "1")))
	require.NoError(t, err)
	assert.Equal(t, reactions, got.StringLists("reactions"))
	assert.Equal(t, "edited", got.String("message"))
	assert.Equal(t, "2024-01-01T00:00:00Z", got.String("edited_at"))
}

func testIterate(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := s.Collection(store.Friends)
	for i := range 3 {
		insert(t, c, store.Document{
			"id": fmt.Sprint(i), "user_id": "a", "username": "alice",
			"friend_id": fmt.Sprint("f", i), "friend_username": "friend",
			"status": "pending", "created_at": fmt.Sprint("2024-01-0", 3-i),
		})
	}

	cur := c.Find(ctx, store.Where(store.Eq("user_id", "a"))).Sort("created_at", store.Ascending)
	defer cur.Close(ctx)
	var got []string
	for cur.Next(ctx) {
		got = append(got, cur.Document().String("id"))
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []string{"2", "1", "0"}, got)
}
