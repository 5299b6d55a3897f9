package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/store"
	"github.com/4xmen/peyvand/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}

func TestReturnedDocumentsAreCopies(t *testing.T) {
	ctx := context.Background()
	c := New().Collection(store.Users)
	require.NoError(t, c.InsertOne(ctx, store.Document{"id": "u1", "username": "alice"}))

	doc, err := c.FindOne(ctx, store.Where(store.Eq("id", "u1")))
	require.NoError(t, err)
	doc["username"] = "mallory"

	again, err := c.FindOne(ctx, store.Where(store.Eq("id", "u1")))
	require.NoError(t, err)
	assert.Equal(t, "alice", again.String("username"))
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New().Collection(store.Users)

	assert.ErrorIs(t, c.InsertOne(ctx, store.Document{"id": "u1"}), errs.ErrBackendUnavailable)
	_, err := c.Find(ctx, store.Match{}).ToList(ctx, 0)
	assert.ErrorIs(t, err, errs.ErrBackendUnavailable)
}

func TestUpdateNilRemovesField(t *testing.T) {
	ctx := context.Background()
	c := New().Collection(store.Messages)
	require.NoError(t, c.InsertOne(ctx, store.Document{"id": "m1", "edited_at": "x"}))

	n, err := c.UpdateOne(ctx, store.Where(store.Eq("id", "m1")), store.Set{"edited_at": nil})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	doc, err := c.FindOne(ctx, store.Where(store.Eq("edited_at", nil)))
	require.NoError(t, err)
	assert.Equal(t, "m1", doc.String("id"))
}
