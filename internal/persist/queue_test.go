package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stall submits a job under key that runs until release is closed or the
// job times out.
func stall(q *Queue, key string) (release func()) {
	ch := make(chan struct{})
	q.Submit(key, "stall", func(ctx context.Context) error {
		select {
		case <-ch:
		case <-ctx.Done():
		}
		return nil
	})
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func TestJobsForOneKeyRunInSubmissionOrder(t *testing.T) {
	q := New(16, time.Second, zap.NewNop())

	var mu sync.Mutex
	var order []int
	for i := range 50 {
		q.Submit("m1", "append", func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, q.Close(context.Background()))

	require.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestLaterJobSeesEarlierJobForSameKey(t *testing.T) {
	q := New(4, time.Second, zap.NewNop())
	defer q.Close(context.Background())

	var mu sync.Mutex
	written, seen := false, false
	q.Submit("m1", "write", func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		written = true
		mu.Unlock()
		return nil
	})
	q.Submit("m1", "read", func(context.Context) error {
		mu.Lock()
		seen = written
		mu.Unlock()
		return nil
	})
	require.NoError(t, q.Flush(context.Background()))
	assert.True(t, seen)
}

func TestSubmitDoesNotBlockBehindStalledJobs(t *testing.T) {
	q := New(2, 5*time.Second, zap.NewNop())
	defer q.Close(context.Background())

	release := stall(q, "m1")
	defer release()

	start := time.Now()
	for i := range 500 {
		q.Submit("m1", "queued", func(context.Context) error { return nil })
		q.Submit(fmt.Sprint("other-", i), "queued", func(context.Context) error { return nil })
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond)

	release()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Flush(ctx))
}

func TestKeysRunIndependently(t *testing.T) {
	q := New(4, 5*time.Second, zap.NewNop())
	defer q.Close(context.Background())

	release := stall(q, "slow")
	defer release()

	ran := make(chan struct{})
	q.Submit("fast", "write", func(context.Context) error {
		close(ran)
		return nil
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job under another key waited for the stalled one")
	}
}

func TestFlushHonorsContext(t *testing.T) {
	q := New(4, 5*time.Second, zap.NewNop())
	defer q.Close(context.Background())

	release := stall(q, "slow")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Flush(ctx), context.DeadlineExceeded)
}

func TestJobTimeout(t *testing.T) {
	q := New(1, 10*time.Millisecond, zap.NewNop())
	defer q.Close(context.Background())

	var got error
	q.Submit("m1", "slow", func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		return got
	})
	require.NoError(t, q.Flush(context.Background()))
	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestFailingJobDoesNotStopLane(t *testing.T) {
	q := New(4, time.Second, zap.NewNop())
	defer q.Close(context.Background())

	ran := false
	q.Submit("m1", "fail", func(context.Context) error { return errors.New("store down") })
	q.Submit("m1", "panic", func(context.Context) error { panic("bad") })
	q.Submit("m1", "after", func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, q.Flush(context.Background()))
	assert.True(t, ran)
}

func TestCloseDrainsAndRejects(t *testing.T) {
	q := New(8, time.Second, zap.NewNop())

	var mu sync.Mutex
	done := 0
	for i := range 5 {
		q.Submit(fmt.Sprint("m", i%2), "count", func(context.Context) error {
			mu.Lock()
			done++
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, 5, done)

	q.Submit("m1", "late", func(context.Context) error {
		t.Error("job ran after close")
		return nil
	})
	require.NoError(t, q.Close(context.Background()), "close is idempotent")
}
