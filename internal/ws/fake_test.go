package ws

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// fakeTransport is an in-process Transport. Frames pushed with deliver are
// returned by Receive; frames written with Send are read back with next.
type fakeTransport struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	sendErr error
}

func newFake() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	err := f.sendErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case f.out <- data:
		return nil
	default:
		return errors.New("fake transport: outbox full")
	}
}

func (f *fakeTransport) Receive() ([]byte, error) {
	select {
	case data := <-f.in:
		return data, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) failSends(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

func (f *fakeTransport) deliver(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	f.in <- data
}

// next returns the next envelope of type typ, skipping any other types.
func (f *fakeTransport) next(t *testing.T, typ string) map[string]any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-f.out:
			var env map[string]any
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("bad outbound frame %s: %v", data, err)
			}
			if env["type"] == typ {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", typ)
			return nil
		}
	}
}

// quiet asserts that nothing but roster updates arrives within wait.
func (f *fakeTransport) quiet(t *testing.T, wait time.Duration) {
	t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case data := <-f.out:
			var env map[string]any
			_ = json.Unmarshal(data, &env)
			if env["type"] != "users-update" {
				t.Fatalf("unexpected envelope %s", data)
			}
		case <-deadline:
			return
		}
	}
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}
