package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20 // SDP offers can be large
)

// Transport is one live client connection. Send may be called from any
// goroutine; Receive only from the connection's own loop.
type Transport interface {
	Send(data []byte) error
	Receive() ([]byte, error)
	Close() error
}

type conn struct {
	ws   *websocket.Conn
	mu   sync.Mutex // serializes writers
	done chan struct{}
	once sync.Once
}

// NewTransport wraps an upgraded websocket. A ping is written every
// pingInterval and the read deadline is pushed back by readTimeout on every
// pong.
func NewTransport(ws *websocket.Conn, pingInterval, readTimeout time.Duration) Transport {
	c := &conn{ws: ws, done: make(chan struct{})}

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go c.keepalive(pingInterval)
	return c
}

func (c *conn) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) Receive() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.mu.Unlock()
		err = c.ws.Close()
	})
	return err
}
