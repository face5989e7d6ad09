package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/staffsync/notify"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// ErrQueueFull is returned by Send when the outbound queue has no room.
var ErrQueueFull = errors.New("live: outbound queue full")

// Conn adapts a WebSocket connection to notify.Conn.
type Conn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	queue chan any
	done  chan struct{}
	once  sync.Once

	mu     sync.Mutex
	status websocket.StatusCode
	reason string
}

var _ notify.Conn = (*Conn)(nil)

func newConn(ws *websocket.Conn, queueSize int, writeTimeout time.Duration) *Conn {
	return &Conn{
		id:           uuid.NewString(),
		ws:           ws,
		writeTimeout: writeTimeout,
		queue:        make(chan any, queueSize),
		done:         make(chan struct{}),
		status:       websocket.StatusNormalClosure,
	}
}

func (c *Conn) ID() string { return c.id }

// Send enqueues ev without blocking.
func (c *Conn) Send(ev notify.Event) error {
	return c.enqueue(ev)
}

func (c *Conn) enqueue(frame any) error {
	select {
	case <-c.done:
		return notify.ErrConnClosed
	default:
	}
	select {
	case c.queue <- frame:
		return nil
	default:
		c.closeWith(websocket.StatusTryAgainLater, "slow consumer")
		return ErrQueueFull
	}
}

// Close stops the writer and closes the socket.
func (c *Conn) Close() error {
	c.closeWith(websocket.StatusNormalClosure, "")
	return nil
}

func (c *Conn) closeWith(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		c.mu.Lock()
		c.status, c.reason = code, reason
		c.mu.Unlock()
		close(c.done)
	})
}

// writeLoop drains the queue until the connection is closed or a write fails.
// It owns the final close handshake.
func (c *Conn) writeLoop(ctx context.Context) error {
	defer func() {
		c.mu.Lock()
		code, reason := c.status, c.reason
		c.mu.Unlock()
		_ = c.ws.Close(code, reason)
	}()

	for {
		select {
		case <-c.done:
			return nil
		case <-ctx.Done():
			c.closeWith(websocket.StatusGoingAway, "server shutting down")
			return ctx.Err()
		case frame := <-c.queue:
			wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
			err := wsjson.Write(wctx, c.ws, frame)
			cancel()
			if err != nil {
				c.closeWith(websocket.StatusInternalError, "write failed")
				return err
			}
		}
	}
}
