// Package websocket carries state batches as binary WebSocket messages, one
// batch per message.
package websocket

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/observability/log"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/transport"
)

type Config struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout:   5 * time.Second,
		MaxMessageSize: transport.DefaultMaxBatchSize,
	}
}

// Conn is a batch transport over one WebSocket connection.
type Conn struct {
	id     string
	conn   *websocket.Conn
	config Config
	closed atomic.Bool
	logger log.Log

	// gorilla allows one concurrent writer
	writeMu sync.Mutex
}

func NewConn(conn *websocket.Conn, config Config, logger log.Log) *Conn {
	id := uuid.NewString()
	if config.MaxMessageSize > 0 {
		conn.SetReadLimit(config.MaxMessageSize)
	}
	return &Conn{
		id:     id,
		conn:   conn,
		config: config,
		logger: log.OrNop(logger).With(log.String("conn_id", id), log.String("remote", conn.RemoteAddr().String())),
	}
}

// Dial opens a client connection to url (ws:// or wss://).
func Dial(ctx context.Context, url string, config Config, logger log.Log) (*Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewConn(conn, config, logger), nil
}

// Upgrader turns incoming HTTP requests into batch connections.
type Upgrader struct {
	upgrader websocket.Upgrader
	config   Config
	logger   log.Log
}

func NewUpgrader(config Config, logger log.Log) *Upgrader {
	return &Upgrader{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		config: config,
		logger: log.OrNop(logger),
	}
}

func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	c := NewConn(conn, u.config, u.logger)
	c.logger.Debug("websocket peer connected")
	return c, nil
}

func (c *Conn) ID() string {
	return c.id
}

// SendBatch writes data as a single binary message.
func (c *Conn) SendBatch(ctx context.Context, data []byte) error {
	if c.closed.Load() {
		return transport.ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(deadline(ctx, c.config.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

// ReceiveBatch blocks for the next binary message. A clean close by the peer
// is reported as io.EOF.
func (c *Conn) ReceiveBatch(ctx context.Context) ([]byte, error) {
	if c.closed.Load() {
		return nil, transport.ErrClosed
	}

	_ = c.conn.SetReadDeadline(deadline(ctx, c.config.ReadTimeout))

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		if c.closed.Load() {
			return nil, transport.ErrClosed
		}
		return nil, fmt.Errorf("read batch: %w", err)
	}
	if messageType != websocket.BinaryMessage {
		return nil, fmt.Errorf("%w: %d", transport.ErrUnsupportedMessage, messageType)
	}
	return data, nil
}

// Close sends a close frame and releases the connection. It is safe to call
// more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	// The peer may already be gone, so a failed close frame is not an error.
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))

	err := c.conn.Close()
	c.logger.Debug("websocket connection closed")
	return err
}

// deadline picks the context deadline, then the configured timeout. The zero
// time clears a deadline left by an earlier call.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	if timeout > 0 {
		return time.Now().Add(timeout)
	}
	return time.Time{}
}
