// Package quic carries state batches over a single bidirectional QUIC stream
// using varint length framing.
package quic

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/observability/log"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/transport"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/transport/frame"
)

// NextProto is negotiated through ALPN when the TLS config names none.
const NextProto = "arsync/1"

type Config struct {
	MaxBatchSize    int
	KeepAlivePeriod time.Duration
	IdleTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxBatchSize:    transport.DefaultMaxBatchSize,
		KeepAlivePeriod: 10 * time.Second,
		IdleTimeout:     30 * time.Second,
	}
}

func (c Config) quicConfig() *quic.Config {
	return &quic.Config{
		KeepAlivePeriod: c.KeepAlivePeriod,
		MaxIdleTimeout:  c.IdleTimeout,
	}
}

func withProto(tlsConf *tls.Config) *tls.Config {
	conf := tlsConf.Clone()
	if len(conf.NextProtos) == 0 {
		conf.NextProtos = []string{NextProto}
	}
	return conf
}

// Stream is a batch transport over one QUIC stream.
type Stream struct {
	id     string
	conn   *quic.Conn
	stream *quic.Stream
	reader *frame.Reader
	closed atomic.Bool
	logger log.Log

	writeMu sync.Mutex
}

func newStream(conn *quic.Conn, stream *quic.Stream, config Config, logger log.Log) *Stream {
	id := uuid.NewString()
	return &Stream{
		id:     id,
		conn:   conn,
		stream: stream,
		reader: frame.NewReader(stream, config.MaxBatchSize),
		logger: log.OrNop(logger).With(log.String("conn_id", id), log.String("remote", conn.RemoteAddr().String())),
	}
}

// Dial connects to addr and opens the batch stream. An empty frame is sent
// right away so the peer's AcceptStream returns without waiting for the
// first batch.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config, config Config, logger log.Log) (*Stream, error) {
	conn, err := quic.DialAddr(ctx, addr, withProto(tlsConf), config.quicConfig())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	qs, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "open stream failed")
		return nil, fmt.Errorf("open stream: %w", err)
	}

	s := newStream(conn, qs, config, logger)
	if err = frame.Write(qs, nil); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return s, nil
}

// Listener accepts batch streams.
type Listener struct {
	ln     *quic.Listener
	config Config
	logger log.Log
}

func Listen(addr string, tlsConf *tls.Config, config Config, logger log.Log) (*Listener, error) {
	ln, err := quic.ListenAddr(addr, withProto(tlsConf), config.quicConfig())
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Listener{ln: ln, config: config, logger: log.OrNop(logger)}, nil
}

// Accept waits for a peer and its batch stream.
func (l *Listener) Accept(ctx context.Context) (*Stream, error) {
	conn, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, err
	}
	qs, err := conn.AcceptStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "no stream")
		return nil, fmt.Errorf("accept stream: %w", err)
	}

	s := newStream(conn, qs, l.config, l.logger)
	s.logger.Debug("quic peer connected")
	return s, nil
}

func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

func (l *Listener) Close() error {
	return l.ln.Close()
}

func (s *Stream) ID() string {
	return s.id
}

func (s *Stream) SendBatch(ctx context.Context, data []byte) error {
	if s.closed.Load() {
		return transport.ErrClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	_ = s.stream.SetWriteDeadline(deadline)
	if err := frame.Write(s.stream, data); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

// ReceiveBatch returns the next frame. The peer closing its side is io.EOF.
func (s *Stream) ReceiveBatch(ctx context.Context) ([]byte, error) {
	if s.closed.Load() {
		return nil, transport.ErrClosed
	}

	deadline, _ := ctx.Deadline()
	_ = s.stream.SetReadDeadline(deadline)
	data, err := s.reader.Next()
	if err != nil {
		var appErr *quic.ApplicationError
		if errors.As(err, &appErr) && appErr.ErrorCode == 0 {
			return nil, io.EOF
		}
		if s.closed.Load() {
			return nil, transport.ErrClosed
		}
		return nil, err
	}
	return data, nil
}

func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = s.stream.Close()
	err := s.conn.CloseWithError(0, "closed")
	s.logger.Debug("quic connection closed")
	return err
}
