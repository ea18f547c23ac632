// Package app assembles a sync node: one scene registry, the factory that
// fills it, and the transport that links it to a peer.
package app

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/config"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/observability/log"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/driver"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/factory"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/headless"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/registry"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/transport/quic"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/transport/websocket"
)

// ErrPeerAttached is returned when a second peer tries to attach while one
// is already being served.
var ErrPeerAttached = errors.New("a peer is already attached")

// Node owns one scene and serves it to a single peer at a time. Dirty flags
// are consumed by whichever driver flushes first, so two concurrent peers
// would each see only part of the changes.
type Node struct {
	config   config.Config
	logger   log.Log
	renderer *headless.Renderer
	factory  *factory.Factory
	registry *registry.Registry

	attached atomic.Bool
}

func NewNode(cfg config.Config, logger log.Log, renderer *headless.Renderer, f *factory.Factory, reg *registry.Registry) *Node {
	return &Node{
		config:   cfg,
		logger:   log.OrNop(logger).With(log.String("component", "node")),
		renderer: renderer,
		factory:  f,
		registry: reg,
	}
}

func (n *Node) Factory() *factory.Factory {
	return n.factory
}

func (n *Node) Registry() *registry.Registry {
	return n.registry
}

func (n *Node) Renderer() *headless.Renderer {
	return n.renderer
}

// Attach runs a sync driver against t until ctx is done or the peer goes
// away. t is closed on return.
func (n *Node) Attach(ctx context.Context, t driver.Transport) error {
	if !n.attached.CompareAndSwap(false, true) {
		_ = t.Close()
		return ErrPeerAttached
	}
	defer n.attached.Store(false)

	n.logger.Info("peer attached", log.Int("node", int(n.factory.Node())))
	d := driver.New(n.config.Sync.Driver(), n.registry, n.factory.Shadow, t, n.logger)
	err := d.Run(ctx)
	n.logger.Info("peer detached", log.Error(err))
	return err
}

// Simulate steps every entity at the configured simulation rate until ctx is
// done.
func (n *Node) Simulate(ctx context.Context) error {
	ticker := time.NewTicker(n.config.Sync.SimulationRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.registry.FixedUpdate()
		}
	}
}

// SyncHandler upgrades requests to websocket peers and attaches them. Peers
// arriving while another is attached get 409 Conflict.
func (n *Node) SyncHandler(ctx context.Context) http.Handler {
	upgrader := websocket.NewUpgrader(n.websocketConfig(), n.logger)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n.attached.Load() {
			http.Error(w, ErrPeerAttached.Error(), http.StatusConflict)
			return
		}
		conn, err := upgrader.Upgrade(w, r)
		if err != nil {
			n.logger.Warn("websocket upgrade failed", log.Error(err))
			return
		}
		if err = n.Attach(ctx, conn); err != nil {
			n.logger.Warn("websocket peer failed", log.String("conn_id", conn.ID()), log.Error(err))
		}
	})
}

// Serve listens on the configured transport and attaches incoming peers
// until ctx is done.
func (n *Node) Serve(ctx context.Context) error {
	switch n.config.Transport.Kind {
	case config.TransportQUIC:
		return n.serveQUIC(ctx)
	default:
		return n.serveWebSocket(ctx)
	}
}

func (n *Node) serveWebSocket(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(n.config.Transport.Path, n.SyncHandler(ctx))

	srv := &http.Server{
		Addr:              n.config.Transport.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		n.logger.Info("websocket listening",
			log.String("addr", srv.Addr),
			log.String("path", n.config.Transport.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func (n *Node) serveQUIC(ctx context.Context) error {
	tlsConf, err := n.serverTLS()
	if err != nil {
		return err
	}
	ln, err := quic.Listen(n.config.Transport.Listen, tlsConf, n.quicConfig(), n.logger)
	if err != nil {
		return err
	}
	defer func() { _ = ln.Close() }()
	n.logger.Info("quic listening", log.String("addr", ln.Addr()))

	for {
		stream, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			n.logger.Warn("quic accept failed", log.Error(err))
			continue
		}
		// One peer at a time: the next Accept waits until this one leaves.
		if err = n.Attach(ctx, stream); err != nil {
			n.logger.Warn("quic peer failed", log.String("conn_id", stream.ID()), log.Error(err))
		}
	}
}

// Dial connects to a listening node at addr and attaches it. For websocket
// addr is a ws:// URL, for quic a host:port.
func (n *Node) Dial(ctx context.Context, addr string) error {
	var t driver.Transport
	switch n.config.Transport.Kind {
	case config.TransportQUIC:
		tlsConf, err := n.clientTLS()
		if err != nil {
			return err
		}
		stream, err := quic.Dial(ctx, addr, tlsConf, n.quicConfig(), n.logger)
		if err != nil {
			return err
		}
		t = stream
	default:
		conn, err := websocket.Dial(ctx, addr, n.websocketConfig(), n.logger)
		if err != nil {
			return err
		}
		t = conn
	}
	return n.Attach(ctx, t)
}

// Run simulates the scene and serves peers until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return n.Simulate(groupCtx) })
	group.Go(func() error { return n.Serve(groupCtx) })
	return group.Wait()
}

func (n *Node) websocketConfig() websocket.Config {
	return websocket.Config{
		WriteTimeout:   n.config.Transport.WriteTimeout,
		MaxMessageSize: int64(n.config.Transport.MaxBatchSize),
	}
}

func (n *Node) quicConfig() quic.Config {
	cfg := quic.DefaultConfig()
	cfg.MaxBatchSize = n.config.Transport.MaxBatchSize
	if n.config.Transport.IdleTimeout > 0 {
		cfg.IdleTimeout = n.config.Transport.IdleTimeout
	}
	return cfg
}

func (n *Node) serverTLS() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(n.config.Transport.CertFile, n.config.Transport.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS13}, nil
}

// clientTLS trusts the node's own certificate, so nodes sharing one
// certificate can reach each other without a CA.
func (n *Node) clientTLS() (*tls.Config, error) {
	pem, err := os.ReadFile(n.config.Transport.CertFile)
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificate in %s", n.config.Transport.CertFile)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS13}, nil
}
