package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/xconn/xconn-go/pkg/resolver"
)

// DefaultClientPort is used when no SRV record is published for a domain.
const DefaultClientPort = 5222

// DefaultDialTimeout bounds a single TCP dial when ctx has no deadline.
const DefaultDialTimeout = 30 * time.Second

// Authenticator authenticates an open connection. It must honour ctx; the
// transport additionally expires the connection deadline when ctx is
// cancelled so blocked reads and writes return.
type Authenticator func(ctx context.Context, conn net.Conn) error

// TCPConfig configures a TCPTransport.
type TCPConfig struct {
	// Domain is the service domain of the account.
	Domain string

	// Host and Port override resolver lookup when Host is set.
	Host string
	Port int

	// DialTimeout is the per-target dial timeout (default: 30s).
	DialTimeout time.Duration

	// Authenticator performs login. Nil accepts the connection as
	// authenticated once it is open.
	Authenticator Authenticator

	// OnAuthenticated is called after a successful login.
	OnAuthenticated func()

	// OnDisconnected is called when an authenticated connection is lost.
	// It is not called after Close.
	OnDisconnected func(err error)

	// OnFrame receives frames the server sends after login.
	OnFrame func(payload []byte)
}

// TCPTransport is a Transport over a plain TCP connection.
type TCPTransport struct {
	config TCPConfig

	mu            sync.Mutex
	conn          net.Conn
	authenticated bool
	logger        *slog.Logger
}

// NewTCPTransport creates a TCPTransport.
func NewTCPTransport(config TCPConfig) *TCPTransport {
	if config.DialTimeout == 0 {
		config.DialTimeout = DefaultDialTimeout
	}
	if config.Port == 0 {
		config.Port = DefaultClientPort
	}
	return &TCPTransport{
		config: config,
		logger: slog.Default(),
	}
}

// Connect resolves the server and dials the first reachable target.
func (t *TCPTransport) Connect(ctx context.Context, opts ConnectOptions) error {
	if opts.Logger != nil {
		t.mu.Lock()
		t.logger = opts.Logger
		t.mu.Unlock()
	}
	logger := t.log()

	targets, err := t.targets(ctx, opts.Resolver)
	if err != nil {
		return err
	}

	var lastErr error
	for _, target := range targets {
		addr := target.Address()
		logger.Debug("dialing", "addr", addr)

		dialCtx, cancel := context.WithTimeout(ctx, t.config.DialTimeout)
		conn, err := (&net.Dialer{}).DialContext(dialCtx, "tcp", addr)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return &Fault{Kind: KindInterrupted, Op: "connect", Addr: addr, Err: ctx.Err()}
			}
			logger.Debug("dial failed", "addr", addr, "error", err)
			lastErr = &Fault{Kind: kindOr(err, KindIO), Op: "connect", Addr: addr, Err: err}
			continue
		}

		t.mu.Lock()
		if t.conn != nil {
			t.conn.Close()
		}
		t.conn = conn
		t.authenticated = false
		t.mu.Unlock()

		logger.Debug("connected", "addr", addr)
		return nil
	}
	return lastErr
}

// targets returns the dial targets in preference order.
func (t *TCPTransport) targets(ctx context.Context, r resolver.Resolver) ([]resolver.Target, error) {
	if t.config.Host != "" {
		return []resolver.Target{{Host: t.config.Host, Port: uint16(t.config.Port)}}, nil
	}
	if t.config.Domain == "" {
		return nil, NewFault(KindProtocol, "resolve", ErrNoTargets)
	}

	fallback := []resolver.Target{{Host: t.config.Domain, Port: DefaultClientPort}}
	if r == nil {
		return fallback, nil
	}

	targets, err := r.LookupClient(ctx, t.config.Domain)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewFault(KindInterrupted, "resolve", ctx.Err())
		}
		return nil, &Fault{Kind: kindOr(err, KindIO), Op: "resolve", Addr: t.config.Domain, Err: err}
	}
	if len(targets) == 0 {
		t.log().Debug("no SRV records, using domain",
			"domain", t.config.Domain, "port", strconv.Itoa(DefaultClientPort))
		return fallback, nil
	}
	return targets, nil
}

// Login authenticates the open connection. On failure or interruption the
// connection is closed, and the next attempt must Connect again.
func (t *TCPTransport) Login(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	auth := t.config.Authenticator
	t.mu.Unlock()

	if conn == nil {
		return NewFault(KindProtocol, "login", ErrNotConnected)
	}

	if auth != nil {
		stop := context.AfterFunc(ctx, func() {
			conn.SetDeadline(time.Now())
		})
		err := auth(ctx, conn)
		stop()
		if ctx.Err() != nil {
			t.discard(conn)
			return &Fault{Kind: KindInterrupted, Op: "login", Err: ctx.Err()}
		}
		if err != nil {
			// A half-finished login leaves the stream in an unknown state.
			t.discard(conn)
			var f *Fault
			if errors.As(err, &f) {
				return err
			}
			return &Fault{Kind: kindOr(err, KindProtocol), Op: "login", Err: err}
		}
		conn.SetDeadline(time.Time{})
	}

	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return NewFault(KindIO, "login", net.ErrClosed)
	}
	t.authenticated = true
	onAuth := t.config.OnAuthenticated
	t.mu.Unlock()

	t.log().Debug("authenticated", "addr", conn.RemoteAddr().String())
	if onAuth != nil {
		onAuth()
	}
	go t.monitor(conn)
	return nil
}

// monitor reads frames from an authenticated connection until it fails.
func (t *TCPTransport) monitor(conn net.Conn) {
	reader := NewFrameReader(conn, 0)
	for {
		payload, err := reader.ReadFrame()
		if err != nil {
			t.lost(conn, err)
			return
		}
		t.log().Debug("frame received", "size", FrameSize(len(payload)))
		if t.config.OnFrame != nil {
			t.config.OnFrame(payload)
		}
	}
}

// lost drops conn if it is still current and reports the loss.
func (t *TCPTransport) lost(conn net.Conn, err error) {
	t.mu.Lock()
	if t.conn != conn {
		// Closed or replaced; not a loss.
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.authenticated = false
	onLost := t.config.OnDisconnected
	t.mu.Unlock()

	conn.Close()
	t.log().Info("connection lost", "error", err)
	if onLost != nil {
		onLost(err)
	}
}

// discard closes conn and forgets it if it is still current, so the next
// attempt dials again.
func (t *TCPTransport) discard(conn net.Conn) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
		t.authenticated = false
	}
	t.mu.Unlock()
	conn.Close()
}

// IsConnected reports whether a connection is open.
func (t *TCPTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// IsAuthenticated reports whether the connection has logged in.
func (t *TCPTransport) IsAuthenticated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil && t.authenticated
}

// Conn returns the underlying connection, or nil.
func (t *TCPTransport) Conn() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// Close closes the connection. It is safe to call Close multiple times.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.authenticated = false
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func (t *TCPTransport) log() *slog.Logger {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.logger
}

// Compile-time interface satisfaction check.
var _ Transport = (*TCPTransport)(nil)
