package transport

import (
	"context"
	"log/slog"

	"github.com/xconn/xconn-go/pkg/resolver"
)

// Transport is the live connection handle driven by a connection attempt.
// Connect and Login block for the duration of network I/O and must return
// promptly once ctx is cancelled.
type Transport interface {
	// Connect opens the connection to the server.
	Connect(ctx context.Context, opts ConnectOptions) error

	// Login authenticates an open connection.
	Login(ctx context.Context) error

	// IsConnected reports whether the connection is open.
	IsConnected() bool

	// IsAuthenticated reports whether the connection is authenticated.
	IsAuthenticated() bool
}

// ConnectOptions carries per-attempt configuration into Connect.
type ConnectOptions struct {
	// Resolver locates the server. Nil means the transport's own default.
	Resolver resolver.Resolver

	// Logger receives protocol diagnostics. Its level reflects the
	// diagnostic verbosity selected for the attempt.
	Logger *slog.Logger
}
