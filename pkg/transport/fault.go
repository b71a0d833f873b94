package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

// Transport errors.
var (
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotConnected  = errors.New("not connected")
	ErrNoTargets     = errors.New("no server address")
)

// Kind is the failure category of a transport fault.
type Kind uint8

const (
	// KindUnknown is an uncategorized runtime fault.
	KindUnknown Kind = iota

	// KindAuthorization is a credential-level rejection.
	KindAuthorization

	// KindProtocol is a stream or negotiation error.
	KindProtocol

	// KindIO is a network or socket error.
	KindIO

	// KindInterrupted is a cancelled blocking call.
	KindInterrupted
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "UNKNOWN"
	case KindAuthorization:
		return "AUTHORIZATION"
	case KindProtocol:
		return "PROTOCOL"
	case KindIO:
		return "IO"
	case KindInterrupted:
		return "INTERRUPTED"
	default:
		return "INVALID"
	}
}

// Fault is an error tagged with its failure category.
type Fault struct {
	Kind Kind
	Op   string // "resolve", "connect", "login"
	Addr string // remote address, if known
	Err  error
}

// NewFault creates a fault of the given kind.
func NewFault(kind Kind, op string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, Err: err}
}

func (f *Fault) Error() string {
	msg := f.Op
	if f.Addr != "" {
		msg += " " + f.Addr
	}
	if f.Err != nil {
		if msg != "" {
			return msg + ": " + f.Err.Error()
		}
		return f.Err.Error()
	}
	return fmt.Sprintf("%s: %s fault", msg, f.Kind)
}

// Unwrap returns the underlying error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// Classify returns the failure category of err.
//
// Cancellation always wins: a fault that wraps context.Canceled is an
// interruption even if it was tagged otherwise. Deadline expiry is an I/O
// failure, not an interruption.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) {
		return KindInterrupted
	}

	var f *Fault
	if errors.As(err, &f) && f.Kind != KindUnknown {
		return f.Kind
	}

	switch {
	case errors.Is(err, ErrNotAuthorized):
		return KindAuthorization
	case errors.Is(err, ErrNotConnected):
		return KindProtocol
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed):
		return KindIO
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindIO
	}
	return KindUnknown
}

// kindOr classifies err, falling back to def for uncategorized errors.
func kindOr(err error, def Kind) Kind {
	if k := Classify(err); k != KindUnknown {
		return k
	}
	return def
}
