package transport

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/fxamacker/cbor/v2"
)

// Login conditions returned by the server.
const (
	ConditionNotAuthorized   = "not-authorized"
	ConditionAccountDisabled = "account-disabled"
)

// LoginRequest is the first frame a client sends on an open connection.
type LoginRequest struct {
	Username string `cbor:"1,keyasint"`
	Password string `cbor:"2,keyasint"`
	Resource string `cbor:"3,keyasint,omitempty"`
}

// LoginResponse is the server's answer to a LoginRequest.
type LoginResponse struct {
	Success bool `cbor:"1,keyasint"`

	// Condition names the failure; empty on success.
	Condition string `cbor:"2,keyasint,omitempty"`

	// Text is an optional human-readable description.
	Text string `cbor:"3,keyasint,omitempty"`
}

// LoginError is a rejected login.
type LoginError struct {
	Condition string
	Text      string
}

func (e *LoginError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("login rejected: %s (%s)", e.Condition, e.Text)
	}
	return "login rejected: " + e.Condition
}

// Is reports credential-level conditions as ErrNotAuthorized.
func (e *LoginError) Is(target error) bool {
	if target != ErrNotAuthorized {
		return false
	}
	return e.Condition == ConditionNotAuthorized || e.Condition == ConditionAccountDisabled
}

// Credentials returns the password for an account when a login starts.
// Credentials are requested per login and never stored by the transport.
type Credentials func(ctx context.Context) (username, password string, err error)

// FrameAuthenticator returns an Authenticator that performs a single
// CBOR login exchange over length-prefixed frames.
func FrameAuthenticator(creds Credentials, resource string) Authenticator {
	return func(ctx context.Context, conn net.Conn) error {
		username, password, err := creds(ctx)
		if err != nil {
			return NewFault(KindAuthorization, "login", fmt.Errorf("credentials: %w", err))
		}

		req, err := cbor.Marshal(LoginRequest{Username: username, Password: password, Resource: resource})
		if err != nil {
			return NewFault(KindProtocol, "login", err)
		}

		framer := NewFramer(conn)
		if err := framer.WriteFrame(req); err != nil {
			return NewFault(KindIO, "login", err)
		}

		data, err := framer.ReadFrame()
		if err != nil {
			if errors.Is(err, ErrFrameTruncated) || errors.Is(err, ErrMessageTooLarge) || errors.Is(err, ErrMessageEmpty) {
				return NewFault(KindProtocol, "login", err)
			}
			return NewFault(KindIO, "login", err)
		}

		var resp LoginResponse
		if err := cbor.Unmarshal(data, &resp); err != nil {
			return NewFault(KindProtocol, "login", fmt.Errorf("decode response: %w", err))
		}
		if resp.Success {
			return nil
		}

		lerr := &LoginError{Condition: resp.Condition, Text: resp.Text}
		if errors.Is(lerr, ErrNotAuthorized) {
			return NewFault(KindAuthorization, "login", lerr)
		}
		return NewFault(KindProtocol, "login", lerr)
	}
}
