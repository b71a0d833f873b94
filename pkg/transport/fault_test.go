package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"canceled", context.Canceled, KindInterrupted},
		{"wrapped canceled", fmt.Errorf("dial: %w", context.Canceled), KindInterrupted},
		{"canceled wins over tag", &Fault{Kind: KindIO, Err: context.Canceled}, KindInterrupted},
		{"authorization fault", NewFault(KindAuthorization, "login", errors.New("bad password")), KindAuthorization},
		{"not authorized sentinel", fmt.Errorf("sasl: %w", ErrNotAuthorized), KindAuthorization},
		{"protocol fault", NewFault(KindProtocol, "login", errors.New("bad stream")), KindProtocol},
		{"not connected", ErrNotConnected, KindProtocol},
		{"deadline", context.DeadlineExceeded, KindIO},
		{"os deadline", os.ErrDeadlineExceeded, KindIO},
		{"eof", io.EOF, KindIO},
		{"closed", net.ErrClosed, KindIO},
		{"net op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, KindIO},
		{"untagged fault", &Fault{Op: "connect", Err: io.ErrUnexpectedEOF}, KindIO},
		{"plain", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFaultError(t *testing.T) {
	root := errors.New("connection refused")
	f := &Fault{Kind: KindIO, Op: "connect", Addr: "192.0.2.1:5222", Err: root}

	assert.Equal(t, "connect 192.0.2.1:5222: connection refused", f.Error())
	assert.True(t, errors.Is(f, root))
	assert.Equal(t, "login: PROTOCOL fault", (&Fault{Kind: KindProtocol, Op: "login"}).Error())
	assert.Equal(t, "IO", KindIO.String())
	assert.Equal(t, "INVALID", Kind(99).String())
}

func TestLoginErrorIsNotAuthorized(t *testing.T) {
	assert.True(t, errors.Is(&LoginError{Condition: ConditionNotAuthorized}, ErrNotAuthorized))
	assert.True(t, errors.Is(&LoginError{Condition: ConditionAccountDisabled}, ErrNotAuthorized))
	assert.False(t, errors.Is(&LoginError{Condition: "policy-violation"}, ErrNotAuthorized))
	assert.Equal(t, "login rejected: not-authorized (wrong password)",
		(&LoginError{Condition: ConditionNotAuthorized, Text: "wrong password"}).Error())
}
