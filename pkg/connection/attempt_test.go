package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xconn/xconn-go/pkg/account"
	xlog "github.com/xconn/xconn-go/pkg/log"
	"github.com/xconn/xconn-go/pkg/network"
	"github.com/xconn/xconn-go/pkg/resolver"
	"github.com/xconn/xconn-go/pkg/transport"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// attemptFixture bundles the collaborators of one attempt.
type attemptFixture struct {
	transport *fakeTransport
	owner     *recordingOwner
	accounts  *mockAccounts
	notifier  *mockNotifier
	events    *eventRecorderLog
	network   *network.Switch
}

func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()
	f := &attemptFixture{
		transport: &fakeTransport{},
		owner:     &recordingOwner{},
		accounts:  &mockAccounts{},
		notifier:  &mockNotifier{},
		events:    &eventRecorderLog{},
		network:   network.NewSwitch(true),
	}
	t.Cleanup(func() {
		f.accounts.AssertExpectations(t)
		f.notifier.AssertExpectations(t)
	})
	return f
}

func (f *attemptFixture) deps() Deps {
	return Deps{
		Transport: f.transport,
		Owner:     f.owner,
		Network:   f.network,
		Accounts:  f.accounts,
		Notifier:  f.notifier,
		Logger:    quietLogger(),
		EventLog:  f.events,
	}
}

// expectEscalation sets up the escalation calls and records their order.
func (f *attemptFixture) expectEscalation(kind account.ErrorKind, order *[]string) {
	isKind := mock.MatchedBy(func(rec account.ErrorRecord) bool {
		return rec.Kind == kind && rec.Account == testAccount
	})
	f.accounts.On("AddError", isKind).Run(func(mock.Arguments) {
		*order = append(*order, "AddError")
	}).Once()
	f.accounts.On("SetEnabled", testAccount, false).Run(func(mock.Arguments) {
		*order = append(*order, "SetEnabled")
	}).Once()
	f.notifier.On("PublishSticky", isKind).Run(func(mock.Arguments) {
		*order = append(*order, "PublishSticky")
	}).Once()
}

func (f *attemptFixture) assertNotEscalated(t *testing.T) {
	t.Helper()
	f.accounts.AssertNotCalled(t, "AddError", mock.Anything)
	f.accounts.AssertNotCalled(t, "SetEnabled", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "PublishSticky", mock.Anything)
}

func TestAttempt_NoNetwork(t *testing.T) {
	f := newAttemptFixture(t)
	f.network.Set(false)

	out := Attempt(context.Background(), f.deps(), AttemptConfig{})

	assert.Equal(t, ResultNoNetwork, out.Result)
	assert.NoError(t, out.Err)
	assert.False(t, out.Escalated)
	assert.Equal(t, []State{StateWaiting}, f.owner.pushed())

	connects, logins := f.transport.calls()
	assert.Zero(t, connects)
	assert.Zero(t, logins)
	f.assertNotEscalated(t)
}

func TestAttempt_LogScopeMatchesRunner(t *testing.T) {
	f := newAttemptFixture(t)
	var buf strings.Builder
	deps := f.deps()
	deps.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	Attempt(context.Background(), deps, AttemptConfig{})

	r := NewRunner(RunnerConfig{Transport: f.transport, Owner: f.owner, Logger: quietLogger()})
	assert.Contains(t, buf.String(), fmt.Sprintf("scope=%q", r.String()))
}

func TestAttempt_Completed(t *testing.T) {
	f := newAttemptFixture(t)

	out := Attempt(context.Background(), f.deps(), AttemptConfig{})

	assert.Equal(t, ResultCompleted, out.Result)
	assert.NotEmpty(t, out.AttemptID)
	assert.Equal(t, []State{StateConnecting}, f.owner.pushed())

	connects, logins := f.transport.calls()
	assert.Equal(t, 1, connects)
	assert.Equal(t, 1, logins)
	f.assertNotEscalated(t)
}

func TestAttempt_SkipsCompletedSteps(t *testing.T) {
	t.Run("AlreadyConnected", func(t *testing.T) {
		f := newAttemptFixture(t)
		f.transport.connected = true

		out := Attempt(context.Background(), f.deps(), AttemptConfig{})

		assert.Equal(t, ResultCompleted, out.Result)
		assert.Empty(t, f.owner.pushed(), "no CONNECTING without a connect")
		connects, logins := f.transport.calls()
		assert.Zero(t, connects)
		assert.Equal(t, 1, logins)
	})

	t.Run("AlreadyAuthenticated", func(t *testing.T) {
		f := newAttemptFixture(t)
		f.transport.connected = true
		f.transport.authenticated = true

		out := Attempt(context.Background(), f.deps(), AttemptConfig{})

		assert.Equal(t, ResultCompleted, out.Result)
		connects, logins := f.transport.calls()
		assert.Zero(t, connects)
		assert.Zero(t, logins)
	})
}

func TestAttempt_AuthorizationFailure(t *testing.T) {
	for _, previouslyConnected := range []bool{false, true} {
		t.Run(fmt.Sprintf("previouslyConnected=%v", previouslyConnected), func(t *testing.T) {
			f := newAttemptFixture(t)
			f.owner.successful = previouslyConnected
			f.transport.login = func(context.Context) error {
				return transport.NewFault(transport.KindAuthorization, "login", transport.ErrNotAuthorized)
			}

			var order []string
			f.expectEscalation(account.ErrorAuthorization, &order)

			out := Attempt(context.Background(), f.deps(), AttemptConfig{})

			assert.Equal(t, ResultAuthorizationFailure, out.Result)
			assert.True(t, out.Escalated)
			assert.Equal(t, transport.KindAuthorization, out.Kind)
			assert.True(t, errors.Is(out.Err, transport.ErrNotAuthorized))
			assert.Equal(t, []State{StateConnecting}, f.owner.pushed())
			assert.Equal(t, []string{"AddError", "SetEnabled", "PublishSticky"}, order)
			f.notifier.AssertNumberOfCalls(t, "PublishSticky", 1)
		})
	}
}

func TestAttempt_AuthorizationRecordMessage(t *testing.T) {
	f := newAttemptFixture(t)
	f.transport.login = func(context.Context) error {
		return transport.NewFault(transport.KindAuthorization, "login", transport.ErrNotAuthorized)
	}

	var published account.ErrorRecord
	f.accounts.On("AddError", mock.Anything).Once()
	f.accounts.On("SetEnabled", testAccount, false).Once()
	f.notifier.On("PublishSticky", mock.Anything).Run(func(args mock.Arguments) {
		published = args.Get(0).(account.ErrorRecord)
	}).Once()

	Attempt(context.Background(), f.deps(), AttemptConfig{})

	assert.Equal(t, testAccount, published.Account)
	assert.Equal(t, account.ErrorAuthorization, published.Kind)
	assert.Contains(t, published.Message, "not authorized")
	assert.NotContains(t, published.Message, "caused by", "authorization records carry the message only")
}

func TestAttempt_ConnectionFailure_NeverConnected(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"io", &transport.Fault{Kind: transport.KindIO, Op: "connect", Addr: "192.0.2.1:5222", Err: errors.New("connection refused")}},
		{"protocol", transport.NewFault(transport.KindProtocol, "login", transport.ErrNotConnected)},
		{"uncategorized", errors.New("stream reset")},
		{"deadline", fmt.Errorf("dial: %w", context.DeadlineExceeded)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAttemptFixture(t)
			f.transport.connect = func(context.Context) error { return tt.err }

			var order []string
			f.expectEscalation(account.ErrorConnection, &order)

			out := Attempt(context.Background(), f.deps(), AttemptConfig{})

			assert.Equal(t, ResultConnectionFailure, out.Result)
			assert.True(t, out.Escalated)
			assert.Equal(t, []State{StateConnecting}, f.owner.pushed())
			assert.Equal(t, []string{"AddError", "SetEnabled", "PublishSticky"}, order)

			_, logins := f.transport.calls()
			assert.Zero(t, logins, "login must not run after a failed connect")
		})
	}
}

func TestAttempt_ConnectionFailure_PreviouslyConnected(t *testing.T) {
	f := newAttemptFixture(t)
	f.owner.successful = true
	f.transport.connect = func(context.Context) error {
		return &transport.Fault{Kind: transport.KindIO, Op: "connect", Err: io.ErrUnexpectedEOF}
	}

	out := Attempt(context.Background(), f.deps(), AttemptConfig{})

	assert.Equal(t, ResultConnectionFailure, out.Result)
	assert.False(t, out.Escalated)
	assert.Equal(t, transport.KindIO, out.Kind)
	assert.Equal(t, []State{StateConnecting}, f.owner.pushed())
	f.assertNotEscalated(t)

	var errorEvents int
	for _, e := range f.events.all() {
		if e.Category == xlog.CategoryError {
			errorEvents++
			assert.Empty(t, e.Error.Escalation)
		}
	}
	assert.Equal(t, 1, errorEvents, "the fault is still logged")
}

func TestAttempt_ConnectionFailureMessageIsTrace(t *testing.T) {
	f := newAttemptFixture(t)
	root := errors.New("connection refused")
	f.transport.connect = func(context.Context) error {
		return &transport.Fault{Kind: transport.KindIO, Op: "connect", Addr: "192.0.2.1:5222", Err: root}
	}

	var rec account.ErrorRecord
	f.accounts.On("AddError", mock.Anything).Run(func(args mock.Arguments) {
		rec = args.Get(0).(account.ErrorRecord)
	}).Once()
	f.accounts.On("SetEnabled", testAccount, false).Once()
	f.notifier.On("PublishSticky", mock.Anything).Once()

	Attempt(context.Background(), f.deps(), AttemptConfig{})

	assert.Equal(t, account.ErrorConnection, rec.Kind)
	lines := strings.Split(rec.Message, "\ncaused by: ")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "*transport.Fault: "))
	assert.Equal(t, "*errors.errorString: connection refused", lines[1])
}

func TestAttempt_Interrupted(t *testing.T) {
	t.Run("DuringConnect", func(t *testing.T) {
		f := newAttemptFixture(t)
		entered := make(chan struct{}, 1)
		f.transport.connect = blockUntilCancelled(entered)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-entered
			cancel()
		}()

		out := Attempt(ctx, f.deps(), AttemptConfig{})

		assert.Equal(t, ResultInterrupted, out.Result)
		assert.Equal(t, transport.KindInterrupted, out.Kind)
		assert.False(t, out.Escalated)
		assert.Equal(t, []State{StateConnecting}, f.owner.pushed())
		f.assertNotEscalated(t)
	})

	t.Run("DuringLogin", func(t *testing.T) {
		f := newAttemptFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		f.transport.login = func(ctx context.Context) error {
			cancel()
			<-ctx.Done()
			// A transport that reports the closed socket rather than ctx.Err().
			return &transport.Fault{Kind: transport.KindIO, Op: "login", Err: io.EOF}
		}

		out := Attempt(ctx, f.deps(), AttemptConfig{})

		assert.Equal(t, ResultInterrupted, out.Result)
		f.assertNotEscalated(t)
	})
}

func TestAttempt_PanicIsConnectionFailure(t *testing.T) {
	f := newAttemptFixture(t)
	f.transport.login = func(context.Context) error {
		panic("boom")
	}

	var rec account.ErrorRecord
	f.accounts.On("AddError", mock.Anything).Run(func(args mock.Arguments) {
		rec = args.Get(0).(account.ErrorRecord)
	}).Once()
	f.accounts.On("SetEnabled", testAccount, false).Once()
	f.notifier.On("PublishSticky", mock.Anything).Once()

	out := Attempt(context.Background(), f.deps(), AttemptConfig{})

	assert.Equal(t, ResultConnectionFailure, out.Result)
	assert.Equal(t, transport.KindUnknown, out.Kind)
	assert.Contains(t, rec.Message, "panic: boom")
	assert.Contains(t, rec.Message, "goroutine", "panic trace includes the stack")
}

func TestAttempt_PassesConfiguration(t *testing.T) {
	r, err := resolver.New(resolver.Config{Strategy: resolver.StrategySystem})
	require.NoError(t, err)

	t.Run("ProtocolDebug", func(t *testing.T) {
		f := newAttemptFixture(t)
		Attempt(context.Background(), f.deps(), AttemptConfig{Resolver: r, ProtocolDebug: true})

		opts := f.transport.options()
		assert.Same(t, r, opts.Resolver)
		require.NotNil(t, opts.Logger)
		assert.True(t, opts.Logger.Enabled(context.Background(), slog.LevelDebug))
	})

	t.Run("Quiet", func(t *testing.T) {
		f := newAttemptFixture(t)
		Attempt(context.Background(), f.deps(), AttemptConfig{Resolver: r})

		opts := f.transport.options()
		require.NotNil(t, opts.Logger)
		assert.False(t, opts.Logger.Enabled(context.Background(), slog.LevelDebug))
		assert.True(t, opts.Logger.Enabled(context.Background(), slog.LevelInfo))
	})
}

func TestAttempt_EventLog(t *testing.T) {
	f := newAttemptFixture(t)
	r, err := resolver.New(resolver.Config{Strategy: resolver.StrategySystem})
	require.NoError(t, err)

	out := Attempt(context.Background(), f.deps(), AttemptConfig{Resolver: r})

	events := f.events.all()
	require.Len(t, events, 3)

	categories := make([]xlog.Category, len(events))
	for i, e := range events {
		categories[i] = e.Category
		assert.Equal(t, out.AttemptID, e.AttemptID)
		assert.Equal(t, testAccount.String(), e.Account)
		assert.False(t, e.Timestamp.IsZero())
	}
	assert.Equal(t, []xlog.Category{xlog.CategoryConfig, xlog.CategoryState, xlog.CategoryOutcome}, categories)
	assert.Equal(t, "system", events[0].Resolver.Strategy)
	assert.Equal(t, "CONNECTING", events[1].StateChange.NewState)
	assert.Equal(t, "COMPLETED", events[2].Outcome.Result)
}

func TestAttempt_DefaultsAllowMinimalDeps(t *testing.T) {
	tr := &fakeTransport{}
	out := Attempt(context.Background(), Deps{Transport: tr, Owner: &recordingOwner{}}, AttemptConfig{})
	assert.Equal(t, ResultCompleted, out.Result)

	tr = &fakeTransport{connect: func(context.Context) error { return errors.New("refused") }}
	out = Attempt(context.Background(), Deps{Transport: tr, Owner: &recordingOwner{}}, AttemptConfig{})
	assert.Equal(t, ResultConnectionFailure, out.Result)
	assert.True(t, out.Escalated)
	assert.Less(t, out.Duration, time.Minute)
}

func TestFaultTrace(t *testing.T) {
	root := errors.New("refused")
	err := fmt.Errorf("connect example.org: %w", &transport.Fault{Kind: transport.KindIO, Op: "connect", Err: root})

	trace := FaultTrace(err)
	lines := strings.Split(trace, "\ncaused by: ")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "*fmt.wrapError: connect example.org"))
	assert.True(t, strings.HasPrefix(lines[1], "*transport.Fault: "))
	assert.Equal(t, "*errors.errorString: refused", lines[2])

	assert.Empty(t, FaultTrace(nil))
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "NO_NETWORK", ResultNoNetwork.String())
	assert.Equal(t, "AUTHORIZATION_FAILURE", ResultAuthorizationFailure.String())
	assert.Equal(t, "UNKNOWN", Result(99).String())
}
