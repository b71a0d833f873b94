package connection

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/xconn/xconn-go/pkg/account"
	xlog "github.com/xconn/xconn-go/pkg/log"
	"github.com/xconn/xconn-go/pkg/transport"
)

const testAccount = account.ID("alice@example.org")

// fakeTransport is a scripted transport. Connect and Login succeed unless
// the corresponding hook returns an error.
type fakeTransport struct {
	mu            sync.Mutex
	connected     bool
	authenticated bool
	connects      int
	logins        int
	lastOpts      transport.ConnectOptions

	connect func(ctx context.Context) error
	login   func(ctx context.Context) error
}

func (f *fakeTransport) Connect(ctx context.Context, opts transport.ConnectOptions) error {
	f.mu.Lock()
	f.connects++
	f.lastOpts = opts
	fn := f.connect
	f.mu.Unlock()

	if fn != nil {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Login(ctx context.Context) error {
	f.mu.Lock()
	f.logins++
	fn := f.login
	f.mu.Unlock()

	if fn != nil {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.authenticated = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) IsAuthenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated
}

func (f *fakeTransport) calls() (connects, logins int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.logins
}

func (f *fakeTransport) options() transport.ConnectOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOpts
}

// blockUntilCancelled returns a hook that signals entered and then blocks
// until ctx is cancelled.
func blockUntilCancelled(entered chan<- struct{}) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if entered != nil {
			entered <- struct{}{}
		}
		<-ctx.Done()
		return transport.NewFault(transport.KindInterrupted, "connect", ctx.Err())
	}
}

// recordingOwner records pushed states.
type recordingOwner struct {
	mu         sync.Mutex
	states     []State
	successful bool
}

func (o *recordingOwner) Account() account.ID { return testAccount }

func (o *recordingOwner) UpdateState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, s)
}

func (o *recordingOwner) SuccessfulConnectionHappened() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.successful
}

func (o *recordingOwner) pushed() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]State(nil), o.states...)
}

// mockAccounts is a testify mock for AccountControl.
type mockAccounts struct {
	mock.Mock
}

func (m *mockAccounts) AddError(rec account.ErrorRecord) {
	m.Called(rec)
}

func (m *mockAccounts) SetEnabled(id account.ID, enabled bool) {
	m.Called(id, enabled)
}

// mockNotifier is a testify mock for Notifier.
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) PublishSticky(rec account.ErrorRecord) {
	m.Called(rec)
}

// countingProbe reports a fixed availability and counts checks.
type countingProbe struct {
	up     atomic.Bool
	checks atomic.Int32
}

func newCountingProbe(up bool) *countingProbe {
	p := &countingProbe{}
	p.up.Store(up)
	return p
}

func (p *countingProbe) Available() bool {
	p.checks.Add(1)
	return p.up.Load()
}

// eventRecorderLog collects attempt events.
type eventRecorderLog struct {
	mu     sync.Mutex
	events []xlog.Event
}

func (l *eventRecorderLog) Log(e xlog.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventRecorderLog) all() []xlog.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]xlog.Event(nil), l.events...)
}
