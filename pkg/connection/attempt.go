package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xconn/xconn-go/pkg/account"
	xlog "github.com/xconn/xconn-go/pkg/log"
	"github.com/xconn/xconn-go/pkg/network"
	"github.com/xconn/xconn-go/pkg/resolver"
	"github.com/xconn/xconn-go/pkg/transport"
)

// Owner is the connection context an attempt reports to.
type Owner interface {
	Account() account.ID
	UpdateState(State)
	SuccessfulConnectionHappened() bool
}

// AccountControl records account errors and disables accounts.
type AccountControl interface {
	AddError(account.ErrorRecord)
	SetEnabled(id account.ID, enabled bool)
}

// Notifier publishes errors that stay visible until dismissed.
type Notifier interface {
	PublishSticky(account.ErrorRecord)
}

// AttemptConfig is the configuration a single attempt runs with.
type AttemptConfig struct {
	// Resolver locates the server. Nil leaves the choice to the transport.
	Resolver resolver.Resolver

	// ProtocolDebug enables debug-level transport diagnostics.
	ProtocolDebug bool
}

// SettingsSource supplies the configuration for the next attempt.
type SettingsSource interface {
	AttemptConfig() AttemptConfig
}

// StaticSettings is a SettingsSource that never changes.
type StaticSettings AttemptConfig

// AttemptConfig returns s.
func (s StaticSettings) AttemptConfig() AttemptConfig { return AttemptConfig(s) }

// Deps are the collaborators of an attempt. Transport and Owner are
// required; the rest fall back to no-op defaults.
type Deps struct {
	Transport transport.Transport
	Owner     Owner
	Network   network.Probe
	Accounts  AccountControl
	Notifier  Notifier
	Logger    *slog.Logger
	EventLog  xlog.Logger
	Metrics   *Metrics
}

func (d Deps) withDefaults() Deps {
	if d.Network == nil {
		d.Network = network.ProbeFunc(func() bool { return true })
	}
	if d.Accounts == nil {
		d.Accounts = noopAccounts{}
	}
	if d.Notifier == nil {
		d.Notifier = noopNotifier{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.EventLog == nil {
		d.EventLog = xlog.NoopLogger{}
	}
	return d
}

type noopAccounts struct{}

func (noopAccounts) AddError(account.ErrorRecord) {}
func (noopAccounts) SetEnabled(account.ID, bool) {}

type noopNotifier struct{}

func (noopNotifier) PublishSticky(account.ErrorRecord) {}

// Result is the terminal result of an attempt.
type Result uint8

const (
	// ResultNone means no attempt has finished yet.
	ResultNone Result = iota

	// ResultNoNetwork means the network was unavailable; nothing was tried.
	ResultNoNetwork

	// ResultCompleted means the transport is connected and authenticated.
	ResultCompleted

	// ResultAuthorizationFailure means the server rejected the credentials.
	ResultAuthorizationFailure

	// ResultConnectionFailure means connect or login failed for any other
	// reason.
	ResultConnectionFailure

	// ResultInterrupted means the attempt was cancelled.
	ResultInterrupted
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case ResultNone:
		return "NONE"
	case ResultNoNetwork:
		return "NO_NETWORK"
	case ResultCompleted:
		return "COMPLETED"
	case ResultAuthorizationFailure:
		return "AUTHORIZATION_FAILURE"
	case ResultConnectionFailure:
		return "CONNECTION_FAILURE"
	case ResultInterrupted:
		return "INTERRUPTED"
	default:
		return "UNKNOWN"
	}
}

// Outcome describes how an attempt ended.
type Outcome struct {
	// AttemptID identifies the attempt in logs and events.
	AttemptID string

	Result Result

	// Err is the fault for failed or interrupted attempts.
	Err error

	// Kind is the transport classification of Err.
	Kind transport.Kind

	// Escalated is true when the account was disabled and a sticky error
	// was published.
	Escalated bool

	Duration time.Duration
}

// logScope is the log scope of the runner and attempts of an account.
func logScope(id account.ID) string {
	return "Runner: " + id.String()
}

// Attempt runs one connection attempt: network check, connect, login.
// Faults never escape; they are classified into the Outcome and, where
// required, escalated to the account.
func Attempt(ctx context.Context, deps Deps, cfg AttemptConfig) (out Outcome) {
	deps = deps.withDefaults()
	acct := deps.Owner.Account()

	out.AttemptID = uuid.NewString()
	logger := deps.Logger.With("scope", logScope(acct), "attempt_id", out.AttemptID)
	events := eventRecorder{log: deps.EventLog, attemptID: out.AttemptID, account: acct.String()}

	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		deps.Metrics.observeAttempt(out.Result)
		events.outcome(out)
	}()

	if !deps.Network.Available() {
		logger.Info("no network available, waiting")
		events.state(StateWaiting)
		deps.Owner.UpdateState(StateWaiting)
		out.Result = ResultNoNetwork
		return out
	}

	events.config(cfg)
	opts := transport.ConnectOptions{
		Resolver: cfg.Resolver,
		Logger:   protocolLogger(logger, cfg.ProtocolDebug),
	}

	err := guard(func() error {
		t := deps.Transport
		if !t.IsConnected() {
			events.state(StateConnecting)
			deps.Owner.UpdateState(StateConnecting)
			logger.Info("connecting")
			if err := t.Connect(ctx, opts); err != nil {
				return err
			}
		}
		if !t.IsAuthenticated() {
			return t.Login(ctx)
		}
		return nil
	})
	if err == nil {
		logger.Info("connection attempt completed")
		out.Result = ResultCompleted
		return out
	}

	out.Err = err
	out.Kind = transport.Classify(err)
	if out.Kind != transport.KindInterrupted && errors.Is(ctx.Err(), context.Canceled) {
		out.Kind = transport.KindInterrupted
	}

	switch out.Kind {
	case transport.KindInterrupted:
		logger.Info("connection attempt interrupted", "error", err)
		events.fault(out.Kind, err, "")
		out.Result = ResultInterrupted

	case transport.KindAuthorization:
		logger.Error("authorization failed", "error", err)
		out.Result = ResultAuthorizationFailure
		escalate(deps, events, acct, account.ErrorAuthorization, out.Kind, err, err.Error())
		out.Escalated = true

	default:
		logger.Error("connection failed", "kind", out.Kind.String(), "error", err)
		out.Result = ResultConnectionFailure
		if deps.Owner.SuccessfulConnectionHappened() {
			events.fault(out.Kind, err, "")
			break
		}
		escalate(deps, events, acct, account.ErrorConnection, out.Kind, err, FaultTrace(err))
		out.Escalated = true
	}
	return out
}

// escalate records the error, disables the account and publishes the
// record as a sticky notification, in that order.
func escalate(deps Deps, events eventRecorder, acct account.ID, kind account.ErrorKind,
	fault transport.Kind, err error, message string) {
	rec := account.NewErrorRecord(acct, kind, message)
	deps.Accounts.AddError(rec)
	deps.Accounts.SetEnabled(acct, false)
	deps.Notifier.PublishSticky(rec)

	deps.Metrics.observeDisabled(kind)
	events.fault(fault, err, kind.String())
}

// panicError is a panic recovered from the transport.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// guard runs fn and converts a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return fn()
}

// FaultTrace renders the error chain of err, outermost first, one layer
// per line. A recovered panic includes its stack.
func FaultTrace(err error) string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, fmt.Sprintf("%T: %s", e, e.Error()))
		if p, ok := e.(*panicError); ok {
			lines = append(lines, strings.TrimRight(string(p.stack), "\n"))
		}
	}
	return strings.Join(lines, "\ncaused by: ")
}

// protocolLogger returns the logger handed to the transport. With debug
// enabled it emits debug records regardless of the base handler's level;
// otherwise transport output starts at info.
func protocolLogger(base *slog.Logger, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(&levelHandler{level: level, handler: base.Handler()}).With("component", "transport")
}

// levelHandler overrides the minimum level of a wrapped handler.
type levelHandler struct {
	level   slog.Level
	handler slog.Handler
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithGroup(name)}
}

// eventRecorder writes the attempt's events to the event log.
type eventRecorder struct {
	log       xlog.Logger
	attemptID string
	account   string
}

func (r eventRecorder) emit(e xlog.Event) {
	e.Timestamp = time.Now()
	e.AttemptID = r.attemptID
	e.Account = r.account
	r.log.Log(e)
}

func (r eventRecorder) state(s State) {
	r.emit(xlog.Event{
		Category:    xlog.CategoryState,
		StateChange: &xlog.StateChangeEvent{NewState: s.String()},
	})
}

func (r eventRecorder) config(cfg AttemptConfig) {
	strategy := ""
	if cfg.Resolver != nil {
		strategy = string(cfg.Resolver.Strategy())
	}
	r.emit(xlog.Event{
		Category: xlog.CategoryConfig,
		Resolver: &xlog.ResolverEvent{Strategy: strategy, ProtocolDebug: cfg.ProtocolDebug},
	})
}

func (r eventRecorder) fault(kind transport.Kind, err error, escalation string) {
	r.emit(xlog.Event{
		Category: xlog.CategoryError,
		Error: &xlog.ErrorEventData{
			Kind:       kind.String(),
			Message:    err.Error(),
			Escalation: escalation,
		},
	})
}

func (r eventRecorder) outcome(out Outcome) {
	r.emit(xlog.Event{
		Category: xlog.CategoryOutcome,
		Outcome: &xlog.OutcomeEvent{
			Result:    out.Result.String(),
			Escalated: out.Escalated,
			Duration:  out.Duration,
		},
	})
}
