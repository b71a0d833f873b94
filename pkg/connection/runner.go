package connection

import (
	"context"
	"log/slog"
	"sync/atomic"

	xlog "github.com/xconn/xconn-go/pkg/log"
	"github.com/xconn/xconn-go/pkg/network"
	"github.com/xconn/xconn-go/pkg/transport"
)

// Phase is the lifecycle phase of a runner task.
type Phase uint32

const (
	// PhaseIdle indicates a task that has not been started.
	PhaseIdle Phase = iota

	// PhaseRunning indicates a task whose attempt is executing.
	PhaseRunning

	// PhaseFinished indicates a task whose attempt has ended.
	PhaseFinished
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseRunning:
		return "RUNNING"
	case PhaseFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Transport is the connection handle. Required.
	Transport transport.Transport

	// Owner is the connection context of the account. Required.
	Owner Owner

	// Network reports reachability (default: always available).
	Network network.Probe

	// Accounts records errors and disables accounts.
	Accounts AccountControl

	// Notifier publishes sticky errors.
	Notifier Notifier

	// Settings supplies the configuration of each attempt.
	Settings SettingsSource

	// Logger for operational output (default: slog.Default()).
	Logger *slog.Logger

	// EventLog receives attempt events (default: discarded).
	EventLog xlog.Logger

	// Metrics records attempt metrics. Nil disables metrics.
	Metrics *Metrics

	// BaseContext is the parent of every attempt context
	// (default: context.Background()).
	BaseContext context.Context
}

// task is one execution of an attempt. Its phase only moves forward:
// Start moves it from idle to running, the worker from running to finished.
type task struct {
	phase   atomic.Uint32
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome
}

// Runner owns the restartable attempt task of one account. At most one
// attempt runs at a time. The zero value is not usable; use NewRunner.
type Runner struct {
	deps     Deps
	settings SettingsSource
	baseCtx  context.Context

	current atomic.Pointer[task]
	last    atomic.Pointer[Outcome]
}

// NewRunner creates a Runner with an idle task.
func NewRunner(config RunnerConfig) *Runner {
	if config.BaseContext == nil {
		config.BaseContext = context.Background()
	}
	if config.Settings == nil {
		config.Settings = StaticSettings{}
	}

	r := &Runner{
		deps: Deps{
			Transport: config.Transport,
			Owner:     config.Owner,
			Network:   config.Network,
			Accounts:  config.Accounts,
			Notifier:  config.Notifier,
			Logger:    config.Logger,
			EventLog:  config.EventLog,
			Metrics:   config.Metrics,
		}.withDefaults(),
		settings: config.Settings,
		baseCtx:  config.BaseContext,
	}
	r.current.Store(r.newTask())
	return r
}

func (r *Runner) newTask() *task {
	ctx, cancel := context.WithCancel(r.baseCtx)
	return &task{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// Start starts an attempt in the background. A finished task is first
// replaced by a fresh one. Start returns false, and changes nothing, if an
// attempt is already running.
func (r *Runner) Start() bool {
	_, started := r.startTask()
	return started
}

// startTask is Start that also returns the task which is now current.
func (r *Runner) startTask() (*task, bool) {
	for {
		t := r.current.Load()
		if Phase(t.phase.Load()) == PhaseFinished {
			fresh := r.newTask()
			if !r.current.CompareAndSwap(t, fresh) {
				fresh.cancel()
				continue
			}
			t = fresh
		}
		if !t.phase.CompareAndSwap(uint32(PhaseIdle), uint32(PhaseRunning)) {
			return t, false
		}
		go r.run(t)
		return t, true
	}
}

// run is the worker body of a task.
func (r *Runner) run(t *task) {
	r.deps.Metrics.running(1)
	defer func() {
		r.deps.Metrics.running(-1)
		t.cancel()
		out := t.outcome
		r.last.Store(&out)
		t.phase.Store(uint32(PhaseFinished))
		close(t.done)
	}()

	t.outcome = Attempt(t.ctx, r.deps, r.settings.AttemptConfig())
}

// Interrupt cancels the running attempt. It has no effect when no attempt
// is running.
func (r *Runner) Interrupt() {
	t := r.current.Load()
	if Phase(t.phase.Load()) == PhaseRunning {
		t.cancel()
	}
}

// Phase returns the phase of the current task.
func (r *Runner) Phase() Phase {
	return Phase(r.current.Load().phase.Load())
}

// Done returns a channel that is closed when the current task finishes.
func (r *Runner) Done() <-chan struct{} {
	return r.current.Load().done
}

// LastOutcome returns the outcome of the most recently finished attempt.
// Result is ResultNone if no attempt has finished yet.
func (r *Runner) LastOutcome() Outcome {
	if out := r.last.Load(); out != nil {
		return *out
	}
	return Outcome{}
}

// Owner returns the connection context the runner reports to.
func (r *Runner) Owner() Owner {
	return r.deps.Owner
}

// String returns the runner's log scope.
func (r *Runner) String() string {
	return logScope(r.deps.Owner.Account())
}
