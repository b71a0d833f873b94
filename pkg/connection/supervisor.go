package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/xconn/xconn-go/pkg/account"
)

// EnabledSource reports whether an account may connect.
type EnabledSource interface {
	Enabled(id account.ID) bool
}

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	// Runner is the runner to drive. Required.
	Runner *Runner

	// Accounts gates attempts on the account's enabled flag. Nil treats
	// the account as always enabled.
	Accounts EnabledSource

	// Backoff configures retry delays.
	Backoff BackoffConfig

	// Clock drives retry timers (default: wall clock).
	Clock clock.Clock

	// Logger for operational output (default: slog.Default()).
	Logger *slog.Logger
}

// Supervisor is the retry loop around a Runner. It starts an attempt,
// waits for it to finish and decides when to start the next one:
//
//   - COMPLETED: reset backoff, wait for Trigger
//   - NO_NETWORK or a transient connection failure: wait for the backoff
//     delay or Trigger
//   - INTERRUPTED or a disabled account: wait for Trigger
type Supervisor struct {
	runner   *Runner
	accounts EnabledSource
	backoff  *Backoff
	clock    clock.Clock
	logger   *slog.Logger

	trigger chan struct{}

	mu      sync.Mutex
	onRetry func(attempt int, delay time.Duration)
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(config SupervisorConfig) *Supervisor {
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Supervisor{
		runner:   config.Runner,
		accounts: config.Accounts,
		backoff:  NewBackoff(config.Backoff),
		clock:    config.Clock,
		logger:   config.Logger.With("scope", config.Runner.String()),
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger wakes the supervisor for an immediate attempt, e.g. after the
// network came back or the account was enabled. It never blocks.
func (s *Supervisor) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
		// Already pending
	}
}

// OnRetry sets a callback invoked before each backoff wait.
func (s *Supervisor) OnRetry(fn func(attempt int, delay time.Duration)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRetry = fn
}

// BackoffAttempts returns the number of consecutive retries.
func (s *Supervisor) BackoffAttempts() int {
	return s.backoff.Attempts()
}

// Run drives the runner until ctx is cancelled. A running attempt is
// interrupted and awaited before Run returns. Run always returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if !s.enabled() {
			s.logger.Debug("account disabled, waiting for trigger")
			if !s.wait(ctx, 0) {
				return nil
			}
			continue
		}

		t, _ := s.runner.startTask()
		select {
		case <-t.done:
		case <-ctx.Done():
			s.runner.Interrupt()
			<-t.done
			return nil
		}

		out := t.outcome
		var delay time.Duration
		switch {
		case out.Escalated:
			// The account is disabled now.
		case out.Result == ResultCompleted:
			s.backoff.Reset()
		case out.Result == ResultNoNetwork, out.Result == ResultConnectionFailure:
			delay = s.backoff.Next()
			s.logger.Debug("retry scheduled", "result", out.Result.String(), "delay", delay)
			s.mu.Lock()
			fn := s.onRetry
			s.mu.Unlock()
			if fn != nil {
				fn(s.backoff.Attempts(), delay)
			}
		}

		if !s.wait(ctx, delay) {
			return nil
		}
	}
}

func (s *Supervisor) enabled() bool {
	if s.accounts == nil {
		return true
	}
	return s.accounts.Enabled(s.runner.Owner().Account())
}

// wait blocks until Trigger, the delay (if positive) or ctx is done.
// It returns false when ctx is done.
func (s *Supervisor) wait(ctx context.Context, delay time.Duration) bool {
	var timeout <-chan time.Time
	if delay > 0 {
		timer := s.clock.Timer(delay)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return false
	case <-s.trigger:
		return true
	case <-timeout:
		return true
	}
}
