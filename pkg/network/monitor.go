package network

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultPollInterval is how often a Monitor samples its probe.
const DefaultPollInterval = 5 * time.Second

// Mode selects how an Override answers.
type Mode int32

const (
	// ModeAuto delegates to the underlying probe.
	ModeAuto Mode = iota
	// ModeUp reports the network as available.
	ModeUp
	// ModeDown reports the network as unavailable.
	ModeDown
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeUp:
		return "up"
	case ModeDown:
		return "down"
	default:
		return "unknown"
	}
}

// Override wraps a probe with a manually forced state.
type Override struct {
	base Probe
	mode atomic.Int32
}

// NewOverride creates an Override in ModeAuto.
func NewOverride(base Probe) *Override {
	return &Override{base: base}
}

// SetMode changes the forced state.
func (o *Override) SetMode(m Mode) { o.mode.Store(int32(m)) }

// Mode returns the forced state.
func (o *Override) Mode() Mode { return Mode(o.mode.Load()) }

// Available applies the forced state, if any.
func (o *Override) Available() bool {
	switch o.Mode() {
	case ModeUp:
		return true
	case ModeDown:
		return false
	default:
		return o.base.Available()
	}
}

// Monitor samples a probe and reports availability changes.
type Monitor struct {
	probe    Probe
	interval time.Duration
	clock    clock.Clock
}

// NewMonitor creates a Monitor. A zero interval uses DefaultPollInterval;
// a nil clk uses the wall clock.
func NewMonitor(probe Probe, interval time.Duration, clk clock.Clock) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Monitor{probe: probe, interval: interval, clock: clk}
}

// Run calls fn with the new state whenever availability changes, until
// ctx is done. The initial sample is not reported.
func (m *Monitor) Run(ctx context.Context, fn func(up bool)) {
	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()

	last := m.probe.Available()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			up := m.probe.Available()
			if up != last {
				last = up
				fn(up)
			}
		}
	}
}

var _ Probe = (*Override)(nil)
