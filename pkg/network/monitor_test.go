package network

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverride(t *testing.T) {
	base := NewSwitch(false)
	o := NewOverride(base)
	assert.Equal(t, ModeAuto, o.Mode())
	assert.False(t, o.Available())

	base.Set(true)
	assert.True(t, o.Available())

	o.SetMode(ModeDown)
	assert.False(t, o.Available())
	assert.Equal(t, "down", o.Mode().String())

	base.Set(false)
	o.SetMode(ModeUp)
	assert.True(t, o.Available())
}

func TestMonitor_ReportsChanges(t *testing.T) {
	clk := clock.NewMock()
	sw := NewSwitch(true)
	m := NewMonitor(sw, time.Second, clk)

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan bool, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx, func(up bool) { changes <- up })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Let Run take its initial sample and register the ticker.
	time.Sleep(20 * time.Millisecond)

	clk.Add(time.Second)
	select {
	case up := <-changes:
		t.Fatalf("unexpected change %v without a transition", up)
	case <-time.After(20 * time.Millisecond):
	}

	sw.Set(false)
	clk.Add(time.Second)
	require.Eventually(t, func() bool { return len(changes) == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, <-changes)

	sw.Set(true)
	clk.Add(time.Second)
	require.Eventually(t, func() bool { return len(changes) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, <-changes)
}

func TestMonitor_Defaults(t *testing.T) {
	m := NewMonitor(NewSwitch(true), 0, nil)
	assert.Equal(t, DefaultPollInterval, m.interval)
	assert.NotNil(t, m.clock)
}
