package log

import (
	"sync"
	"testing"
	"time"
)

// recordingLogger records events for testing.
type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestMultiLoggerCallsAll(t *testing.T) {
	r1 := &recordingLogger{}
	r2 := &recordingLogger{}

	multi := NewMultiLogger(r1, nil, r2)
	multi.Log(Event{Timestamp: time.Now(), AttemptID: "attempt-123", Category: CategoryOutcome})

	for i, r := range []*recordingLogger{r1, r2} {
		if len(r.events) != 1 {
			t.Errorf("logger %d: got %d events, want 1", i, len(r.events))
			continue
		}
		if r.events[0].AttemptID != "attempt-123" {
			t.Errorf("logger %d: AttemptID = %q", i, r.events[0].AttemptID)
		}
	}
}

func TestMultiLoggerEmptyList(t *testing.T) {
	NewMultiLogger().Log(Event{AttemptID: "attempt-123"})
	NewMultiLogger(nil).Log(Event{AttemptID: "attempt-123"})
}
