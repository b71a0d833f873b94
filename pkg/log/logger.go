package log

// Logger is the interface applications implement to receive attempt events.
// Pass nil or NoopLogger to disable logging.
type Logger interface {
	// Log records an attempt event. Implementations must be thread-safe and
	// must not block the attempt for long.
	Log(event Event)
}

// NoopLogger discards all events.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}
