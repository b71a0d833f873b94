package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes attempt events to an slog.Logger.
// Useful for development when you want to see attempt events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("attempt_id", event.AttemptID),
		slog.String("account", event.Account),
		slog.String("category", event.Category.String()),
	}

	switch {
	case event.StateChange != nil:
		attrs = append(attrs, slog.String("new_state", event.StateChange.NewState))
		if event.StateChange.OldState != "" {
			attrs = append(attrs, slog.String("old_state", event.StateChange.OldState))
		}
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Resolver != nil:
		attrs = append(attrs,
			slog.String("resolver", event.Resolver.Strategy),
			slog.Bool("protocol_debug", event.Resolver.ProtocolDebug),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_kind", event.Error.Kind),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Escalation != "" {
			attrs = append(attrs, slog.String("escalation", event.Error.Escalation))
		}
	case event.Outcome != nil:
		attrs = append(attrs,
			slog.String("result", event.Outcome.Result),
			slog.Bool("escalated", event.Outcome.Escalated),
			slog.Duration("duration", event.Outcome.Duration),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "attempt", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
