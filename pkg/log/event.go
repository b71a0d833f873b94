package log

import (
	"time"
)

// Event represents one attempt log event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// AttemptID uniquely identifies the connection attempt (UUID).
	AttemptID string `cbor:"2,keyasint"`

	// Account is the bare account address.
	Account string `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Type-specific payload (one of these will be set).
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"`
	Resolver    *ResolverEvent    `cbor:"11,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"`
	Outcome     *OutcomeEvent     `cbor:"13,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a state pushed to the owning context.
	CategoryState Category = 0
	// CategoryConfig indicates the per-attempt configuration.
	CategoryConfig Category = 1
	// CategoryError indicates a classified fault.
	CategoryError Category = 2
	// CategoryOutcome indicates the end of an attempt.
	CategoryOutcome Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryConfig:
		return "CONFIG"
	case CategoryError:
		return "ERROR"
	case CategoryOutcome:
		return "OUTCOME"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures a state pushed by the attempt.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the pushed state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ResolverEvent captures the configuration an attempt ran with.
type ResolverEvent struct {
	// Strategy is the DNS resolution strategy ("system", "dnsclient").
	Strategy string `cbor:"1,keyasint"`

	// ProtocolDebug is true when transport diagnostics were verbose.
	ProtocolDebug bool `cbor:"2,keyasint,omitempty"`
}

// ErrorEventData captures a classified fault.
type ErrorEventData struct {
	// Kind is the fault category (AUTHORIZATION, PROTOCOL, IO, ...).
	Kind string `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Escalation is the account error kind raised for this fault
	// (AUTHORIZATION, CONNECTION), empty when the fault was only logged.
	Escalation string `cbor:"3,keyasint,omitempty"`
}

// OutcomeEvent captures how an attempt ended.
type OutcomeEvent struct {
	// Result is the terminal result (COMPLETED, NO_NETWORK, ...).
	Result string `cbor:"1,keyasint"`

	// Escalated is true when the account was disabled.
	Escalated bool `cbor:"2,keyasint,omitempty"`

	// Duration of the attempt. Stored as nanoseconds.
	Duration time.Duration `cbor:"3,keyasint,omitempty"`
}
