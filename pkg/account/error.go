package account

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrorKind classifies an account error.
type ErrorKind uint8

const (
	// ErrorAuthorization indicates rejected credentials.
	ErrorAuthorization ErrorKind = iota + 1

	// ErrorConnection indicates a connection failure.
	ErrorConnection
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorAuthorization:
		return "AUTHORIZATION"
	case ErrorConnection:
		return "CONNECTION"
	default:
		return "UNKNOWN"
	}
}

// ParseErrorKind parses a kind name (case-insensitive).
func ParseErrorKind(s string) (ErrorKind, error) {
	switch strings.ToUpper(s) {
	case "AUTHORIZATION":
		return ErrorAuthorization, nil
	case "CONNECTION":
		return ErrorConnection, nil
	default:
		return 0, fmt.Errorf("invalid error kind: %s (must be authorization or connection)", s)
	}
}

// ErrorRecord is a structured account error.
type ErrorRecord struct {
	// ID uniquely identifies the record (UUID).
	ID string `json:"id"`

	Account ID        `json:"account"`
	Kind    ErrorKind `json:"kind"`

	// Message is the failure message. For connection errors it holds the
	// full fault trace.
	Message string `json:"message"`

	Time time.Time `json:"time"`
}

// NewErrorRecord creates a record stamped with a fresh ID and the current time.
func NewErrorRecord(acct ID, kind ErrorKind, message string) ErrorRecord {
	return ErrorRecord{
		ID:      uuid.NewString(),
		Account: acct,
		Kind:    kind,
		Message: message,
		Time:    time.Now(),
	}
}

func (r ErrorRecord) String() string {
	msg := r.Message
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return fmt.Sprintf("%s %s: %s", r.Account, r.Kind, msg)
}
