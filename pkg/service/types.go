package service

import (
	"errors"
	"time"

	"github.com/xconn/xconn-go/pkg/account"
	"github.com/xconn/xconn-go/pkg/connection"
)

// Service errors.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrAlreadyStarted  = errors.New("service already started")
	ErrUnknownAccount  = errors.New("unknown account")
	ErrAccountDisabled = errors.New("account disabled")
	ErrNoPassword      = errors.New("password not set")
)

// ServiceState represents the service state.
type ServiceState uint8

const (
	// StateIdle - service created but not started.
	StateIdle ServiceState = iota

	// StateRunning - service is running normally.
	StateRunning

	// StateStopped - service has stopped.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Status is a snapshot of one account.
type Status struct {
	Account       account.ID
	State         connection.State
	Phase         connection.Phase
	Enabled       bool
	EverConnected bool
	LastResult    connection.Result
	LastAttempt   time.Duration
	Retries       int
}
