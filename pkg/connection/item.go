package connection

import (
	"sync"
	"sync/atomic"

	"github.com/xconn/xconn-go/pkg/account"
)

// Item is the connection context of one account. It owns the account's
// current State and remembers whether the account ever logged in.
// It is safe for concurrent use.
type Item struct {
	id account.ID

	mu            sync.RWMutex
	state         State
	onStateChange []func(oldState, newState State)

	successful atomic.Bool
}

// NewItem creates an offline Item for the account.
func NewItem(id account.ID) *Item {
	return &Item{id: id, state: StateOffline}
}

// Account returns the account identity.
func (i *Item) Account() account.ID {
	return i.id
}

// State returns the current state.
func (i *Item) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// UpdateState sets the current state. Callbacks run only when the state
// actually changed, outside the lock.
func (i *Item) UpdateState(s State) {
	i.mu.Lock()
	old := i.state
	i.state = s
	callbacks := append([]func(State, State){}, i.onStateChange...)
	i.mu.Unlock()

	if old == s {
		return
	}
	for _, fn := range callbacks {
		fn(old, s)
	}
}

// OnStateChange registers a callback for state changes.
func (i *Item) OnStateChange(fn func(oldState, newState State)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onStateChange = append(i.onStateChange, fn)
}

// SuccessfulConnectionHappened reports whether the account logged in at
// least once during the lifetime of the Item.
func (i *Item) SuccessfulConnectionHappened() bool {
	return i.successful.Load()
}

// MarkConnected records a successful login.
func (i *Item) MarkConnected() {
	i.successful.Store(true)
	i.UpdateState(StateAuthenticated)
}

// MarkDisconnected records that the connection was lost.
func (i *Item) MarkDisconnected() {
	i.UpdateState(StateOffline)
}

// Compile-time interface satisfaction check.
var _ Owner = (*Item)(nil)
