package account

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/xconn/xconn-go/pkg/persistence"
)

// MaxErrorsPerAccount bounds the recorded errors per account; the oldest
// records are dropped first.
const MaxErrorsPerAccount = 20

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Store persists enabled flags and errors. Nil keeps state in memory.
	Store *persistence.AccountStateStore

	// Logger for operational output (default: slog.Default()).
	Logger *slog.Logger
}

// Manager collects account errors and owns the enabled flag of each account.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	enabled  map[ID]bool
	errors   map[ID][]ErrorRecord
	store    *persistence.AccountStateStore
	logger   *slog.Logger
	onChange []func(id ID, enabled bool)
}

// NewManager creates a Manager and loads persisted state, if any.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	m := &Manager{
		enabled: make(map[ID]bool),
		errors:  make(map[ID][]ErrorRecord),
		store:   config.Store,
		logger:  config.Logger,
	}
	if m.store == nil {
		return m, nil
	}

	state, err := m.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load account state: %w", err)
	}
	if state == nil {
		return m, nil
	}
	for _, entry := range state.Accounts {
		id := ID(entry.ID)
		m.enabled[id] = entry.Enabled
		for _, e := range entry.Errors {
			kind, err := ParseErrorKind(e.Kind)
			if err != nil {
				m.logger.Warn("skipping persisted error", "account", id, "error", err)
				continue
			}
			m.errors[id] = append(m.errors[id], ErrorRecord{
				ID: e.ID, Account: id, Kind: kind, Message: e.Message, Time: e.Time,
			})
		}
	}
	return m, nil
}

// Register adds an account with the given initial enabled flag. Accounts
// already known (for example from persisted state) keep their flag.
func (m *Manager) Register(id ID, enabled bool) {
	m.mu.Lock()
	if _, ok := m.enabled[id]; ok {
		m.mu.Unlock()
		return
	}
	m.enabled[id] = enabled
	m.mu.Unlock()
	m.save()
}

// Accounts returns all known accounts in sorted order.
func (m *Manager) Accounts() []ID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]ID, 0, len(m.enabled))
	for id := range m.enabled {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Enabled reports whether the account is enabled. Unknown accounts are
// disabled.
func (m *Manager) Enabled(id ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled[id]
}

// SetEnabled changes the enabled flag and notifies OnEnabledChange
// callbacks when the flag actually changed.
func (m *Manager) SetEnabled(id ID, enabled bool) {
	m.mu.Lock()
	old, known := m.enabled[id]
	m.enabled[id] = enabled
	callbacks := append([]func(ID, bool){}, m.onChange...)
	m.mu.Unlock()

	if known && old == enabled {
		return
	}
	m.logger.Info("account enabled flag changed", "account", id, "enabled", enabled)
	m.save()

	for _, fn := range callbacks {
		fn(id, enabled)
	}
}

// OnEnabledChange registers a callback for enabled flag changes.
func (m *Manager) OnEnabledChange(fn func(id ID, enabled bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// AddError records an account error.
func (m *Manager) AddError(rec ErrorRecord) {
	m.mu.Lock()
	errs := append(m.errors[rec.Account], rec)
	if len(errs) > MaxErrorsPerAccount {
		errs = errs[len(errs)-MaxErrorsPerAccount:]
	}
	m.errors[rec.Account] = errs
	m.mu.Unlock()

	m.logger.Info("account error recorded", "account", rec.Account, "kind", rec.Kind.String())
	m.save()
}

// Errors returns a copy of the errors recorded for id, oldest first.
func (m *Manager) Errors(id ID) []ErrorRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ErrorRecord(nil), m.errors[id]...)
}

// ClearErrors drops all errors recorded for id.
func (m *Manager) ClearErrors(id ID) {
	m.mu.Lock()
	delete(m.errors, id)
	m.mu.Unlock()
	m.save()
}

// save writes a snapshot to the store. Failures are logged, not returned:
// losing persisted state must not affect the running accounts.
func (m *Manager) save() {
	if m.store == nil {
		return
	}

	m.mu.RLock()
	state := &persistence.AccountsState{}
	ids := make(map[ID]struct{}, len(m.enabled))
	for id := range m.enabled {
		ids[id] = struct{}{}
	}
	for id := range m.errors {
		ids[id] = struct{}{}
	}
	for id := range ids {
		entry := persistence.AccountEntry{ID: string(id), Enabled: m.enabled[id]}
		for _, e := range m.errors[id] {
			entry.Errors = append(entry.Errors, persistence.ErrorEntry{
				ID: e.ID, Kind: e.Kind.String(), Message: e.Message, Time: e.Time,
			})
		}
		state.Accounts = append(state.Accounts, entry)
	}
	m.mu.RUnlock()

	sort.Slice(state.Accounts, func(i, j int) bool {
		return state.Accounts[i].ID < state.Accounts[j].ID
	})
	if err := m.store.Save(state); err != nil {
		m.logger.Error("failed to save account state", "path", m.store.Path(), "error", err)
	}
}
