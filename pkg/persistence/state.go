package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// AccountsState contains the runtime state of all known accounts.
type AccountsState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Accounts contains one entry per account, sorted by ID.
	Accounts []AccountEntry `json:"accounts,omitempty"`
}

// AccountEntry is the persisted state of one account.
type AccountEntry struct {
	// ID is the bare account address.
	ID string `json:"id"`

	// Enabled is false once the account was disabled after an unrecoverable
	// failure or by the user.
	Enabled bool `json:"enabled"`

	// Errors are the recorded account errors, oldest first.
	Errors []ErrorEntry `json:"errors,omitempty"`
}

// ErrorEntry is a persisted account error.
type ErrorEntry struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Find returns the entry for id, or nil.
func (s *AccountsState) Find(id string) *AccountEntry {
	for i := range s.Accounts {
		if s.Accounts[i].ID == id {
			return &s.Accounts[i]
		}
	}
	return nil
}

// AccountStateStore manages persistence of account state to a JSON file.
type AccountStateStore struct {
	mu   sync.Mutex
	path string
}

// NewAccountStateStore creates a new account state store.
func NewAccountStateStore(path string) *AccountStateStore {
	return &AccountStateStore{path: path}
}

// Path returns the state file path.
func (s *AccountStateStore) Path() string {
	return s.path
}

// Save persists the account state to disk. The file is replaced atomically.
func (s *AccountStateStore) Save(state *AccountsState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure parent directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	state.SavedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the account state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *AccountStateStore) Load() (*AccountsState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &AccountsState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}

	return state, nil
}

// Clear removes the state file.
func (s *AccountStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
