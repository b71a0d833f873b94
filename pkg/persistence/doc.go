// Package persistence provides runtime state persistence for accounts.
//
// This package handles the JSON serialization of per-account runtime state
// (enabled flag, recorded errors) that must survive restarts. Credentials are
// never written here.
package persistence
