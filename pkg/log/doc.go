// Package log provides structured connection-attempt logging.
//
// This package defines the Logger interface and Event types for capturing
// what each connection attempt did: the state it pushed to its owner, the
// resolver it used, the fault it hit and how that fault was handled. It is
// separate from operational logging (slog) - attempt capture provides a
// machine-readable trace for debugging accounts that fail to connect.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.EventLog = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.EventLog, _ = log.NewFileLogger("/var/log/xconn/attempts.xlog")
//
//	// Both: use MultiLogger
//	cfg.EventLog = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Every event carries the attempt ID (UUID) and the account. One of the
// payloads is set:
//   - StateChange: state pushed to the owning context (waiting, connecting)
//   - Resolver: resolver strategy and diagnostic verbosity of the attempt
//   - Error: a classified fault
//   - Outcome: how the attempt ended
//
// # File Format
//
// Log files use CBOR encoding with .xlog extension. The xconn-log CLI tool
// provides viewing, filtering, and export capabilities.
package log
