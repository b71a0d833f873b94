// Package service keeps the configured accounts connected.
//
// Service ties the lower-level components together: it builds one Session
// per account (connection context, TCP transport, attempt runner and retry
// supervisor), owns the account manager and the sticky notification bus,
// watches the network and the settings file, and records attempt events
// and metrics.
//
// Example usage:
//
//	live, err := config.NewLive("xconn.yaml", logger)
//	svc, err := service.New(service.Config{Live: live, Logger: logger})
//	svc.Start(ctx)
//	defer svc.Stop()
//
// Attempts are started by each session's supervisor. Start triggers an
// immediate attempt, Interrupt cancels the running one, and SetEnabled
// gates an account. An account disabled after an authorization failure
// stays disabled until it is enabled again.
package service
