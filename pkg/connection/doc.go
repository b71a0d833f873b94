// Package connection runs connection attempts for a single account.
//
// This package handles:
//   - A restartable attempt task with at most one live attempt per account
//   - Network reachability checks before any I/O
//   - Failure classification and account escalation
//   - A caller-driven retry loop with exponential backoff
//
// # Attempt
//
// An attempt checks the network, then connects and logs in through the
// account's transport:
//
//  1. No network: the owner is set to WAITING and the attempt ends
//  2. Not connected: the owner is set to CONNECTING, then Connect
//  3. Not authenticated: Login
//
// The transport reports AUTHENTICATED itself once login succeeds.
//
// # Failure Classification
//
// Faults raised by Connect or Login fall into three groups:
//
//   - Authorization: the account is disabled and a sticky AUTHORIZATION
//     error is published
//   - Connection (protocol, I/O and anything else): the account is disabled
//     and a sticky CONNECTION error is published, but only if the account
//     never connected successfully before; otherwise the fault is only logged
//   - Interrupted (cancelled context): logged only
//
// # Task Phases
//
// A Runner holds one task at a time. A task moves IDLE -> RUNNING -> FINISHED.
// Start replaces a finished task with a fresh one and starts an idle task.
// Start on a running task returns false.
//
// # Retries
//
// Runners never retry on their own. A Supervisor restarts the runner:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Reset to 1s after a completed attempt
//
// Jitter of up to 25% of the base delay is added to each wait.
package connection
