// Package transport defines the transport handle consumed by the connection
// attempt runner.
//
// The handle exposes four capabilities:
//   - Connect: open the stream to the server (blocking, cancellable)
//   - Login: authenticate the stream (blocking, cancellable)
//   - IsConnected / IsAuthenticated: non-blocking state queries
//
// # Faults
//
// Failures are reported as category-tagged errors. A Fault carries a Kind so
// callers can match on the category without depending on the concrete error
// types of the protocol library:
//
//	KindAuthorization  credential / SASL-level rejection
//	KindProtocol       stream or negotiation error
//	KindIO             network or socket error
//	KindInterrupted    cooperative cancellation of a blocking call
//	KindUnknown        anything else
//
// Classify derives the Kind for any error, including bare context and net
// errors that were never wrapped in a Fault.
//
// # TCPTransport
//
// TCPTransport is a minimal handle that locates the server through a
// resolver.Resolver, dials it over TCP and delegates authentication to an
// Authenticator. Stream framing is left to the Authenticator and whatever
// protocol layer sits above it.
package transport
