// Package account holds account identity, the account error taxonomy and the
// account manager that collects errors and owns the enabled flag of each
// account.
//
// Errors are recorded as ErrorRecord values:
//
//	AUTHORIZATION  the server rejected the credentials
//	CONNECTION     an account that never connected failed to connect
//
// Recording an error does not disable the account by itself; the connection
// attempt runner decides when to call SetEnabled(id, false).
package account
