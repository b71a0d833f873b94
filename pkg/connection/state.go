package connection

// State is the coarse connection state of an account.
type State uint8

const (
	// StateOffline indicates no connection and no attempt in progress.
	StateOffline State = iota

	// StateWaiting indicates the network is unavailable.
	StateWaiting

	// StateConnecting indicates a transport connect is in progress.
	StateConnecting

	// StateConnected indicates an open but unauthenticated connection.
	StateConnected

	// StateAuthenticated indicates a logged in connection.
	StateAuthenticated

	// StateDisconnecting indicates the connection is being closed.
	StateDisconnecting
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateOffline:
		return "OFFLINE"
	case StateWaiting:
		return "WAITING"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateDisconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}
