package stomp

import "encoding/json"

// State is the connection lifecycle state.
type State int

const (
	// StateIdle is the state after construction.
	StateIdle State = iota
	// StateConnecting means a dial or STOMP handshake is in progress.
	StateConnecting
	// StateConnected means the broker acknowledged the session.
	StateConnected
	// StateReconnecting means the transport failed and a retry is scheduled.
	StateReconnecting
	// StateOffline means Stop was called. Only Start leaves it.
	StateOffline
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the state as its name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// running reports whether the manager owns a connection attempt or schedule.
func (s State) running() bool {
	return s == StateConnecting || s == StateConnected || s == StateReconnecting
}
