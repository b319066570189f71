package gateway

import "time"

type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is a point-in-time view of the connection for health and
// admin reporting.
type Snapshot struct {
	State             string     `json:"state"`
	SessionHandle     string     `json:"session_handle,omitempty"`
	LastHeartbeatAt   *time.Time `json:"last_heartbeat_at,omitempty"`
	ReconnectAttempts int        `json:"reconnect_attempts"`
	Exhausted         bool       `json:"exhausted"`
}
