// internal/connection/state.go
package connection

import "time"

// State is the shared connection-state enumeration.
type State int

const (
	Init State = iota
	Connecting
	Connected
	Disconnecting
	Disconnected
	Closed
	Error
)

var stateNames = [...]string{
	Init:          "INIT",
	Connecting:    "CONNECTING",
	Connected:     "CONNECTED",
	Disconnecting: "DISCONNECTING",
	Disconnected:  "DISCONNECTED",
	Closed:        "CLOSED",
	Error:         "ERROR",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether the supervisor stops calling handlers in s.
func (s State) Terminal() bool {
	return s == Closed || s == Error
}

// CheckIntervals is the minimum time between two handler calls, per state.
// Terminal states are never handled.
var CheckIntervals = map[State]time.Duration{
	Init:          100 * time.Millisecond,
	Connecting:    500 * time.Millisecond,
	Connected:     10 * time.Second,
	Disconnecting: 100 * time.Millisecond,
	Disconnected:  time.Second,
	Closed:        time.Second,
	Error:         time.Second,
}
