// internal/connection/handler.go
package connection

// Handler is the contract every transport-specific connection handler fills in.
// Each method runs one step and returns the next state. None may block beyond
// a single synchronous round trip to the device.
type Handler interface {
	HandleInit() State
	HandleConnecting() State
	HandleConnected() State
	HandleDisconnecting() State
	HandleDisconnected() State

	// SetKeepAlive switches between reconnect-on-loss and connect-once.
	SetKeepAlive(bool)
}

// Event identifies a supervisor callback.
type Event int

const (
	EventConnected Event = iota
	EventDisconnected
	EventError
)

// Callback is invoked on state entry. It runs on the ticking goroutine.
type Callback func(from, to State)
