// internal/status/connection.go
package status

import "strings"

// ConnectionStatus is the decoded form of the one-byte connection status
// reported by a status query.
type ConnectionStatus struct {
	TransportConnected bool
	ConnectedToNotehub bool
	BridgeError        bool
	HostError          bool

	// Reserved carries the upper nibble verbatim (already shifted down, 0..15).
	Reserved uint8
}

func (s ConnectionStatus) String() string {
	var flags []string
	if s.TransportConnected {
		flags = append(flags, "transport")
	}
	if s.ConnectedToNotehub {
		flags = append(flags, "notehub")
	}
	if s.BridgeError {
		flags = append(flags, "bridge-error")
	}
	if s.HostError {
		flags = append(flags, "host-error")
	}
	if len(flags) == 0 {
		return "none"
	}
	return strings.Join(flags, ",")
}
