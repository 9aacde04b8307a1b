// internal/status/constants.go
package status

// Connection status byte layout.
// Bit positions are part of the public contract and MUST NOT change.

const (
	// BitTransportConnected is set when the bridge reports its radio/cellular transport up.
	BitTransportConnected byte = 1 << 0

	// BitConnectedToNotehub is set when the logical Notehub session is established.
	BitConnectedToNotehub byte = 1 << 1

	// BitBridgeError is set when the bridge answered the status query with an error.
	BitBridgeError byte = 1 << 2

	// BitHostError is set when the host could not complete the status query at all.
	BitHostError byte = 1 << 3

	// MaskReserved covers the upper nibble. Preserved, never interpreted.
	MaskReserved byte = 0xF0
)

// Status block layout (Modbus holding registers, see internal/mirror).
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of registers per bridge device.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotState holds the connection state code.
const SlotState = 0

// SlotConnectionStatus holds the last connection status byte (low byte).
const SlotConnectionStatus = 1

// SlotSecondsInState holds how long (in seconds) the handler has been in the current state.
const SlotSecondsInState = 2

// ---- RESERVED RANGE ----

// Slots 3-7 are reserved for future use.
const SlotReservedStart = 3
const SlotReservedEnd = 7

// ---- DEVICE UID ----

// SlotDeviceUIDStart is the first slot used for the device UID.
// The UID is always placed at the END of the block.
const SlotDeviceUIDStart = 8

// SlotDeviceUIDSlots is the number of slots reserved for the device UID.
const SlotDeviceUIDSlots = 12

// SlotDeviceUIDEnd is the last slot used for the device UID (inclusive).
const SlotDeviceUIDEnd = SlotDeviceUIDStart + SlotDeviceUIDSlots - 1

// ---- LIMITS ----

// DeviceUIDMaxChars is the maximum number of ASCII characters stored for the device UID.
const DeviceUIDMaxChars = SlotDeviceUIDSlots * 2

// MaxSecondsInState is where the seconds counter saturates.
const MaxSecondsInState = 65535
