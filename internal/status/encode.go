// internal/status/encode.go
package status

// Decode unpacks a status byte. Reserved bits are kept.
// No IO. No side effects.
func Decode(b byte) ConnectionStatus {
	return ConnectionStatus{
		TransportConnected: b&BitTransportConnected != 0,
		ConnectedToNotehub: b&BitConnectedToNotehub != 0,
		BridgeError:        b&BitBridgeError != 0,
		HostError:          b&BitHostError != 0,
		Reserved:           (b & MaskReserved) >> 4,
	}
}

// Encode packs the status into one byte. Layout is protocol-locked.
func (s ConnectionStatus) Encode() byte {
	b := (s.Reserved << 4) & MaskReserved
	if s.TransportConnected {
		b |= BitTransportConnected
	}
	if s.ConnectedToNotehub {
		b |= BitConnectedToNotehub
	}
	if s.BridgeError {
		b |= BitBridgeError
	}
	if s.HostError {
		b |= BitHostError
	}
	return b
}

// EncodeBlock converts a Snapshot into the live part of a status block.
// The device UID slots are left to the writer.
func EncodeBlock(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotState] = s.State
	regs[SlotConnectionStatus] = uint16(s.Status.Encode())
	regs[SlotSecondsInState] = s.SecondsInState

	return regs
}

// EncodeDeviceUID packs up to DeviceUIDMaxChars ASCII characters into
// SlotDeviceUIDSlots registers, two bytes per register, big-endian.
func EncodeDeviceUID(uid string) []uint16 {
	out := make([]uint16, SlotDeviceUIDSlots)

	b := []byte(uid)
	if len(b) > DeviceUIDMaxChars {
		b = b[:DeviceUIDMaxChars]
	}

	// sanitize to printable ASCII
	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < DeviceUIDMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}
