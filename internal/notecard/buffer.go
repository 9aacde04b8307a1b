// internal/notecard/buffer.go
package notecard

import "go.uber.org/zap"

// Available reports whether unread inbound bytes are buffered. When the
// buffer is exhausted it pops at most one note from the inbound notefile and
// replaces the buffer with that note's payload.
func (h *Handler) Available() bool {
	if h.index < len(h.inbound) {
		return true
	}

	rsp := h.nextInbound(true)
	if rsp == nil {
		return false
	}
	defer rsp.Release()

	payload, err := rsp.Binary("payload")
	if err != nil {
		// The note is already deleted on the bridge; nothing to retry.
		h.log.Error("notecard: inbound payload undecodable", zap.Error(err))
		return false
	}

	// Wholesale replacement; the old slice is dropped here.
	h.inbound = payload
	h.index = 0

	// A note with an empty payload still counts as retrieved.
	return true
}

// Read returns the next unread byte (0..255) or ErrorNoDataAvailable when the
// buffer is exhausted. It never talks to the bridge.
func (h *Handler) Read() int {
	if h.index >= len(h.inbound) {
		return int(ErrorNoDataAvailable)
	}
	b := h.inbound[h.index]
	h.index++
	return int(b)
}

// Buffered returns the number of unread bytes in the current payload.
func (h *Handler) Buffered() int {
	return len(h.inbound) - h.index
}
