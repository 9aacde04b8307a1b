// internal/notecard/transactions.go
package notecard

import (
	"strings"

	"go.uber.org/zap"

	"github.com/tamzrod/notecard-handler/internal/note"
	"github.com/tamzrod/notecard-handler/internal/status"
)

// transaction submits req. It returns nil when the host could not complete
// the round trip; the failure is logged. A non-nil response may still carry
// a bridge error and MUST be released by the caller.
func (h *Handler) transaction(req *note.Request) *note.Response {
	rsp, err := h.card.Transaction(req)
	if err != nil {
		h.log.Error("notecard: transaction failed",
			zap.String("req", req.Command()),
			zap.Error(err),
		)
		return nil
	}
	return rsp
}

// armInterrupt arms the ATTN line to fire when a note lands in the inbound notefile.
//
// Known trade-off: "rearm" is not idempotent on current (LTSv6) bridge
// firmware, so a bridge-reported error here is swallowed and counted as
// success. This is a firmware workaround, not a general policy: once rearm is
// idempotent the error must be treated as a failure again.
func (h *Handler) armInterrupt() bool {
	req := note.NewRequest("card.attn").
		AddString("mode", "rearm,files").
		AddStrings("files", InboundNotefile)

	rsp := h.transaction(req)
	if rsp == nil {
		return false
	}
	defer rsp.Release()

	if msg := rsp.Err(); msg != "" {
		h.log.Debug("notecard: rearm error ignored", zap.String("err", msg))
	}
	return true
}

// configureConnection applies the Notehub profile. connect=true selects
// continuous mode; false parks the bridge in periodic mode with outbound
// sync disabled.
func (h *Handler) configureConnection(connect bool) bool {
	req := note.NewRequest("hub.set").
		AddString("host", h.cfg.NotehubURL).
		AddString("product", h.cfg.ProductUID)

	if connect {
		req.AddString("mode", "continuous").
			AddInt("inbound", 15). // safety bound; continuous mode syncs on change
			AddBool("sync", true)
	} else {
		req.AddString("mode", "periodic").
			AddInt("inbound", 1440).
			AddInt("outbound", -1).
			AddString("vinbound", "-").
			AddString("voutbound", "-")
	}

	rsp := h.transaction(req)
	if rsp == nil {
		return false
	}
	defer rsp.Release()

	if msg := rsp.Err(); msg != "" {
		h.log.Error("notecard: hub.set failed",
			zap.Bool("connect", connect),
			zap.String("err", msg),
		)
		return false
	}
	return true
}

// queryStatus asks the bridge for its transport and Notehub session state.
// Error flags are mutually exclusive with the connectivity flags.
func (h *Handler) queryStatus() status.ConnectionStatus {
	var st status.ConnectionStatus

	rsp := h.transaction(note.NewRequest("hub.status"))
	if rsp == nil {
		st.HostError = true
		h.lastStatus = st
		return st
	}
	defer rsp.Release()

	if msg := rsp.Err(); msg != "" {
		h.log.Error("notecard: hub.status failed", zap.String("err", msg))
		st.BridgeError = true
		h.lastStatus = st
		return st
	}

	st.TransportConnected = strings.Contains(rsp.String("status"), "{connected}")
	st.ConnectedToNotehub = rsp.Bool("connected")

	h.lastStatus = st
	return st
}

// defineTemplate declares a compact template with a fixed port for file.
func (h *Handler) defineTemplate(file string, port int) bool {
	req := note.NewRequest("note.template").
		AddString("file", file).
		AddString("format", "compact").
		AddInt("port", port)

	rsp := h.transaction(req)
	if rsp == nil {
		return false
	}
	defer rsp.Release()

	if msg := rsp.Err(); msg != "" {
		h.log.Error("notecard: note.template failed",
			zap.String("file", file),
			zap.String("err", msg),
		)
		return false
	}
	return true
}

// fetchDeviceUID reads the bridge's device UID.
func (h *Handler) fetchDeviceUID() (string, bool) {
	rsp := h.transaction(note.NewRequest("hub.get"))
	if rsp == nil {
		return "", false
	}
	defer rsp.Release()

	if msg := rsp.Err(); msg != "" {
		h.log.Error("notecard: hub.get failed", zap.String("err", msg))
		return "", false
	}
	return rsp.String("device"), true
}

// nextInbound fetches the next inbound note, deleting it when pop is set.
// An empty notefile re-arms the interrupt (when enabled) so the application
// is signalled on the next arrival. Returns nil when no note was retrieved.
// The caller owns a non-nil result and must release it.
func (h *Handler) nextInbound(pop bool) *note.Response {
	req := note.NewRequest("note.get").
		AddString("file", InboundNotefile)
	if pop {
		req.AddBool("delete", true)
	}

	rsp := h.transaction(req)
	if rsp == nil {
		return nil
	}

	if rsp.Err() == "" {
		return rsp
	}

	if rsp.ErrContains("{note-noexist}") {
		rsp.Release()
		if h.cfg.InterruptEnabled {
			h.armInterrupt()
		}
		return nil
	}

	h.log.Debug("notecard: note.get failed", zap.String("err", rsp.Err()))
	rsp.Release()
	return nil
}

// Time returns the bridge's notion of Unix time, 0 when unknown.
func (h *Handler) Time() uint32 {
	rsp := h.transaction(note.NewRequest("card.time"))
	if rsp == nil {
		return 0
	}
	defer rsp.Release()

	if msg := rsp.Err(); msg != "" {
		h.log.Error("notecard: card.time failed", zap.String("err", msg))
		return 0
	}
	t := rsp.Int("time")
	if t < 0 || t > int64(^uint32(0)) {
		return 0
	}
	return uint32(t)
}
