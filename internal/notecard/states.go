// internal/notecard/states.go
package notecard

import (
	"go.uber.org/zap"

	"github.com/tamzrod/notecard-handler/internal/connection"
)

// HandleInit runs the one-time bring-up. All-or-nothing: the first failing
// step aborts to Error, nothing partial is kept.
func (h *Handler) HandleInit() connection.State {
	if err := h.begin(); err != nil {
		h.log.Error("notecard: transport init failed", zap.Error(err))
		return connection.Error
	}

	// Peek without deleting. A queued note is left alone and the interrupt
	// stays unarmed, which tells the application a backlog is waiting.
	// Only an empty notefile arms it (inside nextInbound).
	if rsp := h.nextInbound(false); rsp != nil {
		h.log.Info("notecard: inbound backlog present, interrupt left unarmed")
		rsp.Release()
	}

	if !h.configureConnection(true) {
		return connection.Error
	}

	// Templates let LoRa/satellite bridges carry the notefiles and lift the
	// payload size limit of the default outbound template.
	if !h.defineTemplate(InboundNotefile, InboundPort) {
		return connection.Error
	}
	if !h.defineTemplate(OutboundNotefile, OutboundPort) {
		return connection.Error
	}

	uid, ok := h.fetchDeviceUID()
	if !ok {
		return connection.Error
	}
	if h.deviceUID == "" {
		h.deviceUID = uid
	} else if uid != h.deviceUID {
		h.log.Warn("notecard: bridge reports a different device UID, keeping the first",
			zap.String("device", h.deviceUID),
			zap.String("reported", uid),
		)
	}
	h.log.Info("notecard: device configured", zap.String("device", h.deviceUID))

	if !h.keepAlive {
		return connection.Disconnected
	}

	h.connStart = h.now()
	h.log.Info("notecard: connecting to the network")
	return connection.Connecting
}

// HandleConnecting waits for the Notehub session. Past the connect timeout
// it restarts from Init: configuration is not assumed to have survived.
func (h *Handler) HandleConnecting() connection.State {
	st := h.queryStatus()

	if st.ConnectedToNotehub {
		h.log.Info("notecard: connected to Notehub")
		return connection.Connected
	}

	if elapsed := h.now().Sub(h.connStart); elapsed > h.cfg.ConnectTimeout {
		h.log.Error("notecard: connect timeout exceeded, restarting",
			zap.Duration("elapsed", elapsed),
			zap.Duration("timeout", h.cfg.ConnectTimeout),
			zap.Duration("retry_in", connection.CheckIntervals[connection.Init]),
		)
		return connection.Init
	}

	if st.TransportConnected {
		h.log.Info("notecard: establishing connection to Notehub")
	} else {
		h.log.Info("notecard: connecting to the network")
	}
	return connection.Connecting
}

// HandleConnected supervises the session.
func (h *Handler) HandleConnected() connection.State {
	st := h.queryStatus()
	if st.ConnectedToNotehub {
		return connection.Connected
	}

	if !st.TransportConnected {
		h.log.Error("notecard: connection to the network lost", zap.Stringer("status", st))
	} else {
		h.log.Error("notecard: connection to Notehub lost", zap.Stringer("status", st))
	}
	return connection.Disconnected
}

// HandleDisconnecting is a logical step only; nothing is sent to the bridge.
func (h *Handler) HandleDisconnecting() connection.State {
	h.log.Info("notecard: disconnecting")
	return connection.Disconnected
}

// HandleDisconnected reconnects in keep-alive mode, otherwise parks the
// bridge in periodic mode and closes.
func (h *Handler) HandleDisconnected() connection.State {
	if h.keepAlive {
		h.log.Info("notecard: attempting reconnection")
		return connection.Init
	}

	if !h.configureConnection(false) {
		h.log.Error("notecard: error closing connection")
		return connection.Error
	}
	h.log.Info("notecard: connection closed")
	return connection.Closed
}
