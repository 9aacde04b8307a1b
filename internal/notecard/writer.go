// internal/notecard/writer.go
package notecard

import (
	"go.uber.org/zap"

	"github.com/tamzrod/notecard-handler/internal/note"
)

// Code is a result code exposed to the application.
type Code int

const (
	ErrorNone            Code = 0
	ErrorNoDataAvailable Code = -1
	ErrorGeneric         Code = -2
	HostErrorOutOfMemory Code = -3
)

func (c Code) String() string {
	switch c {
	case ErrorNone:
		return "none"
	case ErrorNoDataAvailable:
		return "no data available"
	case ErrorGeneric:
		return "bridge error"
	case HostErrorOutOfMemory:
		return "host error"
	}
	return "unknown"
}

// Write submits p as exactly one outbound note. All or nothing: no chunking,
// no retry. In keep-alive mode the bridge is asked to sync immediately.
func (h *Handler) Write(p []byte) Code {
	req := note.NewRequest("note.add").
		AddString("file", OutboundNotefile).
		AddBinary("payload", p)
	if h.keepAlive {
		req.AddBool("sync", true)
	}

	rsp := h.transaction(req)
	if rsp == nil {
		return HostErrorOutOfMemory
	}
	defer rsp.Release()

	if msg := rsp.Err(); msg != "" {
		h.log.Error("notecard: note.add failed", zap.String("err", msg))
		return ErrorGeneric
	}

	h.log.Debug("notecard: note queued", zap.Int("bytes", len(p)))
	return ErrorNone
}
