// internal/notecard/bridge_test.go
package notecard

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type reply func(req map[string]any) (map[string]any, error)

// fakeBridge answers bridge transactions from a per-command script and
// records every request it sees.
type fakeBridge struct {
	script   map[string]reply
	reqs     []map[string]any
	beginErr error
	begins   int
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{script: make(map[string]reply)}
}

func (b *fakeBridge) on(cmd string, fn reply) *fakeBridge {
	b.script[cmd] = fn
	return b
}

func (b *fakeBridge) Transact(line []byte) ([]byte, error) {
	var req map[string]any
	if err := json.Unmarshal(line, &req); err != nil {
		return nil, err
	}
	b.reqs = append(b.reqs, req)

	cmd, _ := req["req"].(string)
	fn, ok := b.script[cmd]
	if !ok {
		return []byte("{}\r\n"), nil
	}
	rsp, err := fn(req)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(rsp)
	if err != nil {
		return nil, err
	}
	return append(out, '\r', '\n'), nil
}

// requests returns the recorded requests for cmd.
func (b *fakeBridge) requests(cmd string) []map[string]any {
	var out []map[string]any
	for _, r := range b.reqs {
		if r["req"] == cmd {
			out = append(out, r)
		}
	}
	return out
}

func (b *fakeBridge) count(cmd string) int { return len(b.requests(cmd)) }

type fakeSerial struct {
	*fakeBridge
	baud int
}

func (s *fakeSerial) Begin(baud int) error {
	s.begins++
	s.baud = baud
	return s.beginErr
}

type fakeI2C struct {
	*fakeBridge
	addr  uint16
	limit int
}

func (s *fakeI2C) Begin(addr uint16, limit int) error {
	s.begins++
	s.addr = addr
	s.limit = limit
	return s.beginErr
}

// ---- canned replies ----

func ok(fields map[string]any) reply {
	return func(map[string]any) (map[string]any, error) {
		if fields == nil {
			return map[string]any{}, nil
		}
		return fields, nil
	}
}

func bridgeErr(msg string) reply {
	return func(map[string]any) (map[string]any, error) {
		return map[string]any{"err": msg}, nil
	}
}

func hostFail() reply {
	return func(map[string]any) (map[string]any, error) {
		return nil, errors.New("i/o timeout")
	}
}

const noNote = "no note available {note-noexist}"

// healthyBridge succeeds every bring-up step and has an empty inbound notefile.
func healthyBridge() *fakeBridge {
	return newFakeBridge().
		on("hub.set", ok(nil)).
		on("note.template", ok(nil)).
		on("hub.get", ok(map[string]any{"device": "dev:864475044204278"})).
		on("note.get", bridgeErr(noNote)).
		on("card.attn", ok(nil))
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newSerialHandler(t *testing.T, cfg Config, b *fakeBridge, opts ...Option) (*Handler, *fakeSerial) {
	t.Helper()
	bus := &fakeSerial{fakeBridge: b}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	h, err := NewSerial(cfg, bus, 9600, opts...)
	if err != nil {
		t.Fatalf("NewSerial err=%v", err)
	}
	return h, bus
}

// assertReleased fails when any response object leaked.
func assertReleased(t *testing.T, h *Handler) {
	t.Helper()
	if n := h.Card().Outstanding(); n != 0 {
		t.Fatalf("%d response(s) not released", n)
	}
}
