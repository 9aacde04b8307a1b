// internal/notecard/buffer_test.go
package notecard

import (
	"encoding/base64"
	"testing"
)

func noteWith(payload []byte) reply {
	return ok(map[string]any{"payload": base64.StdEncoding.EncodeToString(payload)})
}

func TestAvailable_ReadsWholeNoteThenSentinel(t *testing.T) {
	payload := []byte{0x00, 0x7F, 0x80, 0xFF, 'h', 'i'}
	b := healthyBridge().on("note.get", noteWith(payload))
	h, _ := newSerialHandler(t, Config{}, b)

	if !h.Available() {
		t.Fatalf("Available should refill from the bridge")
	}
	if h.Buffered() != len(payload) {
		t.Fatalf("expected %d buffered, got %d", len(payload), h.Buffered())
	}

	for i, want := range payload {
		if got := h.Read(); got != int(want) {
			t.Fatalf("byte %d: got %d want %d", i, got, want)
		}
	}

	before := len(b.reqs)
	if got := h.Read(); got != int(ErrorNoDataAvailable) {
		t.Fatalf("expected no-data sentinel, got %d", got)
	}
	if len(b.reqs) != before {
		t.Fatalf("Read must not talk to the bridge")
	}

	if reqs := b.requests("note.get"); reqs[0]["delete"] != true {
		t.Fatalf("refill must pop the note: %v", reqs[0])
	}
	assertReleased(t, h)
}

func TestAvailable_NoRefillWhileBuffered(t *testing.T) {
	b := healthyBridge().on("note.get", noteWith([]byte("abc")))
	h, _ := newSerialHandler(t, Config{}, b)

	h.Available()
	h.Read()
	h.Available()
	h.Available()

	if got := b.count("note.get"); got != 1 {
		t.Fatalf("expected 1 note.get while bytes remain, got %d", got)
	}
}

func TestAvailable_ReplacesBufferWholesale(t *testing.T) {
	b := healthyBridge().on("note.get", noteWith([]byte("ab")))
	h, _ := newSerialHandler(t, Config{}, b)

	h.Available()
	h.Read()
	h.Read()

	b.on("note.get", noteWith([]byte("xyz")))
	if !h.Available() {
		t.Fatalf("second note should be available")
	}
	if got := h.Read(); got != 'x' {
		t.Fatalf("index not reset: got %q", rune(got))
	}
	if h.Buffered() != 2 {
		t.Fatalf("expected 2 buffered, got %d", h.Buffered())
	}
}

func TestAvailable_EmptyQueue(t *testing.T) {
	h, _ := newSerialHandler(t, Config{}, healthyBridge())

	if h.Available() {
		t.Fatalf("empty notefile must report unavailable")
	}
	if got := h.Read(); got != int(ErrorNoDataAvailable) {
		t.Fatalf("expected sentinel, got %d", got)
	}
	assertReleased(t, h)
}

func TestAvailable_UndecodablePayload(t *testing.T) {
	b := healthyBridge().on("note.get", ok(map[string]any{"payload": "%%%"}))
	h, _ := newSerialHandler(t, Config{}, b)

	if h.Available() {
		t.Fatalf("undecodable payload must report unavailable")
	}
	assertReleased(t, h)
}
