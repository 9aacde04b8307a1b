// internal/note/serial/serial_test.go
package serial

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	gserial "github.com/goburrow/serial"
)

// fakeDevice echoes a canned reply once it has seen a full request line.
type fakeDevice struct {
	writes  [][]byte
	in      bytes.Buffer
	reply   string
	replied bool
	closed  bool
}

func (f *fakeDevice) Write(p []byte) (int, error) {
	f.writes = append(f.writes, append([]byte(nil), p...))
	f.in.Write(p)
	if !f.replied && bytes.HasSuffix(f.in.Bytes(), []byte("\n")) {
		f.replied = true
	}
	return len(p), nil
}

func (f *fakeDevice) Read(p []byte) (int, error) {
	if !f.replied || f.reply == "" {
		return 0, io.EOF
	}
	n := copy(p, f.reply)
	f.reply = f.reply[n:]
	return n, nil
}

func (f *fakeDevice) Close() error {
	f.closed = true
	return nil
}

func newBus(t *testing.T, dev *fakeDevice, segMax int) (*Bus, *gserial.Config) {
	t.Helper()
	var seen gserial.Config
	b := NewWithOpener(Config{Address: "/dev/fake", SegmentMax: segMax}, func(c *gserial.Config) (io.ReadWriteCloser, error) {
		seen = *c
		return dev, nil
	})
	return b, &seen
}

func TestBegin_OpensAtBaud(t *testing.T) {
	dev := &fakeDevice{}
	b, seen := newBus(t, dev, 0)

	if err := b.Begin(9600); err != nil {
		t.Fatalf("Begin err=%v", err)
	}
	if seen.Address != "/dev/fake" || seen.BaudRate != 9600 || seen.Parity != "N" {
		t.Fatalf("unexpected serial config: %+v", *seen)
	}

	// re-begin closes the previous port
	if err := b.Begin(115200); err != nil {
		t.Fatalf("Begin err=%v", err)
	}
	if !dev.closed {
		t.Fatalf("previous port should be closed on re-begin")
	}
}

func TestBegin_InvalidBaud(t *testing.T) {
	b, _ := newBus(t, &fakeDevice{}, 0)
	if err := b.Begin(0); err == nil {
		t.Fatalf("expected error for zero baud")
	}
}

func TestTransact_SegmentsAndReadsLine(t *testing.T) {
	dev := &fakeDevice{reply: "{\"connected\":true}\r\n"}
	b, _ := newBus(t, dev, 4)
	b.cfg.SegmentDelay = 0

	if err := b.Begin(9600); err != nil {
		t.Fatalf("Begin err=%v", err)
	}

	req := []byte("{\"req\":\"hub.status\"}\n")
	line, err := b.Transact(req)
	if err != nil {
		t.Fatalf("Transact err=%v", err)
	}
	if strings.TrimSpace(string(line)) != "{\"connected\":true}" {
		t.Fatalf("unexpected line %q", line)
	}

	wantSegments := (len(req) + 3) / 4
	if len(dev.writes) != wantSegments {
		t.Fatalf("expected %d segments, got %d", wantSegments, len(dev.writes))
	}
	for i, w := range dev.writes {
		if len(w) > 4 {
			t.Fatalf("segment %d too long: %d", i, len(w))
		}
	}
}

func TestTransact_NotOpen(t *testing.T) {
	b, _ := newBus(t, &fakeDevice{}, 0)
	if _, err := b.Transact([]byte("{}\n")); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func TestTransact_NoReply(t *testing.T) {
	dev := &fakeDevice{}
	b, _ := newBus(t, dev, 0)
	if err := b.Begin(9600); err != nil {
		t.Fatalf("Begin err=%v", err)
	}
	if _, err := b.Transact([]byte("{}\n")); err == nil {
		t.Fatalf("expected read error when device stays silent")
	}
}

// lateDevice answers nothing until the test releases queued replies, then
// serves them in order. Reads with nothing queued time out.
type lateDevice struct {
	out      bytes.Buffer
	requests int
	answer   bool
}

var errReadTimeout = errors.New("read timeout")

func (d *lateDevice) Write(p []byte) (int, error) {
	if bytes.HasSuffix(p, []byte("\n")) {
		d.requests++
		if d.answer {
			fmt.Fprintf(&d.out, "{\"reply\":%d}\n", d.requests)
		}
	}
	return len(p), nil
}

func (d *lateDevice) Read(p []byte) (int, error) {
	if d.out.Len() == 0 {
		return 0, errReadTimeout
	}
	return d.out.Read(p)
}

func (d *lateDevice) Close() error { return nil }

func TestTransact_LateReplyDiscarded(t *testing.T) {
	dev := &lateDevice{}
	b := NewWithOpener(Config{Address: "/dev/fake"}, func(*gserial.Config) (io.ReadWriteCloser, error) {
		return dev, nil
	})
	if err := b.Begin(9600); err != nil {
		t.Fatalf("Begin err=%v", err)
	}

	if _, err := b.Transact([]byte("{\"req\":\"hub.status\"}\n")); err == nil {
		t.Fatalf("expected timeout on first request")
	}

	// The first reply shows up after its request gave up.
	dev.out.WriteString("{\"reply\":1}\n")
	dev.answer = true

	line, err := b.Transact([]byte("{\"req\":\"note.add\"}\n"))
	if err != nil {
		t.Fatalf("Transact err=%v", err)
	}
	if strings.TrimSpace(string(line)) != "{\"reply\":2}" {
		t.Fatalf("got stale reply %q", line)
	}
}

func TestTransact_CleanLinkNotDrained(t *testing.T) {
	dev := &lateDevice{answer: true}
	b := NewWithOpener(Config{Address: "/dev/fake"}, func(*gserial.Config) (io.ReadWriteCloser, error) {
		return dev, nil
	})
	if err := b.Begin(9600); err != nil {
		t.Fatalf("Begin err=%v", err)
	}

	for want := 1; want <= 2; want++ {
		line, err := b.Transact([]byte("{}\n"))
		if err != nil {
			t.Fatalf("Transact err=%v", err)
		}
		if strings.TrimSpace(string(line)) != fmt.Sprintf("{\"reply\":%d}", want) {
			t.Fatalf("request %d got %q", want, line)
		}
	}
}
