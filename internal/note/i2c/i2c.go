// internal/note/i2c/i2c.go
package i2c

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	// DefaultAddress is the bridge's factory I2C address.
	DefaultAddress uint16 = 0x17

	// DefaultMax is the largest data chunk per frame. The frame length is
	// carried in one byte, so it is also the ceiling.
	DefaultMax = 255

	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
	DefaultChunkDelay   = 20 * time.Millisecond
)

// ErrNotStarted is returned by Transact before Begin succeeded.
var ErrNotStarted = errors.New("i2c bus: not started")

// ErrTimeout is returned when a full response line did not arrive in time.
var ErrTimeout = errors.New("i2c bus: response timeout")

// Device is the addressed-bus handle. periph's i2c.Bus satisfies it.
type Device interface {
	Tx(addr uint16, w, r []byte) error
}

// Config tunes timing. Zero values take defaults.
type Config struct {
	Timeout      time.Duration
	PollInterval time.Duration
	ChunkDelay   time.Duration
}

// Bus frames bridge transactions over an I2C device.
// It implements note.Port.
type Bus struct {
	mu  sync.Mutex
	dev Device
	cfg Config

	addr    uint16
	max     int
	started bool
}

// New wraps dev. Begin selects the address and chunk limit.
func New(dev Device, cfg Config) *Bus {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 0
	}
	return &Bus{dev: dev, cfg: cfg}
}

// Open initializes the host drivers and opens the named bus ("" = first available).
func Open(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("i2c bus: host init: %w", err)
	}
	bc, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c bus: open %q: %w", name, err)
	}
	return bc, nil
}

// Begin selects the device address and per-frame limit.
// addr 0 and max <= 0 take defaults; max is capped at DefaultMax.
func (b *Bus) Begin(addr uint16, max int) error {
	if b.dev == nil {
		return errors.New("i2c bus: device required")
	}
	if addr == 0 {
		addr = DefaultAddress
	}
	if addr > 0x7F {
		return fmt.Errorf("i2c bus: invalid 7-bit address 0x%x", addr)
	}
	if max <= 0 || max > DefaultMax {
		max = DefaultMax
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.addr = addr
	b.max = max
	b.started = true
	return nil
}

// Transact writes req as [len][data] frames and polls for one response line.
func (b *Bus) Transact(req []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil, ErrNotStarted
	}

	if err := b.write(req); err != nil {
		return nil, err
	}
	return b.readLine()
}

func (b *Bus) write(req []byte) error {
	for off := 0; off < len(req); {
		end := off + b.max
		if end > len(req) {
			end = len(req)
		}

		frame := make([]byte, 0, 1+end-off)
		frame = append(frame, byte(end-off))
		frame = append(frame, req[off:end]...)

		if err := b.dev.Tx(b.addr, frame, nil); err != nil {
			return fmt.Errorf("i2c bus: write: %w", err)
		}
		off = end
		if off < len(req) && b.cfg.ChunkDelay > 0 {
			time.Sleep(b.cfg.ChunkDelay)
		}
	}
	return nil
}

// readLine polls the bridge. Each poll asks for up to n bytes with [0][n];
// the reply is [available][returned][data...]. n starts at 0 (query only).
func (b *Bus) readLine() ([]byte, error) {
	deadline := time.Now().Add(b.cfg.Timeout)

	var line []byte
	want := 0

	for {
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}

		buf := make([]byte, 2+want)
		if err := b.dev.Tx(b.addr, []byte{0, byte(want)}, nil); err != nil {
			return nil, fmt.Errorf("i2c bus: read request: %w", err)
		}
		if err := b.dev.Tx(b.addr, nil, buf); err != nil {
			return nil, fmt.Errorf("i2c bus: read: %w", err)
		}

		available := int(buf[0])
		good := int(buf[1])
		if good > want {
			return nil, fmt.Errorf("i2c bus: bridge returned %d bytes, asked %d", good, want)
		}
		line = append(line, buf[2:2+good]...)

		if available == 0 && bytes.HasSuffix(line, []byte("\n")) {
			return line, nil
		}

		if available > 0 {
			want = available
			if want > b.max {
				want = b.max
			}
			continue
		}

		want = 0
		time.Sleep(b.cfg.PollInterval)
	}
}
