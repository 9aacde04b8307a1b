// internal/note/serial/serial.go
package serial

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	gserial "github.com/goburrow/serial"
)

const (
	// DefaultSegmentMax is the largest chunk written before pausing so the
	// bridge UART buffer can drain.
	DefaultSegmentMax = 250

	// DefaultSegmentDelay is the pause between chunks.
	DefaultSegmentDelay = 250 * time.Millisecond

	// DefaultTimeout bounds a single read from the port.
	DefaultTimeout = 10 * time.Second

	// maxLine caps a response line; anything longer is a framing fault.
	maxLine = 64 * 1024
)

// ErrNotOpen is returned by Transact before Begin succeeded.
var ErrNotOpen = errors.New("serial bus: not open")

// Config is minimal transport config.
type Config struct {
	Address      string // e.g. /dev/ttyACM0
	Timeout      time.Duration
	SegmentMax   int
	SegmentDelay time.Duration
}

// Opener opens the underlying device. Tests swap it out.
type Opener func(c *gserial.Config) (io.ReadWriteCloser, error)

// Bus is a line-oriented serial link to the bridge.
// It implements note.Port.
type Bus struct {
	mu   sync.Mutex
	cfg  Config
	open Opener

	port io.ReadWriteCloser
	r    *bufio.Reader

	// dirty is set after a failed transaction: a late reply may still be
	// in flight and must not be taken as the answer to the next request.
	dirty bool
}

// New creates an unopened bus. Begin opens it at the requested speed.
func New(cfg Config) (*Bus, error) {
	if cfg.Address == "" {
		return nil, errors.New("serial bus: address required")
	}
	return NewWithOpener(cfg, func(c *gserial.Config) (io.ReadWriteCloser, error) {
		return gserial.Open(c)
	}), nil
}

// NewWithOpener is New with a caller-supplied opener.
func NewWithOpener(cfg Config, open Opener) *Bus {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SegmentMax <= 0 {
		cfg.SegmentMax = DefaultSegmentMax
	}
	if cfg.SegmentDelay < 0 {
		cfg.SegmentDelay = 0
	}
	return &Bus{cfg: cfg, open: open}
}

// Begin (re)opens the port at baud, 8N1. Any previously open port is closed.
func (b *Bus) Begin(baud int) error {
	if baud <= 0 {
		return fmt.Errorf("serial bus: invalid baud rate %d", baud)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.port != nil {
		_ = b.port.Close()
		b.port = nil
		b.r = nil
	}

	p, err := b.open(&gserial.Config{
		Address:  b.cfg.Address,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  b.cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("serial bus: open %s: %w", b.cfg.Address, err)
	}

	b.port = p
	b.r = bufio.NewReaderSize(p, 1024)
	b.dirty = false
	return nil
}

// Close closes the port.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	b.r = nil
	return err
}

// Transact writes req in segments and returns the next full line.
func (b *Bus) Transact(req []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.port == nil {
		return nil, ErrNotOpen
	}
	if b.dirty {
		b.resync()
	}

	for off := 0; off < len(req); {
		end := off + b.cfg.SegmentMax
		if end > len(req) {
			end = len(req)
		}
		if err := writeAll(b.port, req[off:end]); err != nil {
			b.dirty = true
			return nil, fmt.Errorf("serial bus: write: %w", err)
		}
		off = end
		if off < len(req) && b.cfg.SegmentDelay > 0 {
			time.Sleep(b.cfg.SegmentDelay)
		}
	}

	line, err := b.readLine()
	if err != nil {
		b.dirty = true
		return nil, fmt.Errorf("serial bus: read: %w", err)
	}
	return line, nil
}

// resync discards buffered input and drains the port until a read comes back
// empty or fails, which with a port timeout means the line has gone quiet.
func (b *Bus) resync() {
	b.r.Reset(b.port)

	buf := make([]byte, 256)
	for drained := 0; drained < maxLine; {
		n, err := b.port.Read(buf)
		drained += n
		if err != nil || n == 0 {
			break
		}
	}
	b.dirty = false
}

func (b *Bus) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := b.r.ReadSlice('\n')
		line = append(line, chunk...)
		if err == nil {
			return line, nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
		if len(line) > maxLine {
			return nil, errors.New("response line too long")
		}
	}
}

func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}
