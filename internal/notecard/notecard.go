// internal/notecard/notecard.go
package notecard

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/notecard-handler/internal/connection"
	"github.com/tamzrod/notecard-handler/internal/note"
	"github.com/tamzrod/notecard-handler/internal/status"
)

// Notefile names and template ports. These values are shared with the cloud
// side and MUST NOT be configurable.
const (
	NotefileBaseName = "arduino_iot_cloud"

	InboundNotefile  = NotefileBaseName + ".qis"
	OutboundNotefile = NotefileBaseName + ".qos"

	// Ports distinguish the two notefiles on port-multiplexed transports
	// (LoRa, satellite).
	InboundPort  = 79
	OutboundPort = 83
)

// DefaultConnectTimeout bounds CONNECTING before a full restart at INIT.
const DefaultConnectTimeout = 185 * time.Second

// Config is immutable after construction.
type Config struct {
	ProductUID       string
	NotehubURL       string
	KeepAlive        bool
	InterruptEnabled bool
	ConnectTimeout   time.Duration
}

// SerialBus is a serial link to the bridge.
type SerialBus interface {
	note.Port
	Begin(baud int) error
}

// AddressedBus is an addressed (I2C) link to the bridge.
type AddressedBus interface {
	note.Port
	Begin(addr uint16, limit int) error
}

type transport int

const (
	transportSerial transport = iota
	transportI2C
)

// Handler is the bridge-specific connection handler. It implements
// connection.Handler and the application-facing Write/Read/Available.
//
// Single goroutine only: state handlers and payload calls may interleave
// between ticks but must never run in parallel.
type Handler struct {
	cfg Config
	log *zap.Logger
	now func() time.Time

	kind    transport
	serial  SerialBus
	baud    int
	i2c     AddressedBus
	i2cAddr uint16
	i2cMax  int

	card *note.Card

	keepAlive  bool
	deviceUID  string
	connStart  time.Time
	lastStatus status.ConnectionStatus

	// inbound buffer: 0 <= index <= len(inbound)
	inbound []byte
	index   int
}

var _ connection.Handler = (*Handler)(nil)

// Option customizes a Handler.
type Option func(*Handler)

// WithLogger sets the logger. nil keeps the no-op default.
func WithLogger(log *zap.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithClock replaces time.Now. The clock must be monotonic.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// NewSerial creates a handler talking to the bridge over a serial bus at baud.
func NewSerial(cfg Config, bus SerialBus, baud int, opts ...Option) (*Handler, error) {
	if bus == nil {
		return nil, errors.New("notecard: serial bus required")
	}
	if baud <= 0 {
		return nil, errors.New("notecard: baud rate must be > 0")
	}
	h := newHandler(cfg, bus, opts)
	h.kind = transportSerial
	h.serial = bus
	h.baud = baud
	return h, nil
}

// NewI2C creates a handler talking to the bridge at addr on an addressed bus,
// moving at most limit bytes per frame.
func NewI2C(cfg Config, bus AddressedBus, addr uint16, limit int, opts ...Option) (*Handler, error) {
	if bus == nil {
		return nil, errors.New("notecard: i2c bus required")
	}
	h := newHandler(cfg, bus, opts)
	h.kind = transportI2C
	h.i2c = bus
	h.i2cAddr = addr
	h.i2cMax = limit
	return h, nil
}

func newHandler(cfg Config, port note.Port, opts []Option) *Handler {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	h := &Handler{
		cfg:       cfg,
		log:       zap.NewNop(),
		now:       time.Now,
		keepAlive: cfg.KeepAlive,
	}
	for _, o := range opts {
		o(h)
	}
	h.card = note.NewCard(port, h.log)
	return h
}

// SetKeepAlive implements connection.Handler.
func (h *Handler) SetKeepAlive(v bool) { h.keepAlive = v }

// KeepAlive reports the current keep-alive mode.
func (h *Handler) KeepAlive() bool { return h.keepAlive }

// DeviceUID is empty until INIT has read it from the bridge.
func (h *Handler) DeviceUID() string { return h.deviceUID }

// LastStatus is the most recent status query result.
func (h *Handler) LastStatus() status.ConnectionStatus { return h.lastStatus }

// Card exposes the transaction layer (diagnostics and tests).
func (h *Handler) Card() *note.Card { return h.card }

// begin initializes the transport selected at construction.
func (h *Handler) begin() error {
	switch h.kind {
	case transportSerial:
		return h.serial.Begin(h.baud)
	case transportI2C:
		return h.i2c.Begin(h.i2cAddr, h.i2cMax)
	}
	return errors.New("notecard: unknown transport")
}
