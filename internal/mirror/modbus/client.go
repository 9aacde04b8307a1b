// internal/mirror/modbus/client.go
package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// Dialer opens one TCP session addressed to unitID.
type Dialer func(unitID uint8) (modbus.Client, io.Closer, error)

type Config struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
}

// EndpointClient writes the status block over a Modbus TCP session that is
// dropped after any failed write and redialled on the next one, so a full
// re-assert always lands on a fresh connection.
type EndpointClient struct {
	mu   sync.Mutex
	dial Dialer

	client modbus.Client
	conn   io.Closer
	unitID uint8
}

// NewEndpointClient dials once to fail fast on a bad endpoint.
func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("mirror modbus: endpoint required")
	}
	c := NewWithDialer(func(unitID uint8) (modbus.Client, io.Closer, error) {
		h := modbus.NewTCPClientHandler(cfg.Endpoint)
		h.Timeout = cfg.Timeout
		h.SlaveId = unitID
		if err := h.Connect(); err != nil {
			return nil, nil, fmt.Errorf("mirror modbus: connect %s: %w", cfg.Endpoint, err)
		}
		return modbus.NewClient(h), h, nil
	})
	if err := c.connect(cfg.UnitID); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWithDialer builds an unconnected client. The first write dials.
func NewWithDialer(dial Dialer) *EndpointClient {
	return &EndpointClient{dial: dial}
}

func (c *EndpointClient) connect(unitID uint8) error {
	client, conn, err := c.dial(unitID)
	if err != nil {
		return err
	}
	c.client, c.conn, c.unitID = client, conn, unitID
	return nil
}

func (c *EndpointClient) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.client, c.conn = nil, nil
}

// Connected reports whether a session is currently held.
func (c *EndpointClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drop()
	return nil
}

// WriteRegisters writes holding registers (FC16). The unit ID is bound to
// the session; a different one redials.
func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.unitID != unitID {
		c.drop()
	}
	if c.client == nil {
		if err := c.connect(unitID); err != nil {
			return err
		}
	}

	payload := make([]byte, 2*len(regs))
	for i, r := range regs {
		binary.BigEndian.PutUint16(payload[2*i:], r)
	}

	if _, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), payload); err != nil {
		c.drop()
		return fmt.Errorf("mirror modbus: write %d regs at %d: %w", len(regs), addr, err)
	}
	return nil
}
