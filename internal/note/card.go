// internal/note/card.go
package note

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// Port abstracts the byte transport to the bridge.
// One call = one request line out, one response line back.
type Port interface {
	Transact(req []byte) ([]byte, error)
}

// ErrNoPort is returned when a transaction is attempted before a port is attached.
var ErrNoPort = errors.New("note: no port attached")

// Card issues request/response transactions to a bridge over a Port.
// Not safe for concurrent use.
type Card struct {
	port        Port
	log         *zap.Logger
	outstanding atomic.Int64
}

// NewCard creates a card bound to port. A nil logger disables logging.
func NewCard(port Port, log *zap.Logger) *Card {
	if log == nil {
		log = zap.NewNop()
	}
	return &Card{port: port, log: log}
}

// Transaction submits req and returns the decoded reply.
//
// A non-nil error means the host could not complete the round trip
// (nothing usable came back). A bridge-side failure is NOT an error here:
// it is reported through Response.Err().
func (c *Card) Transaction(req *Request) (*Response, error) {
	if c == nil || c.port == nil {
		return nil, ErrNoPort
	}
	if req == nil {
		return nil, errors.New("note: nil request")
	}

	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("note: %s: encode: %w", req.cmd, err)
	}
	line = append(line, '\n')

	c.log.Debug("note: request", zap.ByteString("req", bytes.TrimSpace(line)))

	raw, err := c.port.Transact(line)
	if err != nil {
		return nil, fmt.Errorf("note: %s: transact: %w", req.cmd, err)
	}
	raw = bytes.TrimSpace(raw)

	c.log.Debug("note: response", zap.ByteString("rsp", raw))

	rsp := newResponse(c)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rsp.set.m); err != nil {
		rsp.owner = nil
		rsp.Release()
		return nil, fmt.Errorf("note: %s: decode: %w", req.cmd, err)
	}
	if rsp.set.m == nil {
		rsp.set.m = make(map[string]any)
	}

	c.outstanding.Add(1)
	return rsp, nil
}

// Outstanding returns the number of responses handed out and not yet released.
func (c *Card) Outstanding() int64 { return c.outstanding.Load() }
