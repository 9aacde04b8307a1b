// internal/notecard/builder.go
package notecard

import (
	"errors"
	"time"

	"go.uber.org/zap"

	cfg "github.com/tamzrod/notecard-handler/internal/config"
	"github.com/tamzrod/notecard-handler/internal/note/i2c"
	"github.com/tamzrod/notecard-handler/internal/note/serial"
)

// Build constructs a Handler on the configured transport and returns it with
// the transport's closer. The bus is opened lazily by HandleInit.
// Assumes config has already passed Validate and Normalize.
func Build(c cfg.NotecardConfig, log *zap.Logger) (*Handler, func() error, error) {
	hc := Config{
		ProductUID:       c.ProductUID,
		NotehubURL:       c.NotehubURL,
		KeepAlive:        c.KeepAlive == nil || *c.KeepAlive,
		InterruptEnabled: c.InterruptEnabled,
		ConnectTimeout:   ms(c.ConnectTimeoutMs),
	}

	switch {
	case c.Serial != nil:
		s := c.Serial
		bus, err := serial.New(serial.Config{
			Address:      s.Device,
			Timeout:      ms(s.TimeoutMs),
			SegmentMax:   s.SegmentMax,
			SegmentDelay: ms(s.SegmentDelayMs),
		})
		if err != nil {
			return nil, nil, err
		}
		h, err := NewSerial(hc, bus, s.Baud, WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return h, bus.Close, nil

	case c.I2C != nil:
		b := c.I2C
		bc, err := i2c.Open(b.Bus)
		if err != nil {
			return nil, nil, err
		}
		bus := i2c.New(bc, i2c.Config{Timeout: ms(b.TimeoutMs)})
		h, err := NewI2C(hc, bus, b.Address, b.Max, WithLogger(log))
		if err != nil {
			bc.Close()
			return nil, nil, err
		}
		return h, bc.Close, nil
	}

	return nil, nil, errors.New("notecard: no transport configured")
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
