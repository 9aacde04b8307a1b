// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap/zapcore"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}

	// ------------------------------------------------------------
	// NOTECARD
	// ------------------------------------------------------------

	nc := cfg.Notecard

	if nc.ProductUID == "" {
		return errors.New("notecard: product_uid is required")
	}
	// product uid sanity (ASCII only)
	for i := 0; i < len(nc.ProductUID); i++ {
		if nc.ProductUID[i] > 0x7F {
			return fmt.Errorf("notecard: product_uid %q must contain ASCII characters only", nc.ProductUID)
		}
	}

	if nc.ConnectTimeoutMs < 0 {
		return fmt.Errorf("notecard: connect_timeout_ms must be >= 0, got %d", nc.ConnectTimeoutMs)
	}
	if nc.TickMs < 0 {
		return fmt.Errorf("notecard: tick_ms must be >= 0, got %d", nc.TickMs)
	}

	// exactly one transport
	switch {
	case nc.Serial == nil && nc.I2C == nil:
		return errors.New("notecard: one of serial or i2c is required")
	case nc.Serial != nil && nc.I2C != nil:
		return errors.New("notecard: serial and i2c are mutually exclusive")
	}

	if s := nc.Serial; s != nil {
		if s.Device == "" {
			return errors.New("notecard.serial: device is required")
		}
		if s.Baud < 0 {
			return fmt.Errorf("notecard.serial: invalid baud %d", s.Baud)
		}
		if s.TimeoutMs < 0 || s.SegmentMax < 0 {
			return errors.New("notecard.serial: timeout_ms and segment_max must be >= 0")
		}
	}

	if b := nc.I2C; b != nil {
		if b.Address > 0x7F {
			return fmt.Errorf("notecard.i2c: address 0x%x is not a 7-bit address", b.Address)
		}
		if b.Max < 0 || b.Max > 255 {
			return fmt.Errorf("notecard.i2c: max must be within 0..255, got %d", b.Max)
		}
		if b.TimeoutMs < 0 {
			return errors.New("notecard.i2c: timeout_ms must be >= 0")
		}
	}

	// ------------------------------------------------------------
	// STATUS MIRROR (OPT-IN)
	// ------------------------------------------------------------

	if m := cfg.Mirror; m != nil {
		if m.Endpoint == "" {
			return errors.New("mirror: endpoint is required")
		}
		if m.TimeoutMs < 0 {
			return errors.New("mirror: timeout_ms must be >= 0")
		}
		// the block must fit the 16-bit register space
		if int(m.BaseSlot)*20+19 > 0xFFFF {
			return fmt.Errorf("mirror: base_slot %d out of range", m.BaseSlot)
		}
	}

	// ------------------------------------------------------------
	// PAYLOAD RELAY (OPT-IN)
	// ------------------------------------------------------------

	if r := cfg.Relay; r != nil {
		if r.Broker == "" {
			return errors.New("relay: broker is required")
		}
		u, err := url.Parse(r.Broker)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("relay: broker %q must be a URL like tcp://host:1883", r.Broker)
		}
		if r.QoS > 2 {
			return fmt.Errorf("relay: qos must be 0, 1 or 2, got %d", r.QoS)
		}
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	if cfg.Log.Level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}

	return nil
}
