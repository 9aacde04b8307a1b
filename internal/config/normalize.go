// internal/config/normalize.go
package config

import "github.com/google/uuid"

// Defaults applied by Normalize.
const (
	DefaultConnectTimeoutMs = 185000
	DefaultTickMs           = 100

	DefaultBaud           = 9600
	DefaultSerialTimeout  = 10000
	DefaultSegmentMax     = 250
	DefaultSegmentDelayMs = 250

	DefaultI2CAddress = 0x17
	DefaultI2CMax     = 255
	DefaultI2CTimeout = 10000

	DefaultMirrorTimeoutMs = 1000

	DefaultTopicPrefix = "notecard"
	DefaultLogLevel    = "info"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	nc := &cfg.Notecard

	if nc.KeepAlive == nil {
		v := true
		nc.KeepAlive = &v
	}
	if nc.ConnectTimeoutMs == 0 {
		nc.ConnectTimeoutMs = DefaultConnectTimeoutMs
	}
	if nc.TickMs == 0 {
		nc.TickMs = DefaultTickMs
	}

	if s := nc.Serial; s != nil {
		if s.Baud == 0 {
			s.Baud = DefaultBaud
		}
		if s.TimeoutMs == 0 {
			s.TimeoutMs = DefaultSerialTimeout
		}
		if s.SegmentMax == 0 {
			s.SegmentMax = DefaultSegmentMax
		}
		switch {
		case s.SegmentDelayMs == 0:
			s.SegmentDelayMs = DefaultSegmentDelayMs
		case s.SegmentDelayMs < 0:
			s.SegmentDelayMs = 0
		}
	}

	if b := nc.I2C; b != nil {
		if b.Address == 0 {
			b.Address = DefaultI2CAddress
		}
		if b.Max == 0 {
			b.Max = DefaultI2CMax
		}
		if b.TimeoutMs == 0 {
			b.TimeoutMs = DefaultI2CTimeout
		}
	}

	if m := cfg.Mirror; m != nil && m.TimeoutMs == 0 {
		m.TimeoutMs = DefaultMirrorTimeoutMs
	}

	if r := cfg.Relay; r != nil {
		if r.TopicPrefix == "" {
			r.TopicPrefix = DefaultTopicPrefix
		}
		if r.ClientID == "" {
			r.ClientID = "notecardd-" + uuid.New().String()
		}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}
