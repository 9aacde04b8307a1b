// internal/config/validate_test.go
package config

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// helper to build a minimal valid serial config quickly
func serialConfig() *Config {
	return &Config{
		Notecard: NotecardConfig{
			ProductUID: "com.example.user:project",
			Serial:     &SerialConfig{Device: "/dev/ttyACM0"},
		},
	}
}

// ---- tests ----

func TestValidate_MinimalSerial(t *testing.T) {
	if err := Validate(serialConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MinimalI2C(t *testing.T) {
	cfg := &Config{
		Notecard: NotecardConfig{
			ProductUID: "p",
			I2C:        &I2CConfig{},
		},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		description string
		mutate      func(c *Config)
	}{
		{"no transport", func(c *Config) { c.Notecard.Serial = nil }},
		{"two transports", func(c *Config) { c.Notecard.I2C = &I2CConfig{} }},
		{"no product", func(c *Config) { c.Notecard.ProductUID = "" }},
		{"non ascii product", func(c *Config) { c.Notecard.ProductUID = "prøduct" }},
		{"no serial device", func(c *Config) { c.Notecard.Serial.Device = "" }},
		{"negative baud", func(c *Config) { c.Notecard.Serial.Baud = -1 }},
		{"8-bit i2c address", func(c *Config) {
			c.Notecard.Serial = nil
			c.Notecard.I2C = &I2CConfig{Address: 0x80}
		}},
		{"i2c max too large", func(c *Config) {
			c.Notecard.Serial = nil
			c.Notecard.I2C = &I2CConfig{Max: 256}
		}},
		{"mirror without endpoint", func(c *Config) { c.Mirror = &MirrorConfig{} }},
		{"mirror block past register space", func(c *Config) { c.Mirror = &MirrorConfig{Endpoint: "h:502", BaseSlot: 4000} }},
		{"relay without broker", func(c *Config) { c.Relay = &RelayConfig{} }},
		{"relay broker not url", func(c *Config) { c.Relay = &RelayConfig{Broker: "localhost"} }},
		{"relay qos", func(c *Config) { c.Relay = &RelayConfig{Broker: "tcp://localhost:1883", QoS: 3} }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			cfg := serialConfig()
			test.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := serialConfig()
	before := *cfg.Notecard.Serial
	_ = Validate(cfg)
	if diff := cmp.Diff(before, *cfg.Notecard.Serial); diff != "" {
		t.Fatalf("Validate mutated config (-before +after):\n%s", diff)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := serialConfig()
	cfg.Relay = &RelayConfig{Broker: "tcp://localhost:1883"}
	cfg.Mirror = &MirrorConfig{Endpoint: "127.0.0.1:502"}

	Normalize(cfg)

	if cfg.Notecard.KeepAlive == nil || !*cfg.Notecard.KeepAlive {
		t.Fatalf("keep_alive should default to true")
	}
	want := SerialConfig{
		Device:         "/dev/ttyACM0",
		Baud:           DefaultBaud,
		TimeoutMs:      DefaultSerialTimeout,
		SegmentMax:     DefaultSegmentMax,
		SegmentDelayMs: DefaultSegmentDelayMs,
	}
	if diff := cmp.Diff(want, *cfg.Notecard.Serial); diff != "" {
		t.Fatalf("serial defaults mismatch (-want +got):\n%s", diff)
	}
	if cfg.Notecard.ConnectTimeoutMs != DefaultConnectTimeoutMs || cfg.Notecard.TickMs != DefaultTickMs {
		t.Fatalf("timing defaults not applied: %+v", cfg.Notecard)
	}
	if cfg.Mirror.TimeoutMs != DefaultMirrorTimeoutMs {
		t.Fatalf("mirror timeout default not applied")
	}
	if cfg.Relay.TopicPrefix != DefaultTopicPrefix || !strings.HasPrefix(cfg.Relay.ClientID, "notecardd-") {
		t.Fatalf("relay defaults not applied: %+v", cfg.Relay)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Fatalf("log level default not applied")
	}
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	off := false
	cfg := serialConfig()
	cfg.Notecard.KeepAlive = &off
	cfg.Notecard.Serial.Baud = 115200
	cfg.Notecard.Serial.SegmentDelayMs = -1

	Normalize(cfg)

	if *cfg.Notecard.KeepAlive {
		t.Fatalf("explicit keep_alive=false overwritten")
	}
	if cfg.Notecard.Serial.Baud != 115200 {
		t.Fatalf("explicit baud overwritten")
	}
	if cfg.Notecard.Serial.SegmentDelayMs != 0 {
		t.Fatalf("negative segment delay should disable the pause, got %d", cfg.Notecard.Serial.SegmentDelayMs)
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
notecard:
  product_uid: com.example.user:project
  keep_alive: false
  interrupt: true
  i2c:
    address: 0x17
    max: 30
mirror:
  endpoint: 127.0.0.1:502
  unit_id: 3
log:
  level: debug
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse err=%v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate err=%v", err)
	}
	if cfg.Notecard.I2C == nil || cfg.Notecard.I2C.Address != 0x17 || cfg.Notecard.I2C.Max != 30 {
		t.Fatalf("i2c not parsed: %+v", cfg.Notecard.I2C)
	}
	if cfg.Notecard.KeepAlive == nil || *cfg.Notecard.KeepAlive || !cfg.Notecard.InterruptEnabled {
		t.Fatalf("flags not parsed: %+v", cfg.Notecard)
	}
	if cfg.Mirror.UnitID != 3 {
		t.Fatalf("mirror not parsed: %+v", cfg.Mirror)
	}
}

func TestParse_UnknownKey(t *testing.T) {
	if _, err := Parse([]byte("notecard:\n  bogus: 1\n")); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}
