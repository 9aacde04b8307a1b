// internal/config/config.go
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Notecard NotecardConfig `yaml:"notecard"`
	Mirror   *MirrorConfig  `yaml:"mirror"`
	Relay    *RelayConfig   `yaml:"relay"`
	Log      LogConfig      `yaml:"log"`
}

// ---- NOTECARD ----

type NotecardConfig struct {
	ProductUID       string `yaml:"product_uid"`
	NotehubURL       string `yaml:"notehub_url"`
	KeepAlive        *bool  `yaml:"keep_alive"` // default true
	InterruptEnabled bool   `yaml:"interrupt"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
	TickMs           int    `yaml:"tick_ms"`

	// Exactly one transport.
	Serial *SerialConfig `yaml:"serial"`
	I2C    *I2CConfig    `yaml:"i2c"`
}

type SerialConfig struct {
	Device         string `yaml:"device"`
	Baud           int    `yaml:"baud"`
	TimeoutMs      int    `yaml:"timeout_ms"`
	SegmentMax     int    `yaml:"segment_max"`
	SegmentDelayMs int    `yaml:"segment_delay_ms"` // negative disables the pause
}

type I2CConfig struct {
	Bus       string `yaml:"bus"` // "" = first available
	Address   uint16 `yaml:"address"`
	Max       int    `yaml:"max"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- STATUS MIRROR (optional) ----

type MirrorConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	BaseSlot  uint16 `yaml:"base_slot"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- PAYLOAD RELAY (optional) ----

type RelayConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// ---- LOG ----

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads and decodes a YAML config file. It does not validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}
