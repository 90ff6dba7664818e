// Package config loads the deployment configuration surface named in
// §6: node identity, peer MAC, radio parameters, relay settings,
// blacklist, and rate limits. Tier capacities and TTLs are not part of
// this file; they are fixed constants in internal/queue. The teacher's
// cmd/valkyrie/main.go declares a -config flag pointing at
// configs/config.yaml but never loads it; this package fills that gap
// using the same YAML library the rest of the example pack depends on.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RadioConfig configures one long-range radio instance.
type RadioConfig struct {
	FrequencyHz     float64 `yaml:"frequency_hz"`
	BandwidthKHz    float64 `yaml:"bandwidth_khz"`
	SpreadingFactor uint8   `yaml:"spreading_factor"`
	CodingRate      uint8   `yaml:"coding_rate"`
	SyncWord        uint8   `yaml:"sync_word"`
	TXPowerDBm      int8    `yaml:"tx_power_dbm"`
}

// RateLimitEntry overrides the minimum interval for one message id.
type RateLimitEntry struct {
	MessageID byte          `yaml:"message_id"`
	Interval  time.Duration `yaml:"interval"`
}

// Config is the full deployment configuration surface.
type Config struct {
	NodeID byte   `yaml:"node_id"`
	PeerMAC string `yaml:"peer_mac"`

	LongRange RadioConfig `yaml:"long_range"`
	Relay     struct {
		FrequencyHz   float64 `yaml:"frequency_hz"`
		AlwaysRelay   bool    `yaml:"always_relay"`
		RSSIThreshold float64 `yaml:"rssi_threshold"`
	} `yaml:"relay"`

	SerialPort string `yaml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate"`

	Blacklist  []byte           `yaml:"blacklist"`
	RateLimits []RateLimitEntry `yaml:"rate_limits"`

	HTTPPort    int `yaml:"http_port"`
	MetricsPort int `yaml:"metrics_port"`

	LogLevel string `yaml:"log_level"`
}

// Default returns a Config with the reference deployment's defaults:
// 930 MHz primary, 902 MHz relay, bandwidth 500 kHz, SF6, CR 4/5,
// 4 dBm TX power, per §6.
func Default() Config {
	cfg := Config{
		NodeID: 1,
		LongRange: RadioConfig{
			FrequencyHz:     930_000_000,
			BandwidthKHz:    500,
			SpreadingFactor: 6,
			CodingRate:      5,
			SyncWord:        0x12,
			TXPowerDBm:      4,
		},
		BaudRate:    115200,
		HTTPPort:    8080,
		MetricsPort: 9090,
		LogLevel:    "info",
	}
	cfg.Relay.FrequencyHz = 902_000_000
	return cfg
}

// Load reads and parses a YAML configuration file at path, starting
// from Default() so unspecified fields keep their reference values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// PeerHardwareAddr parses PeerMAC into the fixed-size form the
// close-range transport's Driver contract addresses by.
func (c Config) PeerHardwareAddr() ([6]byte, error) {
	var addr [6]byte
	if c.PeerMAC == "" {
		return addr, nil
	}
	hw, err := net.ParseMAC(c.PeerMAC)
	if err != nil {
		return addr, fmt.Errorf("config: invalid peer_mac %q: %w", c.PeerMAC, err)
	}
	if len(hw) != 6 {
		return addr, fmt.Errorf("config: peer_mac %q is not a 6-byte MAC", c.PeerMAC)
	}
	copy(addr[:], hw)
	return addr, nil
}
