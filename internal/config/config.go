// Package config loads the pump-monitor daemon configuration from YAML,
// with optional overrides from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/pump-monitor/internal/flow"
	"github.com/sweeney/pump-monitor/internal/gpio"
)

// Environment variables that override file values when set.
const (
	EnvBroker  = "PUMP_MONITOR_BROKER"
	EnvDataDir = "PUMP_MONITOR_DATA_DIR"
	EnvDB      = "PUMP_MONITOR_DB"
)

// Config is the daemon configuration.
type Config struct {
	Chip     string          `yaml:"chip"`
	Window   time.Duration   `yaml:"window"`
	Cooldown *time.Duration  `yaml:"cooldown"`
	Channels []ChannelConfig `yaml:"channels"`
	Relays   []RelayConfig   `yaml:"relays"`
	Sink     SinkConfig      `yaml:"sink"`
	MQTT     MQTTConfig      `yaml:"mqtt"`
	DB       DBConfig        `yaml:"db"`
	HTTP     HTTPConfig      `yaml:"http"`
}

// ChannelConfig describes one flow sensor input.
type ChannelConfig struct {
	Name          string        `yaml:"name"`
	FlowPin       int           `yaml:"flow_pin"`
	PulsesPerUnit float64       `yaml:"pulses_per_unit"`
	Debounce      time.Duration `yaml:"debounce"`
}

// RelayConfig describes one relay output. Relays switch in list order.
type RelayConfig struct {
	Name      string `yaml:"name"`
	Pin       int    `yaml:"pin"`
	ActiveLow *bool  `yaml:"active_low"`
}

// IsActiveLow reports whether the relay is driven low to switch on.
// Unset means true; the stock relay board is active-low.
func (r RelayConfig) IsActiveLow() bool {
	return r.ActiveLow == nil || *r.ActiveLow
}

// SinkConfig locates the daily CSV store and the JSON export.
type SinkConfig struct {
	DataDir  string `yaml:"data_dir"`
	JSONFile string `yaml:"json_file"`
}

// MQTTConfig configures result publishing. An empty Broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// DBConfig configures the Postgres sink. An empty ConnString disables it.
type DBConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

// HTTPConfig configures the status server.
type HTTPConfig struct {
	Addr *string `yaml:"addr"`
}

// ListenAddr returns the HTTP listen address, or "" when disabled.
func (h HTTPConfig) ListenAddr() string {
	if h.Addr == nil {
		return ":8080"
	}
	return *h.Addr
}

// CooldownDuration returns the configured pause between cycles.
func (c *Config) CooldownDuration() time.Duration {
	if c.Cooldown == nil {
		return 5 * time.Second
	}
	return *c.Cooldown
}

// Default returns the configuration of the stock two-pump rig.
func Default() *Config {
	cfg := &Config{
		Channels: []ChannelConfig{
			{Name: "PUMP_1", FlowPin: gpio.PinFlow1},
			{Name: "PUMP_2", FlowPin: gpio.PinFlow2},
		},
		Relays: []RelayConfig{
			{Name: "PUMP1", Pin: gpio.PinPump1},
			{Name: "SOL1", Pin: gpio.PinSolenoid1},
			{Name: "PUMP2", Pin: gpio.PinPump2},
			{Name: "SOL2", Pin: gpio.PinSolenoid2},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file. An empty path yields Default.
// Environment overrides are applied before validation.
func Load(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = &Config{}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if len(cfg.Channels) == 0 && len(cfg.Relays) == 0 {
			def := Default()
			cfg.Channels = def.Channels
			cfg.Relays = def.Relays
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; with no arguments ".env" is tried.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBroker); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Sink.DataDir = v
	}
	if v := os.Getenv(EnvDB); v != "" {
		c.DB.ConnString = v
	}
}

func (c *Config) applyDefaults() {
	if c.Chip == "" {
		c.Chip = gpio.DefaultChip
	}
	if c.Window == 0 {
		c.Window = 3 * time.Second
	}
	if c.Cooldown == nil {
		d := 5 * time.Second
		c.Cooldown = &d
	}
	for i := range c.Channels {
		if c.Channels[i].PulsesPerUnit == 0 {
			c.Channels[i].PulsesPerUnit = flow.DefaultPulsesPerUnit
		}
	}
	if c.Sink.DataDir == "" {
		c.Sink.DataDir = "./data"
	}
	if c.Sink.JSONFile == "" {
		c.Sink.JSONFile = "data.json"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "pumps/flow/results"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "pump-monitor"
	}
	if c.DB.Table == "" {
		c.DB.Table = "flow_samples"
	}
}

func (c *Config) validate() error {
	if len(c.Channels) == 0 {
		return fmt.Errorf("at least one channel is required")
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", c.Window)
	}
	if c.CooldownDuration() < 0 {
		return fmt.Errorf("cooldown must not be negative, got %s", c.CooldownDuration())
	}

	names := make(map[string]bool, len(c.Channels)+len(c.Relays))
	for i, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channels[%d]: name is required", i)
		}
		if names[ch.Name] {
			return fmt.Errorf("channels[%d]: duplicate name %q", i, ch.Name)
		}
		names[ch.Name] = true
		if ch.PulsesPerUnit <= 0 {
			return fmt.Errorf("channel %s: pulses_per_unit must be positive", ch.Name)
		}
		if ch.FlowPin < 0 {
			return fmt.Errorf("channel %s: invalid flow_pin %d", ch.Name, ch.FlowPin)
		}
	}

	pins := make(map[int]string, len(c.Channels)+len(c.Relays))
	for _, ch := range c.Channels {
		if other, ok := pins[ch.FlowPin]; ok {
			return fmt.Errorf("channel %s: flow_pin %d already used by %s", ch.Name, ch.FlowPin, other)
		}
		pins[ch.FlowPin] = ch.Name
	}
	for i, r := range c.Relays {
		if r.Name == "" {
			return fmt.Errorf("relays[%d]: name is required", i)
		}
		if names[r.Name] {
			return fmt.Errorf("relays[%d]: duplicate name %q", i, r.Name)
		}
		names[r.Name] = true
		if other, ok := pins[r.Pin]; ok {
			return fmt.Errorf("relay %s: pin %d already used by %s", r.Name, r.Pin, other)
		}
		pins[r.Pin] = r.Name
	}
	return nil
}

// FlowChannels returns the configured channels as flow.Channel values.
func (c *Config) FlowChannels() []flow.Channel {
	out := make([]flow.Channel, len(c.Channels))
	for i, ch := range c.Channels {
		out[i] = flow.Channel{Name: ch.Name, Pin: ch.FlowPin, PulsesPerUnit: ch.PulsesPerUnit}
	}
	return out
}

// RelayNames returns relay names in actuation order.
func (c *Config) RelayNames() []string {
	out := make([]string, len(c.Relays))
	for i, r := range c.Relays {
		out[i] = r.Name
	}
	return out
}
