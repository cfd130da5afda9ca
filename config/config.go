package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ControllerConfig defines a saved grid controller configuration
type ControllerConfig struct {
	PortName    string `toml:"port"`
	Model       string `toml:"model,omitempty"` // launchpad-x, launchpad-mk2; empty = detect
	AutoConnect bool   `toml:"auto_connect"`
}

// OutputConfig defines a MIDI output the engine sends CC to
type OutputConfig struct {
	PortName    string `toml:"port"`
	AutoConnect bool   `toml:"auto_connect"`
}

// EngineConfig tunes the scheduling loop
type EngineConfig struct {
	BatchSize      int `toml:"batch_size"`
	TickIntervalMs int `toml:"tick_interval_ms"`
}

// ClockConfig configures tempo and beat tracking
type ClockConfig struct {
	Tempo          float64 `toml:"tempo"`
	Link           bool    `toml:"link"`
	PollIntervalMs int     `toml:"poll_interval_ms"`
	BeatsPerBar    int     `toml:"beats_per_bar"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	LastProject string  `toml:"last_project,omitempty"`
	MorphBeats  float64 `toml:"morph_beats"`
}

// LogConfig controls the debug log
type LogConfig struct {
	Debug bool   `toml:"debug"`
	Path  string `toml:"path,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Outputs     []OutputConfig     `toml:"outputs,omitempty"`
	Controllers []ControllerConfig `toml:"controllers,omitempty"`
	Engine      EngineConfig       `toml:"engine"`
	Clock       ClockConfig        `toml:"clock"`
	UI          UIConfig           `toml:"ui"`
	Log         LogConfig          `toml:"log"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Controllers: []ControllerConfig{
			{
				PortName:    "Launchpad X LPX MIDI",
				Model:       "launchpad-x",
				AutoConnect: true,
			},
		},
		Engine: EngineConfig{
			BatchSize:      10,
			TickIntervalMs: 1,
		},
		Clock: ClockConfig{
			Tempo:          120,
			PollIntervalMs: 10,
			BeatsPerBar:    4,
		},
		UI: UIConfig{
			MorphBeats: 4,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "snap-blaster"), nil
}

// ConfigPath returns the full path to config.toml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config from path. Missing keys keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	cfg.Controllers = nil
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

// fillDefaults replaces zero or invalid values
func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.Engine.BatchSize <= 0 {
		c.Engine.BatchSize = d.Engine.BatchSize
	}
	if c.Engine.TickIntervalMs <= 0 {
		c.Engine.TickIntervalMs = d.Engine.TickIntervalMs
	}
	if c.Clock.Tempo <= 0 {
		c.Clock.Tempo = d.Clock.Tempo
	}
	if c.Clock.PollIntervalMs <= 0 {
		c.Clock.PollIntervalMs = d.Clock.PollIntervalMs
	}
	if c.Clock.BeatsPerBar <= 0 {
		c.Clock.BeatsPerBar = d.Clock.BeatsPerBar
	}
	if c.UI.MorphBeats <= 0 {
		c.UI.MorphBeats = d.UI.MorphBeats
	}
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

func (c *Config) SaveFile(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Engine.TickIntervalMs) * time.Millisecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Clock.PollIntervalMs) * time.Millisecond
}

// FindController finds a controller config by port name
func (c *Config) FindController(portName string) *ControllerConfig {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == portName {
			return &c.Controllers[i]
		}
	}
	return nil
}

// AddController adds or updates a controller config
func (c *Config) AddController(ctrl ControllerConfig) {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == ctrl.PortName {
			c.Controllers[i] = ctrl
			return
		}
	}
	c.Controllers = append(c.Controllers, ctrl)
}

// AutoConnectControllers returns controllers with autoConnect enabled
func (c *Config) AutoConnectControllers() []ControllerConfig {
	var result []ControllerConfig
	for _, ctrl := range c.Controllers {
		if ctrl.AutoConnect {
			result = append(result, ctrl)
		}
	}
	return result
}

// AddOutput adds or updates an output config
func (c *Config) AddOutput(out OutputConfig) {
	for i := range c.Outputs {
		if c.Outputs[i].PortName == out.PortName {
			c.Outputs[i] = out
			return
		}
	}
	c.Outputs = append(c.Outputs, out)
}

// AutoConnectOutputs returns the port names of outputs with autoConnect enabled
func (c *Config) AutoConnectOutputs() []string {
	var result []string
	for _, out := range c.Outputs {
		if out.AutoConnect {
			result = append(result, out.PortName)
		}
	}
	return result
}
