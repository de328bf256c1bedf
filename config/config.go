package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/metronome/input"
	"github.com/robmorgan/metronome/rhythm"
	"gopkg.in/yaml.v3"
)

const (
	BackendSim  = "sim"
	BackendRPi  = "rpio"
	maxMIDIData = 127
)

// MetronomeConfig represents options that configure the global behavior of the program
type MetronomeConfig struct {
	// Backend selects the pin implementation: "sim" (keyboard driven) or "rpio".
	Backend string `yaml:"backend"`

	// Pins are BCM pin numbers, only used by the rpio backend.
	Pins PinConfig `yaml:"pins"`

	PollInterval  time.Duration `yaml:"poll_interval"`
	PulseWidth    time.Duration `yaml:"pulse_width"`
	QueueCapacity int           `yaml:"queue_capacity"`

	LogLevel string `yaml:"log_level"`
	// Color enables coloured display output.
	Color bool `yaml:"color"`
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr"`

	MIDI  MIDIConfig  `yaml:"midi"`
	OSC   OSCConfig   `yaml:"osc"`
	DMX   DMXConfig   `yaml:"dmx"`
	Audio AudioConfig `yaml:"audio"`
}

type PinConfig struct {
	LED    int `yaml:"led"`
	Buzzer int `yaml:"buzzer"`
	Up     int `yaml:"up"`
	Down   int `yaml:"down"`
}

// MIDIConfig sends a note per beat to Port when it is set.
type MIDIConfig struct {
	Port     string `yaml:"port"`
	Channel  uint8  `yaml:"channel"`
	Key      uint8  `yaml:"key"`
	Velocity uint8  `yaml:"velocity"`
}

// OSCConfig sends beat messages to Host:Port when Host is set.
type OSCConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// DMXConfig flashes a channel through OLA when OLA is set.
type DMXConfig struct {
	OLA      string `yaml:"ola"`
	Universe int    `yaml:"universe"`
	Channel  int    `yaml:"channel"`
}

type AudioConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Frequency float64 `yaml:"frequency"`
}

// InvalidConfigError is returned when a configuration value is out of range.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// Create a new MetronomeConfig object with reasonable defaults for real usage
func NewMetronomeConfig() MetronomeConfig {
	return MetronomeConfig{
		Backend: BackendSim,
		Pins: PinConfig{
			LED:    17,
			Buzzer: 27,
			Up:     23,
			Down:   24,
		},
		PollInterval:  input.PollInterval,
		PulseWidth:    rhythm.PulseWidth,
		QueueCapacity: rhythm.QueueCapacity,
		LogLevel:      "info",
		Color:         true,
		MIDI: MIDIConfig{
			Channel:  9,
			Key:      37,
			Velocity: 100,
		},
		OSC: OSCConfig{
			Port:    8765,
			Address: "/metronome/beat",
		},
		DMX: DMXConfig{
			Universe: 1,
			Channel:  1,
		},
		Audio: AudioConfig{
			Frequency: 1000,
		},
	}
}

// LoadMetronomeConfig reads a YAML file on top of the defaults. Keys missing from the
// file keep their default values.
func LoadMetronomeConfig(path string) (MetronomeConfig, error) {
	cfg := NewMetronomeConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.WithStackTrace(err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.WithStackTrace(fmt.Errorf("parsing %s: %w", path, err))
	}
	return cfg, cfg.Validate()
}

// Validate checks every value the program relies on.
func (c MetronomeConfig) Validate() error {
	switch c.Backend {
	case BackendSim, BackendRPi:
	default:
		return InvalidConfigError{Field: "backend", Reason: fmt.Sprintf("unknown backend %q, expected %s or %s", c.Backend, BackendSim, BackendRPi)}
	}
	if c.PollInterval <= 0 {
		return InvalidConfigError{Field: "poll_interval", Reason: "must be positive"}
	}
	if shortest := rhythm.Interval(rhythm.MaxBPM); c.PulseWidth <= 0 || c.PulseWidth >= shortest {
		return InvalidConfigError{Field: "pulse_width", Reason: fmt.Sprintf("must be between 0 and %s so pulses never overlap", shortest)}
	}
	if c.QueueCapacity < 1 {
		return InvalidConfigError{Field: "queue_capacity", Reason: "must be at least 1"}
	}
	if c.MIDI.Channel > 15 {
		return InvalidConfigError{Field: "midi.channel", Reason: "must be 0-15"}
	}
	if c.MIDI.Key > maxMIDIData || c.MIDI.Velocity > maxMIDIData {
		return InvalidConfigError{Field: "midi", Reason: "key and velocity must be 0-127"}
	}
	if c.OSC.Host != "" && (c.OSC.Port < 1 || c.OSC.Port > 65535) {
		return InvalidConfigError{Field: "osc.port", Reason: "must be 1-65535"}
	}
	if c.DMX.Channel < 1 || c.DMX.Channel > 512 {
		return InvalidConfigError{Field: "dmx.channel", Reason: "must be 1-512"}
	}
	if c.Audio.Enabled && c.Audio.Frequency <= 0 {
		return InvalidConfigError{Field: "audio.frequency", Reason: "must be positive"}
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		return InvalidConfigError{Field: "log_level", Reason: "must not be empty"}
	}
	return nil
}
