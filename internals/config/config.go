// Copyright (c) 2023 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config loads the daemon configuration from a single YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultInterface          = "wlan0"
	defaultConnectTimeout     = 10 * time.Second
	defaultDisconnectWait     = 10 * time.Second
	defaultMaxConnectFailures = 5

	defaultProbeCount        = 10
	defaultProbeInterval     = time.Second
	defaultProbeTimeout      = time.Second
	defaultProbeBatchTimeout = 15 * time.Second
	defaultMaxProbeTimeouts  = 5
	defaultProbePort         = 53

	defaultHeartbeatTimeout = 60 * time.Second

	defaultChunkSize    = 1024
	defaultRestartDelay = 3 * time.Second
	defaultReadTimeout  = 5 * time.Second
	defaultReadRetries  = 10

	defaultStatePath = "/var/lib/wifiio/boot.json"

	defaultGPIOChip = "gpiochip0"
	defaultGPIOHold = 300 * time.Millisecond

	defaultAddress = ":80"

	defaultRestartMode = RestartReboot
)

// FormatError is the error returned when the configuration has a format
// error, an unknown field, or an invalid value.
type FormatError struct {
	Message string
}

func (e *FormatError) Error() string {
	return e.Message
}

type ProbeType string

const (
	ProbeICMP ProbeType = "icmp"
	ProbeTCP  ProbeType = "tcp"
	ProbeExec ProbeType = "exec"
)

type RestartMode string

const (
	RestartReboot RestartMode = "reboot"
	RestartExit   RestartMode = "exit"
)

type Config struct {
	Network   NetworkConfig   `yaml:"network,omitempty"`
	Probe     ProbeConfig     `yaml:"probe,omitempty"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat,omitempty"`
	Update    UpdateConfig    `yaml:"update,omitempty"`
	Storage   StorageConfig   `yaml:"storage,omitempty"`
	GPIO      GPIOConfig      `yaml:"gpio,omitempty"`
	HTTP      HTTPConfig      `yaml:"http,omitempty"`
	Restart   RestartConfig   `yaml:"restart,omitempty"`
}

type NetworkConfig struct {
	Interface          string           `yaml:"interface,omitempty"`
	ConnectTimeout     OptionalDuration `yaml:"connect-timeout,omitempty"`
	DisconnectWait     OptionalDuration `yaml:"disconnect-wait,omitempty"`
	MaxConnectFailures int              `yaml:"max-connect-failures,omitempty"`
}

type ProbeConfig struct {
	Type         ProbeType        `yaml:"type,omitempty"`
	Count        int              `yaml:"count,omitempty"`
	Interval     OptionalDuration `yaml:"interval,omitempty"`
	Timeout      OptionalDuration `yaml:"timeout,omitempty"`
	BatchTimeout OptionalDuration `yaml:"batch-timeout,omitempty"`
	MaxTimeouts  int              `yaml:"max-timeout-cycles,omitempty"`
	Privileged   bool             `yaml:"privileged,omitempty"`
	Port         int              `yaml:"port,omitempty"`
	Command      string           `yaml:"command,omitempty"`
}

type HeartbeatConfig struct {
	// Device is the hardware watchdog node. When empty a software
	// watchdog restarts the device instead.
	Device  string           `yaml:"device,omitempty"`
	Timeout OptionalDuration `yaml:"timeout,omitempty"`
}

type UpdateConfig struct {
	ChunkSize    ByteSize         `yaml:"chunk-size,omitempty"`
	RestartDelay OptionalDuration `yaml:"restart-delay,omitempty"`
	ReadTimeout  OptionalDuration `yaml:"read-timeout,omitempty"`
	ReadRetries  int              `yaml:"read-retries,omitempty"`
}

type StorageConfig struct {
	State string       `yaml:"state,omitempty"`
	Slots []SlotConfig `yaml:"slots,omitempty"`
}

type SlotConfig struct {
	Label  string   `yaml:"label"`
	Path   string   `yaml:"path"`
	Offset ByteSize `yaml:"offset,omitempty"`
	Size   ByteSize `yaml:"size"`
}

type GPIOConfig struct {
	Chip string           `yaml:"chip,omitempty"`
	Hold OptionalDuration `yaml:"hold,omitempty"`
}

type HTTPConfig struct {
	Address string `yaml:"address,omitempty"`
}

type RestartConfig struct {
	Mode RestartMode `yaml:"mode,omitempty"`
}

// Load reads, parses and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read configuration: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, rejecting unknown fields, and
// returns it with defaults applied.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := decodeOnto(cfg, data); err != nil {
		return nil, &FormatError{
			Message: fmt.Sprintf("cannot parse configuration: %v", err),
		}
	}
	return cfg.complete()
}

// decodeOnto decodes YAML onto cfg, replacing only the values present
// in data.
func decodeOnto(cfg *Config, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) complete() (*Config, error) {
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Network.Interface == "" {
		c.Network.Interface = defaultInterface
	}
	c.Network.ConnectTimeout.setDefault(defaultConnectTimeout)
	c.Network.DisconnectWait.setDefault(defaultDisconnectWait)
	if c.Network.MaxConnectFailures == 0 {
		c.Network.MaxConnectFailures = defaultMaxConnectFailures
	}

	if c.Probe.Type == "" {
		c.Probe.Type = ProbeICMP
	}
	if c.Probe.Count == 0 {
		c.Probe.Count = defaultProbeCount
	}
	c.Probe.Interval.setDefault(defaultProbeInterval)
	c.Probe.Timeout.setDefault(defaultProbeTimeout)
	c.Probe.BatchTimeout.setDefault(defaultProbeBatchTimeout)
	if c.Probe.MaxTimeouts == 0 {
		c.Probe.MaxTimeouts = defaultMaxProbeTimeouts
	}
	if c.Probe.Port == 0 {
		c.Probe.Port = defaultProbePort
	}

	c.Heartbeat.Timeout.setDefault(defaultHeartbeatTimeout)

	if c.Update.ChunkSize == 0 {
		c.Update.ChunkSize = defaultChunkSize
	}
	c.Update.RestartDelay.setDefault(defaultRestartDelay)
	c.Update.ReadTimeout.setDefault(defaultReadTimeout)
	if c.Update.ReadRetries == 0 {
		c.Update.ReadRetries = defaultReadRetries
	}

	if c.Storage.State == "" {
		c.Storage.State = defaultStatePath
	}

	if c.GPIO.Chip == "" {
		c.GPIO.Chip = defaultGPIOChip
	}
	c.GPIO.Hold.setDefault(defaultGPIOHold)

	if c.HTTP.Address == "" {
		c.HTTP.Address = defaultAddress
	}

	if c.Restart.Mode == "" {
		c.Restart.Mode = defaultRestartMode
	}
}

// Validate checks configuration correctness. It does not mutate the
// configuration.
func (c *Config) Validate() error {
	durations := []struct {
		name string
		d    OptionalDuration
	}{
		{"network connect-timeout", c.Network.ConnectTimeout},
		{"network disconnect-wait", c.Network.DisconnectWait},
		{"probe interval", c.Probe.Interval},
		{"probe timeout", c.Probe.Timeout},
		{"probe batch-timeout", c.Probe.BatchTimeout},
		{"heartbeat timeout", c.Heartbeat.Timeout},
		{"update read-timeout", c.Update.ReadTimeout},
		{"gpio hold", c.GPIO.Hold},
	}
	for _, d := range durations {
		if d.d.IsNegative() || d.d.Value == 0 {
			return &FormatError{
				Message: fmt.Sprintf("%s must be positive, got %s", d.name, d.d.Value),
			}
		}
	}
	if c.Update.RestartDelay.IsNegative() {
		return &FormatError{
			Message: fmt.Sprintf("update restart-delay must not be negative, got %s", c.Update.RestartDelay.Value),
		}
	}
	if c.Network.MaxConnectFailures < 0 || c.Probe.MaxTimeouts < 0 {
		return &FormatError{Message: "failure thresholds must not be negative"}
	}
	if c.Probe.Count < 0 {
		return &FormatError{Message: fmt.Sprintf("probe count must not be negative, got %d", c.Probe.Count)}
	}
	if c.Update.ChunkSize < 0 || c.Update.ReadRetries < 0 {
		return &FormatError{Message: "update chunk-size and read-retries must not be negative"}
	}

	// The supervisor loop feeds the heartbeat once per iteration, so one
	// iteration in the worst case must fit inside the heartbeat window.
	worst := c.Network.DisconnectWait.Value + c.Network.ConnectTimeout.Value + c.Probe.BatchTimeout.Value
	if worst >= c.Heartbeat.Timeout.Value {
		return &FormatError{
			Message: fmt.Sprintf("heartbeat timeout %s must exceed the worst supervisor iteration %s",
				c.Heartbeat.Timeout.Value, worst),
		}
	}

	switch c.Probe.Type {
	case ProbeICMP, ProbeTCP:
	case ProbeExec:
		if c.Probe.Command == "" {
			return &FormatError{Message: `probe type "exec" requires a "command"`}
		}
	default:
		return &FormatError{Message: fmt.Sprintf("unknown probe type %q", c.Probe.Type)}
	}

	switch c.Restart.Mode {
	case RestartReboot, RestartExit:
	default:
		return &FormatError{Message: fmt.Sprintf("unknown restart mode %q", c.Restart.Mode)}
	}

	seen := make(map[string]bool)
	for i, slot := range c.Storage.Slots {
		if slot.Label == "" {
			return &FormatError{Message: fmt.Sprintf("storage slot %d has no label", i)}
		}
		if seen[slot.Label] {
			return &FormatError{Message: fmt.Sprintf("storage slot %q defined twice", slot.Label)}
		}
		seen[slot.Label] = true
		if slot.Path == "" {
			return &FormatError{Message: fmt.Sprintf("storage slot %q has no path", slot.Label)}
		}
		if slot.Size <= 0 {
			return &FormatError{Message: fmt.Sprintf("storage slot %q must have a positive size", slot.Label)}
		}
		if slot.Offset < 0 {
			return &FormatError{Message: fmt.Sprintf("storage slot %q has a negative offset", slot.Label)}
		}
	}
	if len(c.Storage.Slots) == 1 {
		return &FormatError{Message: "storage needs at least two slots to update safely"}
	}
	return nil
}
