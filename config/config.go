// Package config loads the robot's servo layout from a YAML file:
// which serial ports to use and, per channel, the motion limits and
// named setpoints the host applies at startup.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Ports    PortsConfig     `yaml:"ports"`
	Channels []ChannelConfig `yaml:"channels"`
}

// ---- PORTS ----

type PortsConfig struct {
	Command        string `yaml:"command"`
	TTL            string `yaml:"ttl"`
	BaudRate       int    `yaml:"baud_rate"`
	TimeoutMs      int    `yaml:"timeout_ms"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
}

// ---- CHANNEL ----

type ChannelConfig struct {
	Name    string `yaml:"name"`
	Channel int    `yaml:"channel"`

	// Motion limits written at startup; zero means unlimited.
	Speed        int `yaml:"speed"`
	Acceleration int `yaml:"acceleration"`

	// Quarter-microsecond setpoints. Min/Max of zero disables host-side
	// clamping for this channel.
	Home int `yaml:"home"`
	Min  int `yaml:"min"`
	Max  int `yaml:"max"`
}

// Clamp bounds a target to the channel's configured range. Channels
// without a configured range pass targets through untouched.
func (c *ChannelConfig) Clamp(target int) int {
	if c.Max == 0 {
		return target
	}
	if target < c.Min {
		return c.Min
	}
	if target > c.Max {
		return c.Max
	}
	return target
}

// ByName returns the channel configuration with the given name.
func (c *Config) ByName(name string) (*ChannelConfig, bool) {
	for i := range c.Channels {
		if c.Channels[i].Name == name {
			return &c.Channels[i], true
		}
	}
	return nil, false
}

// ChannelIndexes returns the configured channel numbers in file order.
func (c *Config) ChannelIndexes() []int {
	indexes := make([]int, len(c.Channels))
	for i, ch := range c.Channels {
		indexes[i] = ch.Channel
	}
	return indexes
}

// Load reads, parses, validates and normalizes a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	Normalize(&cfg)

	return &cfg, nil
}
