package config

import (
	"fmt"

	"github.com/lightningmb/RubiksCubeBot/maestro"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg.Ports.Command == "" {
		return fmt.Errorf("ports: command port path is required")
	}
	if cfg.Ports.TTL == "" {
		return fmt.Errorf("ports: ttl port path is required")
	}
	if cfg.Ports.Command == cfg.Ports.TTL {
		return fmt.Errorf("ports: command and ttl must be distinct, both are %q", cfg.Ports.Command)
	}

	seenName := make(map[string]bool)
	seenChannel := make(map[int]bool)

	for _, ch := range cfg.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channel %d: name is required", ch.Channel)
		}
		if seenName[ch.Name] {
			return fmt.Errorf("channel %q: duplicate name", ch.Name)
		}
		seenName[ch.Name] = true

		if ch.Channel < 0 || ch.Channel > maestro.MaxChannel {
			return fmt.Errorf("channel %q: index %d out of range 0-%d", ch.Name, ch.Channel, maestro.MaxChannel)
		}
		if seenChannel[ch.Channel] {
			return fmt.Errorf("channel %q: duplicate index %d", ch.Name, ch.Channel)
		}
		seenChannel[ch.Channel] = true

		if ch.Speed < 0 || ch.Speed > maestro.MaxSpeed {
			return fmt.Errorf("channel %q: speed %d out of range 0-%d", ch.Name, ch.Speed, maestro.MaxSpeed)
		}
		if ch.Acceleration < 0 || ch.Acceleration > maestro.MaxAcceleration {
			return fmt.Errorf("channel %q: acceleration %d out of range 0-%d", ch.Name, ch.Acceleration, maestro.MaxAcceleration)
		}

		for _, v := range []struct {
			name  string
			value int
		}{{"home", ch.Home}, {"min", ch.Min}, {"max", ch.Max}} {
			if v.value < 0 || v.value > maestro.MaxTarget {
				return fmt.Errorf("channel %q: %s %d out of range 0-%d", ch.Name, v.name, v.value, maestro.MaxTarget)
			}
		}

		if ch.Max != 0 {
			if ch.Min > ch.Max {
				return fmt.Errorf("channel %q: min %d above max %d", ch.Name, ch.Min, ch.Max)
			}
			if ch.Home != 0 && (ch.Home < ch.Min || ch.Home > ch.Max) {
				return fmt.Errorf("channel %q: home %d outside %d-%d", ch.Name, ch.Home, ch.Min, ch.Max)
			}
		}
	}

	return nil
}

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Ports.BaudRate == 0 {
		cfg.Ports.BaudRate = 9600
	}
	if cfg.Ports.TimeoutMs == 0 {
		cfg.Ports.TimeoutMs = 1000
	}
	if cfg.Ports.PollIntervalMs == 0 {
		cfg.Ports.PollIntervalMs = 100
	}
}
