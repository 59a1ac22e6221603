package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lightningmb/RubiksCubeBot/maestro"
)

// SessionConfig translates the port settings into a maestro session
// configuration.
func (c *Config) SessionConfig(logger *slog.Logger) maestro.SessionConfig {
	return maestro.SessionConfig{
		CommandPort:  c.Ports.Command,
		TTLPort:      c.Ports.TTL,
		BaudRate:     c.Ports.BaudRate,
		Timeout:      time.Duration(c.Ports.TimeoutMs) * time.Millisecond,
		PollInterval: time.Duration(c.Ports.PollIntervalMs) * time.Millisecond,
		Logger:       logger,
	}
}

// Apply writes each configured channel's speed and acceleration limits
// to the controller. Zero-valued limits are still written so a restart
// clears limits left over from a previous run.
func (c *Config) Apply(ctx context.Context, s *maestro.Session) error {
	for _, ch := range c.Channels {
		if err := s.SetSpeed(ctx, ch.Channel, ch.Speed); err != nil {
			return fmt.Errorf("channel %q: %w", ch.Name, err)
		}
		if err := s.SetAcceleration(ctx, ch.Channel, ch.Acceleration); err != nil {
			return fmt.Errorf("channel %q: %w", ch.Name, err)
		}
	}
	return nil
}

// ApplyHome moves every channel with a configured home setpoint and
// waits for motion to finish.
func (c *Config) ApplyHome(ctx context.Context, s *maestro.Session) error {
	var channels, targets []int
	for _, ch := range c.Channels {
		if ch.Home == 0 {
			continue
		}
		channels = append(channels, ch.Channel)
		targets = append(targets, ch.Home)
	}
	if len(channels) == 0 {
		return nil
	}

	for i, ch := range channels {
		if err := s.SetTarget(ctx, ch, targets[i]); err != nil {
			return err
		}
	}
	return s.WaitUntilSettled(ctx)
}
