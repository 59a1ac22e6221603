package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightningmb/RubiksCubeBot/maestro"
	"github.com/lightningmb/RubiksCubeBot/transports"
)

const sampleConfig = `
ports:
  command: /dev/ttyACM0
  ttl: /dev/ttyACM1
channels:
  - name: base
    channel: 0
    speed: 140
    acceleration: 12
    home: 6000
    min: 4000
    max: 8000
  - name: gripper
    channel: 1
    speed: 60
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.Ports.Command)
	assert.Equal(t, "/dev/ttyACM1", cfg.Ports.TTL)

	// Defaults filled in by Normalize.
	assert.Equal(t, 9600, cfg.Ports.BaudRate)
	assert.Equal(t, 1000, cfg.Ports.TimeoutMs)
	assert.Equal(t, 100, cfg.Ports.PollIntervalMs)

	require.Len(t, cfg.Channels, 2)
	assert.Equal(t, 140, cfg.Channels[0].Speed)
	assert.Equal(t, []int{0, 1}, cfg.ChannelIndexes())

	base, ok := cfg.ByName("base")
	require.True(t, ok)
	assert.Equal(t, 6000, base.Home)

	_, ok = cfg.ByName("missing")
	assert.False(t, ok)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "valid",
			mutate:  func(cfg *Config) {},
			wantErr: "",
		},
		{
			name:    "missing command port",
			mutate:  func(cfg *Config) { cfg.Ports.Command = "" },
			wantErr: "command port",
		},
		{
			name:    "identical ports",
			mutate:  func(cfg *Config) { cfg.Ports.TTL = cfg.Ports.Command },
			wantErr: "distinct",
		},
		{
			name:    "duplicate channel index",
			mutate:  func(cfg *Config) { cfg.Channels[1].Channel = 0 },
			wantErr: "duplicate index",
		},
		{
			name:    "duplicate name",
			mutate:  func(cfg *Config) { cfg.Channels[1].Name = "base" },
			wantErr: "duplicate name",
		},
		{
			name:    "channel out of range",
			mutate:  func(cfg *Config) { cfg.Channels[0].Channel = 128 },
			wantErr: "out of range",
		},
		{
			name:    "speed out of range",
			mutate:  func(cfg *Config) { cfg.Channels[0].Speed = 20000 },
			wantErr: "speed",
		},
		{
			name:    "acceleration out of range",
			mutate:  func(cfg *Config) { cfg.Channels[0].Acceleration = 300 },
			wantErr: "acceleration",
		},
		{
			name:    "home outside limits",
			mutate:  func(cfg *Config) { cfg.Channels[0].Home = 9000 },
			wantErr: "outside",
		},
		{
			name:    "min above max",
			mutate:  func(cfg *Config) { cfg.Channels[0].Min = 9000 },
			wantErr: "min",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func baseConfig() *Config {
	return &Config{
		Ports: PortsConfig{
			Command: "/dev/ttyACM0",
			TTL:     "/dev/ttyACM1",
		},
		Channels: []ChannelConfig{
			{Name: "base", Channel: 0, Speed: 140, Acceleration: 12, Home: 6000, Min: 4000, Max: 8000},
			{Name: "gripper", Channel: 1, Speed: 60},
		},
	}
}

func TestChannelConfig_Clamp(t *testing.T) {
	ch := ChannelConfig{Min: 4000, Max: 8000}

	assert.Equal(t, 4000, ch.Clamp(100))
	assert.Equal(t, 8000, ch.Clamp(16000))
	assert.Equal(t, 6000, ch.Clamp(6000))

	// No configured range passes targets through.
	open := ChannelConfig{}
	assert.Equal(t, 16000, open.Clamp(16000))
}

func TestConfig_Apply(t *testing.T) {
	ttl := &transports.MockTransport{ReadData: []byte{0x00, 0x00}}
	session, err := maestro.NewSession(maestro.SessionConfig{
		CommandTransport: &transports.MockTransport{},
		TTLTransport:     ttl,
		Timeout:          100 * time.Millisecond,
	})
	require.NoError(t, err)
	defer session.Close()

	ttl.Reset()

	cfg := baseConfig()
	require.NoError(t, cfg.Apply(context.Background(), session))

	// One speed and one acceleration command per configured channel.
	assert.Len(t, ttl.Writes, 2*len(cfg.Channels))
	assert.Equal(t, byte(0x87), ttl.Writes[0][0])
	assert.Equal(t, byte(0x89), ttl.Writes[1][0])
}
