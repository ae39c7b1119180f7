package config

import (
	"time"

	"github.com/thruflo/conductor/internal/channel"
)

// ServerConfig locates the workflow backend.
type ServerConfig struct {
	URL       string        `mapstructure:"url" yaml:"url"`
	AuthToken string        `mapstructure:"auth_token" yaml:"auth_token,omitempty"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ChannelConfig is the update channel's reconnection policy.
type ChannelConfig struct {
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
	InitialInterval      time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval          time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
	Multiplier           float64       `mapstructure:"multiplier" yaml:"multiplier"`
	Jitter               float64       `mapstructure:"jitter" yaml:"jitter"`
}

// Policy converts the settings into a channel policy.
func (c ChannelConfig) Policy() channel.Policy {
	return channel.Policy{
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		InitialInterval:      c.InitialInterval,
		MaxInterval:          c.MaxInterval,
		Multiplier:           c.Multiplier,
		RandomizationFactor:  c.Jitter,
	}
}

// HeartbeatConfig controls the staleness tick.
type HeartbeatConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// SessionConfig tunes the session client.
type SessionConfig struct {
	SystemStatusTTL time.Duration `mapstructure:"system_status_ttl" yaml:"system_status_ttl"`
}

// WatchConfig controls reference folder watching for `upload --watch`.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// TracingConfig enables request tracing to stderr.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Config represents conductor.yaml merged with CONDUCTOR_* environment
// variables and command-line flags.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Channel   ChannelConfig   `mapstructure:"channel" yaml:"channel"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat" yaml:"heartbeat"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
}
