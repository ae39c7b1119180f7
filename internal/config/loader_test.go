package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conductor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Default(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
}

func TestLoad_ValidFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `server:
  url: https://conductor.internal/api
  auth_token: s3cret
  timeout: 5s
channel:
  max_reconnect_attempts: 4
  initial_interval: 250ms
  max_interval: 8s
  multiplier: 1.5
  jitter: 0
heartbeat:
  interval: 2s
session:
  system_status_ttl: 1m
watch:
  debounce: 1s
log:
  level: debug
tracing:
  enabled: true
`)

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "https://conductor.internal/api", cfg.Server.URL)
	assert.Equal(t, "s3cret", cfg.Server.AuthToken)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeout)
	assert.Equal(t, ChannelConfig{
		MaxReconnectAttempts: 4,
		InitialInterval:      250 * time.Millisecond,
		MaxInterval:          8 * time.Second,
		Multiplier:           1.5,
		Jitter:               0,
	}, cfg.Channel)
	assert.Equal(t, 2*time.Second, cfg.Heartbeat.Interval)
	assert.Equal(t, time.Minute, cfg.Session.SystemStatusTTL)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestLoad_PartialFile(t *testing.T) {
	t.Parallel()

	// Only set the server URL, rest should keep defaults
	path := writeConfig(t, `server:
  url: http://10.0.0.5:8080/api
`)

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)

	want := Defaults()
	want.Server.URL = "http://10.0.0.5:8080/api"
	assert.Equal(t, want, *cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "server: [unclosed\n")

	_, err := Load(NewViper(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `server:
  url: http://from-file:8080/api
`)
	t.Setenv("CONDUCTOR_SERVER_URL", "http://from-env:9090/api")
	t.Setenv("CONDUCTOR_CHANNEL_MAX_RECONNECT_ATTEMPTS", "3")
	t.Setenv("CONDUCTOR_LOG_LEVEL", "error")

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:9090/api", cfg.Server.URL)
	assert.Equal(t, 3, cfg.Channel.MaxReconnectAttempts)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("CONDUCTOR_SERVER_URL", "http://from-env:9090/api")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("server", "", "")
	fs.String("log-level", "", "")
	fs.Bool("unrelated", false, "")
	require.NoError(t, fs.Parse([]string{"--server", "http://from-flag:7070/api"}))

	v := NewViper()
	require.NoError(t, BindFlags(v, fs))

	cfg, err := Load(v, writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag:7070/api", cfg.Server.URL)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level, "unset flag keeps the default")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(`# local overrides
CONDUCTOR_SERVER_AUTH_TOKEN="from-dotenv"
CONDUCTOR_LOG_LEVEL=info
`), 0o644))

	// Variables already set win over the file.
	t.Setenv("CONDUCTOR_LOG_LEVEL", "debug")
	t.Setenv("CONDUCTOR_SERVER_AUTH_TOKEN", "")
	require.NoError(t, os.Unsetenv("CONDUCTOR_SERVER_AUTH_TOKEN"))

	require.NoError(t, LoadDotEnv(envPath))

	cfg, err := Load(NewViper(), writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Server.AuthToken)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadDotEnv_Missing(t *testing.T) {
	t.Parallel()
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty url", func(c *Config) { c.Server.URL = " " }, "server.url"},
		{"non-http url", func(c *Config) { c.Server.URL = "ftp://host/api" }, "server.url"},
		{"zero timeout", func(c *Config) { c.Server.Timeout = 0 }, "server.timeout"},
		{"zero attempts", func(c *Config) { c.Channel.MaxReconnectAttempts = 0 }, "channel.max_reconnect_attempts"},
		{"zero initial interval", func(c *Config) { c.Channel.InitialInterval = 0 }, "channel.initial_interval"},
		{"max below initial", func(c *Config) { c.Channel.MaxInterval = 500 * time.Millisecond }, "channel.max_interval"},
		{"shrinking multiplier", func(c *Config) { c.Channel.Multiplier = 0.5 }, "channel.multiplier"},
		{"jitter too large", func(c *Config) { c.Channel.Jitter = 1 }, "channel.jitter"},
		{"negative jitter", func(c *Config) { c.Channel.Jitter = -0.1 }, "channel.jitter"},
		{"zero heartbeat", func(c *Config) { c.Heartbeat.Interval = 0 }, "heartbeat.interval"},
		{"zero ttl", func(c *Config) { c.Session.SystemStatusTTL = 0 }, "session.system_status_ttl"},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -time.Second }, "watch.debounce"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Defaults()
			tt.mutate(&cfg)

			err := Validate(&cfg)
			require.Error(t, err)
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestLoad_ValidationError(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `channel:
  max_reconnect_attempts: -1
`)
	_, err := Load(NewViper(), path)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestDefaultConfigTemplateMatchesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "conductor.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
}

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	err := ValidationError{Field: "server.url", Message: "required field is empty"}
	assert.Equal(t, "validation error: server.url: required field is empty", err.Error())
}

func TestIsValidationError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsValidationError(ValidationError{Field: "f", Message: "m"}))
	assert.False(t, IsValidationError(os.ErrNotExist))
	assert.False(t, IsValidationError(nil))
}
