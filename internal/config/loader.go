package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/thruflo/conductor/internal/api"
	"github.com/thruflo/conductor/internal/channel"
	"github.com/thruflo/conductor/internal/heartbeat"
	"github.com/thruflo/conductor/internal/logging"
	"github.com/thruflo/conductor/internal/session"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// CONDUCTOR_SERVER_URL.
const EnvPrefix = "CONDUCTOR"

// Default values for Config.
const (
	DefaultConfigName    = "conductor"
	DefaultLogLevel      = "warn"
	DefaultWatchDebounce = 500 * time.Millisecond
)

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	policy := channel.DefaultPolicy()
	return Config{
		Server: ServerConfig{
			URL:     api.DefaultBaseURL,
			Timeout: api.DefaultTimeout,
		},
		Channel: ChannelConfig{
			MaxReconnectAttempts: policy.MaxReconnectAttempts,
			InitialInterval:      policy.InitialInterval,
			MaxInterval:          policy.MaxInterval,
			Multiplier:           policy.Multiplier,
			Jitter:               policy.RandomizationFactor,
		},
		Heartbeat: HeartbeatConfig{Interval: heartbeat.DefaultInterval},
		Session:   SessionConfig{SystemStatusTTL: session.DefaultSystemStatusTTL},
		Watch:     WatchConfig{Debounce: DefaultWatchDebounce},
		Log:       LogConfig{Level: DefaultLogLevel},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"server":    "server.url",
	"token":     "server.auth_token",
	"timeout":   "server.timeout",
	"log-level": "log.level",
	"trace":     "tracing.enabled",
}

// NewViper returns a viper instance with defaults and environment
// overrides registered.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, Defaults())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("server.auth_token", d.Server.AuthToken)
	v.SetDefault("server.timeout", d.Server.Timeout)
	v.SetDefault("channel.max_reconnect_attempts", d.Channel.MaxReconnectAttempts)
	v.SetDefault("channel.initial_interval", d.Channel.InitialInterval)
	v.SetDefault("channel.max_interval", d.Channel.MaxInterval)
	v.SetDefault("channel.multiplier", d.Channel.Multiplier)
	v.SetDefault("channel.jitter", d.Channel.Jitter)
	v.SetDefault("heartbeat.interval", d.Heartbeat.Interval)
	v.SetDefault("session.system_status_ttl", d.Session.SystemStatusTTL)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
}

// BindFlags binds the known flags in fs to their config keys. Flags that
// are absent from fs are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// DefaultConfigDir returns $HOME/.config/conductor.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", DefaultConfigName)
}

// DefaultConfigPath returns the config file written by `config init`.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return DefaultConfigName + ".yaml"
	}
	return filepath.Join(dir, DefaultConfigName+".yaml")
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load reads configFile, or conductor.yaml from the working directory or
// DefaultConfigDir when configFile is empty. A missing default file is not
// an error. Applies defaults for any missing fields.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir := DefaultConfigDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that all config values are valid.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Server.URL) == "" {
		return ValidationError{Field: "server.url", Message: "required field is empty"}
	}
	if !strings.HasPrefix(cfg.Server.URL, "http://") && !strings.HasPrefix(cfg.Server.URL, "https://") {
		return ValidationError{Field: "server.url", Message: "must be an http or https URL"}
	}
	if cfg.Server.Timeout <= 0 {
		return ValidationError{Field: "server.timeout", Message: "must be positive"}
	}
	if cfg.Channel.MaxReconnectAttempts <= 0 {
		return ValidationError{Field: "channel.max_reconnect_attempts", Message: "must be positive"}
	}
	if cfg.Channel.InitialInterval <= 0 {
		return ValidationError{Field: "channel.initial_interval", Message: "must be positive"}
	}
	if cfg.Channel.MaxInterval < cfg.Channel.InitialInterval {
		return ValidationError{Field: "channel.max_interval", Message: "must not be less than initial_interval"}
	}
	if cfg.Channel.Multiplier < 1 {
		return ValidationError{Field: "channel.multiplier", Message: "must be at least 1"}
	}
	if cfg.Channel.Jitter < 0 || cfg.Channel.Jitter >= 1 {
		return ValidationError{Field: "channel.jitter", Message: "must be in [0, 1)"}
	}
	if cfg.Heartbeat.Interval <= 0 {
		return ValidationError{Field: "heartbeat.interval", Message: "must be positive"}
	}
	if cfg.Session.SystemStatusTTL <= 0 {
		return ValidationError{Field: "session.system_status_ttl", Message: "must be positive"}
	}
	if cfg.Watch.Debounce < 0 {
		return ValidationError{Field: "watch.debounce", Message: "must not be negative"}
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return ValidationError{Field: "log.level", Message: err.Error()}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Conductor configuration
#
# Every key can be overridden with a CONDUCTOR_ environment variable,
# e.g. CONDUCTOR_SERVER_URL or CONDUCTOR_LOG_LEVEL. A .env file in the
# working directory is loaded first.

server:
  url: http://localhost:8080/api
  # auth_token: ""
  timeout: 30s

# Update channel reconnection
channel:
  max_reconnect_attempts: 10  # give up after this many consecutive failures
  initial_interval: 1s
  max_interval: 30s
  multiplier: 2
  jitter: 0.2

heartbeat:
  interval: 1s

session:
  system_status_ttl: 30s  # reuse agent install checks for this long

# upload --watch
watch:
  debounce: 500ms

log:
  level: warn  # debug, info, warn, error

tracing:
  enabled: false  # print request spans to stderr
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
