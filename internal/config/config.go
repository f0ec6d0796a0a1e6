// Package config provides configuration types, defaults and validation for observables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zjrosen/observables/internal/log"
	"github.com/zjrosen/observables/internal/tracing"
)

// EnvPrefix is the prefix for environment overrides, e.g. OBSERVABLES_DEBUG.
const EnvPrefix = "OBSERVABLES"

// Config holds all configuration options.
type Config struct {
	Debug     bool            `mapstructure:"debug"`
	LogFile   string          `mapstructure:"log_file"`
	LogLevel  string          `mapstructure:"log_level"`
	Container ContainerConfig `mapstructure:"container"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Tracing   tracing.Config  `mapstructure:"tracing"`
}

// ContainerConfig holds defaults for containers built by the CLI.
type ContainerConfig struct {
	// Behavior makes new subscribers receive the current value immediately.
	Behavior bool `mapstructure:"behavior"`

	// BufferSize is the per-listener buffer of the change stream.
	BufferSize int `mapstructure:"buffer_size"`
}

// WatchConfig holds state-file watcher options.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`

	// Overwrite applies file contents with Overwrite instead of Next.
	Overwrite bool `mapstructure:"overwrite"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		LogFile:  "debug.log",
		LogLevel: "debug",
		Container: ContainerConfig{
			Behavior:   false,
			BufferSize: 64,
		},
		Watch: WatchConfig{
			Debounce:  250 * time.Millisecond,
			Overwrite: false,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// SetDefaults registers Defaults() on v so unset keys fall back to them.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("debug", d.Debug)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("container.behavior", d.Container.Behavior)
	v.SetDefault("container.buffer_size", d.Container.BufferSize)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("watch.overwrite", d.Watch.Overwrite)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", DefaultTracesFilePath())
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// Load reads the config file at path (optional) plus environment overrides.
// A missing explicit path is an error; an empty path uses defaults and env only.
func Load(path string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		log.Debug(log.CatConfig, "loaded config", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultTracesFilePath returns ~/.config/observables/traces/traces.jsonl,
// or empty string if the home dir is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "observables", "traces", "traces.jsonl")
}

// Validate checks the whole configuration.
func Validate(cfg Config) error {
	if err := ValidateContainer(cfg.Container); err != nil {
		return err
	}
	if err := ValidateWatch(cfg.Watch); err != nil {
		return err
	}
	if err := ValidateTracing(cfg.Tracing); err != nil {
		return err
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be \"debug\", \"info\", \"warn\", or \"error\", got %q", cfg.LogLevel)
	}
	return nil
}

// ValidateContainer checks container defaults.
func ValidateContainer(c ContainerConfig) error {
	if c.BufferSize < 1 {
		return fmt.Errorf("container.buffer_size must be at least 1, got %d", c.BufferSize)
	}
	return nil
}

// ValidateWatch checks watcher options.
func ValidateWatch(w WatchConfig) error {
	if w.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive, got %s", w.Debounce)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
func ValidateTracing(t tracing.Config) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}

	if t.Exporter != "" {
		switch t.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
		}
	}

	// Path requirements only matter when tracing is on
	if t.Enabled {
		if t.Exporter == "file" && t.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if t.Exporter == "otlp" && t.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// DefaultConfigTemplate returns the commented YAML written by WriteDefaultConfig.
func DefaultConfigTemplate() string {
	return `# observables configuration

# Write debug logs to log_file
debug: false
log_file: debug.log
log_level: debug

container:
  # New subscribers receive the current value immediately
  behavior: false
  # Per-listener buffer for the change stream
  buffer_size: 64

watch:
  # Quiet period before a changed state file is reloaded
  debounce: 250ms
  # Replace the whole value on reload instead of merging
  overwrite: false

tracing:
  enabled: false
  # none, file, stdout, otlp
  exporter: file
  # file_path: ~/.config/observables/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0
  service_name: observables
`
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments, creating the parent directory if needed.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
