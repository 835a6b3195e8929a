// Package config provides configuration management for minied.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for minied.
type Config struct {
	Terminal TerminalConfig `mapstructure:"terminal"`
	History  HistoryConfig  `mapstructure:"history"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// TerminalConfig holds the embedded terminal pane configuration.
type TerminalConfig struct {
	Transport      string   `mapstructure:"transport"`      // pty or pipe
	Shell          string   `mapstructure:"shell"`          // empty selects the platform shell
	ShellArgs      []string `mapstructure:"shellArgs"`      // overrides the default interactive flag
	TermType       string   `mapstructure:"termType"`       // TERM for the child
	Cols           int      `mapstructure:"cols"`           // initial PTY columns
	Rows           int      `mapstructure:"rows"`           // initial PTY rows
	PollIntervalMs int      `mapstructure:"pollIntervalMs"` // relay poll interval
	ChunkSize      int      `mapstructure:"chunkSize"`      // max bytes per read
	DecodeMode     string   `mapstructure:"decodeMode"`     // raw or text
	StripEscapes   bool     `mapstructure:"stripEscapes"`   // strip ANSI sequences in text mode
	RecallPolicy   string   `mapstructure:"recallPolicy"`   // last or cursor
}

// HistoryConfig holds command history persistence configuration.
type HistoryConfig struct {
	Path  string `mapstructure:"path"`  // empty disables persistence
	Limit int    `mapstructure:"limit"` // 0 keeps everything
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB"`
}

// TracingConfig holds the OTLP trace exporter configuration.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`    // OTLP/HTTP collector; empty disables tracing
	ServiceName string `mapstructure:"serviceName"` // service.name resource attribute
}

// PollInterval returns the relay poll interval as a time.Duration.
func (t *TerminalConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMs) * time.Millisecond
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("terminal.transport", "pty")
	v.SetDefault("terminal.shell", "")
	v.SetDefault("terminal.shellArgs", []string{})
	v.SetDefault("terminal.termType", "")
	v.SetDefault("terminal.cols", 80)
	v.SetDefault("terminal.rows", 24)
	v.SetDefault("terminal.pollIntervalMs", 30)
	v.SetDefault("terminal.chunkSize", 1024)
	v.SetDefault("terminal.decodeMode", "raw")
	v.SetDefault("terminal.stripEscapes", false)
	v.SetDefault("terminal.recallPolicy", "last")

	v.SetDefault("history.path", defaultHistoryPath())
	v.SetDefault("history.limit", 1000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.outputPath", "stderr")
	v.SetDefault("logging.maxSizeMB", 10)

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.serviceName", "minied-terminal")
}

func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "minied", "history.yaml")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix MINIED_ with snake_case naming.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("MINIED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not map camelCase keys to SNAKE_CASE.
	_ = v.BindEnv("terminal.shellArgs", "MINIED_TERMINAL_SHELL_ARGS")
	_ = v.BindEnv("terminal.termType", "MINIED_TERMINAL_TERM_TYPE")
	_ = v.BindEnv("terminal.pollIntervalMs", "MINIED_TERMINAL_POLL_INTERVAL_MS")
	_ = v.BindEnv("terminal.chunkSize", "MINIED_TERMINAL_CHUNK_SIZE")
	_ = v.BindEnv("terminal.decodeMode", "MINIED_TERMINAL_DECODE_MODE")
	_ = v.BindEnv("terminal.stripEscapes", "MINIED_TERMINAL_STRIP_ESCAPES")
	_ = v.BindEnv("terminal.recallPolicy", "MINIED_TERMINAL_RECALL_POLICY")
	_ = v.BindEnv("logging.outputPath", "MINIED_LOGGING_OUTPUT_PATH")
	// The standard OTel variables are honored when no MINIED_ override is set.
	_ = v.BindEnv("tracing.endpoint", "MINIED_TRACING_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("tracing.serviceName", "MINIED_TRACING_SERVICE_NAME", "OTEL_SERVICE_NAME")

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "minied"))
	}
	v.AddConfigPath("/etc/minied/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all configuration fields are usable.
func validate(cfg *Config) error {
	var errs []string

	t := &cfg.Terminal
	t.Transport = strings.ToLower(t.Transport)
	if t.Transport != "pty" && t.Transport != "pipe" {
		errs = append(errs, "terminal.transport must be one of: pty, pipe")
	}
	if t.Cols <= 0 || t.Cols > 0xffff {
		errs = append(errs, "terminal.cols must be between 1 and 65535")
	}
	if t.Rows <= 0 || t.Rows > 0xffff {
		errs = append(errs, "terminal.rows must be between 1 and 65535")
	}
	if t.PollIntervalMs <= 0 {
		errs = append(errs, "terminal.pollIntervalMs must be positive")
	}
	if t.ChunkSize <= 0 {
		errs = append(errs, "terminal.chunkSize must be positive")
	}
	t.DecodeMode = strings.ToLower(t.DecodeMode)
	if t.DecodeMode != "raw" && t.DecodeMode != "text" {
		errs = append(errs, "terminal.decodeMode must be one of: raw, text")
	}
	t.RecallPolicy = strings.ToLower(t.RecallPolicy)
	if t.RecallPolicy != "last" && t.RecallPolicy != "cursor" {
		errs = append(errs, "terminal.recallPolicy must be one of: last, cursor")
	}

	if cfg.History.Limit < 0 {
		errs = append(errs, "history.limit must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
