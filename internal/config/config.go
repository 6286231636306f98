// ABOUTME: Configuration loading and parsing for engramctl
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete engramctl configuration. Only the CLI
// reads config files; the shared library takes everything through its
// function arguments.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Synth   SynthConfig   `yaml:"synth"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig holds the store file location and creation parameters
type StoreConfig struct {
	Path string `yaml:"path"`

	// CapacityBytes caps the store file size; 0 means unlimited
	CapacityBytes uint64 `yaml:"capacity_bytes"`

	// ChunkChars overrides the chunk size for long documents; 0 keeps
	// the engine default
	ChunkChars int `yaml:"chunk_chars"`
}

// SynthConfig holds answer synthesis settings for ask
type SynthConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}

	if c.Store.ChunkChars < 0 {
		return fmt.Errorf("store.chunk_chars must not be negative")
	}

	// Synthesis needs a key; the endpoint and model have defaults
	if c.Synth.Enabled && c.Synth.APIKey == "" {
		return fmt.Errorf("synth.api_key is required when synth is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Synth.TimeoutRaw != "" {
		cfg.Synth.Timeout, err = time.ParseDuration(cfg.Synth.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing synth.timeout %q: %w", cfg.Synth.TimeoutRaw, err)
		}
	}

	return nil
}
