// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "engram.yaml")

	configContent := `
store:
  path: "./memory.eng"
  capacity_bytes: 1073741824
  chunk_chars: 2048

synth:
  enabled: true
  api_key: "sk-test"
  base_url: "http://localhost:8089/v1"
  model: "gpt-4o-mini"
  timeout: "45s"

logging:
  level: "debug"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify store config
	if cfg.Store.Path != "./memory.eng" {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, "./memory.eng")
	}
	if cfg.Store.CapacityBytes != 1073741824 {
		t.Errorf("Store.CapacityBytes = %d, want %d", cfg.Store.CapacityBytes, 1073741824)
	}
	if cfg.Store.ChunkChars != 2048 {
		t.Errorf("Store.ChunkChars = %d, want %d", cfg.Store.ChunkChars, 2048)
	}

	// Verify synth config with duration parsing
	if !cfg.Synth.Enabled {
		t.Error("Synth.Enabled = false, want true")
	}
	if cfg.Synth.APIKey != "sk-test" {
		t.Errorf("Synth.APIKey = %q, want %q", cfg.Synth.APIKey, "sk-test")
	}
	if cfg.Synth.BaseURL != "http://localhost:8089/v1" {
		t.Errorf("Synth.BaseURL = %q, want %q", cfg.Synth.BaseURL, "http://localhost:8089/v1")
	}
	if cfg.Synth.Model != "gpt-4o-mini" {
		t.Errorf("Synth.Model = %q, want %q", cfg.Synth.Model, "gpt-4o-mini")
	}
	if cfg.Synth.Timeout != 45*time.Second {
		t.Errorf("Synth.Timeout = %v, want %v", cfg.Synth.Timeout, 45*time.Second)
	}

	// Verify logging config
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	// Set environment variables for testing
	t.Setenv("TEST_ENGRAM_API_KEY", "sk-from-env")
	t.Setenv("TEST_ENGRAM_STORE", "/tmp/from-env.eng")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "engram.yaml")

	configContent := `
store:
  path: "${TEST_ENGRAM_STORE}"

synth:
  enabled: true
  api_key: "${TEST_ENGRAM_API_KEY}"

logging:
  level: "info"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify env var expansion
	if cfg.Store.Path != "/tmp/from-env.eng" {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, "/tmp/from-env.eng")
	}
	if cfg.Synth.APIKey != "sk-from-env" {
		t.Errorf("Synth.APIKey = %q, want %q", cfg.Synth.APIKey, "sk-from-env")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	// Ensure the env var is NOT set
	os.Unsetenv("UNSET_VAR_FOR_TEST")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "engram.yaml")

	configContent := `
store:
  path: "./memory.eng"

synth:
  enabled: false
  api_key: "${UNSET_VAR_FOR_TEST}"

logging:
  level: "info"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Unset env vars should expand to empty string
	if cfg.Synth.APIKey != "" {
		t.Errorf("Synth.APIKey = %q, want empty string for unset env var", cfg.Synth.APIKey)
	}
}

func TestLoad_DurationParsing(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "engram.yaml")

	configContent := `
store:
  path: "./memory.eng"

synth:
  enabled: false
  timeout: "1m30s"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify complex duration parsing
	expectedTimeout := 1*time.Minute + 30*time.Second
	if cfg.Synth.Timeout != expectedTimeout {
		t.Errorf("Synth.Timeout = %v, want %v", cfg.Synth.Timeout, expectedTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/engram.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "engram.yaml")

	// Invalid YAML content
	configContent := `
store:
  path "missing colon"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err = Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "engram.yaml")

	configContent := `
store:
  path: "./memory.eng"

synth:
  timeout: "invalid-duration"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err = Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid duration, got nil")
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name          string
		configContent string
		wantErrSubstr string
	}{
		{
			name: "missing store path",
			configContent: `
store:
  path: ""
`,
			wantErrSubstr: "store.path is required",
		},
		{
			name: "negative chunk chars",
			configContent: `
store:
  path: "./memory.eng"
  chunk_chars: -1
`,
			wantErrSubstr: "store.chunk_chars must not be negative",
		},
		{
			name: "synth enabled without api key",
			configContent: `
store:
  path: "./memory.eng"
synth:
  enabled: true
  api_key: ""
`,
			wantErrSubstr: "synth.api_key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "engram.yaml")

			err := os.WriteFile(configPath, []byte(tt.configContent), 0644)
			if err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			_, err = Load(configPath)
			if err == nil {
				t.Errorf("Load() expected error containing %q, got nil", tt.wantErrSubstr)
				return
			}

			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Load() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single env var",
			input:    "${FOO}",
			expected: "bar",
		},
		{
			name:     "env var with surrounding text",
			input:    "prefix-${FOO}-suffix",
			expected: "prefix-bar-suffix",
		},
		{
			name:     "multiple env vars",
			input:    "${FOO}/${BAZ}",
			expected: "bar/qux",
		},
		{
			name:     "no env vars",
			input:    "no-vars-here",
			expected: "no-vars-here",
		},
		{
			name:     "unset env var",
			input:    "${UNSET_VAR}",
			expected: "",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestValidate_SynthDisabledAllowsEmptyKey(t *testing.T) {
	cfg := Config{
		Store: StoreConfig{Path: "./memory.eng"},
		Synth: SynthConfig{Enabled: false, APIKey: ""},
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}
