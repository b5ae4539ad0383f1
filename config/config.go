// Package config handles loading and managing unillm application
// configuration.
//
// The core library needs no file at all: specs and overrides arrive
// programmatically and API keys come from the environment. This package
// serves applications that want a persistent setup — a default
// "provider/model" selection, per-provider keys or server addresses, and a
// request timeout — stored as a TOML file under the XDG config directory.
//
// Example TOML configuration:
//
//	default_provider = "anthropic"
//	request_timeout_seconds = 60
//
//	[providers.anthropic]
//	api_key = "sk-ant-..."
//	model = "claude-3-haiku-20240307"
//
//	[providers.ollama]
//	base_url = "http://localhost:11434"
//	model = "gemma:2b"
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	appName        = "unillm"
	configFileName = "config.toml"

	DefaultDirPerm  = 0750 // rwxr-x---
	DefaultFilePerm = 0600 // rw------- (contains potential secrets)
)

// Config holds the application's configuration.
type Config struct {
	// DefaultProvider selects which provider Spec() builds a spec string
	// for. Must match a key in the Providers map.
	DefaultProvider string `toml:"default_provider"`

	// RequestTimeoutSeconds bounds each LLM API request. If <= 0, the
	// dispatchers fall back to their 60-second default.
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`

	// Providers contains provider-specific settings keyed by provider name.
	Providers map[string]ProviderConfig `toml:"providers"`
}

// ProviderConfig holds settings specific to one provider. Cloud providers
// carry an APIKey (or rely on their environment variable); ollama carries
// a BaseURL instead.
type ProviderConfig struct {
	APIKey  string `toml:"api_key,omitempty"`
	BaseURL string `toml:"base_url,omitempty"`
	Model   string `toml:"model,omitempty"`
}

// defaultConfig returns the configuration used as the merge base when
// loading a file.
func defaultConfig() Config {
	return Config{
		DefaultProvider:       "anthropic",
		RequestTimeoutSeconds: 60,
		Providers: map[string]ProviderConfig{
			"anthropic": {Model: "claude-3-haiku-20240307"},
			"gemini":    {Model: "gemini-1.5-flash-latest"},
			"groq":      {Model: "gemma2-9b-it"},
			"ollama": {
				BaseURL: "http://localhost:11434",
				Model:   "gemma:2b",
			},
		},
	}
}

// GetConfigFilePath determines the configuration file path following the
// XDG Base Directory specification: $XDG_CONFIG_HOME/unillm/config.toml,
// falling back to $HOME/.config/unillm/config.toml.
//
// The returned path may not exist; use os.Stat to check.
func GetConfigFilePath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine user home directory: %w", err)
		}
		configHome = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configHome, appName, configFileName), nil
}

// Load reads the configuration from the XDG config path and merges it
// over the defaults.
func Load() (Config, error) {
	cfgPath, err := GetConfigFilePath()
	if err != nil {
		return Config{}, fmt.Errorf("failed to determine config path: %w", err)
	}
	return LoadFromFile(cfgPath)
}

// LoadFromFile loads configuration from a specific file path and merges it
// over the defaults. It validates that the default provider has a
// configuration section.
func LoadFromFile(filePath string) (Config, error) {
	cfg := defaultConfig()

	_, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("configuration file not found at %s", filePath)
		}
		return Config{}, fmt.Errorf("failed to access config file %s: %w", filePath, err)
	}

	meta, err := toml.DecodeFile(filePath, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode TOML config file %s: %w", filePath, err)
	}
	if len(meta.Undecoded()) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: Unknown configuration keys found in %s: %v\n", filePath, meta.Undecoded())
	}

	if _, exists := cfg.Providers[cfg.DefaultProvider]; !exists {
		return Config{}, fmt.Errorf("default provider '%s' is specified but has no configuration section in [providers]", cfg.DefaultProvider)
	}

	return cfg, nil
}

// Save writes the configuration as TOML to the given path, creating the
// parent directory if needed. The file is written with restrictive
// permissions since it may hold API keys.
func Save(filePath string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(filePath), DefaultDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("failed to create config file %s: %w", filePath, err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode configuration to TOML: %w", err)
	}

	return nil
}

// NewConfig creates a configuration programmatically, without file I/O.
func NewConfig(defaultProvider string, timeoutSeconds int, providers map[string]ProviderConfig) Config {
	return Config{
		DefaultProvider:       defaultProvider,
		RequestTimeoutSeconds: timeoutSeconds,
		Providers:             providers,
	}
}

// Provider retrieves the configuration section for a given provider.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	pc, exists := c.Providers[name]
	return pc, exists
}

// Spec builds the "provider/model" spec string for the default provider.
func (c *Config) Spec() (string, error) {
	pc, exists := c.Providers[c.DefaultProvider]
	if !exists {
		return "", fmt.Errorf("no configuration section for default provider '%s'", c.DefaultProvider)
	}
	if pc.Model == "" {
		return "", fmt.Errorf("no model configured for default provider '%s'", c.DefaultProvider)
	}
	return c.DefaultProvider + "/" + pc.Model, nil
}
