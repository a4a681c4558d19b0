// Package config provides configuration loading and management for the techdocs preparer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/techdocs-preparer/internal/telemetry"
)

const (
	// EnvPrefix is the prefix used for environment variable overrides
	EnvPrefix = "TECHDOCS"

	// DefaultReaderTimeout is the default per-request timeout of the URL reader
	DefaultReaderTimeout = 30 * time.Second

	// DefaultReaderMaxRetries is the default number of attempts the URL reader makes
	DefaultReaderMaxRetries = 3
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Reader configures the URL reader handed to the url preparer
	Reader ReaderConfig `yaml:"reader,omitempty"`

	// Integrations holds per-provider host settings. The git preparer
	// authenticates clones of a listed host with its token file.
	Integrations IntegrationsConfig `yaml:"integrations,omitempty"`

	// Telemetry configures OpenTelemetry export (optional)
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ReaderConfig defines URL reader settings
type ReaderConfig struct {
	// Timeout is the per-request timeout (e.g., "30s", "1m")
	Timeout string `yaml:"timeout,omitempty"`

	// MaxRetries is the maximum number of attempts for a single request
	MaxRetries uint `yaml:"maxRetries,omitempty"`
}

// IntegrationsConfig groups provider integrations by provider
type IntegrationsConfig struct {
	GitHub []IntegrationConfig `yaml:"github,omitempty"`
	GitLab []IntegrationConfig `yaml:"gitlab,omitempty"`
	Azure  []IntegrationConfig `yaml:"azure,omitempty"`
}

// IntegrationConfig defines a single provider host integration
type IntegrationConfig struct {
	// Host is the provider host name, e.g. github.com
	Host string `yaml:"host"`

	// TokenFile is the path to a file containing the access token
	TokenFile string `yaml:"tokenFile,omitempty"`
}

// NewDefaultConfig returns the configuration used when no file is given
func NewDefaultConfig() *Config {
	return &Config{
		Reader: ReaderConfig{
			Timeout:    DefaultReaderTimeout.String(),
			MaxRetries: DefaultReaderMaxRetries,
		},
	}
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so omitted sections keep sensible values
	config := NewDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.Reader.Timeout != "" {
		timeout, err := time.ParseDuration(c.Reader.Timeout)
		if err != nil {
			return fmt.Errorf("reader.timeout must be a valid duration (e.g., '30s', '1m'): %w", err)
		}
		if timeout <= 0 {
			return fmt.Errorf("reader.timeout must be positive, got %s", c.Reader.Timeout)
		}
	}

	providers := map[string][]IntegrationConfig{
		"github": c.Integrations.GitHub,
		"gitlab": c.Integrations.GitLab,
		"azure":  c.Integrations.Azure,
	}
	for provider, integrations := range providers {
		if err := validateIntegrations(provider, integrations); err != nil {
			return err
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

// validateIntegrations ensures every integration names a unique host
func validateIntegrations(provider string, integrations []IntegrationConfig) error {
	hosts := make(map[string]bool)
	for i, integration := range integrations {
		if integration.Host == "" {
			return fmt.Errorf("integrations.%s[%d]: host is required", provider, i)
		}
		if hosts[integration.Host] {
			return fmt.Errorf("integrations.%s[%d]: duplicate host '%s'", provider, i, integration.Host)
		}
		hosts[integration.Host] = true
	}
	return nil
}

// GetReaderTimeout returns the parsed reader timeout, or the default when unset
func (c *Config) GetReaderTimeout() time.Duration {
	if c == nil || c.Reader.Timeout == "" {
		return DefaultReaderTimeout
	}
	timeout, err := time.ParseDuration(c.Reader.Timeout)
	if err != nil || timeout <= 0 {
		return DefaultReaderTimeout
	}
	return timeout
}

// GetReaderMaxRetries returns the reader attempt count, or the default when unset
func (c *Config) GetReaderMaxRetries() uint {
	if c == nil || c.Reader.MaxRetries == 0 {
		return DefaultReaderMaxRetries
	}
	return c.Reader.MaxRetries
}
