// Package config provides configuration loading and management for the gateway.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tendera/backoffice-gateway/internal/resource"
	"github.com/tendera/backoffice-gateway/internal/telemetry"
)

// EnvPrefix is the prefix for environment variables read via viper
const EnvPrefix = "TENDERA_GW"

const (
	// DefaultListenAddress is the address the HTTP server binds when not configured
	DefaultListenAddress = ":8090"

	// DefaultUpstreamTimeout bounds a single upstream RPC call
	DefaultUpstreamTimeout = 15 * time.Second

	// DefaultReadinessTimeout bounds the startup readiness probe
	DefaultReadinessTimeout = 30 * time.Second

	// DefaultShutdownTimeout bounds graceful HTTP shutdown
	DefaultShutdownTimeout = 10 * time.Second
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
	// Upstream points at the remote procurement API every mutation and
	// cache-miss read goes to
	Upstream UpstreamConfig `yaml:"upstream"`

	// Server configures the gateway's own HTTP listener
	Server *ServerConfig `yaml:"server,omitempty"`

	// Resources extends the built-in dependency map with deployment-specific
	// derived views
	Resources *ResourcesConfig `yaml:"resources,omitempty"`

	// Notifications configures the notice buffer drained by the UI
	Notifications *NotificationsConfig `yaml:"notifications,omitempty"`

	// Telemetry configures metrics export
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// UpstreamConfig defines the remote procurement API connection
type UpstreamConfig struct {
	// Endpoint is the base URL of the remote API (without the /rpc path)
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds one RPC call (e.g. "15s"); mutations are never retried
	Timeout string `yaml:"timeout,omitempty"`

	// ReadinessTimeout bounds the startup probe against the upstream health
	// endpoint (e.g. "30s")
	ReadinessTimeout string `yaml:"readinessTimeout,omitempty"`
}

// ServerConfig defines the gateway HTTP listener settings
type ServerConfig struct {
	// Address is the listen address (host:port)
	Address string `yaml:"address,omitempty"`

	// ShutdownTimeout bounds graceful shutdown (e.g. "10s")
	ShutdownTimeout string `yaml:"shutdownTimeout,omitempty"`
}

// ResourcesConfig extends the dependency map between collections and the
// derived views invalidated with them
type ResourcesConfig struct {
	// Dependents maps a resource key to additional dependent view keys,
	// merged over the built-in procurement defaults
	Dependents map[string][]string `yaml:"dependents,omitempty"`
}

// NotificationsConfig defines the notice buffer settings
type NotificationsConfig struct {
	// Capacity bounds the buffer; oldest notices are dropped when full
	Capacity int `yaml:"capacity,omitempty"`
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

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.Upstream.validate(); err != nil {
		return err
	}

	if err := c.Resources.validate(); err != nil {
		return err
	}

	if c.Notifications != nil && c.Notifications.Capacity < 0 {
		return fmt.Errorf("notifications.capacity cannot be negative")
	}

	if c.Server != nil && c.Server.ShutdownTimeout != "" {
		if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
			return fmt.Errorf("server.shutdownTimeout must be a valid duration (e.g., '10s'): %w", err)
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func (u *UpstreamConfig) validate() error {
	if u.Endpoint == "" {
		return fmt.Errorf("upstream.endpoint is required")
	}

	parsed, err := url.Parse(u.Endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("upstream.endpoint must be an absolute URL, got %q", u.Endpoint)
	}

	for field, value := range map[string]string{
		"upstream.timeout":          u.Timeout,
		"upstream.readinessTimeout": u.ReadinessTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s must be a valid duration (e.g., '15s'): %w", field, err)
		}
	}

	return nil
}

func (r *ResourcesConfig) validate() error {
	if r == nil || len(r.Dependents) == 0 {
		return nil
	}

	// Building the merged graph runs the full cycle and key validation.
	if _, err := resource.NewGraph(mergeDependents(r.Dependents)); err != nil {
		return fmt.Errorf("resources.dependents: %w", err)
	}
	return nil
}

// GetTimeout returns the upstream call timeout, using the default if unset
func (u *UpstreamConfig) GetTimeout() time.Duration {
	return parseDurationOr(u.Timeout, DefaultUpstreamTimeout)
}

// GetReadinessTimeout returns the readiness probe timeout, using the default
// if unset
func (u *UpstreamConfig) GetReadinessTimeout() time.Duration {
	return parseDurationOr(u.ReadinessTimeout, DefaultReadinessTimeout)
}

// GetAddress returns the listen address, using the default if unset
func (c *Config) GetAddress() string {
	if c.Server == nil || c.Server.Address == "" {
		return DefaultListenAddress
	}
	return c.Server.Address
}

// GetShutdownTimeout returns the shutdown timeout, using the default if unset
func (c *Config) GetShutdownTimeout() time.Duration {
	if c.Server == nil {
		return DefaultShutdownTimeout
	}
	return parseDurationOr(c.Server.ShutdownTimeout, DefaultShutdownTimeout)
}

// GetNotificationCapacity returns the notice buffer capacity, 0 meaning the
// hub default
func (c *Config) GetNotificationCapacity() int {
	if c.Notifications == nil {
		return 0
	}
	return c.Notifications.Capacity
}

// BuildGraph returns the dependency graph with any configured extensions
// merged over the built-in defaults
func (c *Config) BuildGraph() (*resource.Graph, error) {
	if c.Resources == nil || len(c.Resources.Dependents) == 0 {
		return resource.Default(), nil
	}
	return resource.NewGraph(mergeDependents(c.Resources.Dependents))
}

// mergeDependents layers extensions over the built-in map, appending new
// dependents to existing keys and skipping duplicates.
func mergeDependents(extra map[string][]string) map[string][]string {
	merged := resource.DefaultDependents()
	for key, deps := range extra {
		existing := make(map[string]struct{}, len(merged[key]))
		for _, dep := range merged[key] {
			existing[dep] = struct{}{}
		}
		for _, dep := range deps {
			if _, ok := existing[dep]; ok {
				continue
			}
			merged[key] = append(merged[key], dep)
		}
	}
	return merged
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
