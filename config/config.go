// Package config provides configuration loading and management for Ryze.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ryzeai/ryze/model"
)

// Storage backends for the client session.
const (
	StorageFile   = "file"
	StorageNATS   = "nats"
	StorageMemory = "memory"
)

// Config represents the complete Ryze configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Model  ModelConfig  `yaml:"model"`
	Client ClientConfig `yaml:"client"`
	NATS   NATSConfig   `yaml:"nats"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	// Addr is the listen address (default: ":3000")
	Addr string `yaml:"addr"`
	// StaticExplanation answers with the plan's reasoning instead of
	// streaming an explanation from a model
	StaticExplanation bool `yaml:"static_explanation"`
	// RunTimeout bounds a single pipeline run (0 = no limit)
	RunTimeout time.Duration `yaml:"run_timeout"`
	// ShutdownTimeout is how long in-flight streams may take to finish
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// RecordCalls stores every LLM call in the NATS call bucket
	RecordCalls bool `yaml:"record_calls"`
}

// ModelConfig configures the LLM model settings
type ModelConfig struct {
	// Registry is a JSON model registry file. When set it takes precedence
	// over Provider/Default/Endpoint and is reloaded when it changes.
	Registry string `yaml:"registry"`
	// Provider selects a single endpoint for every capability (e.g. "ollama")
	Provider string `yaml:"provider"`
	// Default is the model sent to Provider (e.g. "qwen2.5-coder:14b")
	Default string `yaml:"default"`
	// Endpoint overrides the provider's API base URL
	Endpoint string `yaml:"endpoint"`
	// Temperature controls randomness (0.0-2.0, default: 0.2)
	Temperature float64 `yaml:"temperature"`
	// Timeout is the maximum time to wait for a single model response
	Timeout time.Duration `yaml:"timeout"`
}

// ClientConfig configures the CLI client
type ClientConfig struct {
	// ServerURL is the Ryze server to talk to
	ServerURL string `yaml:"server_url"`
	// Storage is the session backend: file, nats or memory
	Storage string `yaml:"storage"`
	// StateDir holds the session files of the file backend
	StateDir string `yaml:"state_dir"`
	// Session names the session inside the NATS bucket
	Session string `yaml:"session"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
	// StoreDir is the JetStream directory of the embedded server
	StoreDir string `yaml:"store_dir"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3000",
			RunTimeout:      5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			Temperature: 0.2,
			Timeout:     2 * time.Minute,
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:3000",
			Storage:   StorageFile,
			StateDir:  defaultStateDir(),
			Session:   "default",
		},
		NATS: NATSConfig{
			URL:      "",
			Embedded: true,
		},
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ryze"
	}
	return filepath.Join(home, UserConfigDir, "session")
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.RunTimeout < 0 {
		errs = append(errs, errors.New("server.run_timeout must not be negative"))
	}
	if c.Model.Provider != "" && c.Model.Default == "" {
		errs = append(errs, errors.New("model.default is required when model.provider is set"))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, errors.New("model.temperature must be between 0 and 2"))
	}
	switch c.Client.Storage {
	case StorageFile:
		if c.Client.StateDir == "" {
			errs = append(errs, errors.New("client.state_dir is required for file storage"))
		}
	case StorageNATS:
		if c.Client.Session == "" {
			errs = append(errs, errors.New("client.session is required for nats storage"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("client.storage must be one of file, nats, memory (got %q)", c.Client.Storage))
	}
	if !c.NATS.Embedded && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url is required when nats.embedded is false"))
	}
	return errors.Join(errs...)
}

// BuildRegistry returns the model registry the configuration describes: the
// registry file if one is set, a single-endpoint registry if a provider is
// set, otherwise the built-in default registry.
func (m *ModelConfig) BuildRegistry() (*model.Registry, error) {
	if m.Registry != "" {
		reg, err := model.LoadFromFile(m.Registry)
		if err != nil {
			return nil, fmt.Errorf("load model registry: %w", err)
		}
		return reg, nil
	}
	if m.Provider == "" {
		return model.NewDefaultRegistry(), nil
	}

	const name = "configured"
	chain := &model.CapabilityConfig{Preferred: []string{name}}
	caps := make(map[model.Capability]*model.CapabilityConfig)
	for _, c := range []model.Capability{model.CapabilityPlanning, model.CapabilityCoding, model.CapabilityWriting, model.CapabilityFast} {
		caps[c] = chain
	}
	reg := model.NewRegistry(caps, map[string]*model.EndpointConfig{
		name: {Provider: m.Provider, URL: m.Endpoint, Model: m.Default},
	})
	reg.SetDefault(name)
	return reg, nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.StaticExplanation {
		c.Server.StaticExplanation = true
	}
	if other.Server.RunTimeout != 0 {
		c.Server.RunTimeout = other.Server.RunTimeout
	}
	if other.Server.ShutdownTimeout != 0 {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}
	if other.Server.RecordCalls {
		c.Server.RecordCalls = true
	}

	// Model
	if other.Model.Registry != "" {
		c.Model.Registry = other.Model.Registry
	}
	if other.Model.Provider != "" {
		c.Model.Provider = other.Model.Provider
	}
	if other.Model.Default != "" {
		c.Model.Default = other.Model.Default
	}
	if other.Model.Endpoint != "" {
		c.Model.Endpoint = other.Model.Endpoint
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}

	// Client
	if other.Client.ServerURL != "" {
		c.Client.ServerURL = other.Client.ServerURL
	}
	if other.Client.Storage != "" {
		c.Client.Storage = other.Client.Storage
	}
	if other.Client.StateDir != "" {
		c.Client.StateDir = other.Client.StateDir
	}
	if other.Client.Session != "" {
		c.Client.Session = other.Client.Session
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}
	if other.NATS.StoreDir != "" {
		c.NATS.StoreDir = other.NATS.StoreDir
	}
}
