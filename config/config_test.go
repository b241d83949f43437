package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ryzeai/ryze/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Addr != ":3000" {
		t.Errorf("expected default addr :3000, got %s", cfg.Server.Addr)
	}
	if cfg.Model.Temperature != 0.2 {
		t.Errorf("expected default temperature 0.2, got %f", cfg.Model.Temperature)
	}
	if cfg.Client.Storage != StorageFile {
		t.Errorf("expected file storage by default, got %s", cfg.Client.Storage)
	}
	if !cfg.NATS.Embedded {
		t.Error("expected embedded NATS by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name:    "missing addr",
			modify:  func(c *Config) { c.Server.Addr = "" },
			wantErr: "server.addr",
		},
		{
			name:    "provider without model",
			modify:  func(c *Config) { c.Model.Provider = "ollama" },
			wantErr: "model.default",
		},
		{
			name:    "temperature too low",
			modify:  func(c *Config) { c.Model.Temperature = -0.1 },
			wantErr: "model.temperature",
		},
		{
			name:    "temperature too high",
			modify:  func(c *Config) { c.Model.Temperature = 2.1 },
			wantErr: "model.temperature",
		},
		{
			name:    "unknown storage",
			modify:  func(c *Config) { c.Client.Storage = "redis" },
			wantErr: "client.storage",
		},
		{
			name:   "memory storage",
			modify: func(c *Config) { c.Client.Storage = StorageMemory; c.Client.StateDir = "" },
		},
		{
			name:    "external nats without url",
			modify:  func(c *Config) { c.NATS.Embedded = false },
			wantErr: "nats.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
server:
  addr: ":8080"
  static_explanation: true
  run_timeout: 90s
model:
  provider: "ollama"
  default: "test-model"
  endpoint: "http://test:1234/v1"
  temperature: 0.5
  timeout: 10m
client:
  server_url: "http://ryze.internal:8080"
  storage: nats
  session: "alice"
nats:
  url: "nats://test:4222"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected addr :8080, got %s", cfg.Server.Addr)
	}
	if !cfg.Server.StaticExplanation {
		t.Error("expected static explanation")
	}
	if cfg.Server.RunTimeout != 90*time.Second {
		t.Errorf("expected run timeout 90s, got %v", cfg.Server.RunTimeout)
	}
	if cfg.Model.Default != "test-model" {
		t.Errorf("expected model test-model, got %s", cfg.Model.Default)
	}
	if cfg.Model.Temperature != 0.5 {
		t.Errorf("expected temperature 0.5, got %f", cfg.Model.Temperature)
	}
	if cfg.Model.Timeout != 10*time.Minute {
		t.Errorf("expected timeout 10m, got %v", cfg.Model.Timeout)
	}
	if cfg.Client.Storage != StorageNATS || cfg.Client.Session != "alice" {
		t.Errorf("unexpected client config %+v", cfg.Client)
	}
	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [oops"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Model: ModelConfig{
			Default: "override-model",
		},
		Client: ClientConfig{
			Storage: StorageMemory,
		},
		NATS: NATSConfig{
			URL: "nats://remote:4222",
		},
	}

	base.Merge(override)

	if base.Model.Default != "override-model" {
		t.Errorf("expected model override-model, got %s", base.Model.Default)
	}
	// Temperature should remain from base since override didn't set it
	if base.Model.Temperature != 0.2 {
		t.Errorf("expected temperature to remain default, got %f", base.Model.Temperature)
	}
	if base.Client.Storage != StorageMemory {
		t.Errorf("expected memory storage, got %s", base.Client.Storage)
	}
	if base.Client.ServerURL != "http://localhost:3000" {
		t.Errorf("expected server URL to remain default, got %s", base.Client.ServerURL)
	}
	if base.NATS.Embedded {
		t.Error("setting a NATS URL should disable the embedded server")
	}

	base.Merge(nil)
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Model.Default = "saved-model"
	cfg.Server.RunTimeout = 3 * time.Minute

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Model.Default != "saved-model" {
		t.Errorf("expected model saved-model, got %s", loaded.Model.Default)
	}
	if loaded.Server.RunTimeout != 3*time.Minute {
		t.Errorf("expected run timeout 3m, got %v", loaded.Server.RunTimeout)
	}
}

func TestBuildRegistry(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		reg, err := DefaultConfig().Model.BuildRegistry()
		if err != nil {
			t.Fatalf("BuildRegistry() error = %v", err)
		}
		if got := reg.Resolve(model.CapabilityPlanning); got != "gemini-flash" {
			t.Errorf("expected gemini-flash for planning, got %s", got)
		}
	})

	t.Run("single provider", func(t *testing.T) {
		m := ModelConfig{Provider: "ollama", Default: "llama3.2", Endpoint: "http://gpu:11434/v1"}
		reg, err := m.BuildRegistry()
		if err != nil {
			t.Fatalf("BuildRegistry() error = %v", err)
		}
		for _, c := range []model.Capability{model.CapabilityPlanning, model.CapabilityCoding, model.CapabilityWriting} {
			name := reg.Resolve(c)
			ep := reg.GetEndpoint(name)
			if ep == nil || ep.Model != "llama3.2" || ep.URL != "http://gpu:11434/v1" {
				t.Errorf("capability %s resolved to %s (%+v)", c, name, ep)
			}
		}
	})

	t.Run("registry file", func(t *testing.T) {
		path := writeRegistry(t, t.TempDir(), "mistral")
		reg, err := (&ModelConfig{Registry: path}).BuildRegistry()
		if err != nil {
			t.Fatalf("BuildRegistry() error = %v", err)
		}
		if ep := reg.GetEndpoint(reg.Resolve(model.CapabilityCoding)); ep == nil || ep.Model != "mistral" {
			t.Errorf("unexpected coding endpoint %+v", ep)
		}
	})

	t.Run("broken registry file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "models.json")
		if err := os.WriteFile(path, []byte(`{"endpoints": {`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := (&ModelConfig{Registry: path}).BuildRegistry(); err == nil {
			t.Error("expected error for broken registry file")
		}
	})
}

// writeRegistry writes a registry file that sends every capability to an
// ollama endpoint serving modelName.
func writeRegistry(t *testing.T, dir, modelName string) string {
	t.Helper()
	content := `{
  "capabilities": {
    "planning": {"preferred": ["local"]},
    "coding":   {"preferred": ["local"]},
    "writing":  {"preferred": ["local"]}
  },
  "endpoints": {
    "local": {"provider": "ollama", "model": "` + modelName + `"}
  },
  "defaults": {"model": "local"}
}`
	path := filepath.Join(dir, "models.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write registry: %v", err)
	}
	return path
}
