package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoaderLayers(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	nested := filepath.Join(project, "apps", "web")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(home, UserConfigDir, UserConfigFile), `
server:
  addr: ":4000"
model:
  temperature: 0.7
client:
  storage: memory
`)
	writeFile(t, filepath.Join(project, ProjectConfigFile), `
server:
  addr: ":5000"
model:
  registry: models.json
`)
	explicit := filepath.Join(t.TempDir(), "ci.yaml")
	writeFile(t, explicit, `
client:
  server_url: "http://ci:3000"
`)

	l := NewLoader(nil)
	l.home = home
	l.workDir = nested

	cfg, err := l.Load(explicit)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":5000" {
		t.Errorf("project config should override user config, got addr %s", cfg.Server.Addr)
	}
	if cfg.Model.Temperature != 0.7 {
		t.Errorf("expected user temperature 0.7, got %f", cfg.Model.Temperature)
	}
	if cfg.Client.Storage != StorageMemory {
		t.Errorf("expected user storage memory, got %s", cfg.Client.Storage)
	}
	if cfg.Client.ServerURL != "http://ci:3000" {
		t.Errorf("expected explicit server URL, got %s", cfg.Client.ServerURL)
	}
	if want := filepath.Join(project, "models.json"); cfg.Model.Registry != want {
		t.Errorf("registry path should be relative to the project config: got %s, want %s", cfg.Model.Registry, want)
	}
}

func TestLoaderDefaults(t *testing.T) {
	l := NewLoader(nil)
	l.home = t.TempDir()
	l.workDir = t.TempDir()

	cfg, err := l.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != DefaultConfig().Server.Addr {
		t.Errorf("expected default addr, got %s", cfg.Server.Addr)
	}
}

func TestLoaderBrokenProjectConfigIsSkipped(t *testing.T) {
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ProjectConfigFile), "server: [")

	l := NewLoader(nil)
	l.home = t.TempDir()
	l.workDir = project

	if _, err := l.Load(""); err != nil {
		t.Fatalf("a broken project config should be skipped, got %v", err)
	}
}

func TestLoaderExplicitErrors(t *testing.T) {
	l := NewLoader(nil)
	l.home = t.TempDir()
	l.workDir = t.TempDir()

	if _, err := l.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	writeFile(t, invalid, "client:\n  storage: redis\n")
	if _, err := l.Load(invalid); err == nil {
		t.Error("expected validation error")
	}
}

func TestEnsureUserConfig(t *testing.T) {
	l := NewLoader(nil)
	l.home = t.TempDir()

	if err := l.EnsureUserConfig(); err != nil {
		t.Fatalf("EnsureUserConfig() error = %v", err)
	}
	path := filepath.Join(l.home, UserConfigDir, UserConfigFile)
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("created config does not load: %v", err)
	}
	if cfg.Server.Addr != ":3000" {
		t.Errorf("expected default addr in created config, got %s", cfg.Server.Addr)
	}

	// A second call leaves the file alone.
	writeFile(t, path, "server:\n  addr: \":9999\"\n")
	if err := l.EnsureUserConfig(); err != nil {
		t.Fatal(err)
	}
	cfg, _ = LoadFromFile(path)
	if cfg.Server.Addr != ":9999" {
		t.Errorf("existing user config was overwritten")
	}
}

func TestLoaderBundledMockConfig(t *testing.T) {
	l := NewLoader(nil)
	l.home = t.TempDir()
	l.workDir = t.TempDir()

	cfg, err := l.Load(filepath.Join("..", "configs", "ryze.mock.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want, err := filepath.Abs(filepath.Join("..", "configs", "models.mock.json"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := filepath.Abs(cfg.Model.Registry)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("registry path = %s, want %s", got, want)
	}

	reg, err := cfg.Model.BuildRegistry()
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}
	if ep := reg.GetEndpoint("mock-planner"); ep == nil || ep.Model != "mock-planner" {
		t.Errorf("expected mock-planner endpoint, got %+v", ep)
	}
}
