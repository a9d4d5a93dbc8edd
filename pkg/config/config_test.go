package config_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lifetime-go/lifetime/pkg/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadConfig_JSON(t *testing.T) {
	tmpDir := t.TempDir()

	testConfig := map[string]interface{}{
		"version": "1.0",
		"walker":  "wave",
		"modules": []map[string]interface{}{
			{"name": "database", "startDelay": "10ms"},
			{"name": "api", "requires": []string{"database"}},
		},
	}
	data, _ := json.Marshal(testConfig)
	path := writeFile(t, tmpDir, "lifetime.json", string(data))

	cfg, err := config.NewManager().LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Walker != "wave" {
		t.Errorf("expected walker wave, got %s", cfg.Walker)
	}
	if len(cfg.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(cfg.Modules))
	}
	if got := cfg.Modules[1].Requires; len(got) != 1 || got[0] != "database" {
		t.Errorf("unexpected requires: %v", got)
	}
	if cfg.Modules[0].EffectiveKind() != config.KindScript {
		t.Errorf("expected default kind script, got %s", cfg.Modules[0].EffectiveKind())
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "lifetime.yaml", `
version: "1.0"
logLevel: debug
maxConcurrency: 2
notifications:
  enabled: true
modules:
  - name: database
  - name: pulse
    kind: heartbeat
    interval: 1s
    requires: [database]
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.MaxConcurrency != 2 {
		t.Errorf("expected maxConcurrency 2, got %d", cfg.MaxConcurrency)
	}
	if !cfg.Notifications.Enabled {
		t.Error("expected notifications to be enabled")
	}
	pulse, ok := cfg.Module("pulse")
	if !ok {
		t.Fatal("module pulse not found")
	}
	if pulse.Kind != config.KindHeartbeat || pulse.Interval != "1s" {
		t.Errorf("unexpected pulse module: %+v", pulse)
	}
}

func TestLoadConfig_HCL(t *testing.T) {
	path := writeFile(t, t.TempDir(), "lifetime.hcl", `
version         = "1.0"
walker          = "wave"
max_concurrency = 3
stop_timeout    = "5s"

notifications {
  enabled = true
}

module "database" {
  start_delay = "20ms"
}

module "cache" {
  requires = ["database"]
  fail     = "stop"
}
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Walker != "wave" || cfg.MaxConcurrency != 3 {
		t.Errorf("unexpected walker settings: %s/%d", cfg.Walker, cfg.MaxConcurrency)
	}
	if cfg.StopTimeoutDuration() != 5*time.Second {
		t.Errorf("expected stop timeout 5s, got %v", cfg.StopTimeoutDuration())
	}
	if cfg.StartTimeoutDuration() != config.DefaultStartTimeout {
		t.Errorf("expected default start timeout, got %v", cfg.StartTimeoutDuration())
	}
	if !cfg.Notifications.Enabled {
		t.Error("expected notifications to be enabled")
	}
	cache, ok := cfg.Module("cache")
	if !ok {
		t.Fatal("module cache not found")
	}
	if cache.Fail != "stop" || len(cache.Requires) != 1 {
		t.Errorf("unexpected cache module: %+v", cache)
	}
}

func TestLoadConfig_HCLSyntaxError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "lifetime.hcl", `module "broken" {`)
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected error for malformed HCL")
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := config.Load(filepath.Join(tmpDir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeFile(t, tmpDir, "garbage.json", "{not: [valid")
	if _, err := config.Load(path); err == nil {
		t.Error("expected error for unparsable file")
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Version: "1.0",
			Modules: []config.ModuleConfig{
				{Name: "database"},
				{Name: "api", Requires: []string{"database"}},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{name: "nil modules", mutate: func(c *config.Config) { c.Modules = nil }, wantErr: "no modules"},
		{name: "bad version", mutate: func(c *config.Config) { c.Version = "2.0" }, wantErr: "unsupported config version"},
		{name: "bad log level", mutate: func(c *config.Config) { c.LogLevel = "loud" }, wantErr: "invalid log level"},
		{name: "bad walker", mutate: func(c *config.Config) { c.Walker = "sideways" }, wantErr: "sideways"},
		{name: "negative concurrency", mutate: func(c *config.Config) { c.MaxConcurrency = -1 }, wantErr: "maxConcurrency"},
		{name: "bad timeout", mutate: func(c *config.Config) { c.StartTimeout = "soon" }, wantErr: "startTimeout"},
		{name: "negative timeout", mutate: func(c *config.Config) { c.StopTimeout = "-1s" }, wantErr: "stopTimeout"},
		{name: "missing name", mutate: func(c *config.Config) { c.Modules[0].Name = "" }, wantErr: "missing name"},
		{name: "invalid name", mutate: func(c *config.Config) { c.Modules[0].Name = "data base" }, wantErr: "invalid name"},
		{name: "duplicate name", mutate: func(c *config.Config) { c.Modules[1].Name = "database" }, wantErr: "duplicate module name"},
		{name: "unknown requirement", mutate: func(c *config.Config) { c.Modules[1].Requires = []string{"queue"} }, wantErr: "unknown module"},
		{name: "unknown kind", mutate: func(c *config.Config) { c.Modules[0].Kind = "daemon" }, wantErr: "unknown kind"},
		{name: "heartbeat without interval", mutate: func(c *config.Config) { c.Modules[0].Kind = config.KindHeartbeat }, wantErr: "positive interval"},
		{name: "watch without path", mutate: func(c *config.Config) { c.Modules[0].Kind = config.KindWatch }, wantErr: "needs a path"},
		{name: "bad ignore pattern", mutate: func(c *config.Config) {
			c.Modules[0].Kind = config.KindWatch
			c.Modules[0].Path = "."
			c.Modules[0].Ignore = []string{"out[z-a]"}
		}, wantErr: "invalid ignore pattern"},
		{name: "bad fail mode", mutate: func(c *config.Config) { c.Modules[0].Fail = "always" }, wantErr: "fail must be"},
		{name: "bad delay", mutate: func(c *config.Config) { c.Modules[0].StartDelay = "later" }, wantErr: "startDelay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if err := config.Validate(nil); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for nil config, got %v", err)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := config.Default()

	if err := config.Validate(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Version != config.CurrentVersion {
		t.Errorf("expected version %s, got %s", config.CurrentVersion, cfg.Version)
	}
	if _, ok := cfg.Module("database"); !ok {
		t.Error("default config should declare a database module")
	}
}

func TestWriteConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	manager := config.NewManager()

	for _, name := range []string{"lifetime.yaml", "lifetime.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(tmpDir, name)
			if err := manager.WriteConfig(path, config.Default()); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}
			cfg, err := manager.LoadConfig(path)
			if err != nil {
				t.Fatalf("failed to load written config: %v", err)
			}
			if len(cfg.Modules) != len(config.Default().Modules) {
				t.Errorf("expected %d modules, got %d", len(config.Default().Modules), len(cfg.Modules))
			}
		})
	}

	// YAML output keeps the JSON field names.
	data, err := os.ReadFile(filepath.Join(tmpDir, "lifetime.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["startTimeout"]; !ok {
		t.Errorf("expected startTimeout key in YAML output, got %v", raw)
	}

	if err := manager.WriteConfig(filepath.Join(tmpDir, "lifetime.hcl"), config.Default()); err == nil {
		t.Error("expected error writing HCL")
	}
}
