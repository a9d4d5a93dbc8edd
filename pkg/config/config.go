// Package config loads and validates lifetime manifests
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lifetime-go/lifetime/pkg/lifecycle"
	"github.com/lifetime-go/lifetime/pkg/module"
	"github.com/lifetime-go/lifetime/pkg/utils"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// CurrentVersion is the only supported manifest version.
const CurrentVersion = "1.0"

// Default timeouts applied when the manifest leaves them empty.
const (
	DefaultStartTimeout = 30 * time.Second
	DefaultStopTimeout  = 30 * time.Second
)

// ModuleKind selects the built-in implementation of a manifest module.
type ModuleKind string

const (
	KindScript    ModuleKind = "script"
	KindHeartbeat ModuleKind = "heartbeat"
	KindWatch     ModuleKind = "watch"
)

// Config is a lifetime manifest
type Config struct {
	Version        string             `json:"version"`
	LogLevel       string             `json:"logLevel,omitempty"`
	Walker         string             `json:"walker,omitempty"`
	MaxConcurrency int                `json:"maxConcurrency,omitempty"`
	StartTimeout   string             `json:"startTimeout,omitempty"`
	StopTimeout    string             `json:"stopTimeout,omitempty"`
	Notifications  NotificationConfig `json:"notifications"`
	Modules        []ModuleConfig     `json:"modules"`
}

// NotificationConfig controls desktop notifications
type NotificationConfig struct {
	Enabled bool `json:"enabled"`
}

// ModuleConfig declares one module of the manifest
type ModuleConfig struct {
	Name       string     `json:"name"`
	Kind       ModuleKind `json:"kind,omitempty"`
	Requires   []string   `json:"requires,omitempty"`
	StartDelay string     `json:"startDelay,omitempty"`
	StopDelay  string     `json:"stopDelay,omitempty"`
	Fail       string     `json:"fail,omitempty"`
	Interval   string     `json:"interval,omitempty"`
	Path       string     `json:"path,omitempty"`
	Ignore     []string   `json:"ignore,omitempty"`
}

// ID returns the module identity
func (m ModuleConfig) ID() module.ID {
	return module.ID(m.Name)
}

// EffectiveKind returns the kind, defaulting to script
func (m ModuleConfig) EffectiveKind() ModuleKind {
	if m.Kind == "" {
		return KindScript
	}
	return m.Kind
}

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// Load reads and validates the manifest at path
func Load(path string) (*Config, error) {
	return NewManager().LoadConfig(path)
}

// Validate checks a manifest
func Validate(cfg *Config) error {
	return NewManager().ValidateConfig(cfg)
}

// Default returns the manifest written by `lifetime init`
func Default() *Config {
	return NewManager().GetDefaultConfig()
}

// LoadConfig loads configuration from a file. Files ending in .hcl are
// decoded as HCL; anything else is tried as JSON, then YAML.
func (m *Manager) LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		cfg, err := decodeHCL(path, data)
		if err != nil {
			return nil, err
		}
		return m.validateConfig(cfg)
	}

	var cfg Config

	// Try JSON first
	if err := json.Unmarshal(data, &cfg); err == nil {
		return m.validateConfig(&cfg)
	}

	// YAML goes through JSON so that a single set of tags describes both
	var yamlData map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlData); err == nil && yamlData != nil {
		jsonData, err := json.Marshal(yamlData)
		if err == nil {
			cfg = Config{}
			if err := json.Unmarshal(jsonData, &cfg); err == nil {
				return m.validateConfig(&cfg)
			}
		}
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML")
}

// WriteConfig writes cfg to path as YAML, or as JSON for .json paths
func (m *Manager) WriteConfig(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".hcl":
		return fmt.Errorf("writing HCL manifests is not supported, use .yaml or .json")
	default:
		data, err = toYAML(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// toYAML renders cfg with the JSON field names.
func toYAML(cfg *Config) ([]byte, error) {
	jsonData, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(jsonData, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}

// ValidateConfig validates a configuration
func (m *Manager) ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: empty configuration", ErrInvalidConfig)
	}
	if cfg.Version != CurrentVersion {
		return fmt.Errorf("%w: unsupported config version: %q", ErrInvalidConfig, cfg.Version)
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: invalid log level: %s", ErrInvalidConfig, cfg.LogLevel)
	}

	if _, err := lifecycle.ParseStrategy(cfg.Walker); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.MaxConcurrency < 0 {
		return fmt.Errorf("%w: maxConcurrency must not be negative", ErrInvalidConfig)
	}
	if _, err := parseDuration("startTimeout", cfg.StartTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("stopTimeout", cfg.StopTimeout); err != nil {
		return err
	}

	if len(cfg.Modules) == 0 {
		return fmt.Errorf("%w: no modules defined", ErrInvalidConfig)
	}

	names := make(map[string]bool, len(cfg.Modules))
	for i, mod := range cfg.Modules {
		if mod.Name == "" {
			return fmt.Errorf("%w: module %d: missing name", ErrInvalidConfig, i)
		}
		if !mod.ID().Valid() {
			return fmt.Errorf("%w: module %d: invalid name %q", ErrInvalidConfig, i, mod.Name)
		}
		if names[mod.Name] {
			return fmt.Errorf("%w: duplicate module name: %s", ErrInvalidConfig, mod.Name)
		}
		names[mod.Name] = true
	}

	for _, mod := range cfg.Modules {
		if err := m.validateModule(mod, names); err != nil {
			return fmt.Errorf("%w: module '%s': %v", ErrInvalidConfig, mod.Name, err)
		}
	}
	return nil
}

// GetDefaultConfig returns a small manifest showing every module kind
func (m *Manager) GetDefaultConfig() *Config {
	return &Config{
		Version:      CurrentVersion,
		LogLevel:     "info",
		Walker:       string(lifecycle.WalkMemo),
		StartTimeout: DefaultStartTimeout.String(),
		StopTimeout:  DefaultStopTimeout.String(),
		Modules: []ModuleConfig{
			{Name: "database", Kind: KindScript, StartDelay: "200ms", StopDelay: "100ms"},
			{Name: "cache", Kind: KindScript, Requires: []string{"database"}, StartDelay: "50ms"},
			{Name: "api", Kind: KindScript, Requires: []string{"database", "cache"}},
			{Name: "pulse", Kind: KindHeartbeat, Requires: []string{"api"}, Interval: "5s"},
		},
	}
}

func (m *Manager) validateConfig(cfg *Config) (*Config, error) {
	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (m *Manager) validateModule(mod ModuleConfig, names map[string]bool) error {
	switch mod.EffectiveKind() {
	case KindScript:
	case KindHeartbeat:
		interval, err := parseDuration("interval", mod.Interval)
		if err != nil {
			return err
		}
		if interval <= 0 {
			return fmt.Errorf("heartbeat needs a positive interval")
		}
	case KindWatch:
		if mod.Path == "" {
			return fmt.Errorf("watch needs a path")
		}
		if _, err := utils.NewIgnoreMatcher(mod.Ignore); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown kind: %s", mod.Kind)
	}

	switch mod.Fail {
	case "", "start", "stop":
	default:
		return fmt.Errorf("fail must be start or stop, got %q", mod.Fail)
	}

	for _, field := range []struct{ name, value string }{
		{"startDelay", mod.StartDelay},
		{"stopDelay", mod.StopDelay},
	} {
		if _, err := parseDuration(field.name, field.value); err != nil {
			return err
		}
	}

	// Self and duplicate requirements are rejected by the manager when the
	// module declares them.
	for _, req := range mod.Requires {
		if !names[req] {
			return fmt.Errorf("requires unknown module %q", req)
		}
	}
	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, field)
	}
	return d, nil
}

// Duration parses a duration field that already passed validation,
// returning fallback when it is empty.
func Duration(value string, fallback time.Duration) time.Duration {
	d, err := parseDuration("", value)
	if err != nil || value == "" {
		return fallback
	}
	return d
}

// StartTimeoutDuration returns the start timeout or its default
func (c *Config) StartTimeoutDuration() time.Duration {
	return Duration(c.StartTimeout, DefaultStartTimeout)
}

// StopTimeoutDuration returns the stop timeout or its default
func (c *Config) StopTimeoutDuration() time.Duration {
	return Duration(c.StopTimeout, DefaultStopTimeout)
}

// Module returns the module named name
func (c *Config) Module(name string) (ModuleConfig, bool) {
	for _, m := range c.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return ModuleConfig{}, false
}
