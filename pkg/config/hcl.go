package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// hclManifest is the HCL shape of a manifest:
//
//	version = "1.0"
//	walker  = "wave"
//
//	module "cache" {
//	  requires    = ["database"]
//	  start_delay = "50ms"
//	}
type hclManifest struct {
	Version        string            `hcl:"version"`
	LogLevel       *string           `hcl:"log_level,optional"`
	Walker         *string           `hcl:"walker,optional"`
	MaxConcurrency *int              `hcl:"max_concurrency,optional"`
	StartTimeout   *string           `hcl:"start_timeout,optional"`
	StopTimeout    *string           `hcl:"stop_timeout,optional"`
	Notifications  *hclNotifications `hcl:"notifications,block"`
	Modules        []*hclModule      `hcl:"module,block"`
}

type hclNotifications struct {
	Enabled bool `hcl:"enabled"`
}

type hclModule struct {
	Name       string   `hcl:"name,label"`
	Kind       *string  `hcl:"kind,optional"`
	Requires   []string `hcl:"requires,optional"`
	StartDelay *string  `hcl:"start_delay,optional"`
	StopDelay  *string  `hcl:"stop_delay,optional"`
	Fail       *string  `hcl:"fail,optional"`
	Interval   *string  `hcl:"interval,optional"`
	Path       *string  `hcl:"path,optional"`
	Ignore     []string `hcl:"ignore,optional"`
}

func decodeHCL(path string, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var raw hclManifest
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	cfg := &Config{
		Version:        raw.Version,
		LogLevel:       deref(raw.LogLevel),
		Walker:         deref(raw.Walker),
		StartTimeout:   deref(raw.StartTimeout),
		StopTimeout:    deref(raw.StopTimeout),
		MaxConcurrency: derefInt(raw.MaxConcurrency),
		Modules:        make([]ModuleConfig, 0, len(raw.Modules)),
	}
	if raw.Notifications != nil {
		cfg.Notifications.Enabled = raw.Notifications.Enabled
	}
	for _, m := range raw.Modules {
		cfg.Modules = append(cfg.Modules, ModuleConfig{
			Name:       m.Name,
			Kind:       ModuleKind(deref(m.Kind)),
			Requires:   m.Requires,
			StartDelay: deref(m.StartDelay),
			StopDelay:  deref(m.StopDelay),
			Fail:       deref(m.Fail),
			Interval:   deref(m.Interval),
			Path:       deref(m.Path),
			Ignore:     m.Ignore,
		})
	}
	return cfg, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
