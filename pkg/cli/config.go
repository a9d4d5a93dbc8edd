package cli

import (
	"fmt"
	"os"
	"path/filepath"
)

// ManifestNames are searched in the project root, in order, when no
// --config flag is given.
var ManifestNames = []string{"lifetime.yaml", "lifetime.yml", "lifetime.json", "lifetime.hcl"}

// Config holds all CLI configuration. Flags and LIFETIME_* environment
// variables are merged into it before a command runs.
type Config struct {
	ConfigFile     string
	ProjectRoot    string
	Verbosity      string
	LogFile        string
	Walker         string
	MaxConcurrency int
	Version        string
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		ProjectRoot:    ".",
		MaxConcurrency: -1,
	}
}

// ManifestPath returns the manifest to load: the --config flag, or the
// first of ManifestNames present in the project root.
func (c *Config) ManifestPath() (string, error) {
	if c.ConfigFile != "" {
		return c.ConfigFile, nil
	}
	for _, name := range ManifestNames {
		path := filepath.Join(c.ProjectRoot, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no manifest found in %s (looked for %v); run `lifetime init` or pass --config", c.ProjectRoot, ManifestNames)
}

// InitPath returns where `lifetime init` writes the manifest
func (c *Config) InitPath() string {
	if c.ConfigFile != "" {
		return c.ConfigFile
	}
	return filepath.Join(c.ProjectRoot, ManifestNames[0])
}
