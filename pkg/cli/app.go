package cli

import (
	"fmt"

	"github.com/lifetime-go/lifetime/pkg/config"
	"github.com/lifetime-go/lifetime/pkg/lifecycle"
	"github.com/lifetime-go/lifetime/pkg/logger"
	"github.com/lifetime-go/lifetime/pkg/modules"
	"github.com/lifetime-go/lifetime/pkg/notifier"
	"github.com/lifetime-go/lifetime/pkg/registry"
)

// application is one manifest wired to a registry and a manager
type application struct {
	manifest *config.Config
	registry *registry.Registry
	manager  *lifecycle.Manager
	logger   logger.Logger
}

// newApplication registers the manifest's modules and creates the manager.
// Flags override the manifest's walker settings.
func (c *CLI) newApplication(manifest *config.Config, log logger.Logger, observers ...lifecycle.Observer) (*application, error) {
	walkerName := manifest.Walker
	if c.config.Walker != "" {
		walkerName = c.config.Walker
	}
	strategy, err := lifecycle.ParseStrategy(walkerName)
	if err != nil {
		return nil, err
	}
	maxConcurrency := manifest.MaxConcurrency
	if c.config.MaxConcurrency >= 0 {
		maxConcurrency = c.config.MaxConcurrency
	}

	reg := registry.New(registry.WithLogger(log))
	if err := modules.Register(reg, manifest, log); err != nil {
		return nil, fmt.Errorf("failed to register modules: %w", err)
	}

	opts := []lifecycle.Option{
		lifecycle.WithLogger(log),
		lifecycle.WithWalker(strategy),
		lifecycle.WithMaxConcurrency(maxConcurrency),
		lifecycle.WithObserver(notifier.New(notifier.Config{Enabled: manifest.Notifications.Enabled}, log)),
	}
	for _, o := range observers {
		opts = append(opts, lifecycle.WithObserver(o))
	}

	return &application{
		manifest: manifest,
		registry: reg,
		manager:  lifecycle.New(reg, opts...),
		logger:   log,
	}, nil
}
