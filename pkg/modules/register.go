package modules

import (
	"fmt"

	"github.com/lifetime-go/lifetime/pkg/config"
	"github.com/lifetime-go/lifetime/pkg/logger"
	"github.com/lifetime-go/lifetime/pkg/module"
	"github.com/lifetime-go/lifetime/pkg/registry"
	"github.com/lifetime-go/lifetime/pkg/utils"
)

// Register adds a factory for every module of cfg to reg. Factories build
// a fresh instance each time the registry asks, so a reset registry starts
// the next run from scratch.
func Register(reg *registry.Registry, cfg *config.Config, log logger.Logger) error {
	for _, mc := range cfg.Modules {
		factory, err := FactoryFor(mc, log)
		if err != nil {
			return err
		}
		if err := reg.Register(mc.ID(), factory); err != nil {
			return err
		}
	}
	return nil
}

// FactoryFor returns the registry factory for one manifest module
func FactoryFor(mc config.ModuleConfig, log logger.Logger) (registry.Factory, error) {
	requires := make([]module.ID, 0, len(mc.Requires))
	for _, r := range mc.Requires {
		requires = append(requires, module.ID(r))
	}
	startDelay := config.Duration(mc.StartDelay, 0)
	stopDelay := config.Duration(mc.StopDelay, 0)
	fail := FailMode(mc.Fail)

	switch mc.EffectiveKind() {
	case config.KindScript:
		return func() (module.Module, error) {
			return NewScript(mc.ID(), startDelay, stopDelay, fail, log, requires...), nil
		}, nil
	case config.KindHeartbeat:
		interval := config.Duration(mc.Interval, 0)
		if interval <= 0 {
			return nil, fmt.Errorf("module %s: heartbeat needs a positive interval", mc.Name)
		}
		return func() (module.Module, error) {
			return NewHeartbeat(mc.ID(), interval, log, requires...), nil
		}, nil
	case config.KindWatch:
		if mc.Path == "" {
			return nil, fmt.Errorf("module %s: watch needs a path", mc.Name)
		}
		ignore, err := utils.NewIgnoreMatcher(append(utils.DefaultIgnores(), mc.Ignore...))
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", mc.Name, err)
		}
		return func() (module.Module, error) {
			w := NewWatch(mc.ID(), mc.Path, log, requires...)
			w.SetIgnore(ignore)
			return w, nil
		}, nil
	}
	return nil, fmt.Errorf("module %s: unknown kind %q", mc.Name, mc.Kind)
}
