package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifetime-go/lifetime/internal/state"
	"github.com/lifetime-go/lifetime/pkg/config"
	lcontext "github.com/lifetime-go/lifetime/pkg/context"
	"github.com/lifetime-go/lifetime/pkg/lifecycle"
	"github.com/lifetime-go/lifetime/pkg/logger"
	"github.com/lifetime-go/lifetime/pkg/module"
	"github.com/lifetime-go/lifetime/pkg/process"
)

type runOptions struct {
	modules  []string
	reload   bool
	duration time.Duration
}

func (c *CLI) newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [module...]",
		Short: "Start the manifest's modules and stop them on a signal",
		Long: `Start every module of the manifest, or only the named modules and the
modules they depend on, then wait for SIGINT, SIGTERM or SIGHUP and stop
everything in reverse dependency order.

With --reload the manifest is watched and the whole run is restarted
whenever it changes. An invalid manifest is reported and ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.modules = args
			return c.runManifest(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.reload, "reload", false, "restart the run when the manifest changes")
	cmd.Flags().DurationVar(&opts.duration, "for", 0, "stop after this long instead of waiting for a signal")

	return cmd
}

func (c *CLI) runManifest(ctx context.Context, opts runOptions) error {
	path, manifest, err := c.loadManifest()
	if err != nil {
		return err
	}
	log := c.newLogger(manifest)

	// Every restart of this process shares one correlation ID.
	ctx = lcontext.WithCorrelationID(ctx, "")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store := state.NewStore(path, log)
	defer func() {
		if err := store.Close(); err != nil {
			log.Debug("Failed to close run state", logger.WithError(err))
		}
	}()

	signals := process.NewManager(log)
	signals.RegisterShutdownHandler(cancel)
	signals.SetHeartbeat(state.HeartbeatInterval, func() {
		if err := store.Touch(); err != nil {
			log.Debug("Failed to refresh run state", logger.WithError(err))
		}
	})
	signals.Start(ctx)
	defer signals.Stop()

	var reloads chan *config.Config
	if opts.reload {
		reloads = make(chan *config.Config, 1)
		watcher := config.NewWatcher(path, log)
		watcher.OnReload(func(e config.ReloadEvent) {
			if e.Err != nil {
				log.Warn("Keeping current manifest", logger.WithError(e.Err))
				return
			}
			// Only the latest manifest matters.
			select {
			case <-reloads:
			default:
			}
			select {
			case reloads <- e.Config:
			default:
			}
		})
		if err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	var deadline <-chan time.Time
	if opts.duration > 0 {
		timer := time.NewTimer(opts.duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		app, err := c.newApplication(manifest, log, store)
		if err != nil {
			return err
		}
		source, err := selectModules(app, opts.modules)
		if err != nil {
			return err
		}
		if err := store.Begin(plannedNames(manifest, opts.modules)); err != nil {
			log.Warn("Run state will not be recorded", logger.WithError(err))
		}

		startCtx, cancelStart := context.WithTimeout(ctx, manifest.StartTimeoutDuration())
		err = app.manager.Start(startCtx, source)
		cancelStart()
		if err != nil {
			return fmt.Errorf("failed to start: %w", err)
		}
		c.console.Success(fmt.Sprintf("%d modules running (%s)", len(app.manager.Order()), app.manager.RunID()))

		var next *config.Config
		select {
		case <-ctx.Done():
		case <-deadline:
		case next = <-reloads:
		}

		if err := c.shutdown(ctx, app, manifest.StopTimeoutDuration()); err != nil {
			return err
		}
		if next == nil {
			c.console.Success("All modules stopped")
			return nil
		}
		c.console.Info("Manifest changed, restarting")
		manifest = next
	}
}

// shutdown stops app with a fresh deadline; the run context is usually
// already cancelled at this point.
func (c *CLI) shutdown(ctx context.Context, app *application, timeout time.Duration) error {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := app.manager.Shutdown(stopCtx); err != nil {
		if errors.Is(err, lifecycle.ErrCancelled) {
			return fmt.Errorf("shutdown timed out after %s: %w", timeout, err)
		}
		return fmt.Errorf("failed to stop: %w", err)
	}
	return nil
}

// plannedNames lists the modules a run is expected to start before the
// dependency graph has been resolved.
func plannedNames(manifest *config.Config, selected []string) []string {
	if len(selected) > 0 {
		return selected
	}
	names := make([]string, 0, len(manifest.Modules))
	for _, mc := range manifest.Modules {
		names = append(names, mc.Name)
	}
	return names
}

// selectModules returns the named modules, or every registered module.
func selectModules(app *application, names []string) (lifecycle.Source, error) {
	if len(names) == 0 {
		return app.registry, nil
	}
	ids := make([]module.ID, 0, len(names))
	for _, name := range names {
		id := module.ID(name)
		if !app.registry.Has(id) {
			return nil, fmt.Errorf("unknown module %q", name)
		}
		ids = append(ids, id)
	}
	return lifecycle.IDs(ids...), nil
}
