package modules_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifetime-go/lifetime/pkg/config"
	"github.com/lifetime-go/lifetime/pkg/lifecycle"
	"github.com/lifetime-go/lifetime/pkg/logger"
	"github.com/lifetime-go/lifetime/pkg/module"
	"github.com/lifetime-go/lifetime/pkg/modules"
	"github.com/lifetime-go/lifetime/pkg/registry"
	"github.com/lifetime-go/lifetime/pkg/utils"
)

func TestScript_Delays(t *testing.T) {
	s := modules.NewScript("db", 20*time.Millisecond, 0, modules.FailNever, logger.Nop())

	begin := time.Now()
	require.NoError(t, s.Start(context.Background()))
	assert.GreaterOrEqual(t, time.Since(begin), 20*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}

func TestScript_ForcedFailures(t *testing.T) {
	tests := []struct {
		name      string
		fail      modules.FailMode
		startFail bool
		stopFail  bool
	}{
		{name: "never", fail: modules.FailNever},
		{name: "start", fail: modules.FailStart, startFail: true},
		{name: "stop", fail: modules.FailStop, stopFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := modules.NewScript("svc", 0, 0, tt.fail, nil)
			ctx := context.Background()

			err := s.Start(ctx)
			assert.Equal(t, tt.startFail, errors.Is(err, modules.ErrForcedFailure), "start: %v", err)
			err = s.Stop(ctx)
			assert.Equal(t, tt.stopFail, errors.Is(err, modules.ErrForcedFailure), "stop: %v", err)
		})
	}
}

func TestScript_HonorsCancellation(t *testing.T) {
	s := modules.NewScript("slow", time.Hour, 0, modules.FailNever, logger.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := s.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHeartbeat_Beats(t *testing.T) {
	h := modules.NewHeartbeat("pulse", 5*time.Millisecond, logger.Nop())

	require.NoError(t, h.Start(context.Background()))
	assert.True(t, h.IsRunning())
	require.Eventually(t, func() bool { return h.Beats() >= 2 }, time.Second, time.Millisecond)

	require.NoError(t, h.Stop(context.Background()))
	assert.False(t, h.IsRunning())

	after := h.Beats()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, h.Beats())
}

func TestWatch_ReportsChanges(t *testing.T) {
	dir := t.TempDir()
	w := modules.NewWatch("files", dir, logger.Nop())
	w.SetSettle(10 * time.Millisecond)

	var mu sync.Mutex
	var seen []modules.FileEvent
	w.OnChange(func(e modules.FileEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e)
	})

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	target := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(target, []byte("hi"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range seen {
			if e.Path == target {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, w.Changes(), int64(1))
}

func TestWatch_NewSubdirectoriesAreWatched(t *testing.T) {
	dir := t.TempDir()
	w := modules.NewWatch("files", dir, logger.Nop())
	w.SetSettle(10 * time.Millisecond)

	changed := make(chan string, 16)
	w.OnChange(func(e modules.FileEvent) { changed <- e.Path })

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the loop a moment to add the new directory.
	time.Sleep(50 * time.Millisecond)
	target := filepath.Join(sub, "deep.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case p := <-changed:
			if p == target {
				return
			}
		case <-deadline:
			t.Fatal("change in new subdirectory not reported")
		}
	}
}

func TestWatch_IgnoresMatchingPaths(t *testing.T) {
	dir := t.TempDir()
	w := modules.NewWatch("files", dir, logger.Nop())
	w.SetSettle(10 * time.Millisecond)
	ignore, err := utils.NewIgnoreMatcher([]string{"*.log"})
	require.NoError(t, err)
	w.SetIgnore(ignore)

	changed := make(chan string, 16)
	w.OnChange(func(e modules.FileEvent) { changed <- e.Path })

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	noisy := filepath.Join(dir, "server.log")
	require.NoError(t, os.WriteFile(noisy, []byte("x"), 0o644))
	target := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(target, []byte("package main"), 0o644))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case p := <-changed:
			require.NotEqual(t, noisy, p)
			if p == target {
				return
			}
		case <-deadline:
			t.Fatal("change to main.go not reported")
		}
	}
}

func TestWatch_MissingPathFailsStart(t *testing.T) {
	w := modules.NewWatch("files", filepath.Join(t.TempDir(), "absent"), logger.Nop())
	err := w.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, w.IsRunning())
}

func TestFactoryFor(t *testing.T) {
	tests := []struct {
		name    string
		mc      config.ModuleConfig
		want    interface{}
		wantErr bool
	}{
		{name: "default kind", mc: config.ModuleConfig{Name: "a"}, want: &modules.Script{}},
		{name: "heartbeat", mc: config.ModuleConfig{Name: "b", Kind: config.KindHeartbeat, Interval: "1s"}, want: &modules.Heartbeat{}},
		{name: "watch", mc: config.ModuleConfig{Name: "c", Kind: config.KindWatch, Path: "."}, want: &modules.Watch{}},
		{name: "heartbeat without interval", mc: config.ModuleConfig{Name: "d", Kind: config.KindHeartbeat}, wantErr: true},
		{name: "watch with bad ignore", mc: config.ModuleConfig{Name: "f", Kind: config.KindWatch, Path: ".", Ignore: []string{"[z-a]"}}, wantErr: true},
		{name: "watch without path", mc: config.ModuleConfig{Name: "e", Kind: config.KindWatch}, wantErr: true},
		{name: "unknown", mc: config.ModuleConfig{Name: "f", Kind: "daemon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, err := modules.FactoryFor(tt.mc, logger.Nop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			m, err := factory()
			require.NoError(t, err)
			assert.IsType(t, tt.want, m)

			// Every call yields a fresh instance.
			again, _ := factory()
			assert.NotSame(t, m, again)
		})
	}
}

func TestRegister_RunsManifest(t *testing.T) {
	cfg := &config.Config{
		Version: config.CurrentVersion,
		Modules: []config.ModuleConfig{
			{Name: "database", StartDelay: "5ms"},
			{Name: "cache", Requires: []string{"database"}},
			{Name: "api", Requires: []string{"database", "cache"}},
			{Name: "pulse", Kind: config.KindHeartbeat, Interval: "5ms", Requires: []string{"api"}},
		},
	}
	require.NoError(t, config.Validate(cfg))

	reg := registry.New()
	require.NoError(t, modules.Register(reg, cfg, logger.Nop()))
	assert.Equal(t, []module.ID{"api", "cache", "database", "pulse"}, reg.IDs())

	m := lifecycle.New(reg)
	ctx := context.Background()
	require.NoError(t, m.Start(ctx, lifecycle.IDs("pulse")))

	assert.Equal(t, []module.ID{"database", "cache", "api", "pulse"}, m.Order())
	pulse, ok := lifecycle.LookupAs[*modules.Heartbeat](m, "pulse")
	require.True(t, ok)
	assert.True(t, pulse.IsRunning())

	require.NoError(t, m.Shutdown(ctx))
	assert.False(t, pulse.IsRunning())

	// Registering the same manifest twice is a duplicate.
	assert.ErrorIs(t, modules.Register(reg, cfg, logger.Nop()), registry.ErrDuplicateRegistration)
}

func TestRegister_ForcedStartFailure(t *testing.T) {
	cfg := &config.Config{
		Version: config.CurrentVersion,
		Modules: []config.ModuleConfig{
			{Name: "database"},
			{Name: "api", Requires: []string{"database"}, Fail: "start"},
		},
	}
	reg := registry.New()
	require.NoError(t, modules.Register(reg, cfg, logger.Nop()))

	m := lifecycle.New(reg)
	err := m.Start(context.Background(), lifecycle.IDs("api"))
	require.Error(t, err)
	assert.ErrorIs(t, err, lifecycle.ErrActionFailure)
	assert.ErrorIs(t, err, modules.ErrForcedFailure)

	var actionErr *lifecycle.ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, module.ID("api"), actionErr.Module)
	assert.Equal(t, lifecycle.StateIdle, m.State())
}
