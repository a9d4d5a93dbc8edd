package modules

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lifetime-go/lifetime/pkg/logger"
	"github.com/lifetime-go/lifetime/pkg/module"
)

// Heartbeat logs a beat at a fixed interval for as long as it runs
type Heartbeat struct {
	*module.Lifetime
	id       module.ID
	interval time.Duration
	beats    atomic.Int64
	logger   logger.Logger
}

// NewHeartbeat creates a heartbeat module. interval must be positive.
func NewHeartbeat(id module.ID, interval time.Duration, log logger.Logger, requires ...module.ID) *Heartbeat {
	if log == nil {
		log = logger.Nop()
	}
	h := &Heartbeat{
		id:       id,
		interval: interval,
		logger:   log.WithModule(id.String()),
	}
	h.Lifetime = module.NewLifetime(h.run, requires...)
	return h
}

// ID returns the module identity
func (h *Heartbeat) ID() module.ID { return h.id }

// Beats returns how many beats have been logged
func (h *Heartbeat) Beats() int64 {
	return h.beats.Load()
}

func (h *Heartbeat) run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	started := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n := h.beats.Add(1)
			h.logger.Debug("beat",
				logger.WithField("count", n),
				logger.WithField("uptime", time.Since(started).Round(time.Millisecond)))
		}
	}
}
