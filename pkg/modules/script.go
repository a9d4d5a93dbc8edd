// Package modules provides the built-in module kinds a manifest can declare.
package modules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lifetime-go/lifetime/pkg/logger"
	"github.com/lifetime-go/lifetime/pkg/module"
)

// ErrForcedFailure is returned by a module configured to fail.
var ErrForcedFailure = errors.New("forced failure")

// FailMode selects the action a Script fails on.
type FailMode string

const (
	FailNever FailMode = ""
	FailStart FailMode = "start"
	FailStop  FailMode = "stop"
)

// Script is a module that simulates work: it sleeps for the configured
// delays and can be told to fail one of its actions.
type Script struct {
	module.Base
	id         module.ID
	startDelay time.Duration
	stopDelay  time.Duration
	fail       FailMode
	logger     logger.Logger
}

// NewScript creates a script module
func NewScript(id module.ID, startDelay, stopDelay time.Duration, fail FailMode, log logger.Logger, requires ...module.ID) *Script {
	if log == nil {
		log = logger.Nop()
	}
	s := &Script{
		id:         id,
		startDelay: startDelay,
		stopDelay:  stopDelay,
		fail:       fail,
		logger:     log.WithModule(id.String()),
	}
	s.Requires(requires...)
	return s
}

// ID returns the module identity
func (s *Script) ID() module.ID { return s.id }

func (s *Script) Start(ctx context.Context) error {
	s.logger.Debug("starting", logger.WithField("delay", s.startDelay))
	if err := sleep(ctx, s.startDelay); err != nil {
		return err
	}
	if s.fail == FailStart {
		return fmt.Errorf("%s: %w", s.id, ErrForcedFailure)
	}
	s.logger.Success("started")
	return nil
}

func (s *Script) Stop(ctx context.Context) error {
	s.logger.Debug("stopping", logger.WithField("delay", s.stopDelay))
	if err := sleep(ctx, s.stopDelay); err != nil {
		return err
	}
	if s.fail == FailStop {
		return fmt.Errorf("%s: %w", s.id, ErrForcedFailure)
	}
	s.logger.Info("stopped")
	return nil
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
