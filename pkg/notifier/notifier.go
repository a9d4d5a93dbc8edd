// Package notifier turns lifecycle events into desktop notifications
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/lifetime-go/lifetime/pkg/lifecycle"
	"github.com/lifetime-go/lifetime/pkg/logger"
)

// SendFunc delivers one notification
type SendFunc func(title, message string) error

// RunNotifier notifies on run transitions and logs module transitions
type RunNotifier struct {
	enabled bool
	title   string
	beep    bool
	send    SendFunc
	logger  logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled bool
	// Title prefixes every notification. Defaults to "lifetime".
	Title string
	// Beep plays a sound when a run fails.
	Beep bool
	// Send replaces the desktop notification backend.
	Send SendFunc
}

var _ lifecycle.Observer = (*RunNotifier)(nil)

// New creates a new run notifier
func New(config Config, log logger.Logger) *RunNotifier {
	if log == nil {
		log = logger.Nop()
	}
	send := config.Send
	if send == nil {
		send = func(title, message string) error {
			return beeep.Notify(title, message, "")
		}
	}
	title := config.Title
	if title == "" {
		title = "lifetime"
	}
	return &RunNotifier{
		enabled: config.Enabled,
		title:   title,
		beep:    config.Beep,
		send:    send,
		logger:  log.WithModule("notifier"),
	}
}

// Observe implements lifecycle.Observer
func (n *RunNotifier) Observe(e lifecycle.Event) {
	if !e.Kind.IsRun() {
		n.logModule(e)
		return
	}
	if !n.enabled {
		return
	}

	switch e.Kind {
	case lifecycle.EventRunStarted:
		n.notify("Started", fmt.Sprintf("all modules running after %s", formatDuration(e.Duration)))
	case lifecycle.EventRunStopped:
		n.notify("Stopped", fmt.Sprintf("all modules stopped after %s", formatDuration(e.Duration)))
	case lifecycle.EventRunFailed:
		n.notify("Failed", fmt.Sprintf("%s failed: %v", e.Phase, e.Err))
		if n.beep {
			if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
				n.logger.Debug("failed to play sound", logger.WithError(err))
			}
		}
	}
}

func (n *RunNotifier) logModule(e lifecycle.Event) {
	fields := []logger.Field{
		logger.WithField("id", e.Module),
		logger.WithField("run_id", e.RunID),
		logger.WithField("duration", formatDuration(e.Duration)),
	}
	if e.Err != nil {
		fields = append(fields, logger.WithError(e.Err))
	}
	n.logger.Debug(e.Kind.String(), fields...)
}

func (n *RunNotifier) notify(status, message string) {
	title := fmt.Sprintf("%s: %s", n.title, status)
	if err := n.send(title, message); err != nil {
		n.logger.Debug("failed to send notification", logger.WithError(err))
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
