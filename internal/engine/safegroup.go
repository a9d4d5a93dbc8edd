package engine

import (
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/lifetime-go/lifetime/pkg/logger"
)

// SafeGroup wraps errgroup.Group with panic recovery so that a panicking
// goroutine turns into an error instead of taking the process down.
type SafeGroup struct {
	group  *errgroup.Group
	logger logger.Logger
}

// NewSafeGroup creates a SafeGroup that never cancels its members. Wait
// still returns the first error, after every goroutine has returned.
func NewSafeGroup(log logger.Logger) *SafeGroup {
	return &SafeGroup{group: new(errgroup.Group), logger: orNop(log)}
}

// Go runs fn in a new goroutine with panic recovery.
func (sg *SafeGroup) Go(fn func() error) {
	sg.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = sg.recovered("goroutine", r)
			}
		}()
		return fn()
	})
}

// Wait blocks until all goroutines have completed and returns the first
// error encountered.
func (sg *SafeGroup) Wait() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = sg.recovered("wait", r)
		}
	}()
	return sg.group.Wait()
}

func (sg *SafeGroup) recovered(where string, r any) error {
	sg.logger.Error("Panic recovered",
		logger.WithField("where", where),
		logger.WithField("panic", r),
		logger.WithField("stack_trace", string(debug.Stack())))
	return &PanicError{Value: r}
}

// PanicError is a recovered panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

func orNop(log logger.Logger) logger.Logger {
	if log == nil {
		return logger.Nop()
	}
	return log
}
