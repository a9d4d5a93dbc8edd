package logger

import (
	"context"
	"sort"

	lcontext "github.com/lifetime-go/lifetime/pkg/context"
)

// LoggerContext extends Logger with methods that pick run tracing fields
// out of a context.
type LoggerContext interface {
	Logger
	InfoContext(ctx context.Context, message string, fields ...Field)
	ErrorContext(ctx context.Context, message string, fields ...Field)
	WarnContext(ctx context.Context, message string, fields ...Field)
	DebugContext(ctx context.Context, message string, fields ...Field)
}

var _ LoggerContext = (*ModuleLogger)(nil)

// InfoContext logs an info message with context tracing
func (l *ModuleLogger) InfoContext(ctx context.Context, message string, fields ...Field) {
	l.Info(message, append(contextFields(ctx), fields...)...)
}

// ErrorContext logs an error message with context tracing
func (l *ModuleLogger) ErrorContext(ctx context.Context, message string, fields ...Field) {
	l.Error(message, append(contextFields(ctx), fields...)...)
}

// WarnContext logs a warning message with context tracing
func (l *ModuleLogger) WarnContext(ctx context.Context, message string, fields ...Field) {
	l.Warn(message, append(contextFields(ctx), fields...)...)
}

// DebugContext logs a debug message with context tracing
func (l *ModuleLogger) DebugContext(ctx context.Context, message string, fields ...Field) {
	l.Debug(message, append(contextFields(ctx), fields...)...)
}

func contextFields(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}

	tracing := lcontext.TracingFields(ctx)
	keys := make([]string, 0, len(tracing))
	for k := range tracing {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// A module set on ctx becomes the logger's module prefix.
	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, WithField(k, tracing[k]))
	}
	return fields
}

// WithContext creates a logger that automatically includes context fields
func WithContext(ctx context.Context, logger Logger) Logger {
	if ctx == nil {
		return logger
	}
	return &contextualLogger{ctx: ctx, logger: logger}
}

type contextualLogger struct {
	ctx    context.Context
	logger Logger
}

func (cl *contextualLogger) Info(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.InfoContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Info(message, fields...)
}

func (cl *contextualLogger) Error(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.ErrorContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Error(message, fields...)
}

func (cl *contextualLogger) Warn(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.WarnContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Warn(message, fields...)
}

func (cl *contextualLogger) Debug(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.DebugContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Debug(message, fields...)
}

func (cl *contextualLogger) Success(message string, fields ...Field) {
	cl.logger.Success(message, append(contextFields(cl.ctx), fields...)...)
}

func (cl *contextualLogger) WithModule(name string) Logger {
	return &contextualLogger{
		ctx:    cl.ctx,
		logger: cl.logger.WithModule(name),
	}
}
