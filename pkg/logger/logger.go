// Package logger provides structured logging with per-module scoping
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger interface for abstracted logging
type Logger interface {
	Info(message string, fields ...Field)
	Error(message string, fields ...Field)
	Warn(message string, fields ...Field)
	Debug(message string, fields ...Field)
	Success(message string, fields ...Field)
	WithModule(name string) Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// WithField creates a new field
func WithField(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// WithError creates an "error" field. A nil error yields an empty field
// that is dropped when logged.
func WithError(err error) Field {
	if err == nil {
		return Field{}
	}
	return Field{Key: "error", Value: err.Error()}
}

// ModuleLogger implements Logger on top of logrus, tagging entries with the
// module they belong to.
type ModuleLogger struct {
	logger     *logrus.Logger
	moduleName string
	mu         sync.RWMutex
}

// CustomFormatter renders entries as a single colored console line
type CustomFormatter struct {
	TimestampFormat string
	DisableColors   bool
}

// Format implements logrus.Formatter
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)

	var levelColor *color.Color
	var levelText string

	switch entry.Level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		levelColor = color.New(color.FgRed, color.Bold)
		levelText = "ERROR"
	case logrus.WarnLevel:
		levelColor = color.New(color.FgYellow, color.Bold)
		levelText = "WARN"
	case logrus.InfoLevel:
		levelColor = color.New(color.FgCyan)
		levelText = "INFO"
	default:
		levelColor = color.New(color.FgWhite, color.Faint)
		levelText = "DEBUG"
	}

	data := make(logrus.Fields, len(entry.Data))
	for k, v := range entry.Data {
		data[k] = v
	}

	modulePrefix := ""
	if name, ok := data["module"]; ok {
		if f.DisableColors {
			modulePrefix = fmt.Sprintf("[%v] ", name)
		} else {
			modulePrefix = fmt.Sprintf("[%s] ", color.New(color.FgBlue).Sprint(name))
		}
		delete(data, "module")
	}

	level := levelText
	if !f.DisableColors {
		level = levelColor.Sprint(levelText)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s%s", timestamp, level, modulePrefix, entry.Message)

	// Sorted so that lines are stable across runs
	if len(data) > 0 {
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
		}
		fields := " {" + strings.Join(parts, ", ") + "}"
		if f.DisableColors {
			b.WriteString(fields)
		} else {
			b.WriteString(color.New(color.FgWhite, color.Faint).Sprint(fields))
		}
	}

	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// ParseLevel parses a level name, falling back to info.
func ParseLevel(logLevel string) logrus.Level {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// CreateLogger creates a console logger, optionally mirrored to logFile
func CreateLogger(logFile string, logLevel string) Logger {
	log := logrus.New()
	log.SetLevel(ParseLevel(logLevel))
	log.SetFormatter(&CustomFormatter{
		TimestampFormat: "15:04:05",
	})

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			log.SetOutput(io.MultiWriter(os.Stderr, file))
		}
	} else {
		log.SetOutput(os.Stderr)
	}

	return &ModuleLogger{logger: log}
}

// CreateLoggerWithOutput creates a logger with custom output (for testing)
func CreateLoggerWithOutput(logLevel string, output io.Writer) Logger {
	log := logrus.New()
	log.SetLevel(ParseLevel(logLevel))
	log.SetFormatter(&CustomFormatter{
		TimestampFormat: "15:04:05",
		DisableColors:   true,
	})
	log.SetOutput(output)

	return &ModuleLogger{logger: log}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return &ModuleLogger{logger: log}
}

// WithModule creates a new logger scoped to a module
func (l *ModuleLogger) WithModule(name string) Logger {
	return &ModuleLogger{
		logger:     l.logger,
		moduleName: name,
	}
}

// SetLevel changes the level of the underlying logrus logger, which is
// shared by every scoped logger derived from l.
func (l *ModuleLogger) SetLevel(logLevel string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.SetLevel(ParseLevel(logLevel))
}

func (l *ModuleLogger) convertFields(fields []Field) logrus.Fields {
	result := make(logrus.Fields, len(fields)+1)
	if l.moduleName != "" {
		result["module"] = l.moduleName
	}
	for _, f := range fields {
		if f.Key == "" {
			continue
		}
		result[f.Key] = f.Value
	}
	return result
}

// Info logs an info message
func (l *ModuleLogger) Info(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Info(message)
}

// Error logs an error message
func (l *ModuleLogger) Error(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Error(message)
}

// Warn logs a warning message
func (l *ModuleLogger) Warn(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Warn(message)
}

// Debug logs a debug message
func (l *ModuleLogger) Debug(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Debug(message)
}

// Success logs a success message at info level
func (l *ModuleLogger) Success(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Info("✔ " + message)
}

// Console prints human-facing CLI output, separate from the log stream
type Console struct {
	out io.Writer
	err io.Writer
}

// NewConsole creates a console writing to out and err
func NewConsole(out, err io.Writer) *Console {
	return &Console{out: out, err: err}
}

// Info prints info message
func (c *Console) Info(message string) {
	fmt.Fprintf(c.out, "%s %s\n", color.CyanString("[lifetime]"), message)
}

// Error prints error message
func (c *Console) Error(message string) {
	fmt.Fprintf(c.err, "%s %s\n", color.RedString("[lifetime]"), message)
}

// Warn prints warning message
func (c *Console) Warn(message string) {
	fmt.Fprintf(c.out, "%s %s\n", color.YellowString("[lifetime]"), message)
}

// Success prints success message
func (c *Console) Success(message string) {
	fmt.Fprintf(c.out, "%s ✔ %s\n", color.GreenString("[lifetime]"), message)
}
