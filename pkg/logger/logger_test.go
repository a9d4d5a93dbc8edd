package logger_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	lcontext "github.com/lifetime-go/lifetime/pkg/context"
	"github.com/lifetime-go/lifetime/pkg/logger"
)

func TestCreateLogger(t *testing.T) {
	log := logger.CreateLogger("", "info")
	if log == nil {
		t.Fatal("expected logger to be created")
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warn", false, false, true},
		{"error", false, false, false},
		{"bogus", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.CreateLoggerWithOutput(tt.level, &buf)

			log.Debug("debug-line")
			log.Info("info-line")
			log.Warn("warn-line")
			log.Error("error-line")

			output := buf.String()
			if got := strings.Contains(output, "debug-line"); got != tt.wantDebug {
				t.Errorf("debug output = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(output, "info-line"); got != tt.wantInfo {
				t.Errorf("info output = %v, want %v", got, tt.wantInfo)
			}
			if got := strings.Contains(output, "warn-line"); got != tt.wantWarn {
				t.Errorf("warn output = %v, want %v", got, tt.wantWarn)
			}
			if !strings.Contains(output, "error-line") {
				t.Error("error output should always appear")
			}
		})
	}
}

func TestLogger_WithModule(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.WithModule("database").Info("starting")
	log.WithModule("cache").Info("starting")

	output := buf.String()
	if !strings.Contains(output, "[database] starting") {
		t.Errorf("expected database prefix, got %q", output)
	}
	if !strings.Contains(output, "[cache] starting") {
		t.Errorf("expected cache prefix, got %q", output)
	}
}

func TestLogger_FieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Info("msg",
		logger.WithField("zeta", 1),
		logger.WithField("alpha", "a"),
		logger.WithError(errors.New("boom")),
		logger.WithError(nil),
	)

	output := buf.String()
	if !strings.Contains(output, "{alpha=a, error=boom, zeta=1}") {
		t.Errorf("unexpected fields rendering: %q", output)
	}
}

func TestLogger_Success(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Success("all modules running")

	if !strings.Contains(buf.String(), "all modules running") {
		t.Error("expected success message in log output")
	}
}

func TestNop(t *testing.T) {
	log := logger.Nop()
	log.Error("dropped")
	log.WithModule("x").Info("dropped")
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	base := logger.CreateLoggerWithOutput("info", &buf)

	ctx := lcontext.WithRunID(context.Background(), "run_42")
	ctx = lcontext.WithOperation(ctx, "start")
	ctx = lcontext.WithStartTime(ctx, time.Now().Add(-time.Second))

	logger.WithContext(ctx, base).WithModule("api").Info("started")

	output := buf.String()
	for _, want := range []string{"[api] started", "run_id=run_42", "operation=start", "duration_ms="} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in %q", want, output)
		}
	}
}

func TestWithContext_CorrelationAndModule(t *testing.T) {
	var buf bytes.Buffer
	base := logger.CreateLoggerWithOutput("info", &buf)

	ctx := lcontext.WithCorrelationID(context.Background(), "cor_9")
	ctx = lcontext.EnrichContext(ctx, "run_9", "shutdown")
	ctx = lcontext.WithModule(ctx, "cache")

	logger.WithContext(ctx, base).Info("stopping")

	output := buf.String()
	for _, want := range []string{"[cache] stopping", "run_id=run_9", "correlation_id=cor_9", "operation=shutdown"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in %q", want, output)
		}
	}
}

func TestConsole(t *testing.T) {
	var out, errOut bytes.Buffer
	c := logger.NewConsole(&out, &errOut)

	c.Info("info")
	c.Success("done")
	c.Error("failed")

	if !strings.Contains(out.String(), "info") || !strings.Contains(out.String(), "done") {
		t.Errorf("unexpected stdout %q", out.String())
	}
	if !strings.Contains(errOut.String(), "failed") {
		t.Errorf("unexpected stderr %q", errOut.String())
	}
}
