package logger

import (
	"testing"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := New(Options{Format: format, Level: "debug"})
		if err != nil {
			t.Fatalf("New(%s) returned error: %v", format, err)
		}
		l.Info("message", zap.String("k", "v"))
		_ = l.Sync()
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	if got := ParseLevel("WARN"); got != zapcore.WarnLevel {
		t.Errorf("expected warn, got %v", got)
	}
	if got := ParseLevel("invalid"); got != zapcore.InfoLevel {
		t.Errorf("expected info fallback, got %v", got)
	}
}

func TestAsynqLevel(t *testing.T) {
	if got := AsynqLevel("debug"); got != asynq.DebugLevel {
		t.Errorf("expected debug, got %v", got)
	}
	if got := AsynqLevel(""); got != asynq.InfoLevel {
		t.Errorf("expected info, got %v", got)
	}
}

func TestAsynqLogger_Forwards(t *testing.T) {
	core, observed := observer.New(zap.InfoLevel)
	al := NewAsynqLogger(zap.New(core))

	al.Debug("dropped")
	al.Warn("queue ", "jobs", " paused")

	records := observed.All()
	if len(records) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(records))
	}
	if records[0].Message != "queue jobs paused" {
		t.Errorf("unexpected message %q", records[0].Message)
	}
	if records[0].LoggerName != "asynq" {
		t.Errorf("expected logger name asynq, got %q", records[0].LoggerName)
	}
}

func TestFormatFor(t *testing.T) {
	if FormatFor("production") != "json" || FormatFor("development") != "console" {
		t.Error("unexpected format mapping")
	}
}
