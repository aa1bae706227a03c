// Package logger builds the zap loggers shared by the HTTP server, the
// orchestrator and the asynq worker.
package logger

import (
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures logger construction.
type Options struct {
	Format string // "json" or "console"
	Level  string
}

// FormatFor picks the output format for a server environment.
func FormatFor(env string) string {
	if strings.EqualFold(env, "production") {
		return "json"
	}
	return "console"
}

// New returns a zap logger for opts. Unknown levels fall back to info.
func New(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(ParseLevel(opts.Level))

	var cfg zap.Config
	switch strings.ToLower(opts.Format) {
	case "json", "":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unsupported log format %q", opts.Format)
	}
	cfg.Level = level
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(name string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(name)))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// AsynqLevel maps a level name to the asynq server log level.
func AsynqLevel(name string) asynq.LogLevel {
	switch ParseLevel(name) {
	case zapcore.DebugLevel:
		return asynq.DebugLevel
	case zapcore.WarnLevel:
		return asynq.WarnLevel
	case zapcore.ErrorLevel:
		return asynq.ErrorLevel
	case zapcore.FatalLevel, zapcore.PanicLevel, zapcore.DPanicLevel:
		return asynq.FatalLevel
	}
	return asynq.InfoLevel
}

// AsynqLogger adapts a zap logger to asynq.Logger.
type AsynqLogger struct {
	s *zap.SugaredLogger
}

var _ asynq.Logger = (*AsynqLogger)(nil)

// NewAsynqLogger wraps l for use in asynq.Config.Logger.
func NewAsynqLogger(l *zap.Logger) *AsynqLogger {
	return &AsynqLogger{s: l.Named("asynq").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *AsynqLogger) Debug(args ...interface{}) { l.s.Debug(args...) }
func (l *AsynqLogger) Info(args ...interface{})  { l.s.Info(args...) }
func (l *AsynqLogger) Warn(args ...interface{})  { l.s.Warn(args...) }
func (l *AsynqLogger) Error(args ...interface{}) { l.s.Error(args...) }
func (l *AsynqLogger) Fatal(args ...interface{}) { l.s.Fatal(args...) }
