// Package logging builds the zap loggers used across browserprofiles.
// Every subsystem logs through a named child of the root logger so that
// launch, mutation and watcher output can be filtered independently.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // CLI startup, config loading
	CategoryResolve   Category = "resolve"   // Profile record -> LaunchSpec
	CategoryLaunch    Category = "launch"    // Browser process lifecycle
	CategoryProvision Category = "provision" // Executable resolution and download
	CategoryMutation  Category = "mutation"  // Per-page identity mutators
	CategoryWatcher   Category = "watcher"   // Page lifecycle observation
	CategoryTelemetry Category = "telemetry" // Outcome journal
)

// Options configures the root logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// New builds a root logger. It mirrors zap.NewProductionConfig, switching
// the encoder to console output when requested.
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = level > zapcore.DebugLevel

	switch strings.ToLower(opts.Format) {
	case "", "json":
	case "console", "text":
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// ParseLevel maps a config level string onto a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Get returns the child logger for a category. A nil parent yields a no-op
// logger so components can be constructed without wiring logging first.
func Get(parent *zap.Logger, category Category) *zap.Logger {
	if parent == nil {
		return zap.NewNop()
	}
	return parent.Named(string(category))
}
