// Package logger provides the shared zap logger used across the engine.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig contains the configuration for creating a logger.
type LoggerConfig struct {
	// Debug enables debug-level logging and development-friendly output
	Debug bool
}

// NewLogger creates a new zap logger with the provided configuration.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	c := zap.NewProductionConfig()
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Debug {
		c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		c.Development = true
	}
	return c.Build()
}

// NewNoopLogger returns a logger that discards everything. Used in tests
// that do not care about log output.
func NewNoopLogger() *zap.Logger {
	return zap.NewNop()
}
