package app

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"zapretd/internal/infra/telemetry"
)

// LoggingConfig configures logging wiring.
type LoggingConfig struct {
	Level zapcore.Level
	// Logger replaces the built production logger, mostly for tests.
	Logger *zap.Logger
	// Source tags every entry with its origin (core, cli).
	Source string
}

// Logging bundles the logger and its adjustable level.
type Logging struct {
	Logger *zap.Logger
	Level  zap.AtomicLevel
}

// NewLogging constructs the process logger.
func NewLogging(cfg LoggingConfig) (Logging, error) {
	level := zap.NewAtomicLevelAt(cfg.Level)
	source := cfg.Source
	if source == "" {
		source = telemetry.LogSourceCore
	}

	if cfg.Logger != nil {
		return Logging{
			Logger: cfg.Logger.With(zap.String(telemetry.FieldLogSource, source)),
			Level:  level,
		}, nil
	}

	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.Sampling = nil
	logger, err := zc.Build()
	if err != nil {
		return Logging{}, fmt.Errorf("build logger: %w", err)
	}
	return Logging{
		Logger: logger.With(zap.String(telemetry.FieldLogSource, source)),
		Level:  level,
	}, nil
}
