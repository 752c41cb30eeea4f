package telemetry

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process logger. Level accepts the usual zap names
// ("debug", "info", "warn", "error"); encoding is "json" for machines or
// "console" for humans.
func NewLogger(level, encoding string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	if encoding != "" {
		cfg.Encoding = encoding
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
