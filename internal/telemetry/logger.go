// Package telemetry provides structured logging shared by every component.
package telemetry

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is the log format (json, console).
	Format string
	// ServiceName is stamped on every log line.
	ServiceName string
	// Environment is development, staging, or production; "development"
	// turns on zap's development mode.
	Environment string
}

// DefaultConfig returns production-shaped defaults for serviceName.
func DefaultConfig(serviceName string) Config {
	return Config{
		Level:       "info",
		Format:      "json",
		ServiceName: serviceName,
		Environment: "production",
	}
}

// NewLogger builds a *zap.Logger scoped to cfg.
func NewLogger(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeDuration = zapcore.SecondsDurationEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Environment == "development",
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields: map[string]interface{}{
			"service":     cfg.ServiceName,
			"environment": cfg.Environment,
		},
	}

	return zapConfig.Build()
}
