package observability

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/upb/ragqa/config"
)

// Field represents a structured log field.
type Field = zap.Field

// NewLogger builds a zap logger. LogFormat "json" (the default) selects the
// production encoder; "console" or "text" selects the development one.
// LogOutput, when set, replaces the default output path.
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	levelName := cfg.LogLevel
	if levelName == "" {
		levelName = "info"
	}
	level, err := zapcore.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zc zap.Config
	switch strings.ToLower(cfg.LogFormat) {
	case "console", "text":
		zc = zap.NewDevelopmentConfig()
	default:
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.LogOutput != "" {
		zc.OutputPaths = []string{cfg.LogOutput}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// WithRequestID returns logger annotated with the chi request ID in ctx, if any.
func WithRequestID(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if id := middleware.GetReqID(ctx); id != "" {
		return logger.With(zap.String("request_id", id))
	}
	return logger
}
