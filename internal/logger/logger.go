// Package logger builds the zap logger shared by the server, the queue
// consumer and the scheduler.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON production logger for env "prod"/"production" and a
// colored development logger otherwise.
func New(env string) (*zap.Logger, error) {
	switch env {
	case "prod", "production":
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	default:
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
}

// Must is New that falls back to a no-op logger instead of failing.
func Must(env string) *zap.Logger {
	l, err := New(env)
	if err != nil {
		return zap.NewNop()
	}
	return l
}
