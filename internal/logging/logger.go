package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "palm-check"

// NewLogger builds the process logger. Production output is JSON with ISO8601
// timestamps; debug switches to the coloured console encoder at debug level.
// Every entry carries the service name.
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.InitialFields = map[string]interface{}{"service": serviceName}
	return cfg.Build()
}

// WithOperation scopes logger to one operation, and to one analysis request
// when requestID is set.
func WithOperation(logger *zap.Logger, operation, requestID string) *zap.Logger {
	if requestID == "" {
		return logger.With(zap.String("operation", operation))
	}
	return logger.With(zap.String("operation", operation), zap.String("request_id", requestID))
}
