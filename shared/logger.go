package shared

import (
	"go.uber.org/zap"
)

// LoggerConfig holds the configuration for the logger
type LoggerConfig struct {
	ServiceName string // e.g. "tlsd"
	Development bool   // true for console logging at debug level
}

// Logger wraps zap.Logger with connection-scoped helpers. The TLS engine
// itself never logs; everything here serves the host layers.
type Logger struct {
	*zap.Logger
	serviceName string
}

// NewLogger creates a new logger instance based on the configuration
func NewLogger(config LoggerConfig) (*Logger, error) {
	var zapLogger *zap.Logger
	var err error

	if config.Development {
		zapConfig := zap.NewDevelopmentConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		zapLogger, err = zapConfig.Build()
	} else {
		zapConfig := zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		zapLogger, err = zapConfig.Build()
	}
	if err != nil {
		return nil, err
	}

	zapLogger = zapLogger.With(zap.String("service", config.ServiceName))

	return &Logger{
		Logger:      zapLogger,
		serviceName: config.ServiceName,
	}, nil
}

// NewLoggerFromEnv creates a logger using environment variables
func NewLoggerFromEnv(serviceName string) (*Logger, error) {
	config := LoggerConfig{
		ServiceName: serviceName,
		Development: GetEnvOrDefault("DEVELOPMENT", "false") == "true",
	}
	return NewLogger(config)
}

// WithConnection scopes the logger to one connection
func (l *Logger) WithConnection(connID string) *zap.Logger {
	if connID == "" {
		return l.Logger
	}
	return l.Logger.With(zap.String("conn_id", connID))
}

// WithListener scopes the logger to one listener address
func (l *Logger) WithListener(addr string) *zap.Logger {
	return l.Logger.With(zap.String("listener", addr))
}

// Security logs security-relevant events (MAC failures, fatal alerts,
// handshake rejections) at warn level with a marker field.
func (l *Logger) Security(msg string, fields ...zap.Field) {
	l.Logger.Warn(msg, append(fields, zap.Bool("security_event", true))...)
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}
