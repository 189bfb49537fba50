// Package logging is the engine's structured logging facade. Call sites log
// through the Logger interface with typed Fields; zap is the only backend.
// Request-scoped identity travels in the request context under the keys
// defined here and is attached to log lines by WithContext.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"
)

type contextKey string

// Context keys shared between the HTTP middleware, the auth layer and the
// loggers.
const (
	// RequestIDKey carries the per-request correlation id
	RequestIDKey contextKey = "request_id"
	// CallerIDKey carries the authenticated caller identity
	CallerIDKey contextKey = "caller_id"
)

// Field is one structured key-value pair on a log line.
type Field struct {
	Key   string
	Value interface{}
}

// Logger is the logging surface the rest of the engine depends on.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// LogLevel orders message severities.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the level's name.
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel reads a level name case-insensitively. Unknown names fall back
// to InfoLevel rather than failing, so a typo in LOG_LEVEL never blocks
// startup.
func ParseLevel(levelStr string) LogLevel {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// LogConfig holds the adapter construction knobs.
type LogConfig struct {
	Level      LogLevel
	Output     io.Writer // nil means stdout
	TimeFormat string
	Prefix     string
}

// DefaultLogConfig builds a config from the LOG_LEVEL environment variable.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      ParseLevel(os.Getenv("LOG_LEVEL")),
		TimeFormat: time.RFC3339,
	}
}
