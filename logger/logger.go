// Package logger holds the zap helpers shared by the SDK's components.
//
// The SDK never logs through a global logger. Callers hand a *zap.Logger to
// liminal.Config; each component derives a child with Scope.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Scope tags log entries with the component that produced them.
func Scope(name string) zap.Field {
	return zap.String("scope", name)
}

// Error attaches err under the "error" key.
func Error(err error) zap.Field {
	return zap.NamedError("error", err)
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Level parses LOG_LEVEL. Unknown or empty values yield info.
func Level() zapcore.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a logger for programs embedding the SDK. GO_ENV=development
// switches to the console encoder.
func New() *zap.Logger {
	var cfg zap.Config
	if os.Getenv("GO_ENV") == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(Level())

	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
