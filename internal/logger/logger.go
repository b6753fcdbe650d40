// File: internal/logger/logger.go
// Package logger builds the process-wide zap logger.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once      sync.Once
	zapLogger *zap.Logger
)

// InitLogger returns the shared JSON logger, creating it on first use.
// The level comes from LOG_LEVEL.
func InitLogger() *zap.Logger {
	once.Do(func() {
		zapLogger = New(GetZapLevelFromEnv())
	})
	return zapLogger
}

// New builds a JSON logger writing to stdout at the given level.
func New(level zapcore.Level) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.LevelKey = "level"
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(os.Stdout),
		level,
	)
	return zap.New(core)
}

func GetZapLevelFromEnv() zapcore.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// ParseLevel maps a level name to a zap level; unknown names give info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SyncLogger flushes the shared logger if it was created.
func SyncLogger() {
	if zapLogger != nil {
		_ = zapLogger.Sync()
	}
}
