package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rxtech-lab/argo-fleet/internal/types"
)

// Logger wraps the zap logger with additional functionality
type Logger struct {
	*zap.Logger
}

// NewLogger creates a new logger instance with production configuration
func NewLogger() (*Logger, error) {
	return NewLoggerWithLevel("info")
}

// NewLoggerWithLevel creates a production logger at the given level name (debug, info, warn, error).
func NewLoggerWithLevel(level string) (*Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, err
		}
	}

	config.Level = zap.NewAtomicLevelAt(lvl)

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{
		Logger: zapLogger,
	}, nil
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// ForWorker returns a child logger for one worker. Every entry is written to the
// parent core and also appended to tail, so a worker's recent log lines can be
// served from its runtime snapshot.
func (l *Logger) ForWorker(key types.WorkerKey, tail *LogTail) *Logger {
	base := l.Logger
	if base == nil {
		base = zap.NewNop()
	}

	child := base
	if tail != nil {
		child = child.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, newTailCore(tail, zapcore.InfoLevel))
		}))
	}

	// fields are added after the tee so both cores carry the worker key
	child = child.With(
		zap.String("tenant", key.TenantID),
		zap.String("config_id", key.ConfigID),
	)

	return &Logger{Logger: child}
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	if l.Logger != nil {
		return l.Logger.Sync()
	}

	return nil
}
