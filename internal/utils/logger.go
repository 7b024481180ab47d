// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the application-wide structured logger. Fields are passed as a
// map so call sites stay short; they are emitted as zap fields.
type Logger struct {
	mu    sync.RWMutex
	zl    *zap.Logger
	level zap.AtomicLevel
	file  *os.File
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
		globalLogger = &Logger{
			zl:    newZap(level, zapcore.AddSync(os.Stdout)),
			level: level,
		}
	})
	return globalLogger
}

// NewLogger builds a standalone logger writing to sink. Tests use it to
// capture output.
func NewLogger(sink zapcore.WriteSyncer, level string) *Logger {
	atomic := zap.NewAtomicLevel()
	if err := atomic.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		atomic.SetLevel(zapcore.InfoLevel)
	}
	return &Logger{
		zl:    newZap(atomic, sink),
		level: atomic,
	}
}

func newZap(level zap.AtomicLevel, sink zapcore.WriteSyncer) *zap.Logger {
	encoderCfg := zapcore.EncoderConfig{
		MessageKey:   "message",
		TimeKey:      "timestamp",
		LevelKey:     "level",
		CallerKey:    "caller",
		EncodeTime:   zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, level)
	// skip the Logger wrapper frames so caller points at the call site
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
}

// InitLogger configures the global logger: level from levelName and, when
// logFile is set, an additional append-only file sink.
func InitLogger(levelName, logFile string) error {
	logger := GetLogger()

	if err := logger.level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(levelName)))); err != nil {
		logger.level.SetLevel(zapcore.InfoLevel)
	}

	if logFile == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	// Close previous file if exists
	if logger.file != nil {
		logger.file.Close()
	}

	logger.file = file
	logger.zl = newZap(logger.level, zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), zapcore.AddSync(file)))
	return nil
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zl.Sync()
}

func (l *Logger) log(level zapcore.Level, message string, fields map[string]interface{}) {
	l.mu.RLock()
	zl := l.zl
	l.mu.RUnlock()

	ce := zl.Check(level, message)
	if ce == nil {
		return
	}

	zfields := make([]zap.Field, 0, len(fields))
	for key, value := range fields {
		zfields = append(zfields, zap.Any(key, value))
	}
	ce.Write(zfields...)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(zapcore.DebugLevel, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(zapcore.InfoLevel, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(zapcore.WarnLevel, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(zapcore.ErrorLevel, message, fields)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(zapcore.InfoLevel, fmt.Sprintf(format, args...), nil)
}
