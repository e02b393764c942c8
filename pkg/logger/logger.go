package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Static errors for err113 compliance.
var (
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// DefaultFileMode is used when logging to a file.
const DefaultFileMode = 0o600

// Logger is the logging interface shared by every package.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	// Structured variants take alternating key/value pairs.
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})

	SetLevel(level string) error
	GetLevel() string

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	Named(name string) Logger
}

// Implementation is the zap backed Logger.
type Implementation struct {
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	level  zap.AtomicLevel
}

var globalLogger Logger //nolint:gochecknoglobals // package-level logging

func init() { //nolint:gochecknoinits // default global logger
	globalLogger, _ = New(Config{
		Level:  "info",
		Format: "console",
	})
}

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string // stdout, stderr, or file path
	CallerSkip int
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("%w: %s", ErrInvalidLogLevel, level)
	}
}

// New creates a new logger instance. Unknown levels fall back to info.
func New(config Config) (Logger, error) {
	lvl, _ := parseLevel(config.Level)
	atomic := zap.NewAtomicLevelAt(lvl)

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if config.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var writer zapcore.WriteSyncer

	switch config.OutputPath {
	case "", "stdout":
		writer = zapcore.AddSync(os.Stdout)
	case "stderr":
		writer = zapcore.AddSync(os.Stderr)
	default:
		file, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, DefaultFileMode)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		writer = zapcore.AddSync(file)
	}

	callerSkip := config.CallerSkip
	if callerSkip == 0 {
		callerSkip = 1
	}

	logger := zap.New(zapcore.NewCore(encoder, writer, atomic), zap.AddCaller(), zap.AddCallerSkip(callerSkip))

	return &Implementation{
		logger: logger,
		sugar:  logger.Sugar(),
		level:  atomic,
	}, nil
}

// Get returns the global logger.
func Get() Logger {
	return globalLogger
}

// Set replaces the global logger.
func Set(logger Logger) {
	globalLogger = logger
}

// Configure rebuilds the global logger from config.
func Configure(config Config) error {
	logger, err := New(config)
	if err != nil {
		return err
	}

	globalLogger = logger

	return nil
}

func (l *Implementation) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *Implementation) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *Implementation) Warnf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *Implementation) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

func (l *Implementation) Fatalf(format string, args ...interface{}) {
	l.sugar.Fatalf(format, args...)
}

func (l *Implementation) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Implementation) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Implementation) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Implementation) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// SetLevel changes the level of this logger and every logger derived from it.
func (l *Implementation) SetLevel(level string) error {
	lvl, err := parseLevel(level)
	if err != nil || level == "" {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, level)
	}

	l.level.SetLevel(lvl)

	return nil
}

func (l *Implementation) GetLevel() string {
	return l.level.Level().String()
}

func (l *Implementation) derive(logger *zap.Logger) *Implementation {
	return &Implementation{
		logger: logger,
		sugar:  logger.Sugar(),
		level:  l.level,
	}
}

func (l *Implementation) WithField(key string, value interface{}) Logger {
	return l.derive(l.logger.With(zap.Any(key, value)))
}

func (l *Implementation) WithFields(fields map[string]interface{}) Logger {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}

	return l.derive(l.logger.With(zapFields...))
}

func (l *Implementation) Named(name string) Logger {
	return l.derive(l.logger.Named(name))
}

// Sync flushes buffered entries.
func (l *Implementation) Sync() error {
	err := l.logger.Sync()
	if err != nil {
		return fmt.Errorf("failed to sync logger: %w", err)
	}

	return nil
}

func Debugf(format string, args ...interface{}) {
	globalLogger.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	globalLogger.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	globalLogger.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	globalLogger.Errorf(format, args...)
}
