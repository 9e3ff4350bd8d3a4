package logger

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity of a log message
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// Logger is the main logger interface
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithPrefix(prefix string) Logger
}

// Config holds logger configuration
type Config struct {
	Level    Level
	Writer   io.Writer
	NoColor  bool
	ShowTime bool
}

// logger implements Logger on top of a zap sugared logger. All loggers derived
// from the same root share one atomic level.
type logger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

var (
	mu            sync.RWMutex
	defaultConfig = Config{Level: InfoLevel, Writer: os.Stdout, ShowTime: true}
	defaultLogger = NewWithConfig(defaultConfig)
)

// New creates a new logger with default configuration
func New() Logger {
	return NewWithConfig(Config{
		Level:    InfoLevel,
		Writer:   os.Stdout,
		NoColor:  false,
		ShowTime: true,
	})
}

// NewWithConfig creates a new logger with custom configuration
func NewWithConfig(cfg Config) Logger {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	level := zap.NewAtomicLevelAt(cfg.Level.zapLevel())

	encCfg := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		NameKey:          "logger",
		EncodeLevel:      zapcore.CapitalColorLevelEncoder,
		EncodeName:       encodeName,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	if cfg.NoColor {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	if cfg.ShowTime {
		encCfg.TimeKey = "time"
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(cfg.Writer), level)
	return &logger{
		sugar: zap.New(core).Sugar(),
		level: level,
	}
}

func encodeName(name string, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + name + "]")
}

func (lv Level) zapLevel() zapcore.Level {
	switch lv {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func current() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// SetLevel sets the global log level
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	defaultConfig.Level = level
	if l, ok := defaultLogger.(*logger); ok {
		l.level.SetLevel(level.zapLevel())
	}
}

// SetNoColor disables color output
func SetNoColor(noColor bool) {
	mu.Lock()
	defer mu.Unlock()
	defaultConfig.NoColor = noColor
	defaultLogger = NewWithConfig(defaultConfig)
	setHelperColor(!noColor)
}

// SetOutput redirects the default logger
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	defaultConfig.Writer = w
	defaultLogger = NewWithConfig(defaultConfig)
}

// Sync flushes any buffered log entries
func Sync() {
	if l, ok := current().(*logger); ok {
		_ = l.sugar.Sync()
	}
}

// Helper methods for the default logger
func Debug(args ...interface{})                       { current().Debug(args...) }
func Debugf(format string, args ...interface{})       { current().Debugf(format, args...) }
func Info(args ...interface{})                        { current().Info(args...) }
func Infof(format string, args ...interface{})        { current().Infof(format, args...) }
func Warn(args ...interface{})                        { current().Warn(args...) }
func Warnf(format string, args ...interface{})        { current().Warnf(format, args...) }
func Error(args ...interface{})                       { current().Error(args...) }
func Errorf(format string, args ...interface{})       { current().Errorf(format, args...) }
func Fatal(args ...interface{})                       { current().Fatal(args...) }
func Fatalf(format string, args ...interface{})       { current().Fatalf(format, args...) }
func WithField(key string, value interface{}) Logger  { return current().WithField(key, value) }
func WithFields(fields map[string]interface{}) Logger { return current().WithFields(fields) }
func WithPrefix(prefix string) Logger                 { return current().WithPrefix(prefix) }

func (l *logger) Debug(args ...interface{})                 { l.sugar.Debug(args...) }
func (l *logger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *logger) Info(args ...interface{})                  { l.sugar.Info(args...) }
func (l *logger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *logger) Warn(args ...interface{})                  { l.sugar.Warn(args...) }
func (l *logger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *logger) Error(args ...interface{})                 { l.sugar.Error(args...) }
func (l *logger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *logger) Fatal(args ...interface{})                 { l.sugar.Fatal(args...) }
func (l *logger) Fatalf(format string, args ...interface{}) { l.sugar.Fatalf(format, args...) }

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{sugar: l.sugar.With(key, value), level: l.level}
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}
	return &logger{sugar: l.sugar.With(kv...), level: l.level}
}

// WithPrefix names the logger; nested prefixes are joined with a dot.
func (l *logger) WithPrefix(prefix string) Logger {
	return &logger{sugar: l.sugar.Named(prefix), level: l.level}
}

// ParseLevel parses a string log level
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}
