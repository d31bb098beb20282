package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is one of debug, info, warn, error.
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// LogFormat selects the encoder.
type LogFormat string

const (
	JSONFormat LogFormat = "json"
	TextFormat LogFormat = "text"
)

// Config holds configuration for the logger
type Config struct {
	Level  LogLevel
	Format LogFormat
	// Service, when set, is attached to every entry as "service".
	Service string
	// Output defaults to stderr so command output on stdout stays clean.
	Output io.Writer
}

// ZapLogger implements Logger on a zap SugaredLogger.
type ZapLogger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// NewZapLogger builds a logger from cfg. An empty level means info and an
// empty format means JSON.
func NewZapLogger(cfg Config) (*ZapLogger, error) {
	level := zap.NewAtomicLevel()
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(string(cfg.Level)))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	var enc zapcore.Encoder
	switch LogFormat(strings.ToLower(string(cfg.Format))) {
	case "", JSONFormat:
		enc = zapcore.NewJSONEncoder(encCfg)
	case TextFormat:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	base := zap.New(zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), level),
		zap.AddCaller(), zap.AddCallerSkip(1))
	if cfg.Service != "" {
		base = base.With(zap.String("service", cfg.Service))
	}
	return &ZapLogger{base: base, sugar: base.Sugar(), level: level}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *ZapLogger {
	base := zap.NewNop()
	return &ZapLogger{base: base, sugar: base.Sugar(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

func (l *ZapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

func (l *ZapLogger) With(args ...any) Logger {
	return &ZapLogger{base: l.base, sugar: l.sugar.With(args...), level: l.level}
}

// WithContext attaches the operation ID stored in ctx, if any.
func (l *ZapLogger) WithContext(ctx context.Context) Logger {
	if id := OperationIDFromContext(ctx); id != "" {
		return l.With("operation_id", id)
	}
	return l
}

// Enabled reports whether entries at level would be written. Children share
// the parent's level.
func (l *ZapLogger) Enabled(level LogLevel) bool {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		return false
	}
	return l.level.Enabled(zl)
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.base.Sync()
}
