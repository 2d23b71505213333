package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// LogLevel selects the minimum severity a logger emits.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	}
	return "INFO"
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Logger emits one JSON object per record via slog. Loggers are immutable:
// the With* methods return a derived logger carrying the extra attributes
// and leave the receiver untouched, so a shared base logger is safe to hand
// out across packages.
type Logger struct {
	sl    *slog.Logger
	level LogLevel
}

// NewLogger writes JSON records at or above level to output. A nil output
// falls back to stdout.
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: level.slogLevel(),
	})
	return &Logger{sl: slog.New(handler), level: level}
}

func (l *Logger) derive(sl *slog.Logger) *Logger {
	return &Logger{sl: sl, level: l.level}
}

// WithField attaches key=value to every record of the derived logger.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.derive(l.sl.With(key, value))
}

// WithFields attaches all given fields to every record of the derived logger.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	kv := make([]interface{}, 0, 2*len(fields))
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return l.derive(l.sl.With(kv...))
}

// WithError attaches the error message under the "error" key. A nil error
// returns the receiver unchanged.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) Debug(msg string) { l.sl.Debug(msg) }
func (l *Logger) Info(msg string)  { l.sl.Info(msg) }
func (l *Logger) Warn(msg string)  { l.sl.Warn(msg) }
func (l *Logger) Error(msg string) { l.sl.Error(msg) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.sl.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.sl.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.sl.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.sl.Error(fmt.Sprintf(format, args...))
}
