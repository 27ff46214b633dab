// Package log is the process-wide leveled logger. The Debugf/Infof/... helpers
// cover the common case; Logger returns the underlying *slog.Logger for code
// that wants structured fields.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "NONE", "OFF":
		return LevelNone, true
	default:
		return LevelInfo, false
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelNone:
		return slog.LevelError + 4
	default:
		return slog.LevelInfo
	}
}

// --- Global Logger State ---

var (
	currentLevel atomic.Uint32
	levelVar     = new(slog.LevelVar)
	logger       atomic.Pointer[slog.Logger]
)

func init() {
	SetOutput(os.Stderr, "text")
	SetLevel(LevelInfo)
}

// SetOutput points the logger at w. format is "text" or "json"; anything
// else falls back to text.
func SetOutput(w io.Writer, format string) {
	opts := &slog.HandlerOptions{Level: levelVar}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	logger.Store(slog.New(h))
}

// Discard silences all output. Tests use it.
func Discard() {
	logger.Store(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
	levelVar.Set(level.slogLevel())
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// Logger returns the structured logger behind the helpers.
func Logger() *slog.Logger {
	return logger.Load()
}

func shouldLog(level LogLevel) bool {
	return level != LevelNone && level >= GetLevel()
}

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) {
	if shouldLog(LevelDebug) {
		Logger().Debug(fmt.Sprintf(format, v...))
	}
}

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) {
	if shouldLog(LevelInfo) {
		Logger().Info(fmt.Sprintf(format, v...))
	}
}

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) {
	if shouldLog(LevelWarn) {
		Logger().Warn(fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) {
	if shouldLog(LevelError) {
		Logger().Error(fmt.Sprintf(format, v...))
	}
}
