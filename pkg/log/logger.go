package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "INFO"
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps a level name to a LogLevel. Unknown names fall back to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Format selects the output encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

type Logger struct {
	level LogLevel
	zl    zerolog.Logger
}

func NewLogger(level LogLevel) *Logger {
	return NewLoggerWithWriter(os.Stdout, level, FormatConsole)
}

// NewLoggerWithWriter builds a logger on an arbitrary writer.
func NewLoggerWithWriter(w io.Writer, level LogLevel, format Format) *Logger {
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.DateTime,
			NoColor:    true,
		}
	}
	zl := zerolog.New(w).
		Level(level.zerolog()).
		With().
		Timestamp().
		Str("service", "pdf-translator").
		Logger()
	return &Logger{level: level, zl: zl}
}

// With returns a child logger carrying an extra field on every entry.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{level: l.level, zl: l.zl.With().Interface(key, value).Logger()}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(LevelFatal, format, args...)
	os.Exit(1)
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	// skip log() and the exported wrapper
	_, file, line, ok := runtime.Caller(2)
	caller := "unknown"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = l.zl.Debug()
	case LevelWarn:
		ev = l.zl.Warn()
	case LevelError:
		ev = l.zl.Error()
	case LevelFatal:
		// WithLevel avoids zerolog's own os.Exit so Fatal stays in control
		ev = l.zl.WithLevel(zerolog.FatalLevel)
	default:
		ev = l.zl.Info()
	}
	ev.Str("caller", caller).Msg(fmt.Sprintf(format, args...))
}

// openLogFile opens path for appending, creating its directory.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

var (
	globalLogger *Logger
	globalFile   *os.File
)

// Setup configures the global logger from LOG_LEVEL / LOG_FORMAT style
// values. A non-empty logFile also receives every entry as JSON lines.
func Setup(level, format, logFile string) error {
	f := FormatConsole
	if strings.EqualFold(strings.TrimSpace(format), string(FormatJSON)) {
		f = FormatJSON
	}
	lvl := ParseLevel(level)

	if logFile == "" {
		globalLogger = NewLoggerWithWriter(os.Stdout, lvl, f)
		return nil
	}

	file, err := openLogFile(logFile)
	if err != nil {
		globalLogger = NewLoggerWithWriter(os.Stdout, lvl, f)
		return err
	}
	var stdout io.Writer = os.Stdout
	if f == FormatConsole {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime, NoColor: true}
	}
	globalLogger = NewLoggerWithWriter(zerolog.MultiLevelWriter(stdout, file), lvl, FormatJSON)
	if globalFile != nil {
		_ = globalFile.Close()
	}
	globalFile = file
	return nil
}

// Close releases the log file opened by Setup, if any.
func Close() error {
	if globalFile == nil {
		return nil
	}
	err := globalFile.Close()
	globalFile = nil
	return err
}

func GetLogger() *Logger {
	if globalLogger == nil {
		globalLogger = NewLogger(LevelInfo)
	}
	return globalLogger
}

func Debug(format string, args ...interface{}) {
	GetLogger().log(LevelDebug, format, args...)
}

func Info(format string, args ...interface{}) {
	GetLogger().log(LevelInfo, format, args...)
}

func Warn(format string, args ...interface{}) {
	GetLogger().log(LevelWarn, format, args...)
}

func Error(format string, args ...interface{}) {
	GetLogger().log(LevelError, format, args...)
}

func Fatal(format string, args ...interface{}) {
	GetLogger().log(LevelFatal, format, args...)
	os.Exit(1)
}
