package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	// DEBUG level for detailed debugging information
	DEBUG LogLevel = iota
	// INFO level for general informational messages
	INFO
	// WARN level for warning messages
	WARN
	// ERROR level for error messages
	ERROR
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

var levelColors = map[LogLevel]string{
	DEBUG: "\033[36m", // Cyan
	INFO:  "\033[32m", // Green
	WARN:  "\033[33m", // Yellow
	ERROR: "\033[31m", // Red
}

// Logger provides leveled logging with optional ANSI colors and a prefix.
// Call supervisors derive per-call loggers via WithPrefix so every line of a
// call's output carries its call id.
type Logger struct {
	mu           sync.RWMutex
	level        LogLevel
	enableColors bool
	prefix       string
	stdLogger    *log.Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Init initializes the default logger from environment variables:
//   - LOG_LEVEL: DEBUG, INFO, WARN or ERROR (default INFO)
//   - LOG_COLOR: set to "false" or "0" to disable colored output
func Init() {
	once.Do(func() {
		level := INFO
		switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
		case "DEBUG":
			level = DEBUG
		case "WARN", "WARNING":
			level = WARN
		case "ERROR":
			level = ERROR
		}

		colors := true
		if c := os.Getenv("LOG_COLOR"); c == "false" || c == "0" {
			colors = false
		}

		defaultLogger = New(level, os.Stdout, colors, "")
	})
}

// New creates a new Logger instance.
func New(level LogLevel, output io.Writer, enableColors bool, prefix string) *Logger {
	return &Logger{
		level:        level,
		enableColors: enableColors,
		prefix:       prefix,
		stdLogger:    log.New(output, "", log.LstdFlags),
	}
}

// SetLevel changes the current log level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// IsLevelEnabled reports whether messages at level would be emitted.
func (l *Logger) IsLevelEnabled(level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if !l.IsLevelEnabled(level) {
		return
	}

	msg := fmt.Sprintf(format, args...)
	name := levelNames[level]

	var line string
	switch {
	case l.enableColors && l.prefix != "":
		line = fmt.Sprintf("%s[%s]\033[0m [%s] %s", levelColors[level], name, l.prefix, msg)
	case l.enableColors:
		line = fmt.Sprintf("%s[%s]\033[0m %s", levelColors[level], name, msg)
	case l.prefix != "":
		line = fmt.Sprintf("[%s] [%s] %s", name, l.prefix, msg)
	default:
		line = fmt.Sprintf("[%s] %s", name, msg)
	}

	l.stdLogger.Output(3, line)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) { l.log(INFO, format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.log(WARN, format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// WithPrefix creates a new logger that shares output and level with l but
// tags every line with prefix.
func (l *Logger) WithPrefix(prefix string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{
		level:        l.level,
		enableColors: l.enableColors,
		prefix:       prefix,
		stdLogger:    l.stdLogger,
	}
}

// GetDefault returns the default logger instance.
func GetDefault() *Logger {
	if defaultLogger == nil {
		Init()
	}
	return defaultLogger
}

// Debug logs a debug message using the default logger
func Debug(format string, args ...interface{}) { GetDefault().log(DEBUG, format, args...) }

// Info logs an info message using the default logger
func Info(format string, args ...interface{}) { GetDefault().log(INFO, format, args...) }

// Warn logs a warning message using the default logger
func Warn(format string, args ...interface{}) { GetDefault().log(WARN, format, args...) }

// Error logs an error message using the default logger
func Error(format string, args ...interface{}) { GetDefault().log(ERROR, format, args...) }

// WithPrefix creates a prefixed logger from the default logger
func WithPrefix(prefix string) *Logger { return GetDefault().WithPrefix(prefix) }
