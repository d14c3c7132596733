package runner

import (
	"fmt"
	"log"
	"os"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	// LogLevelDebug is for detailed information, typically of interest only
	// when diagnosing problems in queue or timing behavior.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is for lifecycle transitions and the end-of-run summary.
	LogLevelInfo
	// LogLevelWarn is for recorded errors that did not abort the run.
	LogLevelWarn
	// LogLevelError is for conditions that abort the run.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the diagnostic-stream facade a Runner writes to. It is optional:
// the zero Runner uses NoOpLogger and emits nothing.
type Logger interface {
	// Log writes a log message at the specified level.
	// The message is formatted using fmt.Sprintf if args are provided.
	Log(level LogLevel, format string, args ...interface{})

	// Debug logs a debug-level message.
	Debug(format string, args ...interface{})

	// Info logs an info-level message.
	Info(format string, args ...interface{})

	// Warn logs a warning-level message.
	Warn(format string, args ...interface{})

	// Error logs an error-level message.
	Error(format string, args ...interface{})
}

// NoOpLogger discards every message. It is the default Logger.
type NoOpLogger struct{}

// Log implements Logger.
func (NoOpLogger) Log(LogLevel, string, ...interface{}) {}

// Debug implements Logger.
func (NoOpLogger) Debug(string, ...interface{}) {}

// Info implements Logger.
func (NoOpLogger) Info(string, ...interface{}) {}

// Warn implements Logger.
func (NoOpLogger) Warn(string, ...interface{}) {}

// Error implements Logger.
func (NoOpLogger) Error(string, ...interface{}) {}

// SimpleLogger writes to stdout (Debug, Info) or stderr (Warn, Error) through
// the standard log package, each line prefixed with its level.
type SimpleLogger struct {
	// MinLevel is the minimum level that is actually written.
	MinLevel LogLevel

	// StdoutLogger handles Debug and Info level messages.
	StdoutLogger *log.Logger

	// StderrLogger handles Warn and Error level messages.
	StderrLogger *log.Logger
}

// NewSimpleLogger creates a SimpleLogger writing to os.Stdout/os.Stderr with
// standard timestamp flags.
func NewSimpleLogger(minLevel LogLevel) *SimpleLogger {
	return &SimpleLogger{
		MinLevel:     minLevel,
		StdoutLogger: log.New(os.Stdout, "", log.LstdFlags),
		StderrLogger: log.New(os.Stderr, "", log.LstdFlags),
	}
}

// Log implements Logger.
func (s *SimpleLogger) Log(level LogLevel, format string, args ...interface{}) {
	if level < s.MinLevel {
		return
	}
	msg := fmt.Sprintf(format, args...)
	prefix := fmt.Sprintf("[%s] ", level.String())
	switch level {
	case LogLevelDebug, LogLevelInfo:
		s.StdoutLogger.Printf("%s%s", prefix, msg)
	default:
		s.StderrLogger.Printf("%s%s", prefix, msg)
	}
}

// Debug implements Logger.
func (s *SimpleLogger) Debug(format string, args ...interface{}) {
	s.Log(LogLevelDebug, format, args...)
}

// Info implements Logger.
func (s *SimpleLogger) Info(format string, args ...interface{}) {
	s.Log(LogLevelInfo, format, args...)
}

// Warn implements Logger.
func (s *SimpleLogger) Warn(format string, args ...interface{}) {
	s.Log(LogLevelWarn, format, args...)
}

// Error implements Logger.
func (s *SimpleLogger) Error(format string, args ...interface{}) {
	s.Log(LogLevelError, format, args...)
}
