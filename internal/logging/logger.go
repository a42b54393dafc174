// Package logging is a small level-based logger, adapted from the
// platform's own internal/logging package: all output goes to stderr so
// a stdio-transport agent server never has its wire protocol polluted
// by log lines. A Fatal level is added for the configuration errors
// spec.md §7 requires to exit with a named offending value, and a Warn
// level for the recoverable anomalies the scheduler and probes surface.
package logging

import (
	"io"
	"log"
	"os"
)

type Logger struct {
	debugEnabled bool
	infoLogger   *log.Logger
	debugLogger  *log.Logger
}

var globalLogger *Logger

// Initialize sets up the global logger with debug mode setting.
func Initialize(debugMode bool) {
	var output io.Writer = os.Stderr

	globalLogger = &Logger{
		debugEnabled: debugMode,
		infoLogger:   log.New(output, "", log.LstdFlags),
		debugLogger:  log.New(output, "", log.LstdFlags),
	}
}

func ensure() {
	if globalLogger == nil {
		Initialize(false)
	}
}

// Info logs informational messages (always shown).
func Info(format string, args ...interface{}) {
	ensure()
	globalLogger.infoLogger.Printf(format, args...)
}

// Debug logs debug messages (only shown when debug mode is enabled).
func Debug(format string, args ...interface{}) {
	ensure()
	if globalLogger.debugEnabled {
		globalLogger.debugLogger.Printf("DEBUG: "+format, args...)
	}
}

// Warn logs a recoverable anomaly: a probe failed, a run couldn't be
// persisted, a warning the caller should see but that isn't fatal.
func Warn(format string, args ...interface{}) {
	ensure()
	globalLogger.infoLogger.Printf("WARN: "+format, args...)
}

// Error logs error messages (always shown).
func Error(format string, args ...interface{}) {
	ensure()
	globalLogger.infoLogger.Printf("ERROR: "+format, args...)
}

// Fatal logs a configuration error and exits, per spec.md §7's rule
// that bad ports, malformed PEM, and invalid cron expressions are
// fatal at startup and printed with the exact offending value.
func Fatal(format string, args ...interface{}) {
	ensure()
	globalLogger.infoLogger.Printf("FATAL: "+format, args...)
	os.Exit(1)
}

// IsDebugEnabled returns true if debug logging is enabled.
func IsDebugEnabled() bool {
	ensure()
	return globalLogger.debugEnabled
}
