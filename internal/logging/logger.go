package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Sink is the logging surface handed to pipeline components.
// *Logger satisfies it; tests usually pass Nop().
type Sink interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Logger provides structured logging for the worker
type Logger struct {
	prefix string
	logger *log.Logger
	debug  *atomic.Bool
}

// NewLogger creates a new logger with a prefix
func NewLogger(prefix string) *Logger {
	return NewLoggerTo(os.Stdout, prefix)
}

// NewLoggerTo creates a logger writing to w.
func NewLoggerTo(w io.Writer, prefix string) *Logger {
	debug := &atomic.Bool{}
	debug.Store(strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug"))
	return &Logger{
		prefix: prefix,
		logger: log.New(w, fmt.Sprintf("[%s] ", prefix), log.LstdFlags),
		debug:  debug,
	}
}

// Named returns a logger sharing the same output under a different prefix.
func (l *Logger) Named(prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		logger: log.New(l.logger.Writer(), fmt.Sprintf("[%s] ", prefix), l.logger.Flags()),
		debug:  l.debug,
	}
}

// SetDebug toggles Debug output for this logger and every logger derived with Named.
func (l *Logger) SetDebug(enabled bool) {
	l.debug.Store(enabled)
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logWithKV("INFO", msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logWithKV("WARN", msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logWithKV("ERROR", msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	if !l.debug.Load() {
		return
	}
	l.logWithKV("DEBUG", msg, keysAndValues...)
}

func (l *Logger) logWithKV(level, msg string, keysAndValues ...interface{}) {
	var kv strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&kv, " %v=%v", keysAndValues[i], keysAndValues[i+1])
		}
	}
	l.logger.Printf("[%s] %s%s", level, msg, kv.String())
}

type nopSink struct{}

func (nopSink) Info(string, ...interface{})  {}
func (nopSink) Warn(string, ...interface{})  {}
func (nopSink) Error(string, ...interface{}) {}
func (nopSink) Debug(string, ...interface{}) {}

// Nop returns a Sink that discards everything.
func Nop() Sink { return nopSink{} }
