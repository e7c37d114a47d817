// Package logging provides the levelled printf-style logger shared by the
// daemon, scanners and watchers.
package logging

import (
	"io"
	"log"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level orders log severities
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level, defaulting to LevelInfo
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Options configures where and how much a Logger writes
type Options struct {
	File       string // empty means stderr
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Logger provides levelled logging
type Logger struct {
	logger *log.Logger
	level  Level
	closer io.Closer
}

// New creates a logger. When a file is configured it is rotated by size.
func New(opts Options) *Logger {
	var out io.Writer = os.Stderr
	var closer io.Closer

	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		out = rotator
		closer = rotator
	}

	return &Logger{
		logger: log.New(out, "", log.LstdFlags),
		level:  ParseLevel(opts.Level),
		closer: closer,
	}
}

// NewWriter creates a logger writing to w, mainly for tests and CLI output
func NewWriter(w io.Writer, level string) *Logger {
	return &Logger{
		logger: log.New(w, "", 0),
		level:  ParseLevel(level),
	}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return NewWriter(io.Discard, "error")
}

// OrDiscard returns l, or a discarding logger when l is nil
func OrDiscard(l *Logger) *Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level <= LevelDebug {
		l.logger.Printf("[DEBUG] "+format, args...)
	}
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level <= LevelInfo {
		l.logger.Printf("[INFO] "+format, args...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level <= LevelWarn {
		l.logger.Printf("[WARN] "+format, args...)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.Printf("[ERROR] "+format, args...)
}

// Printf satisfies cron.Logger style adapters that want a plain printf
func (l *Logger) Printf(format string, args ...interface{}) {
	l.Info(format, args...)
}

// Close closes the rotating file, if any
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
