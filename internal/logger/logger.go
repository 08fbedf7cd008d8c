// Package logger is the leveled logger shared by every layer of the service.
// Levels are off, info (info/warn) and debug (everything). Errors are
// written at every level.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	LevelOff Level = iota
	LevelInfo
	LevelDebug
)

// ParseLevel maps a config string to a Level. Unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "quiet":
		return LevelOff
	case "debug", "verbose":
		return LevelDebug
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelDebug:
		return "debug"
	default:
		return "info"
	}
}

// Logger is safe for concurrent use.
type Logger struct {
	mu     sync.RWMutex
	level  Level
	debug  *log.Logger
	info   *log.Logger
	warn   *log.Logger
	errLog *log.Logger
}

// New creates a logger writing to out, or os.Stderr when out is nil.
func New(level Level, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}

	flags := log.LstdFlags

	return &Logger{
		level:  level,
		debug:  log.New(out, "[DBG] ", flags),
		info:   log.New(out, "[INF] ", flags),
		warn:   log.New(out, "[WRN] ", flags),
		errLog: log.New(out, "[ERR] ", flags),
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return New(LevelOff, io.Discard)
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) Level() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *Logger) Debug(format string, args ...any) {
	l.output(LevelDebug, l.debug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.output(LevelInfo, l.info, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.output(LevelInfo, l.warn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.output(LevelOff, l.errLog, format, args...)
}

func (l *Logger) output(min Level, dst *log.Logger, format string, args ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.level >= min {
		dst.Output(3, fmt.Sprintf(format, args...))
	}
}
