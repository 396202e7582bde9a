package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// Level orders log severities; messages below the logger's level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a LOG_LEVEL value to a Level, defaulting to info.
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

// Logger provides leveled logging throughout the application.
type Logger struct {
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
	debug *log.Logger

	level  Level
	colour bool
}

// NewLogger creates a new Logger writing to stdout/stderr. ANSI colours are
// only emitted when stdout is a terminal.
func NewLogger() *Logger {
	return newLogger(os.Stdout, os.Stderr, isTerminal(os.Stdout))
}

// NewLoggerTo writes every level to w without colours. Used by tests and the
// JSON output mode, where stdout must stay machine-readable.
func NewLoggerTo(w io.Writer) *Logger {
	return newLogger(w, w, false)
}

func newLogger(out, errOut io.Writer, colour bool) *Logger {
	flags := 0
	return &Logger{
		info:   log.New(out, "", flags),
		warn:   log.New(out, "", flags),
		err:    log.New(errOut, "", flags),
		debug:  log.New(out, "", flags),
		level:  LevelInfo,
		colour: colour,
	}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// SetLevel changes the minimum level that is written.
func (l *Logger) SetLevel(level Level) {
	l.level = level
}

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) tag(name, code string) string {
	if !l.colour {
		return fmt.Sprintf("%-5s", name)
	}
	return fmt.Sprintf("\033[%sm%-5s\033[0m", code, name)
}

func (l *Logger) write(target *log.Logger, level Level, name, code, format string, args ...any) {
	if level < l.level {
		return
	}
	target.Printf("[%s] %s %s\n", l.timestamp(), l.tag(name, code), fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.write(l.info, LevelInfo, "INFO", "32", format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.write(l.warn, LevelWarn, "WARN", "33", format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.write(l.err, LevelError, "ERROR", "31", format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.write(l.debug, LevelDebug, "DEBUG", "36", format, args...)
}
