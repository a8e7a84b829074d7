// Package logging provides structured logging for the CLI and the interactive display.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Mode selects where log output goes.
type Mode string

const (
	// ModeCLI writes human-readable lines to stderr (stdout carries command output).
	ModeCLI Mode = "cli"

	// ModeTUI writes JSON lines to a rotating file while the display owns the terminal.
	ModeTUI Mode = "tui"
)

// LogFileName is the rotating log file used in ModeTUI.
const LogFileName = "ncopds.log"

// Logger wraps zerolog with mode-specific behavior.
type Logger struct {
	zlog   zerolog.Logger
	mode   Mode
	output io.Writer
	closer io.Closer
}

// NewLogger creates a console logger for ModeCLI.
func NewLogger(w io.Writer) *Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}
	return &Logger{
		zlog:   zerolog.New(output).With().Timestamp().Logger(),
		mode:   ModeCLI,
		output: output,
	}
}

// NewDefaultCLILogger creates a console logger on stderr.
func NewDefaultCLILogger() *Logger {
	return NewLogger(os.Stderr)
}

// NewFileLogger creates a ModeTUI logger that rotates logDir/ncopds.log.
func NewFileLogger(logDir string) *Logger {
	writer := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, LogFileName),
		MaxSize:    10, // MB per file
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	return &Logger{
		zlog:   zerolog.New(writer).With().Timestamp().Logger(),
		mode:   ModeTUI,
		output: writer,
		closer: writer,
	}
}

// NewNopLogger discards everything. Used by tests and library callers that pass nil.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop(), mode: ModeCLI, output: io.Discard}
}

// Mode reports the logger's output mode.
func (l *Logger) Mode() Mode {
	return l.mode
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger context.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// Child returns a Logger carrying an extra string field.
func (l *Logger) Child(key, value string) *Logger {
	return &Logger{
		zlog:   l.zlog.With().Str(key, value).Logger(),
		mode:   l.mode,
		output: l.output,
	}
}

// SetOutput redirects console output, e.g. through a progress container.
// File loggers ignore it.
func (l *Logger) SetOutput(w io.Writer) {
	if l.mode != ModeCLI {
		return
	}
	l.output = w
	l.zlog = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Logger()
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Close releases the rotating file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Debugf logs a debug message with printf-style formatting.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a config/env value to a zerolog level, falling back to info.
func ParseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
