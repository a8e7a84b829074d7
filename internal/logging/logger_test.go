package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConsoleLoggerWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Info().Str("seq", "7").Msg("fetch started")

	if !strings.Contains(buf.String(), "fetch started") {
		t.Errorf("Expected message in output, got %q", buf.String())
	}
	if l.Mode() != ModeCLI {
		t.Errorf("Expected ModeCLI, got %s", l.Mode())
	}
}

func TestFileLoggerCreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLogger(dir)
	l.Warn().Msg("written to file")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"written to file"`) {
		t.Errorf("Expected JSON line, got %q", string(data))
	}
}

func TestSetOutputIgnoredForFileLogger(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLogger(dir)
	defer l.Close()

	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.Info().Msg("still in file")
	if buf.Len() != 0 {
		t.Errorf("Expected file logger to ignore SetOutput, got %q", buf.String())
	}
}
