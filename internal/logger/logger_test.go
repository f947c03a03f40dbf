package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"none", LevelNone},
		{"invalid", LevelInfo}, // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	l, err := New(LevelDebug, path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Debug("debug %d", 1)
	l.Info("info message")
	l.Error("error message")

	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	content := string(data)
	for _, want := range []string{"[DEBUG] debug 1", "[INFO] info message", "[ERROR] error message"} {
		if !strings.Contains(content, want) {
			t.Errorf("log file missing %q:\n%s", want, content)
		}
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filtered.log")

	l, err := New(LevelWarn, path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Debug("should not appear")
	l.Info("should not appear either")
	l.Warn("warning shows")

	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	content := string(data)
	if strings.Contains(content, "should not appear") {
		t.Errorf("filtered messages leaked into log:\n%s", content)
	}
	if !strings.Contains(content, "warning shows") {
		t.Errorf("warning missing from log:\n%s", content)
	}
}

func TestDisabledLogger(t *testing.T) {
	l, err := New(LevelNone, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// Should be a no-op, not a crash
	l.Info("goes nowhere")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
