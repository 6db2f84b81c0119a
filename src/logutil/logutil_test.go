package logutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRedactKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"short", "********"},
		{"12345678", "********"},
		{"sk-abcdefghijklmnop", "sk-a...mnop"},
	}
	for _, tt := range tests {
		if got := RedactKey(tt.in); got != tt.want {
			t.Errorf("RedactKey(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"plain", "hello", 10, "hello"},
		{"truncates", "hello world", 5, "hello..."},
		{"escapes newlines", "a\nb\r\tc", 0, `a\nb\n\tc`},
		{"masks control chars", "a\x00b\x7f", 0, "a?b?"},
		{"counts runes", "héllo wörld", 7, "héllo w..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("Preview(%q, %d) = %q; want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", "debug")
	logger.Debug("capture finished", "source", "introspection")
	out := buf.String()
	if !strings.HasPrefix(out, "{") || !strings.Contains(out, `"source":"introspection"`) {
		t.Errorf("expected JSON record, got %q", out)
	}
}

func TestNewLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "text", "warn")
	logger.Info("ignored")
	if buf.Len() != 0 {
		t.Errorf("info record should be filtered at warn level, got %q", buf.String())
	}
	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("warn record missing: %q", buf.String())
	}
}

func TestSetupWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logger := Setup(Options{EnableFileLogging: true, Dir: dir, Level: "info"})
	logger.Info("hello from test")

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("log file missing record: %q", string(data))
	}
	Setup(Options{})
}
