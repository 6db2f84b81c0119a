package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	os.Setenv("ENABLE_FILE_LOGGING", "true")
	os.Setenv("OPERATION_TIMEOUT_MS", "3500")
	os.Setenv("CLIPBOARD_BACKEND", "cli")
	os.Setenv(DataDirEnvVar, "/tmp/omni-text-test")

	defer func() {
		os.Unsetenv("ENABLE_FILE_LOGGING")
		os.Unsetenv("OPERATION_TIMEOUT_MS")
		os.Unsetenv("CLIPBOARD_BACKEND")
		os.Unsetenv(DataDirEnvVar)
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if !cfg.EnableFileLogging {
		t.Errorf("Expected EnableFileLogging to be true, got %v", cfg.EnableFileLogging)
	}
	if cfg.OperationTimeout != 3500*time.Millisecond {
		t.Errorf("Expected OperationTimeout 3.5s, got %v", cfg.OperationTimeout)
	}
	if cfg.ClipboardBackend != ClipboardCLI {
		t.Errorf("Expected ClipboardBackend '%s', got '%s'", ClipboardCLI, cfg.ClipboardBackend)
	}
	if cfg.DataDir != "/tmp/omni-text-test" {
		t.Errorf("Expected DataDir '/tmp/omni-text-test', got '%s'", cfg.DataDir)
	}
	if cfg.SettingsPath != filepath.Join("/tmp/omni-text-test", "settings.toml") {
		t.Errorf("Unexpected SettingsPath '%s'", cfg.SettingsPath)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"OPERATION_TIMEOUT_MS", "INTER_EVENT_DELAY_MS", "SETTLE_DELAY_MS", "CLIPBOARD_BACKEND", "RESIDENT_PORT"} {
		os.Unsetenv(k)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.OperationTimeout != 2*time.Second {
		t.Errorf("Expected default timeout 2s, got %v", cfg.OperationTimeout)
	}
	if cfg.InterEventDelay != 20*time.Millisecond {
		t.Errorf("Expected default inter-event delay 20ms, got %v", cfg.InterEventDelay)
	}
	if cfg.SettleDelay != 100*time.Millisecond {
		t.Errorf("Expected default settle delay 100ms, got %v", cfg.SettleDelay)
	}
	if cfg.ClipboardBackend != ClipboardNative {
		t.Errorf("Expected native clipboard backend, got %s", cfg.ClipboardBackend)
	}
	if cfg.ResidentPort != defaultResidentPort {
		t.Errorf("Expected resident port %d, got %d", defaultResidentPort, cfg.ResidentPort)
	}
}

func TestLoadWithOptionsOverrides(t *testing.T) {
	os.Setenv("CLIPBOARD_BACKEND", "cli")
	os.Setenv("INTER_EVENT_DELAY_MS", "not-a-number")
	defer os.Unsetenv("CLIPBOARD_BACKEND")
	defer os.Unsetenv("INTER_EVENT_DELAY_MS")

	dir := t.TempDir()
	cfg, err := LoadWithOptions(LoadOptions{
		DataDirOverride:          dir,
		ClipboardBackendOverride: "native",
		VerboseOverride:          true,
	})
	if err != nil {
		t.Fatalf("LoadWithOptions failed: %v", err)
	}
	if cfg.DataDir != dir {
		t.Errorf("Expected DataDir override %q, got %q", dir, cfg.DataDir)
	}
	if cfg.ClipboardBackend != ClipboardNative {
		t.Errorf("Expected override to win, got %s", cfg.ClipboardBackend)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected verbose to force debug level, got %s", cfg.LogLevel)
	}
	if cfg.InterEventDelay != 20*time.Millisecond {
		t.Errorf("Expected invalid value to fall back to 20ms, got %v", cfg.InterEventDelay)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		t.Errorf("EnsureDataDir: %v", err)
	}
}

func TestIntrospectionMode(t *testing.T) {
	t.Setenv("INTROSPECTION", "OFF")
	cfg, _ := Load()
	if cfg.Introspection != IntrospectionOff {
		t.Errorf("Expected introspection off, got %s", cfg.Introspection)
	}

	t.Setenv("INTROSPECTION", "bogus")
	cfg, _ = Load()
	if cfg.Introspection != IntrospectionAuto {
		t.Errorf("Expected unknown value to mean auto, got %s", cfg.Introspection)
	}
}
