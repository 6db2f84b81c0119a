package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvFileEnvVar        = "OMNI_TEXT_ENV"
	DataDirEnvVar        = "OMNI_TEXT_DATA_DIR"
	ClipboardBackendVar  = "CLIPBOARD_BACKEND"
	ClipboardNative      = "native"
	ClipboardCLI         = "cli"
	IntrospectionAuto    = "auto"
	IntrospectionOff     = "off"
	defaultResidentPort  = 49600
	defaultTimeoutMS     = 2000
	defaultInterEventMS  = 20
	defaultSettleMS      = 100
	defaultSettingsName  = "settings.toml"
	defaultAppFolderName = "omni-text"
)

type LoadOptions struct {
	DataDirOverride          string
	ClipboardBackendOverride string
	VerboseOverride          bool
}

type Config struct {
	EnableFileLogging bool
	LogFormat         string
	LogLevel          string
	ClipboardBackend  string
	Introspection     string
	DataDir           string
	SettingsPath      string
	ResidentPort      int
	OperationTimeout  time.Duration
	InterEventDelay   time.Duration
	SettleDelay       time.Duration
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) .env in the executable directory
	// 2) if absent, the file named by OMNI_TEXT_ENV
	// Real environment variables always win over .env values (godotenv.Load never overrides).
	if envPath := resolveEnvPath(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	dataDir := resolveDataDir(opts)

	cfg := &Config{
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		LogFormat:         getEnvWithDefault("LOG_FORMAT", "text"),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		ClipboardBackend:  resolveClipboardBackend(opts),
		Introspection:     resolveIntrospection(),
		DataDir:           dataDir,
		SettingsPath:      getEnvWithDefault("SETTINGS_PATH", filepath.Join(dataDir, defaultSettingsName)),
		ResidentPort:      getEnvInt("RESIDENT_PORT", defaultResidentPort),
		OperationTimeout:  getEnvMillis("OPERATION_TIMEOUT_MS", defaultTimeoutMS),
		InterEventDelay:   getEnvMillis("INTER_EVENT_DELAY_MS", defaultInterEventMS),
		SettleDelay:       getEnvMillis("SETTLE_DELAY_MS", defaultSettleMS),
	}
	if opts.VerboseOverride {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func resolveDataDir(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.DataDirOverride); override != "" {
		return override
	}
	if dir := strings.TrimSpace(os.Getenv(DataDirEnvVar)); dir != "" {
		return dir
	}
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, defaultAppFolderName)
	}
	return filepath.Join(".", defaultAppFolderName)
}

func resolveClipboardBackend(opts LoadOptions) string {
	value := opts.ClipboardBackendOverride
	if strings.TrimSpace(value) == "" {
		value = os.Getenv(ClipboardBackendVar)
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case ClipboardCLI, "atotto", "tools":
		return ClipboardCLI
	default:
		return ClipboardNative
	}
}

// resolveIntrospection reads INTROSPECTION. "off" skips the accessibility
// tree entirely and captures through the clipboard only.
func resolveIntrospection() string {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("INTROSPECTION")), IntrospectionOff) {
		return IntrospectionOff
	}
	return IntrospectionAuto
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getEnvMillis(key string, defaultMS int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMS)) * time.Millisecond
}

// EnsureDataDir creates the data directory with user-only permissions.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}
