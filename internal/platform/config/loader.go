package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration from a yaml file with environment overrides.
type Loader struct {
	path      string
	useDotEnv bool
}

// NewLoader creates a loader for the default config path.
func NewLoader() *Loader {
	return &Loader{
		path:      ".config.yaml",
		useDotEnv: true,
	}
}

// WithPath overrides the config file location.
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load merges defaults, the yaml file (if present) and environment overrides.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		_ = godotenv.Load()
	}

	cfg := Default()
	path := l.path
	if env := os.Getenv("READCARD_CONFIG"); env != "" {
		path = env
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		path = "defaults"
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{
		Config: cfg,
		Path:   path,
	}, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("READCARD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("READCARD_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("READCARD_DEVICE"); v != "" {
		cfg.Reader.DeviceName = v
	}
	if v := os.Getenv("READCARD_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Reader.TimeoutSeconds = secs
		}
	}
	if v := os.Getenv("READCARD_AUTH_LEVEL"); v != "" {
		cfg.Reader.AuthLevel = AuthLevel(v)
	}
	if v := os.Getenv("READCARD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}
	if cfg.Reader.TimeoutSeconds <= 0 {
		return fmt.Errorf("reader timeout_seconds must be positive, got %d", cfg.Reader.TimeoutSeconds)
	}
	switch AuthLevel(strings.TrimSpace(string(cfg.Reader.AuthLevel))) {
	case AuthLevelMin, AuthLevelOpt, AuthLevelMax:
	default:
		return fmt.Errorf("unknown auth_level %q", cfg.Reader.AuthLevel)
	}
	return nil
}
