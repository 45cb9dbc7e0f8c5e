package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting of pipedeck.
type Config struct {
	DBPath              string       `yaml:"db_path"`
	PageSize            int          `yaml:"page_size"`
	MoveTimeoutMs       int          `yaml:"move_timeout_ms"`
	LoadTimeoutMs       int          `yaml:"load_timeout_ms"`
	VariantPipelineName string       `yaml:"variant_pipeline_name"`
	StrictMultiselect   bool         `yaml:"strict_multiselect"`
	LogUseCases         bool         `yaml:"log_use_cases"`
	Server              ServerConfig `yaml:"server"`
	Remote              RemoteConfig `yaml:"remote"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
}

// RemoteConfig points the CLI at a hosted pipedeck server instead of the local database.
type RemoteConfig struct {
	URL        string `yaml:"url"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	MaxRetries int    `yaml:"max_retries"` // applies to reads only
	LogCalls   bool   `yaml:"log_calls"`
}

// Default returns a Config with defaults. DBPath lives under the user's home directory.
func Default() Config {
	dbPath := "pipedeck.db"
	if home, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(home, ".pipedeck", "pipedeck.db")
	}
	return Config{
		DBPath:              dbPath,
		PageSize:            20,
		MoveTimeoutMs:       10000,
		LoadTimeoutMs:       15000,
		VariantPipelineName: "Pedidos",
		StrictMultiselect:   true,
		Server:              ServerConfig{Address: ":8080"},
		Remote:              RemoteConfig{TimeoutMs: 10000, MaxRetries: 1},
	}
}

// Load reads the YAML file at path (if any) over the defaults, then applies
// PIPEDECK_* environment overrides. An empty path falls back to PIPEDECK_CONFIG.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("PIPEDECK_CONFIG")
	}
	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("open config: %w", err)
		default:
			defer func() { _ = f.Close() }()
			if err := decode(f, &cfg); err != nil {
				return cfg, fmt.Errorf("decode config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if cfg.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", cfg.PageSize)
	}
	if cfg.MoveTimeoutMs <= 0 || cfg.LoadTimeoutMs <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// applyEnv overrides cfg from the environment. Invalid values are ignored.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PIPEDECK_DB"); v != "" {
		cfg.DBPath = v
	}
	envPositiveInt("PIPEDECK_PAGE_SIZE", &cfg.PageSize)
	envPositiveInt("PIPEDECK_MOVE_TIMEOUT_MS", &cfg.MoveTimeoutMs)
	envPositiveInt("PIPEDECK_LOAD_TIMEOUT_MS", &cfg.LoadTimeoutMs)
	if v := os.Getenv("PIPEDECK_VARIANT_PIPELINE"); v != "" {
		cfg.VariantPipelineName = v
	}
	envBool("PIPEDECK_STRICT_MULTISELECT", &cfg.StrictMultiselect)
	envBool("PIPEDECK_LOG_USE_CASES", &cfg.LogUseCases)
	if v := os.Getenv("PIPEDECK_ADDR"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("PIPEDECK_REMOTE"); v != "" {
		cfg.Remote.URL = v
	}
	envPositiveInt("PIPEDECK_REMOTE_TIMEOUT_MS", &cfg.Remote.TimeoutMs)
	if v := os.Getenv("PIPEDECK_REMOTE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Remote.MaxRetries = n
		}
	}
	envBool("PIPEDECK_REMOTE_LOG_CALLS", &cfg.Remote.LogCalls)
}

func envPositiveInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = n
	}
}

func envBool(name string, dst *bool) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}

func (c Config) MoveTimeout() time.Duration {
	return time.Duration(c.MoveTimeoutMs) * time.Millisecond
}

func (c Config) LoadTimeout() time.Duration {
	return time.Duration(c.LoadTimeoutMs) * time.Millisecond
}

func (c Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutMs) * time.Millisecond
}
