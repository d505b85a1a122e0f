// Package config provides configuration management for factura.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultListenAddr is the default HTTP listen address.
	DefaultListenAddr = ":8002"
	// DefaultModel is the default chat model.
	DefaultModel = "gpt-4.1"
	// DefaultResetDelay is the pause between scheduling a session reset and
	// executing it, so the user sees the confirmation status first.
	DefaultResetDelay = 5 * time.Second
	// DefaultModelTimeout bounds a single model call.
	DefaultModelTimeout = 60 * time.Second
)

// Config holds all factura settings.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	// StoreBackend selects the catalog store: "redis" or "sqlite".
	StoreBackend  string `yaml:"store_backend"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	SQLitePath    string `yaml:"sqlite_path"`

	ModelBaseURL     string        `yaml:"model_base_url"`
	Model            string        `yaml:"model"`
	ModelTimeout     time.Duration `yaml:"model_timeout"`
	SystemPromptPath string        `yaml:"system_prompt_path"`

	ResetDelay time.Duration `yaml:"reset_delay"`
}

var (
	current *Config
	mu      sync.RWMutex
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		ListenAddr:   DefaultListenAddr,
		StoreBackend: "redis",
		RedisAddr:    "localhost:6379",
		SQLitePath:   DBPath(),
		Model:        DefaultModel,
		ModelTimeout: DefaultModelTimeout,
		ResetDelay:   DefaultResetDelay,
	}
}

// DataDir returns the factura data directory.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".factura")
}

// DBPath returns the embedded catalog database path.
func DBPath() string {
	return filepath.Join(DataDir(), "factura.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.yaml")
}

// EnsureDataDir creates the data directory if missing.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o755)
}

// Load reads settings from disk, fills in defaults, applies env overrides and
// installs the result as the process-wide config.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", SettingsPath(), err)
		}
	case os.IsNotExist(err):
		// First run, defaults only.
	default:
		return nil, err
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	mu.Lock()
	current = cfg
	mu.Unlock()
	return cfg, nil
}

// Get returns the installed config, falling back to defaults when Load has
// not run (unit tests).
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return Default()
	}
	return current
}

// Save writes the config to the settings file.
func (c *Config) Save() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(SettingsPath(), data, 0o644)
}

// applyEnv applies environment overrides. REDIS_HOST/REDIS_PORT/REDIS_PASSWORD
// match the deployment convention of the catalog store; the model key itself
// is only ever read from OPENAI_API_KEY and never persisted.
func (c *Config) applyEnv() {
	if v := os.Getenv("FACTURA_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("FACTURA_STORE"); v != "" {
		c.StoreBackend = v
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		port := os.Getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		c.RedisAddr = host + ":" + port
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.ModelBaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("LLM_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.ModelTimeout = time.Duration(ms) * time.Millisecond
		}
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.StoreBackend)) {
	case "redis", "sqlite":
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.ResetDelay <= 0 {
		c.ResetDelay = DefaultResetDelay
	}
	if c.ModelTimeout <= 0 {
		c.ModelTimeout = DefaultModelTimeout
	}
	return nil
}
