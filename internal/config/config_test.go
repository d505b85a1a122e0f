// Package config provides configuration management for factura.
package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir     string
	origHomeDir string
}

func (s *ConfigSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "config-test-*")
	s.Require().NoError(err)

	// Save and override HOME
	s.origHomeDir = os.Getenv("HOME")
	os.Setenv("HOME", s.tempDir)
}

func (s *ConfigSuite) TearDownTest() {
	os.Setenv("HOME", s.origHomeDir)
	os.RemoveAll(s.tempDir)
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

// TestDefault tests default configuration values.
func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultListenAddr, cfg.ListenAddr)
	s.Equal("redis", cfg.StoreBackend)
	s.Equal("localhost:6379", cfg.RedisAddr)
	s.Equal(DefaultModel, cfg.Model)
	s.Equal(DefaultResetDelay, cfg.ResetDelay)
	s.Equal(DefaultModelTimeout, cfg.ModelTimeout)
}

// TestDataDir tests data directory path.
func (s *ConfigSuite) TestDataDir() {
	dir := DataDir()
	s.Contains(dir, ".factura")
}

// TestDBPath tests database path.
func (s *ConfigSuite) TestDBPath() {
	path := DBPath()
	s.Contains(path, "factura.db")
}

// TestSettingsPath tests settings file path.
func (s *ConfigSuite) TestSettingsPath() {
	path := SettingsPath()
	s.Contains(path, "settings.yaml")
}

// TestEnsureDataDir tests data directory creation.
func (s *ConfigSuite) TestEnsureDataDir() {
	err := EnsureDataDir()
	s.NoError(err)

	info, err := os.Stat(DataDir())
	s.Require().NoError(err)
	s.True(info.IsDir())
}

// TestLoadMissingFile tests that Load falls back to defaults when no
// settings file exists.
func (s *ConfigSuite) TestLoadMissingFile() {
	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(DefaultListenAddr, cfg.ListenAddr)
}

// TestSaveAndLoad tests round-tripping settings through the file.
func (s *ConfigSuite) TestSaveAndLoad() {
	cfg := Default()
	cfg.ListenAddr = ":9100"
	cfg.StoreBackend = "sqlite"
	cfg.ResetDelay = 2 * time.Second
	s.Require().NoError(cfg.Save())

	loaded, err := Load()
	s.Require().NoError(err)
	s.Equal(":9100", loaded.ListenAddr)
	s.Equal("sqlite", loaded.StoreBackend)
	s.Equal(2*time.Second, loaded.ResetDelay)
}

// TestEnvOverrides tests environment variable overrides.
func (s *ConfigSuite) TestEnvOverrides() {
	s.T().Setenv("REDIS_HOST", "redis.internal")
	s.T().Setenv("REDIS_PORT", "6380")
	s.T().Setenv("LLM_MODEL", "gpt-4o-mini")

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal("redis.internal:6380", cfg.RedisAddr)
	s.Equal("gpt-4o-mini", cfg.Model)
}

// TestLoadRejectsUnknownBackend tests backend validation.
func (s *ConfigSuite) TestLoadRejectsUnknownBackend() {
	cfg := Default()
	cfg.StoreBackend = "dynamo"
	s.Require().NoError(cfg.Save())

	_, err := Load()
	s.Error(err)
}

// TestGetWithoutLoad tests the defaults fallback.
func (s *ConfigSuite) TestGetWithoutLoad() {
	s.NotNil(Get())
}
