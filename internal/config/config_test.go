package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BROWSERPROFILES_ROOT", "BROWSERPROFILES_EXECUTABLE", "BROWSERPROFILES_REVISION",
		"BROWSERPROFILES_HEADLESS", "BROWSERPROFILES_LOG_LEVEL", "BROWSERPROFILES_JOURNAL",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Browser.Revision != DefaultRevision {
		t.Errorf("expected Revision=%d, got %d", DefaultRevision, cfg.Browser.Revision)
	}
	if cfg.GetLaunchTimeout() != 240*time.Second {
		t.Errorf("expected 240s launch timeout, got %s", cfg.GetLaunchTimeout())
	}
	if cfg.Fingerprint.LanguagePolicy != "override" {
		t.Errorf("expected override language policy, got %s", cfg.Fingerprint.LanguagePolicy)
	}
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.RootDir = "/srv/profiles"
	cfg.Browser.Headless = true
	cfg.Browser.LaunchTimeout = "90s"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/profiles", loaded.RootDir)
	assert.True(t, loaded.Browser.Headless)
	assert.Equal(t, 90*time.Second, loaded.GetLaunchTimeout())
	assert.Equal(t, "/srv/profiles/profiles", loaded.ProfilesDir())
	assert.Equal(t, "/srv/profiles/browsers", loaded.BrowsersDir())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BROWSERPROFILES_ROOT", "/tmp/bp")
	t.Setenv("BROWSERPROFILES_EXECUTABLE", "/usr/bin/chromium")
	t.Setenv("BROWSERPROFILES_REVISION", "42")
	t.Setenv("BROWSERPROFILES_HEADLESS", "true")
	t.Setenv("BROWSERPROFILES_JOURNAL", "/tmp/bp/outcomes.db")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/tmp/bp", cfg.RootDir)
	assert.Equal(t, "/usr/bin/chromium", cfg.Browser.ExecutablePath)
	assert.Equal(t, 42, cfg.Browser.Revision)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "/tmp/bp/outcomes.db", cfg.Telemetry.JournalPath)
}

func TestConfig_EnvOverrides_IgnoresMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("BROWSERPROFILES_REVISION", "latest")
	t.Setenv("BROWSERPROFILES_HEADLESS", "sometimes")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, DefaultRevision, cfg.Browser.Revision)
	assert.False(t, cfg.Browser.Headless)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty root", func(c *Config) { c.RootDir = "" }},
		{"no revision and no executable", func(c *Config) { c.Browser.Revision = 0 }},
		{"bad timeout", func(c *Config) { c.Browser.LaunchTimeout = "soon" }},
		{"negative timeout", func(c *Config) { c.Browser.LaunchTimeout = "-1s" }},
		{"unknown policy", func(c *Config) { c.Fingerprint.LanguagePolicy = "merge" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	cfg.Browser.Revision = 0
	cfg.Browser.ExecutablePath = "/opt/chrome/chrome"
	assert.NoError(t, cfg.Validate())
}
