package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultRevision is the Chromium revision pinned for profile sessions.
const DefaultRevision = 1056772

// DefaultLaunchTimeout bounds browser startup.
const DefaultLaunchTimeout = 240 * time.Second

// Config holds all browserprofiles configuration.
type Config struct {
	// RootDir holds browsers/, profiles/ and the telemetry journal.
	RootDir string `yaml:"root_dir"`

	Browser     BrowserConfig     `yaml:"browser"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Logging     LoggingConfig     `yaml:"logging"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// BrowserConfig configures executable resolution and process launch.
type BrowserConfig struct {
	Revision        int    `yaml:"revision"`
	ExecutablePath  string `yaml:"executable_path"` // skips download when set
	Headless        bool   `yaml:"headless"`
	LaunchTimeout   string `yaml:"launch_timeout"`
	StartURL        string `yaml:"start_url"`
	StealthEvasions bool   `yaml:"stealth_evasions"`
}

// FingerprintConfig configures fingerprint resolution.
type FingerprintConfig struct {
	// LanguagePolicy is "override" or "preserve_payload".
	LanguagePolicy string `yaml:"language_policy"`
}

// TelemetryConfig configures the mutation outcome journal.
type TelemetryConfig struct {
	JournalPath string `yaml:"journal_path"` // empty disables the journal
}

// DefaultRootDir returns ~/.browserprofiles, falling back to the working
// directory when no home directory is available.
func DefaultRootDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".browserprofiles"
	}
	return filepath.Join(home, ".browserprofiles")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultRootDir(), "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		RootDir: DefaultRootDir(),
		Browser: BrowserConfig{
			Revision:        DefaultRevision,
			Headless:        false,
			LaunchTimeout:   "240s",
			StartURL:        "https://google.com",
			StealthEvasions: true,
		},
		Fingerprint: FingerprintConfig{
			LanguagePolicy: "override",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("BROWSERPROFILES_ROOT"); dir != "" {
		c.RootDir = dir
	}
	if path := os.Getenv("BROWSERPROFILES_EXECUTABLE"); path != "" {
		c.Browser.ExecutablePath = path
	}
	if rev := os.Getenv("BROWSERPROFILES_REVISION"); rev != "" {
		if n, err := strconv.Atoi(rev); err == nil {
			c.Browser.Revision = n
		}
	}
	if v := os.Getenv("BROWSERPROFILES_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("BROWSERPROFILES_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if path := os.Getenv("BROWSERPROFILES_JOURNAL"); path != "" {
		c.Telemetry.JournalPath = path
	}
}

// GetLaunchTimeout returns the startup bound as a duration.
func (c *Config) GetLaunchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Browser.LaunchTimeout)
	if err != nil || d <= 0 {
		return DefaultLaunchTimeout
	}
	return d
}

// BrowsersDir is where downloaded browser revisions are cached.
func (c *Config) BrowsersDir() string {
	return filepath.Join(c.RootDir, "browsers")
}

// ProfilesDir is the parent of every per-profile data directory.
func (c *Config) ProfilesDir() string {
	return filepath.Join(c.RootDir, "profiles")
}

// ValidLanguagePolicies lists the accepted fingerprint.language_policy values.
var ValidLanguagePolicies = []string{"override", "preserve_payload"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.RootDir == "" {
		return fmt.Errorf("root_dir must not be empty")
	}
	if c.Browser.ExecutablePath == "" && c.Browser.Revision <= 0 {
		return fmt.Errorf("browser.revision must be positive when no executable_path is set")
	}
	if c.Browser.LaunchTimeout != "" {
		if d, err := time.ParseDuration(c.Browser.LaunchTimeout); err != nil || d <= 0 {
			return fmt.Errorf("invalid browser.launch_timeout: %q", c.Browser.LaunchTimeout)
		}
	}

	validPolicy := false
	for _, p := range ValidLanguagePolicies {
		if c.Fingerprint.LanguagePolicy == p {
			validPolicy = true
			break
		}
	}
	if !validPolicy {
		return fmt.Errorf("invalid fingerprint.language_policy: %s (valid: %v)", c.Fingerprint.LanguagePolicy, ValidLanguagePolicies)
	}

	return nil
}
