// Package config loads the harness configuration: target URLs, browser
// launch options, wait timing and logging.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"dev/bravebird/ui-harness/pkg/wait"
)

// Config is the harness configuration
type Config struct {
	URLs          map[string]string `yaml:"urls"`
	Browser       BrowserConfig     `yaml:"browser"`
	Wait          WaitConfig        `yaml:"wait"`
	Log           LogConfig         `yaml:"log"`
	ScreenshotDir string            `yaml:"screenshot_dir"`
	FeaturesDir   string            `yaml:"features_dir"`
}

// BrowserConfig controls how the browser is launched
type BrowserConfig struct {
	Headless   bool   `yaml:"headless"`
	Bin        string `yaml:"bin"`
	ClearCache bool   `yaml:"clear_cache"`
}

// WaitConfig is the timing policy applied to every element lookup
type WaitConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		URLs: map[string]string{
			"wikipedia": "https://www.wikipedia.org/",
		},
		Browser: BrowserConfig{
			Headless:   true,
			ClearCache: true,
		},
		Wait: WaitConfig{
			Timeout:      wait.DefaultTimeout,
			PollInterval: wait.DefaultInterval,
		},
		Log:           LogConfig{Level: "info"},
		ScreenshotDir: "/tmp/screenshots",
		FeaturesDir:   "features",
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path falls back to UIHARNESS_CONFIG; if that is unset too only
// defaults and environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("UIHARNESS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Browser.Bin = getEnvOrDefault("CHROME_BIN", c.Browser.Bin)
	c.ScreenshotDir = getEnvOrDefault("SCREENSHOT_DIR", c.ScreenshotDir)
	c.FeaturesDir = getEnvOrDefault("FEATURES_DIR", c.FeaturesDir)
	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)

	if v := os.Getenv("HEADLESS"); v != "" {
		headless, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid HEADLESS value %q: %w", v, err)
		}
		c.Browser.Headless = headless
	}
	if v := os.Getenv("WAIT_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid WAIT_TIMEOUT value %q: %w", v, err)
		}
		c.Wait.Timeout = timeout
	}
	return nil
}

// Validate rejects timing policies the wait primitive cannot honor
func (c *Config) Validate() error {
	var errs []error
	if c.Wait.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("wait.timeout must be positive, got %s", c.Wait.Timeout))
	}
	if c.Wait.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("wait.poll_interval must be positive, got %s", c.Wait.PollInterval))
	} else if c.Wait.Timeout > 0 && c.Wait.PollInterval > c.Wait.Timeout {
		errs = append(errs, fmt.Errorf("wait.poll_interval %s exceeds wait.timeout %s", c.Wait.PollInterval, c.Wait.Timeout))
	}
	if c.ScreenshotDir == "" {
		errs = append(errs, errors.New("screenshot_dir must not be empty"))
	}
	return errors.Join(errs...)
}

// URL returns the configured URL for name
func (c *Config) URL(name string) (string, error) {
	url, ok := c.URLs[name]
	if !ok || url == "" {
		return "", fmt.Errorf("no url configured for %q", name)
	}
	return url, nil
}

// WaitPolicy returns the timing policy for finders and waiters
func (c *Config) WaitPolicy() wait.Wait {
	return wait.Wait{
		Timeout:  c.Wait.Timeout,
		Interval: c.Wait.PollInterval,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
