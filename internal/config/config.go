// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads telejira application configuration from a YAML
// file with environment variable overrides. Credential values may be
// indirected through the OS keyring with a "keyring:<name>" reference.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HousamKak/telejira-sub001/internal/jira"
)

// keyringService is the service name under which telejira secrets are
// stored in the OS keyring.
const keyringService = "telejira"

// Config is the application configuration.
type Config struct {
	Jira     JiraConfig     `yaml:"jira"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// JiraConfig configures the Jira client.
type JiraConfig struct {
	// Domain is the Jira host without a scheme
	// (e.g. "company.atlassian.net").
	Domain string `yaml:"domain"`

	// Email is the account used for basic authentication.
	Email string `yaml:"email"`

	// APIToken is the API token paired with Email. May be a literal
	// value or a "keyring:<name>" reference.
	APIToken string `yaml:"api_token"`

	TimeoutSeconds     int `yaml:"timeout_seconds"`
	MaxRetries         int `yaml:"max_retries"`
	RetryDelayMillis   int `yaml:"retry_delay_ms"`
	PageSize           int `yaml:"page_size"`
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	PoolSize           int `yaml:"pool_size"`
}

// DatabaseConfig configures the local issue mirror.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	// Default: ~/.local/share/telejira/telejira.db
	Path string `yaml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with defaults applied. Domain, Email, and
// APIToken must be supplied via file or environment.
func Default() *Config {
	return &Config{
		Jira: JiraConfig{
			TimeoutSeconds:     30,
			MaxRetries:         3,
			RetryDelayMillis:   1000,
			PageSize:           50,
			RateLimitPerMinute: 30,
			PoolSize:           10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "telejira", "config.yaml"), nil
}

// resolveSecret resolves keyring: references; injectable for tests.
var resolveSecret = keyringGet

// Load reads configuration from path (or the default location when path
// is empty), applies TELEJIRA_* environment overrides, and resolves any
// keyring references. A missing config file is not an error; the
// defaults plus environment must then carry the required values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Fall through to environment-only configuration.
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnv()

	token, err := resolveReference(cfg.Jira.APIToken)
	if err != nil {
		return nil, err
	}
	cfg.Jira.APIToken = token

	return cfg, nil
}

// applyEnv overrides file values from the environment. Numeric values
// outside their range fall back to the current value rather than
// failing, matching the clamping behavior of the client config.
func (c *Config) applyEnv() {
	if v := os.Getenv("TELEJIRA_JIRA_DOMAIN"); v != "" {
		c.Jira.Domain = v
	}
	if v := os.Getenv("TELEJIRA_JIRA_EMAIL"); v != "" {
		c.Jira.Email = v
	}
	if v := os.Getenv("TELEJIRA_JIRA_API_TOKEN"); v != "" {
		c.Jira.APIToken = v
	}

	c.Jira.TimeoutSeconds = envInt("TELEJIRA_TIMEOUT_SECONDS", c.Jira.TimeoutSeconds, 1, 600)
	c.Jira.MaxRetries = envInt("TELEJIRA_MAX_RETRIES", c.Jira.MaxRetries, 0, 10)
	c.Jira.RetryDelayMillis = envInt("TELEJIRA_RETRY_DELAY_MS", c.Jira.RetryDelayMillis, 100, 10000)
	c.Jira.PageSize = envInt("TELEJIRA_PAGE_SIZE", c.Jira.PageSize, 1, 100)
	c.Jira.RateLimitPerMinute = envInt("TELEJIRA_RATE_LIMIT_PER_MINUTE", c.Jira.RateLimitPerMinute, 1, 1000)
	c.Jira.PoolSize = envInt("TELEJIRA_POOL_SIZE", c.Jira.PoolSize, 1, 100)

	if v := os.Getenv("TELEJIRA_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("TELEJIRA_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("TELEJIRA_LOG_FORMAT"); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
}

// ClientConfig converts the application configuration into a client
// configuration. Final clamping and validation happen in jira.NewClient.
func (c *Config) ClientConfig() jira.ClientConfig {
	clientCfg := jira.DefaultClientConfig()
	clientCfg.Host = c.Jira.Domain
	clientCfg.Email = c.Jira.Email
	clientCfg.APIToken = c.Jira.APIToken
	clientCfg.Timeout = time.Duration(c.Jira.TimeoutSeconds) * time.Second
	clientCfg.MaxRetries = c.Jira.MaxRetries
	clientCfg.RetryBaseDelay = time.Duration(c.Jira.RetryDelayMillis) * time.Millisecond
	clientCfg.PageSize = c.Jira.PageSize
	clientCfg.RateQuota = c.Jira.RateLimitPerMinute
	clientCfg.RateWindow = time.Minute
	clientCfg.PoolSize = c.Jira.PoolSize
	return clientCfg
}

// DatabasePath returns the configured database path, or the default
// under the user's local data directory.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "telejira", "telejira.db"), nil
}

// resolveReference resolves a "keyring:<name>" credential reference
// through the OS keyring. Literal values pass through unchanged.
func resolveReference(value string) (string, error) {
	name, ok := strings.CutPrefix(value, "keyring:")
	if !ok {
		return value, nil
	}
	if name == "" {
		return "", fmt.Errorf("empty keyring reference")
	}

	secret, err := resolveSecret(keyringService, name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve keyring:%s: %w", name, err)
	}
	return secret, nil
}

// envInt reads an integer environment variable, keeping the fallback
// when the variable is unset, malformed, or out of range.
func envInt(name string, fallback, lo, hi int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return fallback
	}
	return v
}
