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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Jira.TimeoutSeconds)
	assert.Equal(t, 3, cfg.Jira.MaxRetries)
	assert.Equal(t, 50, cfg.Jira.PageSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
jira:
  domain: company.atlassian.net
  email: dev@company.com
  api_token: token-123
  timeout_seconds: 45
  max_retries: 5
  page_size: 25
database:
  path: /tmp/telejira-test.db
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "company.atlassian.net", cfg.Jira.Domain)
	assert.Equal(t, "dev@company.com", cfg.Jira.Email)
	assert.Equal(t, "token-123", cfg.Jira.APIToken)
	assert.Equal(t, 45, cfg.Jira.TimeoutSeconds)
	assert.Equal(t, 5, cfg.Jira.MaxRetries)
	assert.Equal(t, 25, cfg.Jira.PageSize)
	assert.Equal(t, "/tmp/telejira-test.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "jira: [not a mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
jira:
  domain: file.atlassian.net
  email: file@company.com
  api_token: file-token
  timeout_seconds: 45
`)

	t.Setenv("TELEJIRA_JIRA_DOMAIN", "env.atlassian.net")
	t.Setenv("TELEJIRA_JIRA_API_TOKEN", "env-token")
	t.Setenv("TELEJIRA_TIMEOUT_SECONDS", "60")
	t.Setenv("TELEJIRA_LOG_LEVEL", "DEBUG")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env.atlassian.net", cfg.Jira.Domain)
	assert.Equal(t, "file@company.com", cfg.Jira.Email)
	assert.Equal(t, "env-token", cfg.Jira.APIToken)
	assert.Equal(t, 60, cfg.Jira.TimeoutSeconds)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvironmentOverridesIgnoreBadNumbers(t *testing.T) {
	t.Setenv("TELEJIRA_MAX_RETRIES", "lots")
	t.Setenv("TELEJIRA_PAGE_SIZE", "9999")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	// Malformed and out-of-range values keep the defaults.
	assert.Equal(t, 3, cfg.Jira.MaxRetries)
	assert.Equal(t, 50, cfg.Jira.PageSize)
}

func TestKeyringReference(t *testing.T) {
	orig := resolveSecret
	t.Cleanup(func() { resolveSecret = orig })
	resolveSecret = func(service, name string) (string, error) {
		assert.Equal(t, "telejira", service)
		if name == "jira-token" {
			return "resolved-secret", nil
		}
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}

	path := writeConfig(t, `
jira:
  api_token: keyring:jira-token
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "resolved-secret", cfg.Jira.APIToken)
}

func TestKeyringReferenceMissing(t *testing.T) {
	orig := resolveSecret
	t.Cleanup(func() { resolveSecret = orig })
	resolveSecret = func(service, name string) (string, error) {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}

	path := writeConfig(t, `
jira:
  api_token: keyring:nope
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestKeyringReferenceEmptyName(t *testing.T) {
	path := writeConfig(t, `
jira:
  api_token: "keyring:"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty keyring reference")
}

func TestClientConfigConversion(t *testing.T) {
	path := writeConfig(t, `
jira:
  domain: company.atlassian.net
  email: dev@company.com
  api_token: token-123
  timeout_seconds: 45
  max_retries: 5
  retry_delay_ms: 500
  page_size: 25
  rate_limit_per_minute: 120
  pool_size: 20
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	clientCfg := cfg.ClientConfig()
	assert.Equal(t, "company.atlassian.net", clientCfg.Host)
	assert.Equal(t, 45*time.Second, clientCfg.Timeout)
	assert.Equal(t, 5, clientCfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, clientCfg.RetryBaseDelay)
	assert.Equal(t, 25, clientCfg.PageSize)
	assert.Equal(t, 120, clientCfg.RateQuota)
	assert.Equal(t, time.Minute, clientCfg.RateWindow)
	assert.Equal(t, 20, clientCfg.PoolSize)
}

func TestDatabasePath(t *testing.T) {
	cfg := Default()
	cfg.Database.Path = "/tmp/custom.db"

	path, err := cfg.DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", path)

	cfg.Database.Path = ""
	path, err = cfg.DatabasePath()
	require.NoError(t, err)
	assert.Contains(t, path, filepath.Join("telejira", "telejira.db"))
}
