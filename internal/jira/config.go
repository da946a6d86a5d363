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

package jira

import (
	"fmt"
	"strings"
	"time"
)

// Clamp bounds for numeric configuration fields. Values outside these
// ranges are pulled back to the nearest bound rather than rejected, so a
// misconfigured deployment degrades to safe behavior instead of failing
// at request time.
const (
	MinTimeout = 5 * time.Second
	MaxTimeout = 120 * time.Second

	MinRetries = 0
	MaxRetries = 10

	MinRetryBaseDelay = 100 * time.Millisecond
	MaxRetryBaseDelay = 10 * time.Second

	// MaxBackoff caps the wait between attempts regardless of attempt
	// count or server-advised delay.
	MaxBackoff = 60 * time.Second

	MinPageSize = 1
	MaxPageSize = 100

	MinRateQuota = 1
	MaxRateQuota = 1000

	MinRateWindow = 1 * time.Second
	MaxRateWindow = 10 * time.Minute

	MinPoolSize = 1
	MaxPoolSize = 100
)

// ClientConfig configures one Client instance. Construct with
// DefaultClientConfig and override fields, then pass to NewClient, which
// validates and clamps it. A ClientConfig performs no network I/O.
type ClientConfig struct {
	// Host is the Jira instance host, without a scheme
	// (e.g. "company.atlassian.net").
	Host string

	// Email is the account identifier for basic authentication.
	Email string

	// APIToken is the secret token paired with Email.
	APIToken string

	// Timeout is the per-attempt request timeout. A call that retries
	// may take up to (MaxRetries+1)*Timeout plus backoff waits.
	Timeout time.Duration

	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// RetryBaseDelay is the base delay for exponential backoff.
	RetryBaseDelay time.Duration

	// PageSize is the maximum page size for paginated requests.
	PageSize int

	// RateQuota is the maximum number of requests admitted within any
	// trailing RateWindow.
	RateQuota int

	// RateWindow is the length of the sliding rate-limit window.
	RateWindow time.Duration

	// PoolSize bounds idle pooled connections to the Jira host.
	PoolSize int
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
// Host, Email, and APIToken must still be supplied by the caller.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 1 * time.Second,
		PageSize:       50,
		RateQuota:      30,
		RateWindow:     time.Minute,
		PoolSize:       10,
	}
}

// ConfigError describes an invalid client configuration. It is distinct
// from APIError: configuration problems are detected synchronously at
// construction time and are never retried.
type ConfigError struct {
	// Field is the configuration field that failed validation.
	Field string

	// Reason explains what is wrong with the value.
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("jira config error at %s: %s", e.Field, e.Reason)
}

// validate checks structural fields and clamps numeric ones in place.
// Returns a *ConfigError for problems that cannot be clamped away.
func (c *ClientConfig) validate() error {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		return &ConfigError{Field: "host", Reason: "must be non-empty"}
	}
	if strings.Contains(host, "://") {
		return &ConfigError{Field: "host", Reason: fmt.Sprintf("must not include a scheme, got %q", host)}
	}
	if strings.ContainsAny(host, " \t/") {
		return &ConfigError{Field: "host", Reason: fmt.Sprintf("malformed host %q", host)}
	}
	c.Host = host

	if strings.TrimSpace(c.Email) == "" {
		return &ConfigError{Field: "email", Reason: "must be non-empty"}
	}
	if strings.TrimSpace(c.APIToken) == "" {
		return &ConfigError{Field: "api_token", Reason: "must be non-empty"}
	}

	c.Timeout = clampDuration(c.Timeout, MinTimeout, MaxTimeout)
	c.MaxRetries = clampInt(c.MaxRetries, MinRetries, MaxRetries)
	c.RetryBaseDelay = clampDuration(c.RetryBaseDelay, MinRetryBaseDelay, MaxRetryBaseDelay)
	c.PageSize = clampInt(c.PageSize, MinPageSize, MaxPageSize)
	c.RateQuota = clampInt(c.RateQuota, MinRateQuota, MaxRateQuota)
	c.RateWindow = clampDuration(c.RateWindow, MinRateWindow, MaxRateWindow)
	c.PoolSize = clampInt(c.PoolSize, MinPoolSize, MaxPoolSize)

	return nil
}

// baseURL returns the API root for this configuration.
func (c *ClientConfig) baseURL() string {
	return fmt.Sprintf("https://%s/rest/api/2", c.Host)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
