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

// Package jira provides a resilient client for the Jira Cloud REST API.
//
// The client is built from small, composable pieces:
//   - A validated, clamped ClientConfig that fails fast at construction
//   - A session manager that owns one lazily created, pooled HTTP client
//   - A sliding-window rate limiter shared by all concurrent callers
//   - An error classifier mapping transport outcomes to a typed APIError
//   - A request executor that drives retries with exponential backoff
//
// Every public operation funnels through the executor, so admission
// control, retry policy, and error classification behave identically for
// all endpoints.
//
// # Usage
//
//	cfg := jira.DefaultClientConfig()
//	cfg.Host = "company.atlassian.net"
//	cfg.Email = "bot@company.com"
//	cfg.APIToken = os.Getenv("JIRA_API_TOKEN")
//
//	client, err := jira.NewClient(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	issue, err := client.GetIssue(ctx, "WEBAPP-42")
//
// # Retry Behavior
//
// Transient failures (network errors, timeouts, HTTP 408, 429, 500, 502,
// 503, and 504) are retried with exponential backoff capped at 60s. A
// Retry-After header on a 429 response overrides the computed delay.
// Fatal failures are surfaced immediately after a single attempt.
// Timeouts are per attempt, not per logical call.
//
// # Errors
//
// All request failures are *APIError values discriminated by Kind.
// Configuration problems are *ConfigError values and are never retried.
package jira
