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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// requestDescriptor describes one logical API call. Descriptors are
// built per call and never persisted.
type requestDescriptor struct {
	// op labels the operation in logs and metrics.
	op string

	method string
	path   string
	query  url.Values
	body   any

	// timeout overrides the configured per-attempt timeout when > 0.
	timeout time.Duration
}

// do is the single funnel every public operation goes through. It drives
// one logical call through admission, the transport, classification, and
// bounded retries with exponential backoff.
//
// Fatal classifications return after exactly one attempt. Retryable ones
// loop back through admission until the retry budget is spent, at which
// point the last classified error is returned.
func (c *Client) do(ctx context.Context, rd requestDescriptor) (json.RawMessage, error) {
	var payload []byte
	if rd.body != nil {
		var err error
		payload, err = json.Marshal(rd.body)
		if err != nil {
			return nil, &APIError{
				Kind:    KindValidation,
				Message: fmt.Sprintf("cannot encode request body: %s", err.Error()),
				Cause:   err,
			}
		}
	}

	// One request ID per logical call, shared by all attempts, so
	// retries correlate in server-side logs.
	requestID := uuid.NewString()

	for attempt := 0; ; attempt++ {
		if err := c.limiter.admit(ctx); err != nil {
			return nil, &APIError{
				Kind:    KindNetwork,
				Message: "cancelled while waiting for rate-limit admission",
				Cause:   err,
			}
		}

		raw, apiErr := c.attempt(ctx, rd, payload, requestID, attempt)
		c.recordAttempt(rd.op, apiErr)
		if apiErr == nil {
			return raw, nil
		}

		if !apiErr.Retryable || attempt >= c.cfg.MaxRetries {
			return nil, apiErr
		}

		delay := backoffDelay(c.cfg.RetryBaseDelay, attempt, apiErr.RetryAfter)
		c.logger.Warn("retrying jira request",
			"operation", rd.op,
			"request_id", requestID,
			"attempt", attempt+1,
			"max_attempts", c.cfg.MaxRetries+1,
			"delay_ms", delay.Milliseconds(),
			"error", apiErr.Error(),
		)
		retriesTotal.WithLabelValues(rd.op).Inc()

		if err := c.backoffSleep(ctx, delay); err != nil {
			return nil, &APIError{
				Kind:    KindNetwork,
				Message: "cancelled during retry backoff",
				Cause:   err,
			}
		}
	}
}

// attempt sends the described request once, with its own timeout, and
// classifies the outcome.
func (c *Client) attempt(ctx context.Context, rd requestDescriptor, payload []byte, requestID string, attempt int) (json.RawMessage, *APIError) {
	timeout := rd.timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := c.baseURL + "/" + strings.TrimPrefix(rd.path, "/")
	if len(rd.query) > 0 {
		endpoint += "?" + rd.query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(attemptCtx, rd.method, endpoint, bodyReader)
	if err != nil {
		return nil, &APIError{
			Kind:    KindValidation,
			Message: fmt.Sprintf("cannot build request: %s", err.Error()),
			Cause:   err,
		}
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", requestID)
	req.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)

	start := time.Now()
	resp, err := c.sessions.acquire().Do(req)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		apiErr := classifyTransport(err, ctx.Err() != nil)
		c.logger.Warn("jira request failed",
			"operation", rd.op,
			"method", rd.method,
			"path", rd.path,
			"request_id", requestID,
			"attempt", attempt+1,
			"duration_ms", durationMS,
			"error", apiErr.Error(),
		)
		return nil, apiErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{
			Kind:      KindNetwork,
			Message:   fmt.Sprintf("cannot read response body: %s", err.Error()),
			Retryable: true,
			Cause:     err,
		}
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		c.logger.Debug("jira request",
			"operation", rd.op,
			"method", rd.method,
			"path", rd.path,
			"request_id", requestID,
			"status", resp.StatusCode,
			"duration_ms", durationMS,
		)
		return raw, nil

	case http.StatusNoContent:
		return json.RawMessage(`{}`), nil

	default:
		apiErr := classifyStatus(resp.StatusCode, resp.Header, raw)
		c.logger.Warn("jira request failed",
			"operation", rd.op,
			"method", rd.method,
			"path", rd.path,
			"request_id", requestID,
			"status", resp.StatusCode,
			"duration_ms", durationMS,
			"error", apiErr.Error(),
		)
		return nil, apiErr
	}
}

// recordAttempt updates the client statistics and metrics for one
// completed attempt. The executor is the only mutator of Statistics.
func (c *Client) recordAttempt(op string, apiErr *APIError) {
	requestsTotal.WithLabelValues(op).Inc()

	c.statsMu.Lock()
	c.stats.TotalRequests++
	c.stats.LastRequestAt = time.Now()
	if apiErr != nil {
		c.stats.TotalErrors++
	}
	c.statsMu.Unlock()

	if apiErr != nil {
		errorsTotal.WithLabelValues(op, string(apiErr.Kind)).Inc()
	}
}

// backoffDelay computes the wait before the next attempt. A
// server-advised delay takes precedence over the exponential schedule;
// either way the result never exceeds MaxBackoff. With no server advice
// the schedule is base * 2^attempt, which is monotonically
// non-decreasing across attempts.
func backoffDelay(base time.Duration, attempt int, advised time.Duration) time.Duration {
	if advised > 0 {
		if advised > MaxBackoff {
			return MaxBackoff
		}
		return advised
	}

	delay := base << uint(attempt)
	if delay <= 0 || delay > MaxBackoff {
		return MaxBackoff
	}
	return delay
}

// decode unmarshals a successful response body into out, converting
// shape violations into classified errors: a 2xx body that does not
// match the expected shape is still a contract failure.
func decode(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{
			Kind:    KindUnexpectedStatus,
			Message: fmt.Sprintf("malformed response body: %s", err.Error()),
			Cause:   err,
		}
	}
	return nil
}
