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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrorKind discriminates APIError values. Retry decisions branch on the
// Retryable field, not on Kind, so adding a kind never changes retry
// behavior by accident.
type ErrorKind string

const (
	// KindValidation covers HTTP 400 responses and synchronous argument
	// validation failures.
	KindValidation ErrorKind = "validation"

	// KindAuthentication covers HTTP 401.
	KindAuthentication ErrorKind = "authentication"

	// KindPermission covers HTTP 403.
	KindPermission ErrorKind = "permission"

	// KindNotFound covers HTTP 404.
	KindNotFound ErrorKind = "not_found"

	// KindRateLimit covers HTTP 429, carrying any server-advised delay.
	KindRateLimit ErrorKind = "rate_limit"

	// KindServer covers HTTP 408, 500, 502, 503, and 504.
	KindServer ErrorKind = "server"

	// KindNetwork covers connection failures and attempt timeouts.
	KindNetwork ErrorKind = "network"

	// KindUnexpectedStatus covers any status the policy table does not
	// name, including 2xx responses whose body violates the shape the
	// operation asserts.
	KindUnexpectedStatus ErrorKind = "unexpected_status"
)

// APIError is the single error type surfaced for failed requests. One
// value describes the outcome of one classified attempt; when retries are
// exhausted the caller sees the last attempt's error.
type APIError struct {
	// Kind is the error category.
	Kind ErrorKind

	// Message is a human-readable description, built from the server's
	// errorMessages list when present.
	Message string

	// StatusCode is the HTTP status, or 0 for network failures.
	StatusCode int

	// Body is the decoded error response body, if the server sent one.
	Body map[string]any

	// RetryAfter is the server-advised wait before the next attempt,
	// or 0 if the server did not advise one.
	RetryAfter time.Duration

	// Retryable reports whether reattempting this request can help.
	Retryable bool

	// Cause is the underlying transport error, if any.
	Cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("jira: %s [HTTP %d]: %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("jira: %s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// ErrorType returns the error category as a string.
func (e *APIError) ErrorType() string {
	return string(e.Kind)
}

// IsRetryable reports whether the failed operation should be retried.
func (e *APIError) IsRetryable() bool {
	return e.Retryable
}

// AsAPIError reports whether err or anything it wraps is an *APIError,
// setting target when it is.
func AsAPIError(err error, target **APIError) bool {
	return errors.As(err, target)
}

// validationError builds the APIError used for synchronous argument
// validation. These never reach the executor, so they consume neither a
// retry budget nor a rate-limit slot.
func validationError(format string, args ...any) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// classifyStatus maps a non-2xx HTTP response to an APIError per the
// status policy table.
func classifyStatus(status int, header http.Header, body []byte) *APIError {
	decoded := decodeErrorBody(body)
	msg := errorMessage(status, decoded)

	apiErr := &APIError{
		Message:    msg,
		StatusCode: status,
		Body:       decoded,
	}

	switch status {
	case http.StatusBadRequest:
		apiErr.Kind = KindValidation
	case http.StatusUnauthorized:
		apiErr.Kind = KindAuthentication
		apiErr.Message = "authentication failed, check email and API token"
	case http.StatusForbidden:
		apiErr.Kind = KindPermission
	case http.StatusNotFound:
		apiErr.Kind = KindNotFound
	case http.StatusTooManyRequests:
		apiErr.Kind = KindRateLimit
		apiErr.Retryable = true
		apiErr.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		apiErr.Kind = KindServer
		apiErr.Retryable = true
	default:
		apiErr.Kind = KindUnexpectedStatus
	}

	return apiErr
}

// classifyTransport maps a failed HTTP round trip to an APIError.
// Cancellation of the parent context is not retryable: the caller gave
// up. Expiry of the per-attempt deadline is retryable: only the attempt
// timed out.
func classifyTransport(err error, parentCancelled bool) *APIError {
	if parentCancelled || errors.Is(err, context.Canceled) {
		return &APIError{
			Kind:    KindNetwork,
			Message: "request cancelled",
			Cause:   err,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{
			Kind:      KindNetwork,
			Message:   "request timed out",
			Retryable: true,
			Cause:     err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{
			Kind:      KindNetwork,
			Message:   "request timed out",
			Retryable: true,
			Cause:     err,
		}
	}

	return &APIError{
		Kind:      KindNetwork,
		Message:   fmt.Sprintf("connection failed: %s", err.Error()),
		Retryable: true,
		Cause:     err,
	}
}

// decodeErrorBody decodes a JSON error body. Non-JSON bodies are folded
// into a synthetic message field so callers always see a map.
func decodeErrorBody(body []byte) map[string]any {
	if len(body) == 0 {
		return nil
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return map[string]any{"message": strings.TrimSpace(string(body))}
	}
	return decoded
}

// errorMessage extracts a readable message from a decoded Jira error
// body. Jira reports either an errorMessages list, a message string, or
// a field-keyed errors object.
func errorMessage(status int, body map[string]any) string {
	if msgs, ok := body["errorMessages"].([]any); ok && len(msgs) > 0 {
		parts := make([]string, 0, len(msgs))
		for _, m := range msgs {
			if s, ok := m.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}

	if msg, ok := body["message"].(string); ok && msg != "" {
		return msg
	}

	if fieldErrs, ok := body["errors"].(map[string]any); ok && len(fieldErrs) > 0 {
		parts := make([]string, 0, len(fieldErrs))
		for field, v := range fieldErrs {
			if s, ok := v.(string); ok {
				parts = append(parts, fmt.Sprintf("%s: %s", field, s))
			}
		}
		if len(parts) > 0 {
			sort.Strings(parts)
			return strings.Join(parts, "; ")
		}
	}

	return fmt.Sprintf("HTTP %d", status)
}

// parseRetryAfter parses a Retry-After header value. Supports both the
// delta-seconds and HTTP-date forms. Returns 0 for missing or malformed
// values, and for dates already in the past.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if delay := time.Until(at); delay > 0 {
			return delay
		}
	}

	return 0
}
