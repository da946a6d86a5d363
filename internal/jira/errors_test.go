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
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatusPolicy(t *testing.T) {
	tests := []struct {
		status    int
		kind      ErrorKind
		retryable bool
	}{
		{400, KindValidation, false},
		{401, KindAuthentication, false},
		{403, KindPermission, false},
		{404, KindNotFound, false},
		{429, KindRateLimit, true},
		{408, KindServer, true},
		{500, KindServer, true},
		{502, KindServer, true},
		{503, KindServer, true},
		{504, KindServer, true},
		{418, KindUnexpectedStatus, false},
		{301, KindUnexpectedStatus, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			apiErr := classifyStatus(tt.status, http.Header{}, nil)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.retryable, apiErr.Retryable)
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestClassifyStatusRetryAfter(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "7")

	apiErr := classifyStatus(429, header, nil)
	assert.Equal(t, KindRateLimit, apiErr.Kind)
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
	assert.True(t, apiErr.Retryable)
}

func TestClassifyStatusAuthenticationMessage(t *testing.T) {
	apiErr := classifyStatus(401, http.Header{}, []byte(`{"errorMessages":["whatever the server said"]}`))
	assert.Equal(t, "authentication failed, check email and API token", apiErr.Message)
}

func TestClassifyStatusJiraErrorMessages(t *testing.T) {
	body := []byte(`{"errorMessages":["Error in the JQL Query: Expecting operator but got 'x'.","Second problem."]}`)
	apiErr := classifyStatus(400, http.Header{}, body)

	assert.Equal(t, KindValidation, apiErr.Kind)
	assert.Equal(t, "Error in the JQL Query: Expecting operator but got 'x'.; Second problem.", apiErr.Message)
	assert.Contains(t, apiErr.Body, "errorMessages")
}

func TestClassifyStatusFieldErrors(t *testing.T) {
	body := []byte(`{"errorMessages":[],"errors":{"summary":"Summary is required.","priority":"Priority is invalid."}}`)
	apiErr := classifyStatus(400, http.Header{}, body)
	assert.Equal(t, "priority: Priority is invalid.; summary: Summary is required.", apiErr.Message)
}

func TestClassifyStatusNonJSONBody(t *testing.T) {
	apiErr := classifyStatus(503, http.Header{}, []byte("<html>Service Unavailable</html>"))
	assert.Equal(t, KindServer, apiErr.Kind)
	assert.Equal(t, "<html>Service Unavailable</html>", apiErr.Body["message"])
}

func TestClassifyStatusEmptyBody(t *testing.T) {
	apiErr := classifyStatus(500, http.Header{}, nil)
	assert.Equal(t, "HTTP 500", apiErr.Message)
	assert.Nil(t, apiErr.Body)
}

func TestClassifyTransport(t *testing.T) {
	t.Run("parent cancellation is fatal", func(t *testing.T) {
		apiErr := classifyTransport(fmt.Errorf("Get: %w", context.Canceled), true)
		assert.Equal(t, KindNetwork, apiErr.Kind)
		assert.False(t, apiErr.Retryable)
	})

	t.Run("attempt deadline is retryable", func(t *testing.T) {
		apiErr := classifyTransport(fmt.Errorf("Get: %w", context.DeadlineExceeded), false)
		assert.Equal(t, KindNetwork, apiErr.Kind)
		assert.True(t, apiErr.Retryable)
	})

	t.Run("connection failure is retryable", func(t *testing.T) {
		apiErr := classifyTransport(errors.New("dial tcp: connection refused"), false)
		assert.Equal(t, KindNetwork, apiErr.Kind)
		assert.True(t, apiErr.Retryable)
		assert.Contains(t, apiErr.Message, "connection failed")
	})
}

func TestAPIErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	apiErr := &APIError{Kind: KindNetwork, Message: "connection failed", Cause: cause}

	assert.ErrorIs(t, apiErr, cause)
	assert.Equal(t, "network", apiErr.ErrorType())

	wrapped := fmt.Errorf("operation failed: %w", apiErr)
	var target *APIError
	require.True(t, AsAPIError(wrapped, &target))
	assert.Equal(t, KindNetwork, target.Kind)
}

func TestAPIErrorString(t *testing.T) {
	withStatus := &APIError{Kind: KindNotFound, Message: "Issue does not exist", StatusCode: 404}
	assert.Equal(t, "jira: not_found [HTTP 404]: Issue does not exist", withStatus.Error())

	withoutStatus := &APIError{Kind: KindNetwork, Message: "request timed out"}
	assert.Equal(t, "jira: network: request timed out", withoutStatus.Error())
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3"))
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))

	future := time.Now().Add(45 * time.Second).UTC().Format(http.TimeFormat)
	got := parseRetryAfter(future)
	assert.InDelta(t, (45 * time.Second).Seconds(), got.Seconds(), 2)

	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	assert.Equal(t, time.Duration(0), parseRetryAfter(past))
}
