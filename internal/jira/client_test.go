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
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient builds a Client pointed at a local test server, with the
// backoff sleeper replaced by a recorder so retry schedules can be
// asserted without real waiting.
type testClient struct {
	*Client

	mu     sync.Mutex
	sleeps []time.Duration
}

func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*ClientConfig)) *testClient {
	t.Helper()

	cfg := DefaultClientConfig()
	cfg.Host = "company.atlassian.net"
	cfg.Email = "dev@company.com"
	cfg.APIToken = "token-123"
	cfg.RetryBaseDelay = 100 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	tc := &testClient{Client: client}
	client.baseURL = srv.URL + "/rest/api/2"
	client.backoffSleep = func(ctx context.Context, d time.Duration) error {
		tc.mu.Lock()
		tc.sleeps = append(tc.sleeps, d)
		tc.mu.Unlock()
		return ctx.Err()
	}
	return tc
}

func (tc *testClient) recordedSleeps() []time.Duration {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]time.Duration(nil), tc.sleeps...)
}

func jsonResponse(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestCreateIssueSingleRequest(t *testing.T) {
	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/2/issue", r.URL.Path)

		email, token, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "dev@company.com", email)
		assert.Equal(t, "token-123", token)

		var payload struct {
			Fields map[string]any `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Crash on login", payload.Fields["summary"])
		assert.NotContains(t, payload.Fields, "description")

		jsonResponse(w, http.StatusCreated, `{"id":"10042","key":"WEBAPP-42","self":"https://company.atlassian.net/rest/api/2/issue/10042"}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	issue, err := tc.CreateIssue(context.Background(), CreateIssueInput{
		ProjectKey: "WEBAPP",
		Summary:    "Crash on login",
		IssueType:  "Bug",
	})
	require.NoError(t, err)
	assert.Equal(t, "WEBAPP-42", issue.Key)

	// A successful create is exactly one request: no re-fetch.
	assert.EqualValues(t, 1, requests.Load())
	assert.Empty(t, tc.recordedSleeps())

	stats := tc.Stats()
	assert.EqualValues(t, 1, stats.TotalRequests)
	assert.EqualValues(t, 0, stats.TotalErrors)
	assert.False(t, stats.LastRequestAt.IsZero())
}

func TestSearchIssuesBadJQLIsFatal(t *testing.T) {
	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		jsonResponse(w, http.StatusBadRequest, `{"errorMessages":["Error in the JQL Query: Expecting operator but got 'WEBAPP'."]}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	_, err := tc.SearchIssues(context.Background(), "project WEBAPP", 0, 0, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, AsAPIError(err, &apiErr))
	assert.Equal(t, KindValidation, apiErr.Kind)
	assert.Contains(t, apiErr.Message, "Error in the JQL Query")
	assert.False(t, apiErr.Retryable)

	// Fatal classification: exactly one attempt, no backoff.
	assert.EqualValues(t, 1, requests.Load())
	assert.Empty(t, tc.recordedSleeps())
}

func TestRetryRecoversFromTransientOutage(t *testing.T) {
	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if n <= 2 {
			jsonResponse(w, http.StatusServiceUnavailable, `{"message":"upstream restarting"}`)
			return
		}
		jsonResponse(w, http.StatusOK, `{"accountId":"abc123","displayName":"Dev Person","active":true}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	user, err := tc.GetCurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Dev Person", user.DisplayName)

	assert.EqualValues(t, 3, requests.Load())

	sleeps := tc.recordedSleeps()
	require.Len(t, sleeps, 2)
	assert.Equal(t, 100*time.Millisecond, sleeps[0])
	assert.Equal(t, 200*time.Millisecond, sleeps[1])

	stats := tc.Stats()
	assert.EqualValues(t, 3, stats.TotalRequests)
	assert.EqualValues(t, 2, stats.TotalErrors)
}

func TestRetryHonorsRetryAfter(t *testing.T) {
	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			jsonResponse(w, http.StatusTooManyRequests, `{"errorMessages":["Rate limit exceeded"]}`)
			return
		}
		jsonResponse(w, http.StatusOK, `{"accountId":"abc123","displayName":"Dev Person"}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	_, err := tc.GetCurrentUser(context.Background())
	require.NoError(t, err)

	// Server advice replaces the exponential schedule.
	sleeps := tc.recordedSleeps()
	require.Len(t, sleeps, 1)
	assert.Equal(t, 2*time.Second, sleeps[0])
}

func TestRetryBudgetExhausted(t *testing.T) {
	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		jsonResponse(w, http.StatusBadGateway, `{"message":"bad gateway"}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, func(cfg *ClientConfig) {
		cfg.MaxRetries = 2
	})

	_, err := tc.GetCurrentUser(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, AsAPIError(err, &apiErr))
	assert.Equal(t, KindServer, apiErr.Kind)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)

	// Initial attempt plus two retries.
	assert.EqualValues(t, 3, requests.Load())
	assert.Len(t, tc.recordedSleeps(), 2)
}

func TestAuthenticationFailureIsFatal(t *testing.T) {
	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		jsonResponse(w, http.StatusUnauthorized, `{"errorMessages":["AUTHENTICATED_FAILED"]}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	_, err := tc.GetCurrentUser(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, AsAPIError(err, &apiErr))
	assert.Equal(t, KindAuthentication, apiErr.Kind)
	assert.Equal(t, "authentication failed, check email and API token", apiErr.Message)

	assert.EqualValues(t, 1, requests.Load())
	assert.False(t, tc.TestConnection(context.Background()))
}

func TestValidationFailuresNeverReachTheWire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent")
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	checks := []error{
		func() error { _, err := tc.SearchIssues(context.Background(), "  ", 0, 0, nil); return err }(),
		func() error { _, err := tc.SearchIssues(context.Background(), "order by created", 0, -5, nil); return err }(),
		func() error { _, err := tc.GetIssue(context.Background(), ""); return err }(),
		func() error { _, err := tc.GetProject(context.Background(), " "); return err }(),
		func() error { _, err := tc.AddComment(context.Background(), "WEBAPP-1", ""); return err }(),
		func() error {
			_, err := tc.CreateIssue(context.Background(), CreateIssueInput{Summary: "x", IssueType: "Bug"})
			return err
		}(),
		tc.TransitionIssue(context.Background(), "WEBAPP-1", ""),
		tc.AssignIssue(context.Background(), "", "abc123"),
	}

	for i, err := range checks {
		var apiErr *APIError
		require.True(t, AsAPIError(err, &apiErr), "check %d", i)
		assert.Equal(t, KindValidation, apiErr.Kind, "check %d", i)
	}

	// Rejected calls consume neither rate-limit slots nor counters.
	assert.Equal(t, 0, tc.limiter.recorded())
	assert.EqualValues(t, 0, tc.Stats().TotalRequests)
}

func TestTransitionIssueNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue/WEBAPP-42/transitions", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)
	require.NoError(t, tc.TransitionIssue(context.Background(), "WEBAPP-42", "31"))
}

func TestAssignIssueNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/rest/api/2/issue/WEBAPP-42/assignee", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "abc123", payload["accountId"])

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)
	require.NoError(t, tc.AssignIssue(context.Background(), "WEBAPP-42", "abc123"))
}

func TestRequestIDStableAcrossRetries(t *testing.T) {
	var mu sync.Mutex
	var ids []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids = append(ids, r.Header.Get("X-Request-ID"))
		n := len(ids)
		mu.Unlock()

		if n < 3 {
			jsonResponse(w, http.StatusServiceUnavailable, `{}`)
			return
		}
		jsonResponse(w, http.StatusOK, `{"accountId":"abc123","displayName":"Dev Person"}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	_, err := tc.GetCurrentUser(context.Background())
	require.NoError(t, err)

	require.Len(t, ids, 3)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])
}

func TestAttemptTimeoutIsRetryable(t *testing.T) {
	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		jsonResponse(w, http.StatusOK, `{"ok":true}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	raw, err := tc.do(context.Background(), requestDescriptor{
		op:      "probe",
		method:  http.MethodGet,
		path:    "myself",
		timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))

	assert.EqualValues(t, 2, requests.Load())
}

func TestParentCancellationIsFatal(t *testing.T) {
	started := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(500 * time.Millisecond)
		jsonResponse(w, http.StatusOK, `{}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := tc.GetCurrentUser(ctx)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, AsAPIError(err, &apiErr))
	assert.Equal(t, KindNetwork, apiErr.Kind)
	assert.False(t, apiErr.Retryable)
	assert.Empty(t, tc.recordedSleeps())
}

func TestCloseThenReuse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, `{"accountId":"abc123","displayName":"Dev Person"}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	_, err := tc.GetCurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, tc.sessions.creations())

	require.NoError(t, tc.Close())
	require.NoError(t, tc.Close())

	_, err = tc.GetCurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, tc.sessions.creations())
}

func TestGetProjectsClampsPageSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/project/search", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("maxResults"))
		jsonResponse(w, http.StatusOK, `{"values":[{"id":"1","key":"WEBAPP","name":"Web App"},{"id":"2","key":"OPS","name":"Operations"}]}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	projects, err := tc.GetProjects(context.Background(), 500)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "WEBAPP", projects[0].Key)
}

func TestGetProjectNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusNotFound, `{"errorMessages":["No project could be found with key 'NOPE'."]}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	_, err := tc.GetProject(context.Background(), "NOPE")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, AsAPIError(err, &apiErr))
	assert.Equal(t, KindNotFound, apiErr.Kind)
	assert.Contains(t, apiErr.Message, "NOPE")
}

func TestSearchIssuesDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/2/search", r.URL.Path)

		var payload struct {
			JQL        string   `json:"jql"`
			MaxResults int      `json:"maxResults"`
			StartAt    int      `json:"startAt"`
			Fields     []string `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, `project = "WEBAPP"`, payload.JQL)
		assert.Equal(t, 50, payload.MaxResults)
		assert.Contains(t, payload.Fields, "summary")
		assert.Contains(t, payload.Fields, "status")

		jsonResponse(w, http.StatusOK, `{
			"issues":[{"id":"10042","key":"WEBAPP-42","fields":{"summary":"Crash on login","status":{"name":"In Progress"}}}],
			"total":1,"startAt":0,"maxResults":50
		}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	result, err := tc.SearchIssues(context.Background(), `project = "WEBAPP"`, 0, 0, nil)
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "WEBAPP-42", result.Issues[0].Key)
	assert.Equal(t, "In Progress", result.Issues[0].Fields.Status.Name)
	assert.Equal(t, 1, result.Total)
}

func TestGetCurrentUserShapeViolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, `{"active":true}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	_, err := tc.GetCurrentUser(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, AsAPIError(err, &apiErr))
	assert.Equal(t, KindUnexpectedStatus, apiErr.Kind)
}

func TestListComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue/WEBAPP-42/comment", r.URL.Path)
		jsonResponse(w, http.StatusOK, `{"comments":[
			{"id":"1","body":"First","author":{"displayName":"Dev Person"}},
			{"id":"2","body":"Second"}
		]}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	comments, err := tc.ListComments(context.Background(), "WEBAPP-42")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "First", comments[0].Body)
	assert.Equal(t, "Dev Person", comments[0].Author.DisplayName)
	assert.Nil(t, comments[1].Author)
}

func TestGetAvailableTransitions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, `{"transitions":[
			{"id":"11","name":"To Do","to":{"name":"To Do"}},
			{"id":"31","name":"Done","to":{"name":"Done"}}
		]}`)
	}))
	defer srv.Close()

	tc := newTestClient(t, srv, nil)

	transitions, err := tc.GetAvailableTransitions(context.Background(), "WEBAPP-42")
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, "31", transitions[1].ID)
	assert.Equal(t, "Done", transitions[1].To.Name)
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/rest/api/2/myself":
				jsonResponse(w, http.StatusOK, `{"accountId":"abc123","displayName":"Dev Person"}`)
			case "/rest/api/2/project/search":
				jsonResponse(w, http.StatusOK, `{"values":[{"id":"1","key":"WEBAPP","name":"Web App"}]}`)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer srv.Close()

		tc := newTestClient(t, srv, nil)

		status := tc.HealthCheck(context.Background())
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "Dev Person", status.User)
		assert.Equal(t, 1, status.Projects)
		assert.EqualValues(t, 2, status.Stats.TotalRequests)
		assert.Empty(t, status.Err)
	})

	t.Run("unhealthy reports instead of failing", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			jsonResponse(w, http.StatusUnauthorized, `{}`)
		}))
		defer srv.Close()

		tc := newTestClient(t, srv, nil)

		status := tc.HealthCheck(context.Background())
		assert.Equal(t, "unhealthy", status.Status)
		assert.Contains(t, status.Err, "authentication failed")
		assert.EqualValues(t, 1, status.Stats.TotalRequests)
		assert.EqualValues(t, 1, status.Stats.TotalErrors)
	})
}
