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
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client is a resilient Jira REST API client. It is safe for concurrent
// use; all operations share one rate-limit window and one pooled
// connection.
type Client struct {
	cfg     ClientConfig
	baseURL string
	logger  *slog.Logger

	limiter  *rateLimiter
	sessions *sessionManager

	// backoffSleep is injectable for tests that assert wait schedules.
	backoffSleep func(ctx context.Context, d time.Duration) error

	statsMu sync.Mutex
	stats   Statistics
}

// NewClient validates and clamps cfg and returns a ready client. No
// network I/O happens here; the pooled connection is created on first
// use. A nil logger falls back to slog.Default.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:          cfg,
		baseURL:      cfg.baseURL(),
		logger:       logger.With("component", "jira"),
		limiter:      newRateLimiter(cfg.RateQuota, cfg.RateWindow),
		sessions:     newSessionManager(cfg.PoolSize),
		backoffSleep: sleepContext,
	}, nil
}

// Close releases the pooled connection. Idempotent; a later operation
// transparently creates a fresh connection.
func (c *Client) Close() error {
	c.sessions.close()
	return nil
}

// Stats returns a copy of the request counters.
func (c *Client) Stats() Statistics {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// GetCurrentUser returns the account tied to the API token.
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	raw, err := c.do(ctx, requestDescriptor{
		op:     "get_current_user",
		method: http.MethodGet,
		path:   "myself",
	})
	if err != nil {
		return nil, err
	}

	var user User
	if err := decode(raw, &user); err != nil {
		return nil, err
	}
	if user.AccountID == "" && user.DisplayName == "" {
		return nil, &APIError{
			Kind:    KindUnexpectedStatus,
			Message: "identity response carries neither accountId nor displayName",
		}
	}
	return &user, nil
}

// TestConnection reports whether the API is reachable with the
// configured credentials.
func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.GetCurrentUser(ctx)
	return err == nil
}

// GetProjects lists accessible projects, up to maxResults. Zero or
// negative maxResults uses the configured page size.
func (c *Client) GetProjects(ctx context.Context, maxResults int) ([]Project, error) {
	if maxResults <= 0 {
		maxResults = c.cfg.PageSize
	}
	if maxResults > MaxPageSize {
		maxResults = MaxPageSize
	}

	query := url.Values{}
	query.Set("maxResults", strconv.Itoa(maxResults))
	query.Set("expand", "description,lead,projectKeys,projectCategory")

	raw, err := c.do(ctx, requestDescriptor{
		op:     "get_projects",
		method: http.MethodGet,
		path:   "project/search",
		query:  query,
	})
	if err != nil {
		return nil, err
	}

	var page projectPage
	if err := decode(raw, &page); err != nil {
		return nil, err
	}
	return page.Values, nil
}

// GetProject fetches one project by key.
func (c *Client) GetProject(ctx context.Context, key string) (*Project, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, validationError("project key must be non-empty")
	}

	query := url.Values{}
	query.Set("expand", "description,lead,projectKeys,projectCategory")

	raw, err := c.do(ctx, requestDescriptor{
		op:     "get_project",
		method: http.MethodGet,
		path:   "project/" + url.PathEscape(key),
		query:  query,
	})
	if err != nil {
		return nil, err
	}

	var project Project
	if err := decode(raw, &project); err != nil {
		return nil, err
	}
	if project.Key == "" {
		return nil, &APIError{
			Kind:    KindUnexpectedStatus,
			Message: fmt.Sprintf("project response for %q carries no key", key),
		}
	}
	return &project, nil
}

// SearchIssues runs a JQL query. Zero or negative maxResults uses the
// configured page size; fields defaults to the standard issue fields
// when nil.
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults, startAt int, fields []string) (*SearchResult, error) {
	if strings.TrimSpace(jql) == "" {
		return nil, validationError("jql must be non-empty")
	}
	if startAt < 0 {
		return nil, validationError("startAt must be non-negative, got %d", startAt)
	}
	if maxResults <= 0 {
		maxResults = c.cfg.PageSize
	}
	if maxResults > MaxPageSize {
		maxResults = MaxPageSize
	}
	if fields == nil {
		fields = defaultSearchFields
	}

	raw, err := c.do(ctx, requestDescriptor{
		op:     "search_issues",
		method: http.MethodPost,
		path:   "search",
		body: map[string]any{
			"jql":        jql,
			"maxResults": maxResults,
			"startAt":    startAt,
			"fields":     fields,
		},
	})
	if err != nil {
		return nil, err
	}

	var result SearchResult
	if err := decode(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateIssue creates a new issue and returns the created record. The
// response must carry an issue key; a 2xx response without one is a
// contract violation.
func (c *Client) CreateIssue(ctx context.Context, input CreateIssueInput) (*Issue, error) {
	if strings.TrimSpace(input.ProjectKey) == "" {
		return nil, validationError("project key must be non-empty")
	}
	if strings.TrimSpace(input.Summary) == "" {
		return nil, validationError("summary must be non-empty")
	}
	if strings.TrimSpace(input.IssueType) == "" {
		return nil, validationError("issue type must be non-empty")
	}

	fields := map[string]any{
		"project":   map[string]string{"key": input.ProjectKey},
		"summary":   input.Summary,
		"issuetype": map[string]string{"name": input.IssueType},
	}
	if input.Description != "" {
		fields["description"] = input.Description
	}
	if input.Priority != "" {
		fields["priority"] = map[string]string{"name": input.Priority}
	}
	if input.AssigneeAccountID != "" {
		fields["assignee"] = map[string]string{"accountId": input.AssigneeAccountID}
	}
	if len(input.Labels) > 0 {
		fields["labels"] = input.Labels
	}
	if len(input.Components) > 0 {
		components := make([]map[string]string, 0, len(input.Components))
		for _, name := range input.Components {
			components = append(components, map[string]string{"name": name})
		}
		fields["components"] = components
	}

	raw, err := c.do(ctx, requestDescriptor{
		op:     "create_issue",
		method: http.MethodPost,
		path:   "issue",
		body:   map[string]any{"fields": fields},
	})
	if err != nil {
		return nil, err
	}

	var issue Issue
	if err := decode(raw, &issue); err != nil {
		return nil, err
	}
	if issue.Key == "" {
		return nil, &APIError{
			Kind:    KindUnexpectedStatus,
			Message: "created issue carries no key",
		}
	}
	return &issue, nil
}

// GetIssue fetches one issue by key.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, validationError("issue key must be non-empty")
	}

	raw, err := c.do(ctx, requestDescriptor{
		op:     "get_issue",
		method: http.MethodGet,
		path:   "issue/" + url.PathEscape(key),
	})
	if err != nil {
		return nil, err
	}

	var issue Issue
	if err := decode(raw, &issue); err != nil {
		return nil, err
	}
	if issue.Key == "" {
		return nil, &APIError{
			Kind:    KindUnexpectedStatus,
			Message: fmt.Sprintf("issue response for %q carries no key", key),
		}
	}
	return &issue, nil
}

// AddComment adds a comment to an issue.
func (c *Client) AddComment(ctx context.Context, key, body string) (*Comment, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, validationError("issue key must be non-empty")
	}
	if strings.TrimSpace(body) == "" {
		return nil, validationError("comment body must be non-empty")
	}

	raw, err := c.do(ctx, requestDescriptor{
		op:     "add_comment",
		method: http.MethodPost,
		path:   "issue/" + url.PathEscape(key) + "/comment",
		body:   map[string]string{"body": body},
	})
	if err != nil {
		return nil, err
	}

	var comment Comment
	if err := decode(raw, &comment); err != nil {
		return nil, err
	}
	if comment.ID == "" {
		return nil, &APIError{
			Kind:    KindUnexpectedStatus,
			Message: "created comment carries no id",
		}
	}
	return &comment, nil
}

// ListComments returns all comments on an issue.
func (c *Client) ListComments(ctx context.Context, key string) ([]Comment, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, validationError("issue key must be non-empty")
	}

	raw, err := c.do(ctx, requestDescriptor{
		op:     "list_comments",
		method: http.MethodGet,
		path:   "issue/" + url.PathEscape(key) + "/comment",
	})
	if err != nil {
		return nil, err
	}

	var page commentPage
	if err := decode(raw, &page); err != nil {
		return nil, err
	}
	return page.Comments, nil
}

// GetAvailableTransitions lists the workflow transitions currently
// available on an issue.
func (c *Client) GetAvailableTransitions(ctx context.Context, key string) ([]Transition, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, validationError("issue key must be non-empty")
	}

	raw, err := c.do(ctx, requestDescriptor{
		op:     "get_available_transitions",
		method: http.MethodGet,
		path:   "issue/" + url.PathEscape(key) + "/transitions",
	})
	if err != nil {
		return nil, err
	}

	var page transitionPage
	if err := decode(raw, &page); err != nil {
		return nil, err
	}
	return page.Transitions, nil
}

// TransitionIssue moves an issue through the named transition.
func (c *Client) TransitionIssue(ctx context.Context, key, transitionID string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return validationError("issue key must be non-empty")
	}
	if strings.TrimSpace(transitionID) == "" {
		return validationError("transition id must be non-empty")
	}

	_, err := c.do(ctx, requestDescriptor{
		op:     "transition_issue",
		method: http.MethodPost,
		path:   "issue/" + url.PathEscape(key) + "/transitions",
		body: map[string]any{
			"transition": map[string]string{"id": transitionID},
		},
	})
	return err
}

// AssignIssue assigns an issue to the given account.
func (c *Client) AssignIssue(ctx context.Context, key, accountID string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return validationError("issue key must be non-empty")
	}
	if strings.TrimSpace(accountID) == "" {
		return validationError("assignee account id must be non-empty")
	}

	_, err := c.do(ctx, requestDescriptor{
		op:     "assign_issue",
		method: http.MethodPut,
		path:   "issue/" + url.PathEscape(key) + "/assignee",
		body:   map[string]string{"accountId": accountID},
	})
	return err
}

// HealthCheck probes the API with the identity endpoint and one project
// page, and reports the outcome together with the request counters.
// Probe failures are reported in the status, not returned as an error.
func (c *Client) HealthCheck(ctx context.Context) *HealthStatus {
	status := &HealthStatus{Status: "healthy"}

	user, err := c.GetCurrentUser(ctx)
	if err != nil {
		status.Status = "unhealthy"
		status.Err = err.Error()
		status.Stats = c.Stats()
		return status
	}
	status.User = user.DisplayName

	projects, err := c.GetProjects(ctx, c.cfg.PageSize)
	if err != nil {
		status.Status = "unhealthy"
		status.Err = err.Error()
		status.Stats = c.Stats()
		return status
	}
	status.Projects = len(projects)

	status.Stats = c.Stats()
	return status
}
