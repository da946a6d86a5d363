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

import "time"

// User is a Jira account, as returned by GET myself and embedded in
// issues and comments.
type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"emailAddress,omitempty"`
	Active      bool   `json:"active"`
	TimeZone    string `json:"timeZone,omitempty"`
}

// Project is a Jira project record.
type Project struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TypeKey     string `json:"projectTypeKey,omitempty"`
	Self        string `json:"self,omitempty"`

	Lead     *User            `json:"lead,omitempty"`
	Category *ProjectCategory `json:"projectCategory,omitempty"`
}

// ProjectCategory is the category a project belongs to.
type ProjectCategory struct {
	Name string `json:"name"`
}

// projectPage is the paginated wire envelope of GET project/search.
type projectPage struct {
	Values []Project `json:"values"`
}

// Issue is a Jira issue record.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self,omitempty"`
	Fields IssueFields `json:"fields"`
}

// IssueFields holds the field payload of an issue.
type IssueFields struct {
	Summary     string     `json:"summary,omitempty"`
	Description string     `json:"description,omitempty"`
	IssueType   *NamedRef  `json:"issuetype,omitempty"`
	Status      *NamedRef  `json:"status,omitempty"`
	Priority    *NamedRef  `json:"priority,omitempty"`
	Assignee    *User      `json:"assignee,omitempty"`
	Reporter    *User      `json:"reporter,omitempty"`
	Project     *Project   `json:"project,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
	Components  []NamedRef `json:"components,omitempty"`
	Created     string     `json:"created,omitempty"`
	Updated     string     `json:"updated,omitempty"`
}

// NamedRef is Jira's ubiquitous {"name": ...} object, used for issue
// types, statuses, priorities, and components.
type NamedRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Comment is one comment on an issue.
type Comment struct {
	ID      string `json:"id"`
	Body    string `json:"body"`
	Author  *User  `json:"author,omitempty"`
	Created string `json:"created,omitempty"`
}

// commentPage is the wire envelope of GET issue/{key}/comment.
type commentPage struct {
	Comments []Comment `json:"comments"`
}

// Transition is one workflow transition available on an issue.
type Transition struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	To   *NamedRef `json:"to,omitempty"`
}

// transitionPage is the wire envelope of GET issue/{key}/transitions.
type transitionPage struct {
	Transitions []Transition `json:"transitions"`
}

// SearchResult is the outcome of a JQL search.
type SearchResult struct {
	Issues     []Issue `json:"issues"`
	Total      int     `json:"total"`
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
}

// CreateIssueInput describes a new issue. ProjectKey, Summary, and
// IssueType are required; everything else is omitted from the request
// body when empty.
type CreateIssueInput struct {
	ProjectKey        string
	Summary           string
	IssueType         string
	Description       string
	Priority          string
	AssigneeAccountID string
	Labels            []string
	Components        []string
}

// Statistics are monotonically increasing request counters. Values are
// copied out by Client.Stats; only the executor mutates them.
type Statistics struct {
	TotalRequests int64
	TotalErrors   int64
	LastRequestAt time.Time
}

// HealthStatus summarizes a HealthCheck probe.
type HealthStatus struct {
	// Status is "healthy" or "unhealthy".
	Status string

	// User is the display name of the authenticated account.
	User string

	// Projects is the size of the first project page fetched.
	Projects int

	// Stats is a snapshot of the client's request counters.
	Stats Statistics

	// Err describes the failure when Status is "unhealthy".
	Err string
}

// defaultSearchFields is requested when a search caller does not name
// the fields it wants.
var defaultSearchFields = []string{
	"summary", "description", "issuetype", "status", "priority",
	"assignee", "reporter", "project", "labels", "components",
	"created", "updated",
}
