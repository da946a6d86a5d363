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

// Package store persists a local mirror of issue-tracker records using
// SQLite. The mirror is populated by the sync command and read by list
// commands; it never feeds back into the remote API.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/HousamKak/telejira-sub001/internal/jira"
)

// ErrNotFound is returned when a requested record is not in the mirror.
var ErrNotFound = errors.New("record not found in local mirror")

// Store is the local SQLite mirror.
type Store struct {
	db *sql.DB
}

// Config contains configuration for the store.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// Use ":memory:" for an ephemeral database.
	Path string

	// MaxOpenConns sets the maximum number of open connections.
	// For SQLite, this should typically be low to avoid lock contention.
	MaxOpenConns int
}

// ProjectRecord is a mirrored project row.
type ProjectRecord struct {
	Key         string
	Name        string
	Description string
	TypeKey     string
	Lead        string
	SyncedAt    time.Time
}

// IssueRecord is a mirrored issue row.
type IssueRecord struct {
	Key        string
	ProjectKey string
	Summary    string
	Status     string
	Priority   string
	IssueType  string
	Assignee   string
	Labels     []string
	Updated    string
	SyncedAt   time.Time
}

// Open creates or opens the mirror database and runs migrations.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store path is required")
	}

	// Create parent directory if it doesn't exist
	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// WAL mode for better concurrency and durability
	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := cfg.MaxOpenConns
	if maxConns == 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		key TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		type_key TEXT,
		lead TEXT,
		synced_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS issues (
		key TEXT PRIMARY KEY,
		project_key TEXT NOT NULL,
		summary TEXT NOT NULL,
		status TEXT,
		priority TEXT,
		issue_type TEXT,
		assignee TEXT,
		labels TEXT,
		updated TEXT,
		synced_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_issues_project ON issues(project_key);

	CREATE TABLE IF NOT EXISTS sync_state (
		project_key TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		issue_count INTEGER NOT NULL DEFAULT 0
	);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertProject inserts or refreshes one mirrored project.
func (s *Store) UpsertProject(ctx context.Context, p jira.Project) error {
	lead := ""
	if p.Lead != nil {
		lead = p.Lead.DisplayName
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (key, name, description, type_key, lead, synced_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			type_key = excluded.type_key,
			lead = excluded.lead,
			synced_at = excluded.synced_at`,
		p.Key, p.Name, p.Description, p.TypeKey, lead, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert project %s: %w", p.Key, err)
	}
	return nil
}

// ListProjects returns all mirrored projects ordered by key.
func (s *Store) ListProjects(ctx context.Context) ([]ProjectRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, name, description, type_key, lead, synced_at
		FROM projects ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []ProjectRecord
	for rows.Next() {
		var p ProjectRecord
		if err := rows.Scan(&p.Key, &p.Name, &p.Description, &p.TypeKey, &p.Lead, &p.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpsertIssues inserts or refreshes a batch of mirrored issues in one
// transaction. Returns the number of rows written.
func (s *Store) UpsertIssues(ctx context.Context, issues []jira.Issue) (int, error) {
	if len(issues) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO issues (key, project_key, summary, status, priority, issue_type, assignee, labels, updated, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			project_key = excluded.project_key,
			summary = excluded.summary,
			status = excluded.status,
			priority = excluded.priority,
			issue_type = excluded.issue_type,
			assignee = excluded.assignee,
			labels = excluded.labels,
			updated = excluded.updated,
			synced_at = excluded.synced_at`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	written := 0
	for _, issue := range issues {
		if issue.Key == "" {
			continue
		}

		labels, err := json.Marshal(issue.Fields.Labels)
		if err != nil {
			return written, fmt.Errorf("failed to encode labels for %s: %w", issue.Key, err)
		}

		projectKey := ""
		if issue.Fields.Project != nil {
			projectKey = issue.Fields.Project.Key
		}
		if projectKey == "" {
			// Derive from the issue key (e.g. "WEBAPP-42" -> "WEBAPP").
			if idx := strings.LastIndex(issue.Key, "-"); idx > 0 {
				projectKey = issue.Key[:idx]
			}
		}

		if _, err := stmt.ExecContext(ctx,
			issue.Key, projectKey, issue.Fields.Summary,
			refName(issue.Fields.Status), refName(issue.Fields.Priority), refName(issue.Fields.IssueType),
			userName(issue.Fields.Assignee), string(labels), issue.Fields.Updated, now,
		); err != nil {
			return written, fmt.Errorf("failed to upsert issue %s: %w", issue.Key, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return written, fmt.Errorf("failed to commit: %w", err)
	}
	return written, nil
}

// GetIssue returns one mirrored issue, or ErrNotFound.
func (s *Store) GetIssue(ctx context.Context, key string) (*IssueRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, project_key, summary, status, priority, issue_type, assignee, labels, updated, synced_at
		FROM issues WHERE key = ?`, key)

	rec, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue %s: %w", key, err)
	}
	return rec, nil
}

// ListIssues returns mirrored issues, optionally filtered by project,
// most recently synced first.
func (s *Store) ListIssues(ctx context.Context, projectKey string, limit int) ([]IssueRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT key, project_key, summary, status, priority, issue_type, assignee, labels, updated, synced_at
		FROM issues`
	args := []any{}
	if projectKey != "" {
		query += ` WHERE project_key = ?`
		args = append(args, projectKey)
	}
	query += ` ORDER BY synced_at DESC, key LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	var issues []IssueRecord
	for rows.Next() {
		rec, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, *rec)
	}
	return issues, rows.Err()
}

// RecordSync stores the completion time and size of a project sync.
func (s *Store) RecordSync(ctx context.Context, projectKey string, issueCount int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (project_key, last_sync, issue_count)
		VALUES (?, ?, ?)
		ON CONFLICT(project_key) DO UPDATE SET
			last_sync = excluded.last_sync,
			issue_count = excluded.issue_count`,
		projectKey, time.Now().UTC(), issueCount)
	if err != nil {
		return fmt.Errorf("failed to record sync for %s: %w", projectKey, err)
	}
	return nil
}

// LastSync returns the completion time of the most recent sync for a
// project, or the zero time if it has never been synced.
func (s *Store) LastSync(ctx context.Context, projectKey string) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT last_sync FROM sync_state WHERE project_key = ?`, projectKey).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read sync state for %s: %w", projectKey, err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*IssueRecord, error) {
	var rec IssueRecord
	var labels string
	if err := row.Scan(&rec.Key, &rec.ProjectKey, &rec.Summary, &rec.Status, &rec.Priority,
		&rec.IssueType, &rec.Assignee, &labels, &rec.Updated, &rec.SyncedAt); err != nil {
		return nil, err
	}
	if labels != "" {
		if err := json.Unmarshal([]byte(labels), &rec.Labels); err != nil {
			return nil, fmt.Errorf("corrupt labels column for %s: %w", rec.Key, err)
		}
	}
	return &rec, nil
}

func refName(ref *jira.NamedRef) string {
	if ref == nil {
		return ""
	}
	return ref.Name
}

func userName(u *jira.User) string {
	if u == nil {
		return ""
	}
	return u.DisplayName
}
