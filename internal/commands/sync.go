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

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HousamKak/telejira-sub001/internal/config"
	"github.com/HousamKak/telejira-sub001/internal/jira"
	"github.com/HousamKak/telejira-sub001/internal/store"
)

// NewSyncCommand creates the sync command, which refreshes the local
// SQLite mirror from the remote API.
func NewSyncCommand() *cobra.Command {
	var projectKeys []string
	var maxIssues int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh the local issue mirror from Jira",
		Long: `Sync pages recently-updated issues for each project into the local
SQLite mirror. With no --project flag every accessible project is
synced. The mirror backs 'telejira local' listings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			dbPath, err := a.cfg.DatabasePath()
			if err != nil {
				return err
			}
			db, err := store.Open(store.Config{Path: dbPath})
			if err != nil {
				return fmt.Errorf("open mirror: %w", err)
			}
			defer db.Close()

			keys := projectKeys
			if len(keys) == 0 {
				projects, err := a.client.GetProjects(cmd.Context(), 0)
				if err != nil {
					return fmt.Errorf("%s", explain(err))
				}
				for _, p := range projects {
					if err := db.UpsertProject(cmd.Context(), p); err != nil {
						return err
					}
					keys = append(keys, p.Key)
				}
			} else {
				for _, key := range keys {
					p, err := a.client.GetProject(cmd.Context(), key)
					if err != nil {
						return fmt.Errorf("%s", explain(err))
					}
					if err := db.UpsertProject(cmd.Context(), *p); err != nil {
						return err
					}
				}
			}

			out := cmd.OutOrStdout()
			for _, key := range keys {
				count, err := syncProject(cmd.Context(), a.client, db, key, maxIssues)
				if err != nil {
					return fmt.Errorf("sync %s: %s", key, explain(err))
				}
				fmt.Fprintf(out, "%-12s %d issues\n", key, count)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&projectKeys, "project", "p", nil, "Project key to sync (repeatable; default: all)")
	cmd.Flags().IntVar(&maxIssues, "max", 500, "Maximum issues to mirror per project")

	return cmd
}

// syncProject pages search results for one project into the mirror.
func syncProject(ctx context.Context, client *jira.Client, db *store.Store, projectKey string, maxIssues int) (int, error) {
	jql := fmt.Sprintf("project = %q ORDER BY updated DESC", projectKey)

	total := 0
	for startAt := 0; total < maxIssues; {
		result, err := client.SearchIssues(ctx, jql, 0, startAt, nil)
		if err != nil {
			return total, err
		}
		if len(result.Issues) == 0 {
			break
		}

		written, err := db.UpsertIssues(ctx, result.Issues)
		if err != nil {
			return total, err
		}
		total += written

		startAt += len(result.Issues)
		if startAt >= result.Total {
			break
		}
	}

	if err := db.RecordSync(ctx, projectKey, total); err != nil {
		return total, err
	}
	return total, nil
}

// NewLocalCommand creates the local command group, which reads the
// mirror without touching the network.
func NewLocalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "Browse the local issue mirror (offline)",
	}

	cmd.AddCommand(newLocalProjectsCommand())
	cmd.AddCommand(newLocalIssuesCommand())

	return cmd
}

func newLocalProjectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List mirrored projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openMirror(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			projects, err := db.ListProjects(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), projects)
			}

			out := cmd.OutOrStdout()
			for _, p := range projects {
				last, _ := db.LastSync(cmd.Context(), p.Key)
				synced := "never"
				if !last.IsZero() {
					synced = last.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(out, "%-12s %-30s synced %s\n", p.Key, p.Name, synced)
			}
			return nil
		},
	}
}

func newLocalIssuesCommand() *cobra.Command {
	var projectKey string
	var limit int

	cmd := &cobra.Command{
		Use:   "issues",
		Short: "List mirrored issues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openMirror(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			issues, err := db.ListIssues(cmd.Context(), projectKey, limit)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), issues)
			}

			out := cmd.OutOrStdout()
			for _, issue := range issues {
				line := fmt.Sprintf("%-12s %-14s %s", issue.Key, issue.Status, issue.Summary)
				if issue.Assignee != "" {
					line += fmt.Sprintf(" (%s)", issue.Assignee)
				}
				fmt.Fprintln(out, strings.TrimRight(line, " "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectKey, "project", "p", "", "Filter by project key")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum issues to show")

	return cmd
}

// openMirror opens the mirror database using only the config layer,
// without building an API client.
func openMirror(cmd *cobra.Command) (*store.Store, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(store.Config{Path: dbPath})
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}
	return db, nil
}
