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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HousamKak/telejira-sub001/internal/jira"
)

// NewIssueCommand creates the issue command group.
func NewIssueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Create, inspect, and update Jira issues",
	}

	cmd.AddCommand(newIssueCreateCommand())
	cmd.AddCommand(newIssueGetCommand())
	cmd.AddCommand(newIssueSearchCommand())
	cmd.AddCommand(newIssueCommentCommand())
	cmd.AddCommand(newIssueCommentsCommand())
	cmd.AddCommand(newIssueTransitionsCommand())
	cmd.AddCommand(newIssueMoveCommand())
	cmd.AddCommand(newIssueAssignCommand())

	return cmd
}

func newIssueCreateCommand() *cobra.Command {
	var input jira.CreateIssueInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			issue, err := a.client.CreateIssue(cmd.Context(), input)
			if err != nil {
				return fmt.Errorf("%s", explain(err))
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), issue)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", issue.Key)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input.ProjectKey, "project", "p", "", "Project key (required)")
	cmd.Flags().StringVarP(&input.Summary, "summary", "s", "", "Issue summary (required)")
	cmd.Flags().StringVarP(&input.IssueType, "type", "t", "Task", "Issue type (Bug, Task, Story, ...)")
	cmd.Flags().StringVarP(&input.Description, "description", "d", "", "Issue description")
	cmd.Flags().StringVar(&input.Priority, "priority", "", "Priority name (Highest, High, Medium, Low, Lowest)")
	cmd.Flags().StringVar(&input.AssigneeAccountID, "assignee", "", "Assignee account id")
	cmd.Flags().StringSliceVar(&input.Labels, "label", nil, "Label to apply (repeatable)")
	cmd.Flags().StringSliceVar(&input.Components, "component", nil, "Component name (repeatable)")

	return cmd
}

func newIssueGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show one issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			issue, err := a.client.GetIssue(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s", explain(err))
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), issue)
			}
			printIssue(cmd, issue)
			return nil
		},
	}
}

func newIssueSearchCommand() *cobra.Command {
	var maxResults, startAt int

	cmd := &cobra.Command{
		Use:   "search <jql>",
		Short: "Search issues with JQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.client.SearchIssues(cmd.Context(), args[0], maxResults, startAt, nil)
			if err != nil {
				return fmt.Errorf("%s", explain(err))
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), result)
			}

			out := cmd.OutOrStdout()
			for _, issue := range result.Issues {
				fmt.Fprintf(out, "%-12s %-14s %s\n", issue.Key, refName(issue.Fields.Status), issue.Fields.Summary)
			}
			fmt.Fprintf(out, "%d of %d issues (startAt=%d)\n", len(result.Issues), result.Total, result.StartAt)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxResults, "max", 0, "Maximum number of results (default: configured page size)")
	cmd.Flags().IntVar(&startAt, "start-at", 0, "Pagination offset")

	return cmd
}

func newIssueCommentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <key> <text>",
		Short: "Add a comment to an issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			comment, err := a.client.AddComment(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("%s", explain(err))
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), comment)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added comment %s to %s\n", comment.ID, args[0])
			return nil
		},
	}
}

func newIssueCommentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "comments <key>",
		Short: "List comments on an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			comments, err := a.client.ListComments(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s", explain(err))
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), comments)
			}

			out := cmd.OutOrStdout()
			for _, comment := range comments {
				author := ""
				if comment.Author != nil {
					author = comment.Author.DisplayName
				}
				fmt.Fprintf(out, "[%s] %s: %s\n", comment.Created, author, comment.Body)
			}
			return nil
		},
	}
}

func newIssueTransitionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transitions <key>",
		Short: "List available workflow transitions for an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			transitions, err := a.client.GetAvailableTransitions(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s", explain(err))
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), transitions)
			}

			out := cmd.OutOrStdout()
			for _, t := range transitions {
				fmt.Fprintf(out, "%-6s %s\n", t.ID, t.Name)
			}
			return nil
		},
	}
}

func newIssueMoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "move <key> <transition-id>",
		Short: "Transition an issue to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.client.TransitionIssue(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("%s", explain(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s\n", args[0])
			return nil
		},
	}
}

func newIssueAssignCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <key> <account-id>",
		Short: "Assign an issue to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.client.AssignIssue(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("%s", explain(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s\n", args[0])
			return nil
		},
	}
}

func printIssue(cmd *cobra.Command, issue *jira.Issue) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Key:      %s\n", issue.Key)
	fmt.Fprintf(out, "Summary:  %s\n", issue.Fields.Summary)
	fmt.Fprintf(out, "Type:     %s\n", refName(issue.Fields.IssueType))
	fmt.Fprintf(out, "Status:   %s\n", refName(issue.Fields.Status))
	fmt.Fprintf(out, "Priority: %s\n", refName(issue.Fields.Priority))
	if issue.Fields.Assignee != nil {
		fmt.Fprintf(out, "Assignee: %s\n", issue.Fields.Assignee.DisplayName)
	}
	if len(issue.Fields.Labels) > 0 {
		fmt.Fprintf(out, "Labels:   %v\n", issue.Fields.Labels)
	}
	if issue.Fields.Description != "" {
		fmt.Fprintf(out, "\n%s\n", issue.Fields.Description)
	}
}

func refName(ref *jira.NamedRef) string {
	if ref == nil {
		return ""
	}
	return ref.Name
}
