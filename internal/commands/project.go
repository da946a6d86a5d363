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
)

// NewProjectCommand creates the project command group.
func NewProjectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Inspect Jira projects",
	}

	cmd.AddCommand(newProjectListCommand())
	cmd.AddCommand(newProjectGetCommand())

	return cmd
}

func newProjectListCommand() *cobra.Command {
	var maxResults int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accessible projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			projects, err := a.client.GetProjects(cmd.Context(), maxResults)
			if err != nil {
				return fmt.Errorf("%s", explain(err))
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), projects)
			}

			for _, p := range projects {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", p.Key, p.Name)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxResults, "max", 0, "Maximum number of projects (default: configured page size)")

	return cmd
}

func newProjectGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			project, err := a.client.GetProject(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s", explain(err))
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), project)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Key:  %s\n", project.Key)
			fmt.Fprintf(out, "Name: %s\n", project.Name)
			if project.Description != "" {
				fmt.Fprintf(out, "Description: %s\n", project.Description)
			}
			if project.Lead != nil {
				fmt.Fprintf(out, "Lead: %s\n", project.Lead.DisplayName)
			}
			return nil
		},
	}
}
