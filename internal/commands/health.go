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

// NewHealthCommand creates the health command.
func NewHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity and credentials against the Jira API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			status := a.client.HealthCheck(cmd.Context())

			if jsonOutput(cmd) {
				if err := printJSON(cmd.OutOrStdout(), status); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Status:   %s\n", status.Status)
				if status.User != "" {
					fmt.Fprintf(out, "User:     %s\n", status.User)
				}
				fmt.Fprintf(out, "Projects: %d\n", status.Projects)
				fmt.Fprintf(out, "Requests: %d (%d errors)\n", status.Stats.TotalRequests, status.Stats.TotalErrors)
				if status.Err != "" {
					fmt.Fprintf(out, "Error:    %s\n", status.Err)
				}
			}

			if status.Status != "healthy" {
				return fmt.Errorf("jira API is %s", status.Status)
			}
			return nil
		},
	}
}
