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

// Package cli builds the root Cobra command for telejira.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root Cobra command for telejira.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telejira",
		Short: "telejira - Jira issue management from the command line",
		Long: `Telejira manages Jira issue-tracker records through a resilient
API client: it survives network flakiness, honors server rate limits,
and keeps a local mirror of issues for offline listing.

Configuration is read from ~/.config/telejira/config.yaml and
TELEJIRA_* environment variables. Store your API token with
'telejira secret set' and reference it as keyring:<name>.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: ~/.config/telejira/config.yaml)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")

	return cmd
}
