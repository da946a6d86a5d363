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
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/HousamKak/telejira-sub001/internal/config"
)

// NewSecretCommand creates the secret command group for managing API
// tokens in the system keyring.
func NewSecretCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage API tokens in the system keyring",
		Long: `Store Jira API tokens in the operating system keyring instead of
the config file. Reference a stored token from config.yaml as
keyring:<name>.`,
	}

	cmd.AddCommand(newSecretSetCommand())
	cmd.AddCommand(newSecretDeleteCommand())

	return cmd
}

func newSecretSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret in the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Enter value for %q: ", args[0])
			value, err := readSecret(cmd)
			if err != nil {
				return fmt.Errorf("read secret: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout())

			if value == "" {
				return fmt.Errorf("secret value is empty")
			}

			if err := config.StoreSecret(args[0], value); err != nil {
				return fmt.Errorf("store secret: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %q. Reference it as keyring:%s\n", args[0], args[0])
			return nil
		},
	}
}

func newSecretDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a secret from the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DeleteSecret(args[0]); err != nil {
				return fmt.Errorf("delete secret: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", args[0])
			return nil
		},
	}
}

// readSecret reads a secret without echo when stdin is a terminal, and
// falls back to a plain line read for piped input.
func readSecret(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(interface{ Fd() uintptr }); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	var line string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &line); err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
