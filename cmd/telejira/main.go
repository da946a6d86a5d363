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

// Command telejira is a resilient command-line client for Jira Cloud.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HousamKak/telejira-sub001/internal/cli"
	"github.com/HousamKak/telejira-sub001/internal/commands"
)

// Version information (injected via ldflags at build time).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	commands.SetVersion(version, commit)

	root := cli.NewRootCommand()
	root.AddCommand(commands.NewProjectCommand())
	root.AddCommand(commands.NewIssueCommand())
	root.AddCommand(commands.NewWhoamiCommand())
	root.AddCommand(commands.NewHealthCommand())
	root.AddCommand(commands.NewSyncCommand())
	root.AddCommand(commands.NewLocalCommand())
	root.AddCommand(commands.NewSecretCommand())
	root.AddCommand(commands.NewVersionCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
