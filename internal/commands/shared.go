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

// Package commands implements the telejira subcommands.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/HousamKak/telejira-sub001/internal/config"
	"github.com/HousamKak/telejira-sub001/internal/jira"
	"github.com/HousamKak/telejira-sub001/internal/log"
)

// Version information (injected via ldflags at build time).
var (
	version = "dev"
	commit  = "unknown"
)

// SetVersion sets the version information (called from main).
func SetVersion(v, c string) {
	version = v
	commit = c
}

// app bundles what most commands need: resolved configuration, a logger,
// and a constructed client.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	client *jira.Client
}

// newApp loads configuration and builds the Jira client from the
// command's persistent flags.
func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logCfg := log.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = log.Format(cfg.Log.Format)
	if verbose {
		logCfg.Level = "debug"
	}
	logger := log.New(logCfg)
	slog.SetDefault(logger)

	client, err := jira.NewClient(cfg.ClientConfig(), logger)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, client: client}, nil
}

// close releases the client's pooled connection.
func (a *app) close() {
	_ = a.client.Close()
}

// jsonOutput reports whether --json was passed.
func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// explain maps client errors to the guidance shown to users.
func explain(err error) string {
	var apiErr *jira.APIError
	if !jira.AsAPIError(err, &apiErr) {
		return err.Error()
	}

	switch apiErr.Kind {
	case jira.KindAuthentication, jira.KindPermission:
		return fmt.Sprintf("%s (contact your Jira administrator)", apiErr.Message)
	case jira.KindNotFound:
		return fmt.Sprintf("not found: %s", apiErr.Message)
	case jira.KindRateLimit, jira.KindServer, jira.KindNetwork:
		return fmt.Sprintf("%s (try again later)", apiErr.Message)
	default:
		return apiErr.Message
	}
}
