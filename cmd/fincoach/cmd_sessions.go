// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/fincoach/pkg/observability"
	"github.com/teradata-labs/fincoach/pkg/storage/postgres"
	"github.com/teradata-labs/fincoach/pkg/storage/sqlite"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Maintain the conversation store",
}

var sessionsBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the SQLite conversation store",
	Long:  `Write a verified copy of session.path next to it. Only for session.backend sqlite.`,
	Args:  cobra.NoArgs,
	RunE:  runSessionsBackup,
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete conversations idle longer than --older-than",
	Long:  `Remove stored conversations whose last update is older than the cutoff. Only for session.backend postgres.`,
	Args:  cobra.NoArgs,
	RunE:  runSessionsPrune,
}

var sessionsPruneAge time.Duration

func init() {
	sessionsPruneCmd.Flags().DurationVar(&sessionsPruneAge, "older-than", 30*24*time.Hour, "idle age to prune")
	sessionsCmd.AddCommand(sessionsBackupCmd, sessionsPruneCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsBackup(cmd *cobra.Command, args []string) error {
	if config.Session.Backend != "sqlite" {
		return fmt.Errorf("backup requires session.backend sqlite (configured: %s)", config.Session.Backend)
	}
	path, err := sqlite.Backup(cmd.Context(), config.Session.Path, config.Session.EncryptionKey)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Backup written: %s\n", path)
	return nil
}

func runSessionsPrune(cmd *cobra.Command, args []string) error {
	if config.Session.Backend != "postgres" {
		return fmt.Errorf("prune requires session.backend postgres (the memory store expires idle conversations itself)")
	}
	if sessionsPruneAge <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}
	pool, err := openAdminPool(cmd.Context(), config, observability.NewNoOpTracer())
	if err != nil {
		return err
	}
	defer pool.Close()

	deleted, err := postgres.NewConversationStore(pool, nil).DeleteOlderThan(cmd.Context(), time.Now().Add(-sessionsPruneAge))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %d conversations\n", deleted)
	return nil
}
