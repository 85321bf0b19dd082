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
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/fincoach/pkg/observability"
	"github.com/teradata-labs/fincoach/pkg/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the financial database schema",
	Long:  `Apply, roll back or inspect the embedded schema migrations. Runs as database.admin_user.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateDown,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version and pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

var setupReadonlyCmd = &cobra.Command{
	Use:   "setup-readonly",
	Short: "Create or update the read-only role used by the SQL tools",
	Long: `Create (or update) database.readonly_user with LOGIN, grant it SELECT on the
finance tables, and revoke access to the coach's own tables. Safe to re-run.`,
	Args: cobra.NoArgs,
	RunE: runSetupReadonly,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a demo user with generated transactions",
	Long: `Insert the demo user and a deterministic ledger of subscriptions and daily
purchases. Does nothing when the user already exists.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

var (
	migrateDownSteps int
	seedUsername     string
	seedDays         int
	seedValue        uint64
)

func init() {
	migrateDownCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)

	seedCmd.Flags().StringVar(&seedUsername, "username", postgres.DemoUsername, "demo user name")
	seedCmd.Flags().IntVar(&seedDays, "days", 90, "days of transactions to generate")
	seedCmd.Flags().Uint64Var(&seedValue, "seed", 42, "random seed (same seed, same ledger)")

	rootCmd.AddCommand(migrateCmd, setupReadonlyCmd, seedCmd)
}

// withAdminPool runs fn against a short-lived admin pool with a CLI logger.
func withAdminPool(cmd *cobra.Command, fn func(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error) error {
	logger, _, err := newLogger(LoggingConfig{Level: config.Logging.Level, Format: "console"})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := openAdminPool(ctx, config, observability.NewNoOpTracer())
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool, logger)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	return withAdminPool(cmd, func(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
		migrator, err := postgres.NewMigrator(pool, nil)
		if err != nil {
			return err
		}
		before, err := migrator.CurrentVersion(ctx)
		if err != nil {
			return err
		}
		if err := migrator.MigrateUp(ctx); err != nil {
			return err
		}
		after, err := migrator.CurrentVersion(ctx)
		if err != nil {
			return err
		}
		logger.Info("Migrations applied", zap.Int("from_version", before), zap.Int("to_version", after))
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	if migrateDownSteps < 1 {
		return fmt.Errorf("--steps must be at least 1")
	}
	return withAdminPool(cmd, func(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
		migrator, err := postgres.NewMigrator(pool, nil)
		if err != nil {
			return err
		}
		if err := migrator.MigrateDown(ctx, migrateDownSteps); err != nil {
			return err
		}
		version, err := migrator.CurrentVersion(ctx)
		if err != nil {
			return err
		}
		logger.Info("Migrations rolled back", zap.Int("steps", migrateDownSteps), zap.Int("version", version))
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	return withAdminPool(cmd, func(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
		migrator, err := postgres.NewMigrator(pool, nil)
		if err != nil {
			return err
		}
		version, err := migrator.CurrentVersion(ctx)
		if err != nil {
			return err
		}
		pending, err := migrator.PendingMigrations(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Current version: %d\n", version)
		if len(pending) == 0 {
			fmt.Fprintln(out, "Schema is up to date")
			return nil
		}
		fmt.Fprintf(out, "Pending migrations (%d):\n", len(pending))
		for _, m := range pending {
			fmt.Fprintf(out, "  %06d  %s\n", m.Version, m.Description)
		}
		return nil
	})
}

func runSetupReadonly(cmd *cobra.Command, args []string) error {
	if config.Database.ReadonlyPassword == "" {
		return fmt.Errorf("database.readonly_password is required (env FINCOACH_DATABASE_READONLY_PASSWORD or 'fincoach config set-key database_readonly_password')")
	}
	return withAdminPool(cmd, func(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
		role := postgres.ReadOnlyRole{
			Name:     config.Database.ReadonlyUser,
			Password: config.Database.ReadonlyPassword,
			Database: config.Database.Name,
			Schema:   config.Database.Schema,
		}
		if err := postgres.EnsureReadOnlyRole(ctx, pool, role); err != nil {
			return err
		}
		logger.Info("Read-only role ready",
			zap.String("role", role.Name),
			zap.String("database", role.Database))
		return nil
	})
}

func runSeed(cmd *cobra.Command, args []string) error {
	return withAdminPool(cmd, func(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
		result, err := postgres.Seed(ctx, pool, postgres.SeedOptions{
			Username: seedUsername,
			Days:     seedDays,
			Seed:     seedValue,
			Now:      time.Now(),
		})
		if err != nil {
			return err
		}
		if result.Skipped {
			logger.Info("User already exists, nothing seeded", zap.String("username", seedUsername), zap.Int64("user_id", result.UserID))
			return nil
		}
		logger.Info("Demo data seeded",
			zap.String("username", seedUsername),
			zap.Int64("user_id", result.UserID),
			zap.Int("transactions", result.Transactions))
		return nil
	})
}
