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

// Package postgres holds the PostgreSQL application stores: schema
// migrations, the conversation store, the finance store used by the insight
// pipeline, read-only role provisioning and the demo data seeder. All of it
// runs over a pgx pool with the admin credential; the coach's own query path
// uses a separate read-only connection.
package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teradata-labs/fincoach/internal/migrations"
	"github.com/teradata-labs/fincoach/internal/pgxdriver"
	"github.com/teradata-labs/fincoach/pkg/observability"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration is a single schema step.
type Migration = migrations.Migration

// Migrator manages PostgreSQL schema migrations using embedded SQL files.
type Migrator struct {
	pool       *pgxpool.Pool
	tracer     observability.Tracer
	migrations []Migration
}

// NewMigrator creates a new migrator with embedded SQL migrations.
func NewMigrator(pool *pgxpool.Pool, tracer observability.Tracer) (*Migrator, error) {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}

	loaded, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	return &Migrator{
		pool:       pool,
		tracer:     tracer,
		migrations: loaded,
	}, nil
}

func loadMigrations() ([]Migration, error) {
	return migrations.Load(migrationFS, "migrations")
}

// migrationAdvisoryLockID keeps concurrent server instances from migrating
// at the same time.
const migrationAdvisoryLockID = 839021574

// MigrateUp applies all pending migrations up to the latest version.
func (m *Migrator) MigrateUp(ctx context.Context) error {
	ctx, span := m.tracer.StartSpan(ctx, "migrator.migrate_up")
	defer m.tracer.EndSpan(span)

	return m.withLock(ctx, func(ctx context.Context) error {
		if err := m.ensureMigrationsTable(ctx); err != nil {
			span.RecordError(err)
			return err
		}

		currentVersion, err := m.CurrentVersion(ctx)
		if err != nil {
			span.RecordError(err)
			return err
		}
		span.SetAttribute("current_version", currentVersion)

		pending := migrations.Pending(m.migrations, currentVersion)
		for _, migration := range pending {
			if err := m.apply(ctx, migration.UpSQL,
				"INSERT INTO schema_migrations (version, description) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING",
				migration.Version, migration.Description,
			); err != nil {
				span.RecordError(err)
				return fmt.Errorf("migration %d failed: %w", migration.Version, err)
			}
		}

		span.SetAttribute("migrations_applied", len(pending))
		return nil
	})
}

// MigrateDown rolls back the given number of applied migrations.
func (m *Migrator) MigrateDown(ctx context.Context, steps int) error {
	ctx, span := m.tracer.StartSpan(ctx, "migrator.migrate_down")
	defer m.tracer.EndSpan(span)

	return m.withLock(ctx, func(ctx context.Context) error {
		if err := m.ensureMigrationsTable(ctx); err != nil {
			return err
		}
		currentVersion, err := m.CurrentVersion(ctx)
		if err != nil {
			span.RecordError(err)
			return err
		}
		span.SetAttribute("current_version", currentVersion)
		span.SetAttribute("steps", steps)

		rolled := 0
		for i := len(m.migrations) - 1; i >= 0 && rolled < steps; i-- {
			migration := m.migrations[i]
			if migration.Version > currentVersion {
				continue
			}
			if migration.DownSQL == "" {
				return fmt.Errorf("migration %d has no down file", migration.Version)
			}
			if err := m.apply(ctx, migration.DownSQL,
				"DELETE FROM schema_migrations WHERE version = $1", migration.Version,
			); err != nil {
				span.RecordError(err)
				return fmt.Errorf("rollback of migration %d failed: %w", migration.Version, err)
			}
			rolled++
		}

		span.SetAttribute("migrations_rolled_back", rolled)
		return nil
	})
}

// CurrentVersion returns the highest applied migration version.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return 0, err
	}
	var version int
	err := m.pool.QueryRow(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_migrations",
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current migration version: %w", err)
	}
	return version, nil
}

// PendingMigrations returns migrations not yet applied.
func (m *Migrator) PendingMigrations(ctx context.Context) ([]Migration, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	return migrations.Pending(m.migrations, current), nil
}

// Migrations returns every embedded migration in version order.
func (m *Migrator) Migrations() []Migration {
	return m.migrations
}

// withLock holds a session-level advisory lock on one pooled connection for
// the duration of fn.
func (m *Migrator) withLock(ctx context.Context, fn func(ctx context.Context) error) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationAdvisoryLockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		// Released on disconnect anyway.
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationAdvisoryLockID)
	}()

	return fn(ctx)
}

func (m *Migrator) ensureMigrationsTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	return nil
}

// apply runs a migration script and its bookkeeping statement in one
// transaction.
func (m *Migrator) apply(ctx context.Context, script, bookkeeping string, args ...interface{}) error {
	return pgxdriver.InTx(ctx, m.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, script); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
		if _, err := tx.Exec(ctx, bookkeeping, args...); err != nil {
			return fmt.Errorf("failed to record migration version: %w", err)
		}
		return nil
	})
}
