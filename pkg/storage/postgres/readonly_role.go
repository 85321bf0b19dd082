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

package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teradata-labs/fincoach/internal/pgxdriver"
)

// privateTables hold application state the coach's query path must not see.
var privateTables = []string{"conversations", "conversation_messages", "insights", "schema_migrations"}

// ReadOnlyRole describes the login role the coach's SQL tools connect as.
type ReadOnlyRole struct {
	Name     string
	Password string
	Database string
	Schema   string // Default: public
}

// Statements returns the DDL that grants the role SELECT on the finance
// tables and nothing else. exists selects ALTER over CREATE.
func (r ReadOnlyRole) Statements(exists bool) ([]string, error) {
	if r.Name == "" {
		return nil, fmt.Errorf("read-only role name is required")
	}
	if r.Password == "" {
		return nil, fmt.Errorf("read-only role password is required")
	}
	if r.Database == "" {
		return nil, fmt.Errorf("database name is required")
	}
	schema := r.Schema
	if schema == "" {
		schema = "public"
	}

	role := pgx.Identifier{r.Name}.Sanitize()
	db := pgx.Identifier{r.Database}.Sanitize()
	sch := pgx.Identifier{schema}.Sanitize()

	stmts := make([]string, 0, 8+len(privateTables))
	if exists {
		stmts = append(stmts, fmt.Sprintf("ALTER ROLE %s WITH LOGIN PASSWORD %s", role, quoteLiteral(r.Password)))
	} else {
		stmts = append(stmts, fmt.Sprintf("CREATE ROLE %s WITH LOGIN PASSWORD %s", role, quoteLiteral(r.Password)))
	}
	stmts = append(stmts,
		fmt.Sprintf("ALTER ROLE %s SET default_transaction_read_only = on", role),
		fmt.Sprintf("GRANT CONNECT ON DATABASE %s TO %s", db, role),
		fmt.Sprintf("GRANT USAGE ON SCHEMA %s TO %s", sch, role),
		fmt.Sprintf("GRANT SELECT ON ALL TABLES IN SCHEMA %s TO %s", sch, role),
		fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA %s GRANT SELECT ON TABLES TO %s", sch, role),
	)
	for _, table := range privateTables {
		stmts = append(stmts, fmt.Sprintf("REVOKE ALL ON TABLE %s FROM %s", pgx.Identifier{schema, table}.Sanitize(), role))
	}
	return stmts, nil
}

// EnsureReadOnlyRole creates or updates the read-only role. Running it again
// resets the password and reapplies the grants.
func EnsureReadOnlyRole(ctx context.Context, pool *pgxpool.Pool, role ReadOnlyRole) error {
	var exists bool
	if err := pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", role.Name,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up role %s: %w", role.Name, err)
	}

	stmts, err := role.Statements(exists)
	if err != nil {
		return err
	}
	return pgxdriver.InTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to configure role %s: %w", role.Name, err)
			}
		}
		return nil
	})
}

// quoteLiteral quotes s as a standard SQL string literal. DDL cannot take
// bind parameters for the password.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
