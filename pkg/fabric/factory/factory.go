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

// Package factory opens read-only execution backends.
package factory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/teradata-labs/fincoach/internal/sqlitedriver"

	// SQL drivers
	_ "github.com/go-sql-driver/mysql" // mysql
	_ "github.com/jackc/pgx/v5/stdlib" // pgx
	_ "github.com/lib/pq"              // postgres
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultQueryTimeout = 30 * time.Second
	DefaultMaxRows      = 200
	DefaultMaxOpenConns = 10
)

// Config describes the read-only connection used by the query executor.
type Config struct {
	// Name identifies the backend in logs and traces
	Name string

	// Driver is one of postgres (lib/pq), pgx, mysql, sqlite
	Driver string

	// DSN must carry the read-only credential. For sqlite it is a file path;
	// it is rewritten to open the file with mode=ro.
	DSN string

	// QueryTimeout bounds each query
	QueryTimeout time.Duration

	// MaxRows caps the rows returned per query
	MaxRows int

	MaxOpenConns int
	MaxIdleConns int
}

// NewBackend opens and pings a read-only backend.
func NewBackend(ctx context.Context, config Config) (*ReadOnlySQLBackend, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	driver, dialect, dsn, err := resolveDriver(config.Driver, config.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpen)
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	if err := db.PingContext(ctx); err != nil {
		// #nosec G104 -- best-effort cleanup on initialization failure
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newReadOnlyBackend(db, config, dialect), nil
}

// NewBackendFromDB wraps an already opened pool. The caller is responsible
// for the pool's credential being read-only.
func NewBackendFromDB(db *sql.DB, config Config, dialect string) *ReadOnlySQLBackend {
	return newReadOnlyBackend(db, config, dialect)
}

func newReadOnlyBackend(db *sql.DB, config Config, dialect string) *ReadOnlySQLBackend {
	timeout := config.QueryTimeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	maxRows := config.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	name := config.Name
	if name == "" {
		name = dialect
	}
	return &ReadOnlySQLBackend{
		db:      db,
		name:    name,
		dialect: dialect,
		timeout: timeout,
		maxRows: maxRows,
	}
}

// resolveDriver maps a configured driver to the database/sql driver name and
// SQL dialect, rewriting the DSN where the driver needs it.
func resolveDriver(driver, dsn string) (sqlDriver, dialect, outDSN string, err error) {
	switch driver {
	case "postgres", "postgresql", "":
		return "postgres", "postgres", dsn, nil
	case "pgx":
		return "pgx", "postgres", dsn, nil
	case "mysql":
		return "mysql", "mysql", dsn, nil
	case "sqlite", "sqlite3":
		return sqlitedriver.DriverName, "sqlite", sqlitedriver.ReadOnlyDSN(dsn), nil
	default:
		return "", "", "", fmt.Errorf("unsupported driver: %s (supported: postgres, pgx, mysql, sqlite)", driver)
	}
}
