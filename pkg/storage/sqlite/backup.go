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

// Package sqlite holds the schema and maintenance helpers for the SQLite
// conversation store: embedded migrations, online backup and integrity checks.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/teradata-labs/fincoach/internal/sqlitedriver"
)

// BackupPath returns the file name used for a backup of dbPath taken at t.
func BackupPath(dbPath string, t time.Time) string {
	return dbPath + ".backup." + t.UTC().Format("20060102T150405")
}

// Backup writes a consistent copy of the database at dbPath with VACUUM INTO
// and verifies it. Readers of the source are not blocked. A failed or
// corrupt backup file is removed. key unlocks an encrypted source; the copy
// is written under the same key.
func Backup(ctx context.Context, dbPath, key string) (string, error) {
	backupPath := BackupPath(dbPath, time.Now())

	src, err := sql.Open(sqlitedriver.DriverName, sqlitedriver.KeyedDSN(dbPath, key))
	if err != nil {
		return "", fmt.Errorf("backup: open source database %q: %w", dbPath, err)
	}
	defer func() { _ = src.Close() }()

	if _, err := src.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return "", fmt.Errorf("backup: set busy_timeout on %q: %w", dbPath, err)
	}
	if _, err := src.ExecContext(ctx, "VACUUM INTO ?", backupPath); err != nil {
		_ = os.Remove(backupPath)
		return "", fmt.Errorf("backup: vacuum into %q: %w", backupPath, err)
	}

	if err := VerifyBackup(ctx, backupPath, key); err != nil {
		_ = os.Remove(backupPath)
		return "", err
	}
	return backupPath, nil
}

// VerifyBackup runs PRAGMA integrity_check against path.
func VerifyBackup(ctx context.Context, path, key string) error {
	db, err := sql.Open(sqlitedriver.DriverName, sqlitedriver.KeyedDSN(path, key))
	if err != nil {
		return fmt.Errorf("verify backup: open %q: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("verify backup: integrity check on %q: %w", path, err)
	}
	if result != "ok" {
		return fmt.Errorf("verify backup: integrity check failed on %q: %s", path, result)
	}
	return nil
}
