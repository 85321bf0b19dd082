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

package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/fincoach/internal/sqlitedriver"
	"github.com/teradata-labs/fincoach/pkg/observability"
)

func newTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	db, err := sql.Open(sqlitedriver.DriverName, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count))
	return count > 0
}

func TestMigrator_UpDownIdempotent(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	tracer := observability.NewMockTracer()

	migrator, err := NewMigrator(db, tracer)
	require.NoError(t, err)

	pending, err := migrator.PendingMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, migrator.MigrateUp(ctx))
	require.NoError(t, migrator.MigrateUp(ctx))

	version, err := migrator.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.True(t, tableExists(t, db, "conversations"))
	assert.True(t, tableExists(t, db, "conversation_messages"))
	assert.Len(t, tracer.GetSpansByName("migrator.migrate_up"), 2)

	require.NoError(t, migrator.MigrateDown(ctx, 1))
	version, err = migrator.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, version)
	assert.False(t, tableExists(t, db, "conversations"))
}

func TestBackup(t *testing.T) {
	db, path := newTestDB(t)
	ctx := context.Background()

	migrator, err := NewMigrator(db, nil)
	require.NoError(t, err)
	require.NoError(t, migrator.MigrateUp(ctx))
	_, err = db.Exec("INSERT INTO conversations (id, created_at, updated_at) VALUES ('t1', 1, 1)")
	require.NoError(t, err)

	backupPath, err := Backup(ctx, path, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(backupPath) })
	assert.True(t, strings.Contains(backupPath, ".backup."))

	backup, err := sql.Open(sqlitedriver.DriverName, backupPath)
	require.NoError(t, err)
	defer func() { _ = backup.Close() }()

	var id string
	require.NoError(t, backup.QueryRow("SELECT id FROM conversations").Scan(&id))
	assert.Equal(t, "t1", id)
}

func TestVerifyBackup_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(path, []byte("not a database at all, just text padding the header"), 0o600))
	assert.Error(t, VerifyBackup(context.Background(), path, ""))
}
