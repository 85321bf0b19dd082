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

package factory

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/teradata-labs/fincoach/pkg/fabric"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ReadOnlySQLBackend runs every statement inside a read-only transaction on
// a connection opened with a read-only credential. Writes are rejected by the
// data store; this type never inspects the SQL text to decide.
type ReadOnlySQLBackend struct {
	db      *sql.DB
	name    string
	dialect string // postgres, mysql, sqlite
	timeout time.Duration
	maxRows int
}

// Name returns the backend name.
func (b *ReadOnlySQLBackend) Name() string {
	return b.name
}

// ExecuteQuery runs query in a read-only transaction and rolls it back.
func (b *ReadOnlySQLBackend) ExecuteQuery(ctx context.Context, query string) (*fabric.QueryResult, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fabric.NewQueryError(fabric.CodeQueryError, fmt.Errorf("empty query"))
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	tx, err := b.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ClassifyError(ctx, err)
	}
	// read-only transactions have nothing to commit
	defer tx.Rollback() //nolint:errcheck

	if b.dialect == "postgres" && b.timeout > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", b.timeout.Milliseconds())); err != nil {
			return nil, ClassifyError(ctx, err)
		}
	}

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, ClassifyError(ctx, err)
	}
	defer func() { _ = rows.Close() }()

	result, err := b.scanRows(rows)
	if err != nil {
		return nil, ClassifyError(ctx, err)
	}
	result.ExecutionStats.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

func (b *ReadOnlySQLBackend) scanRows(rows *sql.Rows) (*fabric.QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	cols := make([]fabric.Column, len(columns))
	for i, col := range columns {
		nullable, _ := columnTypes[i].Nullable()
		cols[i] = fabric.Column{
			Name:     col,
			Type:     columnTypes[i].DatabaseTypeName(),
			Nullable: nullable,
		}
	}

	resultRows := make([]map[string]interface{}, 0)
	truncated := false
	for rows.Next() {
		if b.maxRows > 0 && len(resultRows) >= b.maxRows {
			truncated = true
			break
		}
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &fabric.QueryResult{
		Type:      "rows",
		Rows:      resultRows,
		Columns:   cols,
		RowCount:  len(resultRows),
		Truncated: truncated,
	}, nil
}

// normalizeValue converts driver values into JSON-friendly ones.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}

// GetSchema returns column information for a table or view.
func (b *ReadOnlySQLBackend) GetSchema(ctx context.Context, resource string) (*fabric.Schema, error) {
	if !identifierPattern.MatchString(resource) {
		return nil, fabric.NewQueryError(fabric.CodeQueryError, fmt.Errorf("invalid table name %q", resource))
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	var (
		rows *sql.Rows
		err  error
	)
	switch b.dialect {
	case "postgres":
		rows, err = b.db.QueryContext(ctx, `
			SELECT column_name, data_type, is_nullable, column_default
			FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1
			ORDER BY ordinal_position`, resource)
	case "mysql":
		rows, err = b.db.QueryContext(ctx, `
			SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_DEFAULT
			FROM information_schema.COLUMNS
			WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
			ORDER BY ORDINAL_POSITION`, resource)
	case "sqlite":
		// PRAGMA does not take bind parameters; resource is a validated identifier.
		rows, err = b.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", resource))
	default:
		return nil, fmt.Errorf("schema discovery not supported for %s", b.dialect)
	}
	if err != nil {
		return nil, ClassifyError(ctx, err)
	}
	defer func() { _ = rows.Close() }()

	var fields []fabric.Field
	if b.dialect == "sqlite" {
		// cid, name, type, notnull, dflt_value, pk
		for rows.Next() {
			var cid, notnull, pk int
			var name, typ string
			var dflt sql.NullString
			if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
				return nil, ClassifyError(ctx, err)
			}
			field := fabric.Field{Name: name, Type: typ, Nullable: notnull == 0, PrimaryKey: pk > 0}
			if dflt.Valid {
				field.Default = dflt.String
			}
			fields = append(fields, field)
		}
	} else {
		for rows.Next() {
			var name, dataType, isNullable string
			var dflt sql.NullString
			if err := rows.Scan(&name, &dataType, &isNullable, &dflt); err != nil {
				return nil, ClassifyError(ctx, err)
			}
			field := fabric.Field{Name: name, Type: dataType, Nullable: strings.EqualFold(isNullable, "YES")}
			if dflt.Valid {
				field.Default = dflt.String
			}
			fields = append(fields, field)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, ClassifyError(ctx, err)
	}
	if len(fields) == 0 {
		return nil, fabric.NewQueryError(fabric.CodeQueryError, fmt.Errorf("table %q not found", resource))
	}

	return &fabric.Schema{Name: resource, Type: "table", Fields: fields}, nil
}

// ListResources lists tables and views. The "type" filter narrows to one kind.
func (b *ReadOnlySQLBackend) ListResources(ctx context.Context, filters map[string]string) ([]fabric.Resource, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	var query string
	switch b.dialect {
	case "postgres":
		query = `SELECT table_name, table_type FROM information_schema.tables
			WHERE table_schema = current_schema() ORDER BY table_name`
	case "mysql":
		query = `SELECT TABLE_NAME, TABLE_TYPE FROM information_schema.TABLES
			WHERE TABLE_SCHEMA = DATABASE() ORDER BY TABLE_NAME`
	case "sqlite":
		query = `SELECT name, type FROM sqlite_master
			WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name`
	default:
		return nil, fmt.Errorf("resource listing not supported for %s", b.dialect)
	}

	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return nil, ClassifyError(ctx, err)
	}
	defer func() { _ = rows.Close() }()

	want := strings.ToLower(filters["type"])
	resources := make([]fabric.Resource, 0)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, ClassifyError(ctx, err)
		}
		typ = normalizeResourceType(typ)
		if want != "" && want != typ {
			continue
		}
		resources = append(resources, fabric.Resource{Name: name, Type: typ})
	}
	if err := rows.Err(); err != nil {
		return nil, ClassifyError(ctx, err)
	}
	return resources, nil
}

func normalizeResourceType(t string) string {
	t = strings.ToLower(t)
	if strings.Contains(t, "view") {
		return "view"
	}
	return "table"
}

// Ping checks connectivity.
func (b *ReadOnlySQLBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Capabilities reports the dialect and limits so prompts can mention them.
func (b *ReadOnlySQLBackend) Capabilities() *fabric.Capabilities {
	return &fabric.Capabilities{
		ReadOnly:       true,
		Dialect:        b.dialect,
		MaxRows:        b.maxRows,
		QueryTimeoutMs: b.timeout.Milliseconds(),
	}
}

// Close closes the connection pool.
func (b *ReadOnlySQLBackend) Close() error {
	return b.db.Close()
}

func (b *ReadOnlySQLBackend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

var _ fabric.ExecutionBackend = (*ReadOnlySQLBackend)(nil)
