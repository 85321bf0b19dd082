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

// Package builtin provides the data tools workers use: a schema
// introspector (list_tables, describe_table), a query checker and the
// read-only query executor (run_query).
package builtin

import (
	"context"
	"errors"

	"github.com/teradata-labs/fincoach/pkg/fabric"
	"github.com/teradata-labs/fincoach/pkg/shuttle"
)

// Tool names.
const (
	ToolListTables    = "list_tables"
	ToolDescribeTable = "describe_table"
	ToolCheckQuery    = "check_query"
	ToolRunQuery      = "run_query"
)

// SQLTools returns every data tool bound to backend.
func SQLTools(backend fabric.ExecutionBackend) []shuttle.Tool {
	return []shuttle.Tool{
		&ListTablesTool{backend: backend},
		&DescribeTableTool{backend: backend},
		&CheckQueryTool{backend: backend},
		&RunQueryTool{backend: backend},
	}
}

// NewSQLRegistry builds a registry holding the data tools.
func NewSQLRegistry(backend fabric.ExecutionBackend) *shuttle.Registry {
	return shuttle.NewRegistry(SQLTools(backend)...)
}

// ListTablesTool lists tables and views.
type ListTablesTool struct {
	backend fabric.ExecutionBackend
}

func (t *ListTablesTool) Name() string { return ToolListTables }

func (t *ListTablesTool) Description() string {
	return "List the tables and views in the financial database. Call this first when you do not know the table names."
}

func (t *ListTablesTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema("No parameters", nil, nil)
}

func (t *ListTablesTool) Backend() string { return t.backend.Name() }

func (t *ListTablesTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	resources, err := t.backend.ListResources(ctx, nil)
	if err != nil {
		return failure(err), nil
	}
	return &shuttle.Result{
		Success:  true,
		Data:     resources,
		Metadata: map[string]interface{}{"count": len(resources)},
	}, nil
}

// DescribeTableTool returns the columns of a table.
type DescribeTableTool struct {
	backend fabric.ExecutionBackend
}

func (t *DescribeTableTool) Name() string { return ToolDescribeTable }

func (t *DescribeTableTool) Description() string {
	return "Describe the columns and types of a table. Use before writing a query against it."
}

func (t *DescribeTableTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema("Table to describe", map[string]*shuttle.JSONSchema{
		"table": shuttle.NewStringSchema("Table or view name, e.g. transactions").WithMinLength(1),
	}, []string{"table"})
}

func (t *DescribeTableTool) Backend() string { return t.backend.Name() }

func (t *DescribeTableTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	table, _ := params["table"].(string)
	schema, err := t.backend.GetSchema(ctx, table)
	if err != nil {
		return failure(err), nil
	}
	return &shuttle.Result{Success: true, Data: schema}, nil
}

// RunQueryTool executes SQL through the read-only executor.
type RunQueryTool struct {
	backend fabric.ExecutionBackend
}

func (t *RunQueryTool) Name() string { return ToolRunQuery }

func (t *RunQueryTool) Description() string {
	return "Run a single read-only SQL query (SELECT or WITH) and return the rows. " +
		"The connection cannot modify data; writes fail with permission_denied."
}

func (t *RunQueryTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema("Query to run", map[string]*shuttle.JSONSchema{
		"query": shuttle.NewStringSchema("SQL text in the database dialect").WithMinLength(1),
	}, []string{"query"})
}

func (t *RunQueryTool) Backend() string { return t.backend.Name() }

func (t *RunQueryTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	query, _ := params["query"].(string)
	result, err := t.backend.ExecuteQuery(ctx, query)
	if err != nil {
		return failure(err), nil
	}

	data := map[string]interface{}{
		"columns":   columnNames(result.Columns),
		"rows":      result.Rows,
		"row_count": result.RowCount,
	}
	if result.Truncated {
		data["truncated"] = true
	}
	return &shuttle.Result{
		Success: true,
		Data:    data,
		Metadata: map[string]interface{}{
			"duration_ms": result.ExecutionStats.DurationMs,
		},
	}, nil
}

func columnNames(cols []fabric.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// failure folds a backend error into a tool result the model can read.
func failure(err error) *shuttle.Result {
	var qe *fabric.QueryError
	if !errors.As(err, &qe) {
		qe = fabric.NewQueryError(fabric.CodeQueryError, err)
	}
	return &shuttle.Result{
		Success: false,
		Error: &shuttle.Error{
			Code:       qe.Code,
			Message:    qe.Message,
			Retryable:  qe.Retryable,
			Suggestion: qe.Suggestion(),
		},
	}
}

var (
	_ shuttle.Tool = (*ListTablesTool)(nil)
	_ shuttle.Tool = (*DescribeTableTool)(nil)
	_ shuttle.Tool = (*RunQueryTool)(nil)
)
