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

// Package fabric defines the execution backend that workers query through.
//
// The coach only ever talks to the financial data store through a
// read-only ExecutionBackend: a schema introspector (ListResources,
// GetSchema) and a query executor (ExecuteQuery) bound to a credential that
// cannot mutate data.
package fabric

import (
	"context"
)

// ExecutionBackend defines the interface for query backends.
type ExecutionBackend interface {
	// Name returns the backend identifier (e.g., "postgres", "sqlite")
	Name() string

	// ExecuteQuery executes a SQL statement and returns its rows.
	// Failures are returned as *QueryError.
	ExecuteQuery(ctx context.Context, query string) (*QueryResult, error)

	// GetSchema retrieves column information for a table or view.
	GetSchema(ctx context.Context, resource string) (*Schema, error)

	// ListResources lists tables and views visible to the credential.
	ListResources(ctx context.Context, filters map[string]string) ([]Resource, error)

	// Ping checks backend connectivity and health.
	Ping(ctx context.Context) error

	// Capabilities returns the backend's capabilities for feature discovery.
	Capabilities() *Capabilities

	// Close releases backend resources.
	Close() error
}

// QueryResult represents the result of executing a query.
type QueryResult struct {
	// Type indicates the result type ("rows")
	Type string

	// Rows for tabular results
	Rows []map[string]interface{}

	// Columns for tabular results
	Columns []Column

	// RowCount is the number of rows returned (after truncation)
	RowCount int

	// Truncated is set when more rows existed than the backend returns
	Truncated bool

	// Metadata contains backend-specific result metadata
	Metadata map[string]interface{}

	// ExecutionStats tracks execution metrics
	ExecutionStats ExecutionStats
}

// Column represents a column in tabular results.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// ExecutionStats tracks execution metrics.
type ExecutionStats struct {
	DurationMs int64
}

// Schema represents the schema of a resource.
type Schema struct {
	// Name is the table or view name
	Name string `json:"name"`

	// Type of resource (table, view)
	Type string `json:"type"`

	// Fields are the columns in ordinal order
	Fields []Field `json:"fields"`
}

// Field represents a column in a schema.
type Field struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Nullable   bool        `json:"nullable"`
	PrimaryKey bool        `json:"primary_key,omitempty"`
	Default    interface{} `json:"default,omitempty"`
}

// Resource represents an available table or view.
type Resource struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Capabilities describes what a backend supports.
type Capabilities struct {
	// ReadOnly is true when the credential cannot mutate data
	ReadOnly bool

	// Dialect is the SQL dialect the model should write ("postgres", "mysql", "sqlite")
	Dialect string

	// MaxRows is the maximum number of rows returned per query
	MaxRows int

	// QueryTimeoutMs is the per-call timeout applied to queries
	QueryTimeoutMs int64
}
