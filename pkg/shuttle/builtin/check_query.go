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

package builtin

import (
	"context"
	"regexp"
	"strings"

	"github.com/teradata-labs/fincoach/pkg/fabric"
	"github.com/teradata-labs/fincoach/pkg/shuttle"
)

var (
	lineComment  = regexp.MustCompile(`--[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	stringLit    = regexp.MustCompile(`'(?:[^']|'')*'`)
	writeKeyword = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|MERGE|DROP|ALTER|CREATE|TRUNCATE|GRANT|REVOKE|COPY|VACUUM|ATTACH)\b`)
)

// CheckQueryTool reviews a query before it runs. It is advisory only: the
// credential is what actually prevents writes.
type CheckQueryTool struct {
	backend fabric.ExecutionBackend
}

func (t *CheckQueryTool) Name() string { return ToolCheckQuery }

func (t *CheckQueryTool) Description() string {
	return "Double check a SQL query before running it. Reports statements that are not read-only, " +
		"multiple statements and the SQL dialect to use."
}

func (t *CheckQueryTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema("Query to check", map[string]*shuttle.JSONSchema{
		"query": shuttle.NewStringSchema("SQL text").WithMinLength(1),
	}, []string{"query"})
}

func (t *CheckQueryTool) Backend() string { return t.backend.Name() }

func (t *CheckQueryTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	query, _ := params["query"].(string)
	issues := LintQuery(query)
	dialect := ""
	if caps := t.backend.Capabilities(); caps != nil {
		dialect = caps.Dialect
	}
	return &shuttle.Result{
		Success: true,
		Data: map[string]interface{}{
			"ok":      len(issues) == 0,
			"issues":  issues,
			"dialect": dialect,
		},
	}, nil
}

// LintQuery returns the read-only problems found in query.
func LintQuery(query string) []string {
	stripped := blockComment.ReplaceAllString(query, " ")
	stripped = lineComment.ReplaceAllString(stripped, " ")
	stripped = stringLit.ReplaceAllString(stripped, "''")
	stripped = strings.TrimSpace(stripped)

	issues := make([]string, 0)
	if stripped == "" {
		return append(issues, "query is empty")
	}

	body := strings.TrimRight(stripped, "; \n\t")
	if strings.Contains(body, ";") {
		issues = append(issues, "only a single statement is allowed")
	}

	fields := strings.Fields(body)
	first := strings.ToUpper(strings.TrimLeft(fields[0], "("))
	if first != "SELECT" && first != "WITH" {
		issues = append(issues, "query must start with SELECT or WITH, found "+first)
	}
	if m := writeKeyword.FindString(body); m != "" {
		issues = append(issues, "statement contains "+strings.ToUpper(m)+", which the read-only connection will reject")
	}
	return issues
}

var _ shuttle.Tool = (*CheckQueryTool)(nil)
