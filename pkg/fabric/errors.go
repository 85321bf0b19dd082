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

package fabric

import (
	"errors"
	"fmt"
)

// Query error codes.
const (
	// CodeQueryError covers syntax errors, unknown tables and other rejections.
	CodeQueryError = "query_error"
	// CodeQueryTimeout is a query that exceeded the per-call timeout.
	CodeQueryTimeout = "query_timeout"
	// CodePermissionDenied is a write or DDL refused by the read-only credential.
	CodePermissionDenied = "permission_denied"
	// CodeUnavailable means the backend could not be reached.
	CodeUnavailable = "backend_unavailable"
)

// QueryError is the structured failure of a backend call.
type QueryError struct {
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Suggestion returns a hint for the model on how to recover.
func (e *QueryError) Suggestion() string {
	switch e.Code {
	case CodePermissionDenied:
		return "the connection is read-only; rewrite the request as a SELECT or WITH query"
	case CodeQueryTimeout:
		return "narrow the date range or aggregate in SQL before retrying"
	case CodeQueryError:
		return "check table and column names with describe_table and fix the SQL"
	default:
		return ""
	}
}

// NewQueryError wraps err with a code.
func NewQueryError(code string, err error) *QueryError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &QueryError{
		Code:      code,
		Message:   msg,
		Retryable: code == CodeQueryTimeout || code == CodeQueryError,
		Err:       err,
	}
}

// ErrorCode extracts the QueryError code from err, or "" if err is not one.
func ErrorCode(err error) string {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}
