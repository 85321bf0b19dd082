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
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/teradata-labs/fincoach/pkg/fabric"
)

// Postgres SQLSTATE codes.
const (
	pgReadOnlyTransaction   = "25006"
	pgInsufficientPrivilege = "42501"
	pgQueryCanceled         = "57014"
)

// MySQL server error numbers.
const (
	myReadOnlyTransaction = 1792
	myTableAccessDenied   = 1142
	myDBAccessDenied      = 1044
	myReadOnlyServer      = 1290
	myQueryTimeout        = 3024
)

// ClassifyError maps a driver error to a *fabric.QueryError.
// ctx is consulted first so a deadline wins over whatever the driver reported
// while the statement was being canceled.
func ClassifyError(ctx context.Context, err error) *fabric.QueryError {
	if err == nil {
		return nil
	}
	var qe *fabric.QueryError
	if errors.As(err, &qe) {
		return qe
	}
	if errors.Is(err, context.DeadlineExceeded) || (ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return fabric.NewQueryError(fabric.CodeQueryTimeout, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fabric.NewQueryError(postgresCode(string(pqErr.Code)), err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fabric.NewQueryError(postgresCode(pgErr.Code), err)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case myReadOnlyTransaction, myTableAccessDenied, myDBAccessDenied, myReadOnlyServer:
			return fabric.NewQueryError(fabric.CodePermissionDenied, err)
		case myQueryTimeout:
			return fabric.NewQueryError(fabric.CodeQueryTimeout, err)
		}
		return fabric.NewQueryError(fabric.CodeQueryError, err)
	}

	// Both SQLite drivers report SQLITE_READONLY with this text.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "readonly database") || strings.Contains(msg, "read-only") {
		return fabric.NewQueryError(fabric.CodePermissionDenied, err)
	}
	if strings.Contains(msg, "interrupted") {
		return fabric.NewQueryError(fabric.CodeQueryTimeout, err)
	}
	return fabric.NewQueryError(fabric.CodeQueryError, err)
}

func postgresCode(sqlstate string) string {
	switch sqlstate {
	case pgReadOnlyTransaction, pgInsufficientPrivilege:
		return fabric.CodePermissionDenied
	case pgQueryCanceled:
		return fabric.CodeQueryTimeout
	default:
		return fabric.CodeQueryError
	}
}
