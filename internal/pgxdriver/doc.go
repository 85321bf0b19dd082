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

// Package pgxdriver opens the pgx/v5 pools the coach uses against
// PostgreSQL and runs transactions on them.
//
// Two roles reach the same database. The admin pool (NewPool) owns the
// schema and serves the conversation store, the insight store, migrations
// and the seeder. The coach's own SQL never touches that pool: it runs as
// the read-only role through database/sql with a DSN from BuildDSN, so a
// write produced by the model fails in PostgreSQL itself.
//
//	pool, err := pgxdriver.NewPool(ctx, cfg, tracer)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
package pgxdriver
