// Package sqlitedriver registers a SQLite database/sql driver under the name
// "sqlite3" and builds DSNs for it. With CGO it uses go-sqlcipher, which can
// encrypt the session database. Without CGO it falls back to the pure-Go
// modernc.org/sqlite driver, which has no encryption support.
//
// The query executor opens the financial data file through ReadOnlyDSN, so
// SQLite itself refuses writes regardless of what SQL the model produces.
//
// Packages that only need the driver import it for side effects:
//
//	import _ "github.com/teradata-labs/fincoach/internal/sqlitedriver"
package sqlitedriver
