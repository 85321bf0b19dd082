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

// Package financetest builds small SQLite finance databases for tests.
package financetest

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/fincoach/internal/sqlitedriver"
)

// Transaction is a fixture row for the transactions table.
type Transaction struct {
	UserID   int
	Amount   float64
	Type     string // debit or credit
	Merchant string
	Category string // empty stores NULL
	Date     time.Time
}

const schema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	financial_goals TEXT,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE transactions (
	id INTEGER PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id),
	amount REAL NOT NULL,
	transaction_type TEXT NOT NULL,
	merchant TEXT NOT NULL,
	date TEXT NOT NULL,
	category TEXT,
	is_subscription INTEGER NOT NULL DEFAULT 0,
	description TEXT
);`

// NewDB creates a finance database file with one demo user and the given
// transactions, and returns its path. The file is writable; open it through
// sqlitedriver.ReadOnlyDSN to get the coach's view of it.
func NewDB(t testing.TB, txns ...Transaction) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "finance.db")
	db, err := sql.Open(sqlitedriver.DriverName, path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(schema)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (id, username, financial_goals) VALUES (1, 'demo_user', ?)`,
		"I want to save $3000 for a down payment in 10 months.")
	require.NoError(t, err)

	for _, tx := range txns {
		userID := tx.UserID
		if userID == 0 {
			userID = 1
		}
		typ := tx.Type
		if typ == "" {
			typ = "debit"
		}
		var category interface{}
		if tx.Category != "" {
			category = tx.Category
		}
		_, err = db.Exec(`INSERT INTO transactions (user_id, amount, transaction_type, merchant, date, category)
			VALUES (?, ?, ?, ?, ?, ?)`, userID, tx.Amount, typ, tx.Merchant, tx.Date.Format("2006-01-02 15:04:05"), category)
		require.NoError(t, err)
	}
	return path
}
