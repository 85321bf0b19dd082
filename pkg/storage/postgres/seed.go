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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teradata-labs/fincoach/internal/pgxdriver"
)

// Demo account defaults.
const (
	DemoUsername = "demo_user"
	DemoGoals    = "I want to save $3000 for a down payment in 10 months."
)

// Transaction is one generated ledger row. An empty Category is stored as
// NULL, which is how uncategorized purchases look in the source data.
type Transaction struct {
	Amount         float64
	Type           string
	Merchant       string
	Date           time.Time
	Category       string
	IsSubscription bool
	Description    string
}

type subscription struct {
	merchant string
	amount   float64
	label    string
}

type merchant struct {
	name     string
	min, max float64
}

var subscriptions = []subscription{
	{"Netflix", 15.99, "Entertainment"},
	{"Spotify", 9.99, "Music"},
	{"Adobe Creative Cloud", 54.99, "Software"},
	{"Gym Membership", 45.00, "Health"},
}

var merchantsByKind = [][]merchant{
	{{"Starbucks", 4.50, 8.00}, {"Chipotle", 11.00, 18.00}, {"Uber Eats", 20.00, 45.00}},
	{{"Shell", 30.00, 60.00}, {"Uber", 15.00, 40.00}},
	{{"Amazon", 10.00, 100.00}, {"Target", 20.00, 80.00}},
}

// purchaseChance is the probability of a random purchase on any given day.
const purchaseChance = 0.4

// SeedOptions control the demo data generator.
type SeedOptions struct {
	Username string    // Default: DemoUsername
	Goals    string    // Default: DemoGoals
	Days     int       // Default: 90
	Seed     uint64    // Default: derived from Now
	Now      time.Time // Default: time.Now()
}

func (o SeedOptions) withDefaults() SeedOptions {
	if o.Username == "" {
		o.Username = DemoUsername
	}
	if o.Goals == "" {
		o.Goals = DemoGoals
	}
	if o.Days <= 0 {
		o.Days = 90
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Seed == 0 {
		o.Seed = uint64(o.Now.UnixNano())
	}
	return o
}

// SeedResult reports what Seed did.
type SeedResult struct {
	UserID       int64
	Transactions int
	Skipped      bool
}

// GenerateTransactions builds the demo ledger for the days between
// now-days and now inclusive: the monthly subscriptions on the first of each
// month, and a random uncategorized purchase on roughly two days in five.
// The same seed always yields the same rows.
func GenerateTransactions(seed uint64, now time.Time, days int) []Transaction {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -days)

	txns := make([]Transaction, 0, days)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if day.Day() == 1 {
			for _, sub := range subscriptions {
				txns = append(txns, Transaction{
					Amount:         sub.amount,
					Type:           "debit",
					Merchant:       sub.merchant,
					Date:           day,
					Category:       "Subscription",
					IsSubscription: true,
					Description:    "Monthly charge for " + sub.label,
				})
			}
		}

		if rng.Float64() < purchaseChance {
			kind := merchantsByKind[rng.IntN(len(merchantsByKind))]
			m := kind[rng.IntN(len(kind))]
			txns = append(txns, Transaction{
				Amount:      roundCents(m.min + rng.Float64()*(m.max-m.min)),
				Type:        "debit",
				Merchant:    m.name,
				Date:        day,
				Description: "Purchase at " + m.name,
			})
		}
	}
	return txns
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Seed inserts the demo user and ledger. It does nothing when the user
// already exists.
func Seed(ctx context.Context, pool *pgxpool.Pool, opts SeedOptions) (*SeedResult, error) {
	opts = opts.withDefaults()
	result := &SeedResult{}

	err := pgxdriver.InTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx, "SELECT id::bigint FROM users WHERE username = $1", opts.Username).Scan(&result.UserID)
		if err == nil {
			result.Skipped = true
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to look up %s: %w", opts.Username, err)
		}

		if err := tx.QueryRow(ctx,
			"INSERT INTO users (username, financial_goals) VALUES ($1, $2) RETURNING id::bigint",
			opts.Username, opts.Goals,
		).Scan(&result.UserID); err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.Username, err)
		}

		txns := GenerateTransactions(opts.Seed, opts.Now, opts.Days)
		rows := make([][]interface{}, 0, len(txns))
		for _, t := range txns {
			var category interface{}
			if t.Category != "" {
				category = t.Category
			}
			rows = append(rows, []interface{}{
				result.UserID, t.Amount, t.Type, t.Merchant, t.Date, category, t.IsSubscription, t.Description,
			})
		}
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"transactions"},
			[]string{"user_id", "amount", "transaction_type", "merchant", "date", "category", "is_subscription", "description"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to insert transactions: %w", err)
		}
		result.Transactions = int(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
