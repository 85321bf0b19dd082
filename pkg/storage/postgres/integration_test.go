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

//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/fincoach/pkg/insights"
	"github.com/teradata-labs/fincoach/pkg/observability"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// testPool connects to TEST_POSTGRES_URL and migrates the schema. The pool
// is closed via t.Cleanup.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_URL not set; skipping PostgreSQL integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "failed to connect to PostgreSQL")
	t.Cleanup(pool.Close)

	migrator, err := NewMigrator(pool, observability.NewNoOpTracer())
	require.NoError(t, err)
	require.NoError(t, migrator.MigrateUp(ctx))
	return pool
}

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func createUser(t *testing.T, pool *pgxpool.Pool, goals *string) int64 {
	t.Helper()
	ctx := context.Background()
	var id int64
	require.NoError(t, pool.QueryRow(ctx,
		"INSERT INTO users (username, financial_goals) VALUES ($1, $2) RETURNING id::bigint",
		uniqueID("u"), goals,
	).Scan(&id))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM users WHERE id = $1", id)
	})
	return id
}

func addTxn(t *testing.T, pool *pgxpool.Pool, userID int64, amount float64, kind, category string, date time.Time) {
	t.Helper()
	var cat interface{}
	if category != "" {
		cat = category
	}
	_, err := pool.Exec(context.Background(), `
		INSERT INTO transactions (user_id, amount, transaction_type, merchant, date, category)
		VALUES ($1, $2, $3, 'Test', $4, $5)`, userID, amount, kind, date, cat)
	require.NoError(t, err)
}

func TestMigrator_Idempotent(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	migrator, err := NewMigrator(pool, nil)
	require.NoError(t, err)
	require.NoError(t, migrator.MigrateUp(ctx))

	version, err := migrator.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	pending, err := migrator.PendingMigrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMigrator_ConcurrentMigrateUp(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := NewMigrator(pool, nil)
			if err != nil {
				errs <- err
				return
			}
			errs <- m.MigrateUp(ctx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestConversationStore_RoundTrip(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	store := NewConversationStore(pool, nil)

	id := uniqueID("thread")
	t.Cleanup(func() { _ = store.Delete(context.Background(), id) })

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)

	conv := types.NewConversation(id)
	call := &types.ToolCall{ID: "c1", Name: "ask_sql_specialist", Input: map[string]interface{}{"request": "food"}}
	conv.Messages = append(conv.Messages,
		types.Message{ID: "m1", Role: types.RoleUser, Content: "food last month?", Timestamp: time.Now().UTC()},
		types.Message{ID: "m2", Role: types.RoleTool, Content: "$284.50", ToolCall: call, ToolUseID: "c1", ToolName: call.Name, Timestamp: time.Now().UTC()},
		types.Message{ID: "m3", Role: types.RoleAssistant, Content: "You spent $284.50.", Timestamp: time.Now().UTC()},
	)
	conv.TurnCount = 1
	conv.Checkpoint = &types.Checkpoint{TurnID: "t1", State: types.StateTerminal, Cycles: 1, MaxCycles: 50, StopReason: types.StopFinalAnswer}
	require.NoError(t, store.Put(ctx, id, conv))

	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "m2", got.Messages[1].ID)
	require.NotNil(t, got.Messages[1].ToolCall)
	assert.Equal(t, "food", got.Messages[1].ToolCall.Input["request"])
	assert.Equal(t, types.StateTerminal, got.Checkpoint.State)
	assert.Equal(t, 1, got.TurnCount)

	// Put replaces; it never merges.
	conv.Messages = conv.Messages[:1]
	require.NoError(t, store.Put(ctx, id, conv))
	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, id)

	require.NoError(t, store.Delete(ctx, id))
	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFinanceStore_Snapshot(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	store := NewFinanceStore(pool, nil)

	now := time.Date(2026, time.March, 17, 12, 0, 0, 0, time.UTC)
	goals := "Save for a bike"
	user := createUser(t, pool, &goals)

	addTxn(t, pool, user, 40.00, "debit", "Food", time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC))
	addTxn(t, pool, user, 25.50, "debit", "Food", time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC))
	addTxn(t, pool, user, 60.00, "debit", "Transport", time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC))
	addTxn(t, pool, user, 12.00, "debit", "", time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC))
	addTxn(t, pool, user, 3200.00, "credit", "Salary", time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	addTxn(t, pool, user, 99.99, "debit", "Shopping", time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC))

	snap, err := store.Snapshot(ctx, user, now)
	require.NoError(t, err)
	assert.Equal(t, "March", snap.MonthName)
	assert.InDelta(t, 137.50, snap.CurrentMonthSpending, 0.001)
	assert.InDelta(t, 99.99, snap.LastMonthSpending, 0.001)
	assert.Equal(t, "Food", snap.TopCategory)
	assert.InDelta(t, 65.50, snap.TopCategoryAmount, 0.001)
	assert.Equal(t, goals, snap.Goals)
}

func TestFinanceStore_SnapshotDefaults(t *testing.T) {
	pool := testPool(t)
	store := NewFinanceStore(pool, nil)
	user := createUser(t, pool, nil)

	snap, err := store.Snapshot(context.Background(), user, time.Now())
	require.NoError(t, err)
	assert.Equal(t, insights.NoTopCategory, snap.TopCategory)
	assert.Zero(t, snap.TopCategoryAmount)
	assert.Equal(t, insights.NoGoals, snap.Goals)

	_, err = store.Snapshot(context.Background(), -1, time.Now())
	assert.ErrorIs(t, err, insights.ErrUnknownUser)
}

func TestFinanceStore_Insights(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	store := NewFinanceStore(pool, nil)
	user := createUser(t, pool, nil)

	saved, err := store.SaveInsights(ctx, user, []insights.Suggestion{
		{Title: "Food is up", Message: "You spent more on food.", Type: insights.TypeAlert},
		{Title: "Nice work", Message: "Transport is down.", Type: insights.TypeAchievement},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.NotZero(t, saved[0].ID)
	assert.False(t, saved[0].IsRead)

	require.NoError(t, store.MarkInsightRead(ctx, user, saved[0].ID))
	assert.ErrorIs(t, store.MarkInsightRead(ctx, user, -1), insights.ErrNotFound)

	all, err := store.ListInsights(ctx, user, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	unread, err := store.ListInsights(ctx, user, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "Nice work", unread[0].Title)
}

func TestSeed_SkipsExistingUser(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	name := uniqueID("demo")
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM users WHERE username = $1", name)
	})

	first, err := Seed(ctx, pool, SeedOptions{Username: name, Seed: 42})
	require.NoError(t, err)
	assert.False(t, first.Skipped)
	assert.Positive(t, first.Transactions)

	second, err := Seed(ctx, pool, SeedOptions{Username: name, Seed: 42})
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.UserID, second.UserID)
}
