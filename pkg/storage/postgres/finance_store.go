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
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/teradata-labs/fincoach/internal/pgxdriver"
	"github.com/teradata-labs/fincoach/pkg/insights"
	"github.com/teradata-labs/fincoach/pkg/observability"
)

// FinanceStore reads spending metrics and persists insights. It talks to the
// database directly; no model is involved in computing a Snapshot.
type FinanceStore struct {
	pool   *pgxpool.Pool
	tracer observability.Tracer
}

// NewFinanceStore creates a finance store over an already migrated pool.
func NewFinanceStore(pool *pgxpool.Pool, tracer observability.Tracer) *FinanceStore {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &FinanceStore{pool: pool, tracer: tracer}
}

// MonthBounds returns the first day of now's month and of the month before,
// both in now's location.
func MonthBounds(now time.Time) (thisMonth, lastMonth time.Time) {
	thisMonth = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastMonth = thisMonth.AddDate(0, -1, 0)
	return thisMonth, lastMonth
}

// Snapshot computes the spending metrics for userID as of now. The four
// reads run concurrently and each is a single statement.
func (s *FinanceStore) Snapshot(ctx context.Context, userID int64, now time.Time) (_ *insights.Snapshot, err error) {
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanMetricsCompute)
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrUserID, userID)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
	}()

	thisMonth, lastMonth := MonthBounds(now)
	snap := &insights.Snapshot{
		UserID:      userID,
		MonthName:   now.Month().String(),
		TopCategory: insights.NoTopCategory,
		Goals:       insights.NoGoals,
		GeneratedAt: now,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var goals *string
		err := s.pool.QueryRow(gctx, "SELECT financial_goals FROM users WHERE id = $1", userID).Scan(&goals)
		if errors.Is(err, pgx.ErrNoRows) {
			return insights.ErrUnknownUser
		}
		if err != nil {
			return fmt.Errorf("failed to load user %d: %w", userID, err)
		}
		if goals != nil && *goals != "" {
			snap.Goals = *goals
		}
		return nil
	})
	g.Go(func() error {
		err := s.pool.QueryRow(gctx, `
			SELECT COALESCE(SUM(amount), 0)::float8 FROM transactions
			WHERE user_id = $1 AND transaction_type = 'debit' AND date >= $2`,
			userID, thisMonth,
		).Scan(&snap.CurrentMonthSpending)
		if err != nil {
			return fmt.Errorf("failed to sum current month spending: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := s.pool.QueryRow(gctx, `
			SELECT COALESCE(SUM(amount), 0)::float8 FROM transactions
			WHERE user_id = $1 AND transaction_type = 'debit' AND date >= $2 AND date < $3`,
			userID, lastMonth, thisMonth,
		).Scan(&snap.LastMonthSpending)
		if err != nil {
			return fmt.Errorf("failed to sum last month spending: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var (
			category string
			amount   float64
		)
		err := s.pool.QueryRow(gctx, `
			SELECT category, SUM(amount)::float8 AS total FROM transactions
			WHERE user_id = $1 AND transaction_type = 'debit' AND date >= $2 AND category IS NOT NULL
			GROUP BY category ORDER BY total DESC, category LIMIT 1`,
			userID, thisMonth,
		).Scan(&category, &amount)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to find top category: %w", err)
		}
		snap.TopCategory = category
		snap.TopCategoryAmount = amount
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// SaveInsights inserts all suggestions in one transaction.
func (s *FinanceStore) SaveInsights(ctx context.Context, userID int64, suggestions []insights.Suggestion) ([]insights.Insight, error) {
	saved := make([]insights.Insight, 0, len(suggestions))
	err := pgxdriver.InTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		for _, sug := range suggestions {
			in := insights.Insight{UserID: userID, Title: sug.Title, Message: sug.Message, Type: sug.Type}
			if err := tx.QueryRow(ctx, `
				INSERT INTO insights (user_id, title, message, insight_type)
				VALUES ($1, $2, $3, $4)
				RETURNING id, is_read, created_at`,
				userID, sug.Title, sug.Message, string(sug.Type),
			).Scan(&in.ID, &in.IsRead, &in.CreatedAt); err != nil {
				return fmt.Errorf("failed to insert insight: %w", err)
			}
			saved = append(saved, in)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// ListInsights returns a user's insights, newest first.
func (s *FinanceStore) ListInsights(ctx context.Context, userID int64, unreadOnly bool) ([]insights.Insight, error) {
	query := `
		SELECT id, user_id, title, message, insight_type, is_read, created_at
		FROM insights WHERE user_id = $1`
	if unreadOnly {
		query += " AND NOT is_read"
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (insights.Insight, error) {
		var (
			in  insights.Insight
			typ string
		)
		err := row.Scan(&in.ID, &in.UserID, &in.Title, &in.Message, &typ, &in.IsRead, &in.CreatedAt)
		in.Type = insights.Type(typ)
		return in, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan insights: %w", err)
	}
	if list == nil {
		list = make([]insights.Insight, 0)
	}
	return list, nil
}

// MarkInsightRead flags an insight as read.
func (s *FinanceStore) MarkInsightRead(ctx context.Context, userID, insightID int64) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE insights SET is_read = TRUE WHERE id = $1 AND user_id = $2", insightID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark insight %d read: %w", insightID, err)
	}
	if tag.RowsAffected() == 0 {
		return insights.ErrNotFound
	}
	return nil
}

// UserIDs returns every user id, for batch insight runs.
func (s *FinanceStore) UserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, "SELECT id::bigint FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan user ids: %w", err)
	}
	return ids, nil
}

var (
	_ insights.MetricsSource = (*FinanceStore)(nil)
	_ insights.Store         = (*FinanceStore)(nil)
)
