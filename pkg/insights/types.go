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

package insights

import (
	"context"
	"errors"
	"time"
)

// Type classifies an insight for display.
type Type string

const (
	TypeTrend       Type = "trend"
	TypeAlert       Type = "alert"
	TypeAchievement Type = "achievement"
)

// Valid reports whether t is a known insight type.
func (t Type) Valid() bool {
	switch t {
	case TypeTrend, TypeAlert, TypeAchievement:
		return true
	}
	return false
}

// Suggestion is one insight proposed by the model, before it is stored.
type Suggestion struct {
	Title   string `json:"title" jsonschema:"minLength=1,maxLength=120,description=Short header"`
	Message string `json:"message" jsonschema:"minLength=1,maxLength=600,description=Friendly advice in at most two sentences"`
	Type    Type   `json:"type" jsonschema:"enum=trend,enum=alert,enum=achievement"`
}

// Response is the envelope the model is asked to return.
type Response struct {
	Insights []Suggestion `json:"insights" jsonschema:"minItems=1,maxItems=3"`
}

// Insight is a stored suggestion. Only IsRead changes after creation.
type Insight struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot holds the metrics the insight prompt is built from.
type Snapshot struct {
	UserID               int64     `json:"user_id"`
	MonthName            string    `json:"month_name"`
	CurrentMonthSpending float64   `json:"current_month_spending"`
	LastMonthSpending    float64   `json:"last_month_spending"`
	TopCategory          string    `json:"top_category"`
	TopCategoryAmount    float64   `json:"top_category_amount"`
	Goals                string    `json:"user_goals"`
	GeneratedAt          time.Time `json:"generated_at"`
}

// Defaults used when a metric has no data.
const (
	NoTopCategory = "N/A"
	NoGoals       = "No specific goals set."
)

// ErrUnknownUser is returned when metrics are requested for a user that
// does not exist.
var ErrUnknownUser = errors.New("unknown user")

// ErrNotFound is returned when an insight does not exist for the user.
var ErrNotFound = errors.New("insight not found")

// MetricsSource computes a Snapshot through direct read queries.
type MetricsSource interface {
	Snapshot(ctx context.Context, userID int64, now time.Time) (*Snapshot, error)
}

// Store persists insights.
type Store interface {
	// SaveInsights stores suggestions in one transaction and returns the
	// created rows.
	SaveInsights(ctx context.Context, userID int64, suggestions []Suggestion) ([]Insight, error)

	// ListInsights returns a user's insights, newest first.
	ListInsights(ctx context.Context, userID int64, unreadOnly bool) ([]Insight, error)

	// MarkInsightRead sets is_read. Returns ErrNotFound when no row matches.
	MarkInsightRead(ctx context.Context, userID, insightID int64) error
}
