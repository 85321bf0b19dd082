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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingGenerator struct {
	mu      sync.Mutex
	users   []int64
	fail    map[int64]bool
	block   chan struct{}
	started chan struct{}
}

func (g *countingGenerator) Generate(_ context.Context, userID int64) ([]Insight, error) {
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.users = append(g.users, userID)
	if g.fail[userID] {
		return nil, errors.New("model down")
	}
	return []Insight{{ID: userID, UserID: userID}, {ID: userID + 100, UserID: userID}}, nil
}

type staticUsers []int64

func (s staticUsers) UserIDs(context.Context) ([]int64, error) { return s, nil }

func TestNewScheduler_Validation(t *testing.T) {
	gen := &countingGenerator{}
	tests := []struct {
		name   string
		config SchedulerConfig
	}{
		{"no generator", SchedulerConfig{Cron: "0 8 * * *", UserIDs: []int64{1}}},
		{"no users", SchedulerConfig{Cron: "0 8 * * *", Generator: gen}},
		{"no cron", SchedulerConfig{UserIDs: []int64{1}, Generator: gen}},
		{"bad cron", SchedulerConfig{Cron: "every day", UserIDs: []int64{1}, Generator: gen}},
		{"bad timezone", SchedulerConfig{Cron: "0 8 * * *", Timezone: "Mars/Olympus", UserIDs: []int64{1}, Generator: gen}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScheduler(tt.config)
			assert.Error(t, err)
		})
	}
}

func TestScheduler_TriggerNow(t *testing.T) {
	gen := &countingGenerator{fail: map[int64]bool{2: true}}
	s, err := NewScheduler(SchedulerConfig{
		Cron:      "0 8 * * *",
		UserIDs:   []int64{1, 2, 3},
		Generator: gen,
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	report, err := s.TriggerNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Users)
	assert.Equal(t, 4, report.Created)
	assert.Equal(t, 1, report.Failed)
	assert.False(t, report.Successful)
	assert.Equal(t, "model down", report.LastError)
	assert.Equal(t, []int64{1, 2, 3}, gen.users)

	last := s.LastRun()
	require.NotNil(t, last)
	assert.Equal(t, report.RunID, last.RunID)
}

func TestScheduler_UsesUserLister(t *testing.T) {
	gen := &countingGenerator{}
	s, err := NewScheduler(SchedulerConfig{
		Cron:      "@daily",
		Users:     staticUsers{5, 6},
		Generator: gen,
	})
	require.NoError(t, err)

	report, err := s.TriggerNow(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Successful)
	assert.Equal(t, []int64{5, 6}, gen.users)
}

func TestScheduler_RunsDoNotOverlap(t *testing.T) {
	gen := &countingGenerator{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, err := NewScheduler(SchedulerConfig{Cron: "0 8 * * *", UserIDs: []int64{1}, Generator: gen})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.TriggerNow(context.Background())
	}()
	<-gen.started

	_, err = s.TriggerNow(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	s.tick()
	assert.Equal(t, 1, s.Skipped())

	close(gen.block)
	<-done

	gen.started = nil
	_, err = s.TriggerNow(context.Background())
	assert.NoError(t, err)
}

func TestScheduler_StartStopAndNextRun(t *testing.T) {
	s, err := NewScheduler(SchedulerConfig{
		Cron:      "30 7 * * 1",
		Timezone:  "America/New_York",
		UserIDs:   []int64{1},
		Generator: &countingGenerator{},
	})
	require.NoError(t, err)

	next := s.NextRun()
	assert.True(t, next.After(time.Now()))
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 7, next.Hour())
	assert.Equal(t, 30, next.Minute())

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
	assert.Nil(t, s.LastRun())
}
