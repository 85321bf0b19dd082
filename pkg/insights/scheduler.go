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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrRunInProgress is returned by TriggerNow while a run is still going.
var ErrRunInProgress = errors.New("insight run already in progress")

// Generator produces insights for one user.
type Generator interface {
	Generate(ctx context.Context, userID int64) ([]Insight, error)
}

// UserLister enumerates users for a batch run.
type UserLister interface {
	UserIDs(ctx context.Context) ([]int64, error)
}

// SchedulerConfig contains scheduler configuration.
type SchedulerConfig struct {
	// Cron is a standard 5-field cron expression
	Cron string

	// Timezone the expression is evaluated in (default: UTC)
	Timezone string

	// UserIDs limits runs to these users. When empty, Users is consulted.
	UserIDs []int64
	Users   UserLister

	Generator Generator
	Logger    *zap.Logger

	// RunTimeout bounds one batch run (default: 30 minutes)
	RunTimeout time.Duration
}

// RunReport summarizes one batch run.
type RunReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Users      int           `json:"users"`
	Created    int           `json:"created"`
	Failed     int           `json:"failed"`
	LastError  string        `json:"last_error,omitempty"`
	Successful bool          `json:"successful"`
}

// Scheduler runs the insight pipeline for a set of users on a cron schedule.
// Runs never overlap; a tick that fires during a run is skipped.
type Scheduler struct {
	mu         sync.Mutex
	cronEngine *cron.Cron
	schedule   cron.Schedule
	location   *time.Location
	running    bool
	lastRun    *RunReport
	skipped    int
	config     SchedulerConfig
	logger     *zap.Logger
}

// NewScheduler validates config and registers the cron entry. Call Start to
// begin ticking.
func NewScheduler(config SchedulerConfig) (*Scheduler, error) {
	if config.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if len(config.UserIDs) == 0 && config.Users == nil {
		return nil, fmt.Errorf("user ids or a user lister is required")
	}
	if config.Cron == "" {
		return nil, fmt.Errorf("cron expression is required")
	}
	schedule, err := cron.ParseStandard(config.Cron)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	if config.Timezone == "" {
		config.Timezone = "UTC"
	}
	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 30 * time.Minute
	}

	s := &Scheduler{
		cronEngine: cron.New(cron.WithLocation(location)),
		schedule:   schedule,
		location:   location,
		config:     config,
		logger:     config.Logger,
	}
	if _, err := s.cronEngine.AddFunc(config.Cron, s.tick); err != nil {
		return nil, fmt.Errorf("failed to add cron job: %w", err)
	}
	return s, nil
}

// Start begins executing scheduled runs.
func (s *Scheduler) Start() {
	s.cronEngine.Start()
	s.logger.Info("Insight scheduler started",
		zap.String("cron", s.config.Cron),
		zap.String("timezone", s.config.Timezone),
		zap.Time("next_run", s.NextRun()))
}

// Stop stops the cron engine and waits for a run in progress, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronCtx := s.cronEngine.Stop()
	select {
	case <-cronCtx.Done():
		s.logger.Info("Insight scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Insight scheduler shutdown timeout, a run may still be in progress")
		return ctx.Err()
	}
}

// NextRun returns the next time the schedule fires.
func (s *Scheduler) NextRun() time.Time {
	return s.schedule.Next(time.Now().In(s.location))
}

// LastRun returns the report of the most recent run, or nil.
func (s *Scheduler) LastRun() *RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return nil
	}
	report := *s.lastRun
	return &report
}

// Skipped returns how many ticks were skipped because a run was in progress.
func (s *Scheduler) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// TriggerNow runs a batch immediately and waits for it.
func (s *Scheduler) TriggerNow(ctx context.Context) (*RunReport, error) {
	if !s.begin() {
		return nil, ErrRunInProgress
	}
	return s.run(ctx), nil
}

func (s *Scheduler) tick() {
	if !s.begin() {
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		s.logger.Info("Skipping insight run, previous still running")
		return
	}
	s.run(context.Background())
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

// run executes one batch. The caller must hold the running flag.
func (s *Scheduler) run(ctx context.Context) *RunReport {
	report := &RunReport{RunID: uuid.New().String(), StartedAt: time.Now()}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		report.Successful = report.Failed == 0
		s.mu.Lock()
		s.running = false
		s.lastRun = report
		s.mu.Unlock()
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	s.logger.Info("Executing scheduled insight run", zap.String("run_id", report.RunID))

	userIDs := s.config.UserIDs
	if len(userIDs) == 0 {
		ids, err := s.config.Users.UserIDs(runCtx)
		if err != nil {
			report.Failed = 1
			report.LastError = err.Error()
			s.logger.Error("Failed to list users for insight run",
				zap.String("run_id", report.RunID),
				zap.Error(err))
			return report
		}
		userIDs = ids
	}
	report.Users = len(userIDs)

	for i, userID := range userIDs {
		if runCtx.Err() != nil {
			report.Failed += len(userIDs) - i
			report.LastError = runCtx.Err().Error()
			break
		}
		created, err := s.config.Generator.Generate(runCtx, userID)
		if err != nil {
			report.Failed++
			report.LastError = err.Error()
			s.logger.Error("Insight generation failed",
				zap.String("run_id", report.RunID),
				zap.Int64("user_id", userID),
				zap.Error(err))
			continue
		}
		report.Created += len(created)
	}

	s.logger.Info("Insight run finished",
		zap.String("run_id", report.RunID),
		zap.Int("users", report.Users),
		zap.Int("created", report.Created),
		zap.Int("failed", report.Failed))
	return report
}
