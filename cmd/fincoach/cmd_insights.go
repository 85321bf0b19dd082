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

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/fincoach/pkg/insights"
	"github.com/teradata-labs/fincoach/pkg/observability"
	"github.com/teradata-labs/fincoach/pkg/storage/postgres"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate and list spending insights",
}

var insightsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate insights for one user now",
	Long: `Compute the user's spending metrics, ask the model once for insights and
store them. Invalid model output falls back to a single summary insight.`,
	Args: cobra.NoArgs,
	RunE: runInsightsGenerate,
}

var insightsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scheduled batch immediately",
	Long:  `Generate insights for insights.user_ids, or every user when the list is empty.`,
	Args:  cobra.NoArgs,
	RunE:  runInsightsBatch,
}

var insightsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored insights for a user",
	Args:  cobra.NoArgs,
	RunE:  runInsightsList,
}

var (
	insightsUserID int64
	insightsUnread bool
)

func init() {
	insightsGenerateCmd.Flags().Int64Var(&insightsUserID, "user-id", 1, "user to generate insights for")
	insightsListCmd.Flags().Int64Var(&insightsUserID, "user-id", 1, "user whose insights to list")
	insightsListCmd.Flags().BoolVar(&insightsUnread, "unread", false, "only unread insights")

	insightsCmd.AddCommand(insightsGenerateCmd, insightsRunCmd, insightsListCmd)
	rootCmd.AddCommand(insightsCmd)
}

// insightEnv is the pipeline wiring shared by the insight commands.
type insightEnv struct {
	ctx      context.Context
	finance  *postgres.FinanceStore
	pipeline *insights.Pipeline
	logger   *zap.Logger
}

func withInsights(cmd *cobra.Command, fn func(env insightEnv) error) error {
	return withAdminPool(cmd, func(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
		provider, err := newProvider(ctx, config, firstNonEmpty(config.LLM.InsightsModel, config.LLM.Model))
		if err != nil {
			return err
		}
		finance := postgres.NewFinanceStore(pool, observability.NewNoOpTracer())
		pipeline, err := insights.NewPipeline(insights.Config{
			Metrics: finance,
			Store:   finance,
			LLM:     provider,
			Logger:  logger,
			Timeout: seconds(config.Insights.TimeoutSeconds),
		})
		if err != nil {
			return err
		}
		return fn(insightEnv{ctx: ctx, finance: finance, pipeline: pipeline, logger: logger})
	})
}

func runInsightsGenerate(cmd *cobra.Command, args []string) error {
	return withInsights(cmd, func(env insightEnv) error {
		created, err := env.pipeline.Generate(env.ctx, insightsUserID)
		if err != nil {
			return err
		}
		return printJSON(cmd, created)
	})
}

func runInsightsBatch(cmd *cobra.Command, args []string) error {
	return withInsights(cmd, func(env insightEnv) error {
		// The expression is never ticked; TriggerNow runs the batch inline.
		scheduler, err := insights.NewScheduler(insights.SchedulerConfig{
			Cron:      firstNonEmpty(config.Insights.Cron, "@daily"),
			Timezone:  config.Insights.Timezone,
			UserIDs:   config.Insights.UserIDs,
			Users:     env.finance,
			Generator: env.pipeline,
			Logger:    env.logger,
		})
		if err != nil {
			return err
		}
		report, err := scheduler.TriggerNow(env.ctx)
		if err != nil {
			return err
		}
		if err := printJSON(cmd, report); err != nil {
			return err
		}
		if report.Failed > 0 {
			return fmt.Errorf("%d of %d users failed: %s", report.Failed, report.Users, report.LastError)
		}
		return nil
	})
}

func runInsightsList(cmd *cobra.Command, args []string) error {
	return withAdminPool(cmd, func(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
		finance := postgres.NewFinanceStore(pool, observability.NewNoOpTracer())
		list, err := finance.ListInsights(ctx, insightsUserID, insightsUnread)
		if err != nil {
			return err
		}
		return printJSON(cmd, list)
	})
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
