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

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/fincoach/pkg/observability"
	"github.com/teradata-labs/fincoach/pkg/shuttle"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// Kind identifies a worker specialization.
type Kind string

const (
	// KindSQLSpecialist answers requests that need exact figures.
	KindSQLSpecialist Kind = "sql_specialist"
	// KindDataAnalyst answers requests that need interpretation.
	KindDataAnalyst Kind = "data_analyst"
)

// Worker is a specialist that owns the data tools: the schema introspector
// (list_tables, describe_table), check_query and the read-only run_query.
// It runs its own tool loop and returns a single text finding.
type Worker struct {
	kind     Kind
	prompt   string
	caller   *modelCaller
	executor *shuttle.Executor
	maxSteps func() int
	tracer   observability.Tracer
	logger   *zap.Logger
}

// Kind returns the worker specialization.
func (w *Worker) Kind() Kind {
	return w.kind
}

// Run performs task for the user's question. Every data-tool call spends one
// unit from budget; when the budget runs out the worker stops and returns
// whatever it has gathered. A *ModelUnavailableError aborts the turn; a
// *ToolExecutionError is reported back to the coordinator.
func (w *Worker) Run(ctx context.Context, task, question string, budget *Budget) (string, error) {
	ctx, span := w.tracer.StartSpan(ctx, observability.SpanWorkerRun,
		observability.WithAttribute(observability.AttrWorker, string(w.kind)),
	)
	defer w.tracer.EndSpan(span)

	messages := []types.Message{
		{Role: types.RoleSystem, Content: w.prompt},
		{Role: types.RoleUser, Content: fmt.Sprintf(workerTaskTemplate, task, question)},
	}
	tools := w.executor.Tools()

	var lastData string
	toolCalls := 0
	defer func() {
		span.SetAttribute(observability.AttrLLMToolCalls, toolCalls)
	}()

	for step := 0; ; step++ {
		if limit := w.maxSteps(); limit > 0 && step >= limit {
			w.logger.Warn("worker step limit reached",
				zap.String("worker", string(w.kind)),
				zap.Int("steps", step),
			)
			return partialFinding(lastData, "step limit"), nil
		}

		resp, err := w.caller.chatWithRetry(ctx, messages, tools)
		if err != nil {
			mu := &ModelUnavailableError{Stage: string(w.kind), Provider: w.caller.llm.Name(), Err: err}
			span.RecordErrorType(mu, "model_unavailable")
			return "", mu
		}

		if len(resp.ToolCalls) == 0 {
			finding := strings.TrimSpace(resp.Content)
			if finding == "" {
				return "", &ToolExecutionError{
					Tool:    string(w.kind),
					Code:    "empty_finding",
					Message: "the specialist finished without reporting a finding",
				}
			}
			return finding, nil
		}

		for _, call := range resp.ToolCalls {
			if !budget.Spend() {
				span.SetAttribute(observability.AttrStopReason, string(types.StopDelegationLimit))
				return partialFinding(lastData, "cycle budget exhausted"), nil
			}
			toolCalls++
			call = ensureCallID(call)

			result := w.executor.Execute(ctx, call.Name, call.Input)
			msg := types.NewToolMessage(call, result)
			messages = append(messages, msg)

			if result.Success {
				lastData = msg.Content
				continue
			}
			if result.Error != nil {
				w.logger.Debug("data tool failed",
					zap.String("worker", string(w.kind)),
					zap.String("tool", call.Name),
					zap.String("code", result.Error.Code),
					zap.String("message", result.Error.Message),
				)
			}
		}
	}
}

// partialFinding reports the latest data gathered before a worker had to stop.
func partialFinding(lastData, why string) string {
	if lastData == "" {
		return fmt.Sprintf("No data was retrieved before the %s was reached.", why)
	}
	return fmt.Sprintf("Partial result (%s). Latest data retrieved:\n%s", why, lastData)
}

// ensureCallID assigns an id to calls from providers that omit one.
func ensureCallID(call types.ToolCall) types.ToolCall {
	if call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}
	return call
}
