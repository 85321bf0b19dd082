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
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/teradata-labs/fincoach/pkg/observability"
	"github.com/teradata-labs/fincoach/pkg/shuttle"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// Delegation tool names offered to the coordinator model.
const (
	ToolAskSQLSpecialist = "ask_sql_specialist"
	ToolAskDataAnalyst   = "ask_data_analyst"
)

// DelegationTool is a coordinator-facing tool whose only effect is routing a
// request to a worker. The engine intercepts calls to it; Execute is never
// reached during a turn.
type DelegationTool struct {
	name        string
	description string
}

func (t *DelegationTool) Name() string { return t.name }

func (t *DelegationTool) Description() string { return t.description }

func (t *DelegationTool) Backend() string { return "" }

func (t *DelegationTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema("", map[string]*shuttle.JSONSchema{
		"request": shuttle.NewStringSchema("What the specialist should find out, in one or two sentences").WithMinLength(1),
	}, []string{"request"})
}

func (t *DelegationTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	return nil, fmt.Errorf("%s is routed by the coordinator and cannot be executed directly", t.name)
}

type route struct {
	tool   *DelegationTool
	worker *Worker
}

// Coordinator is the top-level model role. It sees the conversation and two
// delegation tools, and either answers in text or delegates.
type Coordinator struct {
	caller *modelCaller
	tools  []shuttle.Tool
	routes map[string]route
	tracer observability.Tracer
	logger *zap.Logger
}

func newCoordinator(caller *modelCaller, sqlSpecialist, dataAnalyst *Worker, tracer observability.Tracer, logger *zap.Logger) *Coordinator {
	ask := &DelegationTool{
		name: ToolAskSQLSpecialist,
		description: "Delegate to the SQL specialist when you need exact figures from the user's transactions " +
			"(totals, lists, counts, specific periods). Returns the specialist's finding as text.",
	}
	analyze := &DelegationTool{
		name: ToolAskDataAnalyst,
		description: "Delegate to the data analyst when you need interpretation of the user's transactions " +
			"(trends, savings rate, category breakdowns, anomalies, subscriptions). Returns a short summary.",
	}
	return &Coordinator{
		caller: caller,
		tools:  []shuttle.Tool{ask, analyze},
		routes: map[string]route{
			ToolAskSQLSpecialist: {tool: ask, worker: sqlSpecialist},
			ToolAskDataAnalyst:   {tool: analyze, worker: dataAnalyst},
		},
		tracer: tracer,
		logger: logger,
	}
}

// Tools returns the delegation tools.
func (c *Coordinator) Tools() []shuttle.Tool {
	return c.tools
}

// Decide asks the coordinator model for the next step given the history.
func (c *Coordinator) Decide(ctx context.Context, history []types.Message) (*types.LLMResponse, error) {
	ctx, span := c.tracer.StartSpan(ctx, observability.SpanCoordinate)
	defer c.tracer.EndSpan(span)

	messages := make([]types.Message, 0, len(history)+1)
	messages = append(messages, types.Message{Role: types.RoleSystem, Content: coordinatorPrompt})
	messages = append(messages, history...)

	resp, err := c.caller.chatWithRetry(ctx, messages, c.tools)
	if err != nil {
		mu := &ModelUnavailableError{Stage: "coordinator", Provider: c.caller.llm.Name(), Err: err}
		span.RecordErrorType(mu, "model_unavailable")
		return nil, mu
	}
	span.SetAttribute(observability.AttrLLMToolCalls, len(resp.ToolCalls))
	return resp, nil
}

// Dispatch routes one delegation call to its worker. Routing is a closed
// table: an unknown tool name becomes an error-shaped result, not a failure.
// Only a *ModelUnavailableError is returned as an error.
func (c *Coordinator) Dispatch(ctx context.Context, call types.ToolCall, question string, budget *Budget) (*shuttle.Result, error) {
	ctx, span := c.tracer.StartSpan(ctx, observability.SpanDispatch,
		observability.WithAttribute(observability.AttrToolName, call.Name),
	)
	defer c.tracer.EndSpan(span)

	r, ok := c.routes[call.Name]
	if !ok {
		te := &ToolExecutionError{
			Tool:    call.Name,
			Code:    shuttle.ErrCodeToolNotFound,
			Message: fmt.Sprintf("unknown delegation target %q; use %s or %s", call.Name, ToolAskSQLSpecialist, ToolAskDataAnalyst),
		}
		span.RecordErrorType(te, te.Code)
		return te.Result(), nil
	}
	span.SetAttribute(observability.AttrWorker, string(r.worker.Kind()))

	if err := shuttle.ValidateParams(r.tool.InputSchema(), call.Input); err != nil {
		te := &ToolExecutionError{Tool: call.Name, Code: shuttle.ErrCodeInvalidParams, Message: err.Error(), Retryable: true}
		span.RecordErrorType(te, te.Code)
		return te.Result(), nil
	}
	request, _ := call.Input["request"].(string)

	finding, err := r.worker.Run(ctx, request, question, budget)
	if err != nil {
		if IsModelUnavailable(err) {
			return nil, err
		}
		var te *ToolExecutionError
		if !errors.As(err, &te) {
			te = &ToolExecutionError{Tool: call.Name, Code: shuttle.ErrCodeExecutionFailed, Message: err.Error()}
		}
		span.RecordErrorType(te, te.Code)
		c.logger.Warn("delegation failed",
			zap.String("tool", call.Name),
			zap.String("code", te.Code),
			zap.Error(te),
		)
		return te.Result(), nil
	}

	span.SetAttribute(observability.AttrToolSuccess, true)
	return &shuttle.Result{Success: true, Data: finding}, nil
}
