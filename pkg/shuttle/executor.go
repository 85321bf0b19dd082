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

package shuttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teradata-labs/fincoach/pkg/observability"
)

// Executor executes tools with validation, timeouts and tracing.
// Tool failures never escape as Go errors: they come back as a Result with
// Success=false so the caller can hand them to the model as a tool message.
type Executor struct {
	registry *Registry
	tracer   observability.Tracer
	timeout  time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTimeout bounds every tool call. Zero disables the bound.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// WithTracer sets the tracer used for tool spans.
func WithTracer(t observability.Tracer) ExecutorOption {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// NewExecutor creates a new tool executor.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		tracer:   observability.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tools returns the tools the executor can run.
func (e *Executor) Tools() []Tool {
	return e.registry.ListTools()
}

// Execute executes a tool by name with the given parameters.
func (e *Executor) Execute(ctx context.Context, toolName string, params map[string]interface{}) *Result {
	ctx, span := e.tracer.StartSpan(ctx, observability.SpanToolExecute,
		observability.WithSpanKind("tool"),
		observability.WithAttribute(observability.AttrToolName, toolName))
	defer e.tracer.EndSpan(span)

	result := e.execute(ctx, toolName, params)
	span.SetAttribute(observability.AttrToolSuccess, result.Success)
	if !result.Success && result.Error != nil {
		span.RecordErrorType(errors.New(result.Error.Message), result.Error.Code)
	}
	return result
}

func (e *Executor) execute(ctx context.Context, toolName string, params map[string]interface{}) *Result {
	tool, ok := e.registry.Get(toolName)
	if !ok {
		return &Result{
			Success: false,
			Error: &Error{
				Code:       ErrCodeToolNotFound,
				Message:    fmt.Sprintf("tool not found: %s", toolName),
				Suggestion: fmt.Sprintf("available tools: %v", e.registry.List()),
			},
		}
	}

	if err := ValidateParams(tool.InputSchema(), params); err != nil {
		return &Result{
			Success: false,
			Error: &Error{
				Code:       ErrCodeInvalidParams,
				Message:    err.Error(),
				Retryable:  true,
				Suggestion: "call the tool again with arguments matching its input schema",
			},
		}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := tool.Execute(ctx, params)
	duration := time.Since(start)

	if err != nil {
		code := ErrCodeExecutionFailed
		if errors.Is(err, context.DeadlineExceeded) {
			code = ErrCodeExecutionTimeout
		}
		return &Result{
			Success:         false,
			Error:           &Error{Code: code, Message: err.Error(), Retryable: code == ErrCodeExecutionTimeout},
			ExecutionTimeMs: duration.Milliseconds(),
		}
	}

	if result == nil {
		result = &Result{Success: true}
	}
	// executor timing is authoritative
	result.ExecutionTimeMs = duration.Milliseconds()
	return result
}
