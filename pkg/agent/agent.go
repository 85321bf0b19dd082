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

// Package agent implements the coaching engine: a coordinator model that
// delegates to two specialist workers under a per-turn cycle budget, and the
// turn loop that persists the conversation once the turn completes.
//
// A turn moves through three states:
//
//	Coordinating -> Dispatching -> Coordinating ... -> Terminal
//
// Coordinating asks the coordinator model for the next step. A text reply
// ends the turn. Delegation calls move the turn to Dispatching, where each
// call spends one budget unit and runs a worker. When the budget is spent the
// turn ends with a bounded-effort answer instead of another model call.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/fincoach/pkg/fabric"
	"github.com/teradata-labs/fincoach/pkg/llm"
	"github.com/teradata-labs/fincoach/pkg/observability"
	"github.com/teradata-labs/fincoach/pkg/session"
	"github.com/teradata-labs/fincoach/pkg/shuttle"
	"github.com/teradata-labs/fincoach/pkg/shuttle/builtin"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// Engine runs conversation turns.
type Engine struct {
	backend   fabric.ExecutionBackend
	llm       types.LLMProvider
	workerLLM types.LLMProvider
	store     session.Store
	locks     *session.KeyedMutex
	tracer    observability.Tracer
	logger    *zap.Logger
	tokens    *llm.TokenCounter

	mu     sync.RWMutex
	config Config

	coordinator *Coordinator
	workers     map[Kind]*Worker
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracer sets the observability tracer.
func WithTracer(tracer observability.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithLogger sets the logger. Defaults to zap.L().
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConfig sets the engine configuration.
func WithConfig(config *Config) Option {
	return func(e *Engine) {
		if config != nil {
			e.config = *config
		}
	}
}

// WithStore sets the session store. Defaults to an unbounded MemoryStore.
func WithStore(store session.Store) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithWorkerLLM gives workers their own provider. Defaults to the
// coordinator's provider.
func WithWorkerLLM(provider types.LLMProvider) Option {
	return func(e *Engine) {
		e.workerLLM = provider
	}
}

// WithLocks shares a per-conversation lock table with other components.
func WithLocks(locks *session.KeyedMutex) Option {
	return func(e *Engine) {
		e.locks = locks
	}
}

// NewEngine creates an engine over a read-only backend.
//
// The backend and providers are wrapped for tracing when a tracer is set, so
// callers pass the bare implementations.
func NewEngine(backend fabric.ExecutionBackend, llmProvider types.LLMProvider, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		llm:     llmProvider,
		config:  *DefaultConfig(),
		tracer:  observability.NewNoOpTracer(),
		tokens:  llm.GetTokenCounter(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = zap.L()
	}
	if e.store == nil {
		e.store = session.NewMemoryStore(nil)
	}
	if e.locks == nil {
		e.locks = session.NewKeyedMutex()
	}
	if e.workerLLM == nil {
		e.workerLLM = e.llm
	}
	if e.config.MaxCycles <= 0 {
		e.config.MaxCycles = DefaultMaxCycles
	}

	e.backend = fabric.NewInstrumentedBackend(e.backend, e.tracer)
	e.llm = llm.NewInstrumentedProvider(e.llm, e.tracer)
	e.workerLLM = llm.NewInstrumentedProvider(e.workerLLM, e.tracer)

	dialect := ""
	if caps := e.backend.Capabilities(); caps != nil {
		dialect = caps.Dialect
	}
	executor := shuttle.NewExecutor(builtin.NewSQLRegistry(e.backend), shuttle.WithTracer(e.tracer))
	workerCaller := &modelCaller{llm: e.workerLLM, settings: e.callSettings, logger: e.logger}

	e.workers = map[Kind]*Worker{
		KindSQLSpecialist: e.newWorker(KindSQLSpecialist, workerPrompt(sqlSpecialistPrompt, dialect), workerCaller, executor),
		KindDataAnalyst:   e.newWorker(KindDataAnalyst, workerPrompt(dataAnalystPrompt, dialect), workerCaller, executor),
	}
	e.coordinator = newCoordinator(
		&modelCaller{llm: e.llm, settings: e.callSettings, logger: e.logger},
		e.workers[KindSQLSpecialist],
		e.workers[KindDataAnalyst],
		e.tracer,
		e.logger,
	)
	return e
}

func (e *Engine) newWorker(kind Kind, prompt string, caller *modelCaller, executor *shuttle.Executor) *Worker {
	return &Worker{
		kind:     kind,
		prompt:   prompt,
		caller:   caller,
		executor: executor,
		maxSteps: func() int { return e.Config().WorkerMaxSteps },
		tracer:   e.tracer,
		logger:   e.logger.With(zap.String("worker", string(kind))),
	}
}

// Config returns a copy of the current configuration.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

// SetMaxCycles changes the per-turn budget for subsequent turns.
// n <= 0 restores DefaultMaxCycles.
func (e *Engine) SetMaxCycles(n int) {
	if n <= 0 {
		n = DefaultMaxCycles
	}
	e.mu.Lock()
	e.config.MaxCycles = n
	e.mu.Unlock()
}

// SetLLMTimeout changes the per-call model timeout for subsequent calls.
func (e *Engine) SetLLMTimeout(d time.Duration) {
	e.mu.Lock()
	e.config.LLMTimeout = d
	e.mu.Unlock()
}

func (e *Engine) callSettings() (RetryConfig, time.Duration) {
	cfg := e.Config()
	return cfg.Retry, cfg.LLMTimeout
}

// Coordinator returns the coordinator role.
func (e *Engine) Coordinator() *Coordinator {
	return e.coordinator
}

// Worker returns the worker of the given kind.
func (e *Engine) Worker(kind Kind) (*Worker, bool) {
	w, ok := e.workers[kind]
	return w, ok
}

// Store returns the session store.
func (e *Engine) Store() session.Store {
	return e.store
}

// HandleTurn runs one turn for an existing or new conversation.
func (e *Engine) HandleTurn(ctx context.Context, conversationID, message string) (*TurnResult, error) {
	return e.Handle(ctx, TurnRequest{ConversationID: conversationID, Message: message})
}

// Handle runs one turn. Turns for the same conversation are serialized; the
// stored conversation is replaced only after the turn completes, so a failed
// turn leaves it exactly as it was.
func (e *Engine) Handle(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if strings.TrimSpace(req.ConversationID) == "" {
		return nil, &ValidationError{Field: "thread_id", Message: "must not be empty"}
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, &ValidationError{Field: "message", Message: "must not be empty"}
	}

	cfg := e.Config()
	ctx = session.WithConversationID(ctx, req.ConversationID)
	ctx, span := e.tracer.StartSpan(ctx, observability.SpanTurn,
		observability.WithAttribute(observability.AttrConversationID, req.ConversationID),
	)
	defer e.tracer.EndSpan(span)

	unlock, err := e.locks.Lock(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	conv, err := e.load(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	conv.Append(types.Message{
		ID:        uuid.NewString(),
		Role:      types.RoleUser,
		Content:   req.Message,
		Timestamp: time.Now().UTC(),
	})

	checkpoint := &types.Checkpoint{
		TurnID:    uuid.NewString(),
		State:     types.StateCoordinating,
		MaxCycles: cfg.MaxCycles,
		UpdatedAt: time.Now().UTC(),
	}
	budget := NewBudget(cfg.MaxCycles)

	answer, calls, err := e.run(ctx, conv, checkpoint, budget, req.Message, cfg)
	span.SetAttribute(observability.AttrTurnCycles, budget.Used())
	if err != nil {
		span.RecordErrorType(err, "model_unavailable")
		e.logger.Error("turn failed",
			zap.String("conversation_id", req.ConversationID),
			zap.Int("cycles", budget.Used()),
			zap.Error(err),
		)
		return nil, err
	}

	conv.Append(types.Message{
		ID:        uuid.NewString(),
		Role:      types.RoleAssistant,
		Content:   answer,
		Timestamp: time.Now().UTC(),
	})
	checkpoint.State = types.StateTerminal
	checkpoint.Cycles = budget.Used()
	checkpoint.UpdatedAt = time.Now().UTC()
	conv.Checkpoint = checkpoint
	conv.TurnCount++

	if err := e.store.Put(ctx, req.ConversationID, conv); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to persist conversation: %w", err)
	}

	span.SetAttribute(observability.AttrTurnState, string(checkpoint.State))
	span.SetAttribute(observability.AttrStopReason, string(checkpoint.StopReason))
	e.tracer.RecordMetric(observability.MetricTurns, 1, map[string]string{
		"stop_reason": string(checkpoint.StopReason),
	})
	e.logger.Info("turn completed",
		zap.String("conversation_id", req.ConversationID),
		zap.String("stop_reason", string(checkpoint.StopReason)),
		zap.Int("cycles", budget.Used()),
		zap.Int("coordinator_calls", calls),
		zap.Int("history", len(conv.Messages)),
	)

	return &TurnResult{
		ConversationID:   req.ConversationID,
		Response:         answer,
		History:          conv.History(),
		StopReason:       checkpoint.StopReason,
		Cycles:           budget.Used(),
		CoordinatorCalls: calls,
	}, nil
}

// load returns a private copy of the stored conversation, or a new one seeded
// from the request history.
func (e *Engine) load(ctx context.Context, req TurnRequest) (*types.Conversation, error) {
	stored, err := e.store.Get(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if stored != nil {
		return stored.Clone(), nil
	}

	conv := types.NewConversation(req.ConversationID)
	for _, m := range req.History {
		if seeded, ok := seedMessage(m); ok {
			conv.Append(seeded)
		}
	}
	return conv, nil
}

// seedMessage accepts a client-supplied history entry. System prompts and
// in-flight tool requests are never taken from the client.
func seedMessage(m types.Message) (types.Message, bool) {
	switch m.Role {
	case types.RoleUser, types.RoleAssistant:
		if strings.TrimSpace(m.Content) == "" {
			return m, false
		}
	case types.RoleTool:
		if m.ToolUseID == "" || m.ToolName == "" {
			return m, false
		}
	default:
		return m, false
	}
	m.ToolCalls = nil
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return m, true
}

// run drives the state machine until the turn is terminal and returns the
// final answer and the number of coordinator calls made.
func (e *Engine) run(ctx context.Context, conv *types.Conversation, checkpoint *types.Checkpoint, budget *Budget, question string, cfg Config) (string, int, error) {
	var lastFinding string
	calls := 0

	for {
		checkpoint.State = types.StateCoordinating
		history := e.tokens.TrimToBudget(conv.Messages, cfg.ContextTokenBudget)

		resp, err := e.coordinator.Decide(ctx, history)
		calls++
		if err != nil {
			return "", calls, err
		}

		if len(resp.ToolCalls) == 0 {
			checkpoint.StopReason = types.StopFinalAnswer
			answer := strings.TrimSpace(resp.Content)
			if answer == "" {
				answer = emptyAnswerText
			}
			return answer, calls, nil
		}

		checkpoint.State = types.StateDispatching
		exhausted := false
		for _, call := range resp.ToolCalls {
			if !budget.Spend() {
				exhausted = true
				break
			}
			call = ensureCallID(call)

			result, err := e.coordinator.Dispatch(ctx, call, question, budget)
			if err != nil {
				return "", calls, err
			}

			msg := types.NewToolMessage(call, result)
			msg.ID = uuid.NewString()
			conv.Append(msg)
			if result.Success {
				lastFinding = msg.Content
			}
		}
		checkpoint.Cycles = budget.Used()
		checkpoint.UpdatedAt = time.Now().UTC()

		if exhausted || budget.Exhausted() {
			checkpoint.StopReason = types.StopDelegationLimit
			e.tracer.RecordMetric(observability.MetricDelegationLimit, 1, nil)
			e.logger.Warn("delegation limit reached",
				zap.String("conversation_id", conv.ID),
				zap.Int("max_cycles", budget.Max()),
				zap.Int("coordinator_calls", calls),
			)
			return boundedAnswer(lastFinding), calls, nil
		}
	}
}

// ResetConversation deletes a conversation once any in-flight turn for it
// has finished.
func (e *Engine) ResetConversation(ctx context.Context, conversationID string) error {
	unlock, err := e.locks.Lock(ctx, conversationID)
	if err != nil {
		return err
	}
	defer unlock()
	return e.store.Delete(ctx, conversationID)
}

// Conversation returns a stored conversation, or nil when it does not exist.
func (e *Engine) Conversation(ctx context.Context, conversationID string) (*types.Conversation, error) {
	return e.store.Get(ctx, conversationID)
}

// ListConversations returns stored conversation ids.
func (e *Engine) ListConversations(ctx context.Context) ([]string, error) {
	return e.store.List(ctx)
}
