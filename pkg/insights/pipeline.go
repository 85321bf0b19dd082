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
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/fincoach/pkg/llm"
	"github.com/teradata-labs/fincoach/pkg/observability"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// DefaultTimeout bounds the single model call of a run.
const DefaultTimeout = 60 * time.Second

// Config wires a Pipeline.
type Config struct {
	Metrics MetricsSource
	Store   Store
	LLM     types.LLMProvider

	Tracer  observability.Tracer // Default: NoOpTracer
	Logger  *zap.Logger          // Default: zap.NewNop()
	Timeout time.Duration        // Default: DefaultTimeout
	Now     func() time.Time     // Default: time.Now
}

// Pipeline turns a metrics snapshot into stored insights with exactly one
// model call per run. It does not use the delegation loop.
type Pipeline struct {
	metrics MetricsSource
	store   Store
	llm     types.LLMProvider
	tracer  observability.Tracer
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewPipeline validates cfg and builds a pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Metrics == nil {
		return nil, errors.New("insights: metrics source is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("insights: store is required")
	}
	if cfg.LLM == nil {
		return nil, errors.New("insights: LLM provider is required")
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoOpTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{
		metrics: cfg.Metrics,
		store:   cfg.Store,
		llm:     llm.NewInstrumentedProvider(cfg.LLM, cfg.Tracer),
		tracer:  cfg.Tracer,
		logger:  cfg.Logger,
		timeout: cfg.Timeout,
		now:     cfg.Now,
	}, nil
}

// Store returns the insight store the pipeline writes to.
func (p *Pipeline) Store() Store {
	return p.store
}

// Generate computes a fresh snapshot for userID, asks the model for
// suggestions, and persists them. Output that cannot be parsed, and a failed
// model call, both yield exactly one fallback insight. Only the insights
// created by this run are returned.
func (p *Pipeline) Generate(ctx context.Context, userID int64) (_ []Insight, err error) {
	ctx, span := p.tracer.StartSpan(ctx, observability.SpanInsightsRun)
	defer p.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrUserID, userID)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
	}()

	if userID <= 0 {
		return nil, ErrUnknownUser
	}

	snap, err := p.metrics.Snapshot(ctx, userID, p.now())
	if err != nil {
		return nil, fmt.Errorf("failed to compute metrics: %w", err)
	}

	suggestions, outcome := p.suggest(ctx, snap)
	span.SetAttribute(observability.AttrParseOutcome, string(outcome))
	if outcome == OutcomeFallback || outcome == OutcomeModelError {
		p.tracer.RecordMetric(observability.MetricInsightFallback, 1, map[string]string{
			"reason": string(outcome),
		})
	}

	saved, err := p.store.SaveInsights(ctx, userID, suggestions)
	if err != nil {
		return nil, fmt.Errorf("failed to save insights: %w", err)
	}
	span.SetAttribute(observability.AttrInsightCount, len(saved))

	p.logger.Info("Generated insights",
		zap.Int64("user_id", userID),
		zap.String("outcome", string(outcome)),
		zap.Int("count", len(saved)))
	return saved, nil
}

// suggest makes the one model call and parses its answer, substituting the
// fallback on any failure.
func (p *Pipeline) suggest(ctx context.Context, snap *Snapshot) ([]Suggestion, Outcome) {
	raw, err := p.complete(ctx, snap)
	if err != nil {
		p.logger.Warn("Insight model call failed, using fallback",
			zap.Int64("user_id", snap.UserID),
			zap.Error(err))
		return []Suggestion{Fallback(snap)}, OutcomeModelError
	}

	suggestions, outcome, err := parse(raw)
	if err != nil {
		p.logger.Warn("Insight response unparseable, using fallback",
			zap.Int64("user_id", snap.UserID),
			zap.Int("response_length", len(raw)),
			zap.Error(err))
		return []Suggestion{Fallback(snap)}, OutcomeFallback
	}
	if outcome == OutcomeLenient {
		p.logger.Debug("Insight response accepted by lenient parse",
			zap.Int64("user_id", snap.UserID))
	}
	return suggestions, outcome
}

func (p *Pipeline) complete(ctx context.Context, snap *Snapshot) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	messages := []types.Message{
		{Role: types.RoleSystem, Content: coachSystemPrompt},
		{Role: types.RoleUser, Content: buildUserPrompt(snap)},
	}

	var (
		resp *types.LLMResponse
		err  error
	)
	if structured, ok := p.llm.(types.StructuredOutputProvider); ok {
		resp, err = structured.ChatStructured(callCtx, messages, ResponseSchemaName, ResponseSchema())
	} else {
		resp, err = p.llm.Chat(callCtx, messages, nil)
	}
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("empty model response")
	}
	return resp.Content, nil
}
