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

package llm

import (
	"context"

	"github.com/teradata-labs/fincoach/pkg/observability"
	"github.com/teradata-labs/fincoach/pkg/shuttle"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// InstrumentedProvider wraps a provider with an llm.completion span per call
// and a token metric.
type InstrumentedProvider struct {
	provider types.LLMProvider
	tracer   observability.Tracer
}

// instrumentedStructured also forwards ChatStructured, so the wrapper reports
// structured output support exactly when the wrapped provider does.
type instrumentedStructured struct {
	*InstrumentedProvider
}

// NewInstrumentedProvider wraps provider. A nil tracer returns provider unchanged.
func NewInstrumentedProvider(provider types.LLMProvider, tracer observability.Tracer) types.LLMProvider {
	if tracer == nil {
		return provider
	}
	switch provider.(type) {
	case *InstrumentedProvider, *instrumentedStructured:
		return provider
	}
	base := &InstrumentedProvider{provider: provider, tracer: tracer}
	if types.SupportsStructuredOutput(provider) {
		return &instrumentedStructured{base}
	}
	return base
}

// Name returns the wrapped provider name.
func (p *InstrumentedProvider) Name() string { return p.provider.Name() }

// Model returns the wrapped model identifier.
func (p *InstrumentedProvider) Model() string { return p.provider.Model() }

// Chat traces a Chat call.
func (p *InstrumentedProvider) Chat(ctx context.Context, messages []types.Message, tools []shuttle.Tool) (*types.LLMResponse, error) {
	return p.observe(ctx, "chat", func(ctx context.Context) (*types.LLMResponse, error) {
		return p.provider.Chat(ctx, messages, tools)
	})
}

// ChatStructured traces a ChatStructured call.
func (p *instrumentedStructured) ChatStructured(ctx context.Context, messages []types.Message, schemaName string, schema map[string]interface{}) (*types.LLMResponse, error) {
	structured := p.provider.(types.StructuredOutputProvider)
	return p.observe(ctx, "structured", func(ctx context.Context) (*types.LLMResponse, error) {
		return structured.ChatStructured(ctx, messages, schemaName, schema)
	})
}

func (p *InstrumentedProvider) observe(ctx context.Context, mode string, call func(context.Context) (*types.LLMResponse, error)) (*types.LLMResponse, error) {
	ctx, span := p.tracer.StartSpan(ctx, observability.SpanLLMCompletion,
		observability.WithAttribute(observability.AttrLLMProvider, p.provider.Name()),
		observability.WithAttribute(observability.AttrLLMModel, p.provider.Model()),
		observability.WithAttribute("llm.mode", mode),
	)
	defer p.tracer.EndSpan(span)

	resp, err := call(ctx)
	if err != nil {
		errType := "llm_error"
		if IsRetryable(err) {
			errType = "llm_unavailable"
		}
		span.RecordErrorType(err, errType)
		return nil, err
	}

	span.SetAttribute(observability.AttrLLMInputTokens, resp.Usage.InputTokens)
	span.SetAttribute(observability.AttrLLMOutputTokens, resp.Usage.OutputTokens)
	span.SetAttribute(observability.AttrLLMToolCalls, len(resp.ToolCalls))
	p.tracer.RecordMetric(observability.MetricLLMTokens, float64(resp.Usage.TotalTokens), map[string]string{
		"provider": p.provider.Name(),
		"model":    p.provider.Model(),
	})
	return resp, nil
}

var _ types.StructuredOutputProvider = (*instrumentedStructured)(nil)
