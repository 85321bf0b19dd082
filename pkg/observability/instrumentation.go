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

package observability

// Span names
const (
	SpanTurn           = "engine.turn"
	SpanCoordinate     = "engine.coordinate"
	SpanDispatch       = "engine.dispatch"
	SpanWorkerRun      = "worker.run"
	SpanLLMCompletion  = "llm.completion"
	SpanToolExecute    = "tool.execute"
	SpanBackendQuery   = "backend.query"
	SpanInsightsRun    = "insights.generate"
	SpanSessionPut     = "session.put"
	SpanMetricsCompute = "insights.metrics"
)

// Attribute keys
const (
	AttrConversationID = "conversation.id"
	AttrTurnState      = "turn.state"
	AttrTurnCycles     = "turn.cycles"
	AttrStopReason     = "turn.stop_reason"

	AttrWorker = "worker.kind"

	AttrLLMProvider     = "llm.provider"
	AttrLLMModel        = "llm.model"
	AttrLLMInputTokens  = "llm.tokens.input"
	AttrLLMOutputTokens = "llm.tokens.output"
	AttrLLMToolCalls    = "llm.tool_calls"

	AttrToolName    = "tool.name"
	AttrToolSuccess = "tool.success"

	AttrBackendName = "backend.name"
	AttrQueryRows   = "backend.rows"

	AttrUserID       = "user.id"
	AttrInsightCount = "insights.count"
	AttrParseOutcome = "insights.parse"

	AttrErrorMessage = "error.message"
	AttrErrorType    = "error.type"
)

// Metric names
const (
	MetricTurns           = "engine.turns.total"
	MetricDelegationLimit = "engine.delegation_limit.total"
	MetricQueryErrors     = "backend.query.errors"
	MetricInsightFallback = "insights.fallback.total"
	MetricLLMTokens       = "llm.tokens.total"
)
