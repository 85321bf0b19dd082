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

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogTracer exports finished spans and metrics as structured zap entries.
// Successful spans are logged at debug level, failed spans at warn.
type LogTracer struct {
	logger *zap.Logger
}

// NewLogTracer creates a tracer that logs to the given logger.
func NewLogTracer(logger *zap.Logger) *LogTracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTracer{logger: logger.Named("trace")}
}

// StartSpan creates a span linked to any parent found in ctx.
func (t *LogTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	span := newSpan(ctx, name, uuid.New().String(), uuid.New().String(), opts)
	return ContextWithSpan(ctx, span), span
}

// EndSpan stamps timing and writes the span.
func (t *LogTracer) EndSpan(span *Span) {
	if span == nil {
		return
	}
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)

	fields := []zap.Field{
		zap.String("span", span.Name),
		zap.String("trace_id", span.TraceID),
		zap.String("span_id", span.SpanID),
		zap.Duration("duration", span.Duration),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", span.ParentID))
	}
	keys := make([]string, 0, len(span.Attributes))
	for k := range span.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.Any(k, span.Attributes[k]))
	}

	if span.Status.Code == StatusError {
		t.logger.Warn("span failed", fields...)
		return
	}
	t.logger.Debug("span", fields...)
}

// RecordMetric logs the metric at debug level.
func (t *LogTracer) RecordMetric(name string, value float64, labels map[string]string) {
	t.logger.Debug("metric",
		zap.String("name", name),
		zap.Float64("value", value),
		zap.Any("labels", labels))
}

// RecordEvent logs the event at info level.
func (t *LogTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	fields := []zap.Field{zap.String("event", name)}
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	fields = append(fields, zap.Any("attributes", attributes))
	t.logger.Info("event", fields...)
}

// Flush syncs the underlying logger.
func (t *LogTracer) Flush(ctx context.Context) error {
	// Sync fails on stdout/stderr for some platforms; nothing to recover.
	_ = t.logger.Sync()
	return nil
}

var _ Tracer = (*LogTracer)(nil)
