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

import "context"

// Tracer records the spans of a coach turn: the coordinator cycle, each
// worker delegation, every model call and every query the executor runs.
// Implementations must be safe for concurrent use; one tracer is shared by
// all in-flight requests.
type Tracer interface {
	// StartSpan opens a span named name. If ctx already carries a span the
	// new one joins its trace as a child. The returned context carries the
	// new span.
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span)

	// EndSpan stamps the end time and hands the span to the exporter.
	EndSpan(span *Span)

	// RecordMetric records one observation of a labelled value, for example
	// token counts per provider.
	RecordMetric(name string, value float64, labels map[string]string)

	// RecordEvent records something that happened outside any span, such as
	// an insight falling back after a parse failure.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})

	// Flush exports whatever is buffered. serve calls it during shutdown.
	Flush(ctx context.Context) error
}

type spanKey struct{}

// SpanFromContext returns the span carried by ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey{}).(*Span)
	return span
}

// ContextWithSpan returns a copy of ctx carrying span.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanKey{}, span)
}

// TraceIDFromContext returns the trace id of the span in ctx, or "" when
// the request is not traced. Handlers add it to their log lines so a turn's
// logs can be joined with its spans.
func TraceIDFromContext(ctx context.Context) string {
	if span := SpanFromContext(ctx); span != nil {
		return span.TraceID
	}
	return ""
}
