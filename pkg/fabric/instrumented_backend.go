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

package fabric

import (
	"context"

	"github.com/teradata-labs/fincoach/pkg/observability"
)

// InstrumentedBackend wraps an ExecutionBackend with spans and error metrics.
// Query timeouts and query errors are tagged with distinct error types.
type InstrumentedBackend struct {
	backend ExecutionBackend
	tracer  observability.Tracer
}

// NewInstrumentedBackend creates a new instrumented execution backend.
func NewInstrumentedBackend(backend ExecutionBackend, tracer observability.Tracer) *InstrumentedBackend {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &InstrumentedBackend{
		backend: backend,
		tracer:  tracer,
	}
}

// Name returns the underlying backend name.
func (ib *InstrumentedBackend) Name() string {
	return ib.backend.Name()
}

// ExecuteQuery executes a query inside a backend.query span.
func (ib *InstrumentedBackend) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	ctx, span := ib.tracer.StartSpan(ctx, observability.SpanBackendQuery,
		observability.WithSpanKind("backend"),
		observability.WithAttribute(observability.AttrBackendName, ib.backend.Name()))
	defer ib.tracer.EndSpan(span)

	preview := query
	if len(preview) > 500 {
		preview = preview[:500] + "..."
	}
	span.SetAttribute("query.preview", preview)

	result, err := ib.backend.ExecuteQuery(ctx, query)
	if err != nil {
		ib.recordFailure(span, "query", err)
		return nil, err
	}

	span.Status = observability.Status{Code: observability.StatusOK}
	span.SetAttribute(observability.AttrQueryRows, result.RowCount)
	span.SetAttribute("query.truncated", result.Truncated)
	span.SetAttribute("execution.duration_ms", result.ExecutionStats.DurationMs)
	return result, nil
}

// GetSchema retrieves a schema inside a span.
func (ib *InstrumentedBackend) GetSchema(ctx context.Context, resource string) (*Schema, error) {
	ctx, span := ib.tracer.StartSpan(ctx, "backend.get_schema",
		observability.WithAttribute("resource", resource))
	defer ib.tracer.EndSpan(span)

	schema, err := ib.backend.GetSchema(ctx, resource)
	if err != nil {
		ib.recordFailure(span, "get_schema", err)
		return nil, err
	}
	span.SetAttribute("schema.fields", len(schema.Fields))
	return schema, nil
}

// ListResources lists resources inside a span.
func (ib *InstrumentedBackend) ListResources(ctx context.Context, filters map[string]string) ([]Resource, error) {
	ctx, span := ib.tracer.StartSpan(ctx, "backend.list_resources")
	defer ib.tracer.EndSpan(span)

	resources, err := ib.backend.ListResources(ctx, filters)
	if err != nil {
		ib.recordFailure(span, "list_resources", err)
		return nil, err
	}
	span.SetAttribute("resources.count", len(resources))
	return resources, nil
}

// Ping checks the underlying backend.
func (ib *InstrumentedBackend) Ping(ctx context.Context) error {
	return ib.backend.Ping(ctx)
}

// Capabilities returns the underlying backend capabilities.
func (ib *InstrumentedBackend) Capabilities() *Capabilities {
	return ib.backend.Capabilities()
}

// Close closes the underlying backend.
func (ib *InstrumentedBackend) Close() error {
	return ib.backend.Close()
}

func (ib *InstrumentedBackend) recordFailure(span *observability.Span, op string, err error) {
	code := ErrorCode(err)
	if code == "" {
		code = "error"
	}
	span.RecordErrorType(err, code)
	ib.tracer.RecordMetric(observability.MetricQueryErrors, 1, map[string]string{
		observability.AttrBackendName: ib.backend.Name(),
		"operation":                   op,
		"code":                        code,
	})
}

var _ ExecutionBackend = (*InstrumentedBackend)(nil)
