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

// Package shuttle defines the tool contract used by coordinator and workers.
//
// Tools "shuttle" requests between the language model and the data store.
// Delegation tools route a sub-task to a worker; data tools run read-only
// queries and schema lookups.
package shuttle

import (
	"context"
	"encoding/json"
)

// Tool defines the interface for executable tools.
type Tool interface {
	// Name returns the tool's unique identifier
	Name() string

	// Description returns a human-readable description for LLM context
	Description() string

	// InputSchema returns the JSON Schema for tool parameters
	InputSchema() *JSONSchema

	// Execute runs the tool with given parameters
	Execute(ctx context.Context, params map[string]interface{}) (*Result, error)

	// Backend returns the backend type this tool requires (e.g., "postgres").
	// Empty string means the tool is backend-agnostic.
	Backend() string
}

// Result represents the outcome of tool execution.
type Result struct {
	// Success indicates if the tool executed successfully
	Success bool `json:"success"`

	// Data contains the result data (format varies by tool)
	Data interface{} `json:"data,omitempty"`

	// Error contains error information if execution failed
	Error *Error `json:"error,omitempty"`

	// Metadata contains tool-specific metadata
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// ExecutionTimeMs is the wall time of the tool call
	ExecutionTimeMs int64 `json:"execution_time_ms,omitempty"`
}

// Error represents a tool execution error with structured information.
type Error struct {
	// Code is a machine-readable error code
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// Details provides additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	// Retryable indicates if the operation can be retried
	Retryable bool `json:"retryable"`

	// Suggestion provides a suggestion for fixing the error
	Suggestion string `json:"suggestion,omitempty"`
}

// Error codes produced by the executor itself.
const (
	ErrCodeToolNotFound     = "tool_not_found"
	ErrCodeInvalidParams    = "invalid_params"
	ErrCodeExecutionFailed  = "execution_failed"
	ErrCodeExecutionTimeout = "execution_timeout"
)

// Render formats a result as the text a model sees in a tool message.
// Failed results keep their structured error so the model can react to it.
func (r *Result) Render() string {
	if r == nil {
		return `{"success":true}`
	}
	if r.Success {
		if s, ok := r.Data.(string); ok {
			return s
		}
	}
	payload := map[string]interface{}{"success": r.Success}
	if r.Data != nil {
		payload["data"] = r.Data
	}
	if r.Error != nil {
		payload["error"] = r.Error
	}
	if len(r.Metadata) > 0 {
		payload["metadata"] = r.Metadata
	}
	b, err := json.Marshal(payload)
	if err != nil {
		if r.Error != nil {
			return r.Error.Code + ": " + r.Error.Message
		}
		return err.Error()
	}
	return string(b)
}

// JSONSchema represents a JSON Schema for tool parameters.
type JSONSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
	Enum        []interface{}          `json:"enum,omitempty"`
	Default     interface{}            `json:"default,omitempty"`
	MinLength   *int                   `json:"minLength,omitempty"`
	Minimum     *float64               `json:"minimum,omitempty"`
	Maximum     *float64               `json:"maximum,omitempty"`
}

// ToJSON converts the schema to JSON bytes.
func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// ToMap converts the schema to a generic map, the shape most provider SDKs want.
func (s *JSONSchema) ToMap() (map[string]interface{}, error) {
	b, err := s.ToJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m["type"] == "object" {
		if _, ok := m["properties"]; !ok {
			m["properties"] = map[string]interface{}{}
		}
	}
	return m, nil
}

// NewObjectSchema creates a new object schema with the given properties.
func NewObjectSchema(description string, properties map[string]*JSONSchema, required []string) *JSONSchema {
	if properties == nil {
		properties = make(map[string]*JSONSchema)
	}
	return &JSONSchema{
		Type:        "object",
		Description: description,
		Properties:  properties,
		Required:    required,
	}
}

// NewStringSchema creates a new string schema.
func NewStringSchema(description string) *JSONSchema {
	return &JSONSchema{
		Type:        "string",
		Description: description,
	}
}

// NewIntegerSchema creates a new integer schema.
func NewIntegerSchema(description string) *JSONSchema {
	return &JSONSchema{
		Type:        "integer",
		Description: description,
	}
}

// WithEnum adds enum values to the schema.
func (s *JSONSchema) WithEnum(values ...interface{}) *JSONSchema {
	s.Enum = values
	return s
}

// WithMinLength requires strings to be at least n characters.
func (s *JSONSchema) WithMinLength(n int) *JSONSchema {
	s.MinLength = &n
	return s
}

// WithRange adds min/max constraints to the schema.
func (s *JSONSchema) WithRange(min, max *float64) *JSONSchema {
	s.Minimum = min
	s.Maximum = max
	return s
}
