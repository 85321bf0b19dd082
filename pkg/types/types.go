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

// Package types contains shared types used across the coach.
// This package breaks import cycles by providing common types that
// pkg/agent, pkg/llm, pkg/session and pkg/insights all depend on.
package types

import (
	"context"
	"time"

	"github.com/teradata-labs/fincoach/pkg/shuttle"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// ToolCall represents a tool invocation by the LLM.
type ToolCall struct {
	// ID is a unique identifier for this tool call
	ID string `json:"id"`

	// Name is the tool name
	Name string `json:"name"`

	// Input contains the tool parameters
	Input map[string]interface{} `json:"input,omitempty"`
}

// Message represents a single message in the conversation.
type Message struct {
	// ID is the unique message identifier
	ID string `json:"id,omitempty"`

	// Role is the message sender (user, assistant, tool, system)
	Role string `json:"role"`

	// Content is the message text. For tool messages it is the rendered result.
	Content string `json:"content"`

	// ToolCall is the request a tool message answers. Providers use it to
	// rebuild the model-native request/result pair when replaying history.
	ToolCall *ToolCall `json:"tool_call,omitempty"`

	// ToolCalls contains tool invocations requested by an assistant message.
	// Only present on in-flight model responses, never persisted.
	ToolCalls []ToolCall `json:"-"`

	// ToolUseID is the ID of the tool call this result corresponds to (if role is tool)
	ToolUseID string `json:"tool_use_id,omitempty"`

	// ToolName is the tool that produced this result (if role is tool)
	ToolName string `json:"tool_name,omitempty"`

	// IsError marks a tool result that reports a failure
	IsError bool `json:"is_error,omitempty"`

	// Timestamp when the message was created
	Timestamp time.Time `json:"timestamp"`

	// TokenCount is an estimate used for context trimming
	TokenCount int `json:"token_count,omitempty"`
}

// NewToolMessage builds the tool-result message for a call.
func NewToolMessage(call ToolCall, result *shuttle.Result) Message {
	isError := result != nil && !result.Success
	callCopy := call
	return Message{
		Role:      RoleTool,
		Content:   result.Render(),
		ToolCall:  &callCopy,
		ToolUseID: call.ID,
		ToolName:  call.Name,
		IsError:   isError,
		Timestamp: time.Now().UTC(),
	}
}

// Usage tracks LLM token usage and costs.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64
}

// LLMResponse represents a response from the LLM.
type LLMResponse struct {
	// Content is the text response (if no tool calls)
	Content string

	// ToolCalls contains requested tool executions
	ToolCalls []ToolCall

	// StopReason indicates why the LLM stopped
	StopReason string

	// Usage tracks token usage
	Usage Usage

	// Metadata contains provider-specific metadata
	Metadata map[string]interface{}
}

// LLMProvider defines the interface for LLM providers.
type LLMProvider interface {
	// Chat sends a conversation to the LLM and returns the response
	Chat(ctx context.Context, messages []Message, tools []shuttle.Tool) (*LLMResponse, error)

	// Name returns the provider name
	Name() string

	// Model returns the model identifier
	Model() string
}

// StructuredOutputProvider is implemented by providers that can constrain the
// response to a JSON Schema natively.
type StructuredOutputProvider interface {
	LLMProvider

	// ChatStructured returns raw JSON text conforming to schema.
	ChatStructured(ctx context.Context, messages []Message, schemaName string, schema map[string]interface{}) (*LLMResponse, error)
}

// SupportsStructuredOutput reports whether a provider implements StructuredOutputProvider.
func SupportsStructuredOutput(provider LLMProvider) bool {
	_, ok := provider.(StructuredOutputProvider)
	return ok
}
