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

// Package openai implements the OpenAI chat completions provider.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/teradata-labs/fincoach/pkg/llm"
	"github.com/teradata-labs/fincoach/pkg/shuttle"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4.1"

// Config holds configuration for the OpenAI client.
type Config struct {
	APIKey string

	// Model to use (default: DefaultModel)
	Model string

	// BaseURL overrides the API endpoint (Azure gateways, tests)
	BaseURL string

	MaxTokens   int           // Default: 4096
	Temperature float64       // Default: 0
	Timeout     time.Duration // Default: 60s
}

// Client implements the LLMProvider interface for OpenAI.
type Client struct {
	client      *sdk.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewClient creates a new OpenAI client.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := sdk.NewClient(opts...)

	return &Client{
		client:      &client,
		model:       cfg.Model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "openai"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a conversation to OpenAI and returns the response.
func (c *Client) Chat(ctx context.Context, messages []types.Message, tools []shuttle.Tool) (*types.LLMResponse, error) {
	params := c.buildParams(messages)
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}
	return c.send(ctx, params)
}

// ChatStructured requests a strict json_schema response.
func (c *Client) ChatStructured(ctx context.Context, messages []types.Message, schemaName string, schema map[string]interface{}) (*types.LLMResponse, error) {
	params := c.buildParams(messages)
	params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   schemaName,
				Strict: sdk.Bool(true),
				Schema: StrictSchema(schema),
			},
		},
	}
	return c.send(ctx, params)
}

func (c *Client) buildParams(messages []types.Message) sdk.ChatCompletionNewParams {
	return sdk.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.model),
		Messages:            convertMessages(messages),
		MaxCompletionTokens: sdk.Int(c.maxTokens),
		Temperature:         sdk.Float(c.temperature),
	}
}

func (c *Client) send(ctx context.Context, params sdk.ChatCompletionNewParams) (*types.LLMResponse, error) {
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var sdkErr *sdk.Error
		if errors.As(err, &sdkErr) {
			return nil, &llm.APIError{Provider: "openai", StatusCode: sdkErr.StatusCode, Message: sdkErr.Error()}
		}
		return nil, fmt.Errorf("openai invocation failed: %w", err)
	}
	return c.convertResponse(completion), nil
}

func (c *Client) convertResponse(completion *sdk.ChatCompletion) *types.LLMResponse {
	out := &types.LLMResponse{
		Usage: types.Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
		Metadata: map[string]interface{}{
			"provider": "openai",
			"model":    completion.Model,
			"id":       completion.ID,
		},
	}
	out.Usage.CostUSD = calculateCost(out.Usage.InputTokens, out.Usage.OutputTokens)

	if len(completion.Choices) == 0 {
		return out
	}
	choice := completion.Choices[0]
	switch choice.FinishReason {
	case "stop":
		out.StopReason = "end_turn"
	case "tool_calls":
		out.StopReason = "tool_use"
	case "length":
		out.StopReason = "max_tokens"
	default:
		out.StopReason = choice.FinishReason
	}

	out.Content = choice.Message.Content
	for _, tc := range choice.Message.ToolCalls {
		var input map[string]interface{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				// Keep the raw text so the tool reports a validation error.
				input = map[string]interface{}{"_raw": tc.Function.Arguments}
			}
		}
		if input == nil {
			input = map[string]interface{}{}
		}
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}
	return out
}

func convertMessages(messages []types.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, seg := range llm.Segments(messages) {
		switch seg.Role {
		case types.RoleSystem:
			out = append(out, sdk.SystemMessage(seg.Messages[0].Content))
		case types.RoleUser:
			out = append(out, sdk.UserMessage(seg.Messages[0].Content))
		case types.RoleAssistant:
			out = append(out, sdk.AssistantMessage(seg.Messages[0].Content))
		case types.RoleTool:
			assistant := sdk.ChatCompletionAssistantMessageParam{}
			for _, call := range seg.Calls() {
				args := []byte("{}")
				if call.Input != nil {
					if b, err := json.Marshal(call.Input); err == nil {
						args = b
					}
				}
				assistant.ToolCalls = append(assistant.ToolCalls, sdk.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: sdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, sdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
			for _, m := range seg.Messages {
				out = append(out, sdk.ToolMessage(m.Content, m.ToolUseID))
			}
		}
	}
	return out
}

func convertTools(tools []shuttle.Tool) []sdk.ChatCompletionToolParam {
	out := make([]sdk.ChatCompletionToolParam, 0, len(tools))
	for _, tool := range tools {
		def := shared.FunctionDefinitionParam{
			Name:        tool.Name(),
			Description: sdk.String(tool.Description()),
			Parameters:  shared.FunctionParameters{"type": "object", "properties": map[string]interface{}{}},
		}
		if schema := tool.InputSchema(); schema != nil {
			if m, err := schema.ToMap(); err == nil {
				def.Parameters = m
			}
		}
		out = append(out, sdk.ChatCompletionToolParam{Function: def})
	}
	return out
}

// StrictSchema returns a copy of schema that satisfies strict mode: every
// object closes additionalProperties and lists all of its properties as
// required.
func StrictSchema(schema map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(schema)+2)
	for k, v := range schema {
		out[k] = strictValue(v)
	}
	if out["type"] == "object" {
		out["additionalProperties"] = false
		if props, ok := out["properties"].(map[string]interface{}); ok {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			sort.Strings(required)
			out["required"] = required
		}
	}
	return out
}

func strictValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return StrictSchema(val)
	case []interface{}:
		items := make([]interface{}, len(val))
		for i, item := range val {
			items[i] = strictValue(item)
		}
		return items
	default:
		return v
	}
}

// calculateCost estimates the cost in USD (per million tokens pricing).
func calculateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*2.0/1_000_000 + float64(outputTokens)*8.0/1_000_000
}

var (
	_ types.LLMProvider              = (*Client)(nil)
	_ types.StructuredOutputProvider = (*Client)(nil)
)
