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

// Package anthropic implements the Claude provider on the official Anthropic SDK.
// The same conversion serves the Bedrock provider, which swaps in AWS
// request signing through SDK options.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/teradata-labs/fincoach/pkg/llm"
	"github.com/teradata-labs/fincoach/pkg/shuttle"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey string

	// Model to use (default: DefaultModel)
	Model string

	// BaseURL overrides the API endpoint (tests, proxies)
	BaseURL string

	MaxTokens   int           // Default: 4096
	Temperature float64       // Default: 0
	Timeout     time.Duration // Default: 60s
}

// Client implements the LLMProvider interface over the Anthropic Messages API.
type Client struct {
	client      sdk.Client
	name        string
	model       string
	maxTokens   int64
	temperature float64
}

// NewClient creates a client for the Anthropic API.
func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return NewWithOptions("anthropic", cfg, opts...)
}

// NewWithOptions creates a client with explicit SDK options. Retries are left
// to the caller so a failed turn is not retried twice.
func NewWithOptions(name string, cfg Config, opts ...option.RequestOption) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	opts = append(opts, option.WithMaxRetries(0), option.WithRequestTimeout(cfg.Timeout))

	return &Client{
		client:      sdk.NewClient(opts...),
		name:        name,
		model:       cfg.Model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a conversation to Claude and returns the response.
func (c *Client) Chat(ctx context.Context, messages []types.Message, tools []shuttle.Tool) (*types.LLMResponse, error) {
	params, err := c.buildParams(messages)
	if err != nil {
		return nil, err
	}
	if len(tools) > 0 {
		params.Tools = ConvertTools(tools)
	}
	return c.send(ctx, params)
}

// ChatStructured forces a single call to a tool whose input schema is the
// requested schema and returns that input as JSON text.
func (c *Client) ChatStructured(ctx context.Context, messages []types.Message, schemaName string, schema map[string]interface{}) (*types.LLMResponse, error) {
	params, err := c.buildParams(messages)
	if err != nil {
		return nil, err
	}
	inputSchema := sdk.ToolInputSchemaParam{ExtraFields: map[string]any{}}
	for k, v := range schema {
		switch k {
		case "type":
			// always object
		case "properties":
			inputSchema.Properties = v
		case "required":
			inputSchema.Required = toStrings(v)
		default:
			inputSchema.ExtraFields[k] = v
		}
	}
	params.Tools = []sdk.ToolUnionParam{{OfTool: &sdk.ToolParam{
		Name:        schemaName,
		Description: sdk.String("Return the result in this structure."),
		InputSchema: inputSchema,
	}}}
	params.ToolChoice = sdk.ToolChoiceParamOfTool(schemaName)

	resp, err := c.send(ctx, params)
	if err != nil {
		return nil, err
	}
	for _, call := range resp.ToolCalls {
		if call.Name != schemaName {
			continue
		}
		raw, err := json.Marshal(call.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to encode structured output: %w", err)
		}
		resp.Content = string(raw)
		resp.ToolCalls = nil
		resp.StopReason = "end_turn"
		break
	}
	return resp, nil
}

func (c *Client) buildParams(messages []types.Message) (sdk.MessageNewParams, error) {
	system, sdkMessages := ConvertMessages(messages)
	if len(sdkMessages) == 0 {
		return sdk.MessageNewParams{}, fmt.Errorf("no valid messages to send (messages may be empty)")
	}
	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		Messages:    sdkMessages,
		MaxTokens:   c.maxTokens,
		Temperature: sdk.Float(c.temperature),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	return params, nil
}

func (c *Client) send(ctx context.Context, params sdk.MessageNewParams) (*types.LLMResponse, error) {
	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var sdkErr *sdk.Error
		if errors.As(err, &sdkErr) {
			return nil, &llm.APIError{Provider: c.name, StatusCode: sdkErr.StatusCode, Message: sdkErr.Error()}
		}
		return nil, fmt.Errorf("%s invocation failed: %w", c.name, err)
	}
	return c.convertResponse(message), nil
}

func (c *Client) convertResponse(message *sdk.Message) *types.LLMResponse {
	out := &types.LLMResponse{
		StopReason: string(message.StopReason),
		Usage: types.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
			TotalTokens:  int(message.Usage.InputTokens + message.Usage.OutputTokens),
			CostUSD:      calculateCost(int(message.Usage.InputTokens), int(message.Usage.OutputTokens)),
		},
		Metadata: map[string]interface{}{
			"provider":   c.name,
			"model":      c.model,
			"message_id": message.ID,
		},
	}

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			var input map[string]interface{}
			if len(block.Input) > 0 {
				_ = json.Unmarshal(block.Input, &input)
			}
			if input == nil {
				input = map[string]interface{}{}
			}
			out.ToolCalls = append(out.ToolCalls, types.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}
	return out
}

// ConvertMessages converts history to Messages API format. Each run of tool
// results becomes an assistant tool_use message followed by a user message
// carrying the matching tool_result blocks.
func ConvertMessages(messages []types.Message) (string, []sdk.MessageParam) {
	system, rest := llm.SplitSystem(messages)
	out := make([]sdk.MessageParam, 0, len(rest))
	for _, seg := range llm.Segments(rest) {
		switch seg.Role {
		case types.RoleUser:
			if content := seg.Messages[0].Content; content != "" {
				out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(content)))
			}
		case types.RoleAssistant:
			if content := seg.Messages[0].Content; content != "" {
				out = append(out, sdk.NewAssistantMessage(sdk.NewTextBlock(content)))
			}
		case types.RoleTool:
			uses := make([]sdk.ContentBlockParamUnion, 0, len(seg.Messages))
			for _, call := range seg.Calls() {
				var input interface{} = call.Input
				if call.Input == nil {
					input = map[string]interface{}{}
				}
				uses = append(uses, sdk.NewToolUseBlock(call.ID, input, call.Name))
			}
			results := make([]sdk.ContentBlockParamUnion, 0, len(seg.Messages))
			for _, m := range seg.Messages {
				results = append(results, sdk.NewToolResultBlock(m.ToolUseID, m.Content, m.IsError))
			}
			out = append(out, sdk.NewAssistantMessage(uses...), sdk.NewUserMessage(results...))
		}
	}
	return system, out
}

// ConvertTools converts shuttle tools to Messages API tool definitions.
func ConvertTools(tools []shuttle.Tool) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		param := sdk.ToolParam{
			Name:        tool.Name(),
			Description: sdk.String(tool.Description()),
		}
		param.InputSchema = sdk.ToolInputSchemaParam{Properties: map[string]interface{}{}}
		if schema := tool.InputSchema(); schema != nil {
			if m, err := schema.ToMap(); err == nil {
				param.InputSchema.Properties = m["properties"]
				param.InputSchema.Required = schema.Required
			}
		}
		out = append(out, sdk.ToolUnionParam{OfTool: &param})
	}
	return out
}

func toStrings(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, s := range vals {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// calculateCost estimates the cost in USD using Sonnet pricing.
func calculateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*3.0/1_000_000 + float64(outputTokens)*15.0/1_000_000
}

var (
	_ types.LLMProvider              = (*Client)(nil)
	_ types.StructuredOutputProvider = (*Client)(nil)
)
