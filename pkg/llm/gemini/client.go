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

// Package gemini implements the Google Gemini provider over the REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/teradata-labs/fincoach/pkg/llm"
	"github.com/teradata-labs/fincoach/pkg/shuttle"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// DefaultBaseURL is the public Gemini endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client implements the LLMProvider interface for Google Gemini.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	httpClient  *http.Client
	maxTokens   int
	temperature float64
}

// Config holds configuration for the Gemini client.
type Config struct {
	// Required: Gemini API key
	APIKey string

	// Model to use (default: "gemini-2.5-flash")
	Model string

	// BaseURL overrides the API endpoint (tests, proxies)
	BaseURL string

	MaxTokens   int           // Default: 8192
	Temperature float64       // Default: 0
	Timeout     time.Duration // Default: 60s
}

// NewClient creates a new Google Gemini client.
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 8192
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	return &Client{
		apiKey:      config.APIKey,
		model:       config.Model,
		baseURL:     config.BaseURL,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "gemini"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a conversation to Google Gemini and returns the response.
func (c *Client) Chat(ctx context.Context, messages []types.Message, tools []shuttle.Tool) (*types.LLMResponse, error) {
	req := c.buildRequest(messages)
	if len(tools) > 0 {
		req.Tools = []Tool{{FunctionDeclarations: convertTools(tools)}}
	}

	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.convertResponse(resp), nil
}

// ChatStructured asks for a JSON response. Gemini's response schema dialect
// differs from JSON Schema, so only the MIME type is constrained here and
// the caller validates the result.
func (c *Client) ChatStructured(ctx context.Context, messages []types.Message, schemaName string, schema map[string]interface{}) (*types.LLMResponse, error) {
	req := c.buildRequest(messages)
	req.GenerationConfig.ResponseMimeType = "application/json"

	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.convertResponse(resp), nil
}

func (c *Client) buildRequest(messages []types.Message) *GenerateContentRequest {
	system, rest := llm.SplitSystem(messages)
	temperature := c.temperature
	req := &GenerateContentRequest{
		Contents: convertMessages(rest),
		GenerationConfig: GenerationConfig{
			Temperature:     &temperature,
			MaxOutputTokens: c.maxTokens,
		},
	}
	if system != "" {
		req.SystemInstruction = &Content{Parts: []Part{{Text: system}}}
	}
	return req
}

// callAPI makes the HTTP request to Gemini's API.
func (c *Client) callAPI(ctx context.Context, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	apiURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL,
		url.PathEscape(c.model),
		url.QueryEscape(c.apiKey),
	)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &llm.APIError{Provider: "gemini", StatusCode: httpResp.StatusCode, Message: string(respBody)}
	}

	var resp GenerateContentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return nil, &llm.APIError{Provider: "gemini", StatusCode: resp.Error.Code, Message: resp.Error.Message}
	}
	return &resp, nil
}

// convertResponse converts a Gemini response to the shared format.
func (c *Client) convertResponse(resp *GenerateContentResponse) *types.LLMResponse {
	out := &types.LLMResponse{
		Usage: types.Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
			CostUSD:      c.calculateCost(resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount),
		},
		Metadata: map[string]interface{}{
			"provider": "gemini",
			"model":    c.model,
		},
	}

	if len(resp.Candidates) == 0 {
		return out
	}
	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case "STOP":
		out.StopReason = "end_turn"
	case "MAX_TOKENS":
		out.StopReason = "max_tokens"
	case "SAFETY", "RECITATION":
		out.StopReason = "content_filter"
	default:
		out.StopReason = candidate.FinishReason
	}

	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			out.Content += part.Text
		}
		if part.FunctionCall != nil {
			out.StopReason = "tool_use"
			// Gemini does not assign call IDs.
			out.ToolCalls = append(out.ToolCalls, types.ToolCall{
				ID:    "call_" + uuid.NewString(),
				Name:  part.FunctionCall.Name,
				Input: part.FunctionCall.Args,
			})
		}
	}
	return out
}

// calculateCost estimates the cost in USD (per million tokens pricing).
func (c *Client) calculateCost(inputTokens, outputTokens int) float64 {
	var inputCostPerM, outputCostPerM float64
	switch c.model {
	case "gemini-2.5-pro":
		inputCostPerM = 1.875
		outputCostPerM = 12.50
	default:
		// flash and flash-lite
		inputCostPerM = 0.30
		outputCostPerM = 2.50
	}
	return float64(inputTokens)*inputCostPerM/1_000_000 + float64(outputTokens)*outputCostPerM/1_000_000
}

func convertMessages(messages []types.Message) []Content {
	contents := make([]Content, 0, len(messages))
	for _, seg := range llm.Segments(messages) {
		switch seg.Role {
		case types.RoleUser:
			contents = append(contents, Content{Role: "user", Parts: []Part{{Text: seg.Messages[0].Content}}})
		case types.RoleAssistant:
			contents = append(contents, Content{Role: "model", Parts: []Part{{Text: seg.Messages[0].Content}}})
		case types.RoleTool:
			calls := make([]Part, 0, len(seg.Messages))
			for _, call := range seg.Calls() {
				args := call.Input
				if args == nil {
					args = map[string]interface{}{}
				}
				calls = append(calls, Part{FunctionCall: &FunctionCall{Name: call.Name, Args: args}})
			}
			results := make([]Part, 0, len(seg.Messages))
			for _, m := range seg.Messages {
				results = append(results, Part{FunctionResponse: &FunctionResponse{
					Name:     m.ToolName,
					Response: map[string]interface{}{"result": m.Content},
				}})
			}
			contents = append(contents,
				Content{Role: "model", Parts: calls},
				Content{Role: "function", Parts: results},
			)
		}
	}
	return contents
}

func convertTools(tools []shuttle.Tool) []FunctionDeclaration {
	declarations := make([]FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decl := FunctionDeclaration{
			Name:        tool.Name(),
			Description: tool.Description(),
		}
		// Gemini rejects OBJECT parameters without properties.
		if schema := tool.InputSchema(); schema != nil && len(schema.Properties) > 0 {
			params := convertSchema(schema)
			decl.Parameters = &params
		}
		declarations = append(declarations, decl)
	}
	return declarations
}

func convertSchema(schema *shuttle.JSONSchema) Schema {
	s := Schema{
		Type:        schema.Type,
		Description: schema.Description,
		Enum:        schema.Enum,
		Required:    schema.Required,
	}
	if s.Type == "" {
		s.Type = "object"
	}
	if len(schema.Properties) > 0 {
		s.Properties = make(map[string]Schema, len(schema.Properties))
		for key, prop := range schema.Properties {
			s.Properties[key] = convertSchema(prop)
		}
	}
	if schema.Items != nil {
		items := convertSchema(schema.Items)
		s.Items = &items
	}
	return s
}

var (
	_ types.LLMProvider              = (*Client)(nil)
	_ types.StructuredOutputProvider = (*Client)(nil)
)
