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

package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/fincoach/pkg/llm"
	"github.com/teradata-labs/fincoach/pkg/shuttle"
	"github.com/teradata-labs/fincoach/pkg/types"
)

func TestClient_ChatToolRoundTrip(t *testing.T) {
	var captured GenerateContentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [
				{"functionCall": {"name": "ask_sql_specialist", "args": {"request": "food spend last month"}}}
			]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 120, "candidatesTokenCount": 12, "totalTokenCount": 132}
		}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	tool := &shuttle.MockTool{
		MockName: "ask_sql_specialist",
		MockSchema: shuttle.NewObjectSchema("", map[string]*shuttle.JSONSchema{
			"request": shuttle.NewStringSchema("task"),
		}, []string{"request"}),
	}

	history := []types.Message{
		{Role: types.RoleSystem, Content: "You are a financial coach."},
		{Role: types.RoleUser, Content: "how much on food?"},
		{
			Role: types.RoleTool, Content: "Total: 284.50", ToolUseID: "c1", ToolName: "ask_sql_specialist",
			ToolCall: &types.ToolCall{ID: "c1", Name: "ask_sql_specialist", Input: map[string]interface{}{"request": "food"}},
		},
		{Role: types.RoleAssistant, Content: "You spent $284.50."},
		{Role: types.RoleUser, Content: "and last month?"},
	}

	resp, err := client.Chat(context.Background(), history, []shuttle.Tool{tool})
	require.NoError(t, err)

	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "You are a financial coach.", captured.SystemInstruction.Parts[0].Text)
	require.NotNil(t, captured.GenerationConfig.Temperature)
	assert.Equal(t, 0.0, *captured.GenerationConfig.Temperature)

	roles := make([]string, 0, len(captured.Contents))
	for _, c := range captured.Contents {
		roles = append(roles, c.Role)
	}
	assert.Equal(t, []string{"user", "model", "function", "model", "user"}, roles)
	assert.Equal(t, "ask_sql_specialist", captured.Contents[1].Parts[0].FunctionCall.Name)
	assert.Equal(t, "Total: 284.50", captured.Contents[2].Parts[0].FunctionResponse.Response["result"])
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "ask_sql_specialist", captured.Tools[0].FunctionDeclarations[0].Name)

	assert.Equal(t, "tool_use", resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "food spend last month", resp.ToolCalls[0].Input["request"])
	assert.NotEmpty(t, resp.ToolCalls[0].ID)
	assert.Equal(t, 132, resp.Usage.TotalTokens)
}

func TestClient_APIErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	_, err := client.Chat(context.Background(), []types.Message{{Role: types.RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)

	var apiErr *llm.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.True(t, llm.IsRetryable(err))
}

func TestClient_ChatStructuredRequestsJSON(t *testing.T) {
	var captured GenerateContentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"insights\":[]}"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Temperature: 0.7})
	resp, err := client.ChatStructured(context.Background(), []types.Message{{Role: types.RoleUser, Content: "metrics"}}, "insights", nil)
	require.NoError(t, err)
	assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)
	assert.Equal(t, 0.7, *captured.GenerationConfig.Temperature)
	assert.Equal(t, `{"insights":[]}`, resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
}
