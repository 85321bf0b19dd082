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

package openai

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

func completionServer(t *testing.T, status int, reply string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_ChatReplaysToolExchange(t *testing.T) {
	var captured map[string]interface{}
	server := completionServer(t, http.StatusOK, `{
		"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4.1",
		"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
			"role": "assistant", "content": null,
			"tool_calls": [{"id": "call_2", "type": "function", "function": {"name": "ask_sql_specialist", "arguments": "{\"request\":\"groceries\"}"}}]
		}}],
		"usage": {"prompt_tokens": 30, "completion_tokens": 7, "total_tokens": 37}
	}`, &captured)

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	resp, err := client.Chat(context.Background(), []types.Message{
		{Role: types.RoleSystem, Content: "coach"},
		{Role: types.RoleUser, Content: "food?"},
		{
			Role: types.RoleTool, Content: "284.50", ToolUseID: "call_1", ToolName: "ask_sql_specialist",
			ToolCall: &types.ToolCall{ID: "call_1", Name: "ask_sql_specialist", Input: map[string]interface{}{"request": "food"}},
		},
		{Role: types.RoleAssistant, Content: "$284.50"},
		{Role: types.RoleUser, Content: "groceries?"},
	}, []shuttle.Tool{&shuttle.MockTool{MockName: "ask_sql_specialist"}})
	require.NoError(t, err)

	msgs, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	roles := make([]string, 0, len(msgs))
	for _, m := range msgs {
		roles = append(roles, m.(map[string]interface{})["role"].(string))
	}
	assert.Equal(t, []string{"system", "user", "assistant", "tool", "assistant", "user"}, roles)
	assert.Equal(t, "call_1", msgs[3].(map[string]interface{})["tool_call_id"])

	assert.Equal(t, "tool_use", resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "groceries", resp.ToolCalls[0].Input["request"])
	assert.Equal(t, 37, resp.Usage.TotalTokens)
}

func TestClient_ChatStructuredUsesStrictSchema(t *testing.T) {
	var captured map[string]interface{}
	server := completionServer(t, http.StatusOK, `{
		"id": "chatcmpl-2", "object": "chat.completion", "created": 1, "model": "gpt-4.1",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"insights\":[]}"}}],
		"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
	}`, &captured)

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Temperature: 0.7})
	resp, err := client.ChatStructured(context.Background(),
		[]types.Message{{Role: types.RoleUser, Content: "metrics"}},
		"insights",
		map[string]interface{}{"type": "object", "properties": map[string]interface{}{"insights": map[string]interface{}{"type": "array"}}},
	)
	require.NoError(t, err)
	assert.Equal(t, `{"insights":[]}`, resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)

	format := captured["response_format"].(map[string]interface{})
	assert.Equal(t, "json_schema", format["type"])
	js := format["json_schema"].(map[string]interface{})
	assert.Equal(t, true, js["strict"])
	schema := js["schema"].(map[string]interface{})
	assert.Equal(t, false, schema["additionalProperties"])
	assert.Equal(t, []interface{}{"insights"}, schema["required"])
	assert.Equal(t, 0.7, captured["temperature"])
}

func TestClient_ErrorsMapToAPIError(t *testing.T) {
	server := completionServer(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, nil)

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	_, err := client.Chat(context.Background(), []types.Message{{Role: types.RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)

	var apiErr *llm.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.True(t, llm.IsRetryable(err))
}

func TestStrictSchema_Nested(t *testing.T) {
	in := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"b": map[string]interface{}{"type": "string"},
			"a": map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"x": map[string]interface{}{"type": "number"}},
			},
		},
	}
	out := StrictSchema(in)
	assert.Equal(t, []string{"a", "b"}, out["required"])

	nested := out["properties"].(map[string]interface{})["a"].(map[string]interface{})
	assert.Equal(t, false, nested["additionalProperties"])
	assert.Equal(t, []string{"x"}, nested["required"])
	_, mutated := in["additionalProperties"]
	assert.False(t, mutated)
}
