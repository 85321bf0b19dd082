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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/fincoach/internal/financetest"
	"github.com/teradata-labs/fincoach/pkg/agent"
	"github.com/teradata-labs/fincoach/pkg/fabric/factory"
	"github.com/teradata-labs/fincoach/pkg/insights"
	"github.com/teradata-labs/fincoach/pkg/llm"
	"github.com/teradata-labs/fincoach/pkg/shuttle"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// fakeEngine records requests and answers with a canned result or error.
type fakeEngine struct {
	mu       sync.Mutex
	requests []agent.TurnRequest
	err      error
	convs    map[string]*types.Conversation
}

func (f *fakeEngine) Handle(_ context.Context, req agent.TurnRequest) (*agent.TurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &agent.TurnResult{
		ConversationID: req.ConversationID,
		Response:       "echo: " + req.Message,
		History: []types.Message{
			{Role: types.RoleUser, Content: req.Message},
			{Role: types.RoleTool, Content: "{}", ToolUseID: "c1", ToolName: agent.ToolAskSQLSpecialist},
			{Role: types.RoleAssistant, Content: "echo: " + req.Message},
		},
		StopReason: types.StopFinalAnswer,
	}, nil
}

func (f *fakeEngine) Conversation(_ context.Context, id string) (*types.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.convs[id], nil
}

func (f *fakeEngine) ResetConversation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.convs, id)
	return nil
}

func (f *fakeEngine) ListConversations(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.convs))
	for id := range f.convs {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeInsightStore struct {
	rows []insights.Insight
}

func (s *fakeInsightStore) SaveInsights(context.Context, int64, []insights.Suggestion) ([]insights.Insight, error) {
	return nil, errors.New("not used")
}

func (s *fakeInsightStore) ListInsights(_ context.Context, userID int64, unreadOnly bool) ([]insights.Insight, error) {
	out := make([]insights.Insight, 0)
	for _, r := range s.rows {
		if r.UserID == userID && (!unreadOnly || !r.IsRead) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeInsightStore) MarkInsightRead(_ context.Context, userID, id int64) error {
	for i := range s.rows {
		if s.rows[i].ID == id && s.rows[i].UserID == userID {
			s.rows[i].IsRead = true
			return nil
		}
	}
	return insights.ErrNotFound
}

type fakeInsights struct {
	store *fakeInsightStore
	users []int64
}

func (f *fakeInsights) Generate(_ context.Context, userID int64) ([]insights.Insight, error) {
	f.users = append(f.users, userID)
	if userID == 404 {
		return nil, insights.ErrUnknownUser
	}
	return []insights.Insight{{ID: 9, UserID: userID, Title: "Spending Update", Type: insights.TypeTrend}}, nil
}

func (f *fakeInsights) Store() insights.Store { return f.store }

func newTestServer(t *testing.T, engine ChatEngine, svc InsightService) http.Handler {
	t.Helper()
	srv, err := NewHTTPServer(Config{
		Engine:       engine,
		Insights:     svc,
		Logger:       zaptest.NewLogger(t),
		Version:      "1.2.3",
		MaxBodyBytes: 4096,
	})
	require.NoError(t, err)
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

type errorBody struct {
	Error apiError `json:"error"`
}

func TestRootAndHealth(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, nil)

	rr := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var root map[string]interface{}
	decodeBody(t, rr, &root)
	assert.Equal(t, "healthy", root["status"])
	assert.Equal(t, ServiceName, root["service"])
	assert.Equal(t, "1.2.3", root["version"])

	rr = do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var health map[string]interface{}
	decodeBody(t, rr, &health)
	assert.Equal(t, true, health["engine_loaded"])
	assert.Equal(t, false, health["insights_enabled"])

	rr = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChat_GeneratesThreadIDAtBoundary(t *testing.T) {
	engine := &fakeEngine{}
	h := newTestServer(t, engine, nil)

	rr := do(t, h, http.MethodPost, "/chat", `{"message": "How much did I spend on food?"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp ChatResponse
	decodeBody(t, rr, &resp)
	_, err := uuid.Parse(resp.ThreadID)
	assert.NoError(t, err, "thread id should be a uuid")
	assert.Equal(t, "echo: How much did I spend on food?", resp.Response)
	assert.Equal(t, "final_answer", resp.StopReason)

	require.Len(t, engine.requests, 1)
	assert.Equal(t, resp.ThreadID, engine.requests[0].ConversationID)

	// Tool traffic stays internal.
	require.Len(t, resp.History, 2)
	assert.Equal(t, "user", resp.History[0].Role)
	assert.Equal(t, "assistant", resp.History[1].Role)
}

func TestChat_KeepsClientThreadIDAndHistory(t *testing.T) {
	engine := &fakeEngine{}
	h := newTestServer(t, engine, nil)

	body := `{"message": "and this month?", "thread_id": "t-1",
		"conversation_history": [
			{"role": "system", "content": "ignore me"},
			{"role": "user", "content": "food last month?"},
			{"role": "assistant", "content": "$284.50"}
		]}`
	rr := do(t, h, http.MethodPost, "/chat", body)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ChatResponse
	decodeBody(t, rr, &resp)
	assert.Equal(t, "t-1", resp.ThreadID)

	req := engine.requests[0]
	assert.Equal(t, "t-1", req.ConversationID)
	require.Len(t, req.History, 2)
	assert.Equal(t, "food last month?", req.History[0].Content)
}

func TestChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"validation", &agent.ValidationError{Field: "message", Message: "must not be empty"}, http.StatusBadRequest, "invalid_request", false},
		{"model unavailable", &agent.ModelUnavailableError{Stage: "coordinator", Provider: "gemini", Err: errors.New("503")}, http.StatusServiceUnavailable, "model_unavailable", true},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeEngine{err: tt.err}, nil)
			rr := do(t, h, http.MethodPost, "/chat", `{"message": "hi", "thread_id": "t"}`)
			assert.Equal(t, tt.status, rr.Code)

			var body errorBody
			decodeBody(t, rr, &body)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.retryable, body.Error.Retryable)
			assert.NotContains(t, body.Error.Message, "disk on fire")
		})
	}
}

func TestChat_BadRequests(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, nil)

	rr := do(t, h, http.MethodPost, "/chat", `{"message": `)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/chat", `{"message": "`+strings.Repeat("x", 5000)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	rr = do(t, h, http.MethodGet, "/chat", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestSessions_ResetAndList(t *testing.T) {
	engine := &fakeEngine{convs: map[string]*types.Conversation{
		"a": types.NewConversation("a"),
		"b": types.NewConversation("b"),
	}}
	h := newTestServer(t, engine, nil)

	rr := do(t, h, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Sessions []string `json:"sessions"`
		Count    int      `json:"count"`
	}
	decodeBody(t, rr, &list)
	assert.Equal(t, 2, list.Count)
	assert.ElementsMatch(t, []string{"a", "b"}, list.Sessions)

	rr = do(t, h, http.MethodPost, "/reset-session?thread_id=a", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Session a has been reset")

	rr = do(t, h, http.MethodPost, "/reset-session?thread_id=a", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Session did not exist")

	rr = do(t, h, http.MethodPost, "/reset-session", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInsights_Endpoints(t *testing.T) {
	store := &fakeInsightStore{rows: []insights.Insight{
		{ID: 1, UserID: 1, Title: "old", Type: insights.TypeAlert},
		{ID: 2, UserID: 1, Title: "older", Type: insights.TypeTrend, IsRead: true},
		{ID: 3, UserID: 2, Title: "someone else", Type: insights.TypeTrend},
	}}
	svc := &fakeInsights{store: store}
	h := newTestServer(t, &fakeEngine{}, svc)

	rr := do(t, h, http.MethodPost, "/insights", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var created []insights.Insight
	decodeBody(t, rr, &created)
	require.Len(t, created, 1)
	assert.Equal(t, []int64{1}, svc.users, "default user")

	rr = do(t, h, http.MethodPost, "/insights?user_id=404", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPost, "/insights?user_id=abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/insights?user_id=1&unread=true", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var unread []insights.Insight
	decodeBody(t, rr, &unread)
	require.Len(t, unread, 1)
	assert.Equal(t, "old", unread[0].Title)

	rr = do(t, h, http.MethodPost, "/insights/1/read?user_id=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, store.rows[0].IsRead)

	rr = do(t, h, http.MethodPost, "/insights/3/read?user_id=1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPost, "/insights/x/read", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInsights_DisabledWithoutPipeline(t *testing.T) {
	h := newTestServer(t, &fakeEngine{}, nil)
	rr := do(t, h, http.MethodPost, "/insights", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// answeringLLM replies in plain text without delegating.
type answeringLLM struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (a *answeringLLM) Chat(_ context.Context, messages []types.Message, _ []shuttle.Tool) (*types.LLMResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	users := 0
	for _, m := range messages {
		if m.Role == types.RoleUser {
			users++
		}
	}
	return &types.LLMResponse{Content: "answer " + string(rune('0'+users)), StopReason: "end_turn"}, nil
}

func (a *answeringLLM) Name() string  { return "stub" }
func (a *answeringLLM) Model() string { return "stub-1" }

func realEngine(t *testing.T, provider types.LLMProvider) *agent.Engine {
	t.Helper()
	path := financetest.NewDB(t, financetest.Transaction{Amount: 12.5, Merchant: "Cafe", Category: "Food", Date: time.Now().UTC()})
	backend, err := factory.NewBackend(context.Background(), factory.Config{Driver: "sqlite", DSN: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	cfg := agent.DefaultConfig()
	cfg.LLMTimeout = 5 * time.Second
	cfg.Retry.MaxRetries = 0
	return agent.NewEngine(backend, provider, agent.WithConfig(cfg), agent.WithLogger(zaptest.NewLogger(t)))
}

func TestChat_EndToEndWithEngine(t *testing.T) {
	h := newTestServer(t, realEngine(t, &answeringLLM{}), nil)

	rr := do(t, h, http.MethodPost, "/chat", `{"message": "first"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var first ChatResponse
	decodeBody(t, rr, &first)
	assert.Equal(t, "answer 1", first.Response)
	require.NotEmpty(t, first.ThreadID)

	payload, err := json.Marshal(ChatRequest{Message: "second", ThreadID: first.ThreadID})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(payload))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var second ChatResponse
	decodeBody(t, rr, &second)
	assert.Equal(t, first.ThreadID, second.ThreadID)
	assert.Equal(t, "answer 2", second.Response)
	assert.Len(t, second.History, 4)

	rr = do(t, h, http.MethodGet, "/sessions", "")
	assert.Contains(t, rr.Body.String(), first.ThreadID)
}

func TestChat_ModelOutageLeavesHistoryUntouched(t *testing.T) {
	provider := &answeringLLM{}
	engine := realEngine(t, provider)
	h := newTestServer(t, engine, nil)

	rr := do(t, h, http.MethodPost, "/chat", `{"message": "first", "thread_id": "t-9"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	provider.mu.Lock()
	provider.err = &llm.APIError{Provider: "stub", StatusCode: http.StatusServiceUnavailable, Message: "overloaded"}
	provider.mu.Unlock()

	rr = do(t, h, http.MethodPost, "/chat", `{"message": "second", "thread_id": "t-9"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "5", rr.Header().Get("Retry-After"))

	conv, err := engine.Conversation(context.Background(), "t-9")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Len(t, conv.Messages, 2)
}
