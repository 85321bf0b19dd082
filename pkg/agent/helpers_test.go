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

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/fincoach/internal/financetest"
	"github.com/teradata-labs/fincoach/pkg/fabric"
	"github.com/teradata-labs/fincoach/pkg/fabric/factory"
	"github.com/teradata-labs/fincoach/pkg/shuttle"
	"github.com/teradata-labs/fincoach/pkg/shuttle/builtin"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// scriptedLLM answers from a function of the call number and the messages it
// was sent. Safe for concurrent use.
type scriptedLLM struct {
	name    string
	respond func(call int, messages []types.Message) (*types.LLMResponse, error)

	mu    sync.Mutex
	calls int
	seen  [][]types.Message
}

func (s *scriptedLLM) Name() string { return s.name }
func (s *scriptedLLM) Model() string { return s.name + "-model" }

func (s *scriptedLLM) Chat(ctx context.Context, messages []types.Message, tools []shuttle.Tool) (*types.LLMResponse, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.seen = append(s.seen, append([]types.Message(nil), messages...))
	s.mu.Unlock()
	return s.respond(n, messages)
}

func (s *scriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedLLM) Seen(i int) []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[i]
}

func textResponse(content string) *types.LLMResponse {
	return &types.LLMResponse{Content: content, StopReason: "end_turn"}
}

func toolResponse(name string, input map[string]interface{}) *types.LLMResponse {
	return &types.LLMResponse{
		StopReason: "tool_use",
		ToolCalls:  []types.ToolCall{{ID: "call_" + uuid.NewString(), Name: name, Input: input}},
	}
}

func delegate(tool, request string) *types.LLMResponse {
	return toolResponse(tool, map[string]interface{}{"request": request})
}

func last(messages []types.Message) types.Message {
	return messages[len(messages)-1]
}

// delegatingCoordinator delegates once per user message and then answers with
// the worker's finding.
func delegatingCoordinator() *scriptedLLM {
	return &scriptedLLM{name: "coordinator", respond: func(_ int, msgs []types.Message) (*types.LLMResponse, error) {
		m := last(msgs)
		if m.Role == types.RoleUser {
			return delegate(ToolAskSQLSpecialist, "Total food spending last month"), nil
		}
		return textResponse("Here is what I found: " + m.Content), nil
	}}
}

const lastMonthFoodQuery = `SELECT ROUND(SUM(amount), 2) AS total FROM transactions
WHERE transaction_type = 'debit' AND category = 'Food'
AND date >= date('now', 'start of month', '-1 month') AND date < date('now', 'start of month')`

// queryingWorker runs one query and reports the total it got back.
func queryingWorker(query string) *scriptedLLM {
	return &scriptedLLM{name: "worker", respond: func(_ int, msgs []types.Message) (*types.LLMResponse, error) {
		m := last(msgs)
		if m.Role == types.RoleUser {
			return toolResponse(builtin.ToolRunQuery, map[string]interface{}{"query": query}), nil
		}
		if m.IsError {
			return textResponse("The query failed: " + m.Content), nil
		}
		var payload struct {
			Data struct {
				Rows []map[string]interface{} `json:"rows"`
			} `json:"data"`
		}
		if err := json.Unmarshal([]byte(m.Content), &payload); err != nil || len(payload.Data.Rows) == 0 {
			return textResponse("No rows returned."), nil
		}
		total, _ := payload.Data.Rows[0]["total"].(float64)
		return textResponse(fmt.Sprintf("Food spending last month was $%.2f.", total)), nil
	}}
}

// financeBackend opens a read-only backend over a fixture where last month's
// food debits total 284.50.
func financeBackend(t *testing.T) (fabric.ExecutionBackend, string) {
	t.Helper()
	now := time.Now().UTC()
	thisMonth := time.Date(now.Year(), now.Month(), 1, 12, 0, 0, 0, time.UTC)
	lastMonth := thisMonth.AddDate(0, -1, 0)

	path := financetest.NewDB(t,
		financetest.Transaction{Amount: 200.00, Merchant: "Whole Foods", Category: "Food", Date: lastMonth.AddDate(0, 0, 2)},
		financetest.Transaction{Amount: 84.50, Merchant: "Chipotle", Category: "Food", Date: lastMonth.AddDate(0, 0, 9)},
		financetest.Transaction{Amount: 60.00, Merchant: "Uber", Category: "Transport", Date: lastMonth.AddDate(0, 0, 4)},
		financetest.Transaction{Amount: 3200.00, Type: "credit", Merchant: "Employer", Category: "Income", Date: lastMonth.AddDate(0, 0, 14)},
		financetest.Transaction{Amount: 42.00, Merchant: "Trader Joe's", Category: "Food", Date: thisMonth},
	)
	backend, err := factory.NewBackend(context.Background(), factory.Config{Driver: "sqlite", DSN: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend, path
}

func testConfig(maxCycles int) *Config {
	cfg := DefaultConfig()
	cfg.MaxCycles = maxCycles
	cfg.LLMTimeout = 5 * time.Second
	cfg.Retry = RetryConfig{MaxRetries: 0, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
	return cfg
}

func newTestEngine(t *testing.T, coordinator, worker types.LLMProvider, cfg *Config, opts ...Option) *Engine {
	t.Helper()
	backend, _ := financeBackend(t)
	opts = append([]Option{
		WithConfig(cfg),
		WithWorkerLLM(worker),
		WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	return NewEngine(backend, coordinator, opts...)
}

func countRoles(history []types.Message) map[string]int {
	counts := make(map[string]int)
	for _, m := range history {
		counts[m.Role]++
	}
	return counts
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
