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

package shuttle

import (
	"context"
	"sync"
)

// MockTool is a scripted Tool for tests. Unset fields fall back to a tool
// named "mock_tool" that takes one string "request" and answers "ok".
type MockTool struct {
	MockName        string
	MockDescription string
	MockSchema      *JSONSchema
	MockExecute     func(ctx context.Context, params map[string]interface{}) (*Result, error)

	mu       sync.Mutex
	received []map[string]interface{}
}

func (m *MockTool) Name() string {
	if m.MockName != "" {
		return m.MockName
	}
	return "mock_tool"
}

func (m *MockTool) Description() string {
	if m.MockDescription != "" {
		return m.MockDescription
	}
	return "Scripted tool used in tests."
}

func (m *MockTool) InputSchema() *JSONSchema {
	if m.MockSchema != nil {
		return m.MockSchema
	}
	return NewObjectSchema("", map[string]*JSONSchema{
		"request": NewStringSchema("Free-text request"),
	}, nil)
}

// Execute records params and then runs MockExecute if set.
func (m *MockTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	m.mu.Lock()
	m.received = append(m.received, params)
	m.mu.Unlock()

	if m.MockExecute == nil {
		return &Result{Success: true, Data: "ok"}, nil
	}
	return m.MockExecute(ctx, params)
}

func (m *MockTool) Backend() string { return "" }

// Calls returns how many times Execute ran.
func (m *MockTool) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

// Received returns the params of every Execute call, oldest first.
func (m *MockTool) Received() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]interface{}, len(m.received))
	copy(out, m.received)
	return out
}
