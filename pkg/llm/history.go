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

// Package llm holds helpers shared by the language model providers.
package llm

import (
	"strings"

	"github.com/teradata-labs/fincoach/pkg/types"
)

// Segment is a run of history messages that becomes one or two
// provider-native messages.
type Segment struct {
	// Role is system, user, assistant or tool
	Role string

	// Messages holds one message for text roles and one or more
	// consecutive tool results for the tool role.
	Messages []types.Message
}

// Calls returns the tool calls a tool segment answers, in order.
func (s Segment) Calls() []types.ToolCall {
	calls := make([]types.ToolCall, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.ToolCall != nil {
			calls = append(calls, *m.ToolCall)
			continue
		}
		calls = append(calls, types.ToolCall{ID: m.ToolUseID, Name: m.ToolName})
	}
	return calls
}

// Segments groups history for provider conversion. Stored history keeps
// only tool results (each carrying its originating call), so providers
// rebuild the assistant tool-request message from each tool segment.
func Segments(messages []types.Message) []Segment {
	segments := make([]Segment, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == types.RoleTool {
			if n := len(segments); n > 0 && segments[n-1].Role == types.RoleTool {
				segments[n-1].Messages = append(segments[n-1].Messages, msg)
				continue
			}
		}
		segments = append(segments, Segment{Role: msg.Role, Messages: []types.Message{msg}})
	}
	return segments
}

// SplitSystem separates system messages from the rest of the history.
// Multiple system messages are joined with blank lines.
func SplitSystem(messages []types.Message) (string, []types.Message) {
	var system []string
	rest := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
