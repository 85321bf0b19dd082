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

package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/teradata-labs/fincoach/pkg/types"
)

// messageOverhead approximates role and formatting tokens per message.
const messageOverhead = 10

// TokenCounter counts tokens with tiktoken's cl100k_base encoding, which is a
// close enough approximation for every supported provider.
type TokenCounter struct {
	encoder *tiktoken.Tiktoken
	mu      sync.Mutex
}

var (
	globalTokenCounter *TokenCounter
	counterInitOnce    sync.Once
)

// GetTokenCounter returns a singleton token counter instance.
func GetTokenCounter() *TokenCounter {
	counterInitOnce.Do(func() {
		tkm, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// falls back to character estimation
			globalTokenCounter = &TokenCounter{}
			return
		}
		globalTokenCounter = &TokenCounter{encoder: tkm}
	})
	return globalTokenCounter
}

// CountTokens returns the token count for text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.encoder == nil {
		return len(text) / 4
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.encoder.Encode(text, nil, nil))
}

// EstimateMessagesTokens estimates the token count of a message slice.
func (tc *TokenCounter) EstimateMessagesTokens(messages []types.Message) int {
	total := 0
	for _, msg := range messages {
		total += tc.estimate(msg)
	}
	return total
}

func (tc *TokenCounter) estimate(msg types.Message) int {
	if msg.TokenCount > 0 {
		return msg.TokenCount
	}
	n := messageOverhead + tc.CountTokens(msg.Content)
	if msg.ToolCall != nil {
		n += tc.CountTokens(msg.ToolCall.Name) + messageOverhead
		for k, v := range msg.ToolCall.Input {
			if s, ok := v.(string); ok {
				n += tc.CountTokens(k) + tc.CountTokens(s)
			}
		}
	}
	return n
}

// TrimToBudget drops the oldest messages until the history fits in budget
// tokens. The most recent user message is always kept, and a run of tool
// results is never split from the rest of its batch. A budget <= 0 disables
// trimming.
func (tc *TokenCounter) TrimToBudget(messages []types.Message, budget int) []types.Message {
	if budget <= 0 || len(messages) == 0 {
		return messages
	}

	sizes := make([]int, len(messages))
	total := 0
	for i, m := range messages {
		sizes[i] = tc.estimate(m)
		total += sizes[i]
	}
	if total <= budget {
		return messages
	}

	lastUser := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleUser {
			lastUser = i
			break
		}
	}

	start := 0
	for start < len(messages) && total > budget && start != lastUser {
		total -= sizes[start]
		start++
	}
	// Never open the window on an orphaned tool result.
	for start < len(messages) && start != lastUser && messages[start].Role == types.RoleTool {
		start++
	}
	return messages[start:]
}
