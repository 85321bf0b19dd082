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
	"time"

	"github.com/teradata-labs/fincoach/pkg/types"
)

// Config holds engine configuration.
type Config struct {
	// MaxCycles bounds delegation and data-tool calls per turn
	MaxCycles int

	// LLMTimeout bounds a single model call (0 = no per-call timeout)
	LLMTimeout time.Duration

	// ContextTokenBudget caps the history sent to the coordinator (0 = unlimited)
	ContextTokenBudget int

	// WorkerMaxSteps caps model calls inside one worker run, independent
	// of the shared cycle budget
	WorkerMaxSteps int

	// Retry configures retry behavior for model calls
	Retry RetryConfig
}

// RetryConfig configures exponential backoff retry logic for model calls.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retries)
	MaxRetries int

	// InitialDelay is the initial delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier (e.g., 2.0 for doubling)
	Multiplier float64
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxCycles:          DefaultMaxCycles,
		LLMTimeout:         60 * time.Second,
		ContextTokenBudget: 100000,
		WorkerMaxSteps:     25,
		Retry: RetryConfig{
			MaxRetries:   2,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// TurnRequest is one user message for a conversation.
type TurnRequest struct {
	// ConversationID is required; the HTTP layer generates one when the
	// client omits it
	ConversationID string

	// Message is the user's text
	Message string

	// History seeds a conversation the store has never seen. It is ignored
	// when a stored conversation exists.
	History []types.Message
}

// TurnResult is the outcome of a completed turn.
type TurnResult struct {
	ConversationID string
	Response       string

	// History is the full persisted history after the turn
	History []types.Message

	StopReason types.StopReason

	// Cycles is the number of budget units the turn consumed
	Cycles int

	// CoordinatorCalls counts coordinator model calls in the turn
	CoordinatorCalls int
}
