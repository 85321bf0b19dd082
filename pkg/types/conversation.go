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

package types

import (
	"time"
)

// EngineState is the position of a turn in the delegation state machine.
type EngineState string

const (
	// StateCoordinating means the coordinator model is deciding what to do next.
	StateCoordinating EngineState = "coordinating"
	// StateDispatching means delegation tool calls are being routed to workers.
	StateDispatching EngineState = "dispatching"
	// StateTerminal means the turn has produced its final answer.
	StateTerminal EngineState = "terminal"
)

// StopReason explains how a turn reached StateTerminal.
type StopReason string

const (
	// StopFinalAnswer means the coordinator answered in plain text.
	StopFinalAnswer StopReason = "final_answer"
	// StopDelegationLimit means the cycle budget ran out and a bounded-effort
	// answer was returned instead.
	StopDelegationLimit StopReason = "delegation_limit"
)

// Checkpoint is the engine's per-turn progress record. It is persisted with
// the conversation for inspection but never carried into the next turn.
type Checkpoint struct {
	TurnID     string      `json:"turn_id"`
	State      EngineState `json:"state"`
	Cycles     int         `json:"cycles"`
	MaxCycles  int         `json:"max_cycles"`
	StopReason StopReason  `json:"stop_reason,omitempty"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Conversation is the unit of persisted state, keyed by conversation id.
// A Conversation is not safe for concurrent mutation; the engine serializes
// turns per id and stores hand out copies.
type Conversation struct {
	// ID is the opaque conversation identifier chosen by the client
	ID string `json:"id"`

	// Messages is the ordered history: user, assistant and tool messages
	Messages []Message `json:"messages"`

	// Checkpoint is the state of the most recent turn
	Checkpoint *Checkpoint `json:"checkpoint,omitempty"`

	// TurnCount is the number of completed turns
	TurnCount int `json:"turn_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates an empty conversation.
func NewConversation(id string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        id,
		Messages:  make([]Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds messages to the history.
func (c *Conversation) Append(msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
	c.UpdatedAt = time.Now().UTC()
}

// History returns a copy of the message history.
func (c *Conversation) History() []Message {
	out := make([]Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

// Clone returns a deep copy, so a turn can work on its own copy and the
// stored value is only replaced when the turn succeeds.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.clone()
	}
	if c.Checkpoint != nil {
		cp := *c.Checkpoint
		out.Checkpoint = &cp
	}
	return &out
}

func (m Message) clone() Message {
	if m.ToolCall != nil {
		tc := *m.ToolCall
		if tc.Input != nil {
			input := make(map[string]interface{}, len(tc.Input))
			for k, v := range tc.Input {
				input[k] = v
			}
			tc.Input = input
		}
		m.ToolCall = &tc
	}
	if m.ToolCalls != nil {
		m.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	return m
}
