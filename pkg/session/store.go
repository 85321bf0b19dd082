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

// Package session stores conversations between turns.
package session

import (
	"context"
	"errors"

	"github.com/teradata-labs/fincoach/pkg/types"
)

// ErrInvalidID is returned for an empty conversation id.
var ErrInvalidID = errors.New("conversation id must not be empty")

// ErrNilConversation is returned when Put is given a nil conversation.
var ErrNilConversation = errors.New("conversation must not be nil")

// Store persists conversations keyed by id. Put replaces the whole stored
// value (last write wins); stores never merge histories.
type Store interface {
	// Get returns the conversation for id, or nil when none is stored.
	Get(ctx context.Context, id string) (*types.Conversation, error)

	// Put atomically replaces the conversation stored under id.
	Put(ctx context.Context, id string, conv *types.Conversation) error

	// Delete removes id. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the ids currently stored, sorted.
	List(ctx context.Context) ([]string, error)
}
