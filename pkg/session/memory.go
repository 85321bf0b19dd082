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

package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/teradata-labs/fincoach/pkg/types"
)

// MemoryStore keeps conversations in process memory. Values are deep-copied
// on the way in and out, so a caller can never mutate stored state.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*types.Conversation
	policy        EvictionPolicy
	now           func() time.Time
}

// NewMemoryStore creates an in-memory store. A nil policy means NeverEvict.
func NewMemoryStore(policy EvictionPolicy) *MemoryStore {
	if policy == nil {
		policy = NeverEvict{}
	}
	return &MemoryStore{
		conversations: make(map[string]*types.Conversation),
		policy:        policy,
		now:           time.Now,
	}
}

// Get returns a copy of the stored conversation, or nil.
func (s *MemoryStore) Get(ctx context.Context, id string) (*types.Conversation, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictLocked(now)
	conv, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	s.policy.Touched(id, now)
	return conv.Clone(), nil
}

// Put replaces the conversation stored under id.
func (s *MemoryStore) Put(ctx context.Context, id string, conv *types.Conversation) error {
	if id == "" {
		return ErrInvalidID
	}
	if conv == nil {
		return ErrNilConversation
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.conversations[id] = conv.Clone()
	s.policy.Touched(id, now)
	s.evictLocked(now)
	return nil
}

// Delete removes id.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
	s.policy.Removed(id)
	return nil
}

// List returns the stored ids.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictLocked(s.now())
	ids := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Len returns the number of stored conversations.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

func (s *MemoryStore) evictLocked(now time.Time) {
	for _, id := range s.policy.Victims(now) {
		delete(s.conversations, id)
	}
}

var _ Store = (*MemoryStore)(nil)
