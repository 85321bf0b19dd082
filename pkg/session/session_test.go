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
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/fincoach/internal/sqlitedriver"
	"github.com/teradata-labs/fincoach/pkg/types"
)

func sampleConversation(id string) *types.Conversation {
	conv := types.NewConversation(id)
	conv.Append(
		types.Message{Role: types.RoleUser, Content: "How much on food?", Timestamp: time.Now().UTC()},
		types.Message{
			Role: types.RoleTool, Content: "Food: 284.50", ToolUseID: "c1", ToolName: "ask_data_analyst",
			ToolCall:  &types.ToolCall{ID: "c1", Name: "ask_data_analyst", Input: map[string]interface{}{"request": "food"}},
			Timestamp: time.Now().UTC(),
		},
		types.Message{Role: types.RoleAssistant, Content: "You spent $284.50.", Timestamp: time.Now().UTC()},
	)
	conv.TurnCount = 1
	conv.Checkpoint = &types.Checkpoint{TurnID: "turn-1", State: types.StateTerminal, Cycles: 1, MaxCycles: 50, StopReason: types.StopFinalAnswer}
	return conv
}

// storeContract runs the get/put semantics every Store must honor.
func storeContract(t *testing.T, store Store) {
	ctx := context.Background()

	got, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = store.Get(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, store.Put(ctx, "x", nil), ErrNilConversation)

	conv := sampleConversation("t1")
	require.NoError(t, store.Put(ctx, "t1", conv))

	got, err = store.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, types.RoleTool, got.Messages[1].Role)
	require.NotNil(t, got.Messages[1].ToolCall)
	assert.Equal(t, "food", got.Messages[1].ToolCall.Input["request"])
	assert.Equal(t, "ask_data_analyst", got.Messages[1].ToolName)
	require.NotNil(t, got.Checkpoint)
	assert.Equal(t, types.StopFinalAnswer, got.Checkpoint.StopReason)

	// Last write wins and replaces rather than merges.
	shorter := types.NewConversation("t1")
	shorter.Append(types.Message{Role: types.RoleUser, Content: "only"})
	require.NoError(t, store.Put(ctx, "t1", shorter))
	got, err = store.Get(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "only", got.Messages[0].Content)

	// No coupling between ids.
	require.NoError(t, store.Put(ctx, "t2", sampleConversation("t2")))
	got, err = store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, ids)

	require.NoError(t, store.Delete(ctx, "t1"))
	require.NoError(t, store.Delete(ctx, "never-existed"))
	got, err = store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContract(t, NewMemoryStore(nil))
}

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "sessions.db"), "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	storeContract(t, store)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewSQLiteStore(ctx, path, "", nil)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "t1", sampleConversation("t1")))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(ctx, path, "", nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Messages, 3)
	assert.Equal(t, 1, got.TurnCount)
}

func TestSQLiteStore_EncryptionKey(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewSQLiteStore(ctx, path, "correct horse", nil)
	if !sqlitedriver.EncryptionSupported {
		assert.ErrorIs(t, err, ErrEncryptionUnsupported)
		return
	}
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "t1", sampleConversation("t1")))
	require.NoError(t, store.Close())

	_, err = NewSQLiteStore(ctx, path, "", nil)
	assert.Error(t, err, "encrypted file should not open without its key")

	reopened, err := NewSQLiteStore(ctx, path, "correct horse", nil)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestMemoryStore_CopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NeverEvict{})

	conv := sampleConversation("t1")
	require.NoError(t, store.Put(ctx, "t1", conv))
	conv.Append(types.Message{Role: types.RoleUser, Content: "mutated after put"})

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 3)

	got.Messages[1].ToolCall.Input["request"] = "changed"
	again, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "food", again.Messages[1].ToolCall.Input["request"])
}

func TestMemoryStore_LRUEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewLRUPolicy(2, 0))

	require.NoError(t, store.Put(ctx, "a", sampleConversation("a")))
	require.NoError(t, store.Put(ctx, "b", sampleConversation("b")))

	// Reading a makes b the least recently used.
	_, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "c", sampleConversation("c")))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestMemoryStore_TTLEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewLRUPolicy(0, time.Minute))
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	require.NoError(t, store.Put(ctx, "old", sampleConversation("old")))
	clock = clock.Add(30 * time.Second)
	require.NoError(t, store.Put(ctx, "fresh", sampleConversation("fresh")))

	clock = clock.Add(45 * time.Second)
	got, err := store.Get(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, got, "idle longer than the TTL")

	got, err = store.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, 1, store.Len())
}

func TestNeverEvict_KeepsEverything(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NeverEvict{})
	for i := 0; i < 100; i++ {
		require.NoError(t, store.Put(ctx, fmt.Sprintf("t%03d", i), sampleConversation("x")))
	}
	assert.Equal(t, 100, store.Len())
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := km.Lock(ctx, "t1")
			require.NoError(t, err)
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, km.Len(), "idle keys are released")
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	unlockA, err := km.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := km.Lock(ctx, "b")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}

func TestKeyedMutex_ContextCancel(t *testing.T) {
	km := NewKeyedMutex()
	unlock, err := km.Lock(context.Background(), "t1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = km.Lock(ctx, "t1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // second call is a no-op
	assert.Equal(t, 0, km.Len())
}

func TestConversationIDContext(t *testing.T) {
	ctx := WithConversationID(context.Background(), "t1")
	assert.Equal(t, "t1", ConversationIDFromContext(ctx))
	assert.Equal(t, "", ConversationIDFromContext(context.Background()))
	assert.Equal(t, context.Background(), WithConversationID(context.Background(), ""))
}
