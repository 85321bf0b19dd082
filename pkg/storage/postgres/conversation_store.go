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

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teradata-labs/fincoach/internal/pgxdriver"
	"github.com/teradata-labs/fincoach/pkg/observability"
	"github.com/teradata-labs/fincoach/pkg/session"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// ConversationStore implements session.Store on PostgreSQL. Put rewrites the
// conversation row and its messages in one transaction, so a concurrent Get
// sees either the previous or the new history.
type ConversationStore struct {
	pool   *pgxpool.Pool
	tracer observability.Tracer
}

// NewConversationStore creates a store over an already migrated pool.
func NewConversationStore(pool *pgxpool.Pool, tracer observability.Tracer) *ConversationStore {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &ConversationStore{pool: pool, tracer: tracer}
}

// Get loads a conversation, or returns nil when none exists.
func (s *ConversationStore) Get(ctx context.Context, id string) (*types.Conversation, error) {
	if id == "" {
		return nil, session.ErrInvalidID
	}

	var (
		conv       = &types.Conversation{ID: id, Messages: make([]types.Message, 0)}
		checkpoint []byte
	)
	err := s.pool.QueryRow(ctx,
		"SELECT turn_count, checkpoint, created_at, updated_at FROM conversations WHERE id = $1", id,
	).Scan(&conv.TurnCount, &checkpoint, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}
	if len(checkpoint) > 0 {
		var cp types.Checkpoint
		if err := json.Unmarshal(checkpoint, &cp); err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint for %s: %w", id, err)
		}
		conv.Checkpoint = &cp
	}

	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(message_id, ''), role, content, tool_call,
		       COALESCE(tool_use_id, ''), COALESCE(tool_name, ''), is_error, created_at
		FROM conversation_messages WHERE conversation_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg      types.Message
			toolCall []byte
		)
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &toolCall,
			&msg.ToolUseID, &msg.ToolName, &msg.IsError, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if len(toolCall) > 0 {
			var call types.ToolCall
			if err := json.Unmarshal(toolCall, &call); err != nil {
				return nil, fmt.Errorf("failed to decode tool call: %w", err)
			}
			msg.ToolCall = &call
		}
		msg.Timestamp = msg.Timestamp.UTC()
		conv.Messages = append(conv.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()
	return conv, nil
}

// Put replaces the stored conversation.
func (s *ConversationStore) Put(ctx context.Context, id string, conv *types.Conversation) (err error) {
	if id == "" {
		return session.ErrInvalidID
	}
	if conv == nil {
		return session.ErrNilConversation
	}

	ctx, span := s.tracer.StartSpan(ctx, observability.SpanSessionPut)
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrConversationID, id)
	span.SetAttribute("session.backend", "postgres")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
	}()

	var checkpoint []byte
	if conv.Checkpoint != nil {
		if checkpoint, err = json.Marshal(conv.Checkpoint); err != nil {
			return fmt.Errorf("failed to encode checkpoint: %w", err)
		}
	}
	createdAt, updatedAt := conv.CreatedAt, conv.UpdatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	return pgxdriver.InTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO conversations (id, turn_count, checkpoint, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				turn_count = EXCLUDED.turn_count,
				checkpoint = EXCLUDED.checkpoint,
				updated_at = EXCLUDED.updated_at`,
			id, conv.TurnCount, checkpoint, createdAt, updatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert conversation: %w", err)
		}

		if _, err := tx.Exec(ctx, "DELETE FROM conversation_messages WHERE conversation_id = $1", id); err != nil {
			return fmt.Errorf("failed to clear messages: %w", err)
		}

		batch := &pgx.Batch{}
		for i, msg := range conv.Messages {
			var toolCall []byte
			if msg.ToolCall != nil {
				b, err := json.Marshal(msg.ToolCall)
				if err != nil {
					return fmt.Errorf("failed to encode tool call: %w", err)
				}
				toolCall = b
			}
			ts := msg.Timestamp
			if ts.IsZero() {
				ts = updatedAt
			}
			batch.Queue(`
				INSERT INTO conversation_messages
					(conversation_id, seq, message_id, role, content, tool_call, tool_use_id, tool_name, is_error, created_at)
				VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10)`,
				id, i, msg.ID, msg.Role, msg.Content, toolCall, msg.ToolUseID, msg.ToolName, msg.IsError, ts,
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert messages: %w", err)
		}
		return nil
	})
}

// Delete removes a conversation; its messages go with it through the
// foreign key cascade.
func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM conversations WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	return nil
}

// List returns the stored conversation ids.
func (s *ConversationStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT id FROM conversations ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation ids: %w", err)
	}
	if ids == nil {
		ids = make([]string, 0)
	}
	return ids, nil
}

// DeleteOlderThan removes conversations idle since before cutoff and
// returns how many were removed.
func (s *ConversationStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM conversations WHERE updated_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire conversations: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ session.Store = (*ConversationStore)(nil)
