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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/teradata-labs/fincoach/internal/sqlitedriver"
	"github.com/teradata-labs/fincoach/pkg/observability"
	"github.com/teradata-labs/fincoach/pkg/storage/sqlite"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// SQLiteStore persists conversations in a local SQLite file. Put replaces
// the conversation row and all of its messages in one transaction.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	tracer observability.Tracer
}

// ErrEncryptionUnsupported is returned when a key is given to a build
// whose SQLite driver cannot encrypt.
var ErrEncryptionUnsupported = errors.New("session encryption requires a CGO build (go-sqlcipher)")

// NewSQLiteStore opens (or creates) the database at path and migrates it.
// A non-empty key encrypts the file with SQLCipher.
func NewSQLiteStore(ctx context.Context, path, key string, tracer observability.Tracer) (*SQLiteStore, error) {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	if key != "" && !sqlitedriver.EncryptionSupported {
		return nil, ErrEncryptionUnsupported
	}
	db, err := sql.Open(sqlitedriver.DriverName, sqlitedriver.KeyedDSN(path, key))
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	migrator, err := sqlite.NewMigrator(db, tracer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrator.MigrateUp(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate session database: %w", err)
	}

	return &SQLiteStore{db: db, path: path, tracer: tracer}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Get loads a conversation and its messages in seq order.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*types.Conversation, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	var (
		turnCount            int
		checkpointJSON       sql.NullString
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT turn_count, checkpoint_json, created_at, updated_at FROM conversations WHERE id = ?", id,
	).Scan(&turnCount, &checkpointJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}

	conv := &types.Conversation{
		ID:        id,
		TurnCount: turnCount,
		CreatedAt: time.UnixMilli(createdAt).UTC(),
		UpdatedAt: time.UnixMilli(updatedAt).UTC(),
	}
	if checkpointJSON.Valid && checkpointJSON.String != "" {
		var cp types.Checkpoint
		if err := json.Unmarshal([]byte(checkpointJSON.String), &cp); err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint for %s: %w", id, err)
		}
		conv.Checkpoint = &cp
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, role, content, tool_call_json, tool_use_id, tool_name, is_error, created_at
		FROM conversation_messages WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages for %s: %w", id, err)
	}
	defer rows.Close()

	conv.Messages = make([]types.Message, 0)
	for rows.Next() {
		var (
			msg                              types.Message
			msgID, toolCallJSON, useID, name sql.NullString
			isError                          bool
			ts                               int64
		)
		if err := rows.Scan(&msgID, &msg.Role, &msg.Content, &toolCallJSON, &useID, &name, &isError, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if toolCallJSON.Valid && toolCallJSON.String != "" {
			var call types.ToolCall
			if err := json.Unmarshal([]byte(toolCallJSON.String), &call); err != nil {
				return nil, fmt.Errorf("failed to decode tool call: %w", err)
			}
			msg.ToolCall = &call
		}
		msg.ID = msgID.String
		msg.ToolUseID = useID.String
		msg.ToolName = name.String
		msg.IsError = isError
		msg.Timestamp = time.UnixMilli(ts).UTC()
		conv.Messages = append(conv.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return conv, nil
}

// Put replaces the stored conversation. Readers see either the old or the
// new history, never a mix.
func (s *SQLiteStore) Put(ctx context.Context, id string, conv *types.Conversation) (err error) {
	if id == "" {
		return ErrInvalidID
	}
	if conv == nil {
		return ErrNilConversation
	}

	ctx, span := s.tracer.StartSpan(ctx, observability.SpanSessionPut)
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrConversationID, id)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
	}()

	var checkpoint interface{}
	if conv.Checkpoint != nil {
		b, err := json.Marshal(conv.Checkpoint)
		if err != nil {
			return fmt.Errorf("failed to encode checkpoint: %w", err)
		}
		checkpoint = string(b)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, turn_count, checkpoint_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			turn_count = excluded.turn_count,
			checkpoint_json = excluded.checkpoint_json,
			updated_at = excluded.updated_at`,
		id, conv.TurnCount, checkpoint, conv.CreatedAt.UnixMilli(), conv.UpdatedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM conversation_messages WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversation_messages
			(conversation_id, seq, message_id, role, content, tool_call_json, tool_use_id, tool_name, is_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range conv.Messages {
		var toolCall interface{}
		if msg.ToolCall != nil {
			b, err := json.Marshal(msg.ToolCall)
			if err != nil {
				return fmt.Errorf("failed to encode tool call: %w", err)
			}
			toolCall = string(b)
		}
		if _, err := stmt.ExecContext(ctx,
			id, i, nullString(msg.ID), msg.Role, msg.Content, toolCall, nullString(msg.ToolUseID), nullString(msg.ToolName),
			msg.IsError, msg.Timestamp.UnixMilli(),
		); err != nil {
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversation: %w", err)
	}
	return nil
}

// Delete removes a conversation and its messages.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM conversation_messages WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete messages for %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	return tx.Commit()
}

// List returns the stored conversation ids.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM conversations ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Store = (*SQLiteStore)(nil)
