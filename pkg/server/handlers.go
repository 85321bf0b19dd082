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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/fincoach/pkg/agent"
	"github.com/teradata-labs/fincoach/pkg/insights"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// HistoryMessage is a chat message as clients see it.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message  string           `json:"message"`
	ThreadID string           `json:"thread_id,omitempty"`
	History  []HistoryMessage `json:"history,omitempty"`

	// ConversationHistory is accepted for older clients
	ConversationHistory []HistoryMessage `json:"conversation_history,omitempty"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Response   string           `json:"response"`
	ThreadID   string           `json:"thread_id"`
	History    []HistoryMessage `json:"history"`
	StopReason string           `json:"stop_reason,omitempty"`
}

func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": ServiceName,
		"version": h.version,
	})
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "healthy",
		"engine_loaded":    h.engine != nil,
		"insights_enabled": h.insights != nil,
	})
}

func (h *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !h.decode(w, r, &req) {
		return
	}

	// The engine never invents ids; a missing thread id is assigned here.
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.New().String()
	}
	history := req.History
	if len(history) == 0 {
		history = req.ConversationHistory
	}

	start := time.Now()
	result, err := h.engine.Handle(r.Context(), agent.TurnRequest{
		ConversationID: threadID,
		Message:        req.Message,
		History:        toMessages(history),
	})
	if err != nil {
		h.writeEngineError(w, r, threadID, err)
		return
	}

	h.logger.Info("Chat turn completed",
		zap.String("thread_id", threadID),
		zap.String("stop_reason", string(result.StopReason)),
		zap.Int("cycles", result.Cycles),
		zap.Int("response_length", len(result.Response)),
		zap.Duration("duration", time.Since(start)))

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:   result.Response,
		ThreadID:   result.ConversationID,
		History:    fromMessages(result.History),
		StopReason: string(result.StopReason),
	})
}

func (h *HTTPServer) handleResetSession(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("thread_id")
	if threadID == "" {
		writeError(w, http.StatusBadRequest, apiError{Code: "invalid_request", Field: "thread_id", Message: "thread_id is required"})
		return
	}

	existing, err := h.engine.Conversation(r.Context(), threadID)
	if err != nil {
		h.writeEngineError(w, r, threadID, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Session did not exist"})
		return
	}
	if err := h.engine.ResetConversation(r.Context(), threadID); err != nil {
		h.writeEngineError(w, r, threadID, err)
		return
	}

	h.logger.Info("Session reset", zap.String("thread_id", threadID))
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Session %s has been reset", threadID),
	})
}

func (h *HTTPServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := h.engine.ListConversations(r.Context())
	if err != nil {
		h.writeEngineError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": ids, "count": len(ids)})
}

func (h *HTTPServer) handleGenerateInsights(w http.ResponseWriter, r *http.Request) {
	if !h.requireInsights(w) {
		return
	}
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	created, err := h.insights.Generate(r.Context(), userID)
	if err != nil {
		h.writeInsightError(w, userID, err)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (h *HTTPServer) handleListInsights(w http.ResponseWriter, r *http.Request) {
	if !h.requireInsights(w) {
		return
	}
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	list, err := h.insights.Store().ListInsights(r.Context(), userID, unread)
	if err != nil {
		h.writeInsightError(w, userID, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *HTTPServer) handleMarkInsightRead(w http.ResponseWriter, r *http.Request) {
	if !h.requireInsights(w) {
		return
	}
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	insightID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || insightID <= 0 {
		writeError(w, http.StatusBadRequest, apiError{Code: "invalid_request", Field: "id", Message: "insight id must be a positive integer"})
		return
	}
	if err := h.insights.Store().MarkInsightRead(r.Context(), userID, insightID); err != nil {
		h.writeInsightError(w, userID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": insightID, "is_read": true})
}

func (h *HTTPServer) requireInsights(w http.ResponseWriter) bool {
	if h.insights == nil {
		writeError(w, http.StatusServiceUnavailable, apiError{Code: "insights_disabled", Message: "insight pipeline is not configured"})
		return false
	}
	return true
}

func (h *HTTPServer) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		return h.defaultUserID, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, apiError{Code: "invalid_request", Field: "user_id", Message: "user_id must be a positive integer"})
		return 0, false
	}
	return id, true
}

// decode reads a JSON body no larger than maxBodyBytes.
func (h *HTTPServer) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, apiError{
				Code:    "request_too_large",
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return false
		}
		writeError(w, http.StatusBadRequest, apiError{Code: "invalid_request", Message: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func (h *HTTPServer) writeEngineError(w http.ResponseWriter, r *http.Request, threadID string, err error) {
	var (
		ve *agent.ValidationError
		mu *agent.ModelUnavailableError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, apiError{Code: "invalid_request", Field: ve.Field, Message: ve.Message})
	case errors.As(err, &mu):
		h.logger.Warn("Model unavailable",
			zap.String("thread_id", threadID),
			zap.String("stage", mu.Stage),
			zap.Error(err))
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, apiError{
			Code:      "model_unavailable",
			Message:   "the language model is temporarily unavailable, please retry",
			Retryable: true,
		})
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// Client went away; nothing useful to write.
		h.logger.Info("Request canceled by client", zap.String("thread_id", threadID))
	default:
		h.logger.Error("Error during chat turn",
			zap.String("thread_id", threadID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, apiError{Code: "internal", Message: "an error occurred while processing your request"})
	}
}

func (h *HTTPServer) writeInsightError(w http.ResponseWriter, userID int64, err error) {
	switch {
	case errors.Is(err, insights.ErrUnknownUser):
		writeError(w, http.StatusNotFound, apiError{Code: "unknown_user", Field: "user_id", Message: fmt.Sprintf("user %d does not exist", userID)})
	case errors.Is(err, insights.ErrNotFound):
		writeError(w, http.StatusNotFound, apiError{Code: "not_found", Field: "id", Message: "insight not found"})
	default:
		h.logger.Error("Insight request failed", zap.Int64("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, apiError{Code: "internal", Message: "an error occurred while processing insights"})
	}
}

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable"`
}

func writeError(w http.ResponseWriter, status int, e apiError) {
	writeJSON(w, status, map[string]apiError{"error": e})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// toMessages keeps only user and assistant turns from client history.
func toMessages(history []HistoryMessage) []types.Message {
	if len(history) == 0 {
		return nil
	}
	out := make([]types.Message, 0, len(history))
	for _, m := range history {
		if m.Role != types.RoleUser && m.Role != types.RoleAssistant {
			continue
		}
		out = append(out, types.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// fromMessages hides tool traffic from clients.
func fromMessages(history []types.Message) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(history))
	for _, m := range history {
		if m.Role != types.RoleUser && m.Role != types.RoleAssistant {
			continue
		}
		out = append(out, HistoryMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
