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

// Package server exposes the coach over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/fincoach/pkg/agent"
	"github.com/teradata-labs/fincoach/pkg/insights"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 1 << 20

// ServiceName is reported by the root endpoint.
const ServiceName = "Smart Financial Coach API"

// ChatEngine is the part of the orchestration engine the HTTP layer uses.
type ChatEngine interface {
	Handle(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error)
	Conversation(ctx context.Context, conversationID string) (*types.Conversation, error)
	ResetConversation(ctx context.Context, conversationID string) error
	ListConversations(ctx context.Context) ([]string, error)
}

// InsightService generates and serves stored insights.
type InsightService interface {
	Generate(ctx context.Context, userID int64) ([]insights.Insight, error)
	Store() insights.Store
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig returns a permissive CORS configuration
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		Enabled:          true,
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           86400, // 24 hours
	}
}

// Config configures an HTTPServer.
type Config struct {
	Addr     string
	Engine   ChatEngine
	Insights InsightService // optional; insight routes answer 503 without it

	Logger  *zap.Logger
	CORS    *CORSConfig // Default: DefaultCORSConfig()
	Version string

	MaxBodyBytes  int64 // Default: DefaultMaxBodyBytes
	DefaultUserID int64 // used when a request omits user_id (default: 1)

	ReadTimeout  time.Duration // Default: 30s
	WriteTimeout time.Duration // Default: 0 (turns can run long)
}

// HTTPServer serves the chat and insight endpoints.
type HTTPServer struct {
	engine        ChatEngine
	insights      InsightService
	httpServer    *http.Server
	logger        *zap.Logger
	corsConfig    CORSConfig
	version       string
	maxBodyBytes  int64
	defaultUserID int64
}

// NewHTTPServer creates an HTTP server.
func NewHTTPServer(cfg Config) (*HTTPServer, error) {
	if cfg.Engine == nil {
		return nil, errors.New("server: engine is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	cors := DefaultCORSConfig()
	if cfg.CORS != nil {
		cors = *cfg.CORS
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.DefaultUserID <= 0 {
		cfg.DefaultUserID = 1
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}

	h := &HTTPServer{
		engine:        cfg.Engine,
		insights:      cfg.Insights,
		logger:        cfg.Logger,
		corsConfig:    cors,
		version:       cfg.Version,
		maxBodyBytes:  cfg.MaxBodyBytes,
		defaultUserID: cfg.DefaultUserID,
	}
	h.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      h.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	return h, nil
}

// Handler returns the routed handler with middleware applied.
func (h *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /chat", h.handleChat)
	mux.HandleFunc("POST /reset-session", h.handleResetSession)
	mux.HandleFunc("GET /sessions", h.handleListSessions)
	mux.HandleFunc("POST /insights", h.handleGenerateInsights)
	mux.HandleFunc("GET /insights", h.handleListInsights)
	mux.HandleFunc("POST /insights/{id}/read", h.handleMarkInsightRead)

	var handler http.Handler = mux
	handler = h.recoverMiddleware(handler)
	if h.corsConfig.Enabled {
		handler = h.corsMiddleware(handler)
	}
	return handler
}

// Start listens on the configured address and serves until Stop.
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server", zap.String("addr", h.httpServer.Addr))
	if err := h.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Serve serves on an existing listener until Stop.
func (h *HTTPServer) Serve(l net.Listener) error {
	h.logger.Info("Starting HTTP server", zap.String("addr", l.Addr().String()))
	if err := h.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server")
	return h.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers to HTTP responses
func (h *HTTPServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowedOrigin := h.getAllowedOrigin(r.Header.Get("Origin")); allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		}
		if h.corsConfig.AllowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if len(h.corsConfig.AllowedMethods) > 0 {
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(h.corsConfig.AllowedMethods, ", "))
		}
		if len(h.corsConfig.AllowedHeaders) > 0 {
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(h.corsConfig.AllowedHeaders, ", "))
		}
		if len(h.corsConfig.ExposedHeaders) > 0 {
			w.Header().Set("Access-Control-Expose-Headers", strings.Join(h.corsConfig.ExposedHeaders, ", "))
		}
		if h.corsConfig.MaxAge > 0 {
			w.Header().Set("Access-Control-Max-Age", strconv.Itoa(h.corsConfig.MaxAge))
		}

		// Preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getAllowedOrigin checks if the origin is allowed and returns it, or empty string if not
func (h *HTTPServer) getAllowedOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	for _, allowed := range h.corsConfig.AllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if allowed == origin {
			return origin
		}
	}
	return ""
}

// recoverMiddleware turns a handler panic into a 500 response.
func (h *HTTPServer) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.logger.Error("Handler panic",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.Stack("stack"))
				writeError(w, http.StatusInternalServerError, apiError{Code: "internal", Message: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
