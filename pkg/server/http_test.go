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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name               string
		corsConfig         CORSConfig
		requestOrigin      string
		requestMethod      string
		expectedOrigin     string
		expectedMethods    string
		expectedHeaders    string
		expectedStatusCode int
	}{
		{
			name: "wildcard origin",
			corsConfig: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST"},
				AllowedHeaders: []string{"Content-Type"},
			},
			requestOrigin:      "http://localhost:8501",
			requestMethod:      "GET",
			expectedOrigin:     "*",
			expectedMethods:    "GET, POST",
			expectedHeaders:    "Content-Type",
			expectedStatusCode: http.StatusOK,
		},
		{
			name: "specific origin",
			corsConfig: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"http://localhost:8501"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"*"},
			},
			requestOrigin:      "http://localhost:8501",
			requestMethod:      "GET",
			expectedOrigin:     "http://localhost:8501",
			expectedMethods:    "GET, POST, OPTIONS",
			expectedHeaders:    "*",
			expectedStatusCode: http.StatusOK,
		},
		{
			name: "preflight",
			corsConfig: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization"},
				MaxAge:         3600,
			},
			requestOrigin:      "http://localhost:8501",
			requestMethod:      "OPTIONS",
			expectedOrigin:     "*",
			expectedMethods:    "POST, OPTIONS",
			expectedHeaders:    "Content-Type, Authorization",
			expectedStatusCode: http.StatusNoContent,
		},
		{
			name: "origin not allowed",
			corsConfig: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"https://allowed.com"},
				AllowedMethods: []string{"GET"},
			},
			requestOrigin:      "https://not-allowed.com",
			requestMethod:      "GET",
			expectedStatusCode: http.StatusOK,
		},
		{
			name: "credentials",
			corsConfig: CORSConfig{
				Enabled:          true,
				AllowedOrigins:   []string{"https://example.com"},
				AllowedMethods:   []string{"GET", "POST"},
				AllowCredentials: true,
			},
			requestOrigin:      "https://example.com",
			requestMethod:      "GET",
			expectedOrigin:     "https://example.com",
			expectedMethods:    "GET, POST",
			expectedStatusCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("OK"))
			})
			httpServer := &HTTPServer{corsConfig: tt.corsConfig}

			req := httptest.NewRequest(tt.requestMethod, "/chat", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			rr := httptest.NewRecorder()
			httpServer.corsMiddleware(handler).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatusCode, rr.Code)
			assert.Equal(t, tt.expectedOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
			if tt.expectedMethods != "" {
				assert.Equal(t, tt.expectedMethods, rr.Header().Get("Access-Control-Allow-Methods"))
			}
			if tt.expectedHeaders != "" {
				assert.Equal(t, tt.expectedHeaders, rr.Header().Get("Access-Control-Allow-Headers"))
			}
			if tt.corsConfig.AllowCredentials {
				assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
			}
			if tt.corsConfig.MaxAge > 0 {
				assert.Equal(t, "3600", rr.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}

func TestDefaultCORSConfig(t *testing.T) {
	config := DefaultCORSConfig()

	assert.True(t, config.Enabled)
	assert.Contains(t, config.AllowedOrigins, "*")
	assert.Contains(t, config.AllowedMethods, "POST")
	assert.Contains(t, config.AllowedMethods, "OPTIONS")
	assert.False(t, config.AllowCredentials)
	assert.Equal(t, 86400, config.MaxAge)
}

func TestGetAllowedOrigin(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		expectedResult string
	}{
		{"wildcard", []string{"*"}, "https://example.com", "*"},
		{"exact match", []string{"https://example.com", "https://another.com"}, "https://another.com", "https://another.com"},
		{"no match", []string{"https://allowed.com"}, "https://not-allowed.com", ""},
		{"empty origin", []string{"*"}, "", ""},
		{"empty allowed list", []string{}, "https://example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpServer := &HTTPServer{corsConfig: CORSConfig{AllowedOrigins: tt.allowedOrigins}}
			assert.Equal(t, tt.expectedResult, httpServer.getAllowedOrigin(tt.requestOrigin))
		})
	}
}

func TestNewHTTPServer(t *testing.T) {
	_, err := NewHTTPServer(Config{})
	assert.Error(t, err, "engine is required")

	srv, err := NewHTTPServer(Config{Addr: "localhost:0", Engine: &fakeEngine{}})
	require.NoError(t, err)
	assert.True(t, srv.corsConfig.Enabled)
	assert.Equal(t, int64(DefaultMaxBodyBytes), srv.maxBodyBytes)
	assert.Equal(t, int64(1), srv.defaultUserID)

	srv, err = NewHTTPServer(Config{Engine: &fakeEngine{}, CORS: &CORSConfig{Enabled: false}})
	require.NoError(t, err)
	assert.False(t, srv.corsConfig.Enabled)
}
