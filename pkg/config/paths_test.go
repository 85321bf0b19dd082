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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataDir(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Run("default to ~/.fincoach", func(t *testing.T) {
		t.Setenv(DataDirEnv, "")
		assert.Equal(t, filepath.Join(homeDir, ".fincoach"), DataDir())
	})

	t.Run("use FINCOACH_DATA_DIR when set", func(t *testing.T) {
		t.Setenv(DataDirEnv, "/custom/fincoach")
		assert.Equal(t, "/custom/fincoach", DataDir())
	})

	t.Run("expand ~ in FINCOACH_DATA_DIR", func(t *testing.T) {
		t.Setenv(DataDirEnv, "~/custom/.fincoach")
		assert.Equal(t, filepath.Join(homeDir, "custom", ".fincoach"), DataDir())
	})

	t.Run("relative FINCOACH_DATA_DIR becomes absolute", func(t *testing.T) {
		t.Setenv(DataDirEnv, "relative/path")
		dataDir := DataDir()
		assert.True(t, filepath.IsAbs(dataDir))
		assert.True(t, strings.HasSuffix(dataDir, filepath.Join("relative", "path")))
	})
}

func TestSubDir(t *testing.T) {
	t.Setenv(DataDirEnv, "/custom/fincoach")
	assert.Equal(t, filepath.Join("/custom/fincoach", "sessions"), SubDir("sessions"))
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "expand tilde", input: "~/test/path", expected: filepath.Join(homeDir, "test", "path")},
		{name: "absolute path unchanged", input: "/absolute/path", expected: "/absolute/path"},
		{name: "empty stays empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandPath(tt.input))
		})
	}

	result := ExpandPath("relative/path")
	assert.True(t, filepath.IsAbs(result))
	assert.True(t, strings.HasSuffix(result, filepath.Join("relative", "path")))
}
