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

// Package config resolves the fincoach data directory.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDirEnv overrides the data directory.
const DataDirEnv = "FINCOACH_DATA_DIR"

// DataDir returns the directory holding the config file and local
// databases: $FINCOACH_DATA_DIR when set, else ~/.fincoach.
func DataDir() string {
	if dataDir := os.Getenv(DataDirEnv); dataDir != "" {
		return ExpandPath(dataDir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".fincoach"
	}
	return filepath.Join(homeDir, ".fincoach")
}

// SubDir returns a path below the data directory.
func SubDir(subdir string) string {
	return filepath.Join(DataDir(), subdir)
}

// ExpandPath expands a leading ~/ and makes the path absolute. The path is
// returned unchanged when neither step can be performed.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
