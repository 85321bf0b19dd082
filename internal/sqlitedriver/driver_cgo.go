//go:build cgo

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

package sqlitedriver

import (
	// go-sqlcipher registers itself as "sqlite3" and honours PRAGMA key.
	_ "github.com/mutecomm/go-sqlcipher/v4"
)

// Implementation names the driver linked into this build.
const Implementation = "go-sqlcipher"

// EncryptionSupported is true: session files may be keyed with PRAGMA key.
const EncryptionSupported = true
