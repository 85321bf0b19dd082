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
	"net/url"
	"strings"
)

// DriverName is the database/sql name both driver variants register under.
const DriverName = "sqlite3"

// ReadOnlyDSN returns a URI DSN that opens path with mode=ro.
// Any write through such a connection fails with SQLITE_READONLY.
func ReadOnlyDSN(path string) string {
	return withParam(path, "mode", "ro")
}

// IsReadOnlyDSN reports whether dsn already requests read-only mode.
func IsReadOnlyDSN(dsn string) bool {
	_, query, ok := strings.Cut(dsn, "?")
	if !ok {
		return false
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return false
	}
	return values.Get("mode") == "ro"
}

// KeyedDSN returns a DSN that unlocks a SQLCipher database with key.
// An empty key returns path unchanged.
func KeyedDSN(path, key string) string {
	if key == "" {
		return path
	}
	return withParam(path, "_pragma_key", key)
}

func withParam(path, key, value string) string {
	if IsReadOnlyDSN(path) && key == "mode" {
		return path
	}
	base, query, hasQuery := strings.Cut(path, "?")
	if !strings.HasPrefix(base, "file:") {
		base = "file:" + base
	}
	params := url.Values{}
	if hasQuery {
		if parsed, err := url.ParseQuery(query); err == nil {
			params = parsed
		}
	}
	params.Set(key, value)
	return base + "?" + params.Encode()
}
