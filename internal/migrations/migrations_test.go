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

package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_insights.up.sql":   {Data: []byte("CREATE TABLE insights (id INT);")},
		"m/000002_insights.down.sql": {Data: []byte("DROP TABLE insights;")},
		"m/000001_initial.up.sql":    {Data: []byte("CREATE TABLE users (id INT);")},
		"m/000001_initial.down.sql":  {Data: []byte("DROP TABLE users;")},
		"m/README.md":                {Data: []byte("ignored")},
		"m/notanumber_skip.up.sql":   {Data: []byte("ignored")},
	}

	migrations, err := Load(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "initial", migrations[0].Description)
	assert.Equal(t, "DROP TABLE users;", migrations[0].DownSQL)
	assert.Equal(t, "insights", migrations[1].Description)

	pending := Pending(migrations, 1)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
	assert.Empty(t, Pending(migrations, 2))
}

func TestLoad_DownWithoutUp(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000001_orphan.down.sql": {Data: []byte("DROP TABLE x;")},
	}
	_, err := Load(fsys, "m")
	assert.Error(t, err)
}
