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

package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrict(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"envelope", `{"insights":[{"title":"a","message":"b","type":"trend"}]}`, 1, false},
		{"surrounding whitespace", "\n  " + `{"insights":[{"title":"a","message":"b","type":"alert"}]}` + "\n", 1, false},
		{"three insights", `{"insights":[
			{"title":"a","message":"b","type":"trend"},
			{"title":"c","message":"d","type":"alert"},
			{"title":"e","message":"f","type":"achievement"}]}`, 3, false},
		{"too many", `{"insights":[
			{"title":"a","message":"b","type":"trend"},
			{"title":"a","message":"b","type":"trend"},
			{"title":"a","message":"b","type":"trend"},
			{"title":"a","message":"b","type":"trend"}]}`, 0, true},
		{"fenced", "```json\n{\"insights\":[{\"title\":\"a\",\"message\":\"b\",\"type\":\"trend\"}]}\n```", 0, true},
		{"bare array", `[{"title":"a","message":"b","type":"trend"}]`, 0, true},
		{"missing message", `{"insights":[{"title":"a","type":"trend"}]}`, 0, true},
		{"empty title", `{"insights":[{"title":"","message":"b","type":"trend"}]}`, 0, true},
		{"extra field", `{"insights":[{"title":"a","message":"b","type":"trend","score":3}]}`, 0, true},
		{"capitalized type", `{"insights":[{"title":"a","message":"b","type":"Trend"}]}`, 0, true},
		{"trailing data", `{"insights":[{"title":"a","message":"b","type":"trend"}]} {}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStrict(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestParseLenient(t *testing.T) {
	got, err := ParseLenient("Here are your insights:\n```json\n[{\"title\":\"Nice\",\"message\":\"Spending fell.\",\"type\":\" Achievement \"}]\n```")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TypeAchievement, got[0].Type)

	_, err = ParseLenient("no json here")
	assert.Error(t, err)

	_, err = ParseLenient(`{"insights": [`)
	assert.Error(t, err)
}

func TestParse_PrefersStrict(t *testing.T) {
	suggestions, outcome, err := parse(`{"insights":[{"title":"a","message":"b","type":"trend"}]}`)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStrict, outcome)
	assert.Len(t, suggestions, 1)

	_, outcome, err = parse("```\n{\"insights\":[{\"title\":\"a\",\"message\":\"b\",\"type\":\"trend\"}]}\n```")
	require.NoError(t, err)
	assert.Equal(t, OutcomeLenient, outcome)

	_, outcome, err = parse("nope")
	assert.Error(t, err)
	assert.Equal(t, OutcomeFallback, outcome)
}

func TestResponseSchema(t *testing.T) {
	schema := ResponseSchema()
	assert.NotContains(t, schema, "$schema")
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []interface{}{"insights"}, schema["required"])

	// Callers get a copy.
	schema["type"] = "array"
	assert.Equal(t, "object", ResponseSchema()["type"])
}
