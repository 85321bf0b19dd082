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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// ResponseSchemaName names the schema for providers with native structured
// output.
const ResponseSchemaName = "financial_insights"

// Outcome records which parse stage produced the stored insights.
type Outcome string

const (
	OutcomeStrict     Outcome = "strict"
	OutcomeLenient    Outcome = "lenient"
	OutcomeFallback   Outcome = "fallback"
	OutcomeModelError Outcome = "model_error"
)

// ParseError is returned when neither the strict nor the lenient parse
// accepts the model output. The pipeline logs it and falls back; it never
// reaches a caller of Generate.
type ParseError struct {
	Strict  error
	Lenient error
	Raw     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable insight response: strict: %v; lenient: %v", e.Strict, e.Lenient)
}

func (e *ParseError) Unwrap() []error {
	return []error{e.Strict, e.Lenient}
}

var (
	responseSchema map[string]interface{}
	schemaLoader   gojsonschema.JSONLoader
)

func init() {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	b, err := json.Marshal(reflector.Reflect(&Response{}))
	if err != nil {
		panic(fmt.Sprintf("insights: failed to build response schema: %v", err))
	}
	if err := json.Unmarshal(b, &responseSchema); err != nil {
		panic(fmt.Sprintf("insights: failed to decode response schema: %v", err))
	}
	// gojsonschema only knows drafts 4 through 7.
	delete(responseSchema, "$schema")
	delete(responseSchema, "$id")
	schemaLoader = gojsonschema.NewGoLoader(responseSchema)
}

// ResponseSchema returns the JSON Schema of the model response envelope.
func ResponseSchema() map[string]interface{} {
	var out map[string]interface{}
	b, _ := json.Marshal(responseSchema)
	_ = json.Unmarshal(b, &out)
	return out
}

// Parse runs the strict parse and then the lenient one.
func Parse(raw string) ([]Suggestion, error) {
	suggestions, _, err := parse(raw)
	return suggestions, err
}

func parse(raw string) ([]Suggestion, Outcome, error) {
	suggestions, strictErr := ParseStrict(raw)
	if strictErr == nil {
		return suggestions, OutcomeStrict, nil
	}
	suggestions, lenientErr := ParseLenient(raw)
	if lenientErr == nil {
		return suggestions, OutcomeLenient, nil
	}
	return nil, OutcomeFallback, &ParseError{Strict: strictErr, Lenient: lenientErr, Raw: raw}
}

// ParseStrict accepts only a bare JSON document matching the response
// schema.
func ParseStrict(raw string) ([]Suggestion, error) {
	var doc interface{}
	if err := decodeJSON([]byte(strings.TrimSpace(raw)), &doc); err != nil {
		return nil, err
	}
	return validate(doc)
}

// ParseLenient strips code fences, extracts the outermost JSON value, and
// accepts a bare array of insights in place of the envelope.
func ParseLenient(raw string) ([]Suggestion, error) {
	body, err := extractJSON(stripFences(raw))
	if err != nil {
		return nil, err
	}

	var doc interface{}
	if err := decodeJSON([]byte(body), &doc); err != nil {
		return nil, err
	}
	if arr, ok := doc.([]interface{}); ok {
		doc = map[string]interface{}{"insights": arr}
	}
	normalizeTypes(doc)
	return validate(doc)
}

func decodeJSON(b []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON: trailing data after document")
	}
	return nil
}

func validate(doc interface{}) ([]Suggestion, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("response does not match schema: %s", strings.Join(msgs, "; "))
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode insights: %w", err)
	}
	return resp.Insights, nil
}

func stripFences(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// extractJSON returns the span from the first opening bracket to the last
// matching closing bracket.
func extractJSON(s string) (string, error) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", errors.New("no JSON value in response")
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return "", errors.New("unterminated JSON value in response")
	}
	return s[start : end+1], nil
}

// normalizeTypes lowercases insight type tags ("Trend" -> "trend").
func normalizeTypes(doc interface{}) {
	envelope, ok := doc.(map[string]interface{})
	if !ok {
		return
	}
	items, ok := envelope["insights"].([]interface{})
	if !ok {
		return
	}
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			if t, ok := m["type"].(string); ok {
				m["type"] = strings.ToLower(strings.TrimSpace(t))
			}
		}
	}
}
