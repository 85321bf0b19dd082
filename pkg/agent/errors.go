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

package agent

import (
	"errors"
	"fmt"

	"github.com/teradata-labs/fincoach/pkg/shuttle"
)

// ValidationError reports a malformed turn request. It maps to HTTP 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ModelUnavailableError means a model call failed after retries. The turn is
// abandoned and nothing is persisted. It maps to HTTP 503.
type ModelUnavailableError struct {
	// Stage is "coordinator" or the worker kind
	Stage    string
	Provider string
	Err      error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model unavailable (%s via %s): %v", e.Stage, e.Provider, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Err
}

// Retryable reports that the client may resend the same message.
func (e *ModelUnavailableError) Retryable() bool {
	return true
}

// ToolExecutionError is a recoverable failure inside a delegation or data
// tool. It never aborts a turn; it is rendered into an error-shaped tool
// message so the model can react to it.
type ToolExecutionError struct {
	Tool      string
	Code      string
	Message   string
	Retryable bool
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed (%s): %s", e.Tool, e.Code, e.Message)
}

// Result renders the failure as a tool result.
func (e *ToolExecutionError) Result() *shuttle.Result {
	return &shuttle.Result{
		Success: false,
		Error: &shuttle.Error{
			Code:      e.Code,
			Message:   e.Message,
			Retryable: e.Retryable,
		},
	}
}

// IsModelUnavailable reports whether err aborts the turn.
func IsModelUnavailable(err error) bool {
	var mu *ModelUnavailableError
	return errors.As(err, &mu)
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
