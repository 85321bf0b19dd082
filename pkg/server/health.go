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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teradata-labs/fincoach/pkg/types"
)

// ValidateProviders sends a one-word prompt to each named provider. Called
// during startup so a misconfigured model fails fast instead of on the first
// chat turn.
func ValidateProviders(ctx context.Context, providers map[string]types.LLMProvider) error {
	if len(providers) == 0 {
		return fmt.Errorf("no LLM providers configured")
	}

	var failures []string
	for role, provider := range providers {
		if provider == nil {
			failures = append(failures, fmt.Sprintf("%s: not configured", role))
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := provider.Chat(checkCtx, []types.Message{
			{Role: types.RoleUser, Content: "ping"},
		}, nil)
		cancel()

		if err != nil {
			failures = append(failures, fmt.Sprintf("%s (%s/%s): %v",
				role, provider.Name(), provider.Model(), err))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("LLM provider preflight check failed:\n  %s", strings.Join(failures, "\n  "))
	}
	return nil
}
