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
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/fincoach/pkg/llm"
	"github.com/teradata-labs/fincoach/pkg/shuttle"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// modelCaller is the retrying, timeout-bounded path every model call in a
// turn goes through. settings is read per call so configuration reloads
// apply to the next call.
type modelCaller struct {
	llm      types.LLMProvider
	settings func() (RetryConfig, time.Duration)
	logger   *zap.Logger
}

// chatWithRetry wraps Chat calls with exponential backoff. Only errors the
// provider marks retryable are retried, and never after the turn's context
// is done.
func (c *modelCaller) chatWithRetry(ctx context.Context, messages []types.Message, tools []shuttle.Tool) (*types.LLMResponse, error) {
	retry, timeout := c.settings()

	var lastErr error
	delay := retry.InitialDelay

	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		response, err := c.call(ctx, timeout, messages, tools)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("llm retry succeeded",
					zap.String("provider", c.llm.Name()),
					zap.Int("attempt", attempt+1),
				)
			}
			return response, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("llm call failed (attempt %d/%d): %w (context cancelled)",
				attempt+1, retry.MaxRetries+1, err)
		}
		if !llm.IsRetryable(err) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("llm call failed: %w", err)
		}
		if attempt >= retry.MaxRetries {
			break
		}

		c.logger.Warn("llm call failed, retrying",
			zap.String("provider", c.llm.Name()),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", retry.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("llm call failed (attempt %d/%d): %w (context cancelled during retry)",
				attempt+1, retry.MaxRetries+1, ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * retry.Multiplier)
		if retry.MaxDelay > 0 && delay > retry.MaxDelay {
			delay = retry.MaxDelay
		}
	}

	c.logger.Error("llm retries exhausted",
		zap.String("provider", c.llm.Name()),
		zap.Int("max_retries", retry.MaxRetries),
		zap.Error(lastErr),
	)

	return nil, fmt.Errorf("llm call failed after %d attempts: %w", retry.MaxRetries+1, lastErr)
}

func (c *modelCaller) call(ctx context.Context, timeout time.Duration, messages []types.Message, tools []shuttle.Tool) (*types.LLMResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.llm.Chat(ctx, messages, tools)
}
