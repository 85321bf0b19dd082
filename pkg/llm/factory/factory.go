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

// Package factory builds language model providers from configuration.
package factory

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/teradata-labs/fincoach/pkg/llm/anthropic"
	"github.com/teradata-labs/fincoach/pkg/llm/bedrock"
	"github.com/teradata-labs/fincoach/pkg/llm/gemini"
	"github.com/teradata-labs/fincoach/pkg/llm/openai"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// Supported provider names.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderOpenAI    = "openai"
)

// Config selects and configures one provider.
type Config struct {
	// Provider is one of gemini, anthropic, bedrock or openai (default: gemini)
	Provider string
	Model    string
	APIKey   string
	BaseURL  string

	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// Bedrock only
	AWSRegion          string
	AWSProfile         string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
}

// envKeys lists the environment variables consulted when APIKey is empty.
var envKeys = map[string][]string{
	ProviderGemini:    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	ProviderOpenAI:    {"OPENAI_API_KEY"},
}

// NewProvider creates the provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg Config) (types.LLMProvider, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderGemini
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		for _, env := range envKeys[provider] {
			if v := os.Getenv(env); v != "" {
				apiKey = v
				break
			}
		}
	}
	if apiKey == "" && provider != ProviderBedrock {
		if _, known := envKeys[provider]; known {
			return nil, fmt.Errorf("%s API key not configured (set llm.api_key or %s)", provider, strings.Join(envKeys[provider], "/"))
		}
	}

	switch provider {
	case ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:      apiKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}), nil
	case ProviderAnthropic:
		return anthropic.NewClient(anthropic.Config{
			APIKey:      apiKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}), nil
	case ProviderBedrock:
		client, err := bedrock.NewClient(ctx, bedrock.Config{
			Region:          cfg.AWSRegion,
			Profile:         cfg.AWSProfile,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			SessionToken:    cfg.AWSSessionToken,
			Config: anthropic.Config{
				Model:       cfg.Model,
				MaxTokens:   cfg.MaxTokens,
				Temperature: cfg.Temperature,
				Timeout:     cfg.Timeout,
			},
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:      apiKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
