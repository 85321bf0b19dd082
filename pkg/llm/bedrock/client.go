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

// Package bedrock serves Claude models through AWS Bedrock. Requests are
// built by the anthropic provider and signed with AWS credentials.
package bedrock

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/teradata-labs/fincoach/pkg/llm/anthropic"
)

const (
	DefaultModelID = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"
	DefaultRegion  = "us-west-2"
)

// Config holds Bedrock configuration. Credentials resolve in order: explicit
// keys, named profile, then the default AWS chain.
type Config struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Provider settings (model, tokens, temperature, timeout)
	anthropic.Config
}

// NewClient creates a Claude client that talks to Bedrock.
func NewClient(ctx context.Context, cfg Config) (*anthropic.Client, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModelID
	}
	if cfg.Region == "" {
		if envRegion := os.Getenv("AWS_DEFAULT_REGION"); envRegion != "" {
			cfg.Region = envRegion
		} else {
			cfg.Region = DefaultRegion
		}
	}

	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return anthropic.NewWithOptions("bedrock", cfg.Config, bedrock.WithConfig(awsCfg)), nil
}

// LoadAWSConfig resolves the AWS configuration for cfg.
func LoadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			cfg.SessionToken,
		)))
	case cfg.Profile != "":
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}
