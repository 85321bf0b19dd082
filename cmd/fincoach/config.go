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

package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/fincoach/internal/pgxdriver"
	"github.com/teradata-labs/fincoach/internal/sqlitedriver"
	fcconfig "github.com/teradata-labs/fincoach/pkg/config"
	"github.com/teradata-labs/fincoach/pkg/fabric/factory"
	llmfactory "github.com/teradata-labs/fincoach/pkg/llm/factory"
	"github.com/teradata-labs/fincoach/pkg/server"
)

const (
	// ServiceName for keyring storage
	ServiceName = "fincoach"
	// DefaultConfigFileName is the name of the config file
	DefaultConfigFileName = "fincoach"
	// EnvPrefix prefixes every environment override (FINCOACH_LLM_MODEL)
	EnvPrefix = "FINCOACH"
)

// Config holds all configuration for the coach server.
// Priority: CLI flags > env vars > config file > defaults
type Config struct {
	// DataDir is computed from FINCOACH_DATA_DIR or ~/.fincoach. It is not
	// loaded from the config file.
	DataDir string `mapstructure:"-" yaml:"-"`

	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	LLM           LLMConfig           `mapstructure:"llm" yaml:"llm"`
	Agent         AgentConfig         `mapstructure:"agent" yaml:"agent"`
	Executor      ExecutorConfig      `mapstructure:"executor" yaml:"executor"`
	Database      DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Session       SessionConfig       `mapstructure:"session" yaml:"session"`
	Insights      InsightsConfig      `mapstructure:"insights" yaml:"insights"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
	Logging       LoggingConfig       `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host                string           `mapstructure:"host" yaml:"host"`
	Port                int              `mapstructure:"port" yaml:"port"`
	ReadTimeoutSeconds  int              `mapstructure:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int              `mapstructure:"write_timeout_seconds" yaml:"write_timeout_seconds"` // 0 = unbounded
	MaxBodyBytes        int64            `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	DefaultUserID       int64            `mapstructure:"default_user_id" yaml:"default_user_id"`
	ValidateProviders   bool             `mapstructure:"validate_providers" yaml:"validate_providers"` // ping the model at startup
	CORS                CORSServerConfig `mapstructure:"cors" yaml:"cors"`
}

// CORSServerConfig holds CORS configuration for the HTTP API.
//
// The default allows any origin, which only suits development. Set
// allowed_origins to the frontend's origin in production.
type CORSServerConfig struct {
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// LLMConfig holds model provider configuration.
type LLMConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"` // gemini, anthropic, bedrock, openai
	Model    string `mapstructure:"model" yaml:"model"`
	APIKey   string `mapstructure:"api_key" yaml:"-"` // From CLI/env/keyring only
	BaseURL  string `mapstructure:"base_url" yaml:"base_url,omitempty"`

	// WorkerModel overrides the model used by the specialist workers
	WorkerModel string `mapstructure:"worker_model" yaml:"worker_model,omitempty"`

	// InsightsModel overrides the model used by the insight pipeline
	InsightsModel string `mapstructure:"insights_model" yaml:"insights_model,omitempty"`

	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // per model call

	// Bedrock-specific
	BedrockRegion          string `mapstructure:"bedrock_region" yaml:"bedrock_region,omitempty"`
	BedrockProfile         string `mapstructure:"bedrock_profile" yaml:"bedrock_profile,omitempty"`
	BedrockAccessKeyID     string `mapstructure:"bedrock_access_key_id" yaml:"-"`     // From CLI/env/keyring only
	BedrockSecretAccessKey string `mapstructure:"bedrock_secret_access_key" yaml:"-"` // From CLI/env/keyring only
	BedrockSessionToken    string `mapstructure:"bedrock_session_token" yaml:"-"`     // From CLI/env/keyring only
}

// AgentConfig bounds the delegation loop.
type AgentConfig struct {
	MaxCycles          int `mapstructure:"max_cycles" yaml:"max_cycles"`
	WorkerMaxSteps     int `mapstructure:"worker_max_steps" yaml:"worker_max_steps"`
	ContextTokenBudget int `mapstructure:"context_token_budget" yaml:"context_token_budget"`
	MaxRetries         int `mapstructure:"max_retries" yaml:"max_retries"`
}

// ExecutorConfig describes the read-only connection used by the workers.
// When DSN is empty it is built from the database section's read-only
// credentials.
type ExecutorConfig struct {
	Driver         string `mapstructure:"driver" yaml:"driver"` // postgres, pgx, mysql, sqlite
	DSN            string `mapstructure:"dsn" yaml:"-"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRows        int    `mapstructure:"max_rows" yaml:"max_rows"`
}

// DatabaseConfig holds the PostgreSQL financial database settings. The
// admin credential owns the schema; the read-only credential is the only
// one handed to the query executor.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Name     string `mapstructure:"name" yaml:"name"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
	Schema   string `mapstructure:"schema" yaml:"schema"`
	MaxConns int32  `mapstructure:"max_conns" yaml:"max_conns"`

	// DSN overrides the admin connection fields
	DSN string `mapstructure:"dsn" yaml:"-"`

	AdminUser        string `mapstructure:"admin_user" yaml:"admin_user"`
	AdminPassword    string `mapstructure:"admin_password" yaml:"-"` // From CLI/env/keyring only
	ReadonlyUser     string `mapstructure:"readonly_user" yaml:"readonly_user"`
	ReadonlyPassword string `mapstructure:"readonly_password" yaml:"-"` // From CLI/env/keyring only
}

// SessionConfig selects the conversation store.
type SessionConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend"` // memory, sqlite, postgres
	Path       string `mapstructure:"path" yaml:"path"`       // sqlite only
	MaxEntries int    `mapstructure:"max_entries" yaml:"max_entries"`
	TTLMinutes int    `mapstructure:"ttl_minutes" yaml:"ttl_minutes"` // 0 = no expiry

	EncryptionKey string `mapstructure:"encryption_key" yaml:"-"` // sqlite only; from env/keyring
}

// InsightsConfig configures the insight pipeline and its schedule.
type InsightsConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	Cron           string  `mapstructure:"cron" yaml:"cron"` // empty disables scheduled runs
	Timezone       string  `mapstructure:"timezone" yaml:"timezone"`
	UserIDs        []int64 `mapstructure:"user_ids" yaml:"user_ids"` // empty = every user
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"` // finished spans are logged at debug level
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // json, console
	File   string `mapstructure:"file" yaml:"file"`     // optional, defaults to stderr
}

// LoadConfig loads configuration from multiple sources with proper priority:
// 1. Command line flags (highest priority)
// 2. Environment variables (FINCOACH_LLM_MODEL for llm.model)
// 3. Config file
// 4. Defaults (lowest priority)
func LoadConfig(cfgFile string) (*Config, error) {
	return loadConfig(viper.GetViper(), cfgFile)
}

func loadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(fcconfig.DataDir())
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/fincoach/")
		v.SetConfigName(DefaultConfigFileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	config, err := decodeConfig(v)
	if err != nil {
		return nil, err
	}

	// Non-fatal: the keyring may be unavailable; secrets can come from env.
	_ = loadSecretsFromKeyring(config)

	return config, nil
}

// decodeConfig unmarshals the current viper state.
func decodeConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.DataDir = fcconfig.DataDir()
	config.Session.Path = fcconfig.ExpandPath(config.Session.Path)
	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.write_timeout_seconds", 0)
	v.SetDefault("server.max_body_bytes", server.DefaultMaxBodyBytes)
	v.SetDefault("server.default_user_id", 1)
	v.SetDefault("server.validate_providers", false)

	// CORS defaults (permissive for development, MUST be configured for production)
	cors := server.DefaultCORSConfig()
	v.SetDefault("server.cors.enabled", cors.Enabled)
	v.SetDefault("server.cors.allowed_origins", cors.AllowedOrigins)
	v.SetDefault("server.cors.allowed_methods", cors.AllowedMethods)
	v.SetDefault("server.cors.allowed_headers", cors.AllowedHeaders)
	v.SetDefault("server.cors.exposed_headers", cors.ExposedHeaders)
	v.SetDefault("server.cors.allow_credentials", cors.AllowCredentials)
	v.SetDefault("server.cors.max_age", cors.MaxAge)

	// LLM defaults
	v.SetDefault("llm.provider", llmfactory.ProviderGemini)
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("llm.bedrock_region", "us-west-2")

	// Agent defaults
	v.SetDefault("agent.max_cycles", 50)
	v.SetDefault("agent.worker_max_steps", 25)
	v.SetDefault("agent.context_token_budget", 100000)
	v.SetDefault("agent.max_retries", 2)

	// Executor defaults
	v.SetDefault("executor.driver", "postgres")
	v.SetDefault("executor.timeout_seconds", int(factory.DefaultQueryTimeout/time.Second))
	v.SetDefault("executor.max_rows", factory.DefaultMaxRows)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "finance")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.max_conns", pgxdriver.DefaultMaxConns)
	v.SetDefault("database.admin_user", "postgres")
	v.SetDefault("database.readonly_user", "finance_readonly")

	// Session defaults
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.path", filepath.Join(fcconfig.DataDir(), "sessions.db"))
	v.SetDefault("session.max_entries", 1000)
	v.SetDefault("session.ttl_minutes", 24*60)

	// Insight defaults
	v.SetDefault("insights.enabled", true)
	v.SetDefault("insights.cron", "")
	v.SetDefault("insights.timezone", "UTC")
	v.SetDefault("insights.user_ids", []int64{})
	v.SetDefault("insights.timeout_seconds", 60)

	// Observability defaults
	v.SetDefault("observability.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	// Secrets have empty defaults so AutomaticEnv can see them on Unmarshal.
	for _, key := range []string{
		"llm.api_key", "llm.base_url", "llm.worker_model", "llm.insights_model",
		"llm.bedrock_profile", "llm.bedrock_access_key_id", "llm.bedrock_secret_access_key", "llm.bedrock_session_token",
		"executor.dsn", "database.dsn", "database.admin_password", "database.readonly_password",
		"session.encryption_key",
	} {
		v.SetDefault(key, "")
	}
}

// SecretMapping defines how to load a secret from keyring into the config.
type SecretMapping struct {
	KeyringKey string
	Setter     func(*Config, string)
	IsSet      func(*Config) bool // true when the value came from CLI/env/config
}

// GetSecretMappings returns all secret mappings for the application.
func GetSecretMappings() []SecretMapping {
	return []SecretMapping{
		{
			KeyringKey: "llm_api_key",
			Setter:     func(c *Config, val string) { c.LLM.APIKey = val },
			IsSet:      func(c *Config) bool { return c.LLM.APIKey != "" },
		},
		{
			KeyringKey: "bedrock_access_key_id",
			Setter:     func(c *Config, val string) { c.LLM.BedrockAccessKeyID = val },
			IsSet:      func(c *Config) bool { return c.LLM.BedrockAccessKeyID != "" },
		},
		{
			KeyringKey: "bedrock_secret_access_key",
			Setter:     func(c *Config, val string) { c.LLM.BedrockSecretAccessKey = val },
			IsSet:      func(c *Config) bool { return c.LLM.BedrockSecretAccessKey != "" },
		},
		{
			KeyringKey: "bedrock_session_token",
			Setter:     func(c *Config, val string) { c.LLM.BedrockSessionToken = val },
			IsSet:      func(c *Config) bool { return c.LLM.BedrockSessionToken != "" },
		},
		{
			KeyringKey: "database_admin_password",
			Setter:     func(c *Config, val string) { c.Database.AdminPassword = val },
			IsSet:      func(c *Config) bool { return c.Database.AdminPassword != "" },
		},
		{
			KeyringKey: "database_readonly_password",
			Setter:     func(c *Config, val string) { c.Database.ReadonlyPassword = val },
			IsSet:      func(c *Config) bool { return c.Database.ReadonlyPassword != "" },
		},
		{
			KeyringKey: "session_encryption_key",
			Setter:     func(c *Config, val string) { c.Session.EncryptionKey = val },
			IsSet:      func(c *Config) bool { return c.Session.EncryptionKey != "" },
		},
		{
			KeyringKey: "executor_dsn",
			Setter:     func(c *Config, val string) { c.Executor.DSN = val },
			IsSet:      func(c *Config) bool { return c.Executor.DSN != "" },
		},
	}
}

// loadSecretsFromKeyring fills unset secrets from the system keyring.
func loadSecretsFromKeyring(config *Config) error {
	for _, mapping := range GetSecretMappings() {
		if mapping.IsSet(config) {
			continue
		}
		value, err := GetSecretFromKeyring(mapping.KeyringKey)
		if err == nil && value != "" {
			mapping.Setter(config, value)
		}
	}
	return nil
}

// GetSecretFromKeyring retrieves a secret from the system keyring.
func GetSecretFromKeyring(key string) (string, error) {
	return keyring.Get(ServiceName, key)
}

// SaveSecretToKeyring saves a secret to the system keyring.
func SaveSecretToKeyring(key, value string) error {
	return keyring.Set(ServiceName, key, value)
}

// DeleteSecretFromKeyring removes a secret from the system keyring.
func DeleteSecretFromKeyring(key string) error {
	return keyring.Delete(ServiceName, key)
}

// ListAvailableSecretKeys returns all known secret keys that can be stored in the keyring.
func ListAvailableSecretKeys() []string {
	mappings := GetSecretMappings()
	keys := make([]string, len(mappings))
	for i, mapping := range mappings {
		keys[i] = mapping.KeyringKey
	}
	return keys
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}

	switch c.LLM.Provider {
	case llmfactory.ProviderGemini, llmfactory.ProviderAnthropic, llmfactory.ProviderOpenAI:
	case llmfactory.ProviderBedrock:
		if c.LLM.BedrockRegion == "" {
			return fmt.Errorf("llm.bedrock_region is required for bedrock")
		}
	case "":
		return fmt.Errorf("llm.provider is required")
	default:
		return fmt.Errorf("unsupported llm.provider: %s (supported: gemini, anthropic, bedrock, openai)", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.TimeoutSeconds < 0 {
		return fmt.Errorf("llm.timeout_seconds must not be negative")
	}

	if c.Agent.MaxCycles < 1 {
		return fmt.Errorf("agent.max_cycles must be at least 1, got %d", c.Agent.MaxCycles)
	}

	switch c.Executor.Driver {
	case "postgres", "postgresql", "pgx", "mysql", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported executor.driver: %s", c.Executor.Driver)
	}
	if c.Executor.TimeoutSeconds < 1 {
		return fmt.Errorf("executor.timeout_seconds must be at least 1")
	}
	if c.Executor.DSN == "" && !c.executorUsesDatabase() {
		return fmt.Errorf("executor.dsn is required for driver %s", c.Executor.Driver)
	}

	switch c.Session.Backend {
	case "memory":
	case "sqlite":
		if c.Session.Path == "" {
			return fmt.Errorf("session.path is required for the sqlite backend")
		}
		if c.Session.EncryptionKey != "" && !sqlitedriver.EncryptionSupported {
			return fmt.Errorf("session.encryption_key needs go-sqlcipher (this build uses %s)", sqlitedriver.Implementation)
		}
	case "postgres":
	default:
		return fmt.Errorf("unsupported session.backend: %s (supported: memory, sqlite, postgres)", c.Session.Backend)
	}
	if c.Session.MaxEntries < 0 || c.Session.TTLMinutes < 0 {
		return fmt.Errorf("session.max_entries and session.ttl_minutes must not be negative")
	}

	if c.Insights.Enabled && c.Insights.Cron != "" {
		if _, err := cron.ParseStandard(c.Insights.Cron); err != nil {
			return fmt.Errorf("invalid insights.cron %q: %w", c.Insights.Cron, err)
		}
	}
	for _, id := range c.Insights.UserIDs {
		if id <= 0 {
			return fmt.Errorf("insights.user_ids must be positive, got %d", id)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, error)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console", "text":
	default:
		return fmt.Errorf("invalid logging.format: %s (must be json or console)", c.Logging.Format)
	}
	return nil
}

// executorUsesDatabase reports whether the executor DSN is derived from
// the database section.
func (c *Config) executorUsesDatabase() bool {
	switch c.Executor.Driver {
	case "postgres", "postgresql", "pgx":
		return c.Database.Host != "" && c.Database.Name != ""
	}
	return false
}

// ExecutorDSN returns the read-only DSN handed to the query executor.
func (c *Config) ExecutorDSN() string {
	if c.Executor.DSN != "" {
		return c.Executor.DSN
	}
	if !c.executorUsesDatabase() {
		return ""
	}
	return pgxdriver.BuildDSN(pgxdriver.Config{
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		Database: c.Database.Name,
		SSLMode:  c.Database.SSLMode,
		User:     c.Database.ReadonlyUser,
		Password: c.Database.ReadonlyPassword,
	})
}

// AdminPoolConfig returns the pgx configuration for the schema owner.
func (c *Config) AdminPoolConfig() pgxdriver.Config {
	return pgxdriver.Config{
		DSN:      c.Database.DSN,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		Database: c.Database.Name,
		SSLMode:  c.Database.SSLMode,
		Schema:   c.Database.Schema,
		User:     c.Database.AdminUser,
		Password: c.Database.AdminPassword,
		MaxConns: c.Database.MaxConns,
	}
}

// CORS converts the CORS section for the HTTP server.
func (c *Config) CORS() *server.CORSConfig {
	return &server.CORSConfig{
		Enabled:          c.Server.CORS.Enabled,
		AllowedOrigins:   c.Server.CORS.AllowedOrigins,
		AllowedMethods:   c.Server.CORS.AllowedMethods,
		AllowedHeaders:   c.Server.CORS.AllowedHeaders,
		ExposedHeaders:   c.Server.CORS.ExposedHeaders,
		AllowCredentials: c.Server.CORS.AllowCredentials,
		MaxAge:           c.Server.CORS.MaxAge,
	}
}

// LLMProviderConfig returns the factory configuration for model, falling
// back to llm.model when model is empty.
func (c *Config) LLMProviderConfig(model string) llmfactory.Config {
	if model == "" {
		model = c.LLM.Model
	}
	return llmfactory.Config{
		Provider:           c.LLM.Provider,
		Model:              model,
		APIKey:             c.LLM.APIKey,
		BaseURL:            c.LLM.BaseURL,
		MaxTokens:          c.LLM.MaxTokens,
		Temperature:        c.LLM.Temperature,
		Timeout:            seconds(c.LLM.TimeoutSeconds),
		AWSRegion:          c.LLM.BedrockRegion,
		AWSProfile:         c.LLM.BedrockProfile,
		AWSAccessKeyID:     c.LLM.BedrockAccessKeyID,
		AWSSecretAccessKey: c.LLM.BedrockSecretAccessKey,
		AWSSessionToken:    c.LLM.BedrockSessionToken,
	}
}

// GenerateExampleConfig renders the defaults as YAML. Secrets are omitted.
func GenerateExampleConfig() (string, error) {
	v := viper.New()
	config, err := loadConfig(v, "")
	if err != nil {
		return "", err
	}
	out, err := yaml.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return "# fincoach configuration\n# Secrets belong in the keyring: fincoach config set-key <name>\n" + string(out), nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
