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
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/teradata-labs/fincoach/internal/pgxdriver"
	"github.com/teradata-labs/fincoach/pkg/agent"
	"github.com/teradata-labs/fincoach/pkg/fabric/factory"
	"github.com/teradata-labs/fincoach/pkg/insights"
	llmfactory "github.com/teradata-labs/fincoach/pkg/llm/factory"
	"github.com/teradata-labs/fincoach/pkg/observability"
	"github.com/teradata-labs/fincoach/pkg/server"
	"github.com/teradata-labs/fincoach/pkg/session"
	"github.com/teradata-labs/fincoach/pkg/storage/postgres"
	"github.com/teradata-labs/fincoach/pkg/types"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server and scheduler.
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the coach HTTP server",
	Long: `Start the HTTP API. Chat turns run through the coordinator and its
SQL and analysis specialists against the read-only executor. When the
financial database is reachable, insight generation is served and, with
insights.cron set, scheduled.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newLogger builds the production logger (stack traces only for ERROR
// level). The returned level can be changed at runtime.
func newLogger(cfg LoggingConfig) (*zap.Logger, zap.AtomicLevel, error) {
	zapConfig := zap.NewProductionConfig()

	logLevel := zap.InfoLevel
	if cfg.Level != "" {
		if err := logLevel.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	zapConfig.Level = zap.NewAtomicLevelAt(logLevel)

	if cfg.Format == "console" || cfg.Format == "text" {
		zapConfig.Encoding = "console"
	}
	if cfg.File != "" {
		zapConfig.OutputPaths = []string{cfg.File}
		zapConfig.ErrorOutputPaths = []string{cfg.File}
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, zapConfig.Level, nil
}

func newTracer(cfg ObservabilityConfig, logger *zap.Logger) observability.Tracer {
	if cfg.Enabled {
		return observability.NewLogTracer(logger)
	}
	return observability.NewNoOpTracer()
}

// openAdminPool connects to the financial database as the schema owner.
func openAdminPool(ctx context.Context, cfg *Config, tracer observability.Tracer) (*pgxpool.Pool, error) {
	pool, err := pgxdriver.NewPool(ctx, cfg.AdminPoolConfig(), tracer)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s on %s: %w", cfg.Database.Name, cfg.Database.Host, err)
	}
	return pool, nil
}

func newProvider(ctx context.Context, cfg *Config, model string) (types.LLMProvider, error) {
	provider, err := llmfactory.NewProvider(ctx, cfg.LLMProviderConfig(model))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.LLM.Provider, err)
	}
	return provider, nil
}

// newSessionStore builds the configured conversation store. pool is only
// consulted for the postgres backend. The returned cleanup is never nil.
func newSessionStore(ctx context.Context, cfg *Config, pool *pgxpool.Pool, tracer observability.Tracer) (session.Store, func(), error) {
	switch cfg.Session.Backend {
	case "sqlite":
		store, err := session.NewSQLiteStore(ctx, cfg.Session.Path, cfg.Session.EncryptionKey, tracer)
		if err != nil {
			return nil, func() {}, err
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		if pool == nil {
			return nil, func() {}, errors.New("session.backend postgres requires the database section")
		}
		return postgres.NewConversationStore(pool, tracer), func() {}, nil
	default:
		ttl := time.Duration(cfg.Session.TTLMinutes) * time.Minute
		return session.NewMemoryStore(session.NewLRUPolicy(cfg.Session.MaxEntries, ttl)), func() {}, nil
	}
}

func engineConfig(cfg *Config) *agent.Config {
	engineCfg := agent.DefaultConfig()
	engineCfg.MaxCycles = cfg.Agent.MaxCycles
	engineCfg.LLMTimeout = seconds(cfg.LLM.TimeoutSeconds)
	if cfg.Agent.WorkerMaxSteps > 0 {
		engineCfg.WorkerMaxSteps = cfg.Agent.WorkerMaxSteps
	}
	if cfg.Agent.ContextTokenBudget > 0 {
		engineCfg.ContextTokenBudget = cfg.Agent.ContextTokenBudget
	}
	engineCfg.Retry.MaxRetries = cfg.Agent.MaxRetries
	return engineCfg
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger, level, err := newLogger(config.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	logger.Info("Starting fincoach", zap.String("version", rootCmd.Version))
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Info("Config file loaded", zap.String("path", used))
	} else {
		logger.Info("No config file found, using defaults and environment",
			zap.String("searched", "$FINCOACH_DATA_DIR/fincoach.yaml, ./fincoach.yaml, /etc/fincoach/fincoach.yaml"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer := newTracer(config.Observability, logger)
	defer func() { _ = tracer.Flush(context.Background()) }()

	// Read-only executor shared by both specialists
	backend, err := factory.NewBackend(ctx, factory.Config{
		Name:         "finance",
		Driver:       config.Executor.Driver,
		DSN:          config.ExecutorDSN(),
		QueryTimeout: seconds(config.Executor.TimeoutSeconds),
		MaxRows:      config.Executor.MaxRows,
	})
	if err != nil {
		return fmt.Errorf("failed to open read-only executor: %w", err)
	}
	defer func() { _ = backend.Close() }()
	logger.Info("Read-only executor ready",
		zap.String("driver", config.Executor.Driver),
		zap.Int("max_rows", config.Executor.MaxRows))

	coordinatorLLM, err := newProvider(ctx, config, config.LLM.Model)
	if err != nil {
		return err
	}
	providers := map[string]types.LLMProvider{"coordinator": coordinatorLLM}
	workerLLM := coordinatorLLM
	if config.LLM.WorkerModel != "" && config.LLM.WorkerModel != config.LLM.Model {
		if workerLLM, err = newProvider(ctx, config, config.LLM.WorkerModel); err != nil {
			return err
		}
		providers["worker"] = workerLLM
	}

	// The admin pool backs insights and, optionally, conversations. Insights
	// are disabled rather than fatal when the database is unreachable.
	var pool *pgxpool.Pool
	if config.Session.Backend == "postgres" || config.Insights.Enabled {
		pool, err = openAdminPool(ctx, config, tracer)
		if err != nil {
			if config.Session.Backend == "postgres" {
				return err
			}
			logger.Warn("Financial database unavailable, insights disabled", zap.Error(err))
		} else {
			defer pool.Close()
		}
	}

	store, closeStore, err := newSessionStore(ctx, config, pool, tracer)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	defer closeStore()
	logger.Info("Session store ready", zap.String("backend", config.Session.Backend))

	engine := agent.NewEngine(backend, coordinatorLLM,
		agent.WithConfig(engineConfig(config)),
		agent.WithWorkerLLM(workerLLM),
		agent.WithStore(store),
		agent.WithTracer(tracer),
		agent.WithLogger(logger.Named("engine")),
	)

	var pipeline *insights.Pipeline
	var scheduler *insights.Scheduler
	if pool != nil && config.Insights.Enabled {
		insightLLM := coordinatorLLM
		if config.LLM.InsightsModel != "" && config.LLM.InsightsModel != config.LLM.Model {
			if insightLLM, err = newProvider(ctx, config, config.LLM.InsightsModel); err != nil {
				return err
			}
			providers["insights"] = insightLLM
		}
		finance := postgres.NewFinanceStore(pool, tracer)
		pipeline, err = insights.NewPipeline(insights.Config{
			Metrics: finance,
			Store:   finance,
			LLM:     insightLLM,
			Tracer:  tracer,
			Logger:  logger.Named("insights"),
			Timeout: seconds(config.Insights.TimeoutSeconds),
		})
		if err != nil {
			return fmt.Errorf("failed to create insight pipeline: %w", err)
		}

		if config.Insights.Cron != "" {
			scheduler, err = insights.NewScheduler(insights.SchedulerConfig{
				Cron:      config.Insights.Cron,
				Timezone:  config.Insights.Timezone,
				UserIDs:   config.Insights.UserIDs,
				Users:     finance,
				Generator: pipeline,
				Logger:    logger.Named("scheduler"),
			})
			if err != nil {
				return fmt.Errorf("failed to create insight scheduler: %w", err)
			}
		}
	}

	if config.Server.ValidateProviders {
		if err := server.ValidateProviders(ctx, providers); err != nil {
			return err
		}
	}

	srvCfg := server.Config{
		Addr:          net.JoinHostPort(config.Server.Host, strconv.Itoa(config.Server.Port)),
		Engine:        engine,
		Logger:        logger.Named("http"),
		CORS:          config.CORS(),
		Version:       rootCmd.Version,
		MaxBodyBytes:  config.Server.MaxBodyBytes,
		DefaultUserID: config.Server.DefaultUserID,
		ReadTimeout:   seconds(config.Server.ReadTimeoutSeconds),
		WriteTimeout:  seconds(config.Server.WriteTimeoutSeconds),
	}
	if pipeline != nil {
		srvCfg.Insights = pipeline
	}
	httpSrv, err := server.NewHTTPServer(srvCfg)
	if err != nil {
		return err
	}

	watchConfig(engine, level, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.Start)
	if scheduler != nil {
		scheduler.Start()
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if scheduler != nil {
			if err := scheduler.Stop(shutdownCtx); err != nil {
				logger.Warn("Insight run still in progress at shutdown", zap.Error(err))
			}
		}
		if err := httpSrv.Stop(shutdownCtx); err != nil {
			logger.Warn("Error stopping HTTP server", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

// watchConfig applies cycle, timeout and log level changes from the config
// file to the running server. Other settings need a restart.
func watchConfig(engine reloadTarget, level zap.AtomicLevel, logger *zap.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		reloaded, err := decodeConfig(viper.GetViper())
		if err == nil {
			err = reloaded.Validate()
		}
		if err != nil {
			logger.Warn("Ignoring invalid config change", zap.String("file", e.Name), zap.Error(err))
			return
		}
		applyReload(engine, level, reloaded)
		logger.Info("Config reloaded",
			zap.String("file", e.Name),
			zap.Int("max_cycles", reloaded.Agent.MaxCycles),
			zap.Int("llm_timeout_seconds", reloaded.LLM.TimeoutSeconds),
			zap.String("log_level", reloaded.Logging.Level))
	})
	viper.WatchConfig()
}

// reloadTarget is the part of the engine a config reload touches.
type reloadTarget interface {
	SetMaxCycles(n int)
	SetLLMTimeout(d time.Duration)
}

func applyReload(engine reloadTarget, level zap.AtomicLevel, cfg *Config) {
	engine.SetMaxCycles(cfg.Agent.MaxCycles)
	engine.SetLLMTimeout(seconds(cfg.LLM.TimeoutSeconds))
	if parsed, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
		level.SetLevel(parsed)
	}
}
