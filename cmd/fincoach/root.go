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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teradata-labs/fincoach/internal/version"
)

var (
	cfgFile string
	config  *Config
)

var rootCmd = &cobra.Command{
	Use:     "fincoach",
	Short:   "Smart Financial Coach - conversational spending analysis",
	Long:    `fincoach answers questions about a user's transactions by delegating to SQL and analysis specialists, and generates periodic spending insights.`,
	Version: version.Get(),
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $FINCOACH_DATA_DIR/fincoach.yaml)")

	// Server flags
	rootCmd.PersistentFlags().Int("port", 8000, "HTTP server port")
	rootCmd.PersistentFlags().String("host", "0.0.0.0", "HTTP server host")

	// LLM flags
	rootCmd.PersistentFlags().String("llm-provider", "gemini", "LLM provider (gemini, anthropic, bedrock, openai)")
	rootCmd.PersistentFlags().String("model", "gemini-2.5-flash", "Model identifier")
	rootCmd.PersistentFlags().String("api-key", "", "LLM API key (or use keyring/env)")
	rootCmd.PersistentFlags().Int("llm-timeout", 60, "Per-call model timeout in seconds")

	// Engine flags
	rootCmd.PersistentFlags().Int("max-cycles", 50, "Maximum delegation cycles per turn")

	// Executor flags
	rootCmd.PersistentFlags().String("executor-driver", "postgres", "Read-only executor driver (postgres, pgx, mysql, sqlite)")
	rootCmd.PersistentFlags().String("executor-dsn", "", "Read-only executor DSN (default: built from database.readonly_*)")

	// Session flags
	rootCmd.PersistentFlags().String("session-backend", "memory", "Conversation store (memory, sqlite, postgres)")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, console)")

	rootCmd.AddCommand(versionCmd)

	_ = viper.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("server.host", rootCmd.PersistentFlags().Lookup("host"))

	_ = viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("model"))
	_ = viper.BindPFlag("llm.api_key", rootCmd.PersistentFlags().Lookup("api-key"))
	_ = viper.BindPFlag("llm.timeout_seconds", rootCmd.PersistentFlags().Lookup("llm-timeout"))

	_ = viper.BindPFlag("agent.max_cycles", rootCmd.PersistentFlags().Lookup("max-cycles"))

	_ = viper.BindPFlag("executor.driver", rootCmd.PersistentFlags().Lookup("executor-driver"))
	_ = viper.BindPFlag("executor.dsn", rootCmd.PersistentFlags().Lookup("executor-dsn"))

	_ = viper.BindPFlag("session.backend", rootCmd.PersistentFlags().Lookup("session-backend"))

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fincoach %s\n", version.Get())
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}
