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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	fcconfig "github.com/teradata-labs/fincoach/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage fincoach configuration",
	Long:  `Manage the configuration file and the secrets kept in the system keyring.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the defaults",
	Long:  `Write fincoach.yaml to $FINCOACH_DATA_DIR (default ~/.fincoach). Secrets are left out.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration (merged from all sources). Secrets are masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key [key-name]",
	Short: "Save a secret to the system keyring",
	Long: `Save a secret to the system keyring (Keychain on macOS, Credential Manager
on Windows, Secret Service on Linux). The value is read from the terminal
without echo, or from stdin when it is not a terminal.

Run 'fincoach config list-keys' to see available key names.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigSetKey,
}

var configGetKeyCmd = &cobra.Command{
	Use:   "get-key [key-name]",
	Short: "Show a masked secret from the system keyring",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGetKey,
}

var configDeleteKeyCmd = &cobra.Command{
	Use:   "delete-key [key-name]",
	Short: "Delete a secret from the system keyring",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigDeleteKey,
}

var configListKeysCmd = &cobra.Command{
	Use:   "list-keys",
	Short: "List available secret keys",
	Args:  cobra.NoArgs,
	RunE:  runConfigListKeys,
}

var configInitForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd, configShowCmd, configSetKeyCmd, configGetKeyCmd, configDeleteKeyCmd, configListKeysCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := fcconfig.DataDir()
	configPath := filepath.Join(configDir, DefaultConfigFileName+".yaml")

	if _, err := os.Stat(configPath); err == nil && !configInitForce {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	content, err := GenerateExampleConfig()
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Config file created: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Save your model API key:")
	fmt.Fprintln(out, "   fincoach config set-key llm_api_key")
	fmt.Fprintln(out, "2. Prepare the database:")
	fmt.Fprintln(out, "   fincoach migrate up && fincoach setup-readonly && fincoach seed")
	fmt.Fprintln(out, "3. Start the server:")
	fmt.Fprintln(out, "   fincoach serve")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Current Configuration:")
	fmt.Fprintln(out, "======================")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Server:")
	fmt.Fprintf(out, "  Address: %s:%d\n", config.Server.Host, config.Server.Port)
	fmt.Fprintf(out, "  CORS origins: %s\n", strings.Join(config.Server.CORS.AllowedOrigins, ", "))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "LLM:")
	fmt.Fprintf(out, "  Provider: %s\n", config.LLM.Provider)
	fmt.Fprintf(out, "  Model: %s\n", config.LLM.Model)
	fmt.Fprintf(out, "  API Key: %s\n", maskSecret(config.LLM.APIKey))
	fmt.Fprintf(out, "  Timeout: %ds\n", config.LLM.TimeoutSeconds)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Agent:")
	fmt.Fprintf(out, "  Max cycles: %d\n", config.Agent.MaxCycles)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Executor:")
	fmt.Fprintf(out, "  Driver: %s\n", config.Executor.Driver)
	fmt.Fprintf(out, "  Timeout: %ds\n", config.Executor.TimeoutSeconds)
	fmt.Fprintf(out, "  Max rows: %d\n", config.Executor.MaxRows)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Database:")
	fmt.Fprintf(out, "  Host: %s:%d/%s\n", config.Database.Host, config.Database.Port, config.Database.Name)
	fmt.Fprintf(out, "  Admin: %s (password %s)\n", config.Database.AdminUser, maskSecret(config.Database.AdminPassword))
	fmt.Fprintf(out, "  Read-only: %s (password %s)\n", config.Database.ReadonlyUser, maskSecret(config.Database.ReadonlyPassword))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Sessions:")
	fmt.Fprintf(out, "  Backend: %s\n", config.Session.Backend)
	if config.Session.Backend == "sqlite" {
		fmt.Fprintf(out, "  Path: %s\n", config.Session.Path)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Insights:")
	fmt.Fprintf(out, "  Enabled: %t\n", config.Insights.Enabled)
	fmt.Fprintf(out, "  Cron: %s\n", orNone(config.Insights.Cron))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Logging:")
	fmt.Fprintf(out, "  Level: %s\n", config.Logging.Level)
	fmt.Fprintf(out, "  Format: %s\n", config.Logging.Format)
	return nil
}

func runConfigSetKey(cmd *cobra.Command, args []string) error {
	keyName := args[0]
	if !slices.Contains(ListAvailableSecretKeys(), keyName) {
		return fmt.Errorf("invalid key name: %s (available: %s)", keyName, strings.Join(ListAvailableSecretKeys(), ", "))
	}

	secret, err := readSecret(cmd, keyName)
	if err != nil {
		return err
	}
	if secret == "" {
		return fmt.Errorf("secret cannot be empty")
	}

	if err := SaveSecretToKeyring(keyName, secret); err != nil {
		return fmt.Errorf("error saving to keyring: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %s to system keyring\n", keyName)
	return nil
}

// readSecret reads without echo from a terminal, otherwise one line from
// the command's input.
func readSecret(cmd *cobra.Command, keyName string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(cmd.OutOrStdout(), "Enter %s (input hidden): ", keyName)
		secretBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("error reading input: %w", err)
		}
		return string(secretBytes), nil
	}
	return readLine(cmd.InOrStdin())
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("error reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runConfigGetKey(cmd *cobra.Command, args []string) error {
	keyName := args[0]
	secret, err := GetSecretFromKeyring(keyName)
	if err != nil {
		return fmt.Errorf("key %s not found in keyring (set it with: fincoach config set-key %s): %w", keyName, keyName, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", keyName, maskSecret(secret))
	return nil
}

func runConfigDeleteKey(cmd *cobra.Command, args []string) error {
	keyName := args[0]
	if err := DeleteSecretFromKeyring(keyName); err != nil {
		return fmt.Errorf("error deleting key: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s from system keyring\n", keyName)
	return nil
}

func runConfigListKeys(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Available secret keys:")
	for _, key := range ListAvailableSecretKeys() {
		status := "not set"
		if _, err := GetSecretFromKeyring(key); err == nil {
			status = "set"
		}
		fmt.Fprintf(out, "  %-28s %s\n", key, status)
	}
	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
