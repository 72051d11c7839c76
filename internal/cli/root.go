/*
 * Copyright 2022 Michael Graff.
 *
 * Licensed under the Apache License, Version 2.0 (the "License")
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cli implements the jwtkit command line.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/skandragon/jwtkit"
	"github.com/skandragon/jwtkit/internal/settings"
)

var (
	// Global flags
	configFile string
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jwtkit",
		Short: "jwtkit - issue and verify JSON Web Tokens by type",
		Long: `jwtkit issues and verifies JSON Web Tokens using named signing
configurations and token types.

Configuration precedence (highest to lowest):
  1. Command-line flags
  2. Environment variables (JWTKIT_*, with __ separating levels)
  3. Configuration file`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: $JWTKIT_CONFIG)")
	settings.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(NewIssueCmd())
	rootCmd.AddCommand(NewVerifyCmd())
	rootCmd.AddCommand(NewListCmd())
	rootCmd.AddCommand(NewKeygenCmd())
	rootCmd.AddCommand(NewServeCmd())

	return rootCmd
}

// Execute runs the root command.  Rejected tokens and unknown names exit
// with status 2, everything else with status 1.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if jwtkit.IsClientError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type environment struct {
	config   *settings.Config
	logger   *logrus.Logger
	provider *settings.Provider
}

func loadEnvironment(cmd *cobra.Command) (*environment, error) {
	path := configFile
	if path == "" {
		path = os.Getenv(settings.EnvPrefix + "CONFIG")
	}
	if path == "" {
		return nil, errors.New("no configuration file given; use --config or " + settings.EnvPrefix + "CONFIG")
	}

	cfg, err := settings.Load(path, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := settings.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetOutput(cmd.ErrOrStderr())

	return &environment{
		config:   cfg,
		logger:   logger,
		provider: settings.NewProvider(cfg, logger),
	}, nil
}
