/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"fmt"
	"os"
	"wisgen/internal/config"
	"wisgen/internal/logger"

	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wisgen",
		Short: "Turn newsletter emails into daily insights, trend reports and weekly digests",
		Long: `wisgen pulls newsletters from a mailbox, asks Gemini for the key
insights of each one and aggregates them over time.

Workflows:
  • Daily cycle: pull today's newsletters → insights/daily/<date>.json
  • Trend analysis: all daily insights → insights/trends_analysis_<date>.html
  • Weekly digest: the last 7 days → insights/weekly/weekly_<start>_<end>.html

Examples:
  # Run the daily cycle (schedule this with cron)
  wisgen run

  # Rebuild the digest for a given week
  wisgen weekly --date 2026-10-18

  # Browse the results over HTTP
  wisgen serve`,
		SilenceUsage: true,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.wisgen.yaml)")

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewDailyCmd())
	rootCmd.AddCommand(NewTrendsCmd())
	rootCmd.AddCommand(NewWeeklyCmd())
	rootCmd.AddCommand(NewProcessCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewAuthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Configure(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}

	if cfg.App.ConfigFile != "" {
		logger.Debug("Using config file", "path", cfg.App.ConfigFile)
	}
}
