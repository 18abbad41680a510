// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSearch/pkg/logging"
	"github.com/AleutianAI/AleutianSearch/services/solver/config"
	"github.com/AleutianAI/AleutianSearch/services/solver/telemetry"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

var (
	flagConfig      string
	flagLogLevel    string
	flagLogFile     string
	flagMetricsAddr string
	flagTraces      bool

	cfg               config.Config
	appLogger         *logging.Logger
	telemetryShutdown func(context.Context) error
)

// rootCmd is the statewalk entry point.
var rootCmd = &cobra.Command{
	Use:   "statewalk",
	Short: "Exhaustive state-space search for enumerable puzzles",
	Long: `statewalk runs breadth-first search over the complete state space of a
puzzle instance, using a perfect-hash state encoding to store visitedness as
one bit per state.

Engines:
  memory    - in-memory BFS with parent links (needs ~16*N bytes of RAM)
  ddd       - delayed duplicate detection over sorted runs (no bitmap)
  disk      - N-bit visited bitmap in RAM, frontiers on disk (GEN-DDDD files)
  parallel  - multithreaded disk engine

Domains: sokoban (with slapping, popup walls and force floors), npuzzle,
plank.

Puzzle instances are read from a file argument or standard input in the
line-oriented text format; see the package documentation for the map
characters.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "statewalk.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "also write JSON logs to this file")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Prometheus /metrics listen address")
	rootCmd.PersistentFlags().BoolVar(&flagTraces, "trace", false, "emit spans to stdout")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig, true)
		if err != nil {
			return err
		}
		if flagLogLevel != "" {
			cfg.LogLevel = flagLogLevel
		}
		if flagMetricsAddr != "" {
			cfg.MetricsAddr = flagMetricsAddr
		}
		if flagLogFile != "" {
			cfg.LogFile = flagLogFile
		}
		appLogger, err = logging.New(logging.Config{
			Level:    logging.ParseLevel(cfg.LogLevel),
			FilePath: cfg.LogFile,
		})
		if err != nil {
			return err
		}
		appLogger.Install()

		tcfg := telemetry.DefaultConfig()
		tcfg.MetricsAddr = cfg.MetricsAddr
		if flagTraces {
			tcfg.TraceExporter = "stdout"
		}
		telemetryShutdown, err = telemetry.Init(cmd.Context(), tcfg)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		return nil
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if telemetryShutdown != nil {
			if err := telemetryShutdown(cmd.Context()); err != nil {
				return err
			}
		}
		if appLogger != nil {
			return appLogger.Close()
		}
		return nil
	}
}
