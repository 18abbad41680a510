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
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSearch/pkg/ux"
	"github.com/AleutianAI/AleutianSearch/services/solver/engine"
)

// countCmd exhausts the reachable component and reports its size.
var countCmd = &cobra.Command{
	Use:   "count [FILE]",
	Short: "Count the reachable states per BFS generation",
	Long: `Search the instance's reachable component and print the number of states
visited, plus the state count at every BFS depth for the engines that track
generations (ddd, disk, parallel; the memory engine reports only the total).
The search stops at the first winning state, so the component is exhausted
only when no winning state is reachable. Useful for comparing engines and for
sizing memory budgets before a real solve.

Examples:
  statewalk count puzzle.txt
  statewalk count --engine ddd --in-mb 500 puzzle.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCount,
}

func init() {
	countCmd.Flags().StringVar(&solveEngine, "engine", "", "engine (memory, ddd, ddd-undirected, disk, parallel)")
	countCmd.Flags().StringVar(&solveDomain, "domain", "", "puzzle domain (sokoban, npuzzle, plank)")
	countCmd.Flags().IntVar(&solveThreads, "threads", 0, "worker threads for the parallel engine")
	countCmd.Flags().IntVar(&solveInMB, "in-mb", 0, "in-buffer megabytes (also the ddd buffer budget)")
	countCmd.Flags().IntVar(&solveOutMB, "out-mb", 0, "out-buffer megabytes")
	countCmd.Flags().IntVar(&solveBlockBits, "block-bits", 0, "visited-bitmap block exponent (0 = one block)")
	countCmd.Flags().StringVar(&solveWorkdir, "workdir", "", "directory for GEN-DDDD frontier files")
	rootCmd.AddCommand(countCmd)
}

func runCount(cmd *cobra.Command, args []string) error {
	applySolveFlags()
	p := ux.NewPrinter(os.Stdout)
	log := slog.Default()

	instance, err := readInstance(args)
	if err != nil {
		return err
	}
	dom, err := loadDomain(cfg.Domain, instance, log)
	if err != nil {
		return err
	}
	metrics, err := engine.NewMetrics()
	if err != nil {
		return err
	}
	eng, err := buildEngine(cfg.Engine, dom, engineOptions(log, metrics))
	if err != nil {
		return err
	}

	res, err := eng.Run(cmd.Context())
	if err != nil {
		return err
	}
	printResult(p, res)
	return nil
}
