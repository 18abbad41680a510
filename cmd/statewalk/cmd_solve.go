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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSearch/pkg/ux"
	"github.com/AleutianAI/AleutianSearch/services/solver/engine"
	"github.com/AleutianAI/AleutianSearch/services/solver/resultstore"
)

var (
	solveEngine    string
	solveDomain    string
	solveThreads   int
	solveInMB      int
	solveOutMB     int
	solveBlockBits int
	solveWorkdir   string
	solveRecord    bool
	solveQuiet     bool
)

// solveCmd runs a search and prints the solution.
var solveCmd = &cobra.Command{
	Use:   "solve [FILE]",
	Short: "Search an instance for a shortest solution",
	Long: `Run a breadth-first search over the instance's state space and print the
optimal solution, one rendered board per move.

The instance is read from FILE, or from standard input when FILE is omitted.

Examples:
  statewalk solve puzzle.txt
  statewalk solve --engine disk --out-mb 2048 puzzle.txt
  statewalk solve --engine parallel --threads 8 --block-bits 20 < puzzle.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSolve,
}

func init() {
	solveCmd.Flags().StringVar(&solveEngine, "engine", "", "engine (memory, ddd, ddd-undirected, disk, parallel)")
	solveCmd.Flags().StringVar(&solveDomain, "domain", "", "puzzle domain (sokoban, npuzzle, plank)")
	solveCmd.Flags().IntVar(&solveThreads, "threads", 0, "worker threads for the parallel engine")
	solveCmd.Flags().IntVar(&solveInMB, "in-mb", 0, "in-buffer megabytes (also the ddd buffer budget)")
	solveCmd.Flags().IntVar(&solveOutMB, "out-mb", 0, "out-buffer megabytes")
	solveCmd.Flags().IntVar(&solveBlockBits, "block-bits", 0, "visited-bitmap block exponent (0 = one block)")
	solveCmd.Flags().StringVar(&solveWorkdir, "workdir", "", "directory for GEN-DDDD frontier files")
	solveCmd.Flags().BoolVar(&solveRecord, "record", false, "archive the result in the result store")
	solveCmd.Flags().BoolVar(&solveQuiet, "quiet", false, "omit the per-move board renders")
	rootCmd.AddCommand(solveCmd)
}

func applySolveFlags() {
	if solveEngine != "" {
		cfg.Engine = solveEngine
	}
	if solveDomain != "" {
		cfg.Domain = solveDomain
	}
	if solveThreads > 0 {
		cfg.Threads = solveThreads
	}
	if solveInMB > 0 {
		cfg.InBufferMB = solveInMB
	}
	if solveOutMB > 0 {
		cfg.OutBufferMB = solveOutMB
	}
	if solveBlockBits > 0 {
		cfg.BlockBits = solveBlockBits
	}
	if solveWorkdir != "" {
		cfg.Workdir = solveWorkdir
	}
}

func runSolve(cmd *cobra.Command, args []string) error {
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
	if res.Found && res.Solution != nil && !solveQuiet {
		printSolution(p, dom, res.Solution)
	}

	if solveRecord {
		store, err := resultstore.Open(cfg.ArchiveDir)
		if err != nil {
			return err
		}
		defer store.Close()
		rec := resultstore.Record{
			RunID:       res.RunID,
			Engine:      res.Engine,
			Domain:      cfg.Domain,
			Found:       res.Found,
			SolutionLen: res.SolutionLen,
			Total:       res.Total,
			Generations: res.Generations,
			Solution:    resultstore.EncodeSolution(res.Solution),
			SolvedAt:    time.Now().UTC(),
		}
		key := resultstore.InstanceKey(instance)
		if err := store.Put(key, rec); err != nil {
			return err
		}
		p.Muted("archived as %s", key)
	}
	return nil
}
