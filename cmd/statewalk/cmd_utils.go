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
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/AleutianAI/AleutianSearch/pkg/ux"
	"github.com/AleutianAI/AleutianSearch/services/solver/domain"
	"github.com/AleutianAI/AleutianSearch/services/solver/engine"
	"github.com/AleutianAI/AleutianSearch/services/solver/npuzzle"
	"github.com/AleutianAI/AleutianSearch/services/solver/plank"
	"github.com/AleutianAI/AleutianSearch/services/solver/sokoban"
)

// readInstance returns the instance text from the file argument, or from
// standard input when no argument is given.
func readInstance(args []string) ([]byte, error) {
	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("reading instance: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading instance from stdin: %w", err)
	}
	return data, nil
}

// loadDomain parses an instance in the selected puzzle domain.
func loadDomain(name string, instance []byte, log *slog.Logger) (domain.Domain, error) {
	switch name {
	case "sokoban":
		return sokoban.Load(bytes.NewReader(instance), log)
	case "npuzzle":
		return npuzzle.Load(bytes.NewReader(instance), log)
	case "plank":
		return plank.Load(bytes.NewReader(instance), log)
	default:
		return nil, fmt.Errorf("unknown domain %q", name)
	}
}

// runner is the surface shared by all engines.
type runner interface {
	Name() string
	Run(ctx context.Context) (*engine.Result, error)
}

// buildEngine constructs the selected engine over the domain.
func buildEngine(name string, dom domain.Domain, opts engine.Options) (runner, error) {
	switch name {
	case "memory":
		return engine.NewMemory(dom, opts), nil
	case "ddd":
		return engine.NewDDD(dom, opts), nil
	case "ddd-undirected":
		opts.Undirected = true
		return engine.NewDDD(dom, opts), nil
	case "disk":
		return engine.NewDisk(dom, opts), nil
	case "parallel":
		return engine.NewParallel(dom, opts), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}

// engineOptions translates the effective configuration into engine options.
func engineOptions(log *slog.Logger, metrics *engine.Metrics) engine.Options {
	return engine.Options{
		Logger:    log,
		Metrics:   metrics,
		Workdir:   cfg.Workdir,
		InBufMB:   cfg.InBufferMB,
		OutBufMB:  cfg.OutBufferMB,
		BlockBits: cfg.BlockBits,
		Threads:   cfg.Threads,
	}
}

// printSolution renders each step of the solution path.
func printSolution(p *ux.Printer, dom domain.Domain, solution [][]byte) {
	worker := dom.NewConfig()
	for i, state := range solution {
		p.Muted("move %d", i)
		worker.Decode(state)
		worker.Render(p.Writer())
	}
}

// printResult summarizes a finished search.
func printResult(p *ux.Printer, res *engine.Result) {
	if res.Found {
		p.Success("solution found: %d moves", res.SolutionLen)
	} else {
		p.Warn("no solution found")
	}
	p.Info("engine %s visited %d states in %s", res.Engine, res.Total, res.Elapsed)
	if len(res.Generations) > 0 {
		for g, n := range res.Generations {
			p.Muted("generation %d: %d states", g, n)
		}
	}
}
