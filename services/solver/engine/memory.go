// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianSearch/services/solver/codec"
	"github.com/AleutianAI/AleutianSearch/services/solver/domain"
)

// Sentinel parent-link values. They live above maxStates, so no real state
// index collides with them.
const (
	linkRoot      = ^uint64(0)
	linkUnvisited = ^uint64(0) - 1
)

// Memory is the in-memory BFS engine. It stores one parent link per state
// for solution reconstruction and needs roughly 16*N bytes of RAM. Supports
// directed graphs.
type Memory struct {
	dom  domain.Domain
	opts Options
}

// NewMemory creates an in-memory BFS engine over the given domain.
func NewMemory(d domain.Domain, opts Options) *Memory {
	return &Memory{dom: d, opts: opts}
}

// Name implements the engine selection surface.
func (e *Memory) Name() string { return "memory" }

// Run performs the search. It returns a Result with the full solution path
// when a winning state is reached, or with Found false once the reachable
// component is exhausted.
func (e *Memory) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "engine.Memory.Run")
	defer span.End()

	slen, n, err := domainDims(e.dom, 8)
	if err != nil {
		return nil, err
	}
	runID, log, progress := newRun(e.Name(), e.opts)
	span.SetAttributes(attribute.String("run_id", runID))
	started := time.Now()

	prev := make([]uint64, n)
	for i := range prev {
		prev[i] = linkUnvisited
	}
	queue := make([]uint64, n)
	log.Info("search started", "states", n, "state_bytes", slen)

	cfg := e.dom.NewConfig()
	buf := make([]byte, slen)

	start := codec.GetState(e.dom.Start())
	queue[0] = start
	prev[start] = linkRoot
	var qs, qe, total uint64
	qe = 1
	total = 1

	res := &Result{RunID: runID, Engine: e.Name()}
	var searchErr error
	for qs != qe && !res.Found {
		if qs&0xFFF == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		cur := queue[qs%n]
		qs++
		if qs%100000 == 0 && progress.Allow() {
			log.Info("progress", "processed", qs, "queued", qe-qs)
		}
		codec.PutState(buf, cur)
		cfg.Decode(buf)
		e.opts.Metrics.addExpanded(ctx, 1)
		for child := range cfg.Neighbors() {
			next := codec.GetState(child)
			if next >= n {
				searchErr = ErrEncodeRange
				break
			}
			if prev[next] != linkUnvisited {
				e.opts.Metrics.addDuplicates(ctx, 1)
				continue
			}
			prev[next] = cur
			total++
			e.opts.Metrics.addDiscovered(ctx, 1)
			if cfg.Won() {
				res.Found = true
				res.Solution = e.rebuild(prev, next, slen)
				res.SolutionLen = len(res.Solution) - 1
				break
			}
			queue[qe%n] = next
			qe++
			if qe%n == qs%n {
				searchErr = ErrQueueExhausted
				break
			}
		}
		if searchErr != nil {
			return nil, searchErr
		}
	}

	res.Total = total
	res.Elapsed = time.Since(started)
	e.opts.Metrics.recordDuration(ctx, res.Elapsed.Seconds())
	log.Info("search finished", "found", res.Found, "total", total,
		"solution_len", res.SolutionLen, "elapsed", res.Elapsed)
	return res, nil
}

// rebuild follows parent links from the winning state back to the root and
// returns the encoded path in forward order.
func (e *Memory) rebuild(prev []uint64, win uint64, slen int) [][]byte {
	length := 0
	for v := win; v != linkRoot; v = prev[v] {
		length++
	}
	path := make([][]byte, length)
	for v, i := win, length; v != linkRoot; v = prev[v] {
		i--
		path[i] = make([]byte, slen)
		codec.PutState(path[i], v)
	}
	return path
}
