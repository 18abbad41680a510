// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine provides the breadth-first search engines that drive any
// puzzle domain through the domain interface: in-memory BFS with parent
// links, delayed-duplicate-detection BFS over sorted runs, disk-swapping BFS
// with a partitioned lazy visited bitmap, and its multithreaded variant.
//
// All engines discover the same set of states per generation; they differ in
// how visitedness and frontiers are stored and in whether a solution can be
// reconstructed.
package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianSearch/services/solver/codec"
	"github.com/AleutianAI/AleutianSearch/services/solver/domain"
)

var tracer = otel.Tracer("solver.engine")

// maxStates is the hard ceiling on addressable state counts for the
// bit-per-state engines; two values above it are reserved as sentinels.
const maxStates = 1<<60 - 1

const megabyte = 1 << 20

// Options configures an engine run. Zero values select sensible defaults.
type Options struct {
	// Logger receives structured progress and lifecycle events.
	Logger *slog.Logger

	// Metrics receives counters for expanded and discovered states. Nil
	// disables instrumentation.
	Metrics *Metrics

	// Workdir is where GEN-DDDD frontier files are written. Defaults to the
	// current directory.
	Workdir string

	// InBufMB and OutBufMB are the megabyte budgets for the disk engines'
	// read and write buffers, and InBufMB doubles as the DDD engine's whole
	// buffer budget.
	InBufMB  int
	OutBufMB int

	// BlockBits is the visited-bitmap partition exponent: blocks of
	// 2^BlockBits bits. 0 means a single block.
	BlockBits int

	// Threads is the worker count for the parallel engine.
	Threads int

	// Undirected selects the undirected-graph storage discipline in the DDD
	// engine (the grandparent run is dropped after each merge).
	Undirected bool
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) workdir() string {
	if o.Workdir != "" {
		return o.Workdir
	}
	return "."
}

func (o Options) inBufBytes() int64 {
	if o.InBufMB <= 0 {
		return 50 * megabyte
	}
	return int64(o.InBufMB) * megabyte
}

func (o Options) outBufBytes() int64 {
	if o.OutBufMB <= 0 {
		return 50 * megabyte
	}
	return int64(o.OutBufMB) * megabyte
}

// Result is the outcome of a search.
type Result struct {
	// RunID tags the run's logs and traces.
	RunID string

	// Engine is the engine that produced the result.
	Engine string

	// Found reports whether a winning state was reached.
	Found bool

	// SolutionLen is the number of moves to the winning state when Found.
	SolutionLen int

	// Solution holds the encoded states from start to win inclusive, when
	// the engine supports reconstruction (nil otherwise, even if Found).
	Solution [][]byte

	// Total is the number of reachable states discovered.
	Total uint64

	// Generations holds the state count per BFS depth, when tracked.
	Generations []uint64

	// Elapsed is the wall-clock search duration.
	Elapsed time.Duration
}

// newRun allocates the shared per-run bookkeeping.
func newRun(name string, o Options) (string, *slog.Logger, *rate.Limiter) {
	id := uuid.NewString()
	log := o.logger().With("engine", name, "run_id", id)
	// progress lines are informational; cap them rather than the work
	return id, log, rate.NewLimiter(rate.Every(2*time.Second), 1)
}

// domainDims validates the domain against an engine's addressing limits and
// returns (stateLen, N).
func domainDims(d domain.Domain, maxLen int) (int, uint64, error) {
	slen := d.StateSize()
	if slen > maxLen {
		return 0, 0, ErrStateTooWide
	}
	n := codec.GetState(d.DomainSize()) + 1
	if n == 0 || n >= maxStates {
		return 0, 0, ErrStateSpaceTooLarge
	}
	return slen, n, nil
}

// cloneState copies an encoded state out of a volatile buffer.
func cloneState(p []byte) []byte {
	out := make([]byte, len(p))
	copy(out, p)
	return out
}
