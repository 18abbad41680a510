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
	"bytes"
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianSearch/services/solver/codec"
	"github.com/AleutianAI/AleutianSearch/services/solver/domain"
)

// Disk is the disk-swapping BFS engine: an N-bit partitioned visited bitmap
// in memory, frontiers on disk as one GEN-DDDD file per generation, read and
// written strictly linearly. Because no parent links are stored, the
// solution is reconstructed afterwards by a backward search over the
// generation files.
type Disk struct {
	dom  domain.Domain
	opts Options
}

// NewDisk creates a disk-swapping BFS engine over the given domain.
func NewDisk(d domain.Domain, opts Options) *Disk {
	return &Disk{dom: d, opts: opts}
}

// Name implements the engine selection surface.
func (e *Disk) Name() string { return "disk" }

// Run performs the search. GEN files are left in the working directory so a
// finished search can be inspected or re-fed.
func (e *Disk) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "engine.Disk.Run")
	defer span.End()

	slen64, n, err := domainDims(e.dom, 8)
	if err != nil {
		return nil, err
	}
	slen := int64(slen64)
	runID, log, _ := newRun(e.Name(), e.opts)
	span.SetAttributes(attribute.String("run_id", runID))
	started := time.Now()

	dir := e.opts.workdir()
	visited := NewBitmap(n, e.opts.BlockBits)
	inBuf := make([]byte, e.opts.inBufBytes()/slen*slen)
	outBuf := make([]byte, e.opts.outBufBytes()/slen*slen)
	log.Info("search started", "states", n, "state_bytes", slen,
		"bitmap_blocks", visited.Blocks(), "workdir", dir)

	cfg := e.dom.NewConfig()
	res := &Result{RunID: runID, Engine: e.Name()}

	// generation 0 is the start state alone
	start := e.dom.Start()
	visited.TestSet(codec.GetState(start))
	if err := createGen(dir, 0); err != nil {
		return nil, err
	}
	if err := appendGen(dir, 0, start); err != nil {
		return nil, err
	}

	var cure int64 // fill level of outBuf
	flush := func(gen int) error {
		if cure == 0 {
			return nil
		}
		if err := appendGen(dir, gen+1, outBuf[:cure]); err != nil {
			return err
		}
		cure = 0
		e.opts.Metrics.addFlush(ctx)
		return nil
	}

	var winState []byte
	var searchErr error
	gen := 0
	for ; ; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		size, err := genSize(dir, gen)
		if err != nil {
			return nil, err
		}
		if err := createGen(dir, gen+1); err != nil {
			return nil, err
		}
		cure = 0
		res.Total += uint64(size / slen)
		log.Info("generation", "generation", gen, "frontier", size/slen, "total", res.Total)
		if size == 0 {
			break
		}
		res.Generations = append(res.Generations, uint64(size/slen))
		e.opts.Metrics.addGeneration(ctx)

		err = readGen(dir, gen, inBuf, func(chunk []byte) (bool, error) {
			for at := int64(0); at < int64(len(chunk)); at += slen {
				cfg.Decode(chunk[at : at+slen])
				e.opts.Metrics.addExpanded(ctx, 1)
				for child := range cfg.Neighbors() {
					v := codec.GetState(child)
					if v >= n {
						searchErr = ErrEncodeRange
						break
					}
					if visited.TestSet(v) {
						e.opts.Metrics.addDuplicates(ctx, 1)
						continue
					}
					e.opts.Metrics.addDiscovered(ctx, 1)
					if cfg.Won() {
						winState = cloneState(child)
						break
					}
					if cure == int64(len(outBuf)) {
						if err := flush(gen); err != nil {
							searchErr = err
							break
						}
					}
					copy(outBuf[cure:cure+slen], child)
					cure += slen
				}
				if searchErr != nil || winState != nil {
					return false, searchErr
				}
			}
			return true, nil
		})
		if err != nil {
			return nil, err
		}
		if winState != nil {
			// winner found at depth gen+1; reconstruct right away
			break
		}
		if err := flush(gen); err != nil {
			return nil, err
		}
	}

	if winState != nil {
		res.Found = true
		res.SolutionLen = gen + 1
		res.Solution, err = reconstruct(ctx, log, dir, gen, winState, inBuf, cfg, slen)
		if err != nil {
			return nil, err
		}
	}
	res.Elapsed = time.Since(started)
	e.opts.Metrics.recordDuration(ctx, res.Elapsed.Seconds())
	log.Info("search finished", "found", res.Found, "total", res.Total,
		"solution_len", res.SolutionLen, "elapsed", res.Elapsed)
	return res, nil
}

// reconstruct re-reads the generation files in reverse order. In each
// generation the parent is the first state with the current target among its
// successors; duplicates need not be considered, which makes the backward
// pass far cheaper than the forward search.
func reconstruct(ctx context.Context, log *slog.Logger, dir string, gen int, win, inBuf []byte, cfg domain.Config, slen int64) ([][]byte, error) {
	path := [][]byte{win}
	target := win
	for g := gen; g >= 0; g-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var parent []byte
		err := readGen(dir, g, inBuf, func(chunk []byte) (bool, error) {
			for at := int64(0); at < int64(len(chunk)); at += slen {
				state := chunk[at : at+slen]
				cfg.Decode(state)
				found := false
				for child := range cfg.Neighbors() {
					if bytes.Equal(child, target) {
						found = true
						break
					}
				}
				if found {
					parent = cloneState(state)
					return false, nil
				}
			}
			return true, nil
		})
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, ErrEncodeRange
		}
		path = append(path, parent)
		target = parent
	}
	// collected win..start; flip to forward order
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	log.Info("solution reconstructed", "moves", len(path)-1)
	return path, nil
}
