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
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianSearch/services/solver/codec"
	"github.com/AleutianAI/AleutianSearch/services/solver/domain"
)

// Parallel is the multithreaded disk engine: T workers expand states while a
// master owns all file I/O and generation rollover. The in-buffer is shared;
// worker t processes every T-th state of each chunk. Visited marking is
// serialized per bitmap block, so the set of states discovered per
// generation matches the single-threaded engine exactly; only the order
// within a generation file is nondeterministic.
type Parallel struct {
	dom  domain.Domain
	opts Options
}

// NewParallel creates the multithreaded disk engine over the given domain.
func NewParallel(d domain.Domain, opts Options) *Parallel {
	return &Parallel{dom: d, opts: opts}
}

// Name implements the engine selection surface.
func (e *Parallel) Name() string { return "parallel" }

// Run performs the search. On a win the current generation is drained to the
// barrier, then the solution is reconstructed single-threaded.
func (e *Parallel) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "engine.Parallel.Run")
	defer span.End()

	slen64, n, err := domainDims(e.dom, 8)
	if err != nil {
		return nil, err
	}
	slen := int64(slen64)
	threads := e.opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	runID, log, _ := newRun(e.Name(), e.opts)
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.Int("threads", threads),
	)
	started := time.Now()

	dir := e.opts.workdir()
	visited := NewBitmap(n, e.opts.BlockBits)
	st := &parState{
		inBuf:  make([]byte, e.opts.inBufBytes()/slen*slen),
		outBuf: make([]byte, e.opts.outBufBytes()/slen*slen),
	}
	bar := newBarrier(threads + 1)
	log.Info("search started", "states", n, "state_bytes", slen,
		"threads", threads, "bitmap_blocks", visited.Blocks(), "workdir", dir)

	res := &Result{RunID: runID, Engine: e.Name()}

	start := e.dom.Start()
	visited.TestSet(codec.GetState(start))
	if err := createGen(dir, 0); err != nil {
		return nil, err
	}
	if err := appendGen(dir, 0, start); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for t := 0; t < threads; t++ {
		t := t
		g.Go(func() error {
			return e.worker(gctx, t, threads, slen, n, visited, st, bar, dir)
		})
	}

	gen := 0
	var masterErr error
	for ; masterErr == nil; gen++ {
		if err := ctx.Err(); err != nil {
			masterErr = err
			break
		}
		size, err := genSize(dir, gen)
		if err != nil {
			masterErr = err
			break
		}
		if err := createGen(dir, gen+1); err != nil {
			masterErr = err
			break
		}
		st.cure = 0
		st.gen = gen
		res.Total += uint64(size / slen)
		log.Info("generation", "generation", gen, "frontier", size/slen, "total", res.Total)
		if size == 0 {
			break
		}
		res.Generations = append(res.Generations, uint64(size/slen))
		e.opts.Metrics.addGeneration(ctx)

		masterErr = readGen(dir, gen, st.inBuf, func(chunk []byte) (bool, error) {
			st.grab = int64(len(chunk))
			bar.Wait() // workers start on the chunk
			bar.Wait() // workers finished the chunk
			return true, nil
		})
		if masterErr != nil {
			break
		}
		if st.cure > 0 {
			if err := appendGen(dir, gen+1, st.outBuf[:st.cure]); err != nil {
				masterErr = err
				break
			}
			st.cure = 0
			e.opts.Metrics.addFlush(ctx)
		}
		if st.found.Load() {
			break
		}
	}

	// release the workers, whether we finished, won, or failed
	st.stop.Store(true)
	bar.Wait()
	if err := g.Wait(); err != nil && masterErr == nil {
		masterErr = err
	}
	if masterErr == nil {
		masterErr = st.err()
	}
	if masterErr != nil {
		return nil, masterErr
	}

	if st.found.Load() {
		res.Found = true
		res.SolutionLen = gen + 1
		cfg := e.dom.NewConfig()
		res.Solution, err = reconstruct(ctx, log, dir, gen, st.winState, st.inBuf, cfg, slen)
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

// parState is the state shared between the master and the workers. The
// master writes inBuf/grab/gen only while every worker waits at the barrier.
type parState struct {
	inBuf []byte
	grab  int64
	gen   int

	flushMu sync.Mutex
	outBuf  []byte
	cure    int64

	winMu    sync.Mutex
	found    atomic.Bool
	winState []byte

	errMu     sync.Mutex
	searchErr error

	stop atomic.Bool
}

func (st *parState) fail(err error) {
	st.errMu.Lock()
	if st.searchErr == nil {
		st.searchErr = err
	}
	st.errMu.Unlock()
}

func (st *parState) err() error {
	st.errMu.Lock()
	defer st.errMu.Unlock()
	return st.searchErr
}

// worker expands its share of each chunk: every threads-th state, offset by
// the worker index.
func (e *Parallel) worker(ctx context.Context, t, threads int, slen int64, n uint64,
	visited *Bitmap, st *parState, bar *barrier, dir string) error {
	cfg := e.dom.NewConfig()
	for {
		bar.Wait()
		if st.stop.Load() {
			return nil
		}
		for at := int64(t) * slen; at < st.grab; at += slen * int64(threads) {
			if st.found.Load() || st.err() != nil {
				break
			}
			cfg.Decode(st.inBuf[at : at+slen])
			e.opts.Metrics.addExpanded(ctx, 1)
			for child := range cfg.Neighbors() {
				if st.found.Load() {
					break
				}
				v := codec.GetState(child)
				if v >= n {
					st.fail(ErrEncodeRange)
					break
				}
				if visited.TestSetLocked(v) {
					e.opts.Metrics.addDuplicates(ctx, 1)
					continue
				}
				e.opts.Metrics.addDiscovered(ctx, 1)

				st.winMu.Lock()
				if st.found.Load() {
					st.winMu.Unlock()
					break
				}
				if cfg.Won() {
					st.winState = cloneState(child)
					st.found.Store(true)
					st.winMu.Unlock()
					break
				}
				st.winMu.Unlock()

				st.flushMu.Lock()
				if st.cure == int64(len(st.outBuf)) {
					if err := appendGen(dir, st.gen+1, st.outBuf[:st.cure]); err != nil {
						st.flushMu.Unlock()
						st.fail(err)
						break
					}
					st.cure = 0
					e.opts.Metrics.addFlush(ctx)
				}
				copy(st.outBuf[st.cure:st.cure+slen], child)
				st.cure += slen
				st.flushMu.Unlock()
			}
		}
		bar.Wait()
	}
}

// barrier is a reusable generation barrier for parties participants, built
// on a condition variable.
type barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	count   int
	round   uint64
}

func newBarrier(parties int) *barrier {
	b := &barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until all parties have arrived, then releases them together.
func (b *barrier) Wait() {
	b.mu.Lock()
	round := b.round
	b.count++
	if b.count == b.parties {
		b.count = 0
		b.round++
		b.cond.Broadcast()
	} else {
		for round == b.round {
			b.cond.Wait()
		}
	}
	b.mu.Unlock()
}
