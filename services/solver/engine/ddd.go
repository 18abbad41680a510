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
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianSearch/services/solver/codec"
	"github.com/AleutianAI/AleutianSearch/services/solver/domain"
)

// DDD is the delayed-duplicate-detection BFS engine. States are stored
// explicitly in one contiguous buffer as three sorted runs: everything two or
// more generations back (prevprev), the previous generation (prev), and the
// generation being produced (cur). Duplicates are removed in batches by
// linear scans over the sorted runs, so no bit-per-state array is needed and
// there is no restriction on state width.
//
// Parent links are not stored; the engine reports the solution length but
// not the move sequence. In the undirected discipline prevprev holds only
// the single grandparent generation, which is the only possible duplicate
// source on an undirected graph.
type DDD struct {
	dom  domain.Domain
	opts Options

	buf  []byte
	slen int64

	// byte offsets and record counts of the three runs
	prevprevS, prevprevE int64
	prevS, prevE         int64
	curS, curE           int64
	prevprevN, prevN     int64
	curN                 int64

	curNN  int64 // sorted, duplicate-checked records of cur
	curIn  int64 // records appended since the last repack
	curCS  int64 // offset of the first unsorted record
	repack int
}

// NewDDD creates a delayed-duplicate-detection engine over the given domain.
// The buffer budget comes from Options.InBufMB.
func NewDDD(d domain.Domain, opts Options) *DDD {
	return &DDD{dom: d, opts: opts}
}

// Name implements the engine selection surface.
func (e *DDD) Name() string {
	if e.opts.Undirected {
		return "ddd-undirected"
	}
	return "ddd"
}

// Run performs the search. The search fails with ErrBufferExhausted when the
// runs no longer fit the buffer even after repacking.
func (e *DDD) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "engine.DDD.Run")
	defer span.End()

	slen := int64(e.dom.StateSize())
	if slen > 16 {
		return nil, ErrStateTooWide
	}
	e.slen = slen
	blen := e.opts.inBufBytes() / slen * slen
	return e.runBuffer(ctx, make([]byte, blen))
}

// runBuffer performs the search inside the given buffer.
func (e *DDD) runBuffer(ctx context.Context, buf []byte) (*Result, error) {
	slen := e.slen
	blen := int64(len(buf))
	e.buf = buf

	runID, log, _ := newRun(e.Name(), e.opts)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("run_id", runID))
	started := time.Now()
	log.Info("search started", "buffer_bytes", blen, "state_bytes", slen)

	cfg := e.dom.NewConfig()
	copy(e.buf, e.dom.Start())
	e.prevS, e.prevE, e.prevN = 0, slen, 1
	e.curS, e.curE, e.curCS = slen, slen, slen

	res := &Result{RunID: runID, Engine: e.Name(), Total: 1, Generations: []uint64{1}}
	iter := 0
	for e.prevN > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.repack > 0 {
			log.Info("repacked during generation", "generation", iter, "repacks", e.repack)
			e.repack = 0
		}
		log.Info("generation", "generation", iter, "frontier", e.prevN, "total", res.Total)

		e.curNN, e.curIn = 0, 0
		won := false
		var searchErr error
		for at := e.prevS; at < e.prevE && !won; at += slen {
			cfg.Decode(e.buf[at : at+slen])
			e.opts.Metrics.addExpanded(ctx, 1)
			for child := range cfg.Neighbors() {
				if e.curE == blen {
					if err := e.doRepack(); err != nil {
						searchErr = err
						break
					}
				}
				if cfg.Won() {
					won = true
					break
				}
				copy(e.buf[e.curE:e.curE+slen], child)
				e.curE += slen
				e.curIn++
			}
			if searchErr != nil {
				return nil, searchErr
			}
		}
		if won {
			res.Found = true
			res.SolutionLen = iter + 1
			break
		}

		// sort the whole of cur and drop duplicates inside it, then against
		// the previous runs
		e.curN = e.sortCompress(e.curS, e.curNN+e.curIn)
		e.curE = e.curS + e.curN*slen
		e.curN = e.dedup(e.curS, e.curN)
		e.curE = e.curS + e.curN*slen
		e.opts.Metrics.addDiscovered(ctx, e.curN)
		e.opts.Metrics.addGeneration(ctx)

		if e.opts.Undirected {
			// drop the grandparent run; prev and cur slide to the front
			copy(e.buf[0:], e.buf[e.prevS:e.prevS+(e.prevN+e.curN)*slen])
			e.prevprevN = e.prevN
			e.prevN = e.curN
			e.prevprevS = 0
			e.prevprevE = e.prevprevN * slen
			e.prevS = e.prevprevE
		} else {
			// fold prev into prevprev; the runs are adjacent, so one sort
			// pass merges them in place
			e.prevprevN = e.sortCompress(e.prevprevS, e.prevprevN+e.prevN)
			e.prevprevE = e.prevprevS + e.prevprevN*slen
			e.prevS = e.prevprevE
			e.prevN = e.curN
		}
		e.prevE = e.prevS + e.prevN*slen
		e.curS, e.curE, e.curCS = e.prevE, e.prevE, e.prevE
		res.Total += uint64(e.curN)
		if e.curN > 0 {
			res.Generations = append(res.Generations, uint64(e.curN))
		}
		e.curN = 0
		iter++
	}

	res.Elapsed = time.Since(started)
	e.opts.Metrics.recordDuration(ctx, res.Elapsed.Seconds())
	if !res.Found {
		log.Info("reachable component exhausted", "total", res.Total, "generations", iter)
	} else {
		log.Info("search finished", "found", true, "solution_len", res.SolutionLen, "total", res.Total)
	}
	return res, nil
}

// doRepack reclaims buffer space mid-generation: the unsorted tail of cur is
// sorted, deduplicated against the previous runs, and merged into the sorted
// head.
func (e *DDD) doRepack() error {
	slen := e.slen
	e.curIn = e.sortCompress(e.curCS, e.curIn)
	e.curIn = e.dedup(e.curCS, e.curIn)
	if e.repack > 0 {
		e.curNN = e.sortCompress(e.curS, e.curNN+e.curIn)
	} else {
		e.curNN = e.curIn
	}
	e.curIn = 0
	e.curE = e.curS + e.curNN*slen
	e.curCS = e.curE
	e.repack++
	if e.curE+slen > int64(len(e.buf)) {
		return ErrBufferExhausted
	}
	return nil
}

// sortCompress sorts n records starting at byte offset s and removes
// in-run duplicates. Returns the surviving record count.
func (e *DDD) sortCompress(s, n int64) int64 {
	if n < 1 {
		return 0
	}
	slen := e.slen
	sort.Sort(&recordRun{buf: e.buf[s : s+n*slen], slen: int(slen), tmp: make([]byte, slen)})
	var j int64 = 1
	p := s
	jp := s + slen
	for i, ip := int64(1), s+slen; i < n; i, ip = i+1, ip+slen {
		if codec.CompareStates(e.buf[p:p+slen], e.buf[ip:ip+slen]) != 0 {
			if i != j {
				copy(e.buf[jp:jp+slen], e.buf[ip:ip+slen])
			}
			j++
			p = jp
			jp += slen
		}
	}
	return j
}

// dedup removes, from the sorted run of n records at byte offset s, every
// record present in prevprev or prev. Returns the surviving record count.
func (e *DDD) dedup(s, n int64) int64 {
	slen := e.slen
	ppAt, ppOff := int64(0), e.prevprevS
	pAt, pOff := int64(0), e.prevS
	var kept int64
	to := s
	cur := s
	for i := int64(0); i < n; i, cur = i+1, cur+slen {
		rec := e.buf[cur : cur+slen]
		for ppAt < e.prevprevN && codec.CompareStates(e.buf[ppOff:ppOff+slen], rec) < 0 {
			ppAt++
			ppOff += slen
		}
		for pAt < e.prevN && codec.CompareStates(e.buf[pOff:pOff+slen], rec) < 0 {
			pAt++
			pOff += slen
		}
		if ppAt < e.prevprevN && codec.CompareStates(e.buf[ppOff:ppOff+slen], rec) == 0 {
			continue
		}
		if pAt < e.prevN && codec.CompareStates(e.buf[pOff:pOff+slen], rec) == 0 {
			continue
		}
		if to != cur {
			copy(e.buf[to:to+slen], rec)
		}
		to += slen
		kept++
	}
	return kept
}

// recordRun sorts fixed-width records in place, least significant byte
// first within a record (so records compare as little-endian values).
type recordRun struct {
	buf  []byte
	slen int
	tmp  []byte
}

func (r *recordRun) Len() int { return len(r.buf) / r.slen }

func (r *recordRun) Less(i, j int) bool {
	return codec.CompareStates(r.buf[i*r.slen:(i+1)*r.slen], r.buf[j*r.slen:(j+1)*r.slen]) < 0
}

func (r *recordRun) Swap(i, j int) {
	a := r.buf[i*r.slen : (i+1)*r.slen]
	b := r.buf[j*r.slen : (j+1)*r.slen]
	copy(r.tmp, a)
	copy(a, b)
	copy(b, r.tmp)
}
