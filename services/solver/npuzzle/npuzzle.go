// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package npuzzle implements the generalized 15-puzzle domain. The codec is
// the lexicographic factorial rank of the full tile permutation; unsolvable
// (odd-parity) inputs are rejected at load. When the input already is the
// goal arrangement the domain runs in exhaust mode and Won never reports
// true.
package npuzzle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianSearch/services/solver/codec"
	"github.com/AleutianAI/AleutianSearch/services/solver/domain"
)

// MaxDim is the largest supported board dimension on either axis.
const MaxDim = 20

var (
	// ErrBadInput indicates a malformed puzzle description.
	ErrBadInput = errors.New("malformed n-puzzle instance")

	// ErrUnsolvable indicates an input with the wrong permutation parity.
	ErrUnsolvable = errors.New("unsolvable n-puzzle input")
)

var (
	dirX = [4]int{1, 0, -1, 0}
	dirY = [4]int{0, 1, 0, -1}
)

// Instance is an immutable n-puzzle instance. It implements domain.Domain.
type Instance struct {
	w, h, cells int
	start       []int // row-major tiles, 0 = blank
	goalMode    bool  // false when the input is the goal (exhaust only)
	fact        []uint64
	size        uint64
	stateLen    int
	sizeBytes   []byte
}

// Load reads an instance: a size directive followed by a map block of tile
// characters (1-9, A-Z, a-z, {NNN} literals, space or 0 for the blank).
func Load(r io.Reader, logger *slog.Logger) (*Instance, error) {
	if logger == nil {
		logger = slog.Default()
	}
	in := &Instance{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "size":
			if _, err := fmt.Sscanf(line, "size %d %d", &in.w, &in.h); err != nil {
				return nil, fmt.Errorf("%w: size directive", ErrBadInput)
			}
			if in.w > MaxDim || in.h > MaxDim {
				return nil, fmt.Errorf("%w: dimensions above %d", ErrBadInput, MaxDim)
			}
		case "map":
			if err := in.readMap(sc); err != nil {
				return nil, err
			}
		default:
			logger.Warn("ignored unknown directive", "directive", fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading instance: %w", err)
	}
	if in.start == nil {
		return nil, fmt.Errorf("%w: no map block", ErrBadInput)
	}
	if err := in.finish(logger); err != nil {
		return nil, err
	}
	return in, nil
}

func (in *Instance) readMap(sc *bufio.Scanner) error {
	if in.w < 2 || in.h < 2 {
		return fmt.Errorf("%w: size must be at least 2 in each dimension", ErrBadInput)
	}
	in.cells = in.w * in.h
	in.start = make([]int, in.cells)
	for y := 0; y < in.h; y++ {
		if !sc.Scan() {
			return fmt.Errorf("%w: map ended unexpectedly", ErrBadInput)
		}
		line := sc.Text()
		k := 0
		for x := 0; x < in.w; x++ {
			if k >= len(line) {
				return fmt.Errorf("%w: short map row", ErrBadInput)
			}
			c := line[k]
			k++
			var val int
			switch {
			case c == '{':
				for k < len(line) && line[k] >= '0' && line[k] <= '9' {
					val = val*10 + int(line[k]-'0')
					k++
				}
				if k >= len(line) || line[k] != '}' {
					return fmt.Errorf("%w: expected } in map", ErrBadInput)
				}
				k++
			case c >= '1' && c <= '9':
				val = int(c - '0')
			case c >= 'A' && c <= 'Z':
				val = int(c-'A') + 10
			case c >= 'a' && c <= 'z':
				val = int(c-'a') + 36
			case c == ' ' || c == '0':
				val = 0
			default:
				return fmt.Errorf("%w: illegal map character %q", ErrBadInput, c)
			}
			in.start[y*in.w+x] = val
		}
	}
	return nil
}

func (in *Instance) finish(logger *slog.Logger) error {
	seen := make([]bool, in.cells)
	for _, v := range in.start {
		if v < 0 || v >= in.cells || seen[v] {
			return fmt.Errorf("%w: tiles must cover 0..%d exactly once", ErrBadInput, in.cells-1)
		}
		seen[v] = true
	}

	exact := uint64(1)
	approx := 1.0
	for i := 2; i <= in.cells; i++ {
		exact *= uint64(i)
		approx *= float64(i)
	}
	if err := codec.VerifySize(exact, approx); err != nil {
		return err
	}
	in.size = exact
	in.stateLen = codec.StateLen(exact - 1)
	in.sizeBytes = make([]byte, in.stateLen)
	codec.PutState(in.sizeBytes, exact-1)
	in.fact = codec.Factorials(in.cells + 1)

	for k, v := range in.start {
		if v != (k+1)%in.cells {
			in.goalMode = true
			break
		}
	}
	if !in.solvable() {
		return ErrUnsolvable
	}

	logger.Info("loaded n-puzzle instance",
		"width", in.w, "height", in.h, "states", in.size,
		"state_bytes", in.stateLen, "exhaust_only", !in.goalMode)
	return nil
}

// solvable checks the permutation parity: solvable iff the permutation
// parity (blank counted as the last tile) plus the blank's Manhattan
// distance to the lower-right corner is even.
func (in *Instance) solvable() bool {
	cab := 0
	perm := make([]int, 0, in.cells)
	for k, v := range in.start {
		if v == 0 {
			x, y := k%in.w, k/in.w
			cab = in.w + in.h - x - y - 2
			perm = append(perm, in.cells-1)
			continue
		}
		perm = append(perm, v-1)
	}
	parity := 0
	for i := range perm {
		if perm[i] < 0 || perm[i] == i {
			continue
		}
		length := -1
		j := perm[i]
		perm[i] = -1
		for j >= 0 {
			next := perm[j]
			perm[j] = -1
			length++
			j = next
		}
		parity += length
	}
	return (cab+parity+1)&1 == 1
}

// StateSize implements domain.Domain.
func (in *Instance) StateSize() int { return in.stateLen }

// DomainSize implements domain.Domain.
func (in *Instance) DomainSize() []byte { return in.sizeBytes }

// Size returns N, the total state count.
func (in *Instance) Size() uint64 { return in.size }

// Start implements domain.Domain.
func (in *Instance) Start() []byte {
	cfg := in.NewConfig()
	out := make([]byte, in.stateLen)
	copy(out, cfg.Encode())
	return out
}

// NewConfig implements domain.Domain.
func (in *Instance) NewConfig() domain.Config {
	c := &Config{
		inst:  in,
		tiles: make([]int, in.cells),
		buf:   make([]byte, in.stateLen),
	}
	copy(c.tiles, in.start)
	return c
}

// Config is one worker's mutable board. It implements domain.Config.
type Config struct {
	inst  *Instance
	tiles []int // row-major, 0 = blank
	buf   []byte
}

// Encode implements domain.Config. Only the O(n^2) rank path is implemented;
// the popcount-accelerated O(n) variant is a future optimization.
func (c *Config) Encode() []byte {
	codec.PutState(c.buf, codec.RankPerm(c.tiles, c.inst.fact))
	return c.buf
}

// Decode implements domain.Config.
func (c *Config) Decode(state []byte) {
	codec.UnrankPerm(codec.GetState(state), c.inst.fact, c.tiles)
}

// Won implements domain.Config: tiles in row-major order with the blank
// last. Always false in exhaust mode.
func (c *Config) Won() bool {
	if !c.inst.goalMode {
		return false
	}
	for k, v := range c.tiles {
		if v != (k+1)%c.inst.cells {
			return false
		}
	}
	return true
}

// Neighbors implements domain.Config: slide each of the up-to-four adjacent
// tiles into the blank.
func (c *Config) Neighbors() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		in := c.inst
		bk := 0
		for k, v := range c.tiles {
			if v == 0 {
				bk = k
			}
		}
		bx, by := bk%in.w, bk/in.w
		for d := 0; d < 4; d++ {
			x2, y2 := bx+dirX[d], by+dirY[d]
			if x2 < 0 || y2 < 0 || x2 >= in.w || y2 >= in.h {
				continue
			}
			k2 := y2*in.w + x2
			c.tiles[bk] = c.tiles[k2]
			c.tiles[k2] = 0
			ok := yield(c.Encode())
			c.tiles[k2] = c.tiles[bk]
			c.tiles[bk] = 0
			if !ok {
				return
			}
		}
	}
}

// Render implements domain.Config.
func (c *Config) Render(w io.Writer) {
	for y := 0; y < c.inst.h; y++ {
		for x := 0; x < c.inst.w; x++ {
			fmt.Fprintf(w, "%3d", c.tiles[y*c.inst.w+x])
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}
