// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package plank implements the plank-puzzle domain: stumps connected by
// movable planks over water. The player walks across placed planks, may pick
// up a plank adjacent to a reachable stump when carrying nothing, and may
// drop the carried plank wherever it exactly bridges two stumps.
//
// The map uses a doubled grid: stumps on even coordinates, plank segments on
// the odd cells between them.
//
// State encoding, inner to outer radix: player stump index, then one binary
// layer per occurring plank length over that length's bridge slots plus one
// inventory slot.
package plank

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianSearch/services/solver/codec"
	"github.com/AleutianAI/AleutianSearch/services/solver/domain"
)

// MaxDim is the largest supported (non-doubled) grid dimension.
const MaxDim = 33

// ErrBadInput indicates a malformed puzzle description.
var ErrBadInput = errors.New("malformed plank instance")

var (
	dirX = [4]int{1, 0, -1, 0}
	dirY = [4]int{0, 1, 0, -1}
)

// bridgeSlot is a possible plank placement: the stump it starts from and the
// direction it spans (0 = right, 1 = down).
type bridgeSlot struct {
	x, y, d int
}

// Instance is an immutable plank instance. It implements domain.Domain.
type Instance struct {
	w, h int // non-doubled size

	goalX, goalY int

	stumpX, stumpY []int
	stumpIdx       [][]int // [x][y] -> stump index, -1 elsewhere

	lengths []int                // plank lengths that occur, ascending
	count   map[int]int          // planks per length
	slots   map[int][]bridgeSlot // possible bridges per length

	startGrid [][]byte // doubled grid with the initial plank layout
	startMan  int
	startInv  int

	table     *codec.Table
	size      uint64
	stateLen  int
	sizeBytes []byte
}

// Load reads an instance: a size directive followed by 2h-1 rows of the
// doubled map ('*' stump, 'S' start stump, 'T' target stump, '-' and '|'
// plank segments).
func Load(r io.Reader, logger *slog.Logger) (*Instance, error) {
	if logger == nil {
		logger = slog.Default()
	}
	in := &Instance{goalX: -1, goalY: -1}
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
			if in.w < 1 || in.h < 1 || in.w > MaxDim || in.h > MaxDim {
				return nil, fmt.Errorf("%w: map dimensions must be in [1, %d]", ErrBadInput, MaxDim)
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
	if in.startGrid == nil {
		return nil, fmt.Errorf("%w: no map block", ErrBadInput)
	}
	if err := in.finish(logger); err != nil {
		return nil, err
	}
	return in, nil
}

func (in *Instance) readMap(sc *bufio.Scanner) error {
	if in.w == 0 || in.h == 0 {
		return fmt.Errorf("%w: map before size", ErrBadInput)
	}
	dw, dh := in.w*2-1, in.h*2-1
	in.startGrid = make([][]byte, dw)
	for x := range in.startGrid {
		in.startGrid[x] = make([]byte, dh)
		for y := range in.startGrid[x] {
			in.startGrid[x][y] = ' '
		}
	}
	for y := 0; y < dh; y++ {
		if !sc.Scan() {
			return fmt.Errorf("%w: map ended unexpectedly", ErrBadInput)
		}
		line := sc.Text()
		for x := 0; x < dw && x < len(line); x++ {
			in.startGrid[x][y] = line[x]
		}
	}
	return nil
}

func isStump(c byte) bool  { return c == '*' || c == 'S' || c == 'T' }
func isBridge(c byte) bool { return c == '-' || c == '|' }

func (in *Instance) finish(logger *slog.Logger) error {
	starts, goals := 0, 0
	for x := 0; x < in.w; x++ {
		for y := 0; y < in.h; y++ {
			c := in.startGrid[x*2][y*2]
			if c != ' ' && !isStump(c) && !isBridge(c) {
				return fmt.Errorf("%w: illegal cell %q at stump position (%d,%d)", ErrBadInput, c, x, y)
			}
			switch c {
			case 'S':
				starts++
			case 'T':
				in.goalX, in.goalY = x, y
				goals++
			}
		}
	}
	if starts != 1 {
		return fmt.Errorf("%w: there must be exactly 1 start position", ErrBadInput)
	}
	if goals != 1 {
		return fmt.Errorf("%w: there must be exactly 1 goal", ErrBadInput)
	}

	in.stumpIdx = make([][]int, in.w)
	for x := range in.stumpIdx {
		in.stumpIdx[x] = make([]int, in.h)
		for y := range in.stumpIdx[x] {
			in.stumpIdx[x][y] = -1
		}
	}
	in.count = make(map[int]int)
	for x := 0; x < in.w; x++ {
		for y := 0; y < in.h; y++ {
			if !isStump(in.startGrid[x*2][y*2]) {
				continue
			}
			if in.startGrid[x*2][y*2] == 'S' {
				in.startMan = len(in.stumpX)
			}
			in.startGrid[x*2][y*2] = '*'
			in.stumpIdx[x][y] = len(in.stumpX)
			in.stumpX = append(in.stumpX, x)
			in.stumpY = append(in.stumpY, y)
			if l := in.scanPlank(x, y, 0, '-'); l > 0 {
				in.count[l]++
			}
			if l := in.scanPlank(x, y, 1, '|'); l > 0 {
				in.count[l]++
			}
		}
	}
	if len(in.stumpX) == 0 {
		return fmt.Errorf("%w: no stumps", ErrBadInput)
	}

	// enumerate every slot where a plank could bridge two stumps
	in.slots = make(map[int][]bridgeSlot)
	for x := 0; x < in.w; x++ {
		for y := 0; y < in.h; y++ {
			if !isStump(in.startGrid[x*2][y*2]) {
				continue
			}
			for d := 0; d < 2; d++ {
				if l := in.scanSpan(x, y, d); l > 0 {
					in.slots[l] = append(in.slots[l], bridgeSlot{x, y, d})
				}
			}
		}
	}
	for l, n := range in.count {
		if len(in.slots[l]) < n {
			return fmt.Errorf("%w: %d planks of length %d but only %d slots", ErrBadInput, n, l, len(in.slots[l]))
		}
		in.lengths = append(in.lengths, l)
	}
	sortInts(in.lengths)

	maxSlots := 0
	for _, l := range in.lengths {
		if n := len(in.slots[l]) + 1; n > maxSlots {
			maxSlots = n
		}
	}
	table, err := codec.NewTable(maxSlots + 1)
	if err != nil {
		return err
	}
	in.table = table

	exact := uint64(len(in.stumpX))
	approx := float64(len(in.stumpX))
	for _, l := range in.lengths {
		n := len(in.slots[l]) + 1 // +1 for the inventory slot
		exact *= table.Binomial(n, in.count[l])
		approx *= codec.BinomialFloat(n, in.count[l])
	}
	if err := codec.VerifySize(exact, approx); err != nil {
		return err
	}
	in.size = exact
	in.stateLen = codec.StateLen(exact - 1)
	in.sizeBytes = make([]byte, in.stateLen)
	codec.PutState(in.sizeBytes, exact-1)

	logger.Info("loaded plank instance",
		"width", in.w, "height", in.h, "stumps", len(in.stumpX),
		"plank_lengths", in.lengths, "states", in.size, "state_bytes", in.stateLen)
	return nil
}

// scanPlank measures the plank leaving stump (x,y) in direction d on the
// start grid, 0 when none.
func (in *Instance) scanPlank(x, y, d int, seg byte) int {
	length := 1
	gx, gy := x*2+dirX[d], y*2+dirY[d]
	for gx < in.w*2-1 && gy < in.h*2-1 && in.startGrid[gx][gy] == seg {
		gx += dirX[d]
		gy += dirY[d]
		length++
	}
	return length / 2
}

// scanSpan returns the stump-to-stump distance from (x,y) in direction d, or
// 0 when no stump lies that way.
func (in *Instance) scanSpan(x, y, d int) int {
	length := 1
	gx, gy := (x+dirX[d])*2, (y+dirY[d])*2
	for gx >= 0 && gy >= 0 && gx < in.w*2-1 && gy < in.h*2-1 {
		if isStump(in.startGrid[gx][gy]) {
			return length
		}
		gx += dirX[d] * 2
		gy += dirY[d] * 2
		length++
	}
	return 0
}

func sortInts(a []int) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j] < a[j-1]; j-- {
			a[j], a[j-1] = a[j-1], a[j]
		}
	}
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
		inst: in,
		grid: make([][]byte, in.w*2-1),
		man:  in.startMan,
		inv:  in.startInv,
		buf:  make([]byte, in.stateLen),
	}
	for x := range c.grid {
		c.grid[x] = make([]byte, in.h*2-1)
		copy(c.grid[x], in.startGrid[x])
	}
	return c
}
