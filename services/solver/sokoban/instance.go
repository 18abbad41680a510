// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sokoban implements the Sokoban puzzle domain with deadlock
// detection, block slapping, popup walls, and force floors.
//
// The static topology (walls, destinations, dead floor, floor numbering, the
// state-count arithmetic) lives in Instance and is immutable after Load. The
// mutable board lives in Config, one per worker.
//
// State encoding, inner to outer radix: one bit per popup wall, then the
// player facing direction (5 values; radix 1 when slapping is disabled), then
// the player position among non-wall non-block floor cells, then the
// multinomial rank of the block placement over live floor cells.
package sokoban

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/AleutianAI/AleutianSearch/services/solver/codec"
	"github.com/AleutianAI/AleutianSearch/services/solver/domain"
)

// MaxDim is the largest supported grid dimension on either axis.
const MaxDim = 33

// Static cell categories. Force-floor cells keep their arrow character.
const (
	cellWall     = '#'
	cellLive     = ' ' // live floor: blocks allowed
	cellDest     = '.' // destination: live floor that must end with a block
	cellDeadUser = '_' // user-marked dead floor (also popup-wall base)
	cellDeadAuto = 'd' // dead floor proven by the pull preanalysis
)

// Dynamic cell contents on the Config board.
const (
	tileFloor = ' '
	tileWall  = '#' // static wall, or a popup wall that has popped
	tileBlock = '$'
	tileMan   = '@'
	tilePopup = 'o' // popup wall still down (traversable once)
)

// dirUnset is the facing value meaning "no slap-enabling move precedes".
const dirUnset = 4

var (
	dirX = [4]int{1, 0, -1, 0}
	dirY = [4]int{0, 1, 0, -1}
)

// Instance is an immutable Sokoban instance. It implements domain.Domain.
type Instance struct {
	w, h int

	static [][]byte // [x][y] static category
	start  [][]byte // [x][y] initial dynamic board

	goalX, goalY int // player goal, -1 if none

	blocks    int
	floor     int // player-traversable cells (live + dead + popup bases)
	liveFloor int // block-admissible cells

	floorX, floorY []int   // floor id -> coordinates
	liveX, liveY   []int   // live floor id -> coordinates
	liveIdx        [][]int // [x][y] -> live floor id, -1 elsewhere
	popupX, popupY []int   // popup id -> coordinates

	hasForce bool
	hasPopup bool

	skipN        bool
	skipCorridor bool
	skipSlap     bool

	hasCorridor bool
	corridorX   int
	corridorY   int
	corridorDir int
	corridorLen int

	table    *codec.Table
	dirRadix uint64 // 5 with slapping, 1 without
	size     uint64 // N
	stateLen int

	sizeBytes []byte // N-1, little-endian
	log       *slog.Logger
}

// Load reads an instance in the line-oriented text format: directives
// size/goal/skip-n-deadlock/skip-goal-corridor-deadlock/skip-slap followed by
// a map block. Lines starting with '#' and blank lines are ignored; unknown
// directives are logged and skipped. Malformed input fails the load.
func Load(r io.Reader, logger *slog.Logger) (*Instance, error) {
	if logger == nil {
		logger = slog.Default()
	}
	in := &Instance{goalX: -1, goalY: -1, log: logger}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' || line[0] == '\r' {
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
		case "goal":
			if _, err := fmt.Sscanf(line, "goal %d %d", &in.goalX, &in.goalY); err != nil {
				return nil, fmt.Errorf("%w: goal directive", ErrBadInput)
			}
			if in.goalX < 0 || in.goalY < 0 || in.goalX >= in.w || in.goalY >= in.h {
				return nil, fmt.Errorf("%w: player goal outside the map", ErrBadInput)
			}
		case "skip-n-deadlock":
			in.skipN = true
		case "skip-goal-corridor-deadlock":
			in.skipCorridor = true
		case "skip-slap":
			in.skipSlap = true
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
	if in.static == nil {
		return nil, fmt.Errorf("%w: no map block", ErrBadInput)
	}
	if err := in.finish(); err != nil {
		return nil, err
	}
	return in, nil
}

func (in *Instance) readMap(sc *bufio.Scanner) error {
	if in.w == 0 || in.h == 0 {
		return fmt.Errorf("%w: map before size", ErrBadInput)
	}
	in.static = newGrid(in.w, in.h, 0)
	in.start = newGrid(in.w, in.h, 0)
	for y := 0; y < in.h; y++ {
		if !sc.Scan() {
			return fmt.Errorf("%w: map ended unexpectedly", ErrBadInput)
		}
		line := sc.Text()
		for x := 0; x < in.w; x++ {
			var c byte = ' '
			if x < len(line) {
				c = line[x]
			}
			var s, t byte
			switch c {
			case '#':
				s, t = cellWall, tileWall
			case ' ':
				s, t = cellDeadAuto, tileFloor // live/dead decided by preanalysis
			case '.':
				s, t = cellDest, tileFloor
			case '$':
				s, t = cellDeadAuto, tileBlock
			case '_':
				s, t = cellDeadUser, tileFloor
			case '*':
				s, t = cellDest, tileBlock
			case '@':
				s, t = cellDeadAuto, tileMan
			case '+':
				s, t = cellDest, tileMan
			case '=':
				s, t = cellDeadUser, tileMan
			case 'g':
				s, t = cellDeadAuto, tileFloor
				in.goalX, in.goalY = x, y
			case 'o':
				s, t = cellDeadUser, tilePopup
				in.hasPopup = true
			case '<', '>', '^', 'v':
				s, t = c, tileFloor
				in.hasForce = true
			default:
				return fmt.Errorf("%w: illegal map character %q at (%d,%d)", ErrBadInput, c, x, y)
			}
			in.static[x][y] = s
			in.start[x][y] = t
		}
	}
	return nil
}

// finish runs the preanalysis and sizes the state space.
func (in *Instance) finish() error {
	if in.hasForce || in.hasPopup {
		// the pull preanalysis models neither force floors nor popup
		// dynamics; treat every floor candidate as live
		for x := 0; x < in.w; x++ {
			for y := 0; y < in.h; y++ {
				if in.static[x][y] == cellDeadAuto {
					in.static[x][y] = cellLive
				}
			}
		}
	} else {
		in.deadSearch()
	}

	in.liveIdx = make([][]int, in.w)
	for x := range in.liveIdx {
		in.liveIdx[x] = make([]int, in.h)
		for y := range in.liveIdx[x] {
			in.liveIdx[x][y] = -1
		}
	}
	men, goals := 0, 0
	for y := 0; y < in.h; y++ {
		for x := 0; x < in.w; x++ {
			s := in.static[x][y]
			if isForce(s) {
				continue
			}
			if s == cellLive || s == cellDest {
				in.liveIdx[x][y] = in.liveFloor
				in.liveX = append(in.liveX, x)
				in.liveY = append(in.liveY, y)
				in.liveFloor++
			}
			if s != cellWall {
				in.floorX = append(in.floorX, x)
				in.floorY = append(in.floorY, y)
				in.floor++
			}
			if in.start[x][y] == tilePopup {
				in.popupX = append(in.popupX, x)
				in.popupY = append(in.popupY, y)
			}
			if s == cellDest {
				goals++
			}
			switch in.start[x][y] {
			case tileMan:
				men++
			case tileBlock:
				in.blocks++
			}
		}
	}
	if men != 1 {
		return fmt.Errorf("%w: map must contain exactly 1 player", ErrBadInput)
	}
	if goals == 0 {
		return fmt.Errorf("%w: map must contain at least 1 destination", ErrBadInput)
	}
	if goals != in.blocks {
		return fmt.Errorf("%w: %d destinations but %d blocks", ErrBadInput, goals, in.blocks)
	}
	if in.liveFloor < in.blocks {
		return fmt.Errorf("%w: only %d live floor cells for %d blocks", ErrBadInput, in.liveFloor, in.blocks)
	}
	for x := 0; x < in.w; x++ {
		for y := 0; y < in.h; y++ {
			if in.start[x][y] == tileBlock && in.liveIdx[x][y] < 0 {
				return fmt.Errorf("%w: block starts on dead floor at (%d,%d)", ErrBadInput, x, y)
			}
		}
	}

	if !in.skipCorridor {
		in.findGoalCorridor()
	}

	table, err := codec.NewTable(in.liveFloor + 1)
	if err != nil {
		return err
	}
	in.table = table

	in.dirRadix = 5
	if in.skipSlap {
		in.dirRadix = 1
	}
	popups := len(in.popupX)
	exact := in.dirRadix * uint64(in.floor-in.blocks) * table.Binomial(in.liveFloor, in.blocks) << uint(popups)
	approx := float64(in.dirRadix) * float64(in.floor-in.blocks) *
		codec.BinomialFloat(in.liveFloor, in.blocks) * math.Pow(2, float64(popups))
	if err := codec.VerifySize(exact, approx); err != nil {
		return err
	}
	in.size = exact
	in.stateLen = codec.StateLen(exact - 1)
	in.sizeBytes = make([]byte, in.stateLen)
	codec.PutState(in.sizeBytes, exact-1)

	in.log.Info("loaded sokoban instance",
		"width", in.w, "height", in.h,
		"blocks", in.blocks, "floor", in.floor, "live_floor", in.liveFloor,
		"popups", popups, "force_floors", in.hasForce,
		"states", in.size, "state_bytes", in.stateLen)
	return nil
}

// deadSearch marks every live floor cell by running an undirected BFS of pull
// moves outward from the destinations. Whatever it cannot reach is dead.
func (in *Instance) deadSearch() {
	type pt struct{ x, y int }
	var queue []pt
	for x := 0; x < in.w; x++ {
		for y := 0; y < in.h; y++ {
			if in.static[x][y] == cellDest {
				queue = append(queue, pt{x, y})
			}
		}
	}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for d := 0; d < 4; d++ {
			x2, y2 := c.x+dirX[d], c.y+dirY[d]
			x3, y3 := x2+dirX[d], y2+dirY[d]
			if x3 < 0 || y3 < 0 || x3 >= in.w || y3 >= in.h {
				continue
			}
			s2 := in.static[x2][y2]
			// a pull needs the block cell and the cell behind it free
			if s2 == cellDeadUser || s2 == cellWall || s2 == cellDest || in.static[x3][y3] == cellWall {
				continue
			}
			if s2 == cellLive {
				continue
			}
			in.static[x2][y2] = cellLive
			queue = append(queue, pt{x2, y2})
		}
	}
}

// findGoalCorridor locates the first dead-end run of >=3 destinations with
// open floor behind it and walls on all other sides. Out-of-bounds counts as
// wall.
func (in *Instance) findGoalCorridor() {
	wallAt := func(x, y int) bool {
		return x < 0 || y < 0 || x >= in.w || y >= in.h || in.static[x][y] == cellWall
	}
	for x := 0; x < in.w; x++ {
		for y := 0; y < in.h; y++ {
			if in.static[x][y] != cellDest {
				continue
			}
		dirs:
			for d := 0; d < 4; d++ {
				bx, by := x+dirX[d^2], y+dirY[d^2]
				if bx < 0 || by < 0 || bx >= in.w || by >= in.h || in.static[bx][by] != cellLive {
					continue
				}
				length := 1
				x2, y2 := x, y
				dl, dr := (d+1)&3, (d+3)&3
				for {
					if !wallAt(x2+dirX[dl], y2+dirY[dl]) || !wallAt(x2+dirX[dr], y2+dirY[dr]) {
						continue dirs
					}
					x2 += dirX[d]
					y2 += dirY[d]
					if wallAt(x2, y2) {
						break
					}
					if in.static[x2][y2] == cellDest {
						length++
						continue
					}
					continue dirs
				}
				if length < 3 {
					continue
				}
				in.hasCorridor = true
				in.corridorLen = length
				in.corridorX = x
				in.corridorY = y
				in.corridorDir = d
				return
			}
		}
	}
}

// StateSize implements domain.Domain.
func (in *Instance) StateSize() int { return in.stateLen }

// DomainSize implements domain.Domain. It returns N-1 little-endian.
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
		grid: newGrid(in.w, in.h, 0),
		dir:  dirUnset,
		buf:  make([]byte, in.stateLen),
		bits: make([]byte, in.liveFloor),
	}
	for x := 0; x < in.w; x++ {
		copy(c.grid[x], in.start[x])
	}
	return c
}

func isForce(s byte) bool {
	return s == '<' || s == '>' || s == '^' || s == 'v'
}

func newGrid(w, h int, fill byte) [][]byte {
	g := make([][]byte, w)
	for x := range g {
		g[x] = make([]byte, h)
		if fill != 0 {
			for y := range g[x] {
				g[x][y] = fill
			}
		}
	}
	return g
}
