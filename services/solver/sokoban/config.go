// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sokoban

import (
	"fmt"
	"io"
	"iter"

	"github.com/AleutianAI/AleutianSearch/services/solver/codec"
)

// Config is one worker's mutable board. It implements domain.Config.
type Config struct {
	inst *Instance
	grid [][]byte // [x][y] dynamic contents
	dir  int      // player facing, 0..3 or dirUnset
	buf  []byte   // encode output, valid until the next call
	bits []byte   // rank/unrank scratch over live floor cells
}

// wallAt reports an acting wall: a static wall or a popped popup.
func (c *Config) wallAt(x, y int) bool {
	return c.inst.static[x][y] == cellWall || c.grid[x][y] == tileWall
}

func (c *Config) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < c.inst.w && y < c.inst.h
}

// Encode implements domain.Config. The returned slice is reused by the next
// Encode on this Config.
func (c *Config) Encode() []byte {
	in := c.inst

	// player position: number of non-wall, non-block, non-force floor cells
	// preceding the player in row-major order
	var v uint64
	mx, my := -1, -1
scan:
	for y := 0; y < in.h; y++ {
		for x := 0; x < in.w; x++ {
			switch {
			case c.grid[x][y] == tileMan:
				mx, my = x, y
				break scan
			case c.grid[x][y] == tileBlock, in.static[x][y] == cellWall, isForce(in.static[x][y]):
			default:
				v++
			}
		}
	}

	if !in.skipSlap {
		c.normalizeDir(mx, my)
	}

	// block placement over live floor cells
	ones := 0
	for k := 0; k < in.liveFloor; k++ {
		if c.grid[in.liveX[k]][in.liveY[k]] == tileBlock {
			c.bits[k] = 1
			ones++
		} else {
			c.bits[k] = 0
		}
	}
	v += in.table.RankBits(c.bits, in.liveFloor-ones, ones) * uint64(in.floor-in.blocks)

	if !in.skipSlap {
		v = v*5 + uint64(c.dir)
	}
	for i := len(in.popupX) - 1; i >= 0; i-- {
		v <<= 1
		if c.grid[in.popupX[i]][in.popupY[i]] != tilePopup {
			v |= 1
		}
	}

	if v >= in.size {
		panic(fmt.Errorf("sokoban: %w: encoded %d, domain size %d", codec.ErrRankRange, v, in.size))
	}
	codec.PutState(c.buf, v)
	return c.buf
}

// normalizeDir collapses the facing direction to unset whenever it cannot
// enable a slap: the cell ahead is a wall, the block ahead cannot be pushed,
// or no perpendicular neighbor holds a slappable block. Keeping the exact
// condition stable pins the reachable state count.
func (c *Config) normalizeDir(mx, my int) {
	if c.dir >= dirUnset {
		return
	}
	in := c.inst
	x2, y2 := mx+dirX[c.dir], my+dirY[c.dir]
	if !c.inBounds(x2, y2) || in.static[x2][y2] == cellWall {
		c.dir = dirUnset
		return
	}
	if c.grid[x2][y2] == tileBlock {
		x3, y3 := x2+dirX[c.dir], y2+dirY[c.dir]
		if !c.inBounds(x3, y3) ||
			(in.static[x3][y3] != cellLive && in.static[x3][y3] != cellDest) ||
			c.grid[x3][y3] == tileBlock {
			c.dir = dirUnset
			return
		}
	}
	for _, dd := range [2]int{(c.dir + 1) & 3, (c.dir + 3) & 3} {
		bx, by := mx+dirX[dd], my+dirY[dd]
		lx, ly := bx+dirX[dd], by+dirY[dd]
		if c.inBounds(lx, ly) && c.grid[bx][by] == tileBlock &&
			c.grid[lx][ly] == tileFloor && slapLandable(in.static[lx][ly]) {
			return
		}
	}
	c.dir = dirUnset
}

func slapLandable(s byte) bool {
	return s != cellDeadAuto && s != cellDeadUser && s != cellWall && !isForce(s)
}

// Decode implements domain.Config.
func (c *Config) Decode(state []byte) {
	in := c.inst
	v := codec.GetState(state)

	for i := 0; i < in.floor; i++ {
		c.grid[in.floorX[i]][in.floorY[i]] = tileFloor
	}
	for i := range in.popupX {
		if v&1 != 0 {
			c.grid[in.popupX[i]][in.popupY[i]] = tileWall
		} else {
			c.grid[in.popupX[i]][in.popupY[i]] = tilePopup
		}
		v >>= 1
	}
	if in.skipSlap {
		c.dir = dirUnset
	} else {
		c.dir = int(v % 5)
		v /= 5
	}
	w := v % uint64(in.floor-in.blocks)
	v /= uint64(in.floor - in.blocks)

	in.table.UnrankBits(v, in.liveFloor-in.blocks, in.blocks, c.bits)
	for k := 0; k < in.liveFloor; k++ {
		if c.bits[k] != 0 {
			c.grid[in.liveX[k]][in.liveY[k]] = tileBlock
		} else {
			c.grid[in.liveX[k]][in.liveY[k]] = tileFloor
		}
	}

	// the player slots into the w-th remaining floor cell, blocks acting as
	// walls; this avoids a live/dead case split
	for y := 0; y < in.h; y++ {
		for x := 0; x < in.w; x++ {
			if in.static[x][y] == cellWall || c.grid[x][y] == tileBlock || isForce(in.static[x][y]) {
				continue
			}
			if w == 0 {
				c.grid[x][y] = tileMan
				return
			}
			w--
		}
	}
}

// Won implements domain.Config: every destination holds a block and, when a
// player goal is declared, the player stands on it.
func (c *Config) Won() bool {
	in := c.inst
	for x := 0; x < in.w; x++ {
		for y := 0; y < in.h; y++ {
			if in.static[x][y] == cellDest && c.grid[x][y] != tileBlock {
				return false
			}
		}
	}
	if in.goalX >= 0 && c.grid[in.goalX][in.goalY] != tileMan {
		return false
	}
	return true
}

// Render implements domain.Config.
func (c *Config) Render(w io.Writer) {
	in := c.inst
	row := make([]byte, in.w+1)
	for y := 0; y < in.h; y++ {
		for x := 0; x < in.w; x++ {
			t := c.grid[x][y]
			s := in.static[x][y]
			switch {
			case t == tileFloor && s == cellDeadUser:
				row[x] = '_'
			case t == tileFloor && s == cellDest:
				row[x] = '.'
			case t == tileFloor && isForce(s):
				row[x] = s
			default:
				row[x] = t
			}
		}
		row[in.w] = '\n'
		w.Write(row)
	}
	io.WriteString(w, "\n")
}

// followForce walks a force-floor chain from (x,y) and returns the exit cell
// and travel direction. ok is false when the chain loops.
func (c *Config) followForce(x, y, d int) (int, int, int, bool) {
	in := c.inst
	steps := 0
	for isForce(in.static[x][y]) {
		switch in.static[x][y] {
		case '<':
			x, d = x-1, 2
		case '>':
			x, d = x+1, 0
		case '^':
			y, d = y-1, 3
		case 'v':
			y, d = y+1, 1
		}
		steps++
		if steps > in.w*in.h {
			return x, y, d, false
		}
	}
	return x, y, d, true
}

// Neighbors implements domain.Config. Successors are yielded encoded; the
// board reflects the yielded successor while the yield function runs and is
// restored before the next candidate.
func (c *Config) Neighbors() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		c.visit(yield)
	}
}

func (c *Config) visit(yield func([]byte) bool) {
	in := c.inst
	cx, cy := -1, -1
	for x := 0; x < in.w && cx < 0; x++ {
		for y := 0; y < in.h; y++ {
			if c.grid[x][y] == tileMan {
				cx, cy = x, y
				break
			}
		}
	}
	oldDir := c.dir
	defer func() { c.dir = oldDir }()

	// emit runs the deadlock filter and yields; returns false to stop the
	// whole enumeration
	emit := func() bool {
		if c.deadlocked() {
			return true
		}
		return yield(c.Encode())
	}

	// slap displaces a block perpendicular to the walk direction; the walk
	// move is already applied when this runs
	slap := func(dd int) bool {
		bx, by := cx+dirX[dd], cy+dirY[dd]
		lx, ly := bx+dirX[dd], by+dirY[dd]
		if !c.inBounds(lx, ly) || c.grid[bx][by] != tileBlock ||
			c.grid[lx][ly] != tileFloor || !slapLandable(in.static[lx][ly]) {
			return true
		}
		c.grid[bx][by] = tileFloor
		c.grid[lx][ly] = tileBlock
		ok := emit()
		c.grid[bx][by] = tileBlock
		c.grid[lx][ly] = tileFloor
		return ok
	}

	for d := 0; d < 4; d++ {
		c.dir = d
		x2, y2 := cx+dirX[d], cy+dirY[d]
		if !c.inBounds(x2, y2) || c.wallAt(x2, y2) {
			continue
		}
		d2 := d
		if isForce(in.static[x2][y2]) {
			var ok bool
			if x2, y2, d2, ok = c.followForce(x2, y2, d); !ok {
				continue
			}
			if !c.inBounds(x2, y2) || c.wallAt(x2, y2) {
				continue
			}
		}
		// the chain brought us back to where we started
		if x2 == cx && y2 == cy {
			continue
		}
		canSlap := !in.skipSlap && oldDir == d && d2 == d

		switch c.grid[x2][y2] {
		case tileFloor, tilePopup:
			bak := c.grid[x2][y2] // stepping on a popup pops it
			c.grid[cx][cy] = tileFloor
			c.grid[x2][y2] = tileMan
			ok := emit()
			if ok && canSlap {
				ok = slap((d+3)&3) && slap((d+1)&3)
			}
			c.grid[cx][cy] = tileMan
			c.grid[x2][y2] = bak
			if !ok {
				return
			}

		case tileBlock:
			x3, y3 := x2+dirX[d2], y2+dirY[d2]
			if !c.pushable(x3, y3) {
				continue
			}
			if isForce(in.static[x3][y3]) {
				var ok bool
				if x3, y3, _, ok = c.followForce(x3, y3, d2); !ok {
					continue
				}
				if !c.pushable(x3, y3) {
					continue
				}
			}
			// the block chain circles onto the pusher's target cell
			if x2 == x3 && y2 == y3 {
				continue
			}
			var ok bool
			if cx == x3 && cy == y3 {
				// block lands on the cell the player vacates
				c.grid[cx][cy] = tileBlock
				c.grid[x2][y2] = tileMan
				ok = emit()
				c.grid[cx][cy] = tileMan
				c.grid[x2][y2] = tileBlock
			} else {
				c.grid[cx][cy] = tileFloor
				c.grid[x2][y2] = tileMan
				c.grid[x3][y3] = tileBlock
				ok = emit()
				if ok && canSlap {
					ok = slap((d+3)&3) && slap((d+1)&3)
				}
				c.grid[cx][cy] = tileMan
				c.grid[x2][y2] = tileBlock
				c.grid[x3][y3] = tileFloor
			}
			if !ok {
				return
			}
		}
	}
}

// pushable reports whether a block may land on (x,y): in bounds, no acting
// wall, not dead floor, and empty.
func (c *Config) pushable(x, y int) bool {
	if !c.inBounds(x, y) || c.wallAt(x, y) {
		return false
	}
	s := c.inst.static[x][y]
	if s == cellDeadUser || s == cellDeadAuto {
		return false
	}
	return c.grid[x][y] == tileFloor
}
