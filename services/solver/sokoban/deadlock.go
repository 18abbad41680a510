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

// deadlocked reports whether the current board contains a pattern from which
// no move sequence can reach the goal. Called on every candidate successor
// before it is emitted.
func (c *Config) deadlocked() bool {
	if c.bad2x2() {
		return true
	}
	if !c.inst.skipN {
		if c.badNPattern() {
			return true
		}
	}
	if !c.inst.skipCorridor && c.inst.hasCorridor {
		if c.badGoalCorridor() {
			return true
		}
	}
	return false
}

// bad2x2 looks for a 2x2 window where every cell is a wall or a block and at
// least one block is off its destination. None of those blocks can ever move
// again.
func (c *Config) bad2x2() bool {
	in := c.inst
	for x := 0; x < in.w-1; x++ {
		for y := 0; y < in.h-1; y++ {
			if c.grid[x][y] != tileBlock && c.grid[x+1][y] != tileBlock &&
				c.grid[x][y+1] != tileBlock && c.grid[x+1][y+1] != tileBlock {
				continue
			}
			if c.wallAt(x, y) && c.wallAt(x+1, y) && c.wallAt(x, y+1) && c.wallAt(x+1, y+1) {
				continue
			}
			bad := 0
			full := true
			for _, p := range [4][2]int{{x, y}, {x + 1, y}, {x, y + 1}, {x + 1, y + 1}} {
				switch {
				case c.wallAt(p[0], p[1]):
				case c.grid[p[0]][p[1]] == tileBlock:
					if in.static[p[0]][p[1]] != cellDest {
						bad++
					}
				default:
					full = false
				}
				if !full {
					break
				}
			}
			if full && bad > 0 {
				return true
			}
		}
	}
	return false
}

// badNPattern looks for the four rotations of the N deadlock: two diagonal
// walls pinning two adjacent blocks. Rejected when either block is off its
// destination. If any pinned cell were a wall the block would already sit on
// dead floor and the state would have been rejected earlier.
func (c *Config) badNPattern() bool {
	in := c.inst
	// horizontal pair: walls at (x,y)/(x+2,y+1) or (x,y+1)/(x+2,y)
	for x := 0; x < in.w-2; x++ {
		for y := 0; y < in.h-1; y++ {
			if c.grid[x+1][y] != tileBlock || c.grid[x+1][y+1] != tileBlock {
				continue
			}
			if !(c.wallAt(x, y) && c.wallAt(x+2, y+1)) && !(c.wallAt(x, y+1) && c.wallAt(x+2, y)) {
				continue
			}
			if in.static[x+1][y] != cellDest || in.static[x+1][y+1] != cellDest {
				return true
			}
		}
	}
	// vertical pair: walls at (x,y)/(x+1,y+2) or (x+1,y)/(x,y+2)
	for x := 0; x < in.w-1; x++ {
		for y := 0; y < in.h-2; y++ {
			if c.grid[x][y+1] != tileBlock || c.grid[x+1][y+1] != tileBlock {
				continue
			}
			if !(c.wallAt(x, y) && c.wallAt(x+1, y+2)) && !(c.wallAt(x+1, y) && c.wallAt(x, y+2)) {
				continue
			}
			if in.static[x][y+1] != cellDest || in.static[x+1][y+1] != cellDest {
				return true
			}
		}
	}
	return false
}

// badGoalCorridor rejects any state where the corridor reads
// empty-block-empty: the player pushed a block halfway in and walked away,
// which makes the innermost destinations unreachable.
func (c *Config) badGoalCorridor() bool {
	in := c.inst
	d := in.corridorDir
	at := func(i int) byte {
		return c.grid[in.corridorX+i*dirX[d]][in.corridorY+i*dirY[d]]
	}
	for i := 0; i < in.corridorLen-2; i++ {
		if at(i) == tileFloor && at(i+1) == tileBlock && at(i+2) == tileFloor {
			return true
		}
	}
	return false
}
