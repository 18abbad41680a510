// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plank

import (
	"fmt"
	"io"
	"iter"

	"github.com/AleutianAI/AleutianSearch/services/solver/codec"
)

// Config is one worker's mutable state. It implements domain.Config.
type Config struct {
	inst *Instance
	grid [][]byte // doubled grid
	man  int      // player stump index
	inv  int      // length of the carried plank, 0 for none
	buf  []byte
	bits []byte // rank/unrank scratch
}

// Encode implements domain.Config.
func (c *Config) Encode() []byte {
	in := c.inst
	var v uint64
	for _, l := range in.lengths {
		slots := in.slots[l]
		ones := 0
		c.bits = c.bits[:0]
		for _, s := range slots {
			if isBridge(c.grid[s.x*2+dirX[s.d]][s.y*2+dirY[s.d]]) {
				c.bits = append(c.bits, 1)
				ones++
			} else {
				c.bits = append(c.bits, 0)
			}
		}
		if l == c.inv {
			c.bits = append(c.bits, 1)
			ones++
		} else {
			c.bits = append(c.bits, 0)
		}
		n := len(c.bits)
		v *= in.table.Binomial(n, ones)
		v += in.table.RankBits(c.bits, n-ones, ones)
	}
	v = v*uint64(len(in.stumpX)) + uint64(c.man)
	if v >= in.size {
		panic(fmt.Errorf("plank: %w: encoded %d, domain size %d", codec.ErrRankRange, v, in.size))
	}
	codec.PutState(c.buf, v)
	return c.buf
}

// Decode implements domain.Config.
func (c *Config) Decode(state []byte) {
	in := c.inst
	v := codec.GetState(state)
	c.inv = 0
	for x := range c.grid {
		for y := range c.grid[x] {
			if isBridge(c.grid[x][y]) {
				c.grid[x][y] = ' '
			}
		}
	}
	c.man = int(v % uint64(len(in.stumpX)))
	v /= uint64(len(in.stumpX))
	for i := len(in.lengths) - 1; i >= 0; i-- {
		l := in.lengths[i]
		slots := in.slots[l]
		n := len(slots) + 1
		ones := in.count[l]
		c.bits = c.bits[:0]
		for len(c.bits) < n {
			c.bits = append(c.bits, 0)
		}
		in.table.UnrankBits(v%in.table.Binomial(n, ones), n-ones, ones, c.bits)
		v /= in.table.Binomial(n, ones)
		for j, s := range slots {
			if c.bits[j] != 0 {
				c.drawBridge(s.x, s.y, s.d)
			}
		}
		if c.bits[n-1] != 0 {
			c.inv = l
		}
	}
}

// drawBridge lays plank segments from stump (x,y) in direction d up to the
// next stump. Returns false if an existing bridge is in the way.
func (c *Config) drawBridge(x, y, d int) bool {
	seg := byte('-')
	if d == 1 {
		seg = '|'
	}
	gx, gy := x*2+dirX[d], y*2+dirY[d]
	for !isStump(c.grid[gx][gy]) {
		if isBridge(c.grid[gx][gy]) {
			return false
		}
		gx += dirX[d]
		gy += dirY[d]
	}
	gx, gy = x*2+dirX[d], y*2+dirY[d]
	for !isStump(c.grid[gx][gy]) {
		c.grid[gx][gy] = seg
		gx += dirX[d]
		gy += dirY[d]
	}
	return true
}

// eraseBridge removes the plank starting at stump (x,y) in direction d.
func (c *Config) eraseBridge(x, y, d int) {
	gx, gy := x*2+dirX[d], y*2+dirY[d]
	for isBridge(c.grid[gx][gy]) {
		c.grid[gx][gy] = ' '
		gx += dirX[d]
		gy += dirY[d]
	}
}

// bridgeSpan returns the stump-to-stump distance from stump (x,y) in
// direction d, or 0 when no stump lies that way.
func (c *Config) bridgeSpan(x, y, d int) int {
	length := 1
	gx, gy := (x+dirX[d])*2, (y+dirY[d])*2
	for gx >= 0 && gy >= 0 && gx < c.inst.w*2-1 && gy < c.inst.h*2-1 {
		if isStump(c.grid[gx][gy]) {
			return length
		}
		gx += dirX[d] * 2
		gy += dirY[d] * 2
		length++
	}
	return 0
}

// Won implements domain.Config: the player stands on the target stump.
func (c *Config) Won() bool {
	return c.inst.goalX == c.inst.stumpX[c.man] && c.inst.goalY == c.inst.stumpY[c.man]
}

// Neighbors implements domain.Config. A BFS over the stumps reachable across
// placed planks enumerates, at every reachable stump, each legal pick-up (when
// carrying nothing) or drop (when carrying a plank). Walking itself emits no
// state; successors carry the player at the stump where the action happened.
func (c *Config) Neighbors() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		c.visit(yield)
	}
}

func (c *Config) visit(yield func([]byte) bool) {
	in := c.inst
	origin := c.man
	defer func() { c.man = origin }()

	visited := make([]bool, len(in.stumpX))
	queue := []int{origin}
	visited[origin] = true
	for len(queue) > 0 {
		c.man = queue[0]
		queue = queue[1:]
		cx, cy := in.stumpX[c.man], in.stumpY[c.man]

		if c.inv != 0 {
			// drop the carried plank wherever it exactly bridges
			for d := 0; d < 4; d++ {
				gx, gy := cx*2+dirX[d], cy*2+dirY[d]
				if gx < 0 || gy < 0 || gx >= in.w*2-1 || gy >= in.h*2-1 {
					continue
				}
				if isBridge(c.grid[gx][gy]) {
					continue
				}
				span := c.bridgeSpan(cx, cy, d)
				if span == 0 || span != c.inv {
					continue
				}
				held := c.inv
				c.inv = 0
				dd, sx, sy := d, cx, cy
				if d >= 2 {
					// canonicalize to the right/down slot form
					dd = d - 2
					sx, sy = cx+dirX[d]*span, cy+dirY[d]*span
				}
				if c.drawBridge(sx, sy, dd) {
					ok := yield(c.Encode())
					c.eraseBridge(sx, sy, dd)
					c.inv = held
					if !ok {
						return
					}
				} else {
					c.inv = held
				}
			}
		} else {
			// pick up any plank whose end touches this stump
			for d := 0; d < 4; d++ {
				gx, gy := cx*2+dirX[d], cy*2+dirY[d]
				if gx < 0 || gy < 0 || gx >= in.w*2-1 || gy >= in.h*2-1 {
					continue
				}
				if !isBridge(c.grid[gx][gy]) {
					continue
				}
				span := c.bridgeSpan(cx, cy, d)
				dd, sx, sy := d, cx, cy
				if d >= 2 {
					dd = d - 2
					sx, sy = cx+dirX[d]*span, cy+dirY[d]*span
				}
				c.eraseBridge(sx, sy, dd)
				c.inv = span
				ok := yield(c.Encode())
				c.inv = 0
				c.drawBridge(sx, sy, dd)
				if !ok {
					return
				}
			}
		}

		// walk across planks to adjacent stumps
		for d := 0; d < 4; d++ {
			gx, gy := cx*2+dirX[d], cy*2+dirY[d]
			if gx < 0 || gy < 0 || gx >= in.w*2-1 || gy >= in.h*2-1 {
				continue
			}
			if !isBridge(c.grid[gx][gy]) {
				continue
			}
			span := c.bridgeSpan(cx, cy, d)
			nx, ny := cx+dirX[d]*span, cy+dirY[d]*span
			next := in.stumpIdx[nx][ny]
			if next < 0 || visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
}

// Render implements domain.Config.
func (c *Config) Render(w io.Writer) {
	in := c.inst
	mx, my := in.stumpX[c.man]*2, in.stumpY[c.man]*2
	row := make([]byte, in.w*2)
	for y := 0; y < in.h*2-1; y++ {
		for x := 0; x < in.w*2-1; x++ {
			if x == mx && y == my {
				row[x] = '@'
			} else {
				row[x] = c.grid[x][y]
			}
		}
		row[in.w*2-1] = '\n'
		w.Write(row)
	}
	if c.inv != 0 {
		fmt.Fprintf(w, "inventory: length %d plank\n\n", c.inv)
	} else {
		io.WriteString(w, "inventory: nothing\n\n")
	}
}
