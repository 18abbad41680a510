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
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSearch/services/solver/codec"
)

const trivialPuzzle = `size 3 3
map
###
@$.
###
`

// blockedGoalPuzzle is unsolvable: the block reaches its destination in one
// push, but that very block then seals the corridor to the player goal.
const blockedGoalPuzzle = `size 6 3
map
######
@$.g##
######
`

func mustLoad(t *testing.T, text string) *Instance {
	t.Helper()
	in, err := Load(strings.NewReader(text), nil)
	require.NoError(t, err)
	return in
}

func TestLoadTrivial(t *testing.T) {
	in := mustLoad(t, trivialPuzzle)
	assert.Equal(t, 1, in.blocks)
	assert.Equal(t, 3, in.floor)
	assert.Equal(t, 2, in.liveFloor)
	// 5 facings * 2 player slots * C(2,1) block layouts
	assert.Equal(t, uint64(20), in.Size())
	assert.Equal(t, 1, in.StateSize())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no map", "size 3 3\n"},
		{"map before size", "map\n###\n"},
		{"two players", "size 4 3\nmap\n####\n@@$.\n####\n"},
		{"no blocks", "size 3 3\nmap\n###\n@  \n###\n"},
		{"mismatched goals", "size 4 3\nmap\n####\n@$..\n####\n"},
		{"illegal char", "size 3 3\nmap\n###\n@$q\n###\n"},
		{"block on dead floor", "size 4 3\nmap\n####\n@$_.\n####\n"},
		{"goal outside map", "size 3 3\ngoal 5 5\nmap\n###\n@$.\n###\n"},
		{"oversized", "size 99 2\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.text), nil)
			assert.ErrorIs(t, err, ErrBadInput)
		})
	}
}

func TestUnknownDirectiveIgnored(t *testing.T) {
	in, err := Load(strings.NewReader("size 3 3\nwibble 1 2\nmap\n###\n@$.\n###\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), in.Size())
}

func TestDeadSearch(t *testing.T) {
	in := mustLoad(t, trivialPuzzle)
	// (1,1) and (2,1) are pull-reachable from the destination; (0,1) is not
	assert.GreaterOrEqual(t, in.liveIdx[1][1], 0)
	assert.GreaterOrEqual(t, in.liveIdx[2][1], 0)
	assert.Equal(t, -1, in.liveIdx[0][1])
}

func TestStartRoundTrip(t *testing.T) {
	for _, text := range []string{trivialPuzzle, blockedGoalPuzzle} {
		in := mustLoad(t, text)
		cfg := in.NewConfig()
		start := in.Start()
		cfg.Decode(start)
		assert.Equal(t, start, append([]byte(nil), cfg.Encode()...))
	}
}

// Without slapping there is no facing-direction layer, so every rank in
// [0, N) must round-trip exactly.
func TestCodecBijectionNoSlap(t *testing.T) {
	in := mustLoad(t, "size 3 3\nskip-slap\nmap\n###\n@$.\n###\n")
	require.Equal(t, uint64(4), in.Size())

	cfg := in.NewConfig()
	buf := make([]byte, in.StateSize())
	for v := uint64(0); v < in.Size(); v++ {
		codec.PutState(buf, v)
		cfg.Decode(buf)
		require.Equal(t, buf, cfg.Encode(), "rank %d", v)
	}
}

// With slapping, decoding a rank whose facing cannot enable a slap
// normalizes to the unset-facing representative on re-encode, and canonical
// ranks must be fixed points.
func TestCodecNormalizationFixedPoints(t *testing.T) {
	in := mustLoad(t, trivialPuzzle)
	cfg := in.NewConfig()
	buf := make([]byte, in.StateSize())
	canon := make([]byte, in.StateSize())
	for v := uint64(0); v < in.Size(); v++ {
		codec.PutState(buf, v)
		cfg.Decode(buf)
		copy(canon, cfg.Encode())
		cfg.Decode(canon)
		require.Equal(t, canon, append([]byte(nil), cfg.Encode()...), "rank %d", v)
	}
}

func TestNeighborsTrivial(t *testing.T) {
	in := mustLoad(t, trivialPuzzle)
	cfg := in.NewConfig()

	var children [][]byte
	wins := 0
	for child := range cfg.Neighbors() {
		if cfg.Won() {
			wins++
		}
		children = append(children, append([]byte(nil), child...))
	}
	// the only legal move is the push east, which solves the puzzle
	require.Len(t, children, 1)
	assert.Equal(t, 1, wins)

	// the configuration was restored
	assert.Equal(t, in.Start(), append([]byte(nil), cfg.Encode()...))
}

func TestNeighborsRestoresOnEarlyStop(t *testing.T) {
	in := mustLoad(t, blockedGoalPuzzle)
	cfg := in.NewConfig()
	start := in.Start()
	for range cfg.Neighbors() {
		break
	}
	assert.Equal(t, start, append([]byte(nil), cfg.Encode()...))
}

func TestWon(t *testing.T) {
	in := mustLoad(t, trivialPuzzle)
	cfg := in.NewConfig().(*Config)
	assert.False(t, cfg.Won())

	// push the block onto the destination by hand
	cfg.grid[0][1] = tileFloor
	cfg.grid[1][1] = tileMan
	cfg.grid[2][1] = tileBlock
	assert.True(t, cfg.Won())
}

func TestPlayerGoalCell(t *testing.T) {
	// the g cell demands the player finish there; here it sits on dead
	// floor behind the destination, so covering the destination seals it
	in := mustLoad(t, blockedGoalPuzzle)
	require.Equal(t, 3, in.goalX)
	require.Equal(t, 1, in.goalY)

	cfg := in.NewConfig().(*Config)
	cfg.grid[0][1] = tileFloor
	cfg.grid[1][1] = tileMan
	cfg.grid[2][1] = tileBlock
	assert.False(t, cfg.Won(), "blocks done but player not on goal")

	cfg.grid[1][1] = tileFloor
	cfg.grid[3][1] = tileMan
	assert.True(t, cfg.Won())
}

func TestDeadlock2x2(t *testing.T) {
	inst := mustLoad(t, `size 6 5
map
######
#    #
# $@ #
# .  #
######
`)
	cfg := inst.NewConfig().(*Config)

	// two blocks against the top wall form a wall/block 2x2 off destination
	cfg.grid[2][2] = tileFloor
	cfg.grid[2][1] = tileBlock
	cfg.grid[3][1] = tileBlock
	cfg.grid[3][2] = tileFloor
	cfg.grid[3][3] = tileMan
	assert.True(t, cfg.deadlocked())

	// a single block against the wall is fine
	cfg.grid[3][1] = tileFloor
	assert.False(t, cfg.deadlocked())
}

const nPatternPuzzle = `size 7 6
map
#######
#@    #
# # $ #
#  $# #
#  .. #
#######
`

func TestDeadlockNPattern(t *testing.T) {
	inst := mustLoad(t, nPatternPuzzle)
	cfg := inst.NewConfig().(*Config)
	// arrange the N: walls at (2,2) and (4,3), blocks at (3,2) and (3,3)
	cfg.grid[4][2] = tileFloor
	cfg.grid[3][2] = tileBlock
	assert.True(t, cfg.deadlocked())
}

func TestDeadlockNPatternSkipped(t *testing.T) {
	inst := mustLoad(t, "size 7 6\nskip-n-deadlock\n"+strings.TrimPrefix(nPatternPuzzle, "size 7 6\n"))
	cfg := inst.NewConfig().(*Config)
	cfg.grid[4][2] = tileFloor
	cfg.grid[3][2] = tileBlock
	assert.False(t, cfg.deadlocked())
}

const corridorPuzzle = `size 9 5
map
#########
#...    #
####$$$ #
#      @#
#########
`

func TestGoalCorridorDetection(t *testing.T) {
	in := mustLoad(t, corridorPuzzle)
	require.True(t, in.hasCorridor)
	assert.Equal(t, 3, in.corridorLen)
	assert.Equal(t, 3, in.corridorX)
	assert.Equal(t, 1, in.corridorY)
	assert.Equal(t, 2, in.corridorDir, "corridor runs westward")
}

func TestGoalCorridorRejection(t *testing.T) {
	in := mustLoad(t, corridorPuzzle)
	cfg := in.NewConfig().(*Config)
	// clear the room blocks, park one halfway into the corridor:
	// the corridor reads empty-block-empty
	cfg.grid[4][2] = tileFloor
	cfg.grid[5][2] = tileFloor
	cfg.grid[6][2] = tileFloor
	cfg.grid[2][1] = tileBlock
	assert.True(t, cfg.deadlocked())

	// fully pushed in is legal
	cfg.grid[2][1] = tileFloor
	cfg.grid[1][1] = tileBlock
	assert.False(t, cfg.deadlocked())
}

func TestGoalCorridorSkipped(t *testing.T) {
	in := mustLoad(t, "size 9 5\nskip-goal-corridor-deadlock\n"+strings.TrimPrefix(corridorPuzzle, "size 9 5\n"))
	assert.False(t, in.hasCorridor)
	cfg := in.NewConfig().(*Config)
	cfg.grid[4][2] = tileFloor
	cfg.grid[5][2] = tileFloor
	cfg.grid[6][2] = tileFloor
	cfg.grid[2][1] = tileBlock
	assert.False(t, cfg.deadlocked())
}

func TestRender(t *testing.T) {
	in := mustLoad(t, trivialPuzzle)
	var buf bytes.Buffer
	in.NewConfig().Render(&buf)
	assert.Equal(t, "###\n@$.\n###\n\n", buf.String())
}

func TestPopupWall(t *testing.T) {
	in := mustLoad(t, `size 6 3
skip-slap
map
######
#@o$.#
######
`)
	require.Len(t, in.popupX, 1)
	cfg := in.NewConfig()

	var children [][]byte
	for child := range cfg.Neighbors() {
		children = append(children, append([]byte(nil), child...))
	}
	// east onto the popup is the only move
	require.Len(t, children, 1)

	// in the successor the player stands on the popped popup
	cfg.Decode(children[0])
	c := cfg.(*Config)
	assert.Equal(t, byte(tileMan), c.grid[2][1])

	// moving on leaves a permanent wall behind
	var onward [][]byte
	for child := range cfg.Neighbors() {
		onward = append(onward, append([]byte(nil), child...))
	}
	require.NotEmpty(t, onward)
	cfg.Decode(onward[0])
	assert.Equal(t, byte(tileWall), c.grid[2][1])
}

func TestForceFloorWalkIntoPush(t *testing.T) {
	// stepping east onto the chain carries the player to the block and the
	// push lands on the destination
	in := mustLoad(t, `size 7 3
skip-slap
map
#######
#@>>$.#
#######
`)
	cfg := in.NewConfig().(*Config)
	var children [][]byte
	wins := 0
	for child := range cfg.Neighbors() {
		if cfg.Won() {
			wins++
		}
		children = append(children, append([]byte(nil), child...))
	}
	require.Len(t, children, 1)
	assert.Equal(t, 1, wins)

	cfg.Decode(children[0])
	assert.Equal(t, byte(tileMan), cfg.grid[4][1])
	assert.Equal(t, byte(tileBlock), cfg.grid[5][1])
}

func TestSlapMove(t *testing.T) {
	in := mustLoad(t, `size 6 6
map
######
#    #
# $  #
# .  #
# @  #
######
`)
	// put the player beside the block, having just stepped north
	c := in.NewConfig().(*Config)
	c.grid[2][4] = tileFloor
	c.grid[1][2] = tileMan
	c.dir = 3

	found := false
	for child := range c.Neighbors() {
		cc := in.NewConfig().(*Config)
		cc.Decode(append([]byte(nil), child...))
		if cc.grid[1][1] == tileMan && cc.grid[3][2] == tileBlock {
			found = true
		}
	}
	assert.True(t, found, "expected a slap successor displacing the block east")
}

func TestSlapDisabledByDirective(t *testing.T) {
	in := mustLoad(t, `size 6 6
skip-slap
map
######
#    #
# $  #
# .  #
# @  #
######
`)
	c := in.NewConfig().(*Config)
	c.grid[2][4] = tileFloor
	c.grid[1][2] = tileMan
	c.dir = 3

	for child := range c.Neighbors() {
		cc := in.NewConfig().(*Config)
		cc.Decode(append([]byte(nil), child...))
		if cc.grid[1][1] == tileMan {
			assert.NotEqual(t, byte(tileBlock), cc.grid[3][2], "slap must be off")
		}
	}
}
