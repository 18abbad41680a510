// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSearch/services/solver/domain"
	"github.com/AleutianAI/AleutianSearch/services/solver/engine"
	"github.com/AleutianAI/AleutianSearch/services/solver/npuzzle"
	"github.com/AleutianAI/AleutianSearch/services/solver/sokoban"
)

const trivialSokoban = `size 3 3
map
###
@$.
###
`

// unsolvable: the pushed block covers the destination but then seals the
// player goal behind it
const sealedGoalSokoban = `size 6 3
map
######
@$.g##
######
`

const corridorSokoban = `size 9 5
map
#########
#...    #
####$$$ #
#      @#
#########
`

func loadSokoban(t *testing.T, text string) domain.Domain {
	t.Helper()
	d, err := sokoban.Load(strings.NewReader(text), nil)
	require.NoError(t, err)
	return d
}

func allEngines(t *testing.T, d domain.Domain) map[string]interface {
	Run(context.Context) (*engine.Result, error)
} {
	t.Helper()
	return map[string]interface {
		Run(context.Context) (*engine.Result, error)
	}{
		"memory": engine.NewMemory(d, engine.Options{}),
		"ddd":    engine.NewDDD(d, engine.Options{InBufMB: 1}),
		"disk":   engine.NewDisk(d, engine.Options{Workdir: t.TempDir(), InBufMB: 1, OutBufMB: 1}),
		"parallel": engine.NewParallel(d, engine.Options{
			Workdir: t.TempDir(), InBufMB: 1, OutBufMB: 1, Threads: 2, BlockBits: 4,
		}),
	}
}

func TestTrivialSokobanAcrossEngines(t *testing.T) {
	for name, eng := range allEngines(t, loadSokoban(t, trivialSokoban)) {
		t.Run(name, func(t *testing.T) {
			res, err := eng.Run(context.Background())
			require.NoError(t, err)
			assert.True(t, res.Found)
			assert.Equal(t, 1, res.SolutionLen)
		})
	}
}

func TestUnsolvableSokobanEngineEquivalence(t *testing.T) {
	totals := map[string]uint64{}
	for name, eng := range allEngines(t, loadSokoban(t, sealedGoalSokoban)) {
		res, err := eng.Run(context.Background())
		require.NoError(t, err, name)
		assert.False(t, res.Found, name)
		totals[name] = res.Total
	}
	require.Equal(t, totals["memory"], totals["ddd"])
	require.Equal(t, totals["memory"], totals["disk"])
	require.Equal(t, totals["memory"], totals["parallel"])
}

func TestCorridorSokobanSolvedByAllEngines(t *testing.T) {
	var lengths []int
	for name, eng := range allEngines(t, loadSokoban(t, corridorSokoban)) {
		res, err := eng.Run(context.Background())
		require.NoError(t, err, name)
		require.True(t, res.Found, name)
		lengths = append(lengths, res.SolutionLen)
	}
	for _, l := range lengths[1:] {
		assert.Equal(t, lengths[0], l, "engines disagree on the optimum")
	}
}

// Disabling the corridor pruning must not change the optimum, only the
// amount of work.
func TestCorridorPruningSoundness(t *testing.T) {
	pruned, err := engine.NewMemory(loadSokoban(t, corridorSokoban), engine.Options{}).
		Run(context.Background())
	require.NoError(t, err)

	relaxed, err := engine.NewMemory(loadSokoban(t,
		"size 9 5\nskip-goal-corridor-deadlock\n"+strings.TrimPrefix(corridorSokoban, "size 9 5\n")),
		engine.Options{}).Run(context.Background())
	require.NoError(t, err)

	require.True(t, pruned.Found)
	require.True(t, relaxed.Found)
	assert.Equal(t, relaxed.SolutionLen, pruned.SolutionLen)
}

func TestNPuzzleExhaustAcrossEngines(t *testing.T) {
	// the 2x2 puzzle reaches exactly half of the 24 permutations
	load := func() domain.Domain {
		d, err := npuzzle.Load(strings.NewReader("size 2 2\nmap\n12\n3 \n"), nil)
		require.NoError(t, err)
		return d
	}
	for name, eng := range allEngines(t, load()) {
		res, err := eng.Run(context.Background())
		require.NoError(t, err, name)
		assert.False(t, res.Found, name)
		assert.Equal(t, uint64(12), res.Total, name)
	}
}

func TestNPuzzleSolveLength(t *testing.T) {
	d, err := npuzzle.Load(strings.NewReader("size 2 2\nmap\n31\n2 \n"), nil)
	require.NoError(t, err)
	res, err := engine.NewMemory(d, engine.Options{}).Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Found)
	// the 2x2 reachable component is a 12-cycle; these two arrangements sit
	// four rotations apart
	assert.Equal(t, 4, res.SolutionLen)
}

// BFS layering: generation files partition the reachable set; no state
// appears at two depths.
func TestGenerationFilesPartitionStates(t *testing.T) {
	d := loadSokoban(t, sealedGoalSokoban)
	dir := t.TempDir()
	res, err := engine.NewDisk(d, engine.Options{Workdir: dir, InBufMB: 1, OutBufMB: 1}).
		Run(context.Background())
	require.NoError(t, err)

	slen := d.StateSize()
	seen := map[string]int{}
	var total uint64
	for gen := 0; ; gen++ {
		data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("GEN-%04d", gen)))
		if os.IsNotExist(err) {
			break
		}
		require.NoError(t, err)
		require.Zero(t, len(data)%slen, "GEN-%04d not a whole number of states", gen)
		for at := 0; at < len(data); at += slen {
			key := string(data[at : at+slen])
			_, dup := seen[key]
			require.False(t, dup, "state repeated across generations")
			seen[key] = gen
			total++
		}
	}
	assert.Equal(t, res.Total, total)
}

// Parallel result determinism: the multiset of states per generation file
// matches the serial engine for every thread count, byte order aside.
func TestParallelGenerationMultisets(t *testing.T) {
	d := loadSokoban(t, sealedGoalSokoban)
	slen := d.StateSize()

	collect := func(dir string) []map[string]int {
		var gens []map[string]int
		for gen := 0; ; gen++ {
			data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("GEN-%04d", gen)))
			if os.IsNotExist(err) {
				break
			}
			require.NoError(t, err)
			m := map[string]int{}
			for at := 0; at < len(data); at += slen {
				m[string(data[at:at+slen])]++
			}
			gens = append(gens, m)
		}
		return gens
	}

	serialDir := t.TempDir()
	_, err := engine.NewDisk(d, engine.Options{Workdir: serialDir, InBufMB: 1, OutBufMB: 1}).
		Run(context.Background())
	require.NoError(t, err)
	want := collect(serialDir)

	for _, threads := range []int{1, 2, 4, 8} {
		dir := t.TempDir()
		_, err := engine.NewParallel(d, engine.Options{
			Workdir: dir, InBufMB: 1, OutBufMB: 1, Threads: threads, BlockBits: 3,
		}).Run(context.Background())
		require.NoError(t, err, "threads=%d", threads)
		assert.Equal(t, want, collect(dir), "threads=%d", threads)
	}
}
