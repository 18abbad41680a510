// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package npuzzle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSearch/services/solver/codec"
)

const startPuzzle = "size 2 2\nmap\n31\n2 \n"

const goalPuzzle = "size 2 2\nmap\n12\n3 \n"

func mustLoad(t *testing.T, text string) *Instance {
	t.Helper()
	in, err := Load(strings.NewReader(text), nil)
	require.NoError(t, err)
	return in
}

func TestLoad(t *testing.T) {
	in := mustLoad(t, startPuzzle)
	assert.Equal(t, uint64(24), in.Size())
	assert.Equal(t, 1, in.StateSize())
	assert.True(t, in.goalMode)
}

func TestLoadGoalIsExhaustMode(t *testing.T) {
	in := mustLoad(t, goalPuzzle)
	assert.False(t, in.goalMode)
	assert.False(t, in.NewConfig().Won(), "exhaust mode never wins")
}

func TestLoadRejectsOddParity(t *testing.T) {
	// swapping two tiles of the goal flips the parity
	_, err := Load(strings.NewReader("size 2 2\nmap\n21\n3 \n"), nil)
	assert.ErrorIs(t, err, ErrUnsolvable)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no map", "size 2 2\n"},
		{"too small", "size 1 2\nmap\n1\n \n"},
		{"duplicate tile", "size 2 2\nmap\n11\n2 \n"},
		{"bad literal", "size 2 2\nmap\n{1 \n23\n"},
		{"illegal char", "size 2 2\nmap\n!1\n23\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.text), nil)
			assert.ErrorIs(t, err, ErrBadInput)
		})
	}
}

func TestLiteralTiles(t *testing.T) {
	in := mustLoad(t, "size 2 2\nmap\n{3}{1}\n{2}{0}\n")
	cfg := in.NewConfig().(*Config)
	assert.Equal(t, []int{3, 1, 2, 0}, cfg.tiles)
}

func TestCodecBijectionFullSweep(t *testing.T) {
	in := mustLoad(t, startPuzzle)
	cfg := in.NewConfig()
	buf := make([]byte, in.StateSize())
	for v := uint64(0); v < in.Size(); v++ {
		codec.PutState(buf, v)
		cfg.Decode(buf)
		require.Equal(t, buf, cfg.Encode(), "rank %d", v)
	}
}

func TestNeighbors(t *testing.T) {
	in := mustLoad(t, startPuzzle)
	cfg := in.NewConfig()

	var children [][]byte
	for child := range cfg.Neighbors() {
		children = append(children, append([]byte(nil), child...))
	}
	// the blank sits in a corner: two slides
	require.Len(t, children, 2)

	// restored afterwards
	assert.Equal(t, in.Start(), append([]byte(nil), cfg.Encode()...))
}

func TestWon(t *testing.T) {
	in := mustLoad(t, startPuzzle)
	cfg := in.NewConfig().(*Config)
	assert.False(t, cfg.Won())
	copy(cfg.tiles, []int{1, 2, 3, 0})
	assert.True(t, cfg.Won())
}
