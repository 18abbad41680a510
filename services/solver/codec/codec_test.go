// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableBinomial(t *testing.T) {
	tbl, err := NewTable(30)
	require.NoError(t, err)

	tests := []struct {
		n, k int
		want uint64
	}{
		{0, 0, 1},
		{5, 0, 1},
		{5, 5, 1},
		{5, 2, 10},
		{10, 3, 120},
		{29, 14, 77558760},
		{5, 6, 0},
		{-1, 0, 0},
		{3, -1, 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tbl.Binomial(tc.n, tc.k), "C(%d,%d)", tc.n, tc.k)
	}
}

func TestNewTableTooLarge(t *testing.T) {
	_, err := NewTable(MaxTable + 1)
	assert.ErrorIs(t, err, ErrTableTooLarge)
}

func TestBinomialFloatAgrees(t *testing.T) {
	tbl, err := NewTable(60)
	require.NoError(t, err)
	for n := 0; n < 60; n++ {
		for k := 0; k <= n; k++ {
			exact := tbl.Binomial(n, k)
			approx := BinomialFloat(n, k)
			require.NoError(t, VerifySize(exact, approx), "C(%d,%d)", n, k)
		}
	}
}

func TestVerifySizeRejectsOverflow(t *testing.T) {
	// a wrapped product disagrees wildly with the float estimate
	assert.ErrorIs(t, VerifySize(42, 1e30), ErrStateSpaceTooLarge)
	assert.NoError(t, VerifySize(1000, 1000.5))
}

// enumerate all binary strings with the given number of ones, in rank order.
func allBitStrings(n, ones int) [][]byte {
	var out [][]byte
	var rec func(prefix []byte, zeros, ones int)
	rec = func(prefix []byte, zeros, ones int) {
		if zeros == 0 && ones == 0 {
			out = append(out, append([]byte(nil), prefix...))
			return
		}
		if zeros > 0 {
			rec(append(prefix, 0), zeros-1, ones)
		}
		if ones > 0 {
			rec(append(prefix, 1), zeros, ones-1)
		}
	}
	rec(nil, n-ones, ones)
	return out
}

func TestRankBitsBijection(t *testing.T) {
	tbl, err := NewTable(16)
	require.NoError(t, err)

	for n := 1; n <= 8; n++ {
		for ones := 0; ones <= n; ones++ {
			zeros := n - ones
			seen := make(map[uint64]bool)
			for _, bits := range allBitStrings(n, ones) {
				r := tbl.RankBits(bits, zeros, ones)
				require.Less(t, r, tbl.Binomial(n, ones))
				require.False(t, seen[r], "rank %d repeated for n=%d ones=%d", r, n, ones)
				seen[r] = true

				out := make([]byte, n)
				tbl.UnrankBits(r, zeros, ones, out)
				require.Equal(t, bits, out)
			}
			require.Len(t, seen, int(tbl.Binomial(n, ones)))
		}
	}
}

func TestRankBitsRankOrder(t *testing.T) {
	tbl, err := NewTable(8)
	require.NoError(t, err)

	// with 2 ones in 4 positions, the all-zeros-first string has rank 0
	assert.Equal(t, uint64(0), tbl.RankBits([]byte{0, 0, 1, 1}, 2, 2))
	assert.Equal(t, uint64(5), tbl.RankBits([]byte{1, 1, 0, 0}, 2, 2))
}

func TestRankPermBijection(t *testing.T) {
	fact := Factorials(8)
	var perms [][]int
	var rec func(rest, prefix []int)
	rec = func(rest, prefix []int) {
		if len(rest) == 0 {
			perms = append(perms, append([]int(nil), prefix...))
			return
		}
		for i, v := range rest {
			next := append(append([]int(nil), rest[:i]...), rest[i+1:]...)
			rec(next, append(prefix, v))
		}
	}
	rec([]int{0, 1, 2, 3}, nil)
	require.Len(t, perms, 24)

	seen := make(map[uint64]bool)
	for _, p := range perms {
		r := RankPerm(p, fact)
		require.Less(t, r, uint64(24))
		require.False(t, seen[r])
		seen[r] = true

		out := make([]int, 4)
		UnrankPerm(r, fact, out)
		require.Equal(t, p, out)
	}
}

func TestRankPermLexicographic(t *testing.T) {
	fact := Factorials(4)
	assert.Equal(t, uint64(0), RankPerm([]int{0, 1, 2}, fact))
	assert.Equal(t, uint64(5), RankPerm([]int{2, 1, 0}, fact))
}

func TestStateLen(t *testing.T) {
	tests := []struct {
		max  uint64
		want int
	}{
		{0, 1},
		{255, 1},
		{256, 2},
		{1<<16 - 1, 2},
		{1 << 16, 3},
		{1<<56 - 1, 7}, // N = 2^56 exactly fits 7 bytes
		{1 << 56, 8},
		{^uint64(0), 8},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, StateLen(tc.max), "max=%d", tc.max)
	}
}

func TestPutGetState(t *testing.T) {
	for _, width := range []int{1, 2, 3, 7, 8} {
		buf := make([]byte, width)
		for _, v := range []uint64{0, 1, 254, 255} {
			PutState(buf, v)
			assert.Equal(t, v, GetState(buf))
		}
	}
	// little-endian layout
	buf := make([]byte, 3)
	PutState(buf, 0x010203)
	assert.Equal(t, []byte{0x03, 0x02, 0x01}, buf)

	// the 2^56 boundary round-trips in 7 bytes
	buf = make([]byte, 7)
	PutState(buf, 1<<56-1)
	assert.Equal(t, uint64(1<<56-1), GetState(buf))
}

func TestCompareStates(t *testing.T) {
	// most significant byte last
	assert.Equal(t, -1, CompareStates([]byte{0xFF, 0x01}, []byte{0x00, 0x02}))
	assert.Equal(t, 1, CompareStates([]byte{0x02, 0x01}, []byte{0x01, 0x01}))
	assert.Equal(t, 0, CompareStates([]byte{0x07, 0x07}, []byte{0x07, 0x07}))
}
