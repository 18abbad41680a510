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

// StateLen returns the number of bytes needed to hold max, the largest
// encoded value (N-1). Always at least 1. Sizing on N-1 rather than N lets a
// state space of exactly 2^(8k) states fit in k bytes.
func StateLen(max uint64) int {
	n := 1
	for max >>= 8; max != 0; max >>= 8 {
		n++
	}
	return n
}

// PutState serializes v little-endian into dst, which must be exactly the
// domain's state width.
func PutState(dst []byte, v uint64) {
	for i := range dst {
		dst[i] = byte(v)
		v >>= 8
	}
}

// GetState deserializes a little-endian state value from src.
func GetState(src []byte) uint64 {
	var v uint64
	for i := len(src) - 1; i >= 0; i-- {
		v = v<<8 | uint64(src[i])
	}
	return v
}

// CompareStates orders two equal-width encoded states by value, i.e.
// bytewise with the most significant byte last. Used by the sorted-run
// duplicate-detection engine.
func CompareStates(a, b []byte) int {
	for i := len(a) - 1; i >= 0; i-- {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	return 0
}
