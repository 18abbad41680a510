// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import "errors"

// Sentinel errors for the engine package. There is no recoverable error
// path: a search that cannot proceed correctly fails outright, because a
// silently bad state would corrupt the visited set and with it the proof of
// optimality.
var (
	// ErrStateTooWide indicates an encoded state wider than the engine
	// supports.
	ErrStateTooWide = errors.New("state size too large")

	// ErrStateSpaceTooLarge indicates a domain whose state count exceeds
	// what the engine can address.
	ErrStateSpaceTooLarge = errors.New("state space too large")

	// ErrBufferExhausted indicates the duplicate-detection buffer cannot
	// hold the search even after repacking.
	ErrBufferExhausted = errors.New("out of memory: state buffer exhausted")

	// ErrQueueExhausted indicates the in-memory BFS queue wrapped onto
	// itself; impossible for reachable graphs and therefore a bug.
	ErrQueueExhausted = errors.New("bfs queue exhausted")

	// ErrEncodeRange indicates the domain produced an encoded value outside
	// [0, N); a codec or deadlock-layout bug, never a user error.
	ErrEncodeRange = errors.New("encoded state out of range")
)
