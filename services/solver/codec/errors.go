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

import "errors"

// Sentinel errors for the codec package.
var (
	// ErrTableTooLarge indicates a requested Pascal table beyond MaxTable.
	ErrTableTooLarge = errors.New("pascal table too large")

	// ErrStateSpaceTooLarge indicates the exact and floating-point state
	// counts disagree, i.e. the uint64 path overflowed.
	ErrStateSpaceTooLarge = errors.New("state space too large")

	// ErrRankRange indicates a rank outside [0, N); always a caller bug.
	ErrRankRange = errors.New("rank out of range")
)
