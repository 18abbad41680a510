// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package domain defines the contract between puzzle domains and the search
// engines. A Domain is the immutable instance built at load time; a Config is
// one mutable board owned by a single worker. Engines treat both as black
// boxes: all state transfer happens through encoded little-endian byte
// sequences of width StateSize.
package domain

import (
	"io"
	"iter"
)

// Domain is an immutable puzzle instance. Implementations are safe for
// concurrent use; all mutation happens on per-worker Configs.
type Domain interface {
	// StateSize returns the byte width of an encoded state.
	StateSize() int

	// DomainSize returns N-1, the largest encoded value, serialized
	// little-endian in StateSize bytes. The returned slice is shared;
	// callers must not retain or modify it.
	DomainSize() []byte

	// Start returns the encoded start state. The returned slice is a copy.
	Start() []byte

	// NewConfig allocates a fresh mutable configuration set to the start
	// state. Engines allocate one per concurrent worker.
	NewConfig() Config
}

// Config is a mutable puzzle configuration owned by exactly one worker.
//
// Aliasing contract: slices returned by Encode, and slices yielded by
// Neighbors, are valid only until the next call on the same Config. Engines
// copy before calling anything else.
type Config interface {
	// Encode serializes the current configuration.
	Encode() []byte

	// Decode replaces the current configuration with the one the encoded
	// state represents. The input is always a value previously produced by
	// Encode on the same instance; anything else is a caller bug.
	Decode(state []byte)

	// Neighbors enumerates the successors of the current configuration,
	// yielding each one encoded. While the yield function runs, the Config
	// reflects the yielded successor (so Won may be consulted); when the
	// sequence finishes, the configuration is restored. The sequence is
	// single-use and must be consumed on the owning worker.
	Neighbors() iter.Seq[[]byte]

	// Won reports whether the current configuration satisfies the goal.
	Won() bool

	// Render writes a human-readable picture of the current configuration.
	Render(w io.Writer)
}
