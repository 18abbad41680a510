// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinterPlainWhenNotTTY(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Title("Search results")
	p.Success("solution found: %d moves", 3)
	p.Error("boom")

	out := buf.String()
	assert.Equal(t, "Search results\nsolution found: 3 moves\nboom\n", out)
	assert.False(t, strings.Contains(out, "\x1b["), "no ANSI escapes when piped")
}

func TestPrinterWriter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Writer().Write([]byte("raw"))
	assert.Equal(t, "raw", buf.String())
}
