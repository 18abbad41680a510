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

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// genPath returns the frontier file name for a generation. The GEN-DDDD
// scheme is fixed for on-disk compatibility.
func genPath(dir string, gen int) string {
	return filepath.Join(dir, fmt.Sprintf("GEN-%04d", gen))
}

// createGen creates (or truncates) the frontier file for a generation.
func createGen(dir string, gen int) error {
	f, err := os.Create(genPath(dir, gen))
	if err != nil {
		return fmt.Errorf("creating generation file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing generation file: %w", err)
	}
	return nil
}

// appendGen appends encoded states to a generation's frontier file.
func appendGen(dir string, gen int, data []byte) error {
	f, err := os.OpenFile(genPath(dir, gen), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("opening generation file for append: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("appending to generation file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing generation file: %w", err)
	}
	return nil
}

// genSize returns the byte size of a generation's frontier file.
func genSize(dir string, gen int) (int64, error) {
	st, err := os.Stat(genPath(dir, gen))
	if err != nil {
		return 0, fmt.Errorf("sizing generation file: %w", err)
	}
	return st.Size(), nil
}

// readGen streams a generation's frontier file in chunks of at most
// len(buf) bytes (a multiple of the state width) and calls fn with each
// filled chunk. fn returning false stops the scan early.
func readGen(dir string, gen int, buf []byte, fn func(chunk []byte) (bool, error)) error {
	size, err := genSize(dir, gen)
	if err != nil {
		return err
	}
	f, err := os.Open(genPath(dir, gen))
	if err != nil {
		return fmt.Errorf("opening generation file: %w", err)
	}
	defer f.Close()
	for size > 0 {
		grab := size
		if grab > int64(len(buf)) {
			grab = int64(len(buf))
		}
		if _, err := io.ReadFull(f, buf[:grab]); err != nil {
			return fmt.Errorf("reading generation file: %w", err)
		}
		size -= grab
		cont, err := fn(buf[:grab])
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}
