// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resultstore archives finished searches in a local Badger store,
// keyed by the SHA-256 of the instance text. Records can be looked up by
// instance and listed; a search does not consult the archive before running.
package resultstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// ErrNotFound indicates no archived result for the instance.
var ErrNotFound = errors.New("no archived result")

// Record is one archived search outcome. Solution states are stored as hex
// strings of their little-endian encoding.
type Record struct {
	RunID       string    `json:"run_id"`
	Engine      string    `json:"engine"`
	Domain      string    `json:"domain"`
	Found       bool      `json:"found"`
	SolutionLen int       `json:"solution_len"`
	Total       uint64    `json:"total"`
	Generations []uint64  `json:"generations,omitempty"`
	Solution    []string  `json:"solution,omitempty"`
	SolvedAt    time.Time `json:"solved_at"`
}

// EncodeSolution converts encoded states to the stored hex form.
func EncodeSolution(states [][]byte) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = hex.EncodeToString(s)
	}
	return out
}

// InstanceKey returns the archive key for an instance text.
func InstanceKey(instance []byte) string {
	sum := sha256.Sum256(instance)
	return hex.EncodeToString(sum[:])
}

// Store is a handle to the archive.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) the archive at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening result store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put archives a record under the given instance key.
func (s *Store) Put(key string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

// Get returns the archived record for the instance key, or ErrNotFound.
func (s *Store) Get(key string) (Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return rec, ErrNotFound
		}
		return rec, fmt.Errorf("reading record: %w", err)
	}
	return rec, nil
}

// Keys lists every archived instance key.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return keys, nil
}
