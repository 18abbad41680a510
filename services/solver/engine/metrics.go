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
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics contains the pre-defined instruments for the search engines. All
// metrics use the "solver_" prefix.
//
// Thread Safety: safe for concurrent use after creation.
type Metrics struct {
	// StatesExpanded counts states dequeued and expanded.
	StatesExpanded metric.Int64Counter

	// StatesDiscovered counts newly visited states.
	StatesDiscovered metric.Int64Counter

	// DuplicatesDropped counts successor states rejected as already visited.
	DuplicatesDropped metric.Int64Counter

	// Generations counts completed BFS generations.
	Generations metric.Int64Counter

	// FrontierFlushes counts out-buffer flushes to disk.
	FrontierFlushes metric.Int64Counter

	// SolveDuration records complete search durations in seconds.
	SolveDuration metric.Float64Histogram
}

// NewMetrics creates the engine metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("solver.engine")
	m := &Metrics{}
	var err error

	if m.StatesExpanded, err = meter.Int64Counter("solver_states_expanded_total",
		metric.WithDescription("States dequeued and expanded")); err != nil {
		return nil, fmt.Errorf("creating states_expanded counter: %w", err)
	}
	if m.StatesDiscovered, err = meter.Int64Counter("solver_states_discovered_total",
		metric.WithDescription("Newly visited states")); err != nil {
		return nil, fmt.Errorf("creating states_discovered counter: %w", err)
	}
	if m.DuplicatesDropped, err = meter.Int64Counter("solver_duplicates_dropped_total",
		metric.WithDescription("Successors rejected as already visited")); err != nil {
		return nil, fmt.Errorf("creating duplicates_dropped counter: %w", err)
	}
	if m.Generations, err = meter.Int64Counter("solver_generations_total",
		metric.WithDescription("Completed BFS generations")); err != nil {
		return nil, fmt.Errorf("creating generations counter: %w", err)
	}
	if m.FrontierFlushes, err = meter.Int64Counter("solver_frontier_flushes_total",
		metric.WithDescription("Out-buffer flushes to disk")); err != nil {
		return nil, fmt.Errorf("creating frontier_flushes counter: %w", err)
	}
	if m.SolveDuration, err = meter.Float64Histogram("solver_solve_duration_seconds",
		metric.WithDescription("Complete search duration in seconds")); err != nil {
		return nil, fmt.Errorf("creating solve_duration histogram: %w", err)
	}
	return m, nil
}

func (m *Metrics) addExpanded(ctx context.Context, n int64) {
	if m != nil {
		m.StatesExpanded.Add(ctx, n)
	}
}

func (m *Metrics) addDiscovered(ctx context.Context, n int64) {
	if m != nil {
		m.StatesDiscovered.Add(ctx, n)
	}
}

func (m *Metrics) addDuplicates(ctx context.Context, n int64) {
	if m != nil {
		m.DuplicatesDropped.Add(ctx, n)
	}
}

func (m *Metrics) addGeneration(ctx context.Context) {
	if m != nil {
		m.Generations.Add(ctx, 1)
	}
}

func (m *Metrics) addFlush(ctx context.Context) {
	if m != nil {
		m.FrontierFlushes.Add(ctx, 1)
	}
}

func (m *Metrics) recordDuration(ctx context.Context, seconds float64) {
	if m != nil {
		m.SolveDuration.Record(ctx, seconds)
	}
}
