// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the solver configuration: engine selection and
// memory/thread budgets. Values come from an optional YAML file
// (statewalk.yaml) with CLI flags layered on top by the command layer.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig indicates a configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the solver settings.
type Config struct {
	// Engine selects the search engine.
	Engine string `yaml:"engine" validate:"omitempty,oneof=memory ddd ddd-undirected disk parallel"`

	// Domain selects the puzzle domain the input describes.
	Domain string `yaml:"domain" validate:"omitempty,oneof=sokoban npuzzle plank"`

	// Threads is the worker count for the parallel engine. 0 means one per
	// CPU.
	Threads int `yaml:"threads" validate:"gte=0,lte=999"`

	// InBufferMB and OutBufferMB are the megabyte budgets for the disk
	// engines' buffers. InBufferMB doubles as the DDD engine's total budget.
	InBufferMB  int `yaml:"in_buffer_mb" validate:"gte=0"`
	OutBufferMB int `yaml:"out_buffer_mb" validate:"gte=0"`

	// BlockBits is the visited-bitmap partition exponent (2^bits bits per
	// block); 0 keeps the bitmap in a single block.
	BlockBits int `yaml:"block_bits" validate:"gte=0,lte=48"`

	// Workdir is where GEN-DDDD frontier files are written.
	Workdir string `yaml:"workdir"`

	// MetricsAddr enables the Prometheus /metrics listener when set, e.g.
	// "localhost:9464".
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// LogFile, when set, mirrors logs to a JSON file.
	LogFile string `yaml:"log_file"`

	// ArchiveDir is the Badger directory for the solved-instance archive.
	ArchiveDir string `yaml:"archive_dir"`
}

// Default returns the configuration used when no file and no flags are
// given.
func Default() Config {
	return Config{
		Engine:      "memory",
		Domain:      "sokoban",
		InBufferMB:  50,
		OutBufferMB: 50,
		Workdir:     ".",
		LogLevel:    "info",
		ArchiveDir:  ".statewalk-archive",
	}
}

// Load reads a YAML configuration file over the defaults and validates the
// result. A missing file is not an error when optional is true.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration's field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
