// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSearch/pkg/ux"
	"github.com/AleutianAI/AleutianSearch/services/solver/resultstore"
)

// archiveCmd is the parent for result-store queries.
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Query the archive of solved instances",
	Long: `Solved instances recorded with 'solve --record' are archived under the
SHA-256 of their instance text.

Subcommands:
  list  - list archived instance keys
  show  - print the archived record for an instance
`,
}

// archiveListCmd lists archived keys.
var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived instance keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := ux.NewPrinter(os.Stdout)
		store, err := resultstore.Open(cfg.ArchiveDir)
		if err != nil {
			return err
		}
		defer store.Close()
		keys, err := store.Keys()
		if err != nil {
			return err
		}
		for _, k := range keys {
			p.Info("%s", k)
		}
		p.Muted("%d archived results", len(keys))
		return nil
	},
}

// archiveShowCmd prints one archived record. The argument is either an
// archive key or an instance file (matched by hash).
var archiveShowCmd = &cobra.Command{
	Use:   "show KEY|FILE",
	Short: "Print the archived record for an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := ux.NewPrinter(os.Stdout)
		store, err := resultstore.Open(cfg.ArchiveDir)
		if err != nil {
			return err
		}
		defer store.Close()

		key := args[0]
		if data, err := os.ReadFile(args[0]); err == nil {
			key = resultstore.InstanceKey(data)
		}
		rec, err := store.Get(key)
		if err != nil {
			if errors.Is(err, resultstore.ErrNotFound) {
				return fmt.Errorf("no archived result for %s", key)
			}
			return err
		}
		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(p.Writer(), string(out))
		return nil
	},
}

func init() {
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveShowCmd)
	rootCmd.AddCommand(archiveCmd)
}
