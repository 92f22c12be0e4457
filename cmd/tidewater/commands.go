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
	"fmt"
	"os"

	"github.com/AleutianAI/tidewater/cmd/tidewater/config"
	"github.com/AleutianAI/tidewater/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath       string
	personalityLevel string // UX personality level (standard/minimal/machine)

	rootCmd = &cobra.Command{
		Use:   "tidewater",
		Short: "A cli to total per-component sea-level projections into one dataset",
		Long: `Tidewater reads per-component sea-level projection files, checks each
				file against a shared projection window, and writes the sum across
				components as a single totaled dataset with per-file provenance.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}

			if err := config.Load(configPath); err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(CLIExitError)
			}
		},
	}
)

// init runs when the Go program starts
func init() {
	// Global UX personality flag
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: standard (default), minimal, or machine (scripting)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the config file (default ~/.tidewater/tidewater.yaml)")
}

// checkYearFlags enforces that the projection window flags were set
// explicitly. Zero is a legal year, so flag presence is what matters.
func checkYearFlags(cmd *cobra.Command) error {
	for _, name := range []string{"pyear-start", "pyear-end", "pyear-step"} {
		if !cmd.Flags().Changed(name) {
			return fmt.Errorf("--%s is required", name)
		}
	}
	return nil
}
