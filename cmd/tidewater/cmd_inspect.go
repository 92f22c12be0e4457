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
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tidewater/pkg/ux"
	"github.com/AleutianAI/tidewater/services/totaling/twdfile"
)

// =============================================================================
// CONSTANTS AND TYPES
// =============================================================================

// inspectDim mirrors twdfile.DimInfo with a JSON contract.
type inspectDim struct {
	Name   string `json:"name"`
	Length int    `json:"length"`
}

// inspectVar mirrors twdfile.VarInfo with a JSON contract.
type inspectVar struct {
	Name   string            `json:"name"`
	Dims   []string          `json:"dims"`
	DType  string            `json:"dtype"`
	Coord  bool              `json:"coord"`
	Codec  string            `json:"codec,omitempty"`
	Chunks int               `json:"chunks,omitempty"`
	Attrs  map[string]string `json:"attrs,omitempty"`
}

// inspectReport holds everything inspect reads from a container.
type inspectReport struct {
	Path  string            `json:"path"`
	Dims  []inspectDim      `json:"dims"`
	Vars  []inspectVar      `json:"vars"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	inspectJSON    bool
	inspectCompact bool
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var inspectCmd = &cobra.Command{
	Use:   "inspect [path]",
	Short: "Show the dimensions, variables, and attributes of a dataset file",
	Long: `Inspect reads a container's header and prints its dimensions, variables
(with dtype, codec, and chunk count), and file attributes. No variable
data is decoded.

Examples:
  tidewater inspect data/AIS_globalsl.twd
  tidewater inspect out/total.twd --json | jq '.data.vars[].name'

Exit Codes:
  0 = Container read successfully
  2 = Error (not a container, corrupt, IO)`,
	Args: cobra.ExactArgs(1),
	Run:  runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false,
		"Output as JSON")
	inspectCmd.Flags().BoolVar(&inspectCompact, "compact", false,
		"Compact JSON output")

	rootCmd.AddCommand(inspectCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runInspect(cmd *cobra.Command, args []string) {
	os.Exit(inspectMain(cmd, args))
}

func inspectMain(cmd *cobra.Command, args []string) int {
	start := time.Now()
	path := args[0]
	outCfg := OutputConfig{JSON: inspectJSON, Compact: inspectCompact}

	var f *twdfile.File
	var err error
	if textMode(outCfg) {
		err = ux.WithSpinner(fmt.Sprintf("Reading %s", path), func() error {
			var openErr error
			f, openErr = twdfile.Open(path)
			return openErr
		})
	} else {
		f, err = twdfile.Open(path)
	}
	if err != nil {
		OutputError(outCfg.JSON, "Failed to open container", err)
		return CLIExitError
	}
	defer f.Close()

	report := buildInspectReport(f)

	if textMode(outCfg) {
		outputInspectText(report)
	}
	return OutputResult(outCfg, "inspect", start, report, false, nil)
}

func buildInspectReport(f *twdfile.File) *inspectReport {
	report := &inspectReport{Path: f.Path(), Attrs: f.Attrs()}
	for _, d := range f.DimInfos() {
		report.Dims = append(report.Dims, inspectDim{Name: d.Name, Length: d.Length})
	}
	for _, v := range f.VarInfos() {
		report.Vars = append(report.Vars, inspectVar{
			Name:   v.Name,
			Dims:   v.Dims,
			DType:  v.DType,
			Coord:  v.Coord,
			Codec:  v.Codec,
			Chunks: v.Chunks,
			Attrs:  v.Attrs,
		})
	}
	return report
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func outputInspectText(report *inspectReport) {
	ux.Title(report.Path)

	fmt.Println("Dimensions:")
	for _, d := range report.Dims {
		fmt.Printf("  %-16s %d\n", d.Name, d.Length)
	}
	fmt.Println()

	fmt.Println("Variables:")
	for _, v := range report.Vars {
		name := v.Name
		if v.Coord {
			name += " (coord)"
		}
		codec := v.Codec
		if codec == "" {
			codec = "raw"
		}
		fmt.Printf("  %-24s %-8s (%s)  %s x%d\n",
			name, v.DType, strings.Join(v.Dims, ", "), codec, v.Chunks)
	}

	if len(report.Attrs) > 0 {
		fmt.Println()
		fmt.Println("Attributes:")
		keys := make([]string, 0, len(report.Attrs))
		for k := range report.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s: %s\n", k, report.Attrs[k])
		}
	}
}
