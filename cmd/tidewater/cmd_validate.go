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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tidewater/cmd/tidewater/config"
	"github.com/AleutianAI/tidewater/pkg/ux"
	"github.com/AleutianAI/tidewater/services/totaling"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	validateName          string
	validatePyearStart    int
	validatePyearEnd      int
	validatePyearStep     int
	validateVariable      string
	validateStrictSteps   bool
	validateSpillDir      string
	validateLogDir        string
	validateTraceExporter string
	validateJSON          bool
	validateCompact       bool
	validateQuiet         bool
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var validateCmd = &cobra.Command{
	Use:   "validate [items...]",
	Short: "Run the totaling pipeline without writing anything",
	Long: `Validate runs every stage of the totaling pipeline except the final
write: each input's years axis is checked against the projection window,
the files are merged, and the file set is checked for cross-file
consistency. Use it to vet a component set before a long totaling run.

Examples:
  tidewater validate data/*_globalsl.twd \
    --pyear-start 2020 --pyear-end 2100 --pyear-step 10
  tidewater validate 'components/*/*.twd' --pyear-start 2030 --pyear-end 2150 \
    --pyear-step 10 --strict-steps --json

Exit Codes:
  0 = All inputs conform, no diagnostics
  1 = Inputs usable but diagnostics reported
  2 = Error (validation failure, merge failure, IO)`,
	Args: cobra.MinimumNArgs(1),
	Run:  runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateName, "name", "",
		"Workflow name for logs and reports (default from config)")
	validateCmd.Flags().IntVar(&validatePyearStart, "pyear-start", 0,
		"First projection year (required)")
	validateCmd.Flags().IntVar(&validatePyearEnd, "pyear-end", 0,
		"Last projection year, inclusive when on step (required)")
	validateCmd.Flags().IntVar(&validatePyearStep, "pyear-step", 0,
		"Projection year spacing (required)")
	validateCmd.Flags().StringVar(&validateVariable, "variable", "",
		"Variable to sum across files (default sea_level_change)")
	validateCmd.Flags().BoolVar(&validateStrictSteps, "strict-steps", false,
		"Escalate cross-file step divergence to a fatal error")
	validateCmd.Flags().StringVar(&validateSpillDir, "spill-dir", "",
		"Directory for the on-disk chunk cache (default in-memory only)")
	validateCmd.Flags().StringVar(&validateLogDir, "log-dir", "",
		"Directory for run logs (default from config)")
	validateCmd.Flags().StringVar(&validateTraceExporter, "trace-exporter", "",
		"Trace exporter: otlp, stdout, or none (default from config)")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false,
		"Output the run report as JSON")
	validateCmd.Flags().BoolVar(&validateCompact, "compact", false,
		"Compact JSON output")
	validateCmd.Flags().BoolVar(&validateQuiet, "quiet", false,
		"Only exit code, no output")

	rootCmd.AddCommand(validateCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runValidate(cmd *cobra.Command, args []string) {
	os.Exit(validateMain(cmd, args))
}

func validateMain(cmd *cobra.Command, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	outCfg := OutputConfig{JSON: validateJSON, Compact: validateCompact, Quiet: validateQuiet}

	// Config fills in any flag the caller left unset.
	flags := cmd.Flags()
	if !flags.Changed("name") && config.Global.Defaults.WorkflowName != "" {
		validateName = config.Global.Defaults.WorkflowName
	}
	if !flags.Changed("variable") && config.Global.Defaults.TargetVariable != "" {
		validateVariable = config.Global.Defaults.TargetVariable
	}
	if !flags.Changed("spill-dir") {
		validateSpillDir = config.Global.Spill.Dir
	}
	if !flags.Changed("log-dir") {
		validateLogDir = config.Global.Logging.Dir
	}
	if !flags.Changed("trace-exporter") && config.Global.Tracing.Exporter != "" {
		validateTraceExporter = config.Global.Tracing.Exporter
	}

	if err := checkYearFlags(cmd); err != nil {
		OutputError(outCfg.JSON, "Invalid arguments", err)
		return CLIExitError
	}

	rt, err := newCommandRuntime(ctx, runtimeOptions{
		LogDir:        validateLogDir,
		TraceExporter: validateTraceExporter,
		SpillDir:      validateSpillDir,
	})
	if err != nil {
		OutputError(outCfg.JSON, "Failed to initialize", err)
		return CLIExitError
	}
	defer rt.Close()

	wf, err := totaling.New(totaling.Config{
		Name:  validateName,
		Items: args,
		Params: totaling.Params{
			PyearStart: validatePyearStart,
			PyearEnd:   validatePyearEnd,
			PyearStep:  validatePyearStep,
		},
		TargetVariable: validateVariable,
		Policy:         totaling.Policy{StrictSteps: validateStrictSteps},
	},
		totaling.WithLogger(rt.Logger.Slog()),
		totaling.WithSink(sinkFor(outCfg)),
		totaling.WithCache(rt.Cache),
	)
	if err != nil {
		OutputError(outCfg.JSON, "Invalid workflow", err)
		return CLIExitError
	}

	if textMode(outCfg) {
		ux.Title(fmt.Sprintf("Validating %s", validateName))
		ux.Info(fmt.Sprintf("projection window %d to %d, step %d",
			validatePyearStart, validatePyearEnd, validatePyearStep))
	}

	report, err := wf.DryRun(ctx)
	if err != nil {
		return OutputResult(outCfg, "validate", start, nil, false, err)
	}

	if textMode(outCfg) {
		outputValidateText(report)
	}
	return OutputResult(outCfg, "validate", start, report, len(report.Diagnostics) > 0, nil)
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func outputValidateText(report *totaling.RunReport) {
	for _, f := range report.Files {
		detail := fmt.Sprintf("%s [%d..%d/%d]", f.Tag, f.Start, f.End, f.Step)
		ux.FileStatus(f.Path, ux.IconSuccess, detail)
	}
	if len(report.Diagnostics) == 0 {
		ux.Success(fmt.Sprintf("all %d inputs conform", len(report.Files)))
	} else {
		ux.Warning(fmt.Sprintf("%d diagnostics reported", len(report.Diagnostics)))
	}
	ux.RunSummary(len(report.Files), len(report.Diagnostics), int64(report.Cells), report.Duration)
}
