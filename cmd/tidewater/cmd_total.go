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
	totalName             string
	totalPyearStart       int
	totalPyearEnd         int
	totalPyearStep        int
	totalOutput           string
	totalVariable         string
	totalStrictSteps      bool
	totalMissingAsZero    bool
	totalCompressionLevel int
	totalSpillDir         string
	totalPushGateway      string
	totalLogDir           string
	totalTraceExporter    string
	totalJSON             bool
	totalCompact          bool
	totalQuiet            bool
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var totalCmd = &cobra.Command{
	Use:   "total [items...]",
	Short: "Sum per-component projection files into one totaled dataset",
	Long: `Total reads every input file, validates each file's years axis against
the projection window, sums the target variable across files, and writes
the result as a single dataset. Inputs are file paths or glob patterns;
quoted patterns expand in sorted order, and input order is preserved in
the output's provenance attributes.

The run aborts before writing anything when an input fails validation,
when the files disagree on their coordinates, or when the merge is
inconsistent. Non-fatal findings are reported as diagnostics and do not
block the write.

Examples:
  tidewater total data/*_globalsl.twd --name coupled.ssp585 \
    --pyear-start 2020 --pyear-end 2100 --pyear-step 10 -o total.twd
  tidewater total 'components/*/*.twd' --pyear-start 2030 --pyear-end 2150 \
    --pyear-step 10 -o out/total.twd --strict-steps
  tidewater total 'components/*.twd' --pyear-start 2020 --pyear-end 2100 \
    --pyear-step 10 -o total.twd --json --quiet; echo $?

Exit Codes:
  0 = Total written, no diagnostics
  1 = Total written, diagnostics reported
  2 = Error (validation failure, merge failure, IO)`,
	Args: cobra.MinimumNArgs(1),
	Run:  runTotal,
}

func init() {
	totalCmd.Flags().StringVar(&totalName, "name", "",
		"Workflow name for logs and reports (default from config)")
	totalCmd.Flags().IntVar(&totalPyearStart, "pyear-start", 0,
		"First projection year (required)")
	totalCmd.Flags().IntVar(&totalPyearEnd, "pyear-end", 0,
		"Last projection year, inclusive when on step (required)")
	totalCmd.Flags().IntVar(&totalPyearStep, "pyear-step", 0,
		"Projection year spacing (required)")
	totalCmd.Flags().StringVarP(&totalOutput, "output-path", "o", "",
		"Output path for the totaled dataset (required)")
	totalCmd.Flags().StringVar(&totalVariable, "variable", "",
		"Variable to sum across files (default sea_level_change)")
	totalCmd.Flags().BoolVar(&totalStrictSteps, "strict-steps", false,
		"Escalate cross-file step divergence to a fatal error")
	totalCmd.Flags().BoolVar(&totalMissingAsZero, "missing-as-zero", false,
		"Treat cells absent from a file as zero instead of missing")
	totalCmd.Flags().IntVar(&totalCompressionLevel, "compression-level", 0,
		"Output compression level 1-19 (0 = container default)")
	totalCmd.Flags().StringVar(&totalSpillDir, "spill-dir", "",
		"Directory for the on-disk chunk cache (default in-memory only)")
	totalCmd.Flags().StringVar(&totalPushGateway, "push-metrics", "",
		"Prometheus Pushgateway URL for run metrics")
	totalCmd.Flags().StringVar(&totalLogDir, "log-dir", "",
		"Directory for run logs (default from config)")
	totalCmd.Flags().StringVar(&totalTraceExporter, "trace-exporter", "",
		"Trace exporter: otlp, stdout, or none (default from config)")
	totalCmd.Flags().BoolVar(&totalJSON, "json", false,
		"Output the run report as JSON")
	totalCmd.Flags().BoolVar(&totalCompact, "compact", false,
		"Compact JSON output")
	totalCmd.Flags().BoolVar(&totalQuiet, "quiet", false,
		"Only exit code, no output")

	rootCmd.AddCommand(totalCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runTotal(cmd *cobra.Command, args []string) {
	os.Exit(totalMain(cmd, args))
}

// totalMain returns the exit code instead of exiting so deferred
// cleanup (spill store, log file, telemetry flush) actually runs.
func totalMain(cmd *cobra.Command, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	outCfg := OutputConfig{JSON: totalJSON, Compact: totalCompact, Quiet: totalQuiet}

	// Config fills in any flag the caller left unset.
	flags := cmd.Flags()
	if !flags.Changed("name") && config.Global.Defaults.WorkflowName != "" {
		totalName = config.Global.Defaults.WorkflowName
	}
	if !flags.Changed("variable") && config.Global.Defaults.TargetVariable != "" {
		totalVariable = config.Global.Defaults.TargetVariable
	}
	if !flags.Changed("compression-level") {
		totalCompressionLevel = config.Global.Defaults.CompressionLevel
	}
	if !flags.Changed("spill-dir") {
		totalSpillDir = config.Global.Spill.Dir
	}
	if !flags.Changed("push-metrics") {
		totalPushGateway = config.Global.Metrics.PushgatewayURL
	}
	if !flags.Changed("log-dir") {
		totalLogDir = config.Global.Logging.Dir
	}
	if !flags.Changed("trace-exporter") && config.Global.Tracing.Exporter != "" {
		totalTraceExporter = config.Global.Tracing.Exporter
	}

	if err := checkYearFlags(cmd); err != nil {
		OutputError(outCfg.JSON, "Invalid arguments", err)
		return CLIExitError
	}
	if totalOutput == "" {
		OutputError(outCfg.JSON, "Invalid arguments", fmt.Errorf("--output-path is required"))
		return CLIExitError
	}

	rt, err := newCommandRuntime(ctx, runtimeOptions{
		LogDir:        totalLogDir,
		TraceExporter: totalTraceExporter,
		SpillDir:      totalSpillDir,
	})
	if err != nil {
		OutputError(outCfg.JSON, "Failed to initialize", err)
		return CLIExitError
	}
	defer rt.Close()

	wf, err := totaling.New(totaling.Config{
		Name:  totalName,
		Items: args,
		Params: totaling.Params{
			PyearStart: totalPyearStart,
			PyearEnd:   totalPyearEnd,
			PyearStep:  totalPyearStep,
		},
		OutputPath:     totalOutput,
		TargetVariable: totalVariable,
		Policy: totaling.Policy{
			StrictSteps:   totalStrictSteps,
			MissingAsZero: totalMissingAsZero,
		},
		Encoding: totaling.Encoding{CompressionLevel: totalCompressionLevel},
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
		ux.Title(fmt.Sprintf("Totaling %s", totalName))
		ux.Info(fmt.Sprintf("projection window %d to %d, step %d",
			totalPyearStart, totalPyearEnd, totalPyearStep))
	}

	report, err := wf.Run(ctx)
	if err != nil {
		return OutputResult(outCfg, "total", start, nil, false, err)
	}

	rt.pushMetrics(totalPushGateway, report)

	if textMode(outCfg) {
		outputTotalText(report)
	}
	return OutputResult(outCfg, "total", start, report, len(report.Diagnostics) > 0, nil)
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func outputTotalText(report *totaling.RunReport) {
	for _, f := range report.Files {
		detail := fmt.Sprintf("%s [%d..%d/%d]", f.Tag, f.Start, f.End, f.Step)
		ux.FileStatus(f.Path, ux.IconSuccess, detail)
	}
	ux.Success(fmt.Sprintf("wrote %s", report.OutputPath))
	ux.RunSummary(len(report.Files), len(report.Diagnostics), int64(report.Cells), report.Duration)
}
