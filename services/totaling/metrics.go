// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package totaling

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for run metrics. The tracer lives in workflow.go.
var meter = otel.Meter("tidewater.totaling")

// Metrics for totaling runs.
var (
	runsTotal        metric.Int64Counter
	runDuration      metric.Float64Histogram
	inputFilesTotal  metric.Int64Counter
	diagnosticsTotal metric.Int64Counter
	cellsTotal       metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runsTotal, err = meter.Int64Counter(
			"totaling_runs_total",
			metric.WithDescription("Total totaling runs by outcome"),
			metric.WithUnit("{run}"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runDuration, err = meter.Float64Histogram(
			"totaling_run_duration_seconds",
			metric.WithDescription("Wall-clock duration of completed totaling runs"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
		)
		if err != nil {
			metricsErr = err
			return
		}

		inputFilesTotal, err = meter.Int64Counter(
			"totaling_input_files_total",
			metric.WithDescription("Total input files combined across runs"),
			metric.WithUnit("{file}"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		diagnosticsTotal, err = meter.Int64Counter(
			"totaling_diagnostics_total",
			metric.WithDescription("Total diagnostics reported, by kind"),
			metric.WithUnit("{diagnostic}"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cellsTotal, err = meter.Int64Counter(
			"totaling_cells_total",
			metric.WithDescription("Total cells in summed output variables"),
			metric.WithUnit("{cell}"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordRunSuccess records the summary metrics of a completed run.
func recordRunSuccess(ctx context.Context, report *RunReport) {
	if err := initMetrics(); err != nil {
		return
	}
	runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "completed")))
	runDuration.Record(ctx, report.Duration.Seconds())
	inputFilesTotal.Add(ctx, int64(len(report.Files)))
	cellsTotal.Add(ctx, int64(report.Cells))
	for _, d := range report.Diagnostics {
		diagnosticsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(d.Kind)),
		))
	}
}

// recordRunFailure records an aborted run and the stage that failed.
func recordRunFailure(ctx context.Context, stage string) {
	if err := initMetrics(); err != nil {
		return
	}
	runsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", "failed"),
		attribute.String("stage", stage),
	))
}
