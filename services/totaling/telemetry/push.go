// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/AleutianAI/tidewater/services/totaling"
)

// PushConfig identifies the Pushgateway target for run metrics.
type PushConfig struct {
	// URL is the Pushgateway base URL, e.g. http://localhost:9091.
	URL string

	// Job is the Pushgateway job name. Defaults to "tidewater".
	Job string
}

// PushRunMetrics publishes a completed run's summary gauges to a
// Pushgateway, grouped by workflow name so successive runs of the same
// workflow replace each other. Failures here must not fail the run; callers
// log the returned error and move on.
func PushRunMetrics(cfg PushConfig, report *totaling.RunReport) error {
	if cfg.URL == "" {
		return ErrNoGatewayURL
	}
	job := cfg.Job
	if job == "" {
		job = "tidewater"
	}

	files := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tidewater_run_input_files",
		Help: "Input files combined by the last totaling run.",
	})
	diagnostics := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tidewater_run_diagnostics",
		Help: "Diagnostics reported by the last totaling run.",
	})
	cells := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tidewater_run_cells_totaled",
		Help: "Cells in the summed variable of the last totaling run.",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tidewater_run_duration_seconds",
		Help: "Wall-clock duration of the last totaling run.",
	})
	completed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tidewater_last_run_timestamp_seconds",
		Help: "Unix time of the last completed totaling run.",
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(files, diagnostics, cells, duration, completed)

	files.Set(float64(len(report.Files)))
	diagnostics.Set(float64(len(report.Diagnostics)))
	cells.Set(float64(report.Cells))
	duration.Set(report.Duration.Seconds())
	completed.SetToCurrentTime()

	return push.New(cfg.URL, job).
		Gatherer(registry).
		Grouping("workflow", report.Name).
		Push()
}
