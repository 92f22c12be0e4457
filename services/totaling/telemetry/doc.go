// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry initializes OpenTelemetry for tidewater runs and pushes
// per-run metrics to a Prometheus Pushgateway.
//
// # Philosophy
//
// Be opinionated about the API, flexible about the backend. OpenTelemetry IS
// the abstraction layer: pipeline stages create spans through otel.Tracer()
// directly, and operators swap backends by changing exporter configuration,
// not code.
//
// # Batch shape
//
// A totaling run starts, writes one file, and exits, so there is nothing for
// a Prometheus scraper to find afterwards. Metrics therefore use the push
// model: PushRunMetrics publishes the completed run's summary gauges to a
// Pushgateway, grouped by workflow name. Traces default to "none" and can be
// switched to "stdout" for local inspection or "otlp" for a collector.
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(ctx)
//
// # Environment Variables
//
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP receiver (default: localhost:4317)
//   - TIDEWATER_ENV: environment name (default: development)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init() returns.
package telemetry
