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
	"strings"
	"time"

	"github.com/AleutianAI/tidewater/cmd/tidewater/config"
	"github.com/AleutianAI/tidewater/pkg/logging"
	"github.com/AleutianAI/tidewater/services/totaling"
	"github.com/AleutianAI/tidewater/services/totaling/dataset"
	"github.com/AleutianAI/tidewater/services/totaling/spill"
	"github.com/AleutianAI/tidewater/services/totaling/telemetry"
)

// runtimeOptions carries the operational settings shared by the run
// commands after flag and config merging.
type runtimeOptions struct {
	LogDir        string
	TraceExporter string
	SpillDir      string
}

// commandRuntime holds the logging, telemetry, and caching machinery a
// totaling run needs. Close releases everything.
type commandRuntime struct {
	Logger *logging.Logger
	Cache  dataset.ChunkCache

	store    *spill.Store
	shutdown func(context.Context) error
}

// newCommandRuntime assembles the run machinery. The terminal belongs
// to the ux layer, so the logger stays off stderr and writes to the
// log directory when one is configured. Telemetry failures are logged
// and ignored; a run never aborts over instrumentation.
func newCommandRuntime(ctx context.Context, opts runtimeOptions) (*commandRuntime, error) {
	logger := logging.New(logging.Config{
		Level:   parseLogLevel(config.Global.Logging.Level),
		LogDir:  opts.LogDir,
		Service: "tidewater",
		JSON:    config.Global.Logging.JSON,
		Quiet:   true,
	})

	rt := &commandRuntime{Logger: logger}

	tcfg := telemetry.DefaultConfig()
	if opts.TraceExporter != "" {
		tcfg.TraceExporter = opts.TraceExporter
	}
	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
	} else {
		rt.shutdown = shutdown
	}

	l1 := dataset.NewLRUCache(config.Global.Spill.MaxMemoryBytes)
	if opts.SpillDir != "" {
		store, err := spill.OpenWithPath(opts.SpillDir)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open spill store: %w", err)
		}
		rt.store = store
		rt.Cache = dataset.NewTieredCache(l1, store)
	} else {
		rt.Cache = l1
	}

	return rt, nil
}

// Close flushes telemetry, closes the spill store, and closes the logger.
func (rt *commandRuntime) Close() {
	if rt.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.shutdown(ctx); err != nil {
			rt.Logger.Warn("telemetry shutdown failed", "error", err)
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.Logger.Warn("spill store close failed", "error", err)
		}
	}
	if err := rt.Logger.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "log close failed: %v\n", err)
	}
}

// pushMetrics publishes run metrics to the configured Pushgateway.
// Failures are logged, never fatal.
func (rt *commandRuntime) pushMetrics(gateway string, report *totaling.RunReport) {
	if gateway == "" {
		return
	}
	err := telemetry.PushRunMetrics(telemetry.PushConfig{
		URL: gateway,
		Job: config.Global.Metrics.Job,
	}, report)
	if err != nil {
		rt.Logger.Warn("metrics push failed", "gateway", gateway, "error", err)
		return
	}
	rt.Logger.Info("metrics pushed", "gateway", gateway)
}

// parseLogLevel maps a config string to a logging level. Unknown values
// fall back to info.
func parseLogLevel(s string) logging.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
