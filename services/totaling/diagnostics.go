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
	"log/slog"
	"sync"
)

// DiagnosticKind classifies a non-fatal finding.
type DiagnosticKind string

const (
	// DiagnosticTemporalBounds fires when a file's years axis does not
	// match the requested start/end and is subset to the requested range.
	DiagnosticTemporalBounds DiagnosticKind = "temporal_bounds"

	// DiagnosticStepMismatch fires when a file's observed year steps are
	// not the single requested step.
	DiagnosticStepMismatch DiagnosticKind = "step_mismatch"

	// DiagnosticStepDivergence fires when files disagree on the observed
	// year step.
	DiagnosticStepDivergence DiagnosticKind = "step_divergence"

	// DiagnosticBoundsDivergence fires when files disagree on the
	// observed start or end year.
	DiagnosticBoundsDivergence DiagnosticKind = "bounds_divergence"

	// DiagnosticVariableDropped fires when a non-target variable still
	// carries the file axis at aggregation and is dropped.
	DiagnosticVariableDropped DiagnosticKind = "variable_dropped"
)

// Diagnostic is one non-fatal finding. Diagnostics never stop a run.
type Diagnostic struct {
	Kind DiagnosticKind `json:"kind"`

	// Path names the offending input for per-file findings; empty for
	// cross-file findings.
	Path string `json:"path,omitempty"`

	// Message is human-readable detail.
	Message string `json:"message"`
}

// DiagnosticSink receives findings as the pipeline discovers them.
// Implementations must be safe to call from a single pipeline goroutine;
// no concurrency guarantees are required of them beyond that.
type DiagnosticSink interface {
	Report(d Diagnostic)
}

// NopSink discards every finding.
type NopSink struct{}

func (NopSink) Report(Diagnostic) {}

// LoggerSink reports findings as structured warnings.
type LoggerSink struct {
	Logger *slog.Logger
}

func (s LoggerSink) Report(d Diagnostic) {
	s.Logger.Warn(d.Message, "kind", string(d.Kind), "path", d.Path)
}

// CollectorSink records findings for later inspection. Used by tests and
// the run report.
type CollectorSink struct {
	mu    sync.Mutex
	diags []Diagnostic
}

func (s *CollectorSink) Report(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diags = append(s.diags, d)
}

// All returns the recorded findings in report order.
func (s *CollectorSink) All() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Diagnostic(nil), s.diags...)
}

// Count returns the number of recorded findings.
func (s *CollectorSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.diags)
}

// ByKind returns the recorded findings of one kind.
func (s *CollectorSink) ByKind(kind DiagnosticKind) []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Diagnostic
	for _, d := range s.diags {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// TeeSink forwards each finding to every wrapped sink.
type TeeSink []DiagnosticSink

func (s TeeSink) Report(d Diagnostic) {
	for _, sink := range s {
		sink.Report(d)
	}
}
