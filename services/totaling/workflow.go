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
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/tidewater/pkg/validation"
	"github.com/AleutianAI/tidewater/services/totaling/dataset"
)

var tracer = otel.Tracer("tidewater.totaling")

// Config is a validated totaling run description.
type Config struct {
	// Name identifies the workflow in logs and reports. Cosmetic only.
	Name string

	// Items are the ordered input paths or glob patterns.
	Items []string

	// Params is the expected temporal axis.
	Params Params

	// OutputPath receives the totaled dataset. Required for Run, unused
	// by DryRun.
	OutputPath string

	// TargetVariable is the variable summed across files. Empty means
	// DefaultTargetVariable.
	TargetVariable string

	Policy   Policy
	Encoding Encoding
}

// Workflow executes the totaling pipeline for one configuration.
type Workflow struct {
	cfg    Config
	logger *slog.Logger
	sink   DiagnosticSink
	cache  dataset.ChunkCache
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the structured logger. Default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithSink sets the diagnostic sink findings are forwarded to, in addition
// to the run report. Default discards.
func WithSink(sink DiagnosticSink) Option {
	return func(w *Workflow) {
		if sink != nil {
			w.sink = sink
		}
	}
}

// WithCache shares a decoded-chunk cache across the run's input files.
func WithCache(cache dataset.ChunkCache) Option {
	return func(w *Workflow) { w.cache = cache }
}

// New validates the configuration and builds a Workflow.
func New(cfg Config, opts ...Option) (*Workflow, error) {
	if err := validation.ValidateWorkflowName(cfg.Name); err != nil {
		return nil, err
	}
	if err := validation.ValidateYearParams(cfg.Params.PyearStart, cfg.Params.PyearEnd, cfg.Params.PyearStep); err != nil {
		return nil, err
	}
	if len(cfg.Items) == 0 {
		return nil, ErrNoInputs
	}
	if cfg.TargetVariable == "" {
		cfg.TargetVariable = DefaultTargetVariable
	}
	if err := validation.ValidateVariableName(cfg.TargetVariable); err != nil {
		return nil, err
	}

	w := &Workflow{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		sink:   NopSink{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// FileReport describes one input's contribution to a run.
type FileReport struct {
	Path  string `json:"path"`
	Tag   string `json:"tag"`
	Step  int64  `json:"step"`
	Start int64  `json:"start_year"`
	End   int64  `json:"end_year"`
}

// RunReport summarizes a completed run.
type RunReport struct {
	RunID       string        `json:"run_id"`
	Name        string        `json:"name"`
	Files       []FileReport  `json:"files"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty"`
	Cells       int           `json:"cells_totaled"`
	OutputPath  string        `json:"output_path,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

// Run executes the full pipeline and writes the totaled dataset to the
// configured output path. Fatal errors abort before anything is written.
func (w *Workflow) Run(ctx context.Context) (*RunReport, error) {
	if w.cfg.OutputPath == "" {
		return nil, fmt.Errorf("no output path configured")
	}
	return w.run(ctx, true)
}

// DryRun executes every stage except the write. Used to validate inputs.
func (w *Workflow) DryRun(ctx context.Context) (*RunReport, error) {
	return w.run(ctx, false)
}

func (w *Workflow) run(ctx context.Context, write bool) (*RunReport, error) {
	started := time.Now()
	runID := uuid.NewString()[:12] // 48 bits of entropy
	collector := &CollectorSink{}
	sink := TeeSink{collector, w.sink}

	ctx, span := tracer.Start(ctx, "totaling.Run",
		trace.WithAttributes(
			attribute.String("workflow.name", w.cfg.Name),
			attribute.String("workflow.run_id", runID),
			attribute.Int("workflow.items", len(w.cfg.Items)),
			attribute.Bool("workflow.dry_run", !write),
		),
	)
	defer span.End()

	w.logger.Info("totaling started",
		slog.String("workflow", w.cfg.Name),
		slog.String("run_id", runID),
		slog.Int("items", len(w.cfg.Items)),
	)

	fail := func(stage string, err error) (*RunReport, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		recordRunFailure(ctx, stage)
		w.logger.Error("totaling failed",
			slog.String("workflow", w.cfg.Name),
			slog.String("run_id", runID),
			slog.String("stage", stage),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("%s: %w", stage, err)
	}

	paths, err := ExpandItems(w.cfg.Items)
	if err != nil {
		return fail("discover", err)
	}
	if len(paths) == 0 {
		return fail("discover", ErrNoInputs)
	}

	var comps []*Component
	defer func() {
		for _, c := range comps {
			c.Close()
		}
	}()
	if err := w.stage(ctx, "totaling.open", func(ctx context.Context) error {
		for _, p := range paths {
			comp, err := Open(p,
				WithTargetVariable(w.cfg.TargetVariable),
				WithChunkCache(w.cache))
			if err != nil {
				return err
			}
			comps = append(comps, comp)
			w.logger.Debug("opened component", slog.String("path", p))
		}
		return nil
	}); err != nil {
		return fail("open", err)
	}

	tagged := make([]*Tagged, 0, len(comps))
	if err := w.stage(ctx, "totaling.preprocess", func(ctx context.Context) error {
		for _, comp := range comps {
			t, err := Preprocess(ctx, comp, w.cfg.Params, sink)
			if err != nil {
				return err
			}
			tagged = append(tagged, t)
			w.logger.Debug("tagged component",
				slog.String("tag", string(t.Tag)),
				slog.Int64("year_step", t.Step),
			)
		}
		return nil
	}); err != nil {
		return fail("preprocess", err)
	}

	var combined *Combined
	if err := w.stage(ctx, "totaling.combine", func(ctx context.Context) error {
		var err error
		combined, err = Combine(ctx, tagged...)
		return err
	}); err != nil {
		return fail("combine", err)
	}

	if err := w.stage(ctx, "totaling.check", func(ctx context.Context) error {
		return Check(ctx, combined, w.cfg.Policy, sink)
	}); err != nil {
		return fail("check", err)
	}

	var normalized *Normalized
	if err := w.stage(ctx, "totaling.normalize", func(ctx context.Context) error {
		var err error
		normalized, err = Normalize(ctx, combined)
		return err
	}); err != nil {
		return fail("normalize", err)
	}

	var totaled *Totaled
	if err := w.stage(ctx, "totaling.total", func(ctx context.Context) error {
		var err error
		totaled, err = Total(normalized, w.cfg.TargetVariable, w.cfg.Policy, sink)
		return err
	}); err != nil {
		return fail("total", err)
	}

	outputPath := ""
	if write {
		if err := w.stage(ctx, "totaling.write", func(ctx context.Context) error {
			return Write(ctx, totaled, w.cfg.OutputPath, w.cfg.Encoding)
		}); err != nil {
			return fail("write", err)
		}
		outputPath = w.cfg.OutputPath
	}

	report := &RunReport{
		RunID:       runID,
		Name:        w.cfg.Name,
		Files:       fileReports(paths, tagged),
		Diagnostics: collector.All(),
		Cells:       totaled.Cells(),
		OutputPath:  outputPath,
		Duration:    time.Since(started),
	}
	span.SetAttributes(attribute.Int("workflow.diagnostics", len(report.Diagnostics)))
	recordRunSuccess(ctx, report)
	w.logger.Info("totaling complete",
		slog.String("workflow", w.cfg.Name),
		slog.String("run_id", runID),
		slog.Int("files", len(report.Files)),
		slog.Int("diagnostics", len(report.Diagnostics)),
		slog.String("output", outputPath),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

// stage wraps one pipeline stage in a child span.
func (w *Workflow) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name)
		return err
	}
	return nil
}

func fileReports(paths []string, tagged []*Tagged) []FileReport {
	out := make([]FileReport, len(tagged))
	for i, t := range tagged {
		out[i] = FileReport{
			Path:  paths[i],
			Tag:   string(t.Tag),
			Step:  t.Step,
			Start: t.Start,
			End:   t.End,
		}
	}
	return out
}
