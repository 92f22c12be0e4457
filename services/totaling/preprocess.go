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

	"github.com/AleutianAI/tidewater/services/totaling/dataset"
)

// Params is the caller's expected temporal axis. Validated upstream:
// PyearStart < PyearEnd and PyearStep > 0.
type Params struct {
	PyearStart int
	PyearEnd   int
	PyearStep  int
}

// Tagged is one component after validation: years subset to the requested
// range where needed, a length-1 file axis labeled with the provenance tag,
// and length-1 year_step/start_year/end_year axes recording what was
// observed.
type Tagged struct {
	Tag ProvenanceTag
	DS  *dataset.Dataset

	// Observed on the final (possibly subset) years axis. Step is 0 when
	// the axis has fewer than two labels.
	Step  int64
	Start int64
	End   int64
}

// Preprocess validates one component against the requested temporal axis and
// tags it for combination:
//
//  1. A years axis whose bounds miss the requested start/end reports one
//     temporal-bounds diagnostic and is subset to the inclusive range. An
//     empty result is allowed; it surfaces downstream.
//  2. Observed year steps that are not the single requested step report one
//     step-mismatch diagnostic. Report only.
//  3. The file axis is prepended to every data variable, labeled with the
//     provenance tag.
//  4. The step is recomputed on the final axis. More than one distinct step
//     is fatal.
func Preprocess(ctx context.Context, comp *Component, p Params, sink DiagnosticSink) (*Tagged, error) {
	years, err := comp.DS.IndexLabels(ctx, DimYears)
	if err != nil {
		return nil, &ReadError{Path: comp.Path, Err: err}
	}

	ds := comp.DS
	if len(years) == 0 {
		sink.Report(Diagnostic{
			Kind: DiagnosticTemporalBounds,
			Path: comp.Path,
			Message: fmt.Sprintf("%s: years axis is empty, requested [%d, %d]",
				comp.Path, p.PyearStart, p.PyearEnd),
		})
	} else if lo, hi := bounds(years); lo != int64(p.PyearStart) || hi != int64(p.PyearEnd) {
		sink.Report(Diagnostic{
			Kind: DiagnosticTemporalBounds,
			Path: comp.Path,
			Message: fmt.Sprintf("%s: years axis spans [%d, %d], requested [%d, %d]; subsetting to the requested range",
				comp.Path, lo, hi, p.PyearStart, p.PyearEnd),
		})
		if ds, err = ds.SelRange(ctx, DimYears, int64(p.PyearStart), int64(p.PyearEnd)); err != nil {
			return nil, &ReadError{Path: comp.Path, Err: err}
		}
		years = keepInRange(years, int64(p.PyearStart), int64(p.PyearEnd))
	}

	if len(years) >= 2 {
		steps := distinctSteps(years)
		if len(steps) != 1 || steps[0] != int64(p.PyearStep) {
			sink.Report(Diagnostic{
				Kind: DiagnosticStepMismatch,
				Path: comp.Path,
				Message: fmt.Sprintf("%s: observed year steps %v do not match the requested step %d",
					comp.Path, steps, p.PyearStep),
			})
		}
	}

	tag := TagFor(comp.Path)
	out := ds.Copy()
	if err := out.AddDim(DimFile, 1); err != nil {
		return nil, &MergeError{Name: DimFile, Reason: err.Error()}
	}
	fileLabels, err := dataset.NewStrings([]int{1}, []string{string(tag)})
	if err != nil {
		return nil, &MergeError{Name: DimFile, Reason: err.Error()}
	}
	fileCoord, err := dataset.NewVariable([]string{DimFile}, fileLabels, nil)
	if err != nil {
		return nil, &MergeError{Name: DimFile, Reason: err.Error()}
	}
	if err := out.SetCoord(DimFile, fileCoord); err != nil {
		return nil, &MergeError{Name: DimFile, Reason: err.Error()}
	}
	for _, name := range out.VarNames() {
		v, _ := out.Var(name)
		pv, err := v.PrependDim(DimFile)
		if err != nil {
			return nil, &MergeError{Name: name, Reason: err.Error()}
		}
		if err := out.SetVar(name, pv); err != nil {
			return nil, &MergeError{Name: name, Reason: err.Error()}
		}
	}

	// Recompute on the final axis. Uniformity is a hard invariant here;
	// the earlier check only compared against the caller's expectation.
	var step int64
	if len(years) >= 2 {
		steps := distinctSteps(years)
		if len(steps) != 1 {
			return nil, &NonUniformStepError{Path: comp.Path, Steps: steps}
		}
		step = steps[0]
	}
	var start, end int64
	if len(years) > 0 {
		start, end = bounds(years)
	}

	scalarAxes := []struct {
		dim   string
		label int64
	}{
		{DimYearStep, step},
		{DimStartYear, start},
		{DimEndYear, end},
	}
	for _, ax := range scalarAxes {
		if err := addScalarAxis(out, ax.dim, ax.label); err != nil {
			return nil, &MergeError{Name: ax.dim, Reason: err.Error()}
		}
	}

	return &Tagged{Tag: tag, DS: out, Step: step, Start: start, End: end}, nil
}

// addScalarAxis declares a length-1 dimension carrying a single int64 label.
func addScalarAxis(ds *dataset.Dataset, dim string, label int64) error {
	if err := ds.AddDim(dim, 1); err != nil {
		return err
	}
	buf, err := dataset.NewInts([]int{1}, []int64{label})
	if err != nil {
		return err
	}
	v, err := dataset.NewVariable([]string{dim}, buf, nil)
	if err != nil {
		return err
	}
	return ds.SetCoord(dim, v)
}

func bounds(labels []int64) (lo, hi int64) {
	lo, hi = labels[0], labels[0]
	for _, v := range labels[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func keepInRange(labels []int64, lo, hi int64) []int64 {
	out := make([]int64, 0, len(labels))
	for _, v := range labels {
		if v >= lo && v <= hi {
			out = append(out, v)
		}
	}
	return out
}

// distinctSteps returns the distinct successive differences, ascending.
func distinctSteps(labels []int64) []int64 {
	seen := make(map[int64]struct{}, 1)
	var out []int64
	for i := 1; i < len(labels); i++ {
		d := labels[i] - labels[i-1]
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	sortInt64s(out)
	return out
}
