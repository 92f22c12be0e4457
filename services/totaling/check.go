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
	"sort"
	"strings"

	"github.com/AleutianAI/tidewater/services/totaling/dataset"
)

// Policy holds the run-level switches for behavior the pipeline leaves
// configurable.
type Policy struct {
	// StrictSteps escalates cross-file step divergence from a diagnostic
	// to a fatal error.
	StrictSteps bool

	// MissingAsZero makes outer-join gaps contribute zero to the total
	// instead of propagating the missing marker.
	MissingAsZero bool
}

// Check runs the cross-file consistency checks on a combined dataset.
//
// Declared-metadata checks compare the per-file observed year step and
// bounds: divergence is a diagnostic, escalated to fatal for steps under
// Policy.StrictSteps. Invariant-coordinate checks compare lat and lon per
// location across every file that covers the location; any conflict is
// fatal. A missing-marker entry means the file does not cover the location
// and is never a conflict.
func Check(ctx context.Context, c *Combined, pol Policy, sink DiagnosticSink) error {
	if steps := distinctOf(c.Steps); len(steps) > 1 {
		sink.Report(Diagnostic{
			Kind: DiagnosticStepDivergence,
			Message: fmt.Sprintf("observed year steps diverge across files: %s (check each module's step configuration)",
				perFile(c.Tags, c.Steps)),
		})
		if pol.StrictSteps {
			return &NonUniformStepError{Steps: steps}
		}
	}
	if starts := distinctOf(c.Starts); len(starts) > 1 {
		sink.Report(Diagnostic{
			Kind:    DiagnosticBoundsDivergence,
			Message: fmt.Sprintf("observed start years diverge across files: %s", perFile(c.Tags, c.Starts)),
		})
	}
	if ends := distinctOf(c.Ends); len(ends) > 1 {
		sink.Report(Diagnostic{
			Kind:    DiagnosticBoundsDivergence,
			Message: fmt.Sprintf("observed end years diverge across files: %s", perFile(c.Tags, c.Ends)),
		})
	}

	locations, err := c.DS.IndexLabels(ctx, DimLocations)
	if err != nil {
		return fmt.Errorf("read location labels: %w", err)
	}
	for _, field := range []string{VarLat, VarLon} {
		v, ok := c.DS.Var(field)
		if !ok {
			continue
		}
		if dims := v.Dims(); len(dims) != 2 || dims[0] != DimFile || dims[1] != DimLocations {
			return &MergeError{Name: field, Reason: fmt.Sprintf("axes %v, want [%s %s]", dims, DimFile, DimLocations)}
		}
		buf, err := v.Materialize(ctx)
		if err != nil {
			return fmt.Errorf("materialize %s: %w", field, err)
		}
		files := v.Len(DimFile)
		for j, loc := range locations {
			vals := coveredValues(buf, files, len(locations), j)
			if len(vals) > 1 {
				return &CoordinateInconsistencyError{Field: field, Location: loc, Values: vals}
			}
		}
	}
	return nil
}

// coveredValues collects the distinct non-missing values of one location
// column, ascending.
func coveredValues(buf *dataset.Buffer, files, locations, j int) []float64 {
	var vals []float64
	for i := 0; i < files; i++ {
		idx := i*locations + j
		if buf.IsMissing(idx) {
			continue
		}
		v := buf.Float(idx)
		known := false
		for _, have := range vals {
			if have == v {
				known = true
				break
			}
		}
		if !known {
			vals = append(vals, v)
		}
	}
	sort.Float64s(vals)
	return vals
}

func distinctOf(vals []int64) []int64 {
	seen := make(map[int64]struct{}, len(vals))
	var out []int64
	for _, v := range vals {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sortInt64s(out)
	return out
}

// perFile renders tag=value pairs in file order for diagnostics.
func perFile(tags []ProvenanceTag, vals []int64) string {
	pairs := make([]string, len(tags))
	for i, tag := range tags {
		pairs[i] = fmt.Sprintf("%s=%d", tag, vals[i])
	}
	return strings.Join(pairs, ", ")
}
