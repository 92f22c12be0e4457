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
	"math"

	"github.com/AleutianAI/tidewater/services/totaling/dataset"
)

// Normalized is the combined dataset after coordinate cleanup: scalar
// metadata axes removed, lat/lon detached from the file axis and promoted to
// float32 coordinates, provenance attributes attached.
type Normalized struct {
	DS   *dataset.Dataset
	Tags []ProvenanceTag
}

// Normalize prepares a checked combined dataset for aggregation. The
// year_step/start_year/end_year axes are dropped (the Checker has consumed
// them). lat and lon are downcast to float32, materialized eagerly (they are
// small and reread repeatedly downstream), detached from the file axis by
// taking each location's value from the first file that covers it (the
// Checker proved invariance, so any covering file would do), and promoted to
// coordinates. The provenance listing "cube 1".."cube N" goes onto the
// dataset attributes in file order.
//
// This is the pipeline's one mandatory eager point; everything else stays
// lazy until the Writer.
func Normalize(ctx context.Context, c *Combined) (*Normalized, error) {
	ds := c.DS.Copy()

	for _, dim := range []string{DimYearStep, DimStartYear, DimEndYear} {
		if !ds.HasDim(dim) {
			continue
		}
		if err := ds.DropDim(dim); err != nil {
			return nil, fmt.Errorf("drop %s axis: %w", dim, err)
		}
	}

	for _, field := range []string{VarLat, VarLon} {
		v, ok := ds.Var(field)
		if !ok {
			continue
		}
		detached, err := detachFromFiles(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("normalize %s: %w", field, err)
		}
		ds.DropVar(field)
		if err := ds.SetVar(field, detached); err != nil {
			return nil, fmt.Errorf("normalize %s: %w", field, err)
		}
		if err := ds.PromoteToCoord(field); err != nil {
			return nil, fmt.Errorf("normalize %s: %w", field, err)
		}
	}

	for i, tag := range c.Tags {
		ds.SetAttr(fmt.Sprintf("cube %d", i+1), string(tag))
	}

	return &Normalized{DS: ds, Tags: c.Tags}, nil
}

// detachFromFiles collapses a [file, locations] field to [locations],
// keeping each location's first covering value, downcast to float32.
// Locations no file covers stay missing.
func detachFromFiles(ctx context.Context, v *dataset.Variable) (*dataset.Variable, error) {
	if dims := v.Dims(); len(dims) != 2 || dims[0] != DimFile || dims[1] != DimLocations {
		return nil, fmt.Errorf("axes %v, want [%s %s]", dims, DimFile, DimLocations)
	}
	buf, err := v.Materialize(ctx)
	if err != nil {
		return nil, err
	}
	files := v.Len(DimFile)
	locations := v.Len(DimLocations)

	out := dataset.NewBuffer(dataset.Float32, []int{locations})
	for j := 0; j < locations; j++ {
		val := math.NaN()
		for i := 0; i < files; i++ {
			if idx := i*locations + j; !buf.IsMissing(idx) {
				val = buf.Float(idx)
				break
			}
		}
		out.SetFloat(j, val)
	}
	return dataset.NewVariable([]string{DimLocations}, out, v.Attrs())
}
