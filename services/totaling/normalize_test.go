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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tidewater/services/totaling/dataset"
)

func TestNormalize(t *testing.T) {
	c := combineComponents(t, testParams, NopSink{},
		newComponent(t, compSpec{
			path:   "out/icesheets/AIS.twd",
			years:  []int64{2020, 2030, 2040},
			values: []float64{1, 2, 3, 4, 5, 6},
			attrs:  map[string]string{"scenario": "ssp585"},
		}),
		newComponent(t, compSpec{
			path:   "out/glaciers/glaciers.twd",
			years:  []int64{2020, 2030, 2040},
			values: []float64{10, 20, 30, 40, 50, 60},
		}),
	)

	n, err := Normalize(context.Background(), c)
	require.NoError(t, err)

	t.Run("metadata axes dropped", func(t *testing.T) {
		for _, dim := range []string{DimYearStep, DimStartYear, DimEndYear} {
			assert.False(t, n.DS.HasDim(dim), "axis %s", dim)
		}
		// The combined dataset keeps them; normalization works on a copy.
		for _, dim := range []string{DimYearStep, DimStartYear, DimEndYear} {
			assert.True(t, c.DS.HasDim(dim), "axis %s", dim)
		}
	})

	t.Run("spatial coordinates promoted", func(t *testing.T) {
		for _, name := range []string{VarLat, VarLon} {
			_, stillVar := n.DS.Var(name)
			assert.False(t, stillVar, "%s must leave data-variable role", name)

			v, ok := n.DS.Coord(name)
			require.True(t, ok, "%s must be a coordinate", name)
			assert.Equal(t, []string{DimLocations}, v.Dims())
			assert.Equal(t, dataset.Float32, v.DType())
		}
		assert.Equal(t, []float64{10, 11}, floats(t, materializeVar(t, n.DS, VarLat)))
		assert.Equal(t, []float64{100, 101}, floats(t, materializeVar(t, n.DS, VarLon)))
	})

	t.Run("provenance attributes", func(t *testing.T) {
		assert.Equal(t, "icesheets/AIS", n.DS.Attrs()["cube 1"])
		assert.Equal(t, "glaciers/glaciers", n.DS.Attrs()["cube 2"])
		assert.Equal(t, "ssp585", n.DS.Attrs()["scenario"])
	})
}

func TestNormalizeDetachesFirstCoveringFile(t *testing.T) {
	c := combineComponents(t, testParams, NopSink{},
		newComponent(t, compSpec{
			path:   "out/a/a.twd",
			years:  []int64{2020, 2030, 2040},
			locs:   []int64{0, 1},
			lat:    []float64{10.5, -33.25},
			values: []float64{1, 2, 3, 4, 5, 6},
		}),
		newComponent(t, compSpec{
			path:   "out/b/b.twd",
			years:  []int64{2020, 2030, 2040},
			locs:   []int64{1, 2},
			lat:    []float64{-33.25, 47},
			values: []float64{10, 20, 30, 40, 50, 60},
		}),
	)

	n, err := Normalize(context.Background(), c)
	require.NoError(t, err)

	// Location 0 only exists in file a, location 2 only in file b, and both
	// cover location 1. Each location takes its first covering file's value.
	assert.Equal(t, []float64{10.5, -33.25, 47}, floats(t, materializeVar(t, n.DS, VarLat)))
	assert.Equal(t, []float64{100, 101, 102}, floats(t, materializeVar(t, n.DS, VarLon)))
}
