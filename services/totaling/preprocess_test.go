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

// compSpec describes an in-memory component for pipeline tests. Zero fields
// get conforming defaults: locations {0, 1}, and lat/lon derived from the
// location labels so components over different location sets still agree
// where they overlap.
type compSpec struct {
	path   string
	years  []int64
	locs   []int64
	lat    []float64
	lon    []float64
	values []float64 // target variable, row-major over [years, locations]
	extra  map[string][]float64
	attrs  map[string]string
}

func newComponent(t *testing.T, s compSpec) *Component {
	t.Helper()
	if s.path == "" {
		s.path = "out/module/projection.twd"
	}
	if s.locs == nil {
		s.locs = []int64{0, 1}
	}
	if s.lat == nil {
		s.lat = make([]float64, len(s.locs))
		for i, loc := range s.locs {
			s.lat[i] = 10 + float64(loc)
		}
	}
	if s.lon == nil {
		s.lon = make([]float64, len(s.locs))
		for i, loc := range s.locs {
			s.lon[i] = 100 + float64(loc)
		}
	}
	require.Len(t, s.values, len(s.years)*len(s.locs))

	ds := dataset.New()
	require.NoError(t, ds.AddDim(DimYears, len(s.years)))
	require.NoError(t, ds.AddDim(DimLocations, len(s.locs)))

	years, err := dataset.NewInts([]int{len(s.years)}, s.years)
	require.NoError(t, err)
	yearsVar, err := dataset.NewVariable([]string{DimYears}, years, nil)
	require.NoError(t, err)
	require.NoError(t, ds.SetCoord(DimYears, yearsVar))

	locs, err := dataset.NewInts([]int{len(s.locs)}, s.locs)
	require.NoError(t, err)
	locsVar, err := dataset.NewVariable([]string{DimLocations}, locs, nil)
	require.NoError(t, err)
	require.NoError(t, ds.SetCoord(DimLocations, locsVar))

	// Open leaves lat and lon in data-variable role; build them that way.
	setFloatVar(t, ds, VarLat, []string{DimLocations}, s.lat, map[string]string{"units": "degrees_north"})
	setFloatVar(t, ds, VarLon, []string{DimLocations}, s.lon, map[string]string{"units": "degrees_east"})
	setFloatVar(t, ds, DefaultTargetVariable, []string{DimYears, DimLocations}, s.values, map[string]string{"units": "mm"})
	for name, vals := range s.extra {
		setFloatVar(t, ds, name, []string{DimYears, DimLocations}, vals, nil)
	}
	for k, v := range s.attrs {
		ds.SetAttr(k, v)
	}
	return &Component{Path: s.path, DS: ds}
}

func setFloatVar(t *testing.T, ds *dataset.Dataset, name string, dims []string, vals []float64, attrs map[string]string) {
	t.Helper()
	shape := make([]int, len(dims))
	for i, dim := range dims {
		n, ok := ds.Dim(dim)
		require.True(t, ok, "dim %s", dim)
		shape[i] = n
	}
	buf, err := dataset.NewFloats(shape, vals)
	require.NoError(t, err)
	v, err := dataset.NewVariable(dims, buf, attrs)
	require.NoError(t, err)
	require.NoError(t, ds.SetVar(name, v))
}

// testParams is the temporal axis most pipeline tests request.
var testParams = Params{PyearStart: 2020, PyearEnd: 2040, PyearStep: 10}

func preprocessAll(t *testing.T, p Params, sink DiagnosticSink, comps ...*Component) []*Tagged {
	t.Helper()
	tagged := make([]*Tagged, len(comps))
	for i, comp := range comps {
		tg, err := Preprocess(context.Background(), comp, p, sink)
		require.NoError(t, err, "preprocess %s", comp.Path)
		tagged[i] = tg
	}
	return tagged
}

func materializeVar(t *testing.T, ds *dataset.Dataset, name string) *dataset.Buffer {
	t.Helper()
	v, ok := ds.Var(name)
	if !ok {
		v, ok = ds.Coord(name)
	}
	require.True(t, ok, "variable %s", name)
	buf, err := v.Materialize(context.Background())
	require.NoError(t, err)
	return buf
}

// floats extracts every value of a buffer, failing on missing entries.
func floats(t *testing.T, buf *dataset.Buffer) []float64 {
	t.Helper()
	out := make([]float64, buf.Len())
	for i := range out {
		require.False(t, buf.IsMissing(i), "missing value at %d", i)
		out[i] = buf.Float(i)
	}
	return out
}

func TestPreprocessConforming(t *testing.T) {
	comp := newComponent(t, compSpec{
		years:  []int64{2020, 2030, 2040},
		values: []float64{1, 2, 3, 4, 5, 6},
	})
	collector := &CollectorSink{}

	tg, err := Preprocess(context.Background(), comp, testParams, collector)
	require.NoError(t, err)
	assert.Equal(t, 0, collector.Count(), "conforming input must report nothing")

	assert.Equal(t, ProvenanceTag("module/projection"), tg.Tag)
	assert.Equal(t, int64(10), tg.Step)
	assert.Equal(t, int64(2020), tg.Start)
	assert.Equal(t, int64(2040), tg.End)

	t.Run("file axis", func(t *testing.T) {
		n, ok := tg.DS.Dim(DimFile)
		require.True(t, ok)
		assert.Equal(t, 1, n)

		labels, err := materializeVar(t, tg.DS, DimFile).Strings()
		require.NoError(t, err)
		assert.Equal(t, []string{"module/projection"}, labels)

		for _, name := range tg.DS.VarNames() {
			v, _ := tg.DS.Var(name)
			assert.Equal(t, DimFile, v.Dims()[0], "variable %s", name)
		}
		v, ok := tg.DS.Var(DefaultTargetVariable)
		require.True(t, ok)
		assert.Equal(t, []string{DimFile, DimYears, DimLocations}, v.Dims())
	})

	t.Run("metadata axes", func(t *testing.T) {
		for dim, want := range map[string]int64{
			DimYearStep:  10,
			DimStartYear: 2020,
			DimEndYear:   2040,
		} {
			labels, err := tg.DS.IndexLabels(context.Background(), dim)
			require.NoError(t, err, "axis %s", dim)
			assert.Equal(t, []int64{want}, labels, "axis %s", dim)
		}
	})

	t.Run("input untouched", func(t *testing.T) {
		assert.False(t, comp.DS.HasDim(DimFile))
		assert.False(t, comp.DS.HasDim(DimYearStep))
	})
}

func TestPreprocessSubsetsToRequestedRange(t *testing.T) {
	years := make([]int64, 12) // 1990..2100
	values := make([]float64, 24)
	for i := range years {
		years[i] = 1990 + int64(i)*10
	}
	for i := range values {
		values[i] = float64(i)
	}
	comp := newComponent(t, compSpec{years: years, values: values})
	collector := &CollectorSink{}

	tg, err := Preprocess(context.Background(), comp, Params{PyearStart: 2020, PyearEnd: 2100, PyearStep: 10}, collector)
	require.NoError(t, err)

	diags := collector.ByKind(DiagnosticTemporalBounds)
	require.Len(t, diags, 1)
	assert.Equal(t, comp.Path, diags[0].Path)
	assert.Equal(t, 1, collector.Count(), "subsetting alone must report exactly once")

	got, err := tg.DS.IndexLabels(context.Background(), DimYears)
	require.NoError(t, err)
	assert.Equal(t, years[3:], got, "subset is inclusive on both bounds")

	// Year 2020 sits at row 3 of the original grid, so the surviving values
	// start at flat offset 6.
	assert.Equal(t, values[6:], floats(t, materializeVar(t, tg.DS, DefaultTargetVariable)))

	assert.Equal(t, int64(10), tg.Step)
	assert.Equal(t, int64(2020), tg.Start)
	assert.Equal(t, int64(2100), tg.End)
}

func TestPreprocessStepMismatchIsReportOnly(t *testing.T) {
	comp := newComponent(t, compSpec{
		years:  []int64{2020, 2030, 2040},
		values: []float64{1, 2, 3, 4, 5, 6},
	})
	collector := &CollectorSink{}

	tg, err := Preprocess(context.Background(), comp, Params{PyearStart: 2020, PyearEnd: 2040, PyearStep: 5}, collector)
	require.NoError(t, err)

	diags := collector.ByKind(DiagnosticStepMismatch)
	require.Len(t, diags, 1)
	assert.Equal(t, comp.Path, diags[0].Path)
	assert.Equal(t, 1, collector.Count())

	// The observed step wins; the requested step was only an expectation.
	assert.Equal(t, int64(10), tg.Step)
}

func TestPreprocessNonUniformStepIsFatal(t *testing.T) {
	comp := newComponent(t, compSpec{
		path:   "out/oceandyn/sterodynamics.twd",
		years:  []int64{2020, 2025, 2040},
		values: []float64{1, 2, 3, 4, 5, 6},
	})

	_, err := Preprocess(context.Background(), comp, testParams, &CollectorSink{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonUniformStep)

	var stepErr *NonUniformStepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, comp.Path, stepErr.Path)
	assert.Equal(t, []int64{5, 15}, stepErr.Steps)
}

func TestPreprocessEmptySubset(t *testing.T) {
	comp := newComponent(t, compSpec{
		years:  []int64{1990, 2000},
		values: []float64{1, 2, 3, 4},
	})
	collector := &CollectorSink{}

	tg, err := Preprocess(context.Background(), comp, testParams, collector)
	require.NoError(t, err, "an empty subset is not fatal here; it surfaces downstream")

	require.Len(t, collector.ByKind(DiagnosticTemporalBounds), 1)

	n, ok := tg.DS.Dim(DimYears)
	require.True(t, ok)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(0), tg.Step)
	assert.Equal(t, int64(0), tg.Start)
	assert.Equal(t, int64(0), tg.End)
}
