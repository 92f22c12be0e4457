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
	"fmt"

	"github.com/AleutianAI/tidewater/services/totaling/dataset"
	"github.com/AleutianAI/tidewater/services/totaling/twdfile"
)

// Axis and variable names shared by every component projection file.
const (
	DimYears     = "years"
	DimLocations = "locations"

	// DimFile is the synthetic axis the pipeline adds; one entry per
	// input file, labeled with its ProvenanceTag.
	DimFile = "file"

	// Per-file temporal metadata axes, length 1 after tagging.
	DimYearStep  = "year_step"
	DimStartYear = "start_year"
	DimEndYear   = "end_year"

	VarLat = "lat"
	VarLon = "lon"

	// DefaultTargetVariable is the variable summed across files unless
	// configured otherwise.
	DefaultTargetVariable = "sea_level_change"
)

// Component is one input file's dataset plus the literal source path the
// provenance tag derives from. Its arrays stay chunk-backed on disk until
// materialized, so the Component must stay open while any downstream stage
// can still evaluate them.
type Component struct {
	// Path is the input path as given by the caller.
	Path string

	// DS holds the file's contents with axis labels and attrs preserved.
	DS *dataset.Dataset

	src *twdfile.File
}

// Close releases the underlying file handle.
func (c *Component) Close() error {
	if c.src == nil {
		return nil
	}
	return c.src.Close()
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

type openConfig struct {
	target string
	cache  dataset.ChunkCache
}

// WithTargetVariable overrides the variable the pipeline will total.
func WithTargetVariable(name string) OpenOption {
	return func(c *openConfig) {
		if name != "" {
			c.target = name
		}
	}
}

// WithChunkCache shares a decoded-chunk cache across components.
func WithChunkCache(cache dataset.ChunkCache) OpenOption {
	return func(c *openConfig) { c.cache = cache }
}

// Open reads one component projection file lazily: header and metadata now,
// variable data on demand. It validates that the axes and variables every
// later stage depends on are present: a years axis with integer labels, the
// target variable over years, and lat/lon keyed by locations. Spatial
// coordinates stored in coordinate role are moved to data-variable role so
// the rest of the pipeline sees one shape of input.
func Open(path string, opts ...OpenOption) (*Component, error) {
	cfg := openConfig{target: DefaultTargetVariable}
	for _, opt := range opts {
		opt(&cfg)
	}

	var fileOpts []twdfile.Option
	if cfg.cache != nil {
		fileOpts = append(fileOpts, twdfile.WithCache(cfg.cache))
	}
	src, err := twdfile.Open(path, fileOpts...)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	ds, err := src.Dataset()
	if err != nil {
		src.Close()
		return nil, &ReadError{Path: path, Err: err}
	}
	if err := validateComponent(ds, cfg.target); err != nil {
		src.Close()
		return nil, &ReadError{Path: path, Err: err}
	}

	// Inputs disagree on whether lat/lon are coordinates or variables.
	// The pipeline treats them as variables until the Normalizer promotes
	// them back.
	for _, name := range []string{VarLat, VarLon} {
		if c, ok := ds.Coord(name); ok {
			ds.DropCoord(name)
			if err := ds.SetVar(name, c); err != nil {
				src.Close()
				return nil, &ReadError{Path: path, Err: err}
			}
		}
	}

	return &Component{Path: path, DS: ds, src: src}, nil
}

func validateComponent(ds *dataset.Dataset, target string) error {
	for _, dim := range []string{DimYears, DimLocations} {
		if !ds.HasDim(dim) {
			return fmt.Errorf("no %q axis", dim)
		}
		c, ok := ds.Coord(dim)
		if !ok {
			return fmt.Errorf("axis %q has no labels", dim)
		}
		if c.DType() != dataset.Int64 {
			return fmt.Errorf("axis %q labels are %s, want i64", dim, c.DType())
		}
	}

	v, ok := ds.Var(target)
	if !ok {
		if _, isCoord := ds.Coord(target); isCoord {
			return fmt.Errorf("target variable %q is a coordinate", target)
		}
		return fmt.Errorf("no target variable %q", target)
	}
	if !v.HasDim(DimYears) {
		return fmt.Errorf("target variable %q does not vary over %q", target, DimYears)
	}
	if !v.DType().IsFloat() {
		return fmt.Errorf("target variable %q is %s, want a float type", target, v.DType())
	}

	for _, name := range []string{VarLat, VarLon} {
		f, ok := ds.Var(name)
		if !ok {
			f, ok = ds.Coord(name)
		}
		if !ok {
			return fmt.Errorf("no spatial coordinate field %q", name)
		}
		if dims := f.Dims(); len(dims) != 1 || dims[0] != DimLocations {
			return fmt.Errorf("%q must be keyed by %q alone, has %v", name, DimLocations, dims)
		}
		if !f.DType().IsFloat() {
			return fmt.Errorf("%q is %s, want a float type", name, f.DType())
		}
	}

	for _, dim := range []string{DimFile, DimYearStep, DimStartYear, DimEndYear} {
		if ds.HasDim(dim) {
			return fmt.Errorf("reserved axis %q already present", dim)
		}
	}
	return nil
}
