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

	"github.com/AleutianAI/tidewater/services/totaling/dataset"
)

// Combined is the outer join of the tagged components along the file axis.
// Data variables are stacked lazily; nothing has been materialized. The
// year_step/start_year/end_year axes hold the distinct observed values,
// ascending; per-file values stay available in file order.
type Combined struct {
	DS   *dataset.Dataset
	Tags []ProvenanceTag

	// Per-file observations, in file order.
	Steps  []int64
	Starts []int64
	Ends   []int64
}

// Combine merges the tagged components in input order along the file axis.
// Secondary axes that differ in coverage are unioned with labels ascending;
// entries a file does not cover are filled with the missing marker. A
// variable absent from some files is missing-filled for those files.
//
// The join is structural only. It fails with a *MergeError when inputs
// declare different dtypes for the same axis or variable, or the same
// variable over different axis tuples; value-level consistency is the
// Checker's job.
func Combine(ctx context.Context, tagged ...*Tagged) (*Combined, error) {
	if len(tagged) == 0 {
		return nil, ErrNoInputs
	}

	type axis struct {
		name    string
		labeled bool
		length  int             // unlabeled axes: shared fixed length
		union   []int64         // labeled axes: sorted distinct labels
		pos     map[int64]int   // label -> union position
		perFile map[int][]int64 // file index -> that file's labels
	}
	var axes []*axis
	byName := make(map[string]*axis)

	// First pass: classify every axis except file across all inputs.
	for i, t := range tagged {
		for _, dim := range t.DS.Dims() {
			if dim == DimFile {
				continue
			}
			n, _ := t.DS.Dim(dim)
			_, labeled := t.DS.Coord(dim)
			ax, ok := byName[dim]
			if !ok {
				ax = &axis{name: dim, labeled: labeled, length: n, perFile: make(map[int][]int64)}
				byName[dim] = ax
				axes = append(axes, ax)
			}
			if ax.labeled != labeled {
				return nil, &MergeError{Name: dim, Reason: "labeled in some files, unlabeled in others"}
			}
			if !labeled {
				if ax.length != n {
					return nil, &MergeError{Name: dim, Reason: fmt.Sprintf("unlabeled axis lengths differ: %d != %d", n, ax.length)}
				}
				continue
			}
			c, _ := t.DS.Coord(dim)
			if c.DType() != dataset.Int64 {
				return nil, &MergeError{Name: dim, Reason: fmt.Sprintf("labels are %s, want i64", c.DType())}
			}
			labels, err := t.DS.IndexLabels(ctx, dim)
			if err != nil {
				return nil, &ReadError{Path: string(t.Tag), Err: err}
			}
			ax.perFile[i] = labels
		}
	}

	for _, ax := range axes {
		if !ax.labeled {
			continue
		}
		ax.union = unionInt64(ax.perFile)
		ax.pos = make(map[int64]int, len(ax.union))
		for i, v := range ax.union {
			ax.pos[v] = i
		}
	}

	out := dataset.New()
	if err := out.AddDim(DimFile, len(tagged)); err != nil {
		return nil, &MergeError{Name: DimFile, Reason: err.Error()}
	}
	tags := make([]ProvenanceTag, len(tagged))
	labels := make([]string, len(tagged))
	for i, t := range tagged {
		tags[i] = t.Tag
		labels[i] = string(t.Tag)
	}
	fileLabels, err := dataset.NewStrings([]int{len(tagged)}, labels)
	if err != nil {
		return nil, &MergeError{Name: DimFile, Reason: err.Error()}
	}
	fileCoord, err := dataset.NewVariable([]string{DimFile}, fileLabels, nil)
	if err != nil {
		return nil, &MergeError{Name: DimFile, Reason: err.Error()}
	}
	for _, ax := range axes {
		n := ax.length
		if ax.labeled {
			n = len(ax.union)
		}
		if err := out.AddDim(ax.name, n); err != nil {
			return nil, &MergeError{Name: ax.name, Reason: err.Error()}
		}
		if !ax.labeled {
			continue
		}
		buf, err := dataset.NewInts([]int{len(ax.union)}, ax.union)
		if err != nil {
			return nil, &MergeError{Name: ax.name, Reason: err.Error()}
		}
		v, err := dataset.NewVariable([]string{ax.name}, buf, nil)
		if err != nil {
			return nil, &MergeError{Name: ax.name, Reason: err.Error()}
		}
		if err := out.SetCoord(ax.name, v); err != nil {
			return nil, &MergeError{Name: ax.name, Reason: err.Error()}
		}
	}
	if err := out.SetCoord(DimFile, fileCoord); err != nil {
		return nil, &MergeError{Name: DimFile, Reason: err.Error()}
	}

	// takeFor maps a file's axis labels onto the union, -1 for gaps.
	takeFor := func(fileIdx int, dims []string) map[string][]int {
		take := make(map[string][]int)
		for _, dim := range dims {
			ax := byName[dim]
			if ax == nil || !ax.labeled {
				continue
			}
			have := make(map[int64]int, len(ax.perFile[fileIdx]))
			for i, v := range ax.perFile[fileIdx] {
				have[v] = i
			}
			idxs := make([]int, len(ax.union))
			for i, v := range ax.union {
				if j, ok := have[v]; ok {
					idxs[i] = j
				} else {
					idxs[i] = -1
				}
			}
			take[dim] = idxs
		}
		return take
	}

	// A variable absent from a file is missing-filled for that file's
	// slot.
	varOrder, varSpec, err := unifyVariables(tagged)
	if err != nil {
		return nil, err
	}
	for _, name := range varOrder {
		spec := varSpec[name]
		tailDims := spec.dims[1:] // without the per-file length-1 file axis
		unionShape := make([]int, len(tailDims))
		for k, dim := range tailDims {
			unionShape[k], _ = out.Dim(dim)
		}

		parts := make([]dataset.Array, len(tagged))
		for i, t := range tagged {
			v, ok := t.DS.Var(name)
			if !ok {
				fill, err := dataset.Missing(spec.dtype, unionShape)
				if err != nil {
					return nil, &MergeError{Name: name, Reason: fmt.Sprintf("absent from %s: %v", t.Tag, err)}
				}
				parts[i] = fill
				continue
			}
			dv, err := v.DropLeadingDim()
			if err != nil {
				return nil, &MergeError{Name: name, Reason: err.Error()}
			}
			rv, err := dv.Take(takeFor(i, tailDims))
			if err != nil {
				return nil, &MergeError{Name: name, Reason: err.Error()}
			}
			parts[i] = rv.Data()
		}
		stacked, err := dataset.Stack(parts...)
		if err != nil {
			return nil, &MergeError{Name: name, Reason: err.Error()}
		}
		v, err := dataset.NewVariable(spec.dims, stacked, spec.attrs)
		if err != nil {
			return nil, &MergeError{Name: name, Reason: err.Error()}
		}
		if err := out.SetVar(name, v); err != nil {
			return nil, &MergeError{Name: name, Reason: err.Error()}
		}
	}

	out.ReplaceAttrs(tagged[0].DS.Attrs())

	c := &Combined{DS: out, Tags: tags}
	for _, t := range tagged {
		c.Steps = append(c.Steps, t.Step)
		c.Starts = append(c.Starts, t.Start)
		c.Ends = append(c.Ends, t.End)
	}
	return c, nil
}

type varShape struct {
	dims  []string
	dtype dataset.DType
	attrs map[string]string
}

// unifyVariables checks that every input declares each shared variable over
// the same axis tuple with the same dtype. Names come back sorted; attrs are
// first-seen.
func unifyVariables(tagged []*Tagged) ([]string, map[string]varShape, error) {
	var order []string
	spec := make(map[string]varShape)
	for _, t := range tagged {
		for _, name := range t.DS.VarNames() {
			v, _ := t.DS.Var(name)
			dims := v.Dims()
			if len(dims) == 0 || dims[0] != DimFile {
				return nil, nil, &MergeError{Name: name, Reason: "variable is not tagged with a file axis"}
			}
			have, ok := spec[name]
			if !ok {
				spec[name] = varShape{dims: dims, dtype: v.DType(), attrs: v.Attrs()}
				order = append(order, name)
				continue
			}
			if !equalStrings(have.dims, dims) {
				return nil, nil, &MergeError{Name: name, Reason: fmt.Sprintf("axis tuples differ: %v != %v", dims, have.dims)}
			}
			if have.dtype != v.DType() {
				return nil, nil, &MergeError{Name: name, Reason: fmt.Sprintf("dtypes differ: %s != %s", v.DType(), have.dtype)}
			}
		}
	}
	sort.Strings(order)
	return order, spec, nil
}

func unionInt64(perFile map[int][]int64) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, labels := range perFile {
		for _, v := range labels {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	sortInt64s(out)
	return out
}

func sortInt64s(vals []int64) {
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
