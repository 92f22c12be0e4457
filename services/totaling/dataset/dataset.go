// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"context"
	"fmt"
	"sort"
)

// Dataset is a collection of named dimensions, coordinate variables, and
// data variables, plus free-form string attributes. A 1-D coordinate named
// after its dimension is that dimension's index coordinate and carries its
// labels.
//
// Datasets are not safe for concurrent mutation. Pipelines own their
// datasets exclusively, so no locking is provided.
type Dataset struct {
	dimOrder []string
	dims     map[string]int
	coords   map[string]*Variable
	vars     map[string]*Variable
	attrs    map[string]string
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{
		dims:   make(map[string]int),
		coords: make(map[string]*Variable),
		vars:   make(map[string]*Variable),
		attrs:  make(map[string]string),
	}
}

// AddDim declares a dimension. Re-declaring with the same length is a no-op;
// a different length is an error.
func (d *Dataset) AddDim(name string, length int) error {
	if name == "" {
		return fmt.Errorf("empty dimension name")
	}
	if length < 0 {
		return fmt.Errorf("dimension %q has negative length %d", name, length)
	}
	if have, ok := d.dims[name]; ok {
		if have != length {
			return fmt.Errorf("dimension %q redeclared: %d != %d", name, length, have)
		}
		return nil
	}
	d.dims[name] = length
	d.dimOrder = append(d.dimOrder, name)
	return nil
}

// Dim returns a dimension's length.
func (d *Dataset) Dim(name string) (int, bool) {
	n, ok := d.dims[name]
	return n, ok
}

// Dims returns dimension names in declaration order.
func (d *Dataset) Dims() []string { return append([]string(nil), d.dimOrder...) }

// HasDim reports whether the dimension is declared.
func (d *Dataset) HasDim(name string) bool {
	_, ok := d.dims[name]
	return ok
}

// SetCoord attaches a coordinate variable. Its dimensions must be declared
// with matching lengths; an index coordinate (named after a dimension) must
// be 1-D over that dimension.
func (d *Dataset) SetCoord(name string, v *Variable) error {
	if err := d.checkVariable(name, v); err != nil {
		return err
	}
	if _, isDim := d.dims[name]; isDim {
		if v.Rank() != 1 || v.Dims()[0] != name {
			return fmt.Errorf("index coordinate %q must be 1-D over itself", name)
		}
	}
	d.coords[name] = v
	return nil
}

// SetVar attaches a data variable.
func (d *Dataset) SetVar(name string, v *Variable) error {
	if err := d.checkVariable(name, v); err != nil {
		return err
	}
	d.vars[name] = v
	return nil
}

func (d *Dataset) checkVariable(name string, v *Variable) error {
	if name == "" {
		return fmt.Errorf("empty variable name")
	}
	if v == nil {
		return fmt.Errorf("nil variable %q", name)
	}
	shape := v.Shape()
	for i, dim := range v.Dims() {
		have, ok := d.dims[dim]
		if !ok {
			return fmt.Errorf("variable %q uses undeclared dimension %q", name, dim)
		}
		if shape[i] != have {
			return fmt.Errorf("variable %q extent %d on %q, dimension is %d", name, shape[i], dim, have)
		}
	}
	return nil
}

// Coord returns a coordinate variable.
func (d *Dataset) Coord(name string) (*Variable, bool) {
	v, ok := d.coords[name]
	return v, ok
}

// Var returns a data variable.
func (d *Dataset) Var(name string) (*Variable, bool) {
	v, ok := d.vars[name]
	return v, ok
}

// CoordNames returns coordinate names, sorted for deterministic iteration.
func (d *Dataset) CoordNames() []string { return sortedKeys(d.coords) }

// VarNames returns data variable names, sorted for deterministic iteration.
func (d *Dataset) VarNames() []string { return sortedKeys(d.vars) }

// DropVar removes a data variable if present.
func (d *Dataset) DropVar(name string) { delete(d.vars, name) }

// DropCoord removes a coordinate if present.
func (d *Dataset) DropCoord(name string) { delete(d.coords, name) }

// PromoteToCoord moves a data variable into coordinate role.
func (d *Dataset) PromoteToCoord(name string) error {
	v, ok := d.vars[name]
	if !ok {
		return fmt.Errorf("no data variable %q to promote", name)
	}
	delete(d.vars, name)
	d.coords[name] = v
	return nil
}

// DropDim removes a dimension and its index coordinate. Every other variable
// and coordinate must already be free of it.
func (d *Dataset) DropDim(name string) error {
	if _, ok := d.dims[name]; !ok {
		return fmt.Errorf("no dimension %q", name)
	}
	for vn, v := range d.vars {
		if v.HasDim(name) {
			return fmt.Errorf("dimension %q still used by variable %q", name, vn)
		}
	}
	for cn, c := range d.coords {
		if cn != name && c.HasDim(name) {
			return fmt.Errorf("dimension %q still used by coordinate %q", name, cn)
		}
	}
	delete(d.coords, name)
	delete(d.dims, name)
	for i, dn := range d.dimOrder {
		if dn == name {
			d.dimOrder = append(d.dimOrder[:i], d.dimOrder[i+1:]...)
			break
		}
	}
	return nil
}

// Attrs returns the dataset's attributes. The map is live.
func (d *Dataset) Attrs() map[string]string { return d.attrs }

// SetAttr sets one attribute.
func (d *Dataset) SetAttr(key, value string) { d.attrs[key] = value }

// ReplaceAttrs swaps the whole attribute map for a copy of attrs.
func (d *Dataset) ReplaceAttrs(attrs map[string]string) { d.attrs = copyAttrs(attrs) }

// Copy returns a structural copy: fresh dimension, variable, and attribute
// tables sharing the same (immutable) Variables.
func (d *Dataset) Copy() *Dataset {
	out := New()
	out.dimOrder = append([]string(nil), d.dimOrder...)
	for k, v := range d.dims {
		out.dims[k] = v
	}
	for k, v := range d.coords {
		out.coords[k] = v
	}
	for k, v := range d.vars {
		out.vars[k] = v
	}
	out.attrs = copyAttrs(d.attrs)
	return out
}

// IndexLabels materializes a dimension's int64 index coordinate.
func (d *Dataset) IndexLabels(ctx context.Context, dim string) ([]int64, error) {
	c, ok := d.coords[dim]
	if !ok {
		return nil, fmt.Errorf("dimension %q has no index coordinate", dim)
	}
	buf, err := c.Materialize(ctx)
	if err != nil {
		return nil, err
	}
	return buf.Int64s()
}

// SelRange subsets a dimension to the labels inside the inclusive range
// [lo, hi], preserving label order. Every variable and coordinate carrying
// the dimension is reindexed through a lazy view. An empty selection is
// valid and produces a zero-length dimension.
func (d *Dataset) SelRange(ctx context.Context, dim string, lo, hi int64) (*Dataset, error) {
	labels, err := d.IndexLabels(ctx, dim)
	if err != nil {
		return nil, err
	}
	keep := make([]int, 0, len(labels))
	for i, v := range labels {
		if v >= lo && v <= hi {
			keep = append(keep, i)
		}
	}
	out := New()
	for _, dn := range d.dimOrder {
		n := d.dims[dn]
		if dn == dim {
			n = len(keep)
		}
		if err := out.AddDim(dn, n); err != nil {
			return nil, err
		}
	}
	take := map[string][]int{dim: keep}
	for name, c := range d.coords {
		nc := c
		if c.HasDim(dim) {
			if nc, err = c.Take(take); err != nil {
				return nil, fmt.Errorf("subset coordinate %q: %w", name, err)
			}
		}
		if err := out.SetCoord(name, nc); err != nil {
			return nil, err
		}
	}
	for name, v := range d.vars {
		nv := v
		if v.HasDim(dim) {
			if nv, err = v.Take(take); err != nil {
				return nil, fmt.Errorf("subset variable %q: %w", name, err)
			}
		}
		if err := out.SetVar(name, nv); err != nil {
			return nil, err
		}
	}
	out.attrs = copyAttrs(d.attrs)
	return out, nil
}

func sortedKeys(m map[string]*Variable) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
