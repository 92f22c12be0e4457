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
)

// Variable binds an Array to an ordered tuple of dimension names plus
// descriptive attributes. Variables are immutable; operations return new
// Variables over lazy views of the same data.
type Variable struct {
	dims  []string
	data  Array
	attrs map[string]string
}

// NewVariable builds a variable. The dimension tuple must match the array's
// rank and must not repeat names.
func NewVariable(dims []string, data Array, attrs map[string]string) (*Variable, error) {
	if len(dims) != len(data.Shape()) {
		return nil, fmt.Errorf("%d dims for rank-%d array", len(dims), len(data.Shape()))
	}
	seen := make(map[string]struct{}, len(dims))
	for _, d := range dims {
		if d == "" {
			return nil, fmt.Errorf("empty dimension name")
		}
		if _, dup := seen[d]; dup {
			return nil, fmt.Errorf("duplicate dimension %q", d)
		}
		seen[d] = struct{}{}
	}
	return &Variable{dims: append([]string(nil), dims...), data: data, attrs: copyAttrs(attrs)}, nil
}

// Dims returns a copy of the dimension names, outermost first.
func (v *Variable) Dims() []string { return append([]string(nil), v.dims...) }

// Data returns the backing array.
func (v *Variable) Data() Array { return v.data }

// Attrs returns the variable's attributes. The map is live; callers that
// need isolation should copy it.
func (v *Variable) Attrs() map[string]string { return v.attrs }

// Shape returns the variable's extents, outermost first.
func (v *Variable) Shape() []int { return v.data.Shape() }

// DType returns the element type.
func (v *Variable) DType() DType { return v.data.DType() }

// Rank returns the number of dimensions.
func (v *Variable) Rank() int { return len(v.dims) }

// HasDim reports whether the variable depends on dim.
func (v *Variable) HasDim(dim string) bool { return v.AxisOf(dim) >= 0 }

// AxisOf returns the axis position of dim, or -1.
func (v *Variable) AxisOf(dim string) int {
	for i, d := range v.dims {
		if d == dim {
			return i
		}
	}
	return -1
}

// Len returns the extent of dim, or -1 when the variable lacks it.
func (v *Variable) Len(dim string) int {
	ax := v.AxisOf(dim)
	if ax < 0 {
		return -1
	}
	return v.data.Shape()[ax]
}

// Take reindexes the variable: for each named dimension, the listed source
// indices are selected in order, -1 marking an outer-join gap. Dimensions
// not named pass through untouched. Attributes are carried.
func (v *Variable) Take(byDim map[string][]int) (*Variable, error) {
	takes := make([][]int, len(v.dims))
	for dim, idxs := range byDim {
		ax := v.AxisOf(dim)
		if ax < 0 {
			return nil, fmt.Errorf("variable has no dimension %q", dim)
		}
		takes[ax] = idxs
	}
	arr, err := Take(v.data, takes)
	if err != nil {
		return nil, err
	}
	return &Variable{dims: v.Dims(), data: arr, attrs: copyAttrs(v.attrs)}, nil
}

// PrependDim returns the variable with a new length-1 leading dimension.
func (v *Variable) PrependDim(dim string) (*Variable, error) {
	if v.HasDim(dim) {
		return nil, fmt.Errorf("variable already has dimension %q", dim)
	}
	arr, err := Reshape(v.data, append([]int{1}, v.data.Shape()...))
	if err != nil {
		return nil, err
	}
	return NewVariable(append([]string{dim}, v.dims...), arr, v.attrs)
}

// DropLeadingDim returns the variable without its length-1 leading dimension.
func (v *Variable) DropLeadingDim() (*Variable, error) {
	shape := v.data.Shape()
	if len(shape) == 0 || shape[0] != 1 {
		return nil, fmt.Errorf("leading dimension of %v is not length 1", shape)
	}
	arr, err := Reshape(v.data, shape[1:])
	if err != nil {
		return nil, err
	}
	return NewVariable(v.dims[1:], arr, v.attrs)
}

// SumOver reduces the named dimension by summation. The result carries no
// attributes; reductions change a variable's meaning, so callers set fresh
// ones.
func (v *Variable) SumOver(dim string, skipMissing bool) (*Variable, error) {
	ax := v.AxisOf(dim)
	if ax < 0 {
		return nil, fmt.Errorf("variable has no dimension %q", dim)
	}
	arr, err := SumOver(v.data, ax, skipMissing)
	if err != nil {
		return nil, err
	}
	dims := append(append([]string(nil), v.dims[:ax]...), v.dims[ax+1:]...)
	return &Variable{dims: dims, data: arr, attrs: map[string]string{}}, nil
}

// AsType converts the variable's element type, keeping attributes.
func (v *Variable) AsType(dt DType) (*Variable, error) {
	arr, err := AsType(v.data, dt)
	if err != nil {
		return nil, err
	}
	return &Variable{dims: v.Dims(), data: arr, attrs: copyAttrs(v.attrs)}, nil
}

// Materialize forces evaluation of the variable's data.
func (v *Variable) Materialize(ctx context.Context) (*Buffer, error) {
	return v.data.Load(ctx)
}

// WithAttrs returns the variable with its attributes replaced.
func (v *Variable) WithAttrs(attrs map[string]string) *Variable {
	return &Variable{dims: v.Dims(), data: v.data, attrs: copyAttrs(attrs)}
}

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
