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
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Reshape returns a view of src under a new shape with the same element
// count. Used to add or drop length-1 axes.
func Reshape(src Array, shape []int) (Array, error) {
	if numElements(shape) != numElements(src.Shape()) {
		return nil, fmt.Errorf("reshape %v to %v changes element count", src.Shape(), shape)
	}
	for _, s := range shape {
		if s < 0 {
			return nil, fmt.Errorf("reshape to negative extent %v", shape)
		}
	}
	return &reshapeArray{src: src, shape: cloneShape(shape)}, nil
}

type reshapeArray struct {
	src   Array
	shape []int
}

func (a *reshapeArray) Shape() []int { return cloneShape(a.shape) }
func (a *reshapeArray) DType() DType { return a.src.DType() }

func (a *reshapeArray) Load(ctx context.Context) (*Buffer, error) {
	buf, err := a.src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return buf.withShape(a.shape), nil
}

// Take returns a view selecting, per axis, the source indices listed in
// takes. A nil entry keeps that axis untouched. An index of -1 marks a gap
// to be filled with the missing-value marker, which is how outer-join
// reindexing represents labels a source does not cover; gaps therefore
// require a floating-point element type.
func Take(src Array, takes [][]int) (Array, error) {
	srcShape := src.Shape()
	if len(takes) != len(srcShape) {
		return nil, fmt.Errorf("take lists %d axes, array has %d", len(takes), len(srcShape))
	}
	shape := make([]int, len(srcShape))
	for k, t := range takes {
		if t == nil {
			shape[k] = srcShape[k]
			continue
		}
		shape[k] = len(t)
		for _, i := range t {
			if i == -1 {
				if !src.DType().IsFloat() {
					return nil, fmt.Errorf("axis %d gap-fill needs a float dtype, have %s", k, src.DType())
				}
				continue
			}
			if i < 0 || i >= srcShape[k] {
				return nil, fmt.Errorf("axis %d index %d out of range [0,%d)", k, i, srcShape[k])
			}
		}
	}
	copied := make([][]int, len(takes))
	for k, t := range takes {
		if t != nil {
			copied[k] = append([]int(nil), t...)
		}
	}
	return &takeArray{src: src, takes: copied, shape: shape, dtype: src.DType()}, nil
}

type takeArray struct {
	src   Array
	takes [][]int
	shape []int
	dtype DType
}

func (a *takeArray) Shape() []int { return cloneShape(a.shape) }
func (a *takeArray) DType() DType { return a.dtype }

func (a *takeArray) Load(ctx context.Context) (*Buffer, error) {
	src, err := a.src.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := NewBuffer(a.dtype, a.shape)
	n := out.Len()
	if n == 0 {
		return out, nil
	}
	srcStrides := rowMajorStrides(src.shape)
	idx := make([]int, len(a.shape))
	for flat := 0; flat < n; flat++ {
		srcFlat, gap := 0, false
		for k, i := range idx {
			j := i
			if a.takes[k] != nil {
				j = a.takes[k][i]
				if j < 0 {
					gap = true
					break
				}
			}
			srcFlat += j * srcStrides[k]
		}
		if gap {
			out.SetFloat(flat, math.NaN())
		} else {
			copyElem(out, flat, src, srcFlat)
		}
		for k := len(idx) - 1; k >= 0; k-- {
			idx[k]++
			if idx[k] < a.shape[k] {
				break
			}
			idx[k] = 0
		}
	}
	return out, nil
}

// Stack concatenates parts of identical shape and dtype along a new leading
// axis. Loading fans parts out through an errgroup; summing over the stacked
// axis streams parts one at a time instead (see SumOver).
func Stack(parts ...Array) (Array, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("stack of zero arrays")
	}
	tail := parts[0].Shape()
	dt := parts[0].DType()
	for i, p := range parts[1:] {
		if !sameShape(p.Shape(), tail) {
			return nil, fmt.Errorf("stack part %d shape %v, want %v", i+1, p.Shape(), tail)
		}
		if p.DType() != dt {
			return nil, fmt.Errorf("stack part %d dtype %s, want %s", i+1, p.DType(), dt)
		}
	}
	shape := append([]int{len(parts)}, tail...)
	return &stackArray{parts: append([]Array(nil), parts...), shape: shape, dtype: dt}, nil
}

type stackArray struct {
	parts []Array
	shape []int
	dtype DType
}

func (a *stackArray) Shape() []int { return cloneShape(a.shape) }
func (a *stackArray) DType() DType { return a.dtype }

func (a *stackArray) Load(ctx context.Context) (*Buffer, error) {
	out := NewBuffer(a.dtype, a.shape)
	partLen := numElements(a.shape[1:])
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, part := range a.parts {
		g.Go(func() error {
			buf, err := part.Load(gctx)
			if err != nil {
				return err
			}
			copyRange(out, i*partLen, buf, partLen)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SumOver returns a view reducing src along one axis by summation.
//
// With skipMissing false, NaN propagates: any missing addend poisons its
// cell. With skipMissing true, missing addends are skipped and a cell with
// no addends at all sums to zero. Integer arrays sum exactly and have no
// missing semantics; string arrays cannot be summed.
//
// When src is a stack and axis 0 is reduced, Load accumulates one part at a
// time, so the full stack is never resident.
func SumOver(src Array, axis int, skipMissing bool) (Array, error) {
	shape := src.Shape()
	if axis < 0 || axis >= len(shape) {
		return nil, fmt.Errorf("sum axis %d out of range for rank %d", axis, len(shape))
	}
	if src.DType() == String {
		return nil, fmt.Errorf("cannot sum string array")
	}
	out := append(cloneShape(shape[:axis]), shape[axis+1:]...)
	return &sumArray{src: src, axis: axis, skipMissing: skipMissing, shape: out}, nil
}

type sumArray struct {
	src         Array
	axis        int
	skipMissing bool
	shape       []int
}

func (a *sumArray) Shape() []int { return cloneShape(a.shape) }
func (a *sumArray) DType() DType { return a.src.DType() }

func (a *sumArray) Load(ctx context.Context) (*Buffer, error) {
	if st, ok := a.src.(*stackArray); ok && a.axis == 0 {
		return a.loadStreaming(ctx, st)
	}
	src, err := a.src.Load(ctx)
	if err != nil {
		return nil, err
	}
	srcShape := src.shape
	outer := numElements(srcShape[:a.axis])
	axisLen := srcShape[a.axis]
	inner := numElements(srcShape[a.axis+1:])
	out := NewBuffer(a.DType(), a.shape)

	if a.DType() == Int64 {
		for o := 0; o < outer; o++ {
			for in := 0; in < inner; in++ {
				var acc int64
				base := o*axisLen*inner + in
				for k := 0; k < axisLen; k++ {
					acc += src.i64[base+k*inner]
				}
				out.i64[o*inner+in] = acc
			}
		}
		return out, nil
	}
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			var acc float64
			base := o*axisLen*inner + in
			for k := 0; k < axisLen; k++ {
				v := src.Float(base + k*inner)
				if a.skipMissing && math.IsNaN(v) {
					continue
				}
				acc += v
			}
			out.SetFloat(o*inner+in, acc)
		}
	}
	return out, nil
}

// loadStreaming reduces a stacked axis part by part so only one part plus
// the accumulator is resident at a time.
func (a *sumArray) loadStreaming(ctx context.Context, st *stackArray) (*Buffer, error) {
	partLen := numElements(st.shape[1:])
	out := NewBuffer(a.DType(), a.shape)

	if a.DType() == Int64 {
		acc := make([]int64, partLen)
		for _, part := range st.parts {
			buf, err := part.Load(ctx)
			if err != nil {
				return nil, err
			}
			for j := 0; j < partLen; j++ {
				acc[j] += buf.i64[j]
			}
		}
		copy(out.i64, acc)
		return out, nil
	}

	acc := make([]float64, partLen)
	for _, part := range st.parts {
		buf, err := part.Load(ctx)
		if err != nil {
			return nil, err
		}
		for j := 0; j < partLen; j++ {
			v := buf.Float(j)
			if a.skipMissing && math.IsNaN(v) {
				continue
			}
			acc[j] += v
		}
	}
	for j := 0; j < partLen; j++ {
		out.SetFloat(j, acc[j])
	}
	return out, nil
}

// AsType returns a view converting elements to dt. Conversions to or from
// String are not supported.
func AsType(src Array, dt DType) (Array, error) {
	if src.DType() == dt {
		return src, nil
	}
	if src.DType() == String || dt == String {
		return nil, fmt.Errorf("cannot convert %s to %s", src.DType(), dt)
	}
	return &astypeArray{src: src, dtype: dt}, nil
}

type astypeArray struct {
	src   Array
	dtype DType
}

func (a *astypeArray) Shape() []int { return a.src.Shape() }
func (a *astypeArray) DType() DType { return a.dtype }

func (a *astypeArray) Load(ctx context.Context) (*Buffer, error) {
	src, err := a.src.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := NewBuffer(a.dtype, src.shape)
	n := src.Len()
	if a.dtype == Int64 {
		for i := 0; i < n; i++ {
			out.i64[i] = src.Int(i)
		}
		return out, nil
	}
	for i := 0; i < n; i++ {
		out.SetFloat(i, src.Float(i))
	}
	return out, nil
}

// Missing returns an array of the given float type and shape whose every
// element is the missing-value marker. Used for variables absent from a file
// during an outer join.
func Missing(dt DType, shape []int) (Array, error) {
	if !dt.IsFloat() {
		return nil, fmt.Errorf("dtype %s has no missing-value representation", dt)
	}
	return &fillArray{dtype: dt, shape: cloneShape(shape)}, nil
}

type fillArray struct {
	dtype DType
	shape []int
}

func (a *fillArray) Shape() []int { return cloneShape(a.shape) }
func (a *fillArray) DType() DType { return a.dtype }

func (a *fillArray) Load(_ context.Context) (*Buffer, error) {
	return NewMissingBuffer(a.dtype, a.shape)
}

func copyElem(dst *Buffer, di int, src *Buffer, si int) {
	switch dst.dtype {
	case Float64:
		dst.f64[di] = src.f64[si]
	case Float32:
		dst.f32[di] = src.f32[si]
	case Int64:
		dst.i64[di] = src.i64[si]
	case String:
		dst.str[di] = src.str[si]
	}
}

func copyRange(dst *Buffer, off int, src *Buffer, n int) {
	switch dst.dtype {
	case Float64:
		copy(dst.f64[off:off+n], src.f64)
	case Float32:
		copy(dst.f32[off:off+n], src.f32)
	case Int64:
		copy(dst.i64[off:off+n], src.i64)
	case String:
		copy(dst.str[off:off+n], src.str)
	}
}
