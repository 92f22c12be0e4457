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
)

// Buffer is a fully materialized array: one flat, row-major slice plus a
// shape. Buffers returned by Load must be treated as read-only; operations
// that produce new values allocate new Buffers.
//
// Buffer implements Array, so eager data plugs into lazy pipelines directly.
type Buffer struct {
	dtype DType
	shape []int

	f64 []float64
	f32 []float32
	i64 []int64
	str []string
}

// NewBuffer allocates a zero-valued buffer of the given type and shape.
func NewBuffer(dt DType, shape []int) *Buffer {
	n := numElements(shape)
	b := &Buffer{dtype: dt, shape: cloneShape(shape)}
	switch dt {
	case Float64:
		b.f64 = make([]float64, n)
	case Float32:
		b.f32 = make([]float32, n)
	case Int64:
		b.i64 = make([]int64, n)
	case String:
		b.str = make([]string, n)
	}
	return b
}

// NewMissingBuffer allocates a buffer with every element set to the
// missing-value marker. Only floating-point types have one.
func NewMissingBuffer(dt DType, shape []int) (*Buffer, error) {
	if !dt.IsFloat() {
		return nil, fmt.Errorf("dtype %s has no missing-value representation", dt)
	}
	b := NewBuffer(dt, shape)
	switch dt {
	case Float64:
		for i := range b.f64 {
			b.f64[i] = math.NaN()
		}
	case Float32:
		nan := float32(math.NaN())
		for i := range b.f32 {
			b.f32[i] = nan
		}
	}
	return b, nil
}

// NewFloats builds a Float64 buffer from a flat row-major slice.
func NewFloats(shape []int, vals []float64) (*Buffer, error) {
	if err := checkLen(shape, len(vals)); err != nil {
		return nil, err
	}
	b := &Buffer{dtype: Float64, shape: cloneShape(shape)}
	b.f64 = append([]float64(nil), vals...)
	return b, nil
}

// NewFloat32s builds a Float32 buffer from a flat row-major slice.
func NewFloat32s(shape []int, vals []float32) (*Buffer, error) {
	if err := checkLen(shape, len(vals)); err != nil {
		return nil, err
	}
	b := &Buffer{dtype: Float32, shape: cloneShape(shape)}
	b.f32 = append([]float32(nil), vals...)
	return b, nil
}

// NewInts builds an Int64 buffer from a flat row-major slice.
func NewInts(shape []int, vals []int64) (*Buffer, error) {
	if err := checkLen(shape, len(vals)); err != nil {
		return nil, err
	}
	b := &Buffer{dtype: Int64, shape: cloneShape(shape)}
	b.i64 = append([]int64(nil), vals...)
	return b, nil
}

// NewStrings builds a String buffer from a flat row-major slice.
func NewStrings(shape []int, vals []string) (*Buffer, error) {
	if err := checkLen(shape, len(vals)); err != nil {
		return nil, err
	}
	b := &Buffer{dtype: String, shape: cloneShape(shape)}
	b.str = append([]string(nil), vals...)
	return b, nil
}

// DType returns the element type.
func (b *Buffer) DType() DType { return b.dtype }

// Shape returns a copy of the buffer's shape.
func (b *Buffer) Shape() []int { return cloneShape(b.shape) }

// Len returns the total element count.
func (b *Buffer) Len() int { return numElements(b.shape) }

// Load implements Array. A buffer is already materialized.
func (b *Buffer) Load(_ context.Context) (*Buffer, error) { return b, nil }

// Float returns the element at flat index i widened to float64.
// String elements have no numeric value and come back as NaN.
func (b *Buffer) Float(i int) float64 {
	switch b.dtype {
	case Float64:
		return b.f64[i]
	case Float32:
		return float64(b.f32[i])
	case Int64:
		return float64(b.i64[i])
	default:
		return math.NaN()
	}
}

// SetFloat stores v at flat index i, narrowing to the buffer's type.
func (b *Buffer) SetFloat(i int, v float64) {
	switch b.dtype {
	case Float64:
		b.f64[i] = v
	case Float32:
		b.f32[i] = float32(v)
	case Int64:
		b.i64[i] = int64(v)
	default:
		panic("dataset: SetFloat on string buffer")
	}
}

// Int returns the element at flat index i as int64. Float values truncate.
func (b *Buffer) Int(i int) int64 {
	switch b.dtype {
	case Int64:
		return b.i64[i]
	case Float64:
		return int64(b.f64[i])
	case Float32:
		return int64(b.f32[i])
	default:
		panic("dataset: Int on string buffer")
	}
}

// SetInt stores v at flat index i.
func (b *Buffer) SetInt(i int, v int64) {
	switch b.dtype {
	case Int64:
		b.i64[i] = v
	case Float64:
		b.f64[i] = float64(v)
	case Float32:
		b.f32[i] = float32(v)
	default:
		panic("dataset: SetInt on string buffer")
	}
}

// Str returns the string element at flat index i.
func (b *Buffer) Str(i int) string {
	if b.dtype != String {
		panic("dataset: Str on numeric buffer")
	}
	return b.str[i]
}

// SetStr stores s at flat index i.
func (b *Buffer) SetStr(i int, s string) {
	if b.dtype != String {
		panic("dataset: SetStr on numeric buffer")
	}
	b.str[i] = s
}

// IsMissing reports whether the element at flat index i is the missing-value
// marker. Only floating-point buffers can hold missing values.
func (b *Buffer) IsMissing(i int) bool {
	switch b.dtype {
	case Float64:
		return math.IsNaN(b.f64[i])
	case Float32:
		return math.IsNaN(float64(b.f32[i]))
	default:
		return false
	}
}

// Int64s exposes the backing slice of an Int64 buffer. Callers must treat it
// as read-only; it is a view, not a copy.
func (b *Buffer) Int64s() ([]int64, error) {
	if b.dtype != Int64 {
		return nil, fmt.Errorf("buffer is %s, not i64", b.dtype)
	}
	return b.i64, nil
}

// Strings exposes the backing slice of a String buffer, read-only.
func (b *Buffer) Strings() ([]string, error) {
	if b.dtype != String {
		return nil, fmt.Errorf("buffer is %s, not str", b.dtype)
	}
	return b.str, nil
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{dtype: b.dtype, shape: cloneShape(b.shape)}
	out.f64 = append([]float64(nil), b.f64...)
	out.f32 = append([]float32(nil), b.f32...)
	out.i64 = append([]int64(nil), b.i64...)
	out.str = append([]string(nil), b.str...)
	return out
}

// withShape returns a view sharing the backing slice under a new shape.
// The element count must already have been checked by the caller.
func (b *Buffer) withShape(shape []int) *Buffer {
	out := *b
	out.shape = cloneShape(shape)
	return &out
}

func checkLen(shape []int, n int) error {
	if want := numElements(shape); want != n {
		return fmt.Errorf("shape %v wants %d elements, got %d", shape, want, n)
	}
	return nil
}

func numElements(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

func cloneShape(shape []int) []int {
	return append([]int(nil), shape...)
}

// rowMajorStrides returns element strides for a shape, outermost first.
func rowMajorStrides(shape []int) []int {
	st := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= shape[i]
	}
	return st
}

func sameShape(a, b []int) bool {
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
