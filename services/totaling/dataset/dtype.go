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

import "fmt"

// DType identifies the element type of an array.
type DType uint8

const (
	// Float64 is the default type for data variables.
	Float64 DType = iota

	// Float32 is the fixed-width type coordinates are downcast to before
	// serialization.
	Float32

	// Int64 is the type of index coordinates (years, locations, samples).
	Int64

	// String labels synthetic axes (the file axis). String arrays exist
	// only in memory; the container format does not serialize them.
	String
)

// String returns the short type name used in container metadata.
func (d DType) String() string {
	switch d {
	case Float64:
		return "f64"
	case Float32:
		return "f32"
	case Int64:
		return "i64"
	case String:
		return "str"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// Size returns the serialized width of one element in bytes.
// String has no fixed width and returns 0.
func (d DType) Size() int {
	switch d {
	case Float64, Int64:
		return 8
	case Float32:
		return 4
	default:
		return 0
	}
}

// IsFloat reports whether the type supports the NaN missing-value marker.
func (d DType) IsFloat() bool {
	return d == Float64 || d == Float32
}

// ParseDType resolves a short type name from container metadata.
func ParseDType(s string) (DType, error) {
	switch s {
	case "f64":
		return Float64, nil
	case "f32":
		return Float32, nil
	case "i64":
		return Int64, nil
	case "str":
		return String, nil
	default:
		return 0, fmt.Errorf("unknown dtype %q", s)
	}
}
