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
	"errors"
	"fmt"
)

// Sentinel errors for the totaling pipeline. All of them are fatal: a run
// that hits one aborts before writing any output.
var (
	// ErrRead indicates an input file is missing, unreadable, corrupt, or
	// lacks the axes and variables the pipeline requires.
	ErrRead = errors.New("unreadable component dataset")

	// ErrNonUniformStep indicates a years axis whose successive
	// differences are not all equal.
	ErrNonUniformStep = errors.New("non-uniform year step")

	// ErrCoordinateInconsistency indicates a spatial coordinate that
	// varies across files for the same location.
	ErrCoordinateInconsistency = errors.New("coordinate varies across files")

	// ErrMerge indicates inputs that declare incompatible types or axis
	// tuples for the same name.
	ErrMerge = errors.New("incompatible datasets")

	// ErrAggregation indicates the target variable was absent or could
	// not be summed.
	ErrAggregation = errors.New("aggregation failed")

	// ErrNoInputs indicates an empty input list after path expansion.
	ErrNoInputs = errors.New("no input datasets")
)

// ReadError reports a failure to open or validate one input file.
type ReadError struct {
	// Path is the input path as given by the caller.
	Path string

	// Err is the underlying cause.
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

// Unwrap exposes both the sentinel and the cause for errors.Is/As.
func (e *ReadError) Unwrap() []error {
	return []error{ErrRead, e.Err}
}

// NonUniformStepError reports a years axis with more than one distinct step.
// Path is empty when the divergence is across files rather than within one.
type NonUniformStepError struct {
	Path  string
	Steps []int64
}

func (e *NonUniformStepError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("year steps diverge across files: %v", e.Steps)
	}
	return fmt.Sprintf("%s: year steps are not uniform: %v", e.Path, e.Steps)
}

func (e *NonUniformStepError) Unwrap() error { return ErrNonUniformStep }

// CoordinateInconsistencyError reports a spatial coordinate with more than
// one distinct value for a location across the files that cover it.
type CoordinateInconsistencyError struct {
	// Field is the coordinate name, lat or lon.
	Field string

	// Location is the offending location label.
	Location int64

	// Values are the distinct conflicting values, ascending.
	Values []float64
}

func (e *CoordinateInconsistencyError) Error() string {
	return fmt.Sprintf("%s varies across files for location %d: %v", e.Field, e.Location, e.Values)
}

func (e *CoordinateInconsistencyError) Unwrap() error { return ErrCoordinateInconsistency }

// MergeError reports structurally incompatible inputs.
type MergeError struct {
	// Name is the axis or variable that conflicts.
	Name string

	// Reason describes the conflict.
	Reason string
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge %q: %s", e.Name, e.Reason)
}

func (e *MergeError) Unwrap() error { return ErrMerge }

// AggregationError reports a failed sum over the file axis.
type AggregationError struct {
	// Variable is the target variable name.
	Variable string

	// Err is the underlying cause, nil when the variable was absent.
	Err error
}

func (e *AggregationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("total %q: variable not present after normalization", e.Variable)
	}
	return fmt.Sprintf("total %q: %v", e.Variable, e.Err)
}

func (e *AggregationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAggregation}
	}
	return []error{ErrAggregation, e.Err}
}
