// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset provides labeled multi-dimensional arrays with deferred
// evaluation for the totaling pipeline.
//
// A Dataset groups named dimensions, coordinate variables, and data variables
// the way scientific array containers do: every variable carries an ordered
// tuple of dimension names, and 1-D coordinates labeled with a dimension's own
// name act as that dimension's index.
//
// # Deferred evaluation
//
// Arrays implement the Array interface: a shape, an element type, and a Load
// operation that forces evaluation into an in-memory Buffer. Structural
// operations (Take, Stack, SumOver, AsType, Reshape) build lazy views instead
// of copying data, so a pipeline can select, align, and reduce variables that
// are still chunk-backed on disk. Nothing is read until Load is called, and
// reductions over a stacked axis stream one part at a time rather than
// materializing the whole stack.
//
// # Missing values
//
// Floating-point arrays use NaN as the missing-value marker. Integer and
// string arrays have no missing representation; constructing a view that
// would need one fails at construction time, not at Load.
//
// # Concurrency
//
// Loading a stacked array fans its parts out through an errgroup. Source
// arrays and chunk caches must therefore tolerate concurrent Load calls;
// everything in this package does.
package dataset
