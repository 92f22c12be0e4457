// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package totaling sums per-component sea-level projection datasets into a
// single totaled projection.
//
// Each input file holds one physical process's projection (ocean dynamics,
// glaciers, ...) on a years × locations grid, usually with extra axes such as
// samples. The pipeline validates every file's temporal axis against the
// caller's expected range and step, joins the files along a synthetic file
// axis, proves the spatial coordinates are file-invariant, and sums the
// target variable across files.
//
// The pipeline is a linear sequence of typed stages:
//
//	Open → Preprocess → Combine → Check → Normalize → Total → Write
//
// Each stage consumes the previous stage's result type (Component, Tagged,
// Combined, Normalized, Totaled), so running stages out of order does not
// compile. Arrays stay lazy until the Normalizer materializes the spatial
// coordinates and the Writer serializes everything else; datasets larger
// than memory flow through chunk-backed views.
//
// Fatal conditions (unreadable input, non-uniform year step, conflicting
// coordinates, merge or aggregation failure) abort a run before any output
// is written. Non-fatal findings flow through the injectable DiagnosticSink
// and never block later stages.
package totaling
