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

import "context"

// Array is the deferred array capability: a shaped, typed value whose
// elements may still live on disk. Load forces evaluation.
//
// Implementations must be safe for concurrent Load calls and must return a
// Buffer the caller can treat as stable (loading twice may return the same
// Buffer or an equivalent one).
type Array interface {
	// Shape returns the array's dimensions, outermost first.
	Shape() []int

	// DType returns the element type.
	DType() DType

	// Load materializes the array. Blocking I/O respects ctx.
	Load(ctx context.Context) (*Buffer, error)
}
