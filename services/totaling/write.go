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
	"os"
	"path/filepath"

	"github.com/AleutianAI/tidewater/services/totaling/twdfile"
)

// Encoding controls how the summed variable is stored. Other variables use
// the container's default raw encoding.
type Encoding struct {
	// CompressionLevel is the zstd level for the summed variable.
	// Non-positive means the container default.
	CompressionLevel int
}

// Write serializes the totaled dataset: the summed variable zstd-compressed
// with a float32 on-disk representation, everything else raw. Missing parent
// directories are created. The container write is atomic (temp file plus
// rename) and byte-deterministic, so identical runs produce identical files.
// This is where every remaining lazy array is forced.
func Write(ctx context.Context, t *Totaled, path string, enc Encoding) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	opts := twdfile.WriteOptions{
		Encodings: map[string]twdfile.VarEncoding{
			t.Target: {
				Codec: twdfile.CodecZstd,
				Level: enc.CompressionLevel,
				DType: "f32",
			},
		},
	}
	if err := twdfile.Write(ctx, path, t.DS, opts); err != nil {
		return fmt.Errorf("write totaled projections: %w", err)
	}
	return nil
}
