// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package twdfile reads and writes the Tidewater dataset container (TWD),
// the structured binary scientific-array format the totaling pipeline
// consumes and produces.
//
// # Layout
//
// A TWD file is a fixed 24-byte header, the variables' chunk payloads, and a
// trailing zstd-compressed JSON metadata block the header points at:
//
//	offset 0   magic "TWD1" (4 bytes)
//	offset 4   format version (u8), flags (u8), reserved (u16)
//	offset 8   metadata offset (u64, big-endian)
//	offset 16  metadata compressed length (u32)
//	offset 20  metadata CRC32-IEEE (u32, over the compressed bytes)
//
// Metadata declares dimensions, dataset attributes, and per-variable records:
// dimension tuple, element type (i64, f64, f32), coordinate role, codec, and
// chunk descriptors (offset, stored length, raw length, row count, CRC32).
//
// # Chunking
//
// Each variable's rows (slices along its outermost dimension) are split into
// chunks targeting DefaultChunkBytes of raw data. Every chunk is stored
// independently with its own checksum and optional zstd compression, so a
// reader can materialize any slice of a variable without touching the rest
// of the file.
// Open reads only header and metadata; variables come back as lazy arrays
// that fetch chunks on Load, through a shared chunk cache when one is
// configured.
//
// # Determinism
//
// Writing the same dataset with the same options produces identical bytes:
// metadata serializes with stable ordering, chunk boundaries depend only on
// shape, and the zstd encoder runs single-threaded. The totaling pipeline
// relies on this for reproducible outputs.
package twdfile
