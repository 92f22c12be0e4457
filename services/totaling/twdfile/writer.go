// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package twdfile

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/AleutianAI/tidewater/services/totaling/dataset"
)

// DefaultCompressionLevel is the zstd level applied when an encoding selects
// the zstd codec without a level.
const DefaultCompressionLevel = 4

// metaCompressionLevel is fixed so identical datasets serialize identically.
const metaCompressionLevel = 3

// VarEncoding overrides how one variable is stored.
type VarEncoding struct {
	// Codec is CodecRaw or CodecZstd. Empty means CodecRaw.
	Codec string

	// Level is the zstd level for CodecZstd. Non-positive means
	// DefaultCompressionLevel.
	Level int

	// DType converts the variable on disk ("f32", "f64", "i64").
	// Empty keeps the in-memory type.
	DType string
}

// WriteOptions controls serialization.
type WriteOptions struct {
	// Encodings maps variable names to storage overrides. Variables not
	// listed are stored raw in their in-memory type.
	Encodings map[string]VarEncoding

	// ChunkBytes targets the raw bytes per chunk. Non-positive means
	// DefaultChunkBytes.
	ChunkBytes int
}

// Write serializes a dataset to path atomically: the file is assembled under
// a temporary name in the destination directory and renamed into place, so a
// failed write never leaves a partial output. Materializing variables is the
// point where deferred arrays are forced.
//
// String-typed variables have no on-disk representation and are rejected;
// synthetic axes must be reduced away before writing.
func Write(ctx context.Context, path string, ds *dataset.Dataset, opts WriteOptions) (err error) {
	chunkBytes := opts.ChunkBytes
	if chunkBytes <= 0 {
		chunkBytes = DefaultChunkBytes
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".twd-*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := &fileWriter{f: tmp, encoders: make(map[int]*zstd.Encoder)}
	defer w.closeEncoders()

	// Placeholder header; rewritten once the metadata offset is known.
	if _, err = tmp.Write(make([]byte, headerSize)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	w.off = headerSize

	meta := fileMeta{Attrs: ds.Attrs()}
	for _, name := range ds.Dims() {
		n, _ := ds.Dim(name)
		meta.Dims = append(meta.Dims, dimMeta{Name: name, Length: n})
	}
	for _, name := range ds.CoordNames() {
		v, _ := ds.Coord(name)
		vm, verr := w.writeVariable(ctx, name, v, true, opts.Encodings[name], chunkBytes)
		if verr != nil {
			return verr
		}
		meta.Vars = append(meta.Vars, vm)
	}
	for _, name := range ds.VarNames() {
		v, _ := ds.Var(name)
		vm, verr := w.writeVariable(ctx, name, v, false, opts.Encodings[name], chunkBytes)
		if verr != nil {
			return verr
		}
		meta.Vars = append(meta.Vars, vm)
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	metaEnc, err := w.encoderFor(metaCompressionLevel)
	if err != nil {
		return err
	}
	metaBytes := metaEnc.EncodeAll(metaJSON, nil)

	hdr := fileHeader{
		version: version,
		metaOff: uint64(w.off),
		metaLen: uint32(len(metaBytes)),
		metaCRC: crc32.ChecksumIEEE(metaBytes),
	}
	if _, err = tmp.Write(metaBytes); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if _, err = tmp.WriteAt(hdr.encode(), 0); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync output: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("finalize output: %w", err)
	}
	return nil
}

type fileWriter struct {
	f        *os.File
	off      int64
	encoders map[int]*zstd.Encoder
}

func (w *fileWriter) encoderFor(level int) (*zstd.Encoder, error) {
	if level <= 0 {
		level = DefaultCompressionLevel
	}
	if enc, ok := w.encoders[level]; ok {
		return enc, nil
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	w.encoders[level] = enc
	return enc, nil
}

func (w *fileWriter) closeEncoders() {
	for _, enc := range w.encoders {
		enc.Close()
	}
}

func (w *fileWriter) writeVariable(ctx context.Context, name string, v *dataset.Variable, coord bool, enc VarEncoding, chunkBytes int) (varMeta, error) {
	vm := varMeta{
		Name:  name,
		Dims:  v.Dims(),
		Coord: coord,
		Attrs: v.Attrs(),
		Codec: enc.Codec,
	}
	if vm.Codec == "" {
		vm.Codec = CodecRaw
	}
	if vm.Codec != CodecRaw && vm.Codec != CodecZstd {
		return vm, fmt.Errorf("variable %q: unknown codec %q", name, vm.Codec)
	}

	buf, err := v.Materialize(ctx)
	if err != nil {
		return vm, fmt.Errorf("materialize %q: %w", name, err)
	}
	if enc.DType != "" {
		dt, derr := dataset.ParseDType(enc.DType)
		if derr != nil {
			return vm, fmt.Errorf("variable %q: %w", name, derr)
		}
		arr, aerr := dataset.AsType(buf, dt)
		if aerr != nil {
			return vm, fmt.Errorf("variable %q: %w", name, aerr)
		}
		if buf, err = arr.Load(ctx); err != nil {
			return vm, fmt.Errorf("convert %q: %w", name, err)
		}
	}
	if buf.DType() == dataset.String {
		return vm, fmt.Errorf("variable %q: dtype %s has no on-disk representation", name, buf.DType())
	}
	vm.DType = buf.DType().String()

	shape := buf.Shape()
	rows := 1
	rowElems := buf.Len()
	if len(shape) > 0 {
		rows = shape[0]
		rowElems = product(shape[1:])
	}
	rowBytes := rowElems * buf.DType().Size()
	chunkRows := 1
	if rowBytes > 0 {
		if chunkRows = chunkBytes / rowBytes; chunkRows < 1 {
			chunkRows = 1
		}
	}
	vm.Chunks = []chunkMeta{}
	for r0 := 0; r0 < rows; r0 += chunkRows {
		r1 := r0 + chunkRows
		if r1 > rows {
			r1 = rows
		}
		raw, eerr := encodeElems(buf, r0*rowElems, (r1-r0)*rowElems)
		if eerr != nil {
			return vm, fmt.Errorf("encode %q: %w", name, eerr)
		}
		stored := raw
		if vm.Codec == CodecZstd {
			zenc, zerr := w.encoderFor(enc.Level)
			if zerr != nil {
				return vm, zerr
			}
			stored = zenc.EncodeAll(raw, nil)
		}
		if _, err = w.f.Write(stored); err != nil {
			return vm, fmt.Errorf("write chunk of %q: %w", name, err)
		}
		vm.Chunks = append(vm.Chunks, chunkMeta{
			Offset:    w.off,
			Length:    uint32(len(stored)),
			RawLength: uint32(len(raw)),
			Rows:      r1 - r0,
			Checksum:  crc32.ChecksumIEEE(stored),
		})
		w.off += int64(len(stored))
	}
	return vm, nil
}
