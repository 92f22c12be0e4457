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
	"runtime"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/tidewater/services/totaling/dataset"
)

// File is an open TWD container. Opening reads only the header and metadata;
// variable data stays on disk until a lazy array is loaded. A File must be
// kept open for as long as datasets built from it may still materialize, and
// closed afterwards.
type File struct {
	path  string
	f     *os.File
	meta  fileMeta
	dec   *zstd.Decoder
	cache dataset.ChunkCache
}

// Option configures Open.
type Option func(*File)

// WithCache routes chunk reads through a shared cache so repeated
// materializations skip disk and decompression.
func WithCache(c dataset.ChunkCache) Option {
	return func(f *File) {
		if c != nil {
			f.cache = c
		}
	}
}

// Open maps a TWD file: validates magic, version, and metadata integrity,
// and decodes the metadata block.
func Open(path string, opts ...Option) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fl := &File{path: path, f: f, cache: dataset.NopCache{}}
	for _, opt := range opts {
		opt(fl)
	}
	if err := fl.readMeta(); err != nil {
		f.Close()
		return nil, err
	}
	return fl, nil
}

func (fl *File) readMeta() error {
	hdrBuf := make([]byte, headerSize)
	if _, err := fl.f.ReadAt(hdrBuf, 0); err != nil {
		return fmt.Errorf("%w: %s", ErrTruncated, fl.path)
	}
	hdr, err := decodeHeader(hdrBuf)
	if err != nil {
		return err
	}
	comp := make([]byte, hdr.metaLen)
	if _, err := fl.f.ReadAt(comp, int64(hdr.metaOff)); err != nil {
		return fmt.Errorf("%w: metadata at %d", ErrTruncated, hdr.metaOff)
	}
	if crc32.ChecksumIEEE(comp) != hdr.metaCRC {
		return fmt.Errorf("%w: metadata", ErrChecksum)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("create zstd decoder: %w", err)
	}
	raw, err := dec.DecodeAll(comp, nil)
	if err != nil {
		dec.Close()
		return fmt.Errorf("decompress metadata: %w", err)
	}
	if err := json.Unmarshal(raw, &fl.meta); err != nil {
		dec.Close()
		return fmt.Errorf("decode metadata: %w", err)
	}
	fl.dec = dec
	return nil
}

// Close releases the file handle and decoder.
func (fl *File) Close() error {
	if fl.dec != nil {
		fl.dec.Close()
		fl.dec = nil
	}
	return fl.f.Close()
}

// Path returns the path the file was opened from.
func (fl *File) Path() string { return fl.path }

// Attrs returns a copy of the dataset attributes.
func (fl *File) Attrs() map[string]string {
	out := make(map[string]string, len(fl.meta.Attrs))
	for k, v := range fl.meta.Attrs {
		out[k] = v
	}
	return out
}

// DimInfo describes one dimension for inspection.
type DimInfo struct {
	Name   string
	Length int
}

// VarInfo describes one stored variable for inspection.
type VarInfo struct {
	Name   string
	Dims   []string
	DType  string
	Coord  bool
	Codec  string
	Chunks int
	Attrs  map[string]string
}

// DimInfos lists dimensions in declaration order.
func (fl *File) DimInfos() []DimInfo {
	out := make([]DimInfo, 0, len(fl.meta.Dims))
	for _, d := range fl.meta.Dims {
		out = append(out, DimInfo{Name: d.Name, Length: d.Length})
	}
	return out
}

// VarInfos lists stored variables, coordinates first.
func (fl *File) VarInfos() []VarInfo {
	out := make([]VarInfo, 0, len(fl.meta.Vars))
	for i := range fl.meta.Vars {
		v := &fl.meta.Vars[i]
		out = append(out, VarInfo{
			Name:   v.Name,
			Dims:   append([]string(nil), v.Dims...),
			DType:  v.DType,
			Coord:  v.Coord,
			Codec:  v.Codec,
			Chunks: len(v.Chunks),
			Attrs:  v.Attrs,
		})
	}
	return out
}

// Dataset assembles the container's contents as a dataset whose variables
// are lazy, chunk-backed arrays over this file.
func (fl *File) Dataset() (*dataset.Dataset, error) {
	ds := dataset.New()
	for _, d := range fl.meta.Dims {
		if err := ds.AddDim(d.Name, d.Length); err != nil {
			return nil, err
		}
	}
	for i := range fl.meta.Vars {
		vm := &fl.meta.Vars[i]
		dt, err := dataset.ParseDType(vm.DType)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", vm.Name, err)
		}
		shape := make([]int, len(vm.Dims))
		for k, dim := range vm.Dims {
			n, ok := ds.Dim(dim)
			if !ok {
				return nil, fmt.Errorf("variable %q uses undeclared dimension %q", vm.Name, dim)
			}
			shape[k] = n
		}
		arr := &chunkedArray{file: fl, vm: vm, shape: shape, dtype: dt}
		v, err := dataset.NewVariable(vm.Dims, arr, vm.Attrs)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", vm.Name, err)
		}
		if vm.Coord {
			err = ds.SetCoord(vm.Name, v)
		} else {
			err = ds.SetVar(vm.Name, v)
		}
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", vm.Name, err)
		}
	}
	ds.ReplaceAttrs(fl.meta.Attrs)
	return ds, nil
}

// readChunk returns one chunk's raw payload, via the cache when possible.
func (fl *File) readChunk(vm *varMeta, ci int) ([]byte, error) {
	key := fmt.Sprintf("%s\x00%s\x00%d", fl.path, vm.Name, ci)
	if data, ok := fl.cache.Get(key); ok {
		return data, nil
	}
	ch := vm.Chunks[ci]
	stored := make([]byte, ch.Length)
	if _, err := fl.f.ReadAt(stored, ch.Offset); err != nil {
		return nil, fmt.Errorf("%w: chunk %d of %q in %s", ErrTruncated, ci, vm.Name, fl.path)
	}
	if crc32.ChecksumIEEE(stored) != ch.Checksum {
		return nil, fmt.Errorf("%w: chunk %d of %q in %s", ErrChecksum, ci, vm.Name, fl.path)
	}
	raw := stored
	if vm.Codec == CodecZstd {
		var err error
		if raw, err = fl.dec.DecodeAll(stored, nil); err != nil {
			return nil, fmt.Errorf("decompress chunk %d of %q in %s: %w", ci, vm.Name, fl.path, err)
		}
	}
	if uint32(len(raw)) != ch.RawLength {
		return nil, fmt.Errorf("chunk %d of %q in %s: raw length %d, want %d", ci, vm.Name, fl.path, len(raw), ch.RawLength)
	}
	fl.cache.Put(key, raw)
	return raw, nil
}

// chunkedArray is a lazy dataset.Array over one stored variable.
type chunkedArray struct {
	file  *File
	vm    *varMeta
	shape []int
	dtype dataset.DType
}

func (a *chunkedArray) Shape() []int         { return append([]int(nil), a.shape...) }
func (a *chunkedArray) DType() dataset.DType { return a.dtype }

// Load fetches and decodes all chunks, fanning out through an errgroup.
// Chunks write to disjoint regions of the output buffer.
func (a *chunkedArray) Load(ctx context.Context) (*dataset.Buffer, error) {
	out := dataset.NewBuffer(a.dtype, a.shape)
	rowElems := 1
	if len(a.shape) > 0 {
		rowElems = product(a.shape[1:])
	}
	starts := make([]int, len(a.vm.Chunks))
	row := 0
	for i, ch := range a.vm.Chunks {
		starts[i] = row * rowElems
		row += ch.Rows
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range a.vm.Chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := a.file.readChunk(a.vm, i)
			if err != nil {
				return err
			}
			return decodeElems(out, starts[i], raw)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
