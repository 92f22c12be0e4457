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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/AleutianAI/tidewater/services/totaling/dataset"
)

const (
	magic      = "TWD1"
	version    = 1
	headerSize = 24

	// DefaultChunkBytes targets ~1 MiB of raw data per chunk.
	DefaultChunkBytes = 1 << 20
)

// Codec names as stored in variable metadata.
const (
	CodecRaw  = "raw"
	CodecZstd = "zstd"
)

// fileHeader is the fixed-size preamble, big-endian on disk.
type fileHeader struct {
	version  uint8
	flags    uint8
	metaOff  uint64
	metaLen  uint32
	metaCRC  uint32
	reserved uint16
}

func (h fileHeader) encode() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic)
	buf[4] = h.version
	buf[5] = h.flags
	binary.BigEndian.PutUint16(buf[6:8], h.reserved)
	binary.BigEndian.PutUint64(buf[8:16], h.metaOff)
	binary.BigEndian.PutUint32(buf[16:20], h.metaLen)
	binary.BigEndian.PutUint32(buf[20:24], h.metaCRC)
	return buf
}

func decodeHeader(buf []byte) (fileHeader, error) {
	var h fileHeader
	if len(buf) < headerSize {
		return h, fmt.Errorf("%w: %d byte header", ErrTruncated, len(buf))
	}
	if string(buf[0:4]) != magic {
		return h, ErrNotTWD
	}
	h.version = buf[4]
	h.flags = buf[5]
	h.reserved = binary.BigEndian.Uint16(buf[6:8])
	h.metaOff = binary.BigEndian.Uint64(buf[8:16])
	h.metaLen = binary.BigEndian.Uint32(buf[16:20])
	h.metaCRC = binary.BigEndian.Uint32(buf[20:24])
	if h.version != version {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.version)
	}
	return h, nil
}

// fileMeta is the JSON metadata block.
type fileMeta struct {
	Dims  []dimMeta         `json:"dims"`
	Vars  []varMeta         `json:"vars"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

type dimMeta struct {
	Name   string `json:"name"`
	Length int    `json:"length"`
}

type varMeta struct {
	Name   string            `json:"name"`
	Dims   []string          `json:"dims"`
	DType  string            `json:"dtype"`
	Coord  bool              `json:"coord,omitempty"`
	Codec  string            `json:"codec"`
	Attrs  map[string]string `json:"attrs,omitempty"`
	Chunks []chunkMeta       `json:"chunks"`
}

type chunkMeta struct {
	Offset    int64  `json:"offset"`
	Length    uint32 `json:"length"`
	RawLength uint32 `json:"raw_length"`
	Rows      int    `json:"rows"`
	Checksum  uint32 `json:"checksum"`
}

// encodeElems serializes elements [start, start+n) of a buffer, big-endian.
func encodeElems(buf *dataset.Buffer, start, n int) ([]byte, error) {
	size := buf.DType().Size()
	if size == 0 {
		return nil, fmt.Errorf("dtype %s has no on-disk representation", buf.DType())
	}
	out := make([]byte, n*size)
	switch buf.DType() {
	case dataset.Float64:
		for i := 0; i < n; i++ {
			binary.BigEndian.PutUint64(out[i*8:], math.Float64bits(buf.Float(start+i)))
		}
	case dataset.Float32:
		for i := 0; i < n; i++ {
			binary.BigEndian.PutUint32(out[i*4:], math.Float32bits(float32(buf.Float(start+i))))
		}
	case dataset.Int64:
		for i := 0; i < n; i++ {
			binary.BigEndian.PutUint64(out[i*8:], uint64(buf.Int(start+i)))
		}
	}
	return out, nil
}

// decodeElems deserializes raw big-endian bytes into a buffer at element
// offset start.
func decodeElems(buf *dataset.Buffer, start int, raw []byte) error {
	size := buf.DType().Size()
	if size == 0 {
		return fmt.Errorf("dtype %s has no on-disk representation", buf.DType())
	}
	if len(raw)%size != 0 {
		return fmt.Errorf("raw chunk length %d not a multiple of element size %d", len(raw), size)
	}
	n := len(raw) / size
	switch buf.DType() {
	case dataset.Float64:
		for i := 0; i < n; i++ {
			buf.SetFloat(start+i, math.Float64frombits(binary.BigEndian.Uint64(raw[i*8:])))
		}
	case dataset.Float32:
		for i := 0; i < n; i++ {
			buf.SetFloat(start+i, float64(math.Float32frombits(binary.BigEndian.Uint32(raw[i*4:]))))
		}
	case dataset.Int64:
		for i := 0; i < n; i++ {
			buf.SetInt(start+i, int64(binary.BigEndian.Uint64(raw[i*8:])))
		}
	}
	return nil
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
