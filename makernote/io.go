// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package makernote

import (
	"encoding/binary"
	"math"
)

// byteReader provides bounds checked reads of binary data from an in-memory segment.
// Every read reports whether it was in range; nothing here panics on short input.
// Note that this is not thread safe, but it is cheap to create one per segment.
type byteReader struct {
	b         []byte
	byteOrder binary.ByteOrder

	// base is the absolute offset of b[0] in the blob, used for diagnostics.
	base int
}

func newByteReader(b []byte, byteOrder binary.ByteOrder, base int) *byteReader {
	return &byteReader{b: b, byteOrder: byteOrder, base: base}
}

func (e *byteReader) size() int {
	return len(e.b)
}

// inRange reports whether [off, off+n) is within the segment.
// It is written to avoid overflow for large n.
func (e *byteReader) inRange(off, n uint64) bool {
	size := uint64(len(e.b))
	return off <= size && n <= size-off
}

func (e *byteReader) abs(off uint64) int {
	if off > math.MaxInt32 {
		return e.base + math.MaxInt32
	}
	return e.base + int(off)
}

func (e *byteReader) bytesAt(off, n uint64) ([]byte, bool) {
	if !e.inRange(off, n) {
		return nil, false
	}
	return e.b[off : off+n], true
}

func (e *byteReader) read1At(off uint64) (uint8, bool) {
	if !e.inRange(off, 1) {
		return 0, false
	}
	return e.b[off], true
}

func (e *byteReader) read2At(off uint64) (uint16, bool) {
	b, ok := e.bytesAt(off, 2)
	if !ok {
		return 0, false
	}
	return e.byteOrder.Uint16(b), true
}

func (e *byteReader) read4At(off uint64) (uint32, bool) {
	b, ok := e.bytesAt(off, 4)
	if !ok {
		return 0, false
	}
	return e.byteOrder.Uint32(b), true
}

func (e *byteReader) read8At(off uint64) (uint64, bool) {
	b, ok := e.bytesAt(off, 8)
	if !ok {
		return 0, false
	}
	return e.byteOrder.Uint64(b), true
}

// readUintNAt reads an unsigned integer of width n (1 to 8 bytes).
func (e *byteReader) readUintNAt(off uint64, n int) (uint64, bool) {
	if n < 1 || n > 8 {
		return 0, false
	}
	b, ok := e.bytesAt(off, uint64(n))
	if !ok {
		return 0, false
	}
	var v uint64
	if e.byteOrder == binary.LittleEndian {
		for i := n - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[i])
		}
		return v, true
	}
	for i := 0; i < n; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, true
}

// mulFits returns a*b and whether it did not overflow.
func mulFits(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxUint64/b {
		return 0, false
	}
	return a * b, true
}
