// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package makernote

import (
	"bytes"
	"encoding/binary"
)

var (
	markerPlist       = []byte("bplist00")
	markerAppleHeader = []byte("Apple iOS\x00")
	markerTIFFBig     = []byte{'M', 'M', 0x00, 0x2a}
	markerTIFFLittle  = []byte{'I', 'I', 0x2a, 0x00}
)

const (
	byteOrderBigEndian    = 0x4d4d
	byteOrderLittleEndian = 0x4949
	tiffMagic             = 42

	// "Apple iOS\0", 2 byte version, 2 byte byte order.
	appleHeaderSize = 14
	tiffHeaderSize  = 8
	ifdEntrySize    = 12

	plistTrailerSize = 32
	// Magic, one object marker and the trailer.
	plistMinSize = 8 + 1 + plistTrailerSize

	// minHeaderSize is the shortest input that can hold any signature we know.
	minHeaderSize = 8

	// resyncFactor bounds the total scanning work to resyncFactor*len(blob) steps.
	resyncFactor = 4
)

// SegmentKind is the kind of sub-structure a Segment is believed to hold.
//
//go:generate stringer -type=SegmentKind -trimprefix=Segment
type SegmentKind int

const (
	SegmentUnrecognized SegmentKind = iota
	SegmentPropertyList
	SegmentTiffDirectory
)

// Segment is a byte range in the blob.
type Segment struct {
	Kind   SegmentKind
	Start  int
	Length int
}

// Bytes returns the segment's bytes in b.
func (s Segment) Bytes(b []byte) []byte {
	if s.Start < 0 || s.Length < 0 || s.Start > len(b) || s.Length > len(b)-s.Start {
		return nil
	}
	return b[s.Start : s.Start+s.Length]
}

// ScanSegments walks b looking for property list and TIFF signatures.
// An empty list is a valid result.
func ScanSegments(b []byte) ([]Segment, []Diagnostic) {
	s := &segmentScanner{
		b:      b,
		budget: resyncFactor*len(b) + minHeaderSize,
	}
	s.scan()
	return s.segments, s.diags
}

type segmentScanner struct {
	b        []byte
	segments []Segment
	diags    diagnostics

	// Remaining scan steps.
	budget int

	// Built on the first property list candidate.
	plistEnds map[int]int
}

func (s *segmentScanner) spend(n int) bool {
	s.budget -= n
	return s.budget >= 0
}

func (s *segmentScanner) scan() {
	pos := 0
	for pos < len(s.b) {
		if !s.spend(1) {
			s.diags.addf(TruncatedSegment, pos, "resync window exhausted, stopped scanning")
			return
		}
		rest := s.b[pos:]
		switch {
		case bytes.HasPrefix(rest, markerPlist):
			pos = s.scanPlist(pos)
		case bytes.HasPrefix(rest, markerAppleHeader):
			pos = s.scanAppleIFD(pos)
		case bytes.HasPrefix(rest, markerTIFFBig), bytes.HasPrefix(rest, markerTIFFLittle):
			pos = s.scanTIFF(pos)
		default:
			pos++
		}
	}
}

// unrecognized downgrades a candidate and returns the position to resume at.
func (s *segmentScanner) unrecognized(pos, length int, kind DiagnosticKind, format string, args ...any) int {
	s.segments = append(s.segments, Segment{Kind: SegmentUnrecognized, Start: pos, Length: length})
	s.diags.addf(kind, pos, format, args...)
	return pos + 1
}

func (s *segmentScanner) scanPlist(pos int) int {
	if len(s.b)-pos < plistMinSize {
		return s.unrecognized(pos, len(s.b)-pos, TruncatedSegment, "property list candidate has %d bytes, need at least %d", len(s.b)-pos, plistMinSize)
	}

	if s.plistEnds == nil {
		s.plistEnds = plistEnds(s.b)
	}
	if end, found := s.plistEnds[pos]; found {
		s.segments = append(s.segments, Segment{Kind: SegmentPropertyList, Start: pos, Length: end - pos})
		return end
	}

	return s.unrecognized(pos, len(markerPlist), TruncatedSegment, "no property list trailer declares a length within the blob")
}

// plistEnds maps each start offset to the end of the first valid trailer that
// declares a property list beginning there.
// The format does not store its total length, but a valid trailer
// declares it: the offset table ends exactly where the trailer starts.
func plistEnds(b []byte) map[int]int {
	ends := make(map[int]int)
	r := newByteReader(b, binary.BigEndian, 0)
	for end := plistMinSize; end <= len(b); end++ {
		t, ok := readPlistTrailer(r, uint64(end-plistTrailerSize))
		if !ok {
			continue
		}
		n := t.declaredLength()
		if n > uint64(end) {
			continue
		}
		start := end - int(n)
		if _, found := ends[start]; !found {
			ends[start] = end
		}
	}
	return ends
}

func (s *segmentScanner) scanAppleIFD(pos int) int {
	r := newByteReader(s.b, binary.BigEndian, 0)
	if bo, ok := r.read2At(uint64(pos + appleHeaderSize - 2)); ok && bo == byteOrderLittleEndian {
		r.byteOrder = binary.LittleEndian
	}
	count, ok := r.read2At(uint64(pos + appleHeaderSize))
	if !ok {
		return s.unrecognized(pos, len(s.b)-pos, TruncatedSegment, "Apple header without entry count")
	}
	if !r.inRange(uint64(pos+appleHeaderSize+2), uint64(count)*ifdEntrySize) {
		return s.unrecognized(pos, len(s.b)-pos, TruncatedSegment, "Apple IFD declares %d entries, which run past the end", count)
	}
	s.segments = append(s.segments, Segment{Kind: SegmentTiffDirectory, Start: pos, Length: len(s.b) - pos})

	// Values live after the directory and may hold property lists; keep scanning.
	return pos + appleHeaderSize
}

func (s *segmentScanner) scanTIFF(pos int) int {
	r := newByteReader(s.b, binary.BigEndian, 0)
	if s.b[pos] == 'I' {
		r.byteOrder = binary.LittleEndian
	}
	ifdOffset, ok := r.read4At(uint64(pos + 4))
	if !ok {
		return s.unrecognized(pos, len(s.b)-pos, TruncatedSegment, "TIFF header without IFD offset")
	}
	if ifdOffset < tiffHeaderSize {
		return s.unrecognized(pos, len(s.b)-pos, OffsetOutOfBounds, "TIFF IFD offset %d points into the header", ifdOffset)
	}
	ifdStart := uint64(pos) + uint64(ifdOffset)
	count, ok := r.read2At(ifdStart)
	if !ok {
		return s.unrecognized(pos, len(s.b)-pos, OffsetOutOfBounds, "TIFF IFD offset %d is past the end", ifdOffset)
	}
	if !r.inRange(ifdStart+2, uint64(count)*ifdEntrySize) {
		return s.unrecognized(pos, len(s.b)-pos, TruncatedSegment, "TIFF IFD declares %d entries, which run past the end", count)
	}
	s.segments = append(s.segments, Segment{Kind: SegmentTiffDirectory, Start: pos, Length: len(s.b) - pos})
	return pos + tiffHeaderSize
}
