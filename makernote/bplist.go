// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package makernote

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// DefaultMaxDepth is the default property list nesting limit.
const DefaultMaxDepth = 64

// Object markers, high nibble.
const (
	bpTagSimple      = 0x0
	bpTagInteger     = 0x1
	bpTagReal        = 0x2
	bpTagDate        = 0x3
	bpTagData        = 0x4
	bpTagASCIIString = 0x5
	bpTagUTF16String = 0x6
	bpTagUTF8String  = 0x7
	bpTagUID         = 0x8
	bpTagArray       = 0xA
	bpTagSet         = 0xC
	bpTagDictionary  = 0xD
)

// Simple object markers.
const (
	bpNull      = 0x00
	bpBoolFalse = 0x08
	bpBoolTrue  = 0x09
	bpFill      = 0x0F
)

// Seconds between the Unix epoch and the Apple reference date (2001-01-01T00:00:00Z).
const appleEpochUnix = 978307200

// Keep dates within what time.Time represents sensibly.
const maxAppleSeconds = 1 << 40

// plistTrailer is the fixed size footer of a binary property list.
// The first 6 bytes are unused (5) and the sort version (1).
type plistTrailer struct {
	offsetIntSize     uint8
	objectRefSize     uint8
	numObjects        uint64
	topObject         uint64
	offsetTableOffset uint64
}

// readPlistTrailer reads a trailer at off in r, which must be big endian.
func readPlistTrailer(r *byteReader, off uint64) (plistTrailer, bool) {
	b, ok := r.bytesAt(off, plistTrailerSize)
	if !ok {
		return plistTrailer{}, false
	}
	t := plistTrailer{
		offsetIntSize:     b[6],
		objectRefSize:     b[7],
		numObjects:        binary.BigEndian.Uint64(b[8:16]),
		topObject:         binary.BigEndian.Uint64(b[16:24]),
		offsetTableOffset: binary.BigEndian.Uint64(b[24:32]),
	}
	return t, t.valid()
}

func (t plistTrailer) valid() bool {
	return t.offsetIntSize >= 1 && t.offsetIntSize <= 8 &&
		t.objectRefSize >= 1 && t.objectRefSize <= 8 &&
		t.numObjects > 0 && t.topObject < t.numObjects &&
		t.offsetTableOffset >= uint64(len(markerPlist))
}

// declaredLength is the total property list length implied by the trailer,
// or math.MaxUint64 if that overflows.
func (t plistTrailer) declaredLength() uint64 {
	tableSize, ok := mulFits(t.numObjects, uint64(t.offsetIntSize))
	if !ok {
		return math.MaxUint64
	}
	end := t.offsetTableOffset + tableSize
	if end < t.offsetTableOffset || end > math.MaxUint64-plistTrailerSize {
		return math.MaxUint64
	}
	return end + plistTrailerSize
}

// DecodePropertyList decodes the binary property list in b.
// It always returns a tree; a tree that could not be decoded has a single Null root.
// A maxDepth <= 0 means DefaultMaxDepth.
func DecodePropertyList(b []byte, maxDepth int) (*PropertyList, []Diagnostic) {
	return decodePropertyList(b, 0, maxDepth)
}

func decodePropertyList(b []byte, base, maxDepth int) (*PropertyList, []Diagnostic) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	d := &plistDecoder{
		r:        newByteReader(b, binary.BigEndian, base),
		maxDepth: maxDepth,
		resolved: make(map[uint64]int),
		active:   make(map[uint64]bool),
	}
	p := &PropertyList{Offset: base}
	p.Root = d.decode()
	p.Nodes = d.nodes
	return p, d.diags
}

type plistDecoder struct {
	r        *byteReader
	t        plistTrailer
	maxDepth int

	nodes []Node

	// Object index to arena index for fully resolved objects.
	resolved map[uint64]int
	// Objects on the current resolution path.
	active map[uint64]bool

	diags diagnostics
}

func (d *plistDecoder) decode() int {
	size := d.r.size()
	if size < plistMinSize {
		d.diags.addf(TruncatedSegment, d.r.abs(0), "property list has %d bytes, need at least %d", size, plistMinSize)
		return d.null()
	}
	if !bytes.HasPrefix(d.r.b, markerPlist[:7]) {
		d.diags.addf(MalformedSignature, d.r.abs(0), "missing bplist0 magic")
		return d.null()
	}

	trailerOffset := uint64(size - plistTrailerSize)
	t, ok := readPlistTrailer(d.r, trailerOffset)
	if !ok {
		d.diags.addf(MalformedSignature, d.r.abs(trailerOffset), "invalid trailer (offset size %d, ref size %d, %d objects, top %d)",
			t.offsetIntSize, t.objectRefSize, t.numObjects, t.topObject)
		return d.null()
	}
	tableSize, ok := mulFits(t.numObjects, uint64(t.offsetIntSize))
	if !ok || !d.r.inRange(t.offsetTableOffset, tableSize) || t.offsetTableOffset+tableSize > trailerOffset {
		d.diags.addf(OffsetOutOfBounds, d.r.abs(trailerOffset), "offset table at %d with %d entries does not fit", t.offsetTableOffset, t.numObjects)
		return d.null()
	}
	d.t = t

	return d.resolve(t.topObject, 0)
}

func (d *plistDecoder) null() int {
	d.nodes = append(d.nodes, Node{Kind: KindNull})
	return len(d.nodes) - 1
}

func (d *plistDecoder) nullf(kind DiagnosticKind, off uint64, format string, args ...any) int {
	d.diags.addf(kind, d.r.abs(off), format, args...)
	return d.null()
}

func (d *plistDecoder) add(n Node) int {
	d.nodes = append(d.nodes, n)
	return len(d.nodes) - 1
}

func (d *plistDecoder) resolve(idx uint64, depth int) int {
	if idx >= d.t.numObjects {
		return d.nullf(OffsetOutOfBounds, d.t.offsetTableOffset, "object reference %d out of range (%d objects)", idx, d.t.numObjects)
	}
	if i, found := d.resolved[idx]; found {
		return i
	}
	if d.active[idx] {
		off, _ := d.objectOffset(idx)
		return d.nullf(CyclicReference, off, "object %d references one of its ancestors", idx)
	}
	if depth >= d.maxDepth {
		off, _ := d.objectOffset(idx)
		return d.nullf(RecursionLimitExceeded, off, "object %d nested deeper than %d", idx, d.maxDepth)
	}

	d.active[idx] = true
	i := d.decodeObject(idx, depth)
	delete(d.active, idx)
	d.resolved[idx] = i
	return i
}

func (d *plistDecoder) objectOffset(idx uint64) (uint64, bool) {
	// The offset table was range checked in decode.
	off, ok := d.r.readUintNAt(d.t.offsetTableOffset+idx*uint64(d.t.offsetIntSize), int(d.t.offsetIntSize))
	if !ok || off < uint64(len(markerPlist)) || off >= uint64(d.r.size()) {
		return off, false
	}
	return off, true
}

// length reads the object length encoded in the low nibble of the marker at off,
// returning the length and the offset of the object payload.
func (d *plistDecoder) length(off uint64, info uint8) (uint64, uint64, bool) {
	if info != 0xF {
		return uint64(info), off + 1, true
	}
	marker, ok := d.r.read1At(off + 1)
	if !ok || marker>>4 != bpTagInteger || marker&0xF > 3 {
		return 0, 0, false
	}
	width := 1 << (marker & 0xF)
	n, ok := d.r.readUintNAt(off+2, width)
	if !ok {
		return 0, 0, false
	}
	return n, off + 2 + uint64(width), true
}

func (d *plistDecoder) decodeObject(idx uint64, depth int) int {
	off, ok := d.objectOffset(idx)
	if !ok {
		return d.nullf(OffsetOutOfBounds, d.t.offsetTableOffset, "object %d has offset %d outside the property list", idx, off)
	}
	marker, _ := d.r.read1At(off)
	info := marker & 0x0F

	switch marker >> 4 {
	case bpTagSimple:
		switch marker {
		case bpNull, bpFill:
			return d.null()
		case bpBoolFalse, bpBoolTrue:
			return d.add(Node{Kind: KindBool, Bool: marker == bpBoolTrue})
		}
	case bpTagInteger:
		return d.decodeInteger(off, info)
	case bpTagReal:
		if info != 2 && info != 3 {
			break
		}
		f, ok := d.readReal(off, info)
		if !ok {
			return d.nullf(OffsetOutOfBounds, off, "real object runs past the end")
		}
		return d.add(Node{Kind: KindReal, Real: f})
	case bpTagDate:
		if info != 3 {
			break
		}
		f, ok := d.readReal(off, info)
		if !ok {
			return d.nullf(OffsetOutOfBounds, off, "date object runs past the end")
		}
		return d.add(Node{Kind: KindDate, Date: appleDate(f)})
	case bpTagData, bpTagASCIIString, bpTagUTF16String, bpTagUTF8String:
		return d.decodeBytes(off, marker)
	case bpTagUID:
		// UIDs appear in keyed archives; they are plain object numbers.
		u, ok := d.r.readUintNAt(off+1, int(info)+1)
		if !ok {
			return d.nullf(OffsetOutOfBounds, off, "UID object runs past the end")
		}
		return d.add(Node{Kind: KindInteger, Int: int64(u)})
	case bpTagArray, bpTagSet:
		return d.decodeArray(off, info, depth)
	case bpTagDictionary:
		return d.decodeDictionary(off, info, depth)
	}

	return d.nullf(UnsupportedTypeCode, off, "unsupported object marker 0x%02x", marker)
}

func (d *plistDecoder) decodeInteger(off uint64, info uint8) int {
	switch info {
	case 0, 1, 2:
		u, ok := d.r.readUintNAt(off+1, 1<<info)
		if !ok {
			break
		}
		return d.add(Node{Kind: KindInteger, Int: int64(u)})
	case 3:
		u, ok := d.r.read8At(off + 1)
		if !ok {
			break
		}
		return d.add(Node{Kind: KindInteger, Int: int64(u)})
	case 4:
		// 128 bit integers are only written for values above MaxInt64; keep the low 64 bits.
		u, ok := d.r.read8At(off + 9)
		if !ok {
			break
		}
		return d.add(Node{Kind: KindInteger, Int: int64(u)})
	default:
		return d.nullf(UnsupportedTypeCode, off, "unsupported integer width 2^%d", info)
	}
	return d.nullf(OffsetOutOfBounds, off, "integer object runs past the end")
}

func (d *plistDecoder) readReal(off uint64, info uint8) (float64, bool) {
	switch info {
	case 2:
		u, ok := d.r.read4At(off + 1)
		return float64(math.Float32frombits(u)), ok
	case 3:
		u, ok := d.r.read8At(off + 1)
		return math.Float64frombits(u), ok
	default:
		return 0, false
	}
}

func (d *plistDecoder) decodeBytes(off uint64, marker uint8) int {
	n, start, ok := d.length(off, marker&0xF)
	if !ok {
		return d.nullf(OffsetOutOfBounds, off, "object length after marker 0x%02x is unreadable", marker)
	}
	size := n
	if marker>>4 == bpTagUTF16String {
		var fits bool
		if size, fits = mulFits(n, 2); !fits {
			return d.nullf(OffsetOutOfBounds, off, "UTF-16 string length %d overflows", n)
		}
	}
	b, ok := d.r.bytesAt(start, size)
	if !ok {
		return d.nullf(OffsetOutOfBounds, off, "object of %d bytes at %d runs past the end", size, start)
	}

	switch marker >> 4 {
	case bpTagData:
		return d.add(Node{Kind: KindData, Data: append([]byte(nil), b...)})
	case bpTagUTF16String:
		s, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
		if err != nil {
			return d.nullf(UnsupportedTypeCode, off, "invalid UTF-16 string: %v", err)
		}
		return d.add(Node{Kind: KindString, Str: string(s)})
	default:
		return d.add(Node{Kind: KindString, Str: string(b)})
	}
}

// refs reads n object references starting at start.
func (d *plistDecoder) refs(start, n uint64) ([]uint64, bool) {
	size, ok := mulFits(n, uint64(d.t.objectRefSize))
	if !ok || !d.r.inRange(start, size) {
		return nil, false
	}
	refs := make([]uint64, n)
	for i := range refs {
		refs[i], _ = d.r.readUintNAt(start+uint64(i)*uint64(d.t.objectRefSize), int(d.t.objectRefSize))
	}
	return refs, true
}

func (d *plistDecoder) decodeArray(off uint64, info uint8, depth int) int {
	n, start, ok := d.length(off, info)
	if !ok {
		return d.nullf(OffsetOutOfBounds, off, "array length is unreadable")
	}
	refs, ok := d.refs(start, n)
	if !ok {
		return d.nullf(OffsetOutOfBounds, off, "array of %d references runs past the end", n)
	}

	// Reserve the slot first so parents precede their children in the arena.
	i := d.add(Node{Kind: KindArray})
	children := make([]int, len(refs))
	for j, ref := range refs {
		children[j] = d.resolve(ref, depth+1)
	}
	d.nodes[i].Children = children
	return i
}

func (d *plistDecoder) decodeDictionary(off uint64, info uint8, depth int) int {
	n, start, ok := d.length(off, info)
	if !ok {
		return d.nullf(OffsetOutOfBounds, off, "dictionary length is unreadable")
	}
	count, fits := mulFits(n, 2)
	if !fits {
		return d.nullf(OffsetOutOfBounds, off, "dictionary length %d overflows", n)
	}
	refs, ok := d.refs(start, count)
	if !ok {
		return d.nullf(OffsetOutOfBounds, off, "dictionary of %d entries runs past the end", n)
	}

	i := d.add(Node{Kind: KindMapping})
	keys := make([]string, 0, n)
	children := make([]int, 0, n)
	seen := make(map[string]bool, n)
	for j := uint64(0); j < n; j++ {
		key := d.keyString(d.resolve(refs[j], depth+1))
		value := d.resolve(refs[n+j], depth+1)
		if seen[key] {
			// First occurrence wins.
			continue
		}
		seen[key] = true
		keys = append(keys, key)
		children = append(children, value)
	}
	d.nodes[i].Keys = keys
	d.nodes[i].Children = children
	return i
}

func (d *plistDecoder) keyString(i int) string {
	n := d.nodes[i]
	switch n.Kind {
	case KindString:
		return n.Str
	case KindInteger:
		return strconv.FormatInt(n.Int, 10)
	case KindReal:
		return strconv.FormatFloat(n.Real, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(n.Bool)
	default:
		return fmt.Sprintf("<%s>", n.Kind)
	}
}

func appleDate(secs float64) time.Time {
	if math.IsNaN(secs) {
		secs = 0
	}
	secs = math.Max(math.Min(secs, maxAppleSeconds), -maxAppleSeconds)
	whole, frac := math.Modf(secs)
	return time.Unix(appleEpochUnix+int64(whole), int64(math.Round(frac*1e9))).UTC()
}
