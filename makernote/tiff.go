// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package makernote

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
)

// TypeCode is a TIFF 6.0 field type.
type TypeCode uint16

const (
	TypeByte      TypeCode = 1
	TypeASCII     TypeCode = 2
	TypeShort     TypeCode = 3
	TypeLong      TypeCode = 4
	TypeRational  TypeCode = 5
	TypeSByte     TypeCode = 6
	TypeUndefined TypeCode = 7
	TypeSShort    TypeCode = 8
	TypeSLong     TypeCode = 9
	TypeSRational TypeCode = 10
	TypeFloat     TypeCode = 11
	TypeDouble    TypeCode = 12
)

// Size in bytes of each type.
var typeSize = map[TypeCode]uint64{
	TypeByte:      1,
	TypeASCII:     1,
	TypeShort:     2,
	TypeLong:      4,
	TypeRational:  8,
	TypeSByte:     1,
	TypeUndefined: 1,
	TypeSShort:    2,
	TypeSLong:     4,
	TypeSRational: 8,
	TypeFloat:     4,
	TypeDouble:    8,
}

var typeNames = map[TypeCode]string{
	TypeByte:      "BYTE",
	TypeASCII:     "ASCII",
	TypeShort:     "SHORT",
	TypeLong:      "LONG",
	TypeRational:  "RATIONAL",
	TypeSByte:     "SBYTE",
	TypeUndefined: "UNDEFINED",
	TypeSShort:    "SSHORT",
	TypeSLong:     "SLONG",
	TypeSRational: "SRATIONAL",
	TypeFloat:     "FLOAT",
	TypeDouble:    "DOUBLE",
}

func (t TypeCode) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "Unknown(" + strconv.Itoa(int(t)) + ")"
}

// maxDirectories limits how many IFDs we follow in one chain.
const maxDirectories = 16

// TiffEntry is a decoded IFD entry.
type TiffEntry struct {
	Tag uint16
	// Name is the Apple tag name, set by Decode for entries behind an Apple header only.
	Name string
	Type TypeCode
	// Count is the number of values as declared in the entry.
	Count uint32
	// Value is a single value for count 1, []byte for byte-like types,
	// string for ASCII and []any otherwise.
	// Unsupported types keep the raw 4 byte value field.
	Value any
}

// Directory is one decoded IFD.
type Directory struct {
	// Offset is the absolute offset of the IFD in the blob.
	Offset  int
	Entries []TiffEntry
}

// Get returns the entry with the given tag.
func (d Directory) Get(tag uint16) (TiffEntry, bool) {
	for _, e := range d.Entries {
		if e.Tag == tag {
			return e, true
		}
	}
	return TiffEntry{}, false
}

// TIFF is a decoded TIFF structure: a plain TIFF header or an Apple MakerNote header,
// followed by a chain of IFDs.
type TIFF struct {
	// Header is "Apple iOS" for Apple MakerNote headers, empty otherwise.
	Header string
	// Version is the Apple MakerNote version, or the TIFF version (42).
	Version   int
	ByteOrder binary.ByteOrder
	// Offset is the absolute offset of the structure in the blob.
	Offset      int
	Directories []Directory
}

// DecodeTIFF decodes the TIFF structure in b. Its byte order comes from its own header;
// fallback is only used for an Apple header whose byte order marker is unreadable.
// All value offsets are relative to the start of b.
func DecodeTIFF(b []byte, fallback binary.ByteOrder) (TIFF, []Diagnostic) {
	return decodeTIFF(b, 0, fallback)
}

func decodeTIFF(b []byte, base int, fallback binary.ByteOrder) (TIFF, []Diagnostic) {
	if fallback == nil {
		fallback = binary.BigEndian
	}
	e := &tiffDecoder{
		r: newByteReader(b, binary.BigEndian, base),
	}
	t := TIFF{Offset: base}

	var first uint64
	if bytes.HasPrefix(b, markerAppleHeader) {
		if len(b) < appleHeaderSize {
			e.diags.addf(TruncatedSegment, base, "Apple header has %d bytes, need %d", len(b), appleHeaderSize)
			return t, e.diags
		}
		t.Header = "Apple iOS"
		version, _ := e.r.read2At(uint64(len(markerAppleHeader)))
		t.Version = int(version)
		switch bo, _ := e.r.read2At(appleHeaderSize - 2); bo {
		case byteOrderBigEndian:
			e.r.byteOrder = binary.BigEndian
		case byteOrderLittleEndian:
			e.r.byteOrder = binary.LittleEndian
		default:
			e.r.byteOrder = fallback
			e.diags.addf(MalformedSignature, base+appleHeaderSize-2, "unknown byte order 0x%04x, using the EXIF byte order", bo)
		}
		first = appleHeaderSize
	} else {
		if len(b) < tiffHeaderSize {
			e.diags.addf(TruncatedSegment, base, "TIFF header has %d bytes, need %d", len(b), tiffHeaderSize)
			return t, e.diags
		}
		switch bo, _ := e.r.read2At(0); bo {
		case byteOrderBigEndian:
			e.r.byteOrder = binary.BigEndian
		case byteOrderLittleEndian:
			e.r.byteOrder = binary.LittleEndian
		default:
			e.diags.addf(MalformedSignature, base, "unknown byte order 0x%04x", bo)
			return t, e.diags
		}
		if id, _ := e.r.read2At(2); id != tiffMagic {
			e.diags.addf(MalformedSignature, base+2, "TIFF version %d, expected %d", id, tiffMagic)
			return t, e.diags
		}
		t.Version = tiffMagic
		ifdOffset, _ := e.r.read4At(4)
		first = uint64(ifdOffset)
	}
	t.ByteOrder = e.r.byteOrder

	t.Directories = e.decodeChain(first)
	return t, e.diags
}

type tiffDecoder struct {
	r     *byteReader
	diags diagnostics
}

func (e *tiffDecoder) decodeChain(offset uint64) []Directory {
	var dirs []Directory
	visited := make(map[uint64]bool)
	for offset != 0 {
		if visited[offset] {
			e.diags.addf(CyclicReference, e.r.abs(offset), "IFD chain loops back to offset %d", offset)
			break
		}
		if len(dirs) == maxDirectories {
			e.diags.addf(RecursionLimitExceeded, e.r.abs(offset), "more than %d IFDs in chain", maxDirectories)
			break
		}
		visited[offset] = true

		dir, next, ok := e.decodeDirectory(offset)
		if !ok {
			break
		}
		dirs = append(dirs, dir)
		offset = next
	}
	return dirs
}

// A directory is a 2 byte entry count, the entries and a 4 byte offset to the next directory.
func (e *tiffDecoder) decodeDirectory(offset uint64) (Directory, uint64, bool) {
	numTags, ok := e.r.read2At(offset)
	if !ok {
		e.diags.addf(OffsetOutOfBounds, e.r.abs(offset), "IFD offset %d is outside the segment", offset)
		return Directory{}, 0, false
	}
	dir := Directory{Offset: e.r.abs(offset)}

	start := offset + 2
	count := uint64(numTags)
	if !e.r.inRange(start, count*ifdEntrySize) {
		fit := uint64(0)
		if uint64(e.r.size()) > start {
			fit = (uint64(e.r.size()) - start) / ifdEntrySize
		}
		e.diags.addf(TruncatedSegment, e.r.abs(offset), "IFD declares %d entries, only %d fit", count, fit)
		count = fit
	}

	for i := uint64(0); i < count; i++ {
		if entry, ok := e.decodeEntry(start + i*ifdEntrySize); ok {
			dir.Entries = append(dir.Entries, entry)
		}
	}

	next, ok := e.r.read4At(start + count*ifdEntrySize)
	if !ok || count < uint64(numTags) {
		return dir, 0, true
	}
	return dir, uint64(next), true
}

// An entry is represented in 12 bytes:
//   - 2 bytes for the tag ID
//   - 2 bytes for the data type
//   - 4 bytes for the number of data values of the specified type
//   - 4 bytes for the value itself, if it fits, otherwise for an offset to where the data may be found.
func (e *tiffDecoder) decodeEntry(offset uint64) (TiffEntry, bool) {
	tag, _ := e.r.read2At(offset)
	typ, _ := e.r.read2At(offset + 2)
	count, _ := e.r.read4At(offset + 4)
	valueField := offset + 8

	entry := TiffEntry{
		Tag:   tag,
		Type:  TypeCode(typ),
		Count: count,
	}

	size, found := typeSize[entry.Type]
	if !found {
		raw, _ := e.r.bytesAt(valueField, 4)
		entry.Value = append([]byte(nil), raw...)
		e.diags.addf(UnsupportedTypeCode, e.r.abs(offset), "tag 0x%04x has unknown type %d, kept raw value field", tag, typ)
		return entry, true
	}

	valLen := size * uint64(count)
	valueOffset := valueField
	if valLen > 4 {
		o, _ := e.r.read4At(valueField)
		valueOffset = uint64(o)
	}
	if !e.r.inRange(valueOffset, valLen) {
		e.diags.addf(OffsetOutOfBounds, e.r.abs(offset), "tag 0x%04x value of %d bytes at offset %d is outside the segment", tag, valLen, valueOffset)
		return entry, false
	}

	entry.Value = e.convertValues(entry, valueOffset, valLen)
	return entry, true
}

func (e *tiffDecoder) convertValues(entry TiffEntry, offset, valLen uint64) any {
	if entry.Count == 0 {
		return nil
	}

	switch entry.Type {
	case TypeASCII:
		b, _ := e.r.bytesAt(offset, valLen)
		return string(trimBytesNulls(b))
	case TypeByte, TypeUndefined:
		if entry.Count > 1 {
			b, _ := e.r.bytesAt(offset, valLen)
			return append([]byte(nil), b...)
		}
	}

	size := typeSize[entry.Type]
	if entry.Count == 1 {
		return e.convertValue(entry, offset)
	}
	values := make([]any, entry.Count)
	for i := range values {
		values[i] = e.convertValue(entry, offset+uint64(i)*size)
	}
	return values
}

// convertValue reads one value; the range was checked by the caller.
func (e *tiffDecoder) convertValue(entry TiffEntry, offset uint64) any {
	switch entry.Type {
	case TypeByte, TypeUndefined:
		v, _ := e.r.read1At(offset)
		return v
	case TypeSByte:
		v, _ := e.r.read1At(offset)
		return int8(v)
	case TypeShort:
		v, _ := e.r.read2At(offset)
		return v
	case TypeSShort:
		v, _ := e.r.read2At(offset)
		return int16(v)
	case TypeLong:
		v, _ := e.r.read4At(offset)
		return v
	case TypeSLong:
		v, _ := e.r.read4At(offset)
		return int32(v)
	case TypeRational:
		n, _ := e.r.read4At(offset)
		d, _ := e.r.read4At(offset + 4)
		r := Rat[uint32]{Num: n, Den: d}
		if r.IsUndefined() {
			e.diags.addf(UndefinedRational, e.r.abs(offset), "tag 0x%04x: %d/0", entry.Tag, n)
		}
		return r
	case TypeSRational:
		n, _ := e.r.read4At(offset)
		d, _ := e.r.read4At(offset + 4)
		r := Rat[int32]{Num: int32(n), Den: int32(d)}
		if r.IsUndefined() {
			e.diags.addf(UndefinedRational, e.r.abs(offset), "tag 0x%04x: %d/0", entry.Tag, int32(n))
		}
		return r
	case TypeFloat:
		v, _ := e.r.read4At(offset)
		return math.Float32frombits(v)
	case TypeDouble:
		v, _ := e.r.read8At(offset)
		return math.Float64frombits(v)
	default:
		return nil
	}
}
