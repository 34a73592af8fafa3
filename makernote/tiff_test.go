// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package makernote

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/rwcarlsen/goexif/tiff"
)

// byteOrder is what binary.BigEndian and binary.LittleEndian implement.
type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

type testEntry struct {
	tag   uint16
	typ   TypeCode
	count uint32
	// value holds the encoded values; values longer than 4 bytes are written after the IFD.
	value []byte
	// If set, used as the value offset instead of the real one.
	offset *uint32
}

// buildTIFF writes a TIFF header followed by a single IFD at offset 8.
func buildTIFF(bo byteOrder, entries []testEntry) []byte {
	var b []byte
	if bo == binary.LittleEndian {
		b = append(b, markerTIFFLittle...)
	} else {
		b = append(b, markerTIFFBig...)
	}
	b = bo.AppendUint32(b, tiffHeaderSize)
	return appendIFD(b, bo, entries, 0)
}

// appendIFD writes an IFD at the end of b, followed by its out of line values.
func appendIFD(b []byte, bo byteOrder, entries []testEntry, next uint32) []byte {
	dataOffset := len(b) + 2 + len(entries)*ifdEntrySize + 4
	var data []byte

	b = bo.AppendUint16(b, uint16(len(entries)))
	for _, e := range entries {
		b = bo.AppendUint16(b, e.tag)
		b = bo.AppendUint16(b, uint16(e.typ))
		b = bo.AppendUint32(b, e.count)
		switch {
		case e.offset != nil:
			b = bo.AppendUint32(b, *e.offset)
		case len(e.value) <= 4:
			var field [4]byte
			copy(field[:], e.value)
			b = append(b, field[:]...)
		default:
			b = bo.AppendUint32(b, uint32(dataOffset+len(data)))
			data = append(data, e.value...)
		}
	}
	b = bo.AppendUint32(b, next)
	return append(b, data...)
}

func rational(bo byteOrder, pairs ...uint32) []byte {
	var b []byte
	for _, v := range pairs {
		b = bo.AppendUint32(b, v)
	}
	return b
}

func readTestData(t testing.TB, name string) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestDecodeTIFFValues(t *testing.T) {
	c := qt.New(t)

	for _, bo := range []byteOrder{binary.BigEndian, binary.LittleEndian} {
		c.Run(bo.String(), func(c *qt.C) {
			b := buildTIFF(bo, []testEntry{
				{tag: 0x010f, typ: TypeASCII, count: 6, value: []byte("Apple\x00")},
				{tag: 0x0112, typ: TypeShort, count: 1, value: bo.AppendUint16(nil, 6)},
				{tag: 0x0102, typ: TypeShort, count: 3, value: bo.AppendUint16(bo.AppendUint16(bo.AppendUint16(nil, 8), 8), 8)},
				{tag: 0x011a, typ: TypeRational, count: 1, value: rational(bo, 300, 1)},
				{tag: 0x9201, typ: TypeSRational, count: 1, value: rational(bo, uint32(0xffffff9c), 10)},
				{tag: 0x0008, typ: TypeSLong, count: 1, value: bo.AppendUint32(nil, 0xfffffffe)},
				{tag: 0x0009, typ: TypeLong, count: 1, value: bo.AppendUint32(nil, 982)},
				{tag: 0x9000, typ: TypeUndefined, count: 4, value: []byte("0232")},
				{tag: 0x0001, typ: TypeByte, count: 1, value: []byte{7}},
				{tag: 0x0002, typ: TypeSByte, count: 1, value: []byte{0xff}},
				{tag: 0x0003, typ: TypeSShort, count: 1, value: bo.AppendUint16(nil, 0xfffe)},
				{tag: 0x0004, typ: TypeFloat, count: 1, value: bo.AppendUint32(nil, math.Float32bits(1.5))},
				{tag: 0x0005, typ: TypeDouble, count: 1, value: bo.AppendUint64(nil, math.Float64bits(-2.25))},
				{tag: 0x0006, typ: TypeLong, count: 0},
			})

			tf, diags := DecodeTIFF(b, nil)
			c.Assert(diags, qt.HasLen, 0)
			c.Assert(tf.Header, qt.Equals, "")
			c.Assert(tf.Version, qt.Equals, 42)
			c.Assert(tf.ByteOrder, qt.Equals, bo)
			c.Assert(tf.Directories, qt.HasLen, 1)

			dir := tf.Directories[0]
			c.Assert(dir.Offset, qt.Equals, 8)
			c.Assert(dir.Entries, qt.HasLen, 14)

			values := make(map[uint16]any)
			for _, e := range dir.Entries {
				values[e.Tag] = e.Value
			}
			c.Assert(values[0x010f], qt.Equals, "Apple")
			c.Assert(values[0x0112], qt.Equals, uint16(6))
			c.Assert(values[0x0102], qt.DeepEquals, []any{uint16(8), uint16(8), uint16(8)})
			c.Assert(values[0x011a], qt.Equals, Rat[uint32]{Num: 300, Den: 1})
			c.Assert(values[0x9201], qt.Equals, Rat[int32]{Num: -100, Den: 10})
			c.Assert(values[0x0008], qt.Equals, int32(-2))
			c.Assert(values[0x0009], qt.Equals, uint32(982))
			c.Assert(values[0x9000], qt.DeepEquals, []byte("0232"))
			c.Assert(values[0x0001], qt.Equals, uint8(7))
			c.Assert(values[0x0002], qt.Equals, int8(-1))
			c.Assert(values[0x0003], qt.Equals, int16(-2))
			c.Assert(values[0x0004], qt.Equals, float32(1.5))
			c.Assert(values[0x0005], qt.Equals, -2.25)
			c.Assert(values[0x0006], qt.IsNil)

			f, ok := toFloat64(values[0x011a])
			c.Assert(ok, qt.IsTrue)
			c.Assert(f, qt.Equals, 300.0)
		})
	}
}

func TestDecodeTIFFUndefinedRational(t *testing.T) {
	c := qt.New(t)

	bo := binary.BigEndian
	b := buildTIFF(bo, []testEntry{
		{tag: 0x829d, typ: TypeRational, count: 1, value: rational(bo, 0, 0)},
		{tag: 0xa432, typ: TypeRational, count: 2, value: rational(bo, 42, 10, 7, 0)},
		{tag: 0x0112, typ: TypeShort, count: 1, value: bo.AppendUint16(nil, 1)},
	})

	tf, diags := DecodeTIFF(b, nil)
	c.Assert(diagnosticKinds(diags), qt.DeepEquals, []DiagnosticKind{UndefinedRational, UndefinedRational})

	entries := tf.Directories[0].Entries
	c.Assert(entries, qt.HasLen, 3)
	r := entries[0].Value.(Rat[uint32])
	c.Assert(r.IsUndefined(), qt.IsTrue)
	c.Assert(r.String(), qt.Equals, "undef")
	c.Assert(math.IsInf(r.Float64(), 1), qt.IsTrue)
	_, ok := toFloat64(r)
	c.Assert(ok, qt.IsFalse)
	c.Assert(entries[1].Value, qt.DeepEquals, []any{Rat[uint32]{42, 10}, Rat[uint32]{7, 0}})
}

func TestDecodeTIFFOutOfBounds(t *testing.T) {
	c := qt.New(t)

	bo := binary.LittleEndian
	far := uint32(10000)
	b := buildTIFF(bo, []testEntry{
		{tag: 0x0001, typ: TypeShort, count: 1, value: bo.AppendUint16(nil, 1)},
		{tag: 0x0002, typ: TypeASCII, count: 20, offset: &far},
		{tag: 0x0003, typ: TypeLong, count: 0xffffffff, offset: &far},
		{tag: 0x0004, typ: TypeShort, count: 1, value: bo.AppendUint16(nil, 4)},
	})

	tf, diags := DecodeTIFF(b, nil)
	c.Assert(diagnosticKinds(diags), qt.DeepEquals, []DiagnosticKind{OffsetOutOfBounds, OffsetOutOfBounds})
	c.Assert(diags[0].Offset, qt.Equals, 8+2+ifdEntrySize)

	entries := tf.Directories[0].Entries
	c.Assert(entries, qt.HasLen, 2)
	c.Assert(entries[0].Tag, qt.Equals, uint16(1))
	c.Assert(entries[1].Tag, qt.Equals, uint16(4))
	c.Assert(entries[1].Value, qt.Equals, uint16(4))
}

func TestDecodeTIFFUnsupportedType(t *testing.T) {
	c := qt.New(t)

	bo := binary.BigEndian
	b := buildTIFF(bo, []testEntry{
		{tag: 0x0001, typ: 99, count: 1, value: []byte{1, 2, 3, 4}},
		{tag: 0x0002, typ: TypeShort, count: 1, value: bo.AppendUint16(nil, 2)},
	})

	tf, diags := DecodeTIFF(b, nil)
	c.Assert(diagnosticKinds(diags), qt.DeepEquals, []DiagnosticKind{UnsupportedTypeCode})
	entries := tf.Directories[0].Entries
	c.Assert(entries, qt.HasLen, 2)
	c.Assert(entries[0].Type.String(), qt.Equals, "Unknown(99)")
	c.Assert(entries[0].Value, qt.DeepEquals, []byte{1, 2, 3, 4})
	c.Assert(entries[1].Value, qt.Equals, uint16(2))
}

func TestDecodeTIFFMalformed(t *testing.T) {
	c := qt.New(t)

	valid := buildTIFF(binary.BigEndian, []testEntry{{tag: 1, typ: TypeShort, count: 1, value: []byte{0, 1}}})

	badMagic := append([]byte(nil), valid...)
	badMagic[3] = 43
	badOrder := append([]byte(nil), valid...)
	badOrder[0], badOrder[1] = 'X', 'X'

	for _, test := range []struct {
		name string
		b    []byte
		want []DiagnosticKind
	}{
		{"empty", nil, []DiagnosticKind{TruncatedSegment}},
		{"short header", valid[:6], []DiagnosticKind{TruncatedSegment}},
		{"bad magic", badMagic, []DiagnosticKind{MalformedSignature}},
		{"bad byte order", badOrder, []DiagnosticKind{MalformedSignature}},
		{"missing IFD", valid[:8], []DiagnosticKind{OffsetOutOfBounds}},
		{"truncated apple header", []byte("Apple iOS\x00\x00\x01M"), []DiagnosticKind{TruncatedSegment}},
	} {
		c.Run(test.name, func(c *qt.C) {
			tf, diags := DecodeTIFF(test.b, nil)
			c.Assert(diagnosticKinds(diags), qt.DeepEquals, test.want)
			c.Assert(tf.Directories, qt.HasLen, 0)
		})
	}
}

func TestDecodeTIFFTruncatedEntries(t *testing.T) {
	c := qt.New(t)

	bo := binary.BigEndian
	b := buildTIFF(bo, []testEntry{
		{tag: 1, typ: TypeShort, count: 1, value: bo.AppendUint16(nil, 1)},
		{tag: 2, typ: TypeShort, count: 1, value: bo.AppendUint16(nil, 2)},
		{tag: 3, typ: TypeShort, count: 1, value: bo.AppendUint16(nil, 3)},
	})
	// Cut in the middle of the third entry.
	b = b[:8+2+2*ifdEntrySize+5]

	tf, diags := DecodeTIFF(b, nil)
	c.Assert(diagnosticKinds(diags), qt.DeepEquals, []DiagnosticKind{TruncatedSegment})
	c.Assert(tf.Directories, qt.HasLen, 1)
	c.Assert(tf.Directories[0].Entries, qt.HasLen, 2)
}

func TestDecodeTIFFChain(t *testing.T) {
	c := qt.New(t)

	bo := binary.BigEndian
	entries := []testEntry{{tag: 1, typ: TypeShort, count: 1, value: bo.AppendUint16(nil, 1)}}

	c.Run("two directories", func(c *qt.C) {
		b := append([]byte(nil), markerTIFFBig...)
		b = bo.AppendUint32(b, tiffHeaderSize)
		ifd1Size := 2 + ifdEntrySize + 4
		b = appendIFD(b, bo, entries, uint32(tiffHeaderSize+ifd1Size))
		b = appendIFD(b, bo, []testEntry{{tag: 2, typ: TypeShort, count: 1, value: bo.AppendUint16(nil, 2)}}, 0)

		tf, diags := DecodeTIFF(b, nil)
		c.Assert(diags, qt.HasLen, 0)
		c.Assert(tf.Directories, qt.HasLen, 2)
		c.Assert(tf.Directories[1].Offset, qt.Equals, tiffHeaderSize+ifd1Size)
		c.Assert(tf.Directories[1].Entries[0].Tag, qt.Equals, uint16(2))
	})

	c.Run("loop", func(c *qt.C) {
		b := append([]byte(nil), markerTIFFBig...)
		b = bo.AppendUint32(b, tiffHeaderSize)
		b = appendIFD(b, bo, entries, tiffHeaderSize)

		tf, diags := DecodeTIFF(b, nil)
		c.Assert(diagnosticKinds(diags), qt.DeepEquals, []DiagnosticKind{CyclicReference})
		c.Assert(tf.Directories, qt.HasLen, 1)
	})
}

func TestDecodeTIFFAppleHeader(t *testing.T) {
	c := qt.New(t)

	b := readTestData(t, "apple_ios.bin")
	tf, diags := DecodeTIFF(b, nil)
	c.Assert(diags, qt.HasLen, 0)
	c.Assert(tf.Header, qt.Equals, "Apple iOS")
	c.Assert(tf.Version, qt.Equals, 1)
	c.Assert(tf.ByteOrder, qt.Equals, binary.ByteOrder(binary.BigEndian))
	c.Assert(tf.Directories, qt.HasLen, 1)

	dir := tf.Directories[0]
	c.Assert(dir.Offset, qt.Equals, appleHeaderSize)
	c.Assert(dir.Entries, qt.HasLen, 18)

	get := func(tag uint16) TiffEntry {
		e, found := dir.Get(tag)
		c.Assert(found, qt.IsTrue, qt.Commentf("tag 0x%04x", tag))
		return e
	}

	c.Assert(get(0x0001).Value, qt.Equals, int32(9))
	c.Assert(get(0x0017).Value, qt.Equals, int32(0x2000))
	c.Assert(get(0x0011).Value, qt.Equals, "2ADD3835-BCFD-4C9A-B471-29819AF606CF")
	c.Assert(get(0x001a).Value, qt.Equals, "q825s")
	c.Assert(get(0x0008).Value, qt.DeepEquals, []any{
		Rat[int32]{-3013, 100408}, Rat[int32]{-13779, 117398}, Rat[int32]{-36173, 36618},
	})
	c.Assert(get(0x000c).Value, qt.DeepEquals, []any{Rat[int32]{2129, 128}, Rat[int32]{43, 8}})

	plist := get(0x0002)
	c.Assert(plist.Type, qt.Equals, TypeUndefined)
	c.Assert(plist.Count, qt.Equals, uint32(558))
	c.Assert(bytes.HasPrefix(plist.Value.([]byte), markerPlist), qt.IsTrue)

	_, found := dir.Get(0x00ff)
	c.Assert(found, qt.IsFalse)
}

func TestDecodeTIFFAppleByteOrderFallback(t *testing.T) {
	c := qt.New(t)

	b := append([]byte(nil), readTestData(t, "apple_ios.bin")...)
	b[12], b[13] = 'X', 'X'

	tf, diags := DecodeTIFF(b, binary.BigEndian)
	c.Assert(diagnosticKinds(diags), qt.DeepEquals, []DiagnosticKind{MalformedSignature})
	c.Assert(diags[0].Offset, qt.Equals, 12)
	c.Assert(tf.Directories[0].Entries, qt.HasLen, 18)
}

// Compare with an independent IFD decoder.
func TestDecodeTIFFGoexif(t *testing.T) {
	c := qt.New(t)

	b := readTestData(t, "apple_ios.bin")
	r := bytes.NewReader(b)
	_, err := r.Seek(appleHeaderSize, io.SeekStart)
	c.Assert(err, qt.IsNil)
	want, _, err := tiff.DecodeDir(r, binary.BigEndian)
	c.Assert(err, qt.IsNil)

	got, _ := DecodeTIFF(b, nil)
	entries := got.Directories[0].Entries
	c.Assert(entries, qt.HasLen, len(want.Tags))

	for i, wt := range want.Tags {
		e := entries[i]
		c.Assert(e.Tag, qt.Equals, wt.Id)
		c.Assert(uint16(e.Type), qt.Equals, uint16(wt.Type))
		c.Assert(e.Count, qt.Equals, wt.Count)

		switch e.Type {
		case TypeSLong:
			v, err := wt.Int(0)
			c.Assert(err, qt.IsNil)
			c.Assert(int(e.Value.(int32)), qt.Equals, v)
		case TypeSRational:
			for j, rv := range e.Value.([]any) {
				num, den, err := wt.Rat2(j)
				c.Assert(err, qt.IsNil)
				c.Assert(rv, qt.Equals, Rat[int32]{int32(num), int32(den)})
			}
		case TypeUndefined:
			c.Assert(e.Value, qt.DeepEquals, wt.Val)
		}
	}
}
