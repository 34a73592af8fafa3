// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

// Package makernote decodes the Apple iOS MakerNote, a proprietary EXIF tag payload that mixes
// a headerless TIFF directory with embedded binary property lists.
//
// Decoding is best effort and total: any input, including empty, random or truncated data,
// yields a Result. Parts that could not be interpreted are left out and described by a Diagnostic.
package makernote

import (
	"encoding/binary"
	"fmt"
)

// Options for Decode.
type Options struct {
	// The MakerNote tag payload. It is never modified.
	Data []byte

	// ByteOrder is the byte order of the enclosing EXIF data.
	// It is only used for an Apple header with an unreadable byte order marker.
	// Every TIFF structure otherwise uses the byte order in its own header.
	ByteOrder binary.ByteOrder

	// Rules for the heuristic field extraction.
	// If not set, DefaultRules is used.
	Rules *Rules

	// MaxDepth limits property list nesting.
	// If not set, DefaultMaxDepth is used.
	MaxDepth int

	// Warnf will be called for each diagnostic.
	Warnf func(string, ...any)
}

// Result is the decoded MakerNote.
type Result struct {
	// Header is "Apple iOS" if the data starts with the Apple MakerNote header.
	Header string
	// Version is the Apple MakerNote version.
	Version int
	// RawLength is the length of the input.
	RawLength int

	Device   DeviceInfo
	Camera   CameraSettings
	Location *LocationHint
	RunTime  *RunTime

	// PropertyLists in blob order.
	PropertyLists []*PropertyList
	// Directories in blob order, following each TIFF structure's IFD chain.
	Directories []Directory
	// Diagnostics in the order they were produced.
	Diagnostics []Diagnostic
}

// Decode decodes the MakerNote in opts.Data.
// It never fails; problems are reported in Result.Diagnostics.
func Decode(opts Options) (result Result) {
	if opts.Rules == nil {
		opts.Rules = DefaultRules()
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	d := &decoder{opts: opts}

	defer func() {
		if r := recover(); r != nil {
			d.diags.addf(DecoderFault, 0, "recovered from panic: %v", r)
		}
		result = d.result
		result.Diagnostics = d.diags
		if opts.Warnf != nil {
			for _, diag := range result.Diagnostics {
				opts.Warnf("%s", diag)
			}
		}
	}()

	d.decode()
	return
}

type decoder struct {
	opts   Options
	result Result
	diags  diagnostics
}

func (d *decoder) decode() {
	data := d.opts.Data
	d.result.RawLength = len(data)
	if len(data) < minHeaderSize {
		return
	}

	segments, diags := ScanSegments(data)
	d.diags = append(d.diags, diags...)

	var recognized int
	for _, seg := range segments {
		switch seg.Kind {
		case SegmentPropertyList:
			recognized++
			p, diags := decodePropertyList(seg.Bytes(data), seg.Start, d.opts.MaxDepth)
			d.diags = append(d.diags, diags...)
			d.result.PropertyLists = append(d.result.PropertyLists, p)
		case SegmentTiffDirectory:
			recognized++
			t, diags := decodeTIFF(seg.Bytes(data), seg.Start, d.opts.ByteOrder)
			d.diags = append(d.diags, diags...)
			if t.Header != "" && d.result.Header == "" {
				d.result.Header = t.Header
				d.result.Version = t.Version
			}
			for _, dir := range t.Directories {
				// The tag names are Apple's; plain TIFF structures use the EXIF tag space.
				if t.Header != "" {
					for i, e := range dir.Entries {
						dir.Entries[i].Name = d.opts.Rules.TagName(e.Tag)
					}
				}
				d.result.Directories = append(d.result.Directories, dir)
			}
		}
	}

	if recognized == 0 {
		d.diags.addf(MalformedSignature, 0, "no property list or TIFF signature in %d bytes", len(data))
		return
	}

	d.result.Device, d.result.Camera, d.result.Location, d.result.RunTime = Extract(
		d.result.PropertyLists, d.result.Directories, d.opts.Rules,
	)
}

// String returns a short summary of r.
func (r Result) String() string {
	return fmt.Sprintf("%d property lists, %d directories, %d diagnostics", len(r.PropertyLists), len(r.Directories), len(r.Diagnostics))
}
