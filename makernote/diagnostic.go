// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package makernote

import "fmt"

// DiagnosticKind classifies a non-fatal decoding problem.
//
//go:generate stringer -type=DiagnosticKind
type DiagnosticKind int

const (
	// MalformedSignature is reported when a signature was found but its fixed fields are invalid.
	MalformedSignature DiagnosticKind = iota + 1
	// TruncatedSegment is reported when a structure ends before its declared size.
	TruncatedSegment
	// OffsetOutOfBounds is reported when an offset or length points outside its segment.
	OffsetOutOfBounds
	// UnsupportedTypeCode is reported for TIFF types or property list markers we do not decode.
	UnsupportedTypeCode
	// RecursionLimitExceeded is reported when a property list nests deeper than the configured limit.
	RecursionLimitExceeded
	// CyclicReference is reported when a property list object references one of its ancestors.
	CyclicReference
	// UndefinedRational is reported for a TIFF rational with a zero denominator.
	UndefinedRational
	// DecoderFault is reported if the decoder recovered from an internal fault.
	// This should never happen.
	DecoderFault
)

// Diagnostic is a note about something the decoder could not fully interpret.
type Diagnostic struct {
	Kind DiagnosticKind
	// Offset is the absolute offset into the MakerNote blob.
	Offset  int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s at offset %d: %s", d.Kind, d.Offset, d.Message)
}

// MarshalText implements encoding.TextMarshaler.
func (k DiagnosticKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// diagnostics collects diagnostics in the order they are produced.
type diagnostics []Diagnostic

func (d *diagnostics) addf(kind DiagnosticKind, offset int, format string, args ...any) {
	*d = append(*d, Diagnostic{Kind: kind, Offset: offset, Message: fmt.Sprintf(format, args...)})
}
