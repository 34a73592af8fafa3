// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package makernote

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

var (
	_ encoding.TextMarshaler = Rat[int32]{}
	_ json.Marshaler         = Rat[uint32]{}
)

// Rat is a rational number as stored in TIFF RATIONAL and SRATIONAL values.
// A zero denominator is kept as is and marks the value as undefined.
type Rat[T int32 | uint32] struct {
	Num T
	Den T
}

// IsUndefined reports whether the denominator is zero.
func (r Rat[T]) IsUndefined() bool {
	return r.Den == 0
}

// Float64 returns the float64 representation of the rational number.
// Undefined values return +Inf.
func (r Rat[T]) Float64() float64 {
	if r.Den == 0 {
		return math.Inf(1)
	}
	return float64(r.Num) / float64(r.Den)
}

// String returns the string representation of the rational number.
// If the denominator is 1, the string will be the numerator only.
func (r Rat[T]) String() string {
	switch r.Den {
	case 0:
		return "undef"
	case 1:
		return fmt.Sprintf("%d", r.Num)
	default:
		return fmt.Sprintf("%d/%d", r.Num, r.Den)
	}
}

func (r Rat[T]) MarshalText() (text []byte, err error) {
	return []byte(r.String()), nil
}

// MarshalJSON writes r as a number, or the string "undef".
func (r Rat[T]) MarshalJSON() ([]byte, error) {
	if r.IsUndefined() {
		return []byte(`"undef"`), nil
	}
	return []byte(strconv.FormatFloat(r.Float64(), 'f', -1, 64)), nil
}

type float64Provider interface {
	Float64() float64
}

func isUndefined(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// apexToFNumber converts an APEX aperture value to an f-number.
func apexToFNumber(v float64) float64 {
	return math.Pow(2, v/2)
}

// toFloat64 converts a decoded TIFF or property list number to float64.
func toFloat64(v any) (float64, bool) {
	switch vv := v.(type) {
	case float64Provider:
		f := vv.Float64()
		return f, !isUndefined(f)
	case float64:
		return vv, !isUndefined(vv)
	case float32:
		f := float64(vv)
		return f, !isUndefined(f)
	case int64:
		return float64(vv), true
	case int32:
		return float64(vv), true
	case int16:
		return float64(vv), true
	case int8:
		return float64(vv), true
	case uint32:
		return float64(vv), true
	case uint16:
		return float64(vv), true
	case uint8:
		return float64(vv), true
	case []any:
		if len(vv) > 0 {
			return toFloat64(vv[0])
		}
	}
	return 0, false
}

// toFloat64s converts a multi valued TIFF entry to a float64 slice.
func toFloat64s(v any) ([]float64, bool) {
	vv, ok := v.([]any)
	if !ok {
		f, ok := toFloat64(v)
		if !ok {
			return nil, false
		}
		return []float64{f}, true
	}
	fs := make([]float64, 0, len(vv))
	for _, v := range vv {
		f, ok := toFloat64(v)
		if !ok {
			return nil, false
		}
		fs = append(fs, f)
	}
	return fs, true
}

func printableString(s string) string {
	ss := strings.Map(func(r rune) rune {
		if unicode.IsGraphic(r) {
			return r
		}
		return -1
	}, s)

	return strings.TrimSpace(ss)
}

func trimBytesNulls(b []byte) []byte {
	var lo, hi int
	for lo = 0; lo < len(b) && b[lo] == 0; lo++ {
	}
	for hi = len(b) - 1; hi >= 0 && b[hi] == 0; hi-- {
	}
	if lo > hi {
		return nil
	}
	return b[lo : hi+1]
}

// maxInlineBinary is the largest byte slice written as-is in JSON output.
const maxInlineBinary = 64

func binarySummary(b []byte) string {
	return fmt.Sprintf("(Binary data %d bytes)", len(b))
}
