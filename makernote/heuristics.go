// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package makernote

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// UUIDSource tells which rule located the device UUID.
type UUIDSource string

const (
	// UUIDFromPropertyListData is a 16 byte Data value in a property list dictionary.
	UUIDFromPropertyListData UUIDSource = "property_list_data"
	// UUIDFromTiffTag is an ASCII TIFF entry holding a canonical UUID.
	UUIDFromTiffTag UUIDSource = "tiff_ascii"
	// UUIDFromPropertyListString is a property list string holding a canonical UUID.
	UUIDFromPropertyListString UUIDSource = "property_list_string"
)

// LocationSource tells which rule located a LocationHint.
type LocationSource string

const (
	LocationFromKeys          LocationSource = "keys"
	LocationFromAdjacentReals LocationSource = "adjacent_reals"
)

// ConfidenceLow marks heuristically inferred values.
const ConfidenceLow = "low"

// DeviceInfo identifies the device, if a UUID was found.
type DeviceInfo struct {
	// UUID in canonical upper case form, empty if not found.
	UUID   string
	Source UUIDSource
}

// CameraSettings holds the camera settings found. Each field is optional.
type CameraSettings struct {
	ISO *int
	// Aperture is the f-number.
	Aperture *float64
	// FocalLength is in millimeters.
	FocalLength *float64
	// LensInfo is min focal length, max focal length, min f-number at min focal length
	// and min f-number at max focal length.
	LensInfo []float64
}

// IsZero reports whether no setting was found.
func (c CameraSettings) IsZero() bool {
	return c.ISO == nil && c.Aperture == nil && c.FocalLength == nil && len(c.LensInfo) == 0
}

// LocationHint is a heuristically inferred position.
// It is never authoritative GPS data.
type LocationHint struct {
	Latitude   float64
	Longitude  float64
	Confidence string
	Source     LocationSource
}

// RunTime is a CMTime value, the device's monotonic clock at capture.
type RunTime struct {
	Value     int64
	Timescale int64
	Epoch     int64
	Flags     int64
}

// Seconds returns Value/Timescale.
func (t RunTime) Seconds() float64 {
	if t.Timescale <= 0 {
		return 0
	}
	return float64(t.Value) / float64(t.Timescale)
}

// Extract applies the heuristic rules to the decoded structures.
// It does not modify its arguments. A nil rules means DefaultRules.
func Extract(plists []*PropertyList, dirs []Directory, rules *Rules) (DeviceInfo, CameraSettings, *LocationHint, *RunTime) {
	if rules == nil {
		rules = DefaultRules()
	}
	x := &extractor{plists: plists, dirs: dirs, rules: rules}
	return x.device(), x.camera(), x.location(), x.runTime()
}

type extractor struct {
	plists []*PropertyList
	dirs   []Directory
	rules  *Rules
}

func (x *extractor) device() DeviceInfo {
	for _, p := range x.plists {
		var id string
		p.walk(func(_ int, n Node) bool {
			if n.Kind != KindMapping {
				return true
			}
			for _, c := range n.Children {
				if v := p.Node(c); v.Kind == KindData && len(v.Data) == 16 {
					u, err := uuid.FromBytes(v.Data)
					if err == nil {
						id = formatUUID(u)
						return false
					}
				}
			}
			return true
		})
		if id != "" {
			return DeviceInfo{UUID: id, Source: UUIDFromPropertyListData}
		}
	}

	for _, tag := range x.rules.Device.UUIDTags {
		for _, d := range x.dirs {
			e, found := d.Get(tag)
			if !found {
				continue
			}
			if s, ok := e.Value.(string); ok {
				if id, ok := parseCanonicalUUID(s); ok {
					return DeviceInfo{UUID: id, Source: UUIDFromTiffTag}
				}
			}
		}
	}

	if !x.rules.Device.UUIDStrings {
		return DeviceInfo{}
	}
	for _, p := range x.plists {
		var id string
		p.walk(func(_ int, n Node) bool {
			if n.Kind != KindString {
				return true
			}
			var ok bool
			id, ok = parseCanonicalUUID(n.Str)
			return !ok
		})
		if id != "" {
			return DeviceInfo{UUID: id, Source: UUIDFromPropertyListString}
		}
	}
	return DeviceInfo{}
}

func formatUUID(u uuid.UUID) string {
	return strings.ToUpper(u.String())
}

// parseCanonicalUUID accepts only the hyphenated 36 character form.
func parseCanonicalUUID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 36 {
		return "", false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return formatUUID(u), true
}

func (x *extractor) camera() CameraSettings {
	var c CameraSettings
	rules := x.rules.Camera

	if f, ok := x.number(rules.ISOTags, rules.ISOKeys); ok && f <= math.MaxInt32 {
		iso := int(math.Round(f))
		c.ISO = &iso
	}

	if f, ok := x.number(rules.ApertureTags, rules.ApertureKeys); ok {
		c.Aperture = &f
	} else if f, ok := x.number(rules.ApertureAPEXTags, rules.ApertureAPEXKeys); ok {
		if fnum := math.Round(apexToFNumber(f)*100) / 100; !isUndefined(fnum) {
			c.Aperture = &fnum
		}
	}

	if f, ok := x.number(rules.FocalLengthTags, rules.FocalLengthKeys); ok {
		c.FocalLength = &f
	}

	c.LensInfo = x.lensInfo(rules.LensInfoTags, rules.LensInfoKeys)

	return c
}

// number looks for a positive number, first in the TIFF tags, then under the property list keys.
func (x *extractor) number(tags []uint16, keys []string) (float64, bool) {
	for _, tag := range tags {
		for _, d := range x.dirs {
			e, found := d.Get(tag)
			if !found {
				continue
			}
			if f, ok := toFloat64(e.Value); ok && f > 0 {
				return f, true
			}
		}
	}

	var f float64
	found := x.findKey(keys, func(p *PropertyList, n Node) bool {
		v, ok := nodeNumber(n)
		if ok && v > 0 {
			f = v
			return true
		}
		return false
	})
	return f, found
}

func (x *extractor) lensInfo(tags []uint16, keys []string) []float64 {
	for _, tag := range tags {
		for _, d := range x.dirs {
			e, found := d.Get(tag)
			if !found {
				continue
			}
			if fs, ok := toFloat64s(e.Value); ok && len(fs) == 4 {
				return fs
			}
		}
	}

	var fs []float64
	x.findKey(keys, func(p *PropertyList, n Node) bool {
		if n.Kind != KindArray || len(n.Children) != 4 {
			return false
		}
		vals := make([]float64, 0, 4)
		for _, c := range n.Children {
			v, ok := nodeNumber(p.Node(c))
			if !ok {
				return false
			}
			vals = append(vals, v)
		}
		fs = vals
		return true
	})
	return fs
}

// findKey calls accept for the values of all dictionary entries whose key matches one of keys,
// until accept returns true.
func (x *extractor) findKey(keys []string, accept func(p *PropertyList, n Node) bool) bool {
	if len(keys) == 0 {
		return false
	}
	for _, p := range x.plists {
		found := false
		p.walk(func(_ int, n Node) bool {
			if n.Kind != KindMapping {
				return true
			}
			for j, k := range n.Keys {
				if matchKey(k, keys) && accept(p, p.Node(n.Children[j])) {
					found = true
					return false
				}
			}
			return true
		})
		if found {
			return true
		}
	}
	return false
}

func matchKey(key string, keys []string) bool {
	for _, k := range keys {
		if strings.EqualFold(key, k) {
			return true
		}
	}
	return false
}

func nodeNumber(n Node) (float64, bool) {
	switch n.Kind {
	case KindInteger:
		return float64(n.Int), true
	case KindReal:
		return n.Real, !isUndefined(n.Real)
	default:
		return 0, false
	}
}

func (x *extractor) location() *LocationHint {
	rules := x.rules.Location

	for _, p := range x.plists {
		var hint *LocationHint
		p.walk(func(_ int, n Node) bool {
			if n.Kind != KindMapping {
				return true
			}
			lat, lon := math.NaN(), math.NaN()
			for j, k := range n.Keys {
				v, ok := nodeNumber(p.Node(n.Children[j]))
				if !ok {
					continue
				}
				switch {
				case math.IsNaN(lat) && matchKey(k, rules.LatitudeKeys):
					lat = v
				case math.IsNaN(lon) && matchKey(k, rules.LongitudeKeys):
					lon = v
				}
			}
			if x.validLocation(lat, lon) {
				hint = &LocationHint{Latitude: lat, Longitude: lon, Confidence: ConfidenceLow, Source: LocationFromKeys}
				return false
			}
			return true
		})
		if hint != nil {
			return hint
		}
	}

	if !rules.AdjacentPairs {
		return nil
	}
	for _, p := range x.plists {
		var hint *LocationHint
		p.walk(func(_ int, n Node) bool {
			if n.Kind != KindArray && n.Kind != KindMapping {
				return true
			}
			for j := 0; j+1 < len(n.Children); j++ {
				a, b := p.Node(n.Children[j]), p.Node(n.Children[j+1])
				if a.Kind != KindReal || b.Kind != KindReal {
					continue
				}
				if x.validLocation(a.Real, b.Real) {
					hint = &LocationHint{Latitude: a.Real, Longitude: b.Real, Confidence: ConfidenceLow, Source: LocationFromAdjacentReals}
					return false
				}
			}
			return true
		})
		if hint != nil {
			return hint
		}
	}
	return nil
}

// validLocation is false for NaN.
func (x *extractor) validLocation(lat, lon float64) bool {
	if !(lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180) {
		return false
	}
	if x.rules.Location.RejectNullIsland && lat == 0 && lon == 0 {
		return false
	}
	return true
}

func (x *extractor) runTime() *RunTime {
	rules := x.rules.Timing
	if rules.ValueKey == "" || rules.TimescaleKey == "" {
		return nil
	}
	for _, p := range x.plists {
		var rt *RunTime
		p.walk(func(_ int, n Node) bool {
			if n.Kind != KindMapping {
				return true
			}
			var t RunTime
			var hasValue bool
			for j, k := range n.Keys {
				v := p.Node(n.Children[j])
				if v.Kind != KindInteger {
					continue
				}
				switch k {
				case rules.ValueKey:
					t.Value, hasValue = v.Int, true
				case rules.TimescaleKey:
					t.Timescale = v.Int
				case rules.EpochKey:
					t.Epoch = v.Int
				case rules.FlagsKey:
					t.Flags = v.Int
				}
			}
			if hasValue && t.Timescale > 0 {
				rt = &t
				return false
			}
			return true
		})
		if rt != nil {
			return rt
		}
	}
	return nil
}
