// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package makernote

import (
	"encoding/json"
	"fmt"
	"time"
)

// ResultType is the value of the "type" field in the JSON output.
const ResultType = "Apple iOS MakerNote"

type jsonResult struct {
	Type          string           `json:"type"`
	Device        jsonDevice       `json:"device"`
	Metadata      jsonMetadata     `json:"metadata"`
	RawDataLength int              `json:"raw_data_length"`
	Diagnostics   []jsonDiagnostic `json:"diagnostics,omitempty"`
}

type jsonDevice struct {
	UUID   string     `json:"uuid,omitempty"`
	Source UUIDSource `json:"source,omitempty"`
}

type jsonMetadata struct {
	Header         string          `json:"header,omitempty"`
	Version        int             `json:"version,omitempty"`
	PropertyLists  []*PropertyList `json:"property_lists"`
	CameraSettings jsonCamera      `json:"camera_settings"`
	Location       *jsonLocation   `json:"location,omitempty"`
	RunTime        *jsonRunTime    `json:"run_time,omitempty"`
	TIFF           Mapping         `json:"tiff"`
}

type jsonCamera struct {
	ISO         *int      `json:"iso,omitempty"`
	Aperture    *float64  `json:"aperture,omitempty"`
	FocalLength *float64  `json:"focal_length,omitempty"`
	LensInfo    []float64 `json:"lens_info,omitempty"`
}

type jsonLocation struct {
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Confidence string         `json:"confidence"`
	Source     LocationSource `json:"source,omitempty"`
}

type jsonRunTime struct {
	Value     int64   `json:"value"`
	Timescale int64   `json:"timescale"`
	Epoch     int64   `json:"epoch"`
	Flags     int64   `json:"flags"`
	Seconds   float64 `json:"seconds"`
}

type jsonDiagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Offset  int            `json:"offset"`
	Message string         `json:"message"`
}

// MarshalJSON writes r in the shape consumed by the metadata pipeline.
func (r Result) MarshalJSON() ([]byte, error) {
	v := jsonResult{
		Type: ResultType,
		Device: jsonDevice{
			UUID:   r.Device.UUID,
			Source: r.Device.Source,
		},
		Metadata: jsonMetadata{
			Header:        r.Header,
			Version:       r.Version,
			PropertyLists: r.PropertyLists,
			CameraSettings: jsonCamera{
				ISO:         r.Camera.ISO,
				Aperture:    r.Camera.Aperture,
				FocalLength: r.Camera.FocalLength,
				LensInfo:    r.Camera.LensInfo,
			},
			TIFF: tiffMapping(r.Directories),
		},
		RawDataLength: r.RawLength,
	}
	if v.Metadata.PropertyLists == nil {
		v.Metadata.PropertyLists = []*PropertyList{}
	}
	if l := r.Location; l != nil {
		v.Metadata.Location = &jsonLocation{
			Latitude:   l.Latitude,
			Longitude:  l.Longitude,
			Confidence: l.Confidence,
			Source:     l.Source,
		}
	}
	if t := r.RunTime; t != nil {
		v.Metadata.RunTime = &jsonRunTime{
			Value:     t.Value,
			Timescale: t.Timescale,
			Epoch:     t.Epoch,
			Flags:     t.Flags,
			Seconds:   t.Seconds(),
		}
	}
	for _, d := range r.Diagnostics {
		v.Diagnostics = append(v.Diagnostics, jsonDiagnostic(d))
	}
	return json.Marshal(v)
}

// tiffMapping flattens the directories into one tag to value mapping.
// The first occurrence of a tag wins.
func tiffMapping(dirs []Directory) Mapping {
	m := Mapping{}
	seen := make(map[uint16]bool)
	for _, d := range dirs {
		for _, e := range d.Entries {
			if seen[e.Tag] {
				continue
			}
			seen[e.Tag] = true
			m = append(m, Entry{Key: fmt.Sprintf("0x%04x", e.Tag), Value: e.Value})
		}
	}
	return m
}

// toJSONValue prepares a decoded value for encoding/json.
// Non-finite floats become null, large binary values a short summary.
func toJSONValue(v any) any {
	switch vv := v.(type) {
	case float64:
		if isUndefined(vv) {
			return nil
		}
	case float32:
		if isUndefined(float64(vv)) {
			return nil
		}
	case []byte:
		if len(vv) > maxInlineBinary {
			return binarySummary(vv)
		}
	case string:
		return printableString(vv)
	case time.Time:
		return vv.Format(time.RFC3339Nano)
	case []any:
		a := make([]any, len(vv))
		for i, e := range vv {
			a[i] = toJSONValue(e)
		}
		return a
	}
	return v
}
