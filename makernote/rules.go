// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package makernote

import (
	"bytes"
	_ "embed" // needed for the embedded default rules
	"fmt"
	"io"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// UnknownPrefix is used as prefix for tags without a name in the rules.
const UnknownPrefix = "UnknownTag_"

//go:embed makernote_rules.toml
var defaultRulesTOML []byte

var defaultRules *Rules

func init() {
	var err error
	defaultRules, err = LoadRules(bytes.NewReader(defaultRulesTOML))
	if err != nil {
		panic(fmt.Errorf("embedded rules: %w", err))
	}
}

// Rules drives the heuristic field extraction.
// A Rules value must not be modified once in use.
type Rules struct {
	// Version is bumped whenever the rule data changes.
	Version  int           `toml:"version"`
	Camera   CameraRules   `toml:"camera"`
	Location LocationRules `toml:"location"`
	Device   DeviceRules   `toml:"device"`
	Timing   TimingRules   `toml:"timing"`
	// Tags maps a hex tag id ("0x0011") to a tag name.
	Tags map[string]string `toml:"tags"`

	tagNames map[uint16]string
}

// CameraRules lists, per field, the TIFF tags and the property list keys to look for.
type CameraRules struct {
	ISOTags          []uint16 `toml:"iso_tags"`
	ApertureTags     []uint16 `toml:"aperture_tags"`
	ApertureAPEXTags []uint16 `toml:"aperture_apex_tags"`
	FocalLengthTags  []uint16 `toml:"focal_length_tags"`
	LensInfoTags     []uint16 `toml:"lens_info_tags"`

	ISOKeys          []string `toml:"iso_keys"`
	ApertureKeys     []string `toml:"aperture_keys"`
	ApertureAPEXKeys []string `toml:"aperture_apex_keys"`
	FocalLengthKeys  []string `toml:"focal_length_keys"`
	LensInfoKeys     []string `toml:"lens_info_keys"`
}

type LocationRules struct {
	LatitudeKeys     []string `toml:"latitude_keys"`
	LongitudeKeys    []string `toml:"longitude_keys"`
	AdjacentPairs    bool     `toml:"adjacent_pairs"`
	RejectNullIsland bool     `toml:"reject_null_island"`
}

type DeviceRules struct {
	UUIDTags    []uint16 `toml:"uuid_tags"`
	UUIDStrings bool     `toml:"uuid_strings"`
}

// TimingRules names the keys of a CMTime dictionary.
type TimingRules struct {
	ValueKey     string `toml:"value_key"`
	TimescaleKey string `toml:"timescale_key"`
	EpochKey     string `toml:"epoch_key"`
	FlagsKey     string `toml:"flags_key"`
}

// DefaultRules returns the rules embedded in this package.
func DefaultRules() *Rules {
	return defaultRules
}

// LoadRules reads rules in TOML format.
// Unknown keys are an error, so misspelled rule names do not go unnoticed.
func LoadRules(r io.Reader) (*Rules, error) {
	var rules Rules
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rules); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := rules.init(); err != nil {
		return nil, err
	}
	return &rules, nil
}

func (r *Rules) init() error {
	if r.Version < 1 {
		return fmt.Errorf("rules: invalid version %d", r.Version)
	}
	r.tagNames = make(map[uint16]string, len(r.Tags))
	for k, v := range r.Tags {
		id, err := strconv.ParseUint(k, 0, 16)
		if err != nil {
			return fmt.Errorf("rules: invalid tag id %q: %w", k, err)
		}
		r.tagNames[uint16(id)] = v
	}
	return nil
}

// TagName returns the name of tag, or UnknownPrefix followed by the hex tag id.
func (r *Rules) TagName(tag uint16) string {
	if name, found := r.tagNames[tag]; found {
		return name
	}
	return fmt.Sprintf("%s0x%04x", UnknownPrefix, tag)
}
