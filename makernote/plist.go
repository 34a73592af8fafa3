// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package makernote

import (
	"bytes"
	"encoding/json"
	"time"
)

// Kind is the type of a property list node.
//
//go:generate stringer -type=Kind -trimprefix=Kind
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInteger
	KindReal
	KindDate
	KindData
	KindString
	KindArray
	KindMapping
)

// Node is a resolved property list object.
// Container children are indices into the owning PropertyList's Nodes.
type Node struct {
	Kind Kind

	Bool bool
	Int  int64
	Real float64
	Date time.Time
	Data []byte
	Str  string

	// Children holds array elements or mapping values.
	Children []int
	// Keys holds the mapping keys, parallel to Children.
	Keys []string
}

// PropertyList is a decoded binary property list.
// Nodes is an arena; objects referenced more than once share a node.
type PropertyList struct {
	Nodes []Node
	Root  int

	// Offset is the absolute offset of the property list in the MakerNote blob.
	Offset int
}

// Node returns the node at index i, or a Null node if i is out of range.
func (p *PropertyList) Node(i int) Node {
	if p == nil || i < 0 || i >= len(p.Nodes) {
		return Node{}
	}
	return p.Nodes[i]
}

// RootNode returns the root node.
func (p *PropertyList) RootNode() Node {
	return p.Node(p.Root)
}

// Entry is a key/value pair in a Mapping.
type Entry struct {
	Key   string
	Value any
}

// Mapping is a property list dictionary with its insertion order preserved.
type Mapping []Entry

// Get returns the value for key.
func (m Mapping) Get(key string) (any, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// MarshalJSON writes m as a JSON object, keeping the key order.
func (m Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		b, err := json.Marshal(toJSONValue(e.Value))
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// maxExpandedNodes limits how many values Interface produces.
// Shared references make the arena a DAG, which could otherwise expand exponentially.
const maxExpandedNodes = 1 << 16

// Truncated stands in for the values Interface left out once it reached its expansion limit.
type Truncated struct{}

// MarshalJSON writes the marker string "(truncated)".
func (Truncated) MarshalJSON() ([]byte, error) {
	return []byte(`"(truncated)"`), nil
}

// Interface converts the tree into plain Go values:
// nil, bool, int64, float64, time.Time, []byte, string, []any and Mapping.
// Values beyond the expansion limit are Truncated.
func (p *PropertyList) Interface() any {
	if p == nil || len(p.Nodes) == 0 {
		return nil
	}
	budget := maxExpandedNodes
	return p.expand(p.Root, &budget)
}

func (p *PropertyList) expand(i int, budget *int) any {
	*budget--
	if *budget < 0 {
		return Truncated{}
	}
	n := p.Node(i)
	switch n.Kind {
	case KindBool:
		return n.Bool
	case KindInteger:
		return n.Int
	case KindReal:
		return n.Real
	case KindDate:
		return n.Date
	case KindData:
		return n.Data
	case KindString:
		return n.Str
	case KindArray:
		a := make([]any, len(n.Children))
		for j, c := range n.Children {
			a[j] = p.expand(c, budget)
		}
		return a
	case KindMapping:
		m := make(Mapping, len(n.Children))
		for j, c := range n.Children {
			m[j] = Entry{Key: n.Keys[j], Value: p.expand(c, budget)}
		}
		return m
	default:
		return nil
	}
}

// MarshalJSON writes the tree as JSON.
func (p *PropertyList) MarshalJSON() ([]byte, error) {
	return json.Marshal(toJSONValue(p.Interface()))
}

// walk calls fn for every node reachable from the root in pre-order, visiting each node once.
func (p *PropertyList) walk(fn func(i int, n Node) bool) {
	if p == nil || len(p.Nodes) == 0 {
		return
	}
	seen := make(map[int]bool)
	var visit func(i int) bool
	visit = func(i int) bool {
		if seen[i] {
			return true
		}
		seen[i] = true
		n := p.Node(i)
		if !fn(i, n) {
			return false
		}
		for _, c := range n.Children {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	visit(p.Root)
}
