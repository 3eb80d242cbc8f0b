// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sections

import (
	"bytes"
	"encoding/json"

	"go.yaml.in/yaml/v3"
)

// Section is one named entry of a Map, excluding the title.
type Section struct {
	Name string `json:"name" yaml:"name"`
	Body string `json:"body" yaml:"body"`
}

// Map is an insertion-ordered map from lower-cased section names to bodies.
// Setting an existing key replaces its value but keeps its first position.
type Map struct {
	keys   []string
	values map[string]string
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{values: make(map[string]string)}
}

// Set stores body under key.
func (m *Map) Set(key, body string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = body
}

// Get returns the body stored under key.
func (m *Map) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in first-insertion order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys, including the title.
func (m *Map) Len() int {
	return len(m.keys)
}

// Title returns the title entry or "".
func (m *Map) Title() string {
	return m.values[TitleKey]
}

// Sections returns the non-title entries in order.
func (m *Map) Sections() []Section {
	out := make([]Section, 0, len(m.keys))
	for _, k := range m.keys {
		if k == TitleKey {
			continue
		}
		out = append(out, Section{Name: k, Body: m.values[k]})
	}
	return out
}

// Equal reports whether m and o hold the same keys in the same order with the
// same bodies.
func (m *Map) Equal(o *Map) bool {
	if len(m.keys) != len(o.keys) {
		return false
	}
	for i, k := range m.keys {
		if o.keys[i] != k || o.values[k] != m.values[k] {
			return false
		}
	}
	return true
}

// MarshalJSON renders the Map as a JSON object with keys in document order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML renders the Map as a YAML mapping with keys in document order.
func (m *Map) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: m.values[k]},
		)
	}
	return node, nil
}
