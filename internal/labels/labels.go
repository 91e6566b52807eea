// Package labels normalizes issue label metadata into one canonical shape.
//
// Trackers hand back labels (and assignees) in several shapes:
// - GraphQL connections: {"labels": {"nodes": [{"name": "bug"}]}}
// - REST objects:        {"labels": [{"name": "bug"}]}
// - plain names:         {"labels": ["bug"]}
//
// Everything past the tracker boundary works with Set.
package labels

import (
	"encoding/json"
	"strings"
)

// Well-known labels that drive assignment.
const (
	// LabelBug marks defects. Highest default priority.
	LabelBug = "bug"
	// LabelDocumentation marks documentation work
	LabelDocumentation = "documentation"
	// LabelRefactor marks maintenance issues; excluded from the ordinary search
	LabelRefactor = "refactor"
	// LabelEnhancement marks feature work. Lowest default priority.
	LabelEnhancement = "enhancement"
)

// Set is an order-irrelevant set of label names.
// Membership checks are case-insensitive because GitHub treats label names that way.
// Names keeps first-seen order so log output stays deterministic.
// The zero value is an empty set.
type Set struct {
	names []string
}

// Node is one element of a GraphQL label connection or REST label list.
type Node struct {
	Name string `json:"name"`
}

// New builds a set from plain names, dropping blanks and duplicates.
func New(names ...string) Set {
	var s Set
	for _, n := range names {
		s.add(n)
	}
	return s
}

// FromNodes builds a set from label objects.
func FromNodes(nodes []Node) Set {
	var s Set
	for _, n := range nodes {
		s.add(n.Name)
	}
	return s
}

func (s *Set) add(name string) {
	name = strings.TrimSpace(name)
	if name == "" || s.Has(name) {
		return
	}
	s.names = append(s.names, name)
}

// Has reports whether the set contains name.
func (s Set) Has(name string) bool {
	name = strings.TrimSpace(name)
	for _, n := range s.names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// HasAny reports whether any of names is in the set.
func (s Set) HasAny(names []string) bool {
	_, ok := s.FirstIn(names)
	return ok
}

// FirstIn returns the first element of candidates (in candidates' order) present in the set.
func (s Set) FirstIn(candidates []string) (string, bool) {
	for _, c := range candidates {
		if s.Has(c) {
			return c, true
		}
	}
	return "", false
}

// Names returns a copy of the label names.
func (s Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of labels.
func (s Set) Len() int {
	return len(s.names)
}

// String renders the set as a comma-separated list.
func (s Set) String() string {
	return strings.Join(s.names, ",")
}

// MarshalJSON writes the flat form: ["bug","refactor"].
func (s Set) MarshalJSON() ([]byte, error) {
	if s.names == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.names)
}

// UnmarshalJSON accepts every supported shape. Unknown shapes decode to an empty set.
func (s *Set) UnmarshalJSON(data []byte) error {
	*s = New(DecodeNames(data, "name")...)
	return nil
}

// DecodeNames extracts names from a raw JSON value in any supported shape.
// key is the object field holding the name ("name" for labels, "login" for users).
// Absent, null or unrecognised values yield nil; absence is never an error.
func DecodeNames(data []byte, key string) []string {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	return namesFrom(raw, key)
}

func namesFrom(v interface{}, key string) []string {
	switch val := v.(type) {
	case []interface{}:
		var out []string
		for _, item := range val {
			switch it := item.(type) {
			case string:
				out = append(out, it)
			case map[string]interface{}:
				if name, ok := it[key].(string); ok {
					out = append(out, name)
				}
			}
		}
		return out
	case map[string]interface{}:
		// GraphQL connection: {"nodes": [...]} or {"edges": [{"node": {...}}]}
		if nodes, ok := val["nodes"]; ok {
			return namesFrom(nodes, key)
		}
		if edges, ok := val["edges"].([]interface{}); ok {
			var nodes []interface{}
			for _, e := range edges {
				if em, ok := e.(map[string]interface{}); ok {
					nodes = append(nodes, em["node"])
				}
			}
			return namesFrom(nodes, key)
		}
	}
	return nil
}
