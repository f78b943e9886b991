// Package locations holds the static location configuration of the
// reconciliation engine: the many-to-one mapping from Source-A location codes
// to Source-B location codes, and the per-location buffer multipliers.
//
// Both tables are built once at start-up and never modified, so a single
// Mapper or Buffers value can be shared by concurrent computations.
//
// Example usage:
//
//	mapper, err := locations.NewMapper(map[string]string{
//		"JKT01": "JKT",
//		"JKT02": "JKT",
//		"SBY01": "SBY",
//	})
//	bCode, ok := mapper.Resolve("jkt02") // "JKT", true
//	group := mapper.GroupFor("JKT")      // ["JKT01", "JKT02"]
package locations

import (
	"fmt"
	"sort"
	"strings"
)

// NormalizeCode trims and upper-cases a location code. Every lookup in this
// package goes through it.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Mapper resolves Source-A location codes to Source-B location codes.
type Mapper struct {
	// forward maps a Source-A code to its Source-B code
	forward map[string]string

	// groups maps a Source-B code to its sorted Source-A codes
	groups map[string][]string
}

// NewMapper builds a Mapper from a Source-A to Source-B code table.
func NewMapper(table map[string]string) (*Mapper, error) {
	m := &Mapper{
		forward: make(map[string]string, len(table)),
		groups:  make(map[string][]string),
	}

	for rawA, rawB := range table {
		aCode := NormalizeCode(rawA)
		bCode := NormalizeCode(rawB)
		if aCode == "" {
			return nil, fmt.Errorf("location mapping contains an empty source A code")
		}
		if bCode == "" {
			return nil, fmt.Errorf("source A location %s maps to an empty source B code", aCode)
		}
		if existing, ok := m.forward[aCode]; ok && existing != bCode {
			return nil, fmt.Errorf("source A location %s maps to both %s and %s", aCode, existing, bCode)
		}
		if _, ok := m.forward[aCode]; ok {
			continue
		}
		m.forward[aCode] = bCode
		m.groups[bCode] = append(m.groups[bCode], aCode)
	}

	for bCode := range m.groups {
		sort.Strings(m.groups[bCode])
	}

	return m, nil
}

// Resolve returns the Source-B code for a Source-A code. The second result
// is false when the code is not mapped.
func (m *Mapper) Resolve(sourceACode string) (string, bool) {
	if m == nil {
		return "", false
	}
	bCode, ok := m.forward[NormalizeCode(sourceACode)]
	return bCode, ok
}

// GroupFor returns the Source-A codes that map to a Source-B code, sorted.
// The returned slice is a copy.
func (m *Mapper) GroupFor(sourceBCode string) []string {
	if m == nil {
		return nil
	}
	group := m.groups[NormalizeCode(sourceBCode)]
	out := make([]string, len(group))
	copy(out, group)
	return out
}

// SourceACodes returns every mapped Source-A code, sorted.
func (m *Mapper) SourceACodes() []string {
	if m == nil {
		return nil
	}
	codes := make([]string, 0, len(m.forward))
	for code := range m.forward {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// SourceBCodes returns every Source-B code that has at least one Source-A
// code mapped to it, sorted.
func (m *Mapper) SourceBCodes() []string {
	if m == nil {
		return nil
	}
	codes := make([]string, 0, len(m.groups))
	for code := range m.groups {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Len returns the number of mapped Source-A codes.
func (m *Mapper) Len() int {
	if m == nil {
		return 0
	}
	return len(m.forward)
}

// Group is one Source-B location and the Source-A codes folded into it.
type Group struct {
	SourceBCode  string   `json:"source_b_code"`
	SourceACodes []string `json:"source_a_codes"`
}

// Groups returns the whole table grouped by Source-B code, sorted.
func (m *Mapper) Groups() []Group {
	bCodes := m.SourceBCodes()
	groups := make([]Group, 0, len(bCodes))
	for _, bCode := range bCodes {
		groups = append(groups, Group{SourceBCode: bCode, SourceACodes: m.GroupFor(bCode)})
	}
	return groups
}
