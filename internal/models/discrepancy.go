package models

import (
	"fmt"
	"strings"
)

// DiscrepancyLevel classifies how far the two sources diverge for one
// merged location, or for an item as a whole.
type DiscrepancyLevel string

const (
	// DiscrepancyOK means both sources agree within the warning threshold.
	DiscrepancyOK DiscrepancyLevel = "OK"
	// DiscrepancyWarning means the stock difference is notable.
	DiscrepancyWarning DiscrepancyLevel = "WARNING"
	// DiscrepancyCritical means the stock difference needs investigation.
	DiscrepancyCritical DiscrepancyLevel = "CRITICAL"
	// DiscrepancyAOnly means only Source A reported the location.
	DiscrepancyAOnly DiscrepancyLevel = "A_ONLY"
	// DiscrepancyBOnly means only Source B reported the location.
	DiscrepancyBOnly DiscrepancyLevel = "B_ONLY"
)

// AllDiscrepancyLevels lists every level in display order.
var AllDiscrepancyLevels = []DiscrepancyLevel{
	DiscrepancyOK,
	DiscrepancyWarning,
	DiscrepancyCritical,
	DiscrepancyAOnly,
	DiscrepancyBOnly,
}

// String returns the string representation of DiscrepancyLevel
func (d DiscrepancyLevel) String() string {
	return string(d)
}

// IsValid checks if the level is one of the known labels
func (d DiscrepancyLevel) IsValid() bool {
	switch d {
	case DiscrepancyOK, DiscrepancyWarning, DiscrepancyCritical, DiscrepancyAOnly, DiscrepancyBOnly:
		return true
	default:
		return false
	}
}

// IsSingleSource reports whether the level marks a location that only one
// source knows about. Such levels are informational.
func (d DiscrepancyLevel) IsSingleSource() bool {
	return d == DiscrepancyAOnly || d == DiscrepancyBOnly
}

// Severity ranks the levels that take part in item rollup. Single-source
// levels rank with OK.
func (d DiscrepancyLevel) Severity() int {
	switch d {
	case DiscrepancyCritical:
		return 2
	case DiscrepancyWarning:
		return 1
	default:
		return 0
	}
}

// ParseDiscrepancyLevel parses a level name, ignoring case.
func ParseDiscrepancyLevel(s string) (DiscrepancyLevel, error) {
	level := DiscrepancyLevel(strings.ToUpper(strings.TrimSpace(s)))
	if !level.IsValid() {
		return "", fmt.Errorf("unknown discrepancy level: %s", s)
	}
	return level, nil
}
