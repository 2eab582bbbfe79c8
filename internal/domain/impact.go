package domain

import "strings"

// Impact is the canonical severity of a violation.
type Impact string

const (
	ImpactMinor    Impact = "minor"
	ImpactModerate Impact = "moderate"
	ImpactSerious  Impact = "serious"
	ImpactCritical Impact = "critical"
)

// Rank orders impacts from minor (1) to critical (4). Unknown values rank 0.
func (i Impact) Rank() int {
	switch i {
	case ImpactCritical:
		return 4
	case ImpactSerious:
		return 3
	case ImpactModerate:
		return 2
	case ImpactMinor:
		return 1
	default:
		return 0
	}
}

// MaxImpact returns the more severe of a and b.
func MaxImpact(a, b Impact) Impact {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseImpact maps a case-insensitive impact name to Impact.
// The second return value is false for anything outside the canonical set.
func ParseImpact(s string) (Impact, bool) {
	i := Impact(strings.ToLower(strings.TrimSpace(s)))
	if i.Rank() == 0 {
		return "", false
	}
	return i, true
}

// WCAGLevel is the conformance level a violation belongs to.
type WCAGLevel string

const (
	LevelA       WCAGLevel = "A"
	LevelAA      WCAGLevel = "AA"
	LevelAAA     WCAGLevel = "AAA"
	LevelUnknown WCAGLevel = "Unknown"
)

// ParseWCAGLevel accepts A, AA or AAA in any case.
func ParseWCAGLevel(s string) (WCAGLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return LevelA, true
	case "AA":
		return LevelAA, true
	case "AAA":
		return LevelAAA, true
	}
	return "", false
}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// PriorityFor derives the remediation priority from impact.
func PriorityFor(i Impact) Priority {
	switch i {
	case ImpactCritical, ImpactSerious:
		return PriorityHigh
	case ImpactModerate:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

type Effort string

const (
	EffortLow    Effort = "Low"
	EffortMedium Effort = "Medium"
	EffortHigh   Effort = "High"
)
