package model

import (
	"fmt"
	"strings"
)

// ReasonCode explains why a worker was recommended.
type ReasonCode string

const (
	ReasonSkillMatch   ReasonCode = "SKILL_MATCH"
	ReasonDistance     ReasonCode = "DISTANCE"
	ReasonAvailability ReasonCode = "AVAILABILITY"
	ReasonLoadBalance  ReasonCode = "LOAD_BALANCE"
	ReasonExperience   ReasonCode = "EXPERIENCE"
	ReasonNoCandidates ReasonCode = "NO_CANDIDATES"
)

var reasonLabels = map[ReasonCode]string{
	ReasonSkillMatch:   "skill match",
	ReasonDistance:     "distance",
	ReasonAvailability: "availability",
	ReasonLoadBalance:  "load balance",
	ReasonExperience:   "experience",
	ReasonNoCandidates: "no candidates",
}

// Valid reports whether r is a known reason code.
func (r ReasonCode) Valid() bool {
	_, ok := reasonLabels[r]
	return ok
}

// Label returns the human readable form of the reason.
func (r ReasonCode) Label() string {
	if l, ok := reasonLabels[r]; ok {
		return l
	}
	return strings.ToLower(string(r))
}

// PlatformRecommendation is the explainable output shown to the UI and
// stored for learning.
type PlatformRecommendation struct {
	PrimaryReason    ReasonCode   `json:"primary_reason"`
	SecondaryFactors []ReasonCode `json:"secondary_factors,omitempty"`
	ConfidenceScore  float64      `json:"confidence_score"`
}

// Validate checks reason codes and the confidence range.
func (p PlatformRecommendation) Validate() error {
	if !p.PrimaryReason.Valid() {
		return fmt.Errorf("unknown primary reason %q", p.PrimaryReason)
	}
	seen := make(map[ReasonCode]bool, len(p.SecondaryFactors))
	for _, f := range p.SecondaryFactors {
		if f == ReasonNoCandidates {
			return fmt.Errorf("%s cannot be a secondary factor", f)
		}
		if !f.Valid() {
			return fmt.Errorf("unknown secondary factor %q", f)
		}
		if seen[f] {
			return fmt.Errorf("duplicate secondary factor %s", f)
		}
		seen[f] = true
	}
	if p.ConfidenceScore < 0 || p.ConfidenceScore > 1 {
		return fmt.Errorf("confidence %.3f out of range [0,1]", p.ConfidenceScore)
	}
	return nil
}

// Reason formats the recommendation as a sentence for display.
func (p PlatformRecommendation) Reason(workerName string) string {
	if p.PrimaryReason == ReasonNoCandidates {
		return "No available worker matches this task"
	}
	var b strings.Builder
	if workerName != "" {
		fmt.Fprintf(&b, "Recommended %s: %s", workerName, p.PrimaryReason.Label())
	} else {
		fmt.Fprintf(&b, "Recommended for %s", p.PrimaryReason.Label())
	}
	if len(p.SecondaryFactors) > 0 {
		labels := make([]string, len(p.SecondaryFactors))
		for i, f := range p.SecondaryFactors {
			labels[i] = f.Label()
		}
		fmt.Fprintf(&b, " (also: %s)", strings.Join(labels, ", "))
	}
	fmt.Fprintf(&b, ", confidence %.0f%%", p.ConfidenceScore*100)
	return b.String()
}
