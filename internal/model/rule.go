package model

import (
	"fmt"
	"strings"
	"time"
)

// Severity of a detection rule and of the alerts it produces.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity normalizes s and checks it against the known severities.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// DetectionRule is a declarative pattern plus metadata. Rules are pure data;
// the engine compiles and evaluates them with one uniform algorithm.
type DetectionRule struct {
	ID             string   `yaml:"id" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	Severity       Severity `yaml:"severity" json:"severity"`
	Pattern        string   `yaml:"pattern" json:"pattern"`
	LogField       string   `yaml:"log_field,omitempty" json:"log_field,omitempty"`
	ContextPattern string   `yaml:"context_pattern,omitempty" json:"context_pattern,omitempty"`
	Threshold      int      `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	WindowSeconds  int      `yaml:"window_seconds,omitempty" json:"window_seconds,omitempty"`
	MitreAttack    string   `yaml:"mitre_attack" json:"mitre_attack"`
	Description    string   `yaml:"description" json:"description"`
}

// HasThreshold reports whether the rule only fires after Threshold matches
// inside its window.
func (r DetectionRule) HasThreshold() bool {
	return r.Threshold > 0
}

// Window returns the sliding window of a threshold rule.
func (r DetectionRule) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}
