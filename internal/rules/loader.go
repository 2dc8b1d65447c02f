package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"log-sentinel/internal/model"

	"gopkg.in/yaml.v3"
)

// LoadRulesFromJSON loads rules from a JSON file of the form {"rules": [...]}.
func LoadRulesFromJSON(filename string) ([]model.DetectionRule, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var doc struct {
		Rules []model.DetectionRule `json:"rules"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	return doc.Rules, nil
}

// LoadRulesFromYAML loads rules from a YAML file with a top-level "rules" list.
func LoadRulesFromYAML(filename string) ([]model.DetectionRule, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var doc struct {
		Rules []model.DetectionRule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules file: %w", err)
	}

	return doc.Rules, nil
}

// LoadRules picks the decoder from the file extension and validates the
// result.
func LoadRules(filename string) ([]model.DetectionRule, error) {
	if filename == "" {
		return nil, fmt.Errorf("rules file path is empty")
	}

	var (
		defs []model.DetectionRule
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		defs, err = LoadRulesFromYAML(filename)
	case ".json":
		defs, err = LoadRulesFromJSON(filename)
	default:
		defs, err = LoadRulesFromYAML(filename)
		if err != nil {
			defs, err = LoadRulesFromJSON(filename)
		}
	}
	if err != nil {
		return nil, err
	}

	if err := Validate(defs); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", filename, err)
	}
	return defs, nil
}

// Validate checks a rule set before it is compiled.
func Validate(defs []model.DetectionRule) error {
	if len(defs) == 0 {
		return fmt.Errorf("no detection rules defined")
	}

	seen := make(map[string]struct{}, len(defs))
	for i, def := range defs {
		if def.ID == "" {
			return fmt.Errorf("rule #%d: id is required", i+1)
		}
		if _, dup := seen[def.ID]; dup {
			return fmt.Errorf("rule %s: duplicate id", def.ID)
		}
		seen[def.ID] = struct{}{}

		if _, err := model.ParseSeverity(string(def.Severity)); err != nil {
			return fmt.Errorf("rule %s: %w", def.ID, err)
		}
		if def.Pattern == "" {
			return fmt.Errorf("rule %s: pattern is required", def.ID)
		}
		if _, err := regexp.Compile(def.Pattern); err != nil {
			return fmt.Errorf("rule %s: invalid pattern: %w", def.ID, err)
		}
		if def.ContextPattern != "" {
			if _, err := regexp.Compile(def.ContextPattern); err != nil {
				return fmt.Errorf("rule %s: invalid context pattern: %w", def.ID, err)
			}
		}
		if def.LogField != "" && def.LogField != "message" {
			return fmt.Errorf("rule %s: unsupported log_field %q", def.ID, def.LogField)
		}
		if def.Threshold < 0 {
			return fmt.Errorf("rule %s: threshold must not be negative", def.ID)
		}
		if def.HasThreshold() && def.WindowSeconds <= 0 {
			return fmt.Errorf("rule %s: threshold rules need a positive window_seconds", def.ID)
		}
	}
	return nil
}
