package rules

import (
	"os"
	"path/filepath"
	"testing"

	"log-sentinel/internal/model"
	"log-sentinel/internal/rules/builtin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadRules_YAML(t *testing.T) {
	path := writeFile(t, "rules.yaml", `
rules:
  - id: ADMIN_LOGIN
    name: Admin login
    severity: low
    pattern: 'login succeeded for admin'
    mitre_attack: T1078
    description: Administrator signed in
  - id: TOKEN_ABUSE
    name: Token abuse
    severity: high
    pattern: 'invalid token'
    threshold: 3
    window_seconds: 30
    mitre_attack: T1550
    description: Repeated invalid tokens
`)

	defs, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "ADMIN_LOGIN", defs[0].ID)
	assert.Equal(t, model.SeverityLow, defs[0].Severity)
	assert.False(t, defs[0].HasThreshold())

	assert.Equal(t, 3, defs[1].Threshold)
	assert.Equal(t, 30, defs[1].WindowSeconds)
}

func TestLoadRules_JSON(t *testing.T) {
	path := writeFile(t, "rules.json", `{"rules": [
		{"id": "X", "name": "x", "severity": "medium", "pattern": "x+", "context_pattern": "y", "mitre_attack": "T0000", "description": "x"}
	]}`)

	defs, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "y", defs[0].ContextPattern)
}

func TestLoadRules_UnknownExtensionFallsBack(t *testing.T) {
	path := writeFile(t, "rules.conf", `{"rules": [{"id": "X", "severity": "low", "pattern": "x"}]}`)

	defs, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, "X", defs[0].ID)
}

func TestLoadRules_Errors(t *testing.T) {
	_, err := LoadRules("")
	assert.Error(t, err)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", "rules: [\n")
	_, err = LoadRules(bad)
	assert.Error(t, err)

	invalid := writeFile(t, "invalid.yaml", `
rules:
  - id: X
    severity: urgent
    pattern: x
`)
	_, err = LoadRules(invalid)
	assert.ErrorContains(t, err, "unknown severity")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(builtin.Rules()))

	tests := []struct {
		name string
		rule model.DetectionRule
	}{
		{"missing id", model.DetectionRule{Severity: "low", Pattern: "x"}},
		{"missing pattern", model.DetectionRule{ID: "A", Severity: "low"}},
		{"bad context", model.DetectionRule{ID: "A", Severity: "low", Pattern: "x", ContextPattern: "["}},
		{"bad field", model.DetectionRule{ID: "A", Severity: "low", Pattern: "x", LogField: "raw"}},
		{"threshold without window", model.DetectionRule{ID: "A", Severity: "low", Pattern: "x", Threshold: 2}},
		{"negative threshold", model.DetectionRule{ID: "A", Severity: "low", Pattern: "x", Threshold: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Validate([]model.DetectionRule{tt.rule}))
		})
	}

	dup := []model.DetectionRule{
		{ID: "A", Severity: "low", Pattern: "x"},
		{ID: "A", Severity: "low", Pattern: "y"},
	}
	assert.ErrorContains(t, Validate(dup), "duplicate")
}
