package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log-sentinel/internal/model"
	"log-sentinel/internal/rules"
	"log-sentinel/internal/rules/builtin"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when no config file is given.
const DefaultConfigPath = "configs/log_sentinel.yaml"

// Environment variables that override file values.
const (
	EnvLogPath  = "LOG_PATH"
	EnvPort     = "SIEM_PORT"
	EnvDatabase = "SIEM_DATABASE"
	EnvDBDriver = "SIEM_DB_DRIVER"
)

// LoadConfig reads a YAML or JSON config file, applies environment overrides
// and validates the result.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = DefaultConfigPath
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	var config Config
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		err = json.Unmarshal(data, &config)
	} else {
		err = yaml.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	config.ApplyEnv(os.Getenv)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// LoadConfigOrDefault behaves like LoadConfig but falls back to the default
// configuration when the file does not exist. The returned bool reports
// whether the file was read.
func LoadConfigOrDefault(filename string) (*Config, bool, error) {
	config, err := LoadConfig(filename)
	if err == nil {
		return config, true, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}

	config = GetDefaultConfig()
	config.ApplyEnv(os.Getenv)
	if err := config.Validate(); err != nil {
		return nil, false, fmt.Errorf("invalid config: %w", err)
	}
	return config, false, nil
}

// ApplyEnv overrides file values with the environment. getenv is usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvLogPath); v != "" {
		c.Source.Path = v
	}
	if v := getenv(EnvPort); v != "" {
		c.Application.ListenAddr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := getenv(EnvDatabase); v != "" {
		c.Storage.DSN = v
	}
	if v := getenv(EnvDBDriver); v != "" {
		c.Storage.Driver = v
	}
}

// LoadRuleCatalog returns the rules to run: the rules file if configured,
// else rules inlined in the config, else the built-in catalog. The string
// names where the rules came from.
func LoadRuleCatalog(c *Config) ([]model.DetectionRule, string, error) {
	if c.Detection.RulesFile != "" {
		defs, err := rules.LoadRules(c.Detection.RulesFile)
		if err != nil {
			return nil, "", err
		}
		return defs, c.Detection.RulesFile, nil
	}

	if len(c.Rules) > 0 {
		if err := rules.Validate(c.Rules); err != nil {
			return nil, "", fmt.Errorf("invalid inline rules: %w", err)
		}
		defs := make([]model.DetectionRule, len(c.Rules))
		copy(defs, c.Rules)
		return defs, "config", nil
	}

	return builtin.Rules(), "builtin", nil
}
