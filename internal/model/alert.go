package model

import "time"

// Alert is produced once per rule firing. Acknowledged is the only field
// that may change after creation.
type Alert struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	RuleID       string    `json:"rule_id"`
	RuleName     string    `json:"rule_name"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	SourceIP     string    `json:"source_ip"`
	MitreAttack  string    `json:"mitre_attack"`
	LogID        int64     `json:"log_id"`
	Acknowledged bool      `json:"acknowledged"`
}
