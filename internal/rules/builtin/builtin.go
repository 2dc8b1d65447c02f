// Package builtin holds the detection rules shipped with the service.
package builtin

import "log-sentinel/internal/model"

// Rule ids of the built-in catalog.
const (
	SQLInjection     = "SQL_INJECTION_ATTEMPT"
	CommandInjection = "COMMAND_INJECTION_ATTEMPT"
	PathTraversal    = "PATH_TRAVERSAL_ATTEMPT"
	BruteForceLogin  = "BRUTE_FORCE_LOGIN"
	DebugEndpoint    = "DEBUG_ENDPOINT_ACCESS"
	SensitiveFile    = "SENSITIVE_FILE_ACCESS"
	XSS              = "XSS_ATTEMPT"
)

// Rules returns a fresh copy of the built-in catalog in evaluation order.
func Rules() []model.DetectionRule {
	return []model.DetectionRule{
		{
			ID:          SQLInjection,
			Name:        "SQL Injection Attempt Detected",
			Severity:    model.SeverityHigh,
			Pattern:     `(UNION|SELECT|INSERT|UPDATE|DELETE|DROP|--|'|;).*FROM`,
			LogField:    "message",
			MitreAttack: "T1190",
			Description: "Potential SQL injection attack detected in web request",
		},
		{
			ID:             CommandInjection,
			Name:           "Command Injection Attempt",
			Severity:       model.SeverityCritical,
			Pattern:        "(;|\\||`|\\$\\(|&&)",
			LogField:       "message",
			ContextPattern: `ping.*request`,
			MitreAttack:    "T1059",
			Description:    "Potential command injection in system command execution",
		},
		{
			ID:          PathTraversal,
			Name:        "Path Traversal Attempt",
			Severity:    model.SeverityHigh,
			Pattern:     `\.\./`,
			LogField:    "message",
			MitreAttack: "T1083",
			Description: "Potential path traversal attack to access sensitive files",
		},
		{
			ID:            BruteForceLogin,
			Name:          "Brute Force Login Attempt",
			Severity:      model.SeverityMedium,
			Pattern:       `Failed login attempt`,
			LogField:      "message",
			Threshold:     5,
			WindowSeconds: 60,
			MitreAttack:   "T1110",
			Description:   "Multiple failed login attempts from same source",
		},
		{
			ID:          DebugEndpoint,
			Name:        "Debug Endpoint Accessed",
			Severity:    model.SeverityMedium,
			Pattern:     `Debug endpoint accessed`,
			LogField:    "message",
			MitreAttack: "T1592",
			Description: "Sensitive debug information endpoint was accessed",
		},
		{
			ID:             SensitiveFile,
			Name:           "Sensitive File Access Attempt",
			Severity:       model.SeverityHigh,
			Pattern:        `(passwd|shadow|\.env|config|secret)`,
			LogField:       "message",
			ContextPattern: `File.*request`,
			MitreAttack:    "T1005",
			Description:    "Attempt to access sensitive system files",
		},
		{
			ID:          XSS,
			Name:        "Cross-Site Scripting Attempt",
			Severity:    model.SeverityMedium,
			Pattern:     `(<script|javascript:|onerror=|onload=)`,
			LogField:    "message",
			MitreAttack: "T1059.007",
			Description: "Potential XSS payload detected in user input",
		},
	}
}
