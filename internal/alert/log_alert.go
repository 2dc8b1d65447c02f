package alert

import (
	"log-sentinel/internal/model"

	"github.com/sirupsen/logrus"
)

// LogAlertNotifier sends alerts to local logs
type LogAlertNotifier struct {
	logger *logrus.Logger
}

// NewLogAlertNotifier creates a new log alert notifier
func NewLogAlertNotifier(logger *logrus.Logger) *LogAlertNotifier {
	return &LogAlertNotifier{
		logger: logger,
	}
}

// SendAlert implements Notifier interface - sends alert to logs
func (ln *LogAlertNotifier) SendAlert(alert model.Alert) error {
	ln.logger.WithFields(logrus.Fields{
		"alert_id":  alert.ID,
		"rule_id":   alert.RuleID,
		"source_ip": alert.SourceIP,
		"mitre":     alert.MitreAttack,
		"log_id":    alert.LogID,
	}).Warnf("ALERT [%s] %s: %s", alert.Severity, alert.RuleName, alert.Message)
	return nil
}
