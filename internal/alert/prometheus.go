package alert

import (
	"log-sentinel/internal/metrics"
	"log-sentinel/internal/model"
)

// PrometheusNotifier counts alerts per rule and severity.
type PrometheusNotifier struct {
	metrics *metrics.Metrics
}

func NewPrometheusNotifier(m *metrics.Metrics) *PrometheusNotifier {
	return &PrometheusNotifier{metrics: m}
}

func (pn *PrometheusNotifier) SendAlert(alert model.Alert) error {
	pn.metrics.AlertsTotal.WithLabelValues(alert.RuleID, string(alert.Severity)).Inc()
	return nil
}
