package alert

import "log-sentinel/internal/model"

// Notifier receives every alert after it has been persisted and published.
type Notifier interface {
	SendAlert(alert model.Alert) error
}
