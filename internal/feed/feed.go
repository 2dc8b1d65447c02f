package feed

import "log-sentinel/internal/model"

const (
	// DefaultLogCapacity and DefaultAlertCapacity are the retained item
	// counts of the two views.
	DefaultLogCapacity   = 1000
	DefaultAlertCapacity = 100

	ViewLogs   = "logs"
	ViewAlerts = "alerts"
)

// Observer receives subscriber lifecycle events, e.g. for metrics.
type Observer interface {
	SubscriberAttached(view string)
	SubscriberDetached(view string)
	ItemsMissed(view string, n uint64)
}

// Feed holds the two independent live views.
type Feed struct {
	logs     *Ring[model.LogRecord]
	alerts   *Ring[model.Alert]
	observer Observer
}

// New creates a feed. Non-positive capacities fall back to the defaults.
// observer may be nil.
func New(logCapacity, alertCapacity int, observer Observer) *Feed {
	if logCapacity <= 0 {
		logCapacity = DefaultLogCapacity
	}
	if alertCapacity <= 0 {
		alertCapacity = DefaultAlertCapacity
	}
	return &Feed{
		logs:     NewRing[model.LogRecord](logCapacity),
		alerts:   NewRing[model.Alert](alertCapacity),
		observer: observer,
	}
}

// PublishLog appends rec to the log view.
func (f *Feed) PublishLog(rec model.LogRecord) uint64 {
	return f.logs.Append(rec)
}

// PublishAlert appends a to the alert view.
func (f *Feed) PublishAlert(a model.Alert) uint64 {
	return f.alerts.Append(a)
}

// Logs exposes the log view.
func (f *Feed) Logs() *Ring[model.LogRecord] {
	return f.logs
}

// Alerts exposes the alert view.
func (f *Feed) Alerts() *Ring[model.Alert] {
	return f.alerts
}

// SubscribeLogs attaches a new subscriber to the log view. Callers must
// Close the cursor when done.
func (f *Feed) SubscribeLogs() *Cursor[model.LogRecord] {
	return subscribe(f.logs, ViewLogs, f.observer)
}

// SubscribeAlerts attaches a new subscriber to the alert view.
func (f *Feed) SubscribeAlerts() *Cursor[model.Alert] {
	return subscribe(f.alerts, ViewAlerts, f.observer)
}

func subscribe[T any](r *Ring[T], view string, obs Observer) *Cursor[T] {
	c := NewCursor(r)
	if obs == nil {
		return c
	}
	obs.SubscriberAttached(view)
	c.onMissed = func(n uint64) { obs.ItemsMissed(view, n) }
	c.onClose = func() { obs.SubscriberDetached(view) }
	return c
}
