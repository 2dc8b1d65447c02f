// Package store persists parsed log records and alerts and answers the
// queries of the HTTP surface.
package store

import (
	"context"
	"errors"
	"time"

	"log-sentinel/internal/model"

	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a record with the requested id does not exist.
var ErrNotFound = errors.New("record not found")

// LogFilter selects log records. Zero values disable a condition; a zero
// Limit means no limit.
type LogFilter struct {
	Level       model.Level
	Since       time.Time
	Search      string
	Limit       int
	OldestFirst bool
}

// AlertFilter selects alerts. Zero values disable a condition.
type AlertFilter struct {
	Severity           model.Severity
	Since              time.Time
	UnacknowledgedOnly bool
	Limit              int
	OldestFirst        bool
}

// Stats summarizes the stored data.
type Stats struct {
	TotalLogs            int64            `json:"total_logs"`
	TotalAlerts          int64            `json:"total_alerts"`
	UnacknowledgedAlerts int64            `json:"unacknowledged_alerts"`
	AlertsBySeverity     map[string]int64 `json:"alerts_by_severity"`
	AlertsByRule         map[string]int64 `json:"alerts_by_rule"`
}

// Store is implemented by every persistence backend. Writes come from the
// single ingestion goroutine; reads may be concurrent.
type Store interface {
	// AppendLog stores rec and returns its assigned id.
	AppendLog(ctx context.Context, rec model.LogRecord) (int64, error)
	// AppendAlert stores a and returns its assigned id.
	AppendAlert(ctx context.Context, a model.Alert) (int64, error)

	QueryLogs(ctx context.Context, f LogFilter) ([]model.LogRecord, error)
	QueryAlerts(ctx context.Context, f AlertFilter) ([]model.Alert, error)

	// LogsByIDRange returns the logs with from <= id <= to, ordered by id.
	LogsByIDRange(ctx context.Context, from, to int64) ([]model.LogRecord, error)

	GetAlert(ctx context.Context, id int64) (model.Alert, error)
	// AcknowledgeAlert marks an alert as acknowledged. Acknowledging twice is
	// not an error; an unknown id returns ErrNotFound.
	AcknowledgeAlert(ctx context.Context, id int64) error

	Stats(ctx context.Context) (Stats, error)
	Close() error
}

func newStats() Stats {
	return Stats{
		AlertsBySeverity: make(map[string]int64),
		AlertsByRule:     make(map[string]int64),
	}
}

// New returns the backend named by driver.
func New(driver, dsn string, logger *logrus.Logger) (Store, error) {
	if driver == DriverMemory {
		return NewMemoryStore(0, 0, logger), nil
	}
	return Open(driver, dsn, logger)
}
