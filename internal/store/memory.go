package store

import (
	"context"
	"strings"
	"sync"

	"log-sentinel/internal/model"

	"github.com/sirupsen/logrus"
)

// MemoryStore keeps everything in process memory. It backs the offline
// replay command and tests. When a max is set, the oldest entries are dropped
// once it is exceeded.
type MemoryStore struct {
	mu          sync.RWMutex
	logs        []model.LogRecord
	alerts      []model.Alert
	nextLogID   int64
	nextAlertID int64
	maxLogs     int
	maxAlerts   int
	logger      *logrus.Logger
}

// NewMemoryStore creates an empty store. A zero max keeps everything.
func NewMemoryStore(maxLogs, maxAlerts int, logger *logrus.Logger) *MemoryStore {
	return &MemoryStore{
		logs:      make([]model.LogRecord, 0),
		alerts:    make([]model.Alert, 0),
		maxLogs:   maxLogs,
		maxAlerts: maxAlerts,
		logger:    logger,
	}
}

func (s *MemoryStore) AppendLog(_ context.Context, rec model.LogRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLogID++
	rec.ID = s.nextLogID
	s.logs = append(s.logs, rec)

	if s.maxLogs > 0 && len(s.logs) > s.maxLogs {
		s.logs = s.logs[len(s.logs)-s.maxLogs:]
		s.logger.Debugf("Memory store dropped log %d", s.logs[0].ID-1)
	}
	return rec.ID, nil
}

func (s *MemoryStore) AppendAlert(_ context.Context, a model.Alert) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAlertID++
	a.ID = s.nextAlertID
	s.alerts = append(s.alerts, a)

	if s.maxAlerts > 0 && len(s.alerts) > s.maxAlerts {
		s.alerts = s.alerts[len(s.alerts)-s.maxAlerts:]
	}
	return a.ID, nil
}

func (s *MemoryStore) QueryLogs(_ context.Context, f LogFilter) ([]model.LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(f.Search)
	match := func(rec model.LogRecord) bool {
		if f.Level != "" && rec.Level != f.Level {
			return false
		}
		if !f.Since.IsZero() && !rec.LoggedAt.After(f.Since) {
			return false
		}
		if search != "" && !strings.Contains(strings.ToLower(rec.Message), search) {
			return false
		}
		return true
	}
	return collect(s.logs, match, f.Limit, f.OldestFirst), nil
}

func (s *MemoryStore) QueryAlerts(_ context.Context, f AlertFilter) ([]model.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match := func(a model.Alert) bool {
		if f.Severity != "" && a.Severity != f.Severity {
			return false
		}
		if !f.Since.IsZero() && !a.Timestamp.After(f.Since) {
			return false
		}
		if f.UnacknowledgedOnly && a.Acknowledged {
			return false
		}
		return true
	}
	return collect(s.alerts, match, f.Limit, f.OldestFirst), nil
}

func (s *MemoryStore) LogsByIDRange(_ context.Context, from, to int64) ([]model.LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.LogRecord, 0)
	for _, rec := range s.logs {
		if rec.ID >= from && rec.ID <= to {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetAlert(_ context.Context, id int64) (model.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.alertIndex(id); i >= 0 {
		return s.alerts[i], nil
	}
	return model.Alert{}, ErrNotFound
}

func (s *MemoryStore) AcknowledgeAlert(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.alertIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	s.alerts[i].Acknowledged = true
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := newStats()
	stats.TotalLogs = int64(len(s.logs))
	stats.TotalAlerts = int64(len(s.alerts))
	for _, a := range s.alerts {
		if !a.Acknowledged {
			stats.UnacknowledgedAlerts++
		}
		stats.AlertsBySeverity[string(a.Severity)]++
		stats.AlertsByRule[a.RuleID]++
	}
	return stats, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// alertIndex relies on alerts being ordered by id. Caller holds the lock.
func (s *MemoryStore) alertIndex(id int64) int {
	lo, hi := 0, len(s.alerts)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		switch {
		case s.alerts[mid].ID == id:
			return mid
		case s.alerts[mid].ID < id:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return -1
}

// collect walks items newest first (or oldest first) and keeps up to limit
// matches.
func collect[T any](items []T, match func(T) bool, limit int, oldestFirst bool) []T {
	result := make([]T, 0)
	full := func() bool { return limit > 0 && len(result) >= limit }

	if oldestFirst {
		for i := 0; i < len(items) && !full(); i++ {
			if match(items[i]) {
				result = append(result, items[i])
			}
		}
		return result
	}
	for i := len(items) - 1; i >= 0 && !full(); i-- {
		if match(items[i]) {
			result = append(result, items[i])
		}
	}
	return result
}
