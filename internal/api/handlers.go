// Package api serves the query, stats and live stream endpoints.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log-sentinel/internal/feed"
	"log-sentinel/internal/model"
	"log-sentinel/internal/store"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/common/version"
	"github.com/sirupsen/logrus"
)

const (
	defaultLogLimit   = 100
	defaultAlertLimit = 50
	maxLimit          = 1000
	contextRadius     = 5
	maxExportHours    = 24 * 365
)

// RuleCatalog exposes the active detection rules.
type RuleCatalog interface {
	Rules() []model.DetectionRule
	Rule(id string) (model.DetectionRule, bool)
}

type Handlers struct {
	store    store.Store
	rules    RuleCatalog
	feed     *feed.Feed
	logger   *logrus.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewHandlers(st store.Store, rules RuleCatalog, f *feed.Feed, logger *logrus.Logger) *Handlers {
	return &Handlers{
		store:  st,
		rules:  rules,
		feed:   f,
		logger: logger,
		now:    time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				logger.Debugf("WebSocket origin check: %s", r.Header.Get("Origin"))
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"timestamp":         h.now().Format(time.RFC3339),
		"log_buffer_size":   h.feed.Logs().Len(),
		"alert_buffer_size": h.feed.Alerts().Len(),
		"rules":             len(h.rules.Rules()),
		"version":           version.Version,
	})
}

// Logs handlers
func (h *Handlers) GetLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	since, err := parseSince(q.Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := h.store.QueryLogs(r.Context(), store.LogFilter{
		Level:  model.Level(strings.ToUpper(q.Get("level"))),
		Since:  since,
		Search: q.Get("q"),
		Limit:  parseLimit(q.Get("limit"), defaultLogLimit),
	})
	if err != nil {
		h.internalError(w, "query logs", err)
		return
	}

	writeJSON(w, http.StatusOK, logs)
}

// Alerts handlers
func (h *Handlers) GetAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	since, err := parseSince(q.Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	alerts, err := h.store.QueryAlerts(r.Context(), store.AlertFilter{
		Severity:           model.Severity(strings.ToLower(q.Get("severity"))),
		Since:              since,
		UnacknowledgedOnly: strings.EqualFold(q.Get("unacknowledged"), "true"),
		Limit:              parseLimit(q.Get("limit"), defaultAlertLimit),
	})
	if err != nil {
		h.internalError(w, "query alerts", err)
		return
	}

	writeJSON(w, http.StatusOK, alerts)
}

func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	alert, err := h.store.GetAlert(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}
	if err != nil {
		h.internalError(w, "get alert", err)
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

func (h *Handlers) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	err := h.store.AcknowledgeAlert(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}
	if err != nil {
		h.internalError(w, "acknowledge alert", err)
		return
	}

	h.logger.Infof("Alert %d acknowledged", id)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "acknowledged",
		"alert_id": id,
	})
}

// GetContext returns an alert with the logs stored around the one that
// triggered it.
func (h *Handlers) GetContext(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	alert, err := h.store.GetAlert(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}
	if err != nil {
		h.internalError(w, "get alert", err)
		return
	}

	logs := make([]model.LogRecord, 0)
	if alert.LogID > 0 {
		logs, err = h.store.LogsByIDRange(r.Context(), alert.LogID-contextRadius, alert.LogID+contextRadius)
		if err != nil {
			h.internalError(w, "query context logs", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alert":        alert,
		"context_logs": logs,
	})
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.internalError(w, "get stats", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_logs":            stats.TotalLogs,
		"total_alerts":          stats.TotalAlerts,
		"unacknowledged_alerts": stats.UnacknowledgedAlerts,
		"alerts_by_severity":    stats.AlertsBySeverity,
		"alerts_by_rule":        stats.AlertsByRule,
		"timestamp":             h.now().Format(time.RFC3339),
	})
}

// Rules handlers
func (h *Handlers) GetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.rules.Rules())
}

func (h *Handlers) GetRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rule, ok := h.rules.Rule(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Rule not found")
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// Export returns everything stored within the trailing window of hours,
// oldest first, with the rule catalog.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	hours := 1
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hours")
			return
		}
		if n > 0 {
			hours = min(n, maxExportHours)
		}
	}

	now := h.now()
	since := now.Add(-time.Duration(hours) * time.Hour)

	logs, err := h.store.QueryLogs(r.Context(), store.LogFilter{Since: since, OldestFirst: true})
	if err != nil {
		h.internalError(w, "export logs", err)
		return
	}
	alerts, err := h.store.QueryAlerts(r.Context(), store.AlertFilter{Since: since, OldestFirst: true})
	if err != nil {
		h.internalError(w, "export alerts", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"export_timestamp": now.Format(time.RFC3339),
		"period_hours":     hours,
		"logs":             logs,
		"alerts":           alerts,
		"detection_rules":  h.rules.Rules(),
	})
}

func (h *Handlers) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Errorf("Failed to %s: %v", op, err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func parseLimit(v string, def int) int {
	limit, _ := strconv.Atoi(v)
	if limit < 1 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

var sinceLayouts = []string{
	model.TimestampLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseSince accepts RFC3339 or a local time in the log line layout. An empty
// value means no lower bound.
func parseSince(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	for _, layout := range sinceLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("Invalid since time format: %q", v)
}
