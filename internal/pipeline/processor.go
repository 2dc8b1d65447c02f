package pipeline

import (
	"context"
	"time"

	"log-sentinel/internal/alert"
	"log-sentinel/internal/feed"
	"log-sentinel/internal/metrics"
	"log-sentinel/internal/model"
	"log-sentinel/internal/parser"
	"log-sentinel/internal/rules"
	"log-sentinel/internal/store"

	"github.com/sirupsen/logrus"
)

// Processor turns one raw line into a stored, published and evaluated log
// record, and stores and publishes any alerts it raises.
type Processor struct {
	parser    *parser.Parser
	engine    *rules.Engine
	store     store.Store
	feed      *feed.Feed
	notifiers []alert.Notifier
	metrics   *metrics.Metrics
	logger    *logrus.Logger
}

// NewProcessor creates a new processor instance
func NewProcessor(
	p *parser.Parser,
	engine *rules.Engine,
	st store.Store,
	f *feed.Feed,
	notifiers []alert.Notifier,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *Processor {
	if p == nil {
		p = parser.New()
	}
	return &Processor{
		parser:    p,
		engine:    engine,
		store:     st,
		feed:      f,
		notifiers: notifiers,
		metrics:   m,
		logger:    logger,
	}
}

// Process handles one line to completion and returns the alerts it raised.
// Storage failures are logged and counted; they never stop processing.
func (p *Processor) Process(ctx context.Context, line string) []model.Alert {
	start := time.Now()
	defer func() {
		p.metrics.ProcessingTime.Observe(time.Since(start).Seconds())
	}()

	rec := p.parser.Parse(line)
	p.metrics.LinesTotal.Inc()
	p.metrics.LogsByLevel.WithLabelValues(string(rec.Level)).Inc()

	id, err := p.store.AppendLog(ctx, rec)
	if err != nil {
		p.metrics.PersistFailures.WithLabelValues(metrics.KindLog).Inc()
		p.logger.WithFields(logrus.Fields{
			"timestamp": rec.Timestamp,
			"level":     rec.Level,
		}).Errorf("Log record lost, failed to persist: %v", err)
	}
	rec.ID = id

	p.feed.PublishLog(rec)

	alerts := p.engine.Evaluate(rec, rec.ID)
	for i := range alerts {
		alertID, err := p.store.AppendAlert(ctx, alerts[i])
		if err != nil {
			p.metrics.PersistFailures.WithLabelValues(metrics.KindAlert).Inc()
			p.logger.WithFields(logrus.Fields{
				"rule_id": alerts[i].RuleID,
				"log_id":  alerts[i].LogID,
			}).Errorf("Alert lost, failed to persist: %v", err)
		}
		alerts[i].ID = alertID

		p.feed.PublishAlert(alerts[i])
		p.notify(alerts[i])
	}

	return alerts
}

func (p *Processor) notify(a model.Alert) {
	for _, n := range p.notifiers {
		if err := n.SendAlert(a); err != nil {
			p.logger.Errorf("Failed to send alert %d for rule %s: %v", a.ID, a.RuleID, err)
		}
	}
}
