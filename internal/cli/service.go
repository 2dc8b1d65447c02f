package cli

import (
	"fmt"
	"time"

	"log-sentinel/internal/alert"
	"log-sentinel/internal/feed"
	"log-sentinel/internal/metrics"
	"log-sentinel/internal/pipeline"
	"log-sentinel/internal/rules"
	"log-sentinel/internal/store"
	"log-sentinel/internal/utils"

	"github.com/sirupsen/logrus"
)

// service holds the components shared by serve and replay.
type service struct {
	config    *utils.Config
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	store     store.Store
	engine    *rules.Engine
	feed      *feed.Feed
	processor *pipeline.Processor
}

// newService wires store, engine, feed and processor from config. now is the
// clock used for threshold windows; nil means wall-clock time.
func newService(config *utils.Config, logger *logrus.Logger, now func() time.Time) (*service, error) {
	defs, from, err := utils.LoadRuleCatalog(config)
	if err != nil {
		return nil, err
	}

	engine, err := rules.NewEngine(defs, rules.EngineConfig{
		MaxTrackedKeys: config.Detection.MaxTrackedKeys,
		Now:            now,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule engine: %w", err)
	}
	logger.WithField("source", from).Infof("Loaded %d detection rules", len(defs))

	m := metrics.New()
	m.TrackFunc("threshold_tracked_keys", "Number of threshold counters currently held in memory.", func() float64 {
		return float64(engine.TrackedKeys())
	})

	st, err := store.New(config.Storage.Driver, config.Storage.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", config.Storage.Driver, err)
	}

	f := feed.New(config.Feed.LogCapacity, config.Feed.AlertCapacity, m)

	return &service{
		config:    config,
		logger:    logger,
		metrics:   m,
		store:     st,
		engine:    engine,
		feed:      f,
		processor: pipeline.NewProcessor(nil, engine, st, f, alertNotifiers(config, m, logger), m, logger),
	}, nil
}

func alertNotifiers(config *utils.Config, m *metrics.Metrics, logger *logrus.Logger) []alert.Notifier {
	var notifiers []alert.Notifier
	if config.HasChannel(utils.ChannelLog) {
		notifiers = append(notifiers, alert.NewLogAlertNotifier(logger))
	}
	if config.HasChannel(utils.ChannelMetrics) {
		notifiers = append(notifiers, alert.NewPrometheusNotifier(m))
	}
	return notifiers
}

func (s *service) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Errorf("Failed to close store: %v", err)
	}
}
