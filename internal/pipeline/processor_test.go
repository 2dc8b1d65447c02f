package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"log-sentinel/internal/alert"
	"log-sentinel/internal/feed"
	"log-sentinel/internal/metrics"
	"log-sentinel/internal/model"
	"log-sentinel/internal/parser"
	"log-sentinel/internal/rules"
	"log-sentinel/internal/rules/builtin"
	"log-sentinel/internal/store"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.Local)}
}

// failingStore fails every write of the configured kinds.
type failingStore struct {
	*store.MemoryStore
	failLogs   bool
	failAlerts bool
}

func (s *failingStore) AppendLog(ctx context.Context, rec model.LogRecord) (int64, error) {
	if s.failLogs {
		return 0, errors.New("disk full")
	}
	return s.MemoryStore.AppendLog(ctx, rec)
}

func (s *failingStore) AppendAlert(ctx context.Context, a model.Alert) (int64, error) {
	if s.failAlerts {
		return 0, errors.New("disk full")
	}
	return s.MemoryStore.AppendAlert(ctx, a)
}

type recordingNotifier struct{ alerts []model.Alert }

func (n *recordingNotifier) SendAlert(a model.Alert) error {
	n.alerts = append(n.alerts, a)
	return nil
}

type fixture struct {
	processor *Processor
	store     store.Store
	feed      *feed.Feed
	metrics   *metrics.Metrics
	notifier  *recordingNotifier
	clock     *fakeClock
}

func newFixture(t *testing.T, st store.Store) *fixture {
	t.Helper()
	logger := newTestLogger()
	clock := newFakeClock()

	engine, err := rules.NewEngine(builtin.Rules(), rules.EngineConfig{Now: clock.Now}, logger)
	require.NoError(t, err)

	if st == nil {
		st = store.NewMemoryStore(0, 0, logger)
	}
	m := metrics.New()
	f := feed.New(100, 100, m)
	n := &recordingNotifier{}

	p := NewProcessor(parser.NewWithClock(clock.Now), engine, st, f, []alert.Notifier{n}, m, logger)
	return &fixture{processor: p, store: st, feed: f, metrics: m, notifier: n, clock: clock}
}

func loginFailure(ip string) string {
	return fmt.Sprintf("2024-01-15 10:00:00,000 [WARNING] app - Failed login attempt from %s", ip)
}

func TestProcessor_BruteForceScenario(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	var fired [][]model.Alert
	for i := 0; i < 6; i++ {
		fired = append(fired, fx.processor.Process(ctx, loginFailure("10.0.0.5")))
		fx.clock.Advance(5 * time.Second)
	}

	for i := 0; i < 4; i++ {
		assert.Empty(t, fired[i], "line %d", i+1)
	}
	require.Len(t, fired[4], 1)
	require.Len(t, fired[5], 1)

	a := fired[4][0]
	assert.Equal(t, builtin.BruteForceLogin, a.RuleID)
	assert.Equal(t, model.SeverityMedium, a.Severity)
	assert.Equal(t, "10.0.0.5", a.SourceIP)
	assert.Equal(t, int64(5), a.LogID)
	assert.Equal(t, int64(1), a.ID)

	stats, err := fx.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stats.TotalLogs)
	assert.Equal(t, int64(2), stats.TotalAlerts)

	assert.Equal(t, 6, fx.feed.Logs().Len())
	assert.Equal(t, 2, fx.feed.Alerts().Len())
	assert.Len(t, fx.notifier.alerts, 2)

	assert.Equal(t, 6.0, testutil.ToFloat64(fx.metrics.LinesTotal))
	assert.Equal(t, 6.0, testutil.ToFloat64(fx.metrics.LogsByLevel.WithLabelValues("WARNING")))
}

func TestProcessor_SQLInjectionScenario(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	line := "2024-01-15 10:00:01,000 [INFO] app - Search from 192.168.1.9: SELECT * FROM users WHERE id=1 UNION SELECT password FROM users"
	alerts := fx.processor.Process(ctx, line)

	require.Len(t, alerts, 1)
	assert.Equal(t, builtin.SQLInjection, alerts[0].RuleID)
	assert.Equal(t, "192.168.1.9", alerts[0].SourceIP)

	stored, err := fx.store.GetAlert(ctx, alerts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, alerts[0].Message, stored.Message)
	assert.False(t, stored.Acknowledged)
}

func TestProcessor_MalformedLineIsStored(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	alerts := fx.processor.Process(ctx, "garbage line without structure")
	assert.Empty(t, alerts)

	logs, err := fx.store.QueryLogs(ctx, store.LogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.LevelUnknown, logs[0].Level)
	assert.Equal(t, "garbage line without structure", logs[0].Message)
}

func TestProcessor_LogPersistFailureContinues(t *testing.T) {
	logger := newTestLogger()
	st := &failingStore{MemoryStore: store.NewMemoryStore(0, 0, logger), failLogs: true}
	fx := newFixture(t, st)
	ctx := context.Background()

	sub := fx.feed.SubscribeLogs()
	defer sub.Close()

	alerts := fx.processor.Process(ctx, "2024-01-15 10:00:01,000 [INFO] app - File request for ../../etc/passwd")
	require.Len(t, alerts, 2)
	for _, a := range alerts {
		assert.Zero(t, a.LogID)
		assert.NotZero(t, a.ID)
	}

	items, _, err := sub.Next(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Zero(t, items[0].ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.PersistFailures.WithLabelValues(metrics.KindLog)))
}

func TestProcessor_AlertPersistFailureStillPublishes(t *testing.T) {
	logger := newTestLogger()
	st := &failingStore{MemoryStore: store.NewMemoryStore(0, 0, logger), failAlerts: true}
	fx := newFixture(t, st)
	ctx := context.Background()

	sub := fx.feed.SubscribeAlerts()
	defer sub.Close()

	alerts := fx.processor.Process(ctx, "2024-01-15 10:00:01,000 [INFO] app - comment <script>alert(1)</script>")
	require.Len(t, alerts, 1)
	assert.Zero(t, alerts[0].ID)
	assert.Equal(t, int64(1), alerts[0].LogID)

	items, _, err := sub.Next(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, builtin.XSS, items[0].RuleID)

	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.PersistFailures.WithLabelValues(metrics.KindAlert)))
	assert.Len(t, fx.notifier.alerts, 1)
}
